// Package social holds the DTOs of the OAuth federation endpoints.
package social

// AuthorizeResponse carries the provider authorization URL the client
// must redirect the browser to.
type AuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Provider         string `json:"provider"`
}

// CallbackResponse is returned when the callback cannot redirect (no
// destination resolvable); normally the callback answers 302.
type CallbackResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
	Created     bool   `json:"created,omitempty"`
}
