// Package federation drives external OAuth identity providers under
// per-tenant credentials: credential resolution, the authorization-code
// exchange, profile mapping, and local account provisioning.
//
// Providers are a small closed variant set (google/github/microsoft/apple)
// described by metadata and dispatched through ONE shared resolution and
// exchange routine — not four near-duplicate code paths.
package federation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Profile is a normalized user profile from any provider.
type Profile struct {
	Subject       string
	Email         string
	GivenName     string
	FamilyName    string
	EmailVerified bool
}

// Descriptor is the metadata describing one provider.
type Descriptor struct {
	Name            string
	AuthEndpoint    string
	TokenEndpoint   string
	ProfileEndpoint string // empty: profile comes from the id_token
	Scopes          []string

	// ClientIDPattern is the provider's expected client-ID grammar, used
	// to validate tenant-stored credentials before trusting them.
	ClientIDPattern *regexp.Regexp

	// mapProfile normalizes the provider's profile JSON.
	mapProfile func(raw map[string]any) Profile
}

// descriptors is the closed provider set.
var descriptors = map[string]*Descriptor{
	"google": {
		Name:            "google",
		AuthEndpoint:    "https://accounts.google.com/o/oauth2/v2/auth",
		TokenEndpoint:   "https://oauth2.googleapis.com/token",
		ProfileEndpoint: "https://openidconnect.googleapis.com/v1/userinfo",
		Scopes:          []string{"openid", "email", "profile"},
		ClientIDPattern: regexp.MustCompile(`^[0-9]+-[a-z0-9]+\.apps\.googleusercontent\.com$`),
		mapProfile:      mapOIDCProfile,
	},
	"github": {
		Name:            "github",
		AuthEndpoint:    "https://github.com/login/oauth/authorize",
		TokenEndpoint:   "https://github.com/login/oauth/access_token",
		ProfileEndpoint: "https://api.github.com/user",
		Scopes:          []string{"user:email", "read:user"},
		ClientIDPattern: regexp.MustCompile(`^(Iv1\.[a-f0-9]{16}|[A-Za-z0-9]{20})$`),
		mapProfile:      mapGithubProfile,
	},
	"microsoft": {
		Name:            "microsoft",
		AuthEndpoint:    "https://login.microsoftonline.com/common/oauth2/v2.0/authorize",
		TokenEndpoint:   "https://login.microsoftonline.com/common/oauth2/v2.0/token",
		ProfileEndpoint: "https://graph.microsoft.com/oidc/userinfo",
		Scopes:          []string{"openid", "email", "profile"},
		ClientIDPattern: regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
		mapProfile:      mapOIDCProfile,
	},
	"apple": {
		Name:          "apple",
		AuthEndpoint:  "https://appleid.apple.com/auth/authorize",
		TokenEndpoint: "https://appleid.apple.com/auth/token",
		// Apple has no userinfo endpoint: the profile rides the id_token.
		ProfileEndpoint: "",
		Scopes:          []string{"name", "email"},
		ClientIDPattern: regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]*$`),
		mapProfile:      mapOIDCProfile,
	},
}

// DescriptorFor returns the descriptor of a known provider.
func DescriptorFor(name string) (*Descriptor, bool) {
	d, ok := descriptors[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// ProviderNames lists the supported providers.
func ProviderNames() []string {
	return []string{"google", "github", "microsoft", "apple"}
}

// ─── shared outbound flow ───

// tokenResponse is the provider token-endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}

// exchangeCode trades an authorization code for tokens at the provider's
// token endpoint. One attempt, no internal retry: authorization codes are
// single-use upstream, so callers restart authorization instead.
func (d *Descriptor) exchangeCode(ctx context.Context, hc *http.Client, creds Credentials, redirectURI, code string) (*tokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", creds.ClientID)
	form.Set("client_secret", creds.ClientSecret)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, "POST", d.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: decode token response: %v", ErrUpstream, err)
	}
	if resp.StatusCode/100 != 2 || tr.Error != "" {
		return nil, fmt.Errorf("%w: token http %d: %s %s", ErrUpstream, resp.StatusCode, tr.Error, tr.ErrorDesc)
	}
	if tr.AccessToken == "" && tr.IDToken == "" {
		return nil, fmt.Errorf("%w: empty token response", ErrUpstream)
	}
	return &tr, nil
}

// fetchProfile obtains the normalized profile: userinfo endpoint when the
// provider has one, id_token payload otherwise. The id_token was received
// directly from the provider over TLS in the code exchange, which is what
// makes reading its payload without a JWKS round-trip sound here.
func (d *Descriptor) fetchProfile(ctx context.Context, hc *http.Client, tr *tokenResponse) (*Profile, error) {
	if d.ProfileEndpoint == "" {
		raw, err := decodeJWTPayload(tr.IDToken)
		if err != nil {
			return nil, fmt.Errorf("%w: id_token payload: %v", ErrUpstream, err)
		}
		p := d.mapProfile(raw)
		return &p, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", d.ProfileEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tr.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: profile fetch: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: profile http %d", ErrUpstream, resp.StatusCode)
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", ErrUpstream, err)
	}
	p := d.mapProfile(raw)
	return &p, nil
}

func decodeJWTPayload(jwt string) (map[string]any, error) {
	parts := strings.Split(jwt, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("bad jwt format")
	}
	b, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ─── profile mappers ───

func mapOIDCProfile(raw map[string]any) Profile {
	return Profile{
		Subject:       str(raw, "sub"),
		Email:         str(raw, "email"),
		GivenName:     str(raw, "given_name"),
		FamilyName:    str(raw, "family_name"),
		EmailVerified: boolish(raw, "email_verified"),
	}
}

func mapGithubProfile(raw map[string]any) Profile {
	// GitHub is plain OAuth2: numeric id, single "name" field, and the
	// email may be private (empty here; callers treat that as missing).
	var sub string
	switch v := raw["id"].(type) {
	case float64:
		sub = fmt.Sprintf("%.0f", v)
	case string:
		sub = v
	}
	given, family := splitName(str(raw, "name"))
	if given == "" {
		given = str(raw, "login")
	}
	return Profile{
		Subject:       sub,
		Email:         str(raw, "email"),
		GivenName:     given,
		FamilyName:    family,
		EmailVerified: true, // GitHub only exposes verified primary emails via the API
	}
}

func splitName(full string) (string, string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i], strings.TrimSpace(full[i+1:])
	}
	return full, ""
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func boolish(m map[string]any, k string) bool {
	switch v := m[k].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// defaultHTTPClient: toda llamada saliente a un IdP lleva deadline finito.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
