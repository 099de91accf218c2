package federation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// State is the payload carried through the OAuth redirect round-trip.
// It is the ONLY channel carrying tenant context across the redirect: the
// callback re-derives the tenant from it, never from client headers.
//
// Wire shape is frozen JSON. New fields must stay backward-compatible
// with older encoded states still in flight (decode ignores unknowns,
// missing fields zero-value).
type State struct {
	OrganizationID string `json:"organizationId"`
	Role           string `json:"role,omitempty"`
	Origin         string `json:"origin,omitempty"`
	TestMode       bool   `json:"testMode,omitempty"`
	Provider       string `json:"provider"`

	// Nonce liga el state a una autorización concreta (anti-replay).
	Nonce string `json:"nonce,omitempty"`
}

// Encode serializes the state as base64url(JSON) — opaque to the browser.
func (s State) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeState parses an encoded state. Unknown fields are ignored so
// older and newer encodings interoperate.
func DecodeState(raw string) (*State, error) {
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		// Some clients re-encode with padding; be tolerant.
		b, err = base64.URLEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("federation: bad state encoding: %w", err)
		}
	}
	var s State
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("federation: bad state payload: %w", err)
	}
	if s.OrganizationID == "" || s.Provider == "" {
		return nil, fmt.Errorf("federation: state missing required fields")
	}
	return &s, nil
}
