// Package core defines the storage-facing domain types and repository
// contracts. Adapters (pg, memory) implement these interfaces; services
// never touch a driver directly.
package core

import (
	"strings"
	"time"
)

// ─── Tenant (organization) ───

// SigningConfig is the per-tenant token signing configuration.
type SigningConfig struct {
	// Algorithm is one of HS256, HS384, HS512, RS256, RS384, RS512.
	Algorithm string `json:"algorithm"`

	// Secret holds the HMAC secret, or the PEM-encoded RSA private key
	// for RS* algorithms. Empty means "not configured" and triggers the
	// process-wide fallback secret (logged as degraded).
	Secret string `json:"secret"`

	// PayloadFields is the ordered list of claim names to project into
	// issued tokens. Order is preserved for deterministic output.
	PayloadFields []string `json:"payload_fields"`

	// TokenTTL overrides the default 24h expiry when > 0.
	TokenTTL time.Duration `json:"token_ttl"`
}

// ProviderRedirectRule is a named redirect-URI selection rule for an OAuth
// provider (origin pattern → registered redirect URI).
type ProviderRedirectRule struct {
	OriginPattern string `json:"origin_pattern"`
	RedirectURI   string `json:"redirect_uri"`
	IsDefault     bool   `json:"is_default"`
}

// ProviderConfig holds a tenant's credentials for one OAuth provider.
// Either RedirectRules or the legacy parallel arrays may be populated.
type ProviderConfig struct {
	Enabled      bool                   `json:"enabled"`
	ClientID     string                 `json:"client_id"`
	ClientSecret string                 `json:"client_secret"`
	RedirectRules []ProviderRedirectRule `json:"redirect_rules,omitempty"`

	// Legacy configs carried origins and URIs as positionally indexed
	// parallel arrays. Kept for tenants that predate named rules.
	LegacyOrigins      []string `json:"legacy_origins,omitempty"`
	LegacyRedirectURIs []string `json:"legacy_redirect_uris,omitempty"`
}

// RuleURL is one candidate destination inside a post-login redirect rule.
type RuleURL struct {
	URL       string `json:"url"`
	IsDefault bool   `json:"is_default"`
}

// RedirectRule is one entry of a tenant's post-login redirection rule set.
// Rules are ordered; resolution is first-match-wins per tier.
type RedirectRule struct {
	Environment string    `json:"environment"`
	AuthPageURL string    `json:"auth_page_url"`
	RoleSlug    string    `json:"role_slug"` // "any" or a specific slug
	URLs        []RuleURL `json:"urls"`
}

// RoleAny is the wildcard role slug in redirect rules.
const RoleAny = "any"

// Role is a flat role with an attached permission list. No inheritance.
type Role struct {
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Permissions     []string `json:"permissions"`
	IsDefault       bool     `json:"is_default"`
	VisibleOnSignup bool     `json:"visible_on_signup"`
}

// Tenant is one organization. Created/updated by the admin layer;
// read-only from the auth core's perspective.
type Tenant struct {
	ID     string `json:"id"`
	Slug   string `json:"slug"`
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
	Active bool   `json:"active"`

	Signing        SigningConfig             `json:"signing"`
	OAuthProviders map[string]ProviderConfig `json:"oauth_providers"`
	RedirectRules  []RedirectRule            `json:"redirect_rules"`
	Roles          []Role                    `json:"roles"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleBySlug returns the role with the given slug, or nil.
func (t *Tenant) RoleBySlug(slug string) *Role {
	for i := range t.Roles {
		if t.Roles[i].Slug == slug {
			return &t.Roles[i]
		}
	}
	return nil
}

// DefaultRole returns the role flagged IsDefault, or nil.
// The admin layer guarantees at most one.
func (t *Tenant) DefaultRole() *Role {
	for i := range t.Roles {
		if t.Roles[i].IsDefault {
			return &t.Roles[i]
		}
	}
	return nil
}

// ─── Principal ───

// ChallengePurpose scopes a one-time code to the flow that issued it.
type ChallengePurpose string

const (
	PurposeLoginMFA      ChallengePurpose = "login_mfa"
	PurposeSignupVerify  ChallengePurpose = "signup_verify"
	PurposePasswordReset ChallengePurpose = "password_reset"
	PurposeDeleteConfirm ChallengePurpose = "delete_confirm"
)

// Challenge is the one-time-code state attached to a principal.
// Storage is last-write-wins per (principal, purpose).
type Challenge struct {
	Code      string           `json:"code"`
	Purpose   ChallengePurpose `json:"purpose"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// DeletionState models the account deletion lifecycle.
// "" (active) → requested → confirmed(grace) → purged (external batch).
type DeletionState string

const (
	DeletionNone      DeletionState = ""
	DeletionRequested DeletionState = "deletion_requested"
	DeletionConfirmed DeletionState = "deletion_confirmed"
)

// Deletion is the deletion lifecycle metadata of a principal.
type Deletion struct {
	State       DeletionState `json:"state"`
	Reason      string        `json:"reason,omitempty"`
	RequestedAt time.Time     `json:"requested_at,omitempty"`
	ScheduledAt time.Time     `json:"scheduled_at,omitempty"`
}

// LoginEntry is one record of the bounded login-history ring.
type LoginEntry struct {
	At        time.Time `json:"at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	Location  string    `json:"location,omitempty"` // coarse geolocation, opaque
}

// LoginHistoryLimit caps the login-history ring (most recent first).
const LoginHistoryLimit = 20

// Principal is an authenticatable identity: a tenant user or the superuser.
// Invariant: (Email, TenantID) is unique; a superuser has no tenant.
type Principal struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"` // empty for superuser

	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`

	// PasswordHash is a PHC argon2id string. Empty for federated-only
	// accounts.
	PasswordHash string `json:"password_hash,omitempty"`

	RoleSlug   string `json:"role_slug"`
	Verified   bool   `json:"verified"`
	MFAEnabled bool   `json:"mfa_enabled"`
	Superuser  bool   `json:"superuser"`

	// Provider tags a federated account with the IdP that created it.
	Provider string `json:"provider,omitempty"`

	Challenge    *Challenge   `json:"challenge,omitempty"`
	Deletion     Deletion     `json:"deletion"`
	LoginHistory []LoginEntry `json:"login_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the trimmed concatenation of first and last name.
func (p *Principal) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}
