package federation

import (
	"context"
	"strings"

	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/store/core"
)

// Credentials is the client id/secret pair effectively used for a flow.
type Credentials struct {
	ClientID     string
	ClientSecret string

	// TenantOwned marks credentials read from the tenant record (vs. the
	// process-wide fallback).
	TenantOwned bool
}

// DefaultCredentials are the process-wide fallback credentials per
// provider, injected at startup. Tests substitute fixtures here instead
// of touching process environment.
type DefaultCredentials map[string]Credentials

// resolveCredentials applies the credential resolution policy. It runs
// identically at authorize- and exchange-time and MUST reach the same
// decision both times for a given tenant+provider: the authorization code
// is only valid against the client ID that requested it.
//
// Tenant credentials are used only when the sanitized client ID passes
// the provider's grammar AND a secret is present; otherwise the fallback
// keeps OAuth working for a misconfigured tenant (a silently active
// fallback is surfaced through a warn log).
func resolveCredentials(ctx context.Context, d *Descriptor, t *core.Tenant, defaults DefaultCredentials) Credentials {
	log := logger.From(ctx).With(logger.Component("federation.credentials"),
		logger.OrgID(t.ID), logger.Provider(d.Name))

	cfg, ok := t.OAuthProviders[d.Name]
	if ok && cfg.Enabled {
		clientID := SanitizeClientID(cfg.ClientID)
		switch {
		case clientID == "":
			log.Warn("tenant provider enabled without client id, using fallback credentials")
		case !d.ClientIDPattern.MatchString(clientID):
			log.Warn("tenant client id fails provider grammar, using fallback credentials",
				logger.String("client_id", clientID))
		case cfg.ClientSecret == "":
			log.Warn("tenant client id without secret, using fallback credentials")
		default:
			return Credentials{ClientID: clientID, ClientSecret: cfg.ClientSecret, TenantOwned: true}
		}
	}

	def := defaults[d.Name]
	def.TenantOwned = false
	return def
}

// SanitizeClientID strips an accidental http:// or https:// prefix — an
// operator pasting the value from a browser URL bar is a recurring
// support ticket.
func SanitizeClientID(id string) string {
	id = strings.TrimSpace(id)
	for _, prefix := range []string{"https://", "http://"} {
		if strings.HasPrefix(strings.ToLower(id), prefix) {
			id = id[len(prefix):]
			break
		}
	}
	return strings.TrimSuffix(id, "/")
}
