package federation

import (
	"strings"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

// selectRedirectURI picks the redirect URI for a provider config given the
// request's origin. The selected URI must be one registered upstream for
// the resolved client ID or the code exchange will be rejected, so the
// selection is deterministic and origin-driven:
//
//  1. case-insensitive exact/substring match of the origin against a
//     rule's origin pattern
//  2. first rule flagged default
//  3. first rule with any non-empty URI
//  4. legacy parallel arrays: positional index of the matching origin
//  5. first legacy URI
func selectRedirectURI(cfg core.ProviderConfig, origin string) string {
	origin = strings.ToLower(strings.TrimSpace(origin))

	if origin != "" {
		for _, r := range cfg.RedirectRules {
			pattern := strings.ToLower(strings.TrimSpace(r.OriginPattern))
			if pattern == "" || r.RedirectURI == "" {
				continue
			}
			if origin == pattern || strings.Contains(origin, pattern) || strings.Contains(pattern, origin) {
				return r.RedirectURI
			}
		}
	}
	for _, r := range cfg.RedirectRules {
		if r.IsDefault && r.RedirectURI != "" {
			return r.RedirectURI
		}
	}
	for _, r := range cfg.RedirectRules {
		if r.RedirectURI != "" {
			return r.RedirectURI
		}
	}

	// Legacy: origins and URIs as positionally indexed parallel arrays.
	if origin != "" {
		for i, o := range cfg.LegacyOrigins {
			if strings.EqualFold(strings.TrimSpace(o), origin) && i < len(cfg.LegacyRedirectURIs) {
				return cfg.LegacyRedirectURIs[i]
			}
		}
	}
	if len(cfg.LegacyRedirectURIs) > 0 {
		return cfg.LegacyRedirectURIs[0]
	}
	return ""
}
