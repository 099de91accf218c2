// Package redirection computes the post-login destination URL from a
// tenant's priority-ordered rule set.
package redirection

import (
	"strings"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

// Tier identifies which step of the cascade produced the destination.
// Exposed for observability and tests.
type Tier string

const (
	TierFallback            Tier = "fallback"
	TierSpecificRoleDefault Tier = "specific-role-default"
	TierSpecificRoleFirst   Tier = "specific-role-first"
	TierAnyRoleDefault      Tier = "any-role-default"
	TierAnyRoleFirst        Tier = "any-role-first"
)

// Result is the resolved destination plus the matching tier.
type Result struct {
	URL  string
	Tier Tier
}

// Resolve walks the cascade in strict priority order, first match wins:
//
//  1. filter rules whose auth page URL normalizes-equal to the current
//     page; no match → fallback immediately
//  2. among filtered, rules with the exact role: first URL flagged default
//  3. else first non-empty URL of the first such rule in source order
//  4. else steps 2-3 against roleSlug "any"
//  5. else fallback
//
// A match is never skipped in favor of a "better" one later in tier order.
func Resolve(rules []core.RedirectRule, role, currentAuthPageURL, fallbackURL string) Result {
	current := normalizeURL(currentAuthPageURL)

	var matched []core.RedirectRule
	for _, r := range rules {
		if normalizeURL(r.AuthPageURL) == current {
			matched = append(matched, r)
		}
	}
	if len(matched) == 0 {
		return Result{URL: fallbackURL, Tier: TierFallback}
	}

	if res, ok := resolveForRole(matched, role, TierSpecificRoleDefault, TierSpecificRoleFirst); ok {
		return res
	}
	if res, ok := resolveForRole(matched, core.RoleAny, TierAnyRoleDefault, TierAnyRoleFirst); ok {
		return res
	}
	return Result{URL: fallbackURL, Tier: TierFallback}
}

func resolveForRole(rules []core.RedirectRule, role string, defaultTier, firstTier Tier) (Result, bool) {
	var forRole []core.RedirectRule
	for _, r := range rules {
		if r.RoleSlug == role {
			forRole = append(forRole, r)
		}
	}
	if len(forRole) == 0 {
		return Result{}, false
	}

	// First URL flagged default across the role's rules, in source order.
	for _, r := range forRole {
		for _, u := range r.URLs {
			if u.IsDefault && u.URL != "" {
				return Result{URL: u.URL, Tier: defaultTier}, true
			}
		}
	}
	// Else first non-empty URL of the first rule that has one.
	for _, r := range forRole {
		for _, u := range r.URLs {
			if u.URL != "" {
				return Result{URL: u.URL, Tier: firstTier}, true
			}
		}
	}
	return Result{}, false
}

// normalizeURL strips the scheme and trailing slash and lowercases, so
// "https://App.example.com/login/" equals "app.example.com/login".
func normalizeURL(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	return strings.TrimRight(s, "/")
}
