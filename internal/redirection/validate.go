package redirection

import (
	"fmt"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

// ValidateRules checks the at-most-one-default invariant per
// (environment, role) group.
//
// The resolver ASSUMES this invariant and simply returns the first
// default it finds; it never enforces it. The admin layer calling this
// validator on every rule-set write is the sole enforcement point — a
// cross-component contract.
func ValidateRules(rules []core.RedirectRule) error {
	type group struct{ env, role string }
	defaults := map[group]int{}
	for _, r := range rules {
		g := group{env: r.Environment, role: r.RoleSlug}
		for _, u := range r.URLs {
			if u.IsDefault {
				defaults[g]++
				if defaults[g] > 1 {
					return fmt.Errorf("redirection: multiple default URLs for environment %q role %q", g.env, g.role)
				}
			}
		}
	}
	return nil
}
