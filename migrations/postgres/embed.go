// Package postgres embeds the SQL schema applied by the pg adapter at
// startup. Statements are idempotent (IF NOT EXISTS).
package postgres

import (
	"embed"
	"strings"
)

//go:embed *.sql
var fs embed.FS

// Statements returns the schema statements in file order.
func Statements() []string {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		b, err := fs.ReadFile(e.Name())
		if err != nil {
			continue
		}
		for _, stmt := range strings.Split(string(b), ";\n") {
			if s := strings.TrimSpace(stmt); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
