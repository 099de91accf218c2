package middlewares

import (
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/multipass/internal/http/errors"
	"github.com/dropDatabas3/multipass/internal/tenant"
)

// APIKeyHeader es el header que porta la API key del tenant.
const APIKeyHeader = "X-API-Key"

// RequireTenant resuelve el tenant a partir de la API key del request y lo
// inyecta en el contexto. Key faltante, desconocida y tenant inactivo son
// tres respuestas distintas (el mapeo vive en httperrors.MapDomain).
func RequireTenant(resolver tenant.Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := strings.TrimSpace(r.Header.Get(APIKeyHeader))
			if apiKey == "" {
				// Fallback query param para flujos de redirect del browser
				// (el callback OAuth no puede mandar headers custom).
				apiKey = strings.TrimSpace(r.URL.Query().Get("api_key"))
			}

			t, err := resolver.Resolve(r.Context(), apiKey)
			if err != nil {
				httperrors.WriteError(w, httperrors.MapDomain(err))
				return
			}

			next.ServeHTTP(w, r.WithContext(setTenant(r.Context(), t)))
		})
	}
}
