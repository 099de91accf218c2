// Package http arma el router del servicio: middlewares globales, scope
// de tenant por API key y scope autenticado por bearer token.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/multipass/internal/account"
	"github.com/dropDatabas3/multipass/internal/federation"
	"github.com/dropDatabas3/multipass/internal/http/handlers"
	"github.com/dropDatabas3/multipass/internal/http/middlewares"
	"github.com/dropDatabas3/multipass/internal/metrics"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/tenant"
	"github.com/dropDatabas3/multipass/internal/token"
)

// RouterDeps agrupa los servicios que el router cablea a los handlers.
type RouterDeps struct {
	Tenants  tenant.Resolver
	TenantsR core.TenantRepository
	Tokens   token.Service
	Accounts account.Service
	Engine   federation.Engine

	// FallbackRedirectURL es el destino final del callback OAuth cuando
	// ninguna regla del tenant aplica.
	FallbackRedirectURL string

	// Ready chequea dependencias para /readyz.
	Ready func(r *http.Request) error
}

// NewRouter construye el árbol de rutas completo.
func NewRouter(d RouterDeps) http.Handler {
	_ = metrics.RegisterAuth(prometheus.DefaultRegisterer)

	authH := &handlers.AuthHandler{Accounts: d.Accounts}
	signupH := &handlers.SignupHandler{Accounts: d.Accounts}
	socialH := &handlers.SocialHandler{
		Engine:      d.Engine,
		Tenants:     d.TenantsR,
		FallbackURL: d.FallbackRedirectURL,
	}
	deletionH := &handlers.DeletionHandler{Accounts: d.Accounts}
	meH := &handlers.MeHandler{}
	healthH := &handlers.HealthHandler{Ready: d.Ready}

	r := chi.NewRouter()

	// Observabilidad sin scope de tenant.
	healthH.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// Callback OAuth: el tenant viaja en el state, no en headers.
		socialH.RegisterCallback(r)

		// Superusuario: namespace sin tenant.
		authH.RegisterSuperuser(r)

		// Scope de tenant por API key.
		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireTenant(d.Tenants))
			authH.Register(r)
			signupH.Register(r)
			socialH.Register(r)
		})

		// Scope autenticado por bearer.
		r.Group(func(r chi.Router) {
			r.Use(middlewares.RequireAuth(d.Tokens))
			meH.Register(r)
			deletionH.Register(r)
		})
	})

	// Middlewares globales, el más externo primero.
	return middlewares.Chain(r,
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		middlewares.WithRecover(),
	)
}

// Start levanta el servidor HTTP en addr.
func Start(addr string, handler http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: handler}
	return srv.ListenAndServe()
}
