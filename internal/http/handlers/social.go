package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/multipass/internal/federation"
	"github.com/dropDatabas3/multipass/internal/http/dto/social"
	httperrors "github.com/dropDatabas3/multipass/internal/http/errors"
	"github.com/dropDatabas3/multipass/internal/http/middlewares"
	"github.com/dropDatabas3/multipass/internal/metrics"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/redirection"
	"github.com/dropDatabas3/multipass/internal/store/core"
)

// SocialHandler atiende el flujo OAuth federado: authorize y callback.
type SocialHandler struct {
	Engine  federation.Engine
	Tenants core.TenantRepository

	// FallbackURL es el destino final cuando ninguna regla de redirección
	// del tenant aplica.
	FallbackURL string
}

// Register monta la ruta de authorize (scope de tenant).
func (h *SocialHandler) Register(r chi.Router) {
	r.Get("/social/{provider}/authorize", h.Authorize)
}

// RegisterCallback monta el callback, que NO lleva scope de tenant: el
// tenant viaja dentro del state.
func (h *SocialHandler) RegisterCallback(r chi.Router) {
	r.Get("/social/callback", h.Callback)
}

func (h *SocialHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	t := middlewares.GetTenant(r.Context())
	provider := chi.URLParam(r, "provider")

	origin := strings.TrimSpace(r.URL.Query().Get("origin"))
	if origin == "" {
		origin = r.Header.Get("Origin")
	}
	role := strings.TrimSpace(r.URL.Query().Get("role"))
	// test_mode viaja dentro del state para que el callback sepa que el
	// flujo es de prueba de integración, no tráfico real.
	testMode, _ := strconv.ParseBool(r.URL.Query().Get("test_mode"))

	authURL, err := h.Engine.Authorize(r.Context(), t, provider, role, origin, testMode)
	if err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}

	// mode=json para SPAs que abren la URL ellas mismas; default 302.
	if r.URL.Query().Get("mode") == "json" {
		writeJSON(w, http.StatusOK, social.AuthorizeResponse{
			AuthorizationURL: authURL,
			Provider:         strings.ToLower(provider),
		})
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *SocialHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// Denegación upstream: el provider vuelve con ?error= y sin code
	// (access_denied si el usuario canceló el consentimiento). El detalle
	// completo va a logs; al cliente la respuesta genérica de upstream.
	if provErr := q.Get("error"); provErr != "" {
		provider := "unknown"
		if st, err := federation.DecodeState(q.Get("state")); err == nil {
			provider = st.Provider
		}
		logger.From(r.Context()).Warn("provider callback returned error",
			logger.Component("social"), logger.Provider(provider),
			logger.String("provider_error", provErr),
			logger.String("provider_error_description", q.Get("error_description")))
		metrics.FederationExchangesTotal.WithLabelValues(provider, "denied").Inc()
		httperrors.WriteError(w, httperrors.ErrUpstreamProvider)
		return
	}

	code := q.Get("code")
	rawState := q.Get("state")
	if code == "" || rawState == "" {
		httperrors.WriteError(w, httperrors.ErrBadState.WithDetail("faltan code o state"))
		return
	}

	st, err := federation.DecodeState(rawState)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrBadState)
		return
	}

	// El tenant sale del state, nunca de headers del browser.
	t, err := h.Tenants.GetByID(r.Context(), st.OrganizationID)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrBadState.WithDetail("tenant desconocido"))
		return
	}
	if !t.Active {
		httperrors.WriteError(w, httperrors.ErrTenantInactive)
		return
	}

	res, err := h.Engine.Exchange(r.Context(), t, st, code, federation.LoginMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		metrics.FederationExchangesTotal.WithLabelValues(st.Provider, "error").Inc()
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}
	metrics.FederationExchangesTotal.WithLabelValues(st.Provider, "ok").Inc()
	metrics.TokensIssuedTotal.Inc()

	dest := redirection.Resolve(t.RedirectRules, res.Principal.RoleSlug, st.Origin, h.FallbackURL)
	logger.From(r.Context()).Debug("post-login redirect resolved",
		logger.Component("social"), logger.OrgID(t.ID),
		logger.String("tier", string(dest.Tier)))

	if dest.URL == "" {
		// Sin destino resoluble: entregar el token en el body.
		writeJSON(w, http.StatusOK, social.CallbackResponse{
			AccessToken: res.Token,
			TokenType:   "Bearer",
			ExpiresAt:   res.ExpiresAt.Unix(),
			Created:     res.Created,
		})
		return
	}

	http.Redirect(w, r, redirection.AttachToken(dest.URL, res.Token, res.ExpiresAt), http.StatusFound)
}
