package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/multipass/internal/account"
	"github.com/dropDatabas3/multipass/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/multipass/internal/http/errors"
	"github.com/dropDatabas3/multipass/internal/http/middlewares"
	"github.com/dropDatabas3/multipass/internal/metrics"
)

// AuthHandler atiende login con password, step-up MFA y login de superusuario.
type AuthHandler struct {
	Accounts account.Service
}

// Register monta las rutas del handler. Las rutas de tenant asumen
// RequireTenant aplicado por el router.
func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/mfa", h.VerifyMFA)
}

// RegisterSuperuser monta el login de superusuario (fuera del scope de tenant).
func (h *AuthHandler) RegisterSuperuser(r chi.Router) {
	r.Post("/superuser/login", h.LoginSuperuser)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	t := middlewares.GetTenant(r.Context())

	var req auth.LoginRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	res, err := h.Accounts.Login(r.Context(), t, req.Email, req.Password, loginMeta(r))
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("password", "error").Inc()
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}

	if res.MFARequired {
		metrics.LoginsTotal.WithLabelValues("password", "mfa_pending").Inc()
		writeJSON(w, http.StatusAccepted, auth.LoginResponse{
			MFARequired: true,
			PrincipalID: res.PrincipalID,
		})
		return
	}

	metrics.LoginsTotal.WithLabelValues("password", "ok").Inc()
	metrics.TokensIssuedTotal.Inc()
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	t := middlewares.GetTenant(r.Context())

	var req auth.MFARequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.PrincipalID == "" || req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	res, err := h.Accounts.VerifyMFA(r.Context(), t, req.PrincipalID, req.Code, loginMeta(r))
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("mfa", "error").Inc()
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}

	metrics.LoginsTotal.WithLabelValues("mfa", "ok").Inc()
	metrics.TokensIssuedTotal.Inc()
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func (h *AuthHandler) LoginSuperuser(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	res, err := h.Accounts.LoginSuperuser(r.Context(), req.Email, req.Password, loginMeta(r))
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("superuser", "error").Inc()
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}

	metrics.LoginsTotal.WithLabelValues("superuser", "ok").Inc()
	metrics.TokensIssuedTotal.Inc()
	writeJSON(w, http.StatusOK, loginResponse(res))
}

func loginResponse(res *account.LoginResult) auth.LoginResponse {
	return auth.LoginResponse{
		PrincipalID: res.PrincipalID,
		AccessToken: res.Token,
		TokenType:   "Bearer",
		ExpiresAt:   res.ExpiresAt.Unix(),
	}
}

func loginMeta(r *http.Request) account.LoginMeta {
	return account.LoginMeta{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	}
}
