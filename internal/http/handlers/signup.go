package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/multipass/internal/account"
	"github.com/dropDatabas3/multipass/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/multipass/internal/http/errors"
	"github.com/dropDatabas3/multipass/internal/http/middlewares"
)

// MinPasswordLength es el largo mínimo aceptado en signup y reset.
const MinPasswordLength = 8

// SignupHandler atiende registro, verificación de email y reset de password.
type SignupHandler struct {
	Accounts account.Service
}

func (h *SignupHandler) Register(r chi.Router) {
	r.Post("/auth/signup", h.Signup)
	r.Post("/auth/verify-email", h.VerifyEmail)
	r.Post("/auth/password-reset", h.RequestReset)
	r.Post("/auth/password-reset/confirm", h.ConfirmReset)
}

func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	t := middlewares.GetTenant(r.Context())

	var req auth.SignupRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}
	if len(req.Password) < MinPasswordLength {
		httperrors.WriteError(w, httperrors.ErrPasswordTooWeak)
		return
	}

	p, err := h.Accounts.Signup(r.Context(), t, account.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		RoleSlug:  req.Role,
	})
	if err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}

	writeJSON(w, http.StatusCreated, auth.SignupResponse{
		PrincipalID: p.ID,
		Email:       p.Email,
		Role:        p.RoleSlug,
	})
}

func (h *SignupHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	t := middlewares.GetTenant(r.Context())

	var req auth.VerifyEmailRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Code == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	if err := h.Accounts.VerifyEmail(r.Context(), t, req.Email, req.Code); err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SignupHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	t := middlewares.GetTenant(r.Context())

	var req auth.ResetRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}

	// 204 exista o no la cuenta: la respuesta nunca enumera emails.
	if err := h.Accounts.RequestPasswordReset(r.Context(), t, req.Email); err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SignupHandler) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	t := middlewares.GetTenant(r.Context())

	var req auth.ResetConfirmRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Code == "" || req.NewPassword == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields)
		return
	}
	if len(req.NewPassword) < MinPasswordLength {
		httperrors.WriteError(w, httperrors.ErrPasswordTooWeak)
		return
	}

	if err := h.Accounts.ConfirmPasswordReset(r.Context(), t, req.Email, req.Code, req.NewPassword); err != nil {
		httperrors.WriteError(w, httperrors.MapDomain(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
