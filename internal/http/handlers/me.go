package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/multipass/internal/http/dto/auth"
	httperrors "github.com/dropDatabas3/multipass/internal/http/errors"
	"github.com/dropDatabas3/multipass/internal/http/middlewares"
)

// MeHandler devuelve las claims verificadas del token presentado.
type MeHandler struct{}

func (h *MeHandler) Register(r chi.Router) {
	r.Get("/me", h.Me)
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	c := middlewares.GetClaims(r.Context())
	if c == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, auth.MeResponse{
		OrganizationID: c.OrganizationID,
		Superuser:      c.Superuser,
		Claims:         c.Claims,
	})
}
