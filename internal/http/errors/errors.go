// Package errors define la taxonomía de errores HTTP y el mapeo desde los
// errores de dominio de las capas de servicio.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/multipass/internal/account"
	"github.com/dropDatabas3/multipass/internal/federation"
	"github.com/dropDatabas3/multipass/internal/otp"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/tenant"
	"github.com/dropDatabas3/multipass/internal/token"
)

// errorResponse estructura interna para la serialización JSON.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
// Maneja automáticamente errores de tipo *AppError y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// MapDomain traduce errores sentinel de las capas de servicio a AppErrors.
// Un error no mapeado termina en 500 genérico (la causa va a logs, nunca
// al cliente).
func MapDomain(err error) *AppError {
	switch {
	// tenant
	case errors.Is(err, tenant.ErrMissingKey):
		return ErrAPIKeyMissing
	case errors.Is(err, tenant.ErrNotFound):
		return ErrAPIKeyUnknown
	case errors.Is(err, tenant.ErrInactive):
		return ErrTenantInactive

	// token: expirado envuelve inválido, chequear el más específico primero
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrInvalid):
		return ErrTokenInvalid
	case errors.Is(err, token.ErrMisconfigured):
		return ErrSigningMisconfigured.WithCause(err)

	// otp
	case errors.Is(err, otp.ErrExpired):
		return ErrOTPExpired
	case errors.Is(err, otp.ErrInvalid):
		return ErrOTPInvalid

	// account
	case errors.Is(err, account.ErrBadCredentials), errors.Is(err, account.ErrNoPassword):
		// Sin password y password incorrecta responden igual hacia afuera.
		return ErrInvalidCredentials
	case errors.Is(err, account.ErrNotVerified):
		return ErrAccountNotVerified
	case errors.Is(err, account.ErrAccountDeleting):
		return ErrAccountDeleting
	case errors.Is(err, account.ErrAlreadyExists):
		return ErrEmailAlreadyInUse
	case errors.Is(err, account.ErrDeletionState):
		return ErrDeletionState
	case errors.Is(err, account.ErrGraceExpired):
		return ErrGraceExpired

	// federation
	case errors.Is(err, federation.ErrUnknownProvider):
		return ErrProviderUnknown
	case errors.Is(err, federation.ErrProviderDisabled):
		return ErrProviderDisabled
	case errors.Is(err, federation.ErrUpstream):
		return ErrUpstreamProvider.WithCause(err)
	case errors.Is(err, federation.ErrEmailMissing):
		return ErrUpstreamProvider.WithDetail("el proveedor no devolvió email")
	case errors.Is(err, federation.ErrCrossTenant):
		return ErrCrossTenantIdentity
	case errors.Is(err, federation.ErrStateReplayed):
		return ErrBadState.WithDetail("state ya consumido")
	case errors.Is(err, federation.ErrNoRedirectURI):
		return ErrProviderDisabled.WithDetail("sin redirect URI configurada")

	// store
	case core.IsNotFound(err):
		return ErrNotFound

	default:
		return ErrInternalServerError.WithCause(err)
	}
}
