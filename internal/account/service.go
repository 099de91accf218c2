// Package account implementa los flujos de cuenta de primera parte:
// login con password (con step-up MFA), registro con verificación de
// email, reset de password y el ciclo de borrado de cuenta.
package account

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/multipass/internal/email"
	"github.com/dropDatabas3/multipass/internal/otp"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/token"
)

const (
	// DeletionGracePeriod es la ventana entre la confirmación del borrado y
	// la purga efectiva, durante la cual la cuenta todavía puede cancelar.
	DeletionGracePeriod = 15 * 24 * time.Hour

	// DefaultDeleteConfirmTTL es la vigencia por defecto del código de
	// confirmación de borrado. Más larga que la de los OTP transaccionales:
	// el usuario puede retomar ese mail horas después sin re-pedir.
	DefaultDeleteConfirmTTL = 24 * time.Hour
)

// Errores de los flujos de cuenta.
var (
	// ErrBadCredentials cubre email inexistente y password incorrecta por
	// igual: la respuesta no distingue para no enumerar cuentas.
	ErrBadCredentials = errors.New("account: bad credentials")

	ErrNotVerified     = errors.New("account: email not verified")
	ErrAlreadyExists   = errors.New("account: email already registered")
	ErrAccountDeleting = errors.New("account: deletion confirmed, login disabled")
	ErrDeletionState   = errors.New("account: deletion state does not allow this transition")
	ErrGraceExpired    = errors.New("account: cancellation window closed")
	ErrNoPassword      = errors.New("account: federated account has no password")
)

// LoginResult es el resultado de un intento de login con password.
// Con MFARequired=true no hay token: el caller debe completar VerifyMFA.
type LoginResult struct {
	MFARequired bool
	PrincipalID string

	Principal *core.Principal
	Token     string
	ExpiresAt time.Time
}

// LoginMeta son los metadatos del request que van al historial de logins.
type LoginMeta struct {
	IP        string
	UserAgent string
	Location  string
}

// Deps contiene las dependencias del servicio de cuentas.
type Deps struct {
	Principals core.PrincipalRepository
	Tokens     token.Service
	OTP        otp.Manager
	Email      email.Sender

	// DeleteConfirmTTL es la vigencia del código de confirmación de
	// borrado. <= 0 usa DefaultDeleteConfirmTTL.
	DeleteConfirmTTL time.Duration
}

type service struct {
	deps Deps
}

// Service agrupa los flujos de cuenta de primera parte.
type Service interface {
	// Login valida email+password dentro del tenant. Si el principal tiene
	// MFA habilitado, emite y envía un código y devuelve MFARequired.
	Login(ctx context.Context, t *core.Tenant, emailAddr, password string, meta LoginMeta) (*LoginResult, error)

	// VerifyMFA completa un login con MFA: valida el código y emite el token.
	VerifyMFA(ctx context.Context, t *core.Tenant, principalID, code string, meta LoginMeta) (*LoginResult, error)

	// LoginSuperuser valida credenciales en el namespace sin tenant y emite
	// el token sentinel de superusuario.
	LoginSuperuser(ctx context.Context, emailAddr, password string, meta LoginMeta) (*LoginResult, error)

	// Signup registra un principal sin verificar y envía el código de
	// verificación. Si el envío falla, el registro se revierte completo.
	Signup(ctx context.Context, t *core.Tenant, in SignupInput) (*core.Principal, error)

	// VerifyEmail consume el código de verificación y marca la cuenta.
	VerifyEmail(ctx context.Context, t *core.Tenant, emailAddr, code string) error

	// RequestPasswordReset emite y envía un código de reset. Silencioso
	// ante cuentas inexistentes.
	RequestPasswordReset(ctx context.Context, t *core.Tenant, emailAddr string) error

	// ConfirmPasswordReset consume el código y fija la nueva password en
	// una sola mutación atómica.
	ConfirmPasswordReset(ctx context.Context, t *core.Tenant, emailAddr, code, newPassword string) error

	// RequestDeletion entra en deletion_requested y envía el código de
	// confirmación.
	RequestDeletion(ctx context.Context, principalID, reason string) error

	// ConfirmDeletion consume el código y agenda la purga tras la gracia.
	ConfirmDeletion(ctx context.Context, principalID, code string) (time.Time, error)

	// CancelDeletion revierte el borrado mientras no venció la gracia.
	CancelDeletion(ctx context.Context, principalID string) error
}

// NewService crea el Service.
func NewService(d Deps) Service {
	if d.DeleteConfirmTTL <= 0 {
		d.DeleteConfirmTTL = DefaultDeleteConfirmTTL
	}
	return &service{deps: d}
}
