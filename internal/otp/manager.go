// Package otp genera, guarda y valida los códigos de un solo uso para
// MFA de login, verificación de email, reset de password y confirmación
// de borrado de cuenta.
package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/dropDatabas3/multipass/internal/observability/logger"
	tokens "github.com/dropDatabas3/multipass/internal/security/token"
	"github.com/dropDatabas3/multipass/internal/store/core"
)

const (
	// CodeDigits es el largo de los códigos numéricos.
	CodeDigits = 6

	// CodeTTL es la ventana de validez de los códigos de autenticación.
	// La confirmación de borrado usa un flujo aparte con su propia gracia.
	CodeTTL = 10 * time.Minute
)

// Errores de validación. Un código reemplazado por uno más nuevo es
// Invalid, no Expired: nunca revelamos si existió.
var (
	ErrInvalid = errors.New("otp: invalid code")
	ErrExpired = errors.New("otp: code expired")
)

// Manager emite y valida one-time codes.
type Manager interface {
	// Issue genera un código de 6 dígitos (crypto/rand) y lo guarda con
	// last-write-wins: un código previo sin consumir queda invalidado.
	Issue(ctx context.Context, principalID string, purpose core.ChallengePurpose) (string, error)

	// Verify valida match exacto + expiración futura. En éxito limpia el
	// código guardado (condicionalmente: dos verificaciones concurrentes
	// dentro de la ventana pueden pasar ambas; lo que es single-use es la
	// acción de estado que dependa del código).
	Verify(ctx context.Context, principalID string, purpose core.ChallengePurpose, code string) (*core.Principal, error)
}

// Deps contiene las dependencias del manager.
type Deps struct {
	Principals core.PrincipalRepository
	TTL        time.Duration // default CodeTTL
}

type manager struct {
	principals core.PrincipalRepository
	ttl        time.Duration
}

// NewManager crea el Manager.
func NewManager(d Deps) Manager {
	if d.TTL <= 0 {
		d.TTL = CodeTTL
	}
	return &manager{principals: d.Principals, ttl: d.TTL}
}

func (m *manager) Issue(ctx context.Context, principalID string, purpose core.ChallengePurpose) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("otp"), logger.Op("Issue"))

	code, err := tokens.GenerateNumericCode(CodeDigits)
	if err != nil {
		return "", err
	}
	ch := core.Challenge{
		Code:      code,
		Purpose:   purpose,
		ExpiresAt: time.Now().UTC().Add(m.ttl),
	}
	if err := m.principals.SetChallenge(ctx, principalID, ch); err != nil {
		return "", err
	}
	log.Debug("code issued", logger.PrincipalID(principalID), logger.Purpose(string(purpose)))
	return code, nil
}

func (m *manager) Verify(ctx context.Context, principalID string, purpose core.ChallengePurpose, code string) (*core.Principal, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("otp"), logger.Op("Verify"))

	p, err := m.principals.GetByID(ctx, principalID)
	if err != nil {
		if core.IsNotFound(err) {
			// No revelar si falló el código o el principal.
			return nil, ErrInvalid
		}
		return nil, err
	}

	ch := p.Challenge
	if ch == nil || ch.Purpose != purpose {
		return nil, ErrInvalid
	}
	if subtle.ConstantTimeCompare([]byte(ch.Code), []byte(code)) != 1 {
		log.Debug("code mismatch", logger.PrincipalID(principalID), logger.Purpose(string(purpose)))
		return nil, ErrInvalid
	}
	if !time.Now().Before(ch.ExpiresAt) {
		return nil, ErrExpired
	}

	// Limpieza condicional: si entre medio se emitió un código nuevo,
	// este clear es un no-op y no pisa nada.
	if err := m.principals.ClearChallenge(ctx, principalID, purpose, code); err != nil {
		log.Debug("clear failed", logger.Err(err))
	}
	p.Challenge = nil
	return p, nil
}
