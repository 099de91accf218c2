package account

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/multipass/internal/email"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/otp"
	"github.com/dropDatabas3/multipass/internal/security/password"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/util"
)

// SignupInput son los datos de registro de un principal.
type SignupInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	RoleSlug  string // opcional; sujeto a visibilidad en signup
}

func (s *service) Signup(ctx context.Context, t *core.Tenant, in SignupInput) (*core.Principal, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("Signup"), logger.OrgID(t.ID))

	hash, err := password.Hash(password.Default, in.Password)
	if err != nil {
		return nil, err
	}

	p := &core.Principal{
		ID:           uuid.NewString(),
		TenantID:     t.ID,
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: hash,
		RoleSlug:     signupRole(t, in.RoleSlug),
		Verified:     false,
	}
	if err := s.deps.Principals.Create(ctx, p); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		return nil, err
	}

	code, err := s.deps.OTP.Issue(ctx, p.ID, core.PurposeSignupVerify)
	if err == nil {
		err = email.SendCode(ctx, s.deps.Email, p.Email, core.PurposeSignupVerify, code)
	}
	if err != nil {
		// Sin email de verificación la cuenta nacería inutilizable: el
		// registro se revierte completo y el caller puede reintentar.
		log.Error("verification send failed, rolling back signup",
			logger.PrincipalID(p.ID), logger.Err(err))
		if derr := s.deps.Principals.Delete(ctx, p.ID); derr != nil {
			log.Error("signup rollback failed", logger.PrincipalID(p.ID), logger.Err(derr))
		}
		return nil, err
	}

	log.Info("signup created", logger.PrincipalID(p.ID),
		logger.String("email", util.MaskEmail(p.Email)), logger.Role(p.RoleSlug))
	return p, nil
}

func (s *service) VerifyEmail(ctx context.Context, t *core.Tenant, emailAddr, code string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("VerifyEmail"), logger.OrgID(t.ID))

	p, err := s.deps.Principals.GetByEmail(ctx, t.ID, emailAddr)
	if err != nil {
		if core.IsNotFound(err) {
			return otp.ErrInvalid
		}
		return err
	}
	if p.Verified {
		// Reintento idempotente de un link/código ya consumido.
		return nil
	}

	ok, err := s.deps.Principals.ConsumeChallengeAndMarkVerified(ctx, p.ID, code, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		// El consume atómico no distingue vencido de incorrecto; chequear
		// expiración sobre lo leído para mensajería más útil.
		if ch := p.Challenge; ch != nil && ch.Purpose == core.PurposeSignupVerify &&
			ch.Code == code && !time.Now().Before(ch.ExpiresAt) {
			return otp.ErrExpired
		}
		return otp.ErrInvalid
	}
	log.Info("email verified", logger.PrincipalID(p.ID))
	return nil
}

// signupRole aplica la misma política de roles que el flujo federado: el
// rol pedido solo si existe y es visible en signup, si no el default.
func signupRole(t *core.Tenant, requested string) string {
	if requested != "" {
		if r := t.RoleBySlug(requested); r != nil && r.VisibleOnSignup {
			return r.Slug
		}
	}
	if r := t.DefaultRole(); r != nil {
		return r.Slug
	}
	return ""
}
