package account

import (
	"context"
	"time"

	"github.com/dropDatabas3/multipass/internal/email"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/otp"
	"github.com/dropDatabas3/multipass/internal/security/password"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/util"
)

func (s *service) RequestPasswordReset(ctx context.Context, t *core.Tenant, emailAddr string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("RequestPasswordReset"), logger.OrgID(t.ID))

	p, err := s.deps.Principals.GetByEmail(ctx, t.ID, emailAddr)
	if err != nil {
		if core.IsNotFound(err) {
			// Respuesta idéntica exista o no la cuenta.
			log.Debug("reset for unknown email", logger.String("email", util.MaskEmail(emailAddr)))
			return nil
		}
		return err
	}

	code, err := s.deps.OTP.Issue(ctx, p.ID, core.PurposePasswordReset)
	if err != nil {
		return err
	}
	if err := email.SendCode(ctx, s.deps.Email, p.Email, core.PurposePasswordReset, code); err != nil {
		log.Error("reset code send failed", logger.PrincipalID(p.ID), logger.Err(err))
		return err
	}
	log.Info("reset code sent", logger.PrincipalID(p.ID))
	return nil
}

func (s *service) ConfirmPasswordReset(ctx context.Context, t *core.Tenant, emailAddr, code, newPassword string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("ConfirmPasswordReset"), logger.OrgID(t.ID))

	p, err := s.deps.Principals.GetByEmail(ctx, t.ID, emailAddr)
	if err != nil {
		if core.IsNotFound(err) {
			return otp.ErrInvalid
		}
		return err
	}

	hash, err := password.Hash(password.Default, newPassword)
	if err != nil {
		return err
	}

	// Match + clear + set password en una sola mutación condicional: dos
	// confirmaciones concurrentes con el mismo código no pisan dos hashes.
	ok, err := s.deps.Principals.ConsumeChallengeAndSetPassword(
		ctx, p.ID, core.PurposePasswordReset, code, time.Now().UTC(), hash)
	if err != nil {
		return err
	}
	if !ok {
		if ch := p.Challenge; ch != nil && ch.Purpose == core.PurposePasswordReset &&
			ch.Code == code && !time.Now().Before(ch.ExpiresAt) {
			return otp.ErrExpired
		}
		return otp.ErrInvalid
	}
	log.Info("password reset", logger.PrincipalID(p.ID))
	return nil
}
