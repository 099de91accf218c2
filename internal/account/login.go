package account

import (
	"context"
	"time"

	"github.com/dropDatabas3/multipass/internal/email"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/security/password"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/util"
)

func (s *service) Login(ctx context.Context, t *core.Tenant, emailAddr, pass string, meta LoginMeta) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("Login"), logger.OrgID(t.ID))

	p, err := s.authenticate(ctx, t.ID, emailAddr, pass)
	if err != nil {
		log.Debug("login rejected", logger.String("email", util.MaskEmail(emailAddr)), logger.Err(err))
		return nil, err
	}

	// Step-up: con MFA habilitado el password solo abre la segunda fase.
	if p.MFAEnabled {
		code, err := s.deps.OTP.Issue(ctx, p.ID, core.PurposeLoginMFA)
		if err != nil {
			return nil, err
		}
		if err := email.SendCode(ctx, s.deps.Email, p.Email, core.PurposeLoginMFA, code); err != nil {
			log.Error("mfa code send failed", logger.PrincipalID(p.ID), logger.Err(err))
			return nil, err
		}
		log.Info("mfa challenge issued", logger.PrincipalID(p.ID))
		return &LoginResult{MFARequired: true, PrincipalID: p.ID}, nil
	}

	return s.completeLogin(ctx, t, p, meta)
}

func (s *service) VerifyMFA(ctx context.Context, t *core.Tenant, principalID, code string, meta LoginMeta) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("VerifyMFA"), logger.OrgID(t.ID), logger.PrincipalID(principalID))

	p, err := s.deps.OTP.Verify(ctx, principalID, core.PurposeLoginMFA, code)
	if err != nil {
		return nil, err
	}
	// El código solo vale dentro del tenant que abrió el login.
	if p.TenantID != t.ID {
		return nil, ErrBadCredentials
	}
	log.Info("mfa verified")
	return s.completeLogin(ctx, t, p, meta)
}

func (s *service) LoginSuperuser(ctx context.Context, emailAddr, pass string, meta LoginMeta) (*LoginResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"), logger.Op("LoginSuperuser"))

	p, err := s.authenticate(ctx, "", emailAddr, pass)
	if err != nil {
		return nil, err
	}
	if !p.Superuser {
		return nil, ErrBadCredentials
	}

	signed, exp, err := s.deps.Tokens.IssueSuperuser(ctx, p)
	if err != nil {
		return nil, err
	}
	s.pushHistory(ctx, p.ID, meta)
	log.Info("superuser login", logger.PrincipalID(p.ID))
	return &LoginResult{Principal: p, PrincipalID: p.ID, Token: signed, ExpiresAt: exp}, nil
}

// authenticate resuelve el principal y valida la password. Todo camino de
// rechazo converge a ErrBadCredentials para no filtrar cuál falló.
func (s *service) authenticate(ctx context.Context, tenantID, emailAddr, pass string) (*core.Principal, error) {
	p, err := s.deps.Principals.GetByEmail(ctx, tenantID, emailAddr)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if p.PasswordHash == "" {
		// Cuenta solo federada: no tiene password que validar.
		return nil, ErrNoPassword
	}
	if !password.Verify(pass, p.PasswordHash) {
		return nil, ErrBadCredentials
	}
	if !p.Verified {
		return nil, ErrNotVerified
	}
	if p.Deletion.State == core.DeletionConfirmed {
		return nil, ErrAccountDeleting
	}
	return p, nil
}

// completeLogin emite el token y registra el login en el historial.
func (s *service) completeLogin(ctx context.Context, t *core.Tenant, p *core.Principal, meta LoginMeta) (*LoginResult, error) {
	signed, exp, err := s.deps.Tokens.Issue(ctx, p, t)
	if err != nil {
		return nil, err
	}
	s.pushHistory(ctx, p.ID, meta)
	logger.From(ctx).Info("login ok",
		logger.Component("account"), logger.OrgID(t.ID), logger.PrincipalID(p.ID))
	return &LoginResult{Principal: p, PrincipalID: p.ID, Token: signed, ExpiresAt: exp}, nil
}

// pushHistory es best-effort: un fallo no aborta el login.
func (s *service) pushHistory(ctx context.Context, principalID string, meta LoginMeta) {
	entry := core.LoginEntry{At: time.Now().UTC(), IP: meta.IP, UserAgent: meta.UserAgent, Location: meta.Location}
	if err := s.deps.Principals.PushLoginEntry(ctx, principalID, entry); err != nil {
		logger.From(ctx).Warn("login history push failed",
			logger.Component("account"), logger.PrincipalID(principalID), logger.Err(err))
	}
}
