package account

import (
	"context"
	"time"

	"github.com/dropDatabas3/multipass/internal/email"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/otp"
	tokens "github.com/dropDatabas3/multipass/internal/security/token"
	"github.com/dropDatabas3/multipass/internal/store/core"
)

// Ciclo de borrado: activo → requested → confirmed(gracia) → purga.
// La purga la ejecuta un batch externo pasada ScheduledAt; este servicio
// solo maneja las transiciones reversibles.

func (s *service) RequestDeletion(ctx context.Context, principalID, reason string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("RequestDeletion"), logger.PrincipalID(principalID))

	p, err := s.deps.Principals.GetByID(ctx, principalID)
	if err != nil {
		return err
	}
	if p.Deletion.State == core.DeletionConfirmed {
		// Ya confirmado: no se reabre el request (cancel es el único camino).
		return ErrDeletionState
	}

	code, err := tokens.GenerateNumericCode(otp.CodeDigits)
	if err != nil {
		return err
	}
	// La confirmación de borrado tiene su propia ventana, más larga que la
	// de los OTP transaccionales.
	ch := core.Challenge{
		Code:      code,
		Purpose:   core.PurposeDeleteConfirm,
		ExpiresAt: time.Now().UTC().Add(s.deps.DeleteConfirmTTL),
	}
	// Estado + challenge en el mismo update: re-pedir regenera el código
	// (last-write-wins) sin dejar el estado a mitad de camino.
	if err := s.deps.Principals.MarkDeletionRequested(ctx, principalID, reason, ch); err != nil {
		return err
	}
	if err := email.SendCode(ctx, s.deps.Email, p.Email, core.PurposeDeleteConfirm, code); err != nil {
		log.Error("deletion code send failed", logger.Err(err))
		return err
	}
	log.Info("deletion requested")
	return nil
}

func (s *service) ConfirmDeletion(ctx context.Context, principalID, code string) (time.Time, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("ConfirmDeletion"), logger.PrincipalID(principalID))

	now := time.Now().UTC()
	scheduledAt := now.Add(DeletionGracePeriod)

	ok, err := s.deps.Principals.ConfirmDeletion(ctx, principalID, code, now, scheduledAt)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, otp.ErrInvalid
	}
	log.Info("deletion confirmed", logger.String("scheduled_at", scheduledAt.Format(time.RFC3339)))
	return scheduledAt, nil
}

func (s *service) CancelDeletion(ctx context.Context, principalID string) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("account"),
		logger.Op("CancelDeletion"), logger.PrincipalID(principalID))

	p, err := s.deps.Principals.GetByID(ctx, principalID)
	if err != nil {
		return err
	}
	if p.Deletion.State == core.DeletionNone {
		return ErrDeletionState
	}

	// El update es condicional sobre el deadline; este pre-chequeo solo
	// mejora el error devuelto cuando la gracia ya venció.
	ok, err := s.deps.Principals.CancelDeletion(ctx, principalID, time.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		if p.Deletion.State == core.DeletionConfirmed && !time.Now().Before(p.Deletion.ScheduledAt) {
			return ErrGraceExpired
		}
		return ErrDeletionState
	}
	log.Info("deletion cancelled")
	return nil
}
