package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

func newPrincipal(id, tenantID, email string) *core.Principal {
	return &core.Principal{ID: id, TenantID: tenantID, Email: email}
}

func TestCreateDuplicateEmailPerTenant(t *testing.T) {
	a := New()
	ctx := context.Background()

	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))

	// Mismo email en el mismo tenant choca.
	err := a.Principals().Create(ctx, newPrincipal("p-2", "org-a", "Ana@Example.com"))
	require.ErrorIs(t, err, core.ErrAlreadyExists)

	// Mismo email en otro tenant es otra identidad.
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-3", "org-b", "ana@example.com")))
}

func TestGetByEmailNormalizes(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))

	p, err := a.Principals().GetByEmail(ctx, "org-a", "  ANA@example.COM ")
	require.NoError(t, err)
	require.Equal(t, "p-1", p.ID)

	_, err = a.Principals().GetByEmail(ctx, "org-b", "ana@example.com")
	require.True(t, core.IsNotFound(err))
}

func TestClonesAreIsolated(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))

	p, err := a.Principals().GetByID(ctx, "p-1")
	require.NoError(t, err)
	p.Email = "mutated@example.com"

	again, err := a.Principals().GetByID(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", again.Email)
}

func TestClearChallengeSupersededIsNoOp(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))

	exp := time.Now().Add(10 * time.Minute)
	require.NoError(t, a.Principals().SetChallenge(ctx, "p-1", core.Challenge{
		Code: "111111", Purpose: core.PurposeLoginMFA, ExpiresAt: exp,
	}))
	require.NoError(t, a.Principals().SetChallenge(ctx, "p-1", core.Challenge{
		Code: "222222", Purpose: core.PurposeLoginMFA, ExpiresAt: exp,
	}))

	// Limpiar el código viejo no pisa al nuevo.
	require.NoError(t, a.Principals().ClearChallenge(ctx, "p-1", core.PurposeLoginMFA, "111111"))

	p, err := a.Principals().GetByID(ctx, "p-1")
	require.NoError(t, err)
	require.NotNil(t, p.Challenge)
	require.Equal(t, "222222", p.Challenge.Code)

	// Con el código vigente sí limpia.
	require.NoError(t, a.Principals().ClearChallenge(ctx, "p-1", core.PurposeLoginMFA, "222222"))
	p, err = a.Principals().GetByID(ctx, "p-1")
	require.NoError(t, err)
	require.Nil(t, p.Challenge)
}

func TestConsumeChallengeAndSetPasswordSingleUse(t *testing.T) {
	a := New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))
	require.NoError(t, a.Principals().SetChallenge(ctx, "p-1", core.Challenge{
		Code: "123456", Purpose: core.PurposePasswordReset, ExpiresAt: now.Add(10 * time.Minute),
	}))

	ok, err := a.Principals().ConsumeChallengeAndSetPassword(ctx, "p-1", core.PurposePasswordReset, "123456", now, "new-hash")
	require.NoError(t, err)
	require.True(t, ok)

	p, err := a.Principals().GetByID(ctx, "p-1")
	require.NoError(t, err)
	require.Equal(t, "new-hash", p.PasswordHash)
	require.Nil(t, p.Challenge)

	// Segundo consumo del mismo código falla.
	ok, err = a.Principals().ConsumeChallengeAndSetPassword(ctx, "p-1", core.PurposePasswordReset, "123456", now, "other-hash")
	require.NoError(t, err)
	require.False(t, ok)
	p, _ = a.Principals().GetByID(ctx, "p-1")
	require.Equal(t, "new-hash", p.PasswordHash)
}

func TestConsumeChallengeExpiredCode(t *testing.T) {
	a := New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))
	require.NoError(t, a.Principals().SetChallenge(ctx, "p-1", core.Challenge{
		Code: "123456", Purpose: core.PurposeSignupVerify, ExpiresAt: now.Add(-time.Minute),
	}))

	ok, err := a.Principals().ConsumeChallengeAndMarkVerified(ctx, "p-1", "123456", now)
	require.NoError(t, err)
	require.False(t, ok)

	p, _ := a.Principals().GetByID(ctx, "p-1")
	require.False(t, p.Verified)
}

func TestConsumeChallengeAndMarkVerified(t *testing.T) {
	a := New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))
	require.NoError(t, a.Principals().SetChallenge(ctx, "p-1", core.Challenge{
		Code: "654321", Purpose: core.PurposeSignupVerify, ExpiresAt: now.Add(10 * time.Minute),
	}))

	ok, err := a.Principals().ConsumeChallengeAndMarkVerified(ctx, "p-1", "654321", now)
	require.NoError(t, err)
	require.True(t, ok)

	p, _ := a.Principals().GetByID(ctx, "p-1")
	require.True(t, p.Verified)
	require.Nil(t, p.Challenge)
}

func TestPushLoginEntryBounded(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))

	for i := 0; i < core.LoginHistoryLimit+5; i++ {
		e := core.LoginEntry{At: time.Now(), IP: fmt.Sprintf("10.0.0.%d", i)}
		require.NoError(t, a.Principals().PushLoginEntry(ctx, "p-1", e))
	}

	p, err := a.Principals().GetByID(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, p.LoginHistory, core.LoginHistoryLimit)
	// Más reciente primero.
	require.Equal(t, fmt.Sprintf("10.0.0.%d", core.LoginHistoryLimit+4), p.LoginHistory[0].IP)
}

func TestDeletionLifecycle(t *testing.T) {
	a := New()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))

	ch := core.Challenge{Code: "999999", Purpose: core.PurposeDeleteConfirm, ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, a.Principals().MarkDeletionRequested(ctx, "p-1", "ya no la uso", ch))

	p, _ := a.Principals().GetByID(ctx, "p-1")
	require.Equal(t, core.DeletionRequested, p.Deletion.State)
	require.Equal(t, "ya no la uso", p.Deletion.Reason)

	// Código equivocado no confirma.
	ok, err := a.Principals().ConfirmDeletion(ctx, "p-1", "000000", now, now.Add(15*24*time.Hour))
	require.NoError(t, err)
	require.False(t, ok)

	scheduled := now.Add(15 * 24 * time.Hour)
	ok, err = a.Principals().ConfirmDeletion(ctx, "p-1", "999999", now, scheduled)
	require.NoError(t, err)
	require.True(t, ok)

	p, _ = a.Principals().GetByID(ctx, "p-1")
	require.Equal(t, core.DeletionConfirmed, p.Deletion.State)
	require.True(t, p.Deletion.ScheduledAt.Equal(scheduled))

	// Confirmar dos veces no: el estado ya no es requested.
	ok, err = a.Principals().ConfirmDeletion(ctx, "p-1", "999999", now, scheduled)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCancelDeletionWindows(t *testing.T) {
	a := New()
	ctx := context.Background()
	now := time.Now()

	// Sin borrado en curso no hay nada que cancelar.
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-0", "org-a", "cero@example.com")))
	ok, err := a.Principals().CancelDeletion(ctx, "p-0", now)
	require.NoError(t, err)
	require.False(t, ok)

	// En requested cancelar siempre vale.
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "uno@example.com")))
	ch := core.Challenge{Code: "111111", Purpose: core.PurposeDeleteConfirm, ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, a.Principals().MarkDeletionRequested(ctx, "p-1", "", ch))
	ok, err = a.Principals().CancelDeletion(ctx, "p-1", now)
	require.NoError(t, err)
	require.True(t, ok)
	p, _ := a.Principals().GetByID(ctx, "p-1")
	require.Equal(t, core.DeletionNone, p.Deletion.State)

	// En confirmed sólo dentro de la gracia.
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-2", "org-a", "dos@example.com")))
	require.NoError(t, a.Principals().MarkDeletionRequested(ctx, "p-2", "", ch))
	ok, err = a.Principals().ConfirmDeletion(ctx, "p-2", "111111", now, now.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	// Pasada la fecha programada ya no se cancela.
	ok, err = a.Principals().CancelDeletion(ctx, "p-2", now.Add(2*time.Hour))
	require.NoError(t, err)
	require.False(t, ok)

	// Dentro de la ventana sí.
	ok, err = a.Principals().CancelDeletion(ctx, "p-2", now.Add(30*time.Minute))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDeleteRemovesEmailIndex(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-1", "org-a", "ana@example.com")))
	require.NoError(t, a.Principals().Delete(ctx, "p-1"))

	_, err := a.Principals().GetByEmail(ctx, "org-a", "ana@example.com")
	require.True(t, core.IsNotFound(err))

	// El email queda libre para un alta nueva.
	require.NoError(t, a.Principals().Create(ctx, newPrincipal("p-2", "org-a", "ana@example.com")))
}

func TestTenantAPIKeyLookup(t *testing.T) {
	a := New()
	ctx := context.Background()
	require.NoError(t, a.Tenants().Create(ctx, &core.Tenant{ID: "org-a", Slug: "acme", APIKey: "key-a", Active: true}))

	got, err := a.Tenants().GetByAPIKey(ctx, "key-a")
	require.NoError(t, err)
	require.Equal(t, "org-a", got.ID)

	_, err = a.Tenants().GetByAPIKey(ctx, "nope")
	require.True(t, core.IsNotFound(err))

	err = a.Tenants().Create(ctx, &core.Tenant{ID: "org-a", Slug: "dup"})
	require.ErrorIs(t, err, core.ErrAlreadyExists)
}
