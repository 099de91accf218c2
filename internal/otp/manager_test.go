package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/multipass/internal/otp"
	"github.com/dropDatabas3/multipass/internal/store/adapters/memory"
	"github.com/dropDatabas3/multipass/internal/store/core"
)

func seedPrincipal(t *testing.T, store *memory.Adapter) *core.Principal {
	t.Helper()
	p := &core.Principal{
		ID:       "p-1",
		TenantID: "org-a",
		Email:    "ana@example.com",
		Verified: true,
	}
	require.NoError(t, store.Principals().Create(context.Background(), p))
	return p
}

func TestIssueAndVerify(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(t, store)
	mgr := otp.NewManager(otp.Deps{Principals: store.Principals()})

	code, err := mgr.Issue(context.Background(), p.ID, core.PurposeLoginMFA)
	require.NoError(t, err)
	require.Len(t, code, otp.CodeDigits)

	got, err := mgr.Verify(context.Background(), p.ID, core.PurposeLoginMFA, code)
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Nil(t, got.Challenge)

	// Consumido: el mismo código ya no está guardado.
	_, err = mgr.Verify(context.Background(), p.ID, core.PurposeLoginMFA, code)
	require.ErrorIs(t, err, otp.ErrInvalid)
}

func TestVerifyWrongCode(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(t, store)
	mgr := otp.NewManager(otp.Deps{Principals: store.Principals()})

	code, err := mgr.Issue(context.Background(), p.ID, core.PurposeLoginMFA)
	require.NoError(t, err)

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, err = mgr.Verify(context.Background(), p.ID, core.PurposeLoginMFA, wrong)
	require.ErrorIs(t, err, otp.ErrInvalid)
}

func TestVerifyWrongPurpose(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(t, store)
	mgr := otp.NewManager(otp.Deps{Principals: store.Principals()})

	code, err := mgr.Issue(context.Background(), p.ID, core.PurposePasswordReset)
	require.NoError(t, err)

	_, err = mgr.Verify(context.Background(), p.ID, core.PurposeLoginMFA, code)
	require.ErrorIs(t, err, otp.ErrInvalid)
}

func TestVerifyExpired(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(t, store)
	mgr := otp.NewManager(otp.Deps{Principals: store.Principals(), TTL: time.Millisecond})

	code, err := mgr.Issue(context.Background(), p.ID, core.PurposeLoginMFA)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = mgr.Verify(context.Background(), p.ID, core.PurposeLoginMFA, code)
	require.ErrorIs(t, err, otp.ErrExpired)
}

func TestReissueSupersedes(t *testing.T) {
	store := memory.New()
	p := seedPrincipal(t, store)
	mgr := otp.NewManager(otp.Deps{Principals: store.Principals()})

	old, err := mgr.Issue(context.Background(), p.ID, core.PurposeLoginMFA)
	require.NoError(t, err)
	fresh, err := mgr.Issue(context.Background(), p.ID, core.PurposeLoginMFA)
	require.NoError(t, err)

	if old == fresh {
		t.Skip("códigos aleatorios colisionaron")
	}

	// El código viejo fue reemplazado: Invalid, nunca Expired.
	_, err = mgr.Verify(context.Background(), p.ID, core.PurposeLoginMFA, old)
	require.ErrorIs(t, err, otp.ErrInvalid)

	_, err = mgr.Verify(context.Background(), p.ID, core.PurposeLoginMFA, fresh)
	require.NoError(t, err)
}

func TestVerifyUnknownPrincipal(t *testing.T) {
	store := memory.New()
	mgr := otp.NewManager(otp.Deps{Principals: store.Principals()})

	_, err := mgr.Verify(context.Background(), "ghost", core.PurposeLoginMFA, "123456")
	require.ErrorIs(t, err, otp.ErrInvalid)
}
