package federation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	memcache "github.com/dropDatabas3/multipass/internal/cache/memory"
	memstore "github.com/dropDatabas3/multipass/internal/store/adapters/memory"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/token"
)

// pointProviderAt redirige los endpoints de un provider al server de test
// y los restaura al terminar.
func pointProviderAt(t *testing.T, name, base string) {
	t.Helper()
	d := descriptors[name]
	origToken, origProfile := d.TokenEndpoint, d.ProfileEndpoint
	d.TokenEndpoint = base + "/token"
	d.ProfileEndpoint = base + "/userinfo"
	t.Cleanup(func() {
		d.TokenEndpoint = origToken
		d.ProfileEndpoint = origProfile
	})
}

func fakeIdP(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			_ = r.ParseForm()
			if r.PostFormValue("code") != "code-1" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-1"})
		case "/userinfo":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sub": "s-1", "email": "ada@example.com",
				"given_name": "Ada", "family_name": "Lovelace", "email_verified": true,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func exchangeFixture(t *testing.T) (Engine, *core.Tenant, *memstore.Adapter) {
	t.Helper()
	srv := fakeIdP(t)
	t.Cleanup(srv.Close)
	pointProviderAt(t, "google", srv.URL)

	store := memstore.New()
	tn := &core.Tenant{
		ID:     "org-a",
		Slug:   "acme",
		Active: true,
		Signing: core.SigningConfig{
			Algorithm: "HS256",
			Secret:    "tenant-secret",
		},
		Roles: []core.Role{{Slug: "user", IsDefault: true, VisibleOnSignup: true}},
		OAuthProviders: map[string]core.ProviderConfig{
			"google": {
				Enabled:      true,
				ClientID:     "123-abc.apps.googleusercontent.com",
				ClientSecret: "sec",
				RedirectRules: []core.ProviderRedirectRule{
					{OriginPattern: "app.acme.com", RedirectURI: "https://api.acme.com/cb", IsDefault: true},
				},
			},
		},
	}
	require.NoError(t, store.Tenants().Create(context.Background(), tn))

	tokenSvc := token.New(token.Config{DefaultSecret: "d", SuperuserSecret: "su"},
		func(ctx context.Context, id string) (*core.Tenant, error) {
			return store.Tenants().GetByID(ctx, id)
		})

	eng := NewEngine(Deps{
		Principals: store.Principals(),
		Tokens:     tokenSvc,
		Defaults:   DefaultCredentials{},
		Cache:      memcache.New(time.Minute),
		HTTP:       srv.Client(),
	})
	return eng, tn, store
}

func stateFromAuthorizeURL(t *testing.T, raw string) *State {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	st, err := DecodeState(u.Query().Get("state"))
	require.NoError(t, err)
	return st
}

func TestExchangeCreatesPrincipal(t *testing.T) {
	eng, tn, store := exchangeFixture(t)
	ctx := context.Background()

	raw, err := eng.Authorize(ctx, tn, "google", "", "https://app.acme.com", false)
	require.NoError(t, err)
	st := stateFromAuthorizeURL(t, raw)

	res, err := eng.Exchange(ctx, tn, st, "code-1", LoginMeta{IP: "10.0.0.1", UserAgent: "ua"})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.NotEmpty(t, res.Token)
	require.Equal(t, "ada@example.com", res.Principal.Email)
	require.Equal(t, "user", res.Principal.RoleSlug)
	require.Equal(t, "google", res.Principal.Provider)
	require.True(t, res.Principal.Verified)

	// El login quedó en el historial.
	p, err := store.Principals().GetByID(ctx, res.Principal.ID)
	require.NoError(t, err)
	require.Len(t, p.LoginHistory, 1)
	require.Equal(t, "10.0.0.1", p.LoginHistory[0].IP)
}

func TestExchangeLinksExistingPrincipal(t *testing.T) {
	eng, tn, store := exchangeFixture(t)
	ctx := context.Background()

	require.NoError(t, store.Principals().Create(ctx, &core.Principal{
		ID: "p-1", TenantID: "org-a", Email: "ada@example.com", Verified: true,
	}))

	raw, err := eng.Authorize(ctx, tn, "google", "", "https://app.acme.com", false)
	require.NoError(t, err)
	st := stateFromAuthorizeURL(t, raw)

	res, err := eng.Exchange(ctx, tn, st, "code-1", LoginMeta{})
	require.NoError(t, err)
	require.False(t, res.Created)
	require.Equal(t, "p-1", res.Principal.ID)
}

func TestExchangeStateReplay(t *testing.T) {
	eng, tn, _ := exchangeFixture(t)
	ctx := context.Background()

	raw, err := eng.Authorize(ctx, tn, "google", "", "https://app.acme.com", false)
	require.NoError(t, err)
	st := stateFromAuthorizeURL(t, raw)

	_, err = eng.Exchange(ctx, tn, st, "code-1", LoginMeta{})
	require.NoError(t, err)

	// El mismo state no se canjea dos veces.
	_, err = eng.Exchange(ctx, tn, st, "code-1", LoginMeta{})
	require.ErrorIs(t, err, ErrStateReplayed)
}

func TestExchangeUpstreamRejection(t *testing.T) {
	eng, tn, _ := exchangeFixture(t)
	ctx := context.Background()

	raw, err := eng.Authorize(ctx, tn, "google", "", "https://app.acme.com", false)
	require.NoError(t, err)
	st := stateFromAuthorizeURL(t, raw)

	_, err = eng.Exchange(ctx, tn, st, "code-malo", LoginMeta{})
	require.ErrorIs(t, err, ErrUpstream)
}
