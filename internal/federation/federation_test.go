package federation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

func TestSanitizeClientID(t *testing.T) {
	cases := map[string]string{
		"123-abc.apps.googleusercontent.com":          "123-abc.apps.googleusercontent.com",
		"https://123-abc.apps.googleusercontent.com":  "123-abc.apps.googleusercontent.com",
		"http://123-abc.apps.googleusercontent.com/":  "123-abc.apps.googleusercontent.com",
		"  HTTPS://123-abc.apps.googleusercontent.com": "123-abc.apps.googleusercontent.com",
		"": "",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeClientID(in), "input %q", in)
	}
}

func googleTenant(cfg core.ProviderConfig) *core.Tenant {
	return &core.Tenant{
		ID:             "org-a",
		Slug:           "acme",
		Active:         true,
		OAuthProviders: map[string]core.ProviderConfig{"google": cfg},
	}
}

func TestResolveCredentialsGates(t *testing.T) {
	d, _ := DescriptorFor("google")
	defaults := DefaultCredentials{"google": {ClientID: "999-def.apps.googleusercontent.com", ClientSecret: "proc-secret"}}
	ctx := context.Background()

	// Credenciales del tenant válidas: se usan.
	creds := resolveCredentials(ctx, d, googleTenant(core.ProviderConfig{
		Enabled:      true,
		ClientID:     "https://123-abc.apps.googleusercontent.com",
		ClientSecret: "tenant-secret",
	}), defaults)
	require.True(t, creds.TenantOwned)
	require.Equal(t, "123-abc.apps.googleusercontent.com", creds.ClientID)
	require.Equal(t, "tenant-secret", creds.ClientSecret)

	// Client ID vacío: fallback.
	creds = resolveCredentials(ctx, d, googleTenant(core.ProviderConfig{
		Enabled: true, ClientSecret: "tenant-secret",
	}), defaults)
	require.False(t, creds.TenantOwned)
	require.Equal(t, "999-def.apps.googleusercontent.com", creds.ClientID)

	// Client ID que no cumple la gramática del provider: fallback.
	creds = resolveCredentials(ctx, d, googleTenant(core.ProviderConfig{
		Enabled: true, ClientID: "no-es-un-client-id-de-google", ClientSecret: "tenant-secret",
	}), defaults)
	require.False(t, creds.TenantOwned)

	// Client ID válido pero sin secret: fallback.
	creds = resolveCredentials(ctx, d, googleTenant(core.ProviderConfig{
		Enabled: true, ClientID: "123-abc.apps.googleusercontent.com",
	}), defaults)
	require.False(t, creds.TenantOwned)
}

func TestStateRoundtrip(t *testing.T) {
	st := State{
		OrganizationID: "org-a",
		Role:           "admin",
		Origin:         "https://app.acme.com",
		Provider:       "google",
		Nonce:          "n-1",
	}
	enc, err := st.Encode()
	require.NoError(t, err)

	got, err := DecodeState(enc)
	require.NoError(t, err)
	require.Equal(t, st, *got)
}

func TestDecodeStateToleratesPadding(t *testing.T) {
	b, _ := json.Marshal(State{OrganizationID: "org-a", Provider: "github"})
	padded := base64.URLEncoding.EncodeToString(b)

	got, err := DecodeState(padded)
	require.NoError(t, err)
	require.Equal(t, "org-a", got.OrganizationID)
	require.Equal(t, "github", got.Provider)
}

func TestDecodeStateRejectsBadInput(t *testing.T) {
	_, err := DecodeState("!!!not-base64!!!")
	require.Error(t, err)

	// JSON válido pero sin campos obligatorios.
	enc := base64.RawURLEncoding.EncodeToString([]byte(`{"role":"admin"}`))
	_, err = DecodeState(enc)
	require.Error(t, err)
}

func TestSelectRedirectURI(t *testing.T) {
	cfg := core.ProviderConfig{
		RedirectRules: []core.ProviderRedirectRule{
			{OriginPattern: "app.acme.com", RedirectURI: "https://api.acme.com/cb/app"},
			{OriginPattern: "admin.acme.com", RedirectURI: "https://api.acme.com/cb/admin", IsDefault: true},
		},
	}

	// Match por origen, case-insensitive y por substring.
	require.Equal(t, "https://api.acme.com/cb/app", selectRedirectURI(cfg, "https://APP.acme.com"))
	// Sin origen: primera regla default.
	require.Equal(t, "https://api.acme.com/cb/admin", selectRedirectURI(cfg, ""))
	// Origen desconocido: también la default.
	require.Equal(t, "https://api.acme.com/cb/admin", selectRedirectURI(cfg, "https://otro.example.com"))

	// Sin default: primera con URI.
	cfg.RedirectRules[1].IsDefault = false
	require.Equal(t, "https://api.acme.com/cb/app", selectRedirectURI(cfg, "https://otro.example.com"))
}

func TestSelectRedirectURILegacyArrays(t *testing.T) {
	cfg := core.ProviderConfig{
		LegacyOrigins:      []string{"app.acme.com", "admin.acme.com"},
		LegacyRedirectURIs: []string{"https://api.acme.com/cb/0", "https://api.acme.com/cb/1"},
	}
	// Posicional por origen.
	require.Equal(t, "https://api.acme.com/cb/1", selectRedirectURI(cfg, "admin.acme.com"))
	// Sin match: primera legacy.
	require.Equal(t, "https://api.acme.com/cb/0", selectRedirectURI(cfg, "otro.example.com"))

	require.Equal(t, "", selectRedirectURI(core.ProviderConfig{}, "app.acme.com"))
}

func TestEffectiveRole(t *testing.T) {
	tn := &core.Tenant{
		Roles: []core.Role{
			{Slug: "user", IsDefault: true, VisibleOnSignup: true},
			{Slug: "editor", VisibleOnSignup: true},
			{Slug: "admin"}, // no visible en signup
		},
	}
	require.Equal(t, "editor", effectiveRole(tn, "editor"))
	// Rol oculto en signup cae al default.
	require.Equal(t, "user", effectiveRole(tn, "admin"))
	require.Equal(t, "user", effectiveRole(tn, "inexistente"))
	require.Equal(t, "user", effectiveRole(tn, ""))
	// Tenant sin roles: vacío.
	require.Equal(t, "", effectiveRole(&core.Tenant{}, "admin"))
}

func TestMapGithubProfile(t *testing.T) {
	p := mapGithubProfile(map[string]any{
		"id":    float64(12345),
		"name":  "Ada Lovelace",
		"email": "ada@example.com",
	})
	require.Equal(t, "12345", p.Subject)
	require.Equal(t, "Ada", p.GivenName)
	require.Equal(t, "Lovelace", p.FamilyName)
	require.True(t, p.EmailVerified)

	// Sin name: login como nombre.
	p = mapGithubProfile(map[string]any{"id": "77", "login": "octocat"})
	require.Equal(t, "77", p.Subject)
	require.Equal(t, "octocat", p.GivenName)
	require.Equal(t, "", p.Email)
}

func TestDecodeJWTPayload(t *testing.T) {
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"s-1","email":"a@b.com"}`))
	raw, err := decodeJWTPayload("header." + payload + ".sig")
	require.NoError(t, err)
	require.Equal(t, "s-1", raw["sub"])

	_, err = decodeJWTPayload("not-a-jwt")
	require.Error(t, err)
}

func TestExchangeCodeAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.URL.Path {
		case "/token":
			if r.PostFormValue("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
				return
			}
			require.Equal(t, "cid", r.PostFormValue("client_id"))
			require.Equal(t, "sec", r.PostFormValue("client_secret"))
			require.Equal(t, "https://api.acme.com/cb", r.PostFormValue("redirect_uri"))
			_ = json.NewEncoder(w).Encode(map[string]any{"access_token": "at-1", "token_type": "bearer"})
		case "/userinfo":
			require.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sub": "s-1", "email": "ada@example.com",
				"given_name": "Ada", "family_name": "Lovelace", "email_verified": true,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	d := &Descriptor{
		Name:            "fake",
		TokenEndpoint:   srv.URL + "/token",
		ProfileEndpoint: srv.URL + "/userinfo",
		ClientIDPattern: regexp.MustCompile(`.+`),
		mapProfile:      mapOIDCProfile,
	}
	creds := Credentials{ClientID: "cid", ClientSecret: "sec"}

	tr, err := d.exchangeCode(context.Background(), srv.Client(), creds, "https://api.acme.com/cb", "good-code")
	require.NoError(t, err)
	require.Equal(t, "at-1", tr.AccessToken)

	profile, err := d.fetchProfile(context.Background(), srv.Client(), tr)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", profile.Email)
	require.Equal(t, "Ada", profile.GivenName)
	require.True(t, profile.EmailVerified)

	// Code rechazado upstream: ErrUpstream.
	_, err = d.exchangeCode(context.Background(), srv.Client(), creds, "https://api.acme.com/cb", "bad-code")
	require.ErrorIs(t, err, ErrUpstream)
}

func TestAuthorizeBuildsURLAndState(t *testing.T) {
	tn := googleTenant(core.ProviderConfig{
		Enabled:      true,
		ClientID:     "123-abc.apps.googleusercontent.com",
		ClientSecret: "sec",
		RedirectRules: []core.ProviderRedirectRule{
			{OriginPattern: "app.acme.com", RedirectURI: "https://api.acme.com/cb", IsDefault: true},
		},
	})
	eng := NewEngine(Deps{Defaults: DefaultCredentials{}})

	raw, err := eng.Authorize(context.Background(), tn, "google", "admin", "https://app.acme.com", true)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "accounts.google.com", u.Host)
	q := u.Query()
	require.Equal(t, "code", q.Get("response_type"))
	require.Equal(t, "123-abc.apps.googleusercontent.com", q.Get("client_id"))
	require.Equal(t, "https://api.acme.com/cb", q.Get("redirect_uri"))

	st, err := DecodeState(q.Get("state"))
	require.NoError(t, err)
	require.Equal(t, "org-a", st.OrganizationID)
	require.Equal(t, "google", st.Provider)
	require.Equal(t, "admin", st.Role)
	require.True(t, st.TestMode)
	require.NotEmpty(t, st.Nonce)
}

func TestAuthorizeRejections(t *testing.T) {
	eng := NewEngine(Deps{Defaults: DefaultCredentials{}})
	tn := googleTenant(core.ProviderConfig{Enabled: true})

	_, err := eng.Authorize(context.Background(), tn, "yahoo", "", "", false)
	require.ErrorIs(t, err, ErrUnknownProvider)

	_, err = eng.Authorize(context.Background(), googleTenant(core.ProviderConfig{Enabled: false}), "google", "", "", false)
	require.ErrorIs(t, err, ErrProviderDisabled)

	// Provider habilitado pero sin credenciales usables en ningún lado.
	_, err = eng.Authorize(context.Background(), tn, "google", "", "", false)
	require.ErrorIs(t, err, ErrProviderDisabled)
}
