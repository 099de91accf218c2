package federation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/multipass/internal/cache"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	tokensec "github.com/dropDatabas3/multipass/internal/security/token"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/token"
	"github.com/dropDatabas3/multipass/internal/util"
)

// Errores del engine.
var (
	ErrUnknownProvider  = errors.New("federation: unknown provider")
	ErrProviderDisabled = errors.New("federation: provider disabled for tenant")
	ErrUpstream         = errors.New("federation: upstream provider failure")
	ErrEmailMissing     = errors.New("federation: provider returned no email")
	ErrCrossTenant      = errors.New("federation: identity bound to another tenant")
	ErrStateReplayed    = errors.New("federation: state already used")
	ErrNoRedirectURI    = errors.New("federation: no redirect uri configured")
)

// LoginMeta son los metadatos del request para el historial de logins.
type LoginMeta struct {
	IP        string
	UserAgent string
	Location  string
}

// ExchangeResult es el resultado de un intercambio exitoso.
type ExchangeResult struct {
	Principal *core.Principal
	Token     string
	ExpiresAt time.Time
	Created   bool // true si el principal se creó en este flujo
}

// Engine federa identidades OAuth externas a cuentas locales.
type Engine interface {
	// Authorize arma la URL de autorización del provider con las
	// credenciales resueltas para el tenant y un state opaco. testMode
	// marca el flujo como de prueba y viaja dentro del state.
	Authorize(ctx context.Context, t *core.Tenant, provider, desiredRole, originHint string, testMode bool) (string, error)

	// Exchange canjea el authorization code, trae el perfil externo,
	// crea o linkea el principal local y emite el token.
	Exchange(ctx context.Context, t *core.Tenant, st *State, code string, meta LoginMeta) (*ExchangeResult, error)
}

// Deps contiene las dependencias del engine. Las credenciales default se
// inyectan acá (nada de estado global) para que los tests usen fixtures.
type Deps struct {
	Principals core.PrincipalRepository
	Tokens     token.Service
	Defaults   DefaultCredentials
	Cache      cache.Cache // anti-replay de nonces de state
	HTTP       *http.Client
	NonceTTL   time.Duration // default 10m
}

type engine struct {
	deps Deps
}

// NewEngine crea el Engine.
func NewEngine(d Deps) Engine {
	if d.HTTP == nil {
		d.HTTP = defaultHTTPClient()
	}
	if d.NonceTTL <= 0 {
		d.NonceTTL = 10 * time.Minute
	}
	return &engine{deps: d}
}

func (e *engine) Authorize(ctx context.Context, t *core.Tenant, provider, desiredRole, originHint string, testMode bool) (string, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("federation"),
		logger.Op("Authorize"), logger.OrgID(t.ID), logger.Provider(provider))

	d, cfg, err := e.providerFor(t, provider)
	if err != nil {
		return "", err
	}

	creds := resolveCredentials(ctx, d, t, e.deps.Defaults)
	if creds.ClientID == "" {
		return "", fmt.Errorf("%w: no usable credentials", ErrProviderDisabled)
	}
	redirectURI := selectRedirectURI(cfg, originHint)
	if redirectURI == "" {
		return "", ErrNoRedirectURI
	}

	nonce, err := tokensec.GenerateOpaqueToken(16)
	if err != nil {
		return "", err
	}
	if e.deps.Cache != nil {
		e.deps.Cache.Set("fed:nonce:"+nonce, []byte("1"), e.deps.NonceTTL)
	}

	st := State{
		OrganizationID: t.ID,
		Role:           desiredRole,
		Origin:         originHint,
		TestMode:       testMode,
		Provider:       d.Name,
		Nonce:          nonce,
	}
	encoded, err := st.Encode()
	if err != nil {
		return "", err
	}

	u, _ := url.Parse(d.AuthEndpoint)
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", creds.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", strings.Join(d.Scopes, " "))
	q.Set("state", encoded)
	u.RawQuery = q.Encode()

	log.Debug("authorize url built", logger.Bool("tenant_credentials", creds.TenantOwned))
	return u.String(), nil
}

func (e *engine) Exchange(ctx context.Context, t *core.Tenant, st *State, code string, meta LoginMeta) (*ExchangeResult, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("federation"),
		logger.Op("Exchange"), logger.OrgID(t.ID), logger.Provider(st.Provider))

	d, cfg, err := e.providerFor(t, st.Provider)
	if err != nil {
		return nil, err
	}

	// Nonce one-shot: un state ya consumido no se canjea dos veces.
	if e.deps.Cache != nil && st.Nonce != "" {
		key := "fed:nonce:" + st.Nonce
		if _, ok := e.deps.Cache.Get(key); !ok {
			return nil, ErrStateReplayed
		}
		e.deps.Cache.Delete(key)
	}

	// La resolución de credenciales y de redirect URI es determinística:
	// repite exactamente la decisión tomada en Authorize, porque el code
	// solo es válido contra el client ID que lo pidió.
	creds := resolveCredentials(ctx, d, t, e.deps.Defaults)
	redirectURI := selectRedirectURI(cfg, st.Origin)
	if creds.ClientID == "" || redirectURI == "" {
		return nil, fmt.Errorf("%w: no usable credentials", ErrProviderDisabled)
	}

	// Dos llamadas salientes secuenciales, sin retry interno: si algo
	// falla el caller reinicia la autorización (el code es single-use).
	tr, err := d.exchangeCode(ctx, e.deps.HTTP, creds, redirectURI, code)
	if err != nil {
		log.Error("code exchange failed", logger.Err(err))
		return nil, err
	}
	profile, err := d.fetchProfile(ctx, e.deps.HTTP, tr)
	if err != nil {
		log.Error("profile fetch failed", logger.Err(err))
		return nil, err
	}
	if profile.Email == "" {
		return nil, ErrEmailMissing
	}

	p, created, err := e.ensurePrincipal(ctx, t, d.Name, st.Role, profile)
	if err != nil {
		return nil, err
	}

	// Historial best-effort: un fallo acá no aborta el login.
	entry := core.LoginEntry{At: time.Now().UTC(), IP: meta.IP, UserAgent: meta.UserAgent, Location: meta.Location}
	if err := e.deps.Principals.PushLoginEntry(ctx, p.ID, entry); err != nil {
		log.Warn("login history push failed", logger.PrincipalID(p.ID), logger.Err(err))
	}

	signed, exp, err := e.deps.Tokens.Issue(ctx, p, t)
	if err != nil {
		return nil, err
	}

	log.Info("federated login",
		logger.PrincipalID(p.ID),
		logger.String("email", util.MaskEmail(p.Email)),
		logger.Bool("created", created),
		logger.Bool("test_mode", st.TestMode),
	)
	return &ExchangeResult{Principal: p, Token: signed, ExpiresAt: exp, Created: created}, nil
}

// ensurePrincipal localiza el principal por (email, tenant); si no existe
// lo crea pre-verificado y taggeado con el provider.
func (e *engine) ensurePrincipal(ctx context.Context, t *core.Tenant, provider, requestedRole string, profile *Profile) (*core.Principal, bool, error) {
	p, err := e.deps.Principals.GetByEmail(ctx, t.ID, profile.Email)
	if err == nil {
		// Reuso cross-tenant de la identidad federada: rechazar.
		if p.TenantID != t.ID {
			return nil, false, ErrCrossTenant
		}
		return p, false, nil
	}
	if !core.IsNotFound(err) {
		return nil, false, err
	}

	p = &core.Principal{
		ID:        uuid.NewString(),
		TenantID:  t.ID,
		Email:     strings.ToLower(strings.TrimSpace(profile.Email)),
		FirstName: profile.GivenName,
		LastName:  profile.FamilyName,
		RoleSlug:  effectiveRole(t, requestedRole),
		Verified:  true, // el IdP externo ya verificó el email
		Provider:  provider,
	}
	if err := e.deps.Principals.Create(ctx, p); err != nil {
		if errors.Is(err, core.ErrAlreadyExists) {
			// Carrera con otro callback del mismo usuario: releer.
			existing, gerr := e.deps.Principals.GetByEmail(ctx, t.ID, profile.Email)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, false, nil
		}
		return nil, false, err
	}
	return p, true, nil
}

// effectiveRole aplica el rol pedido solo si existe en el catálogo del
// tenant y es visible en signup; si no, el rol default del tenant.
func effectiveRole(t *core.Tenant, requested string) string {
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

func (e *engine) providerFor(t *core.Tenant, name string) (*Descriptor, core.ProviderConfig, error) {
	d, ok := DescriptorFor(name)
	if !ok {
		return nil, core.ProviderConfig{}, ErrUnknownProvider
	}
	cfg, ok := t.OAuthProviders[d.Name]
	if !ok || !cfg.Enabled {
		return nil, core.ProviderConfig{}, ErrProviderDisabled
	}
	return d, cfg, nil
}
