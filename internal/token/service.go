// Package token emite y verifica bearer tokens bajo la configuración
// criptográfica de cada tenant.
//
// La verificación es en dos fases porque la clave de firma depende del
// tenant y el tenant viene codificado DENTRO del propio token:
//
//  1. decode sin verificar firma, solo para leer organizationId
//  2. lookup de la config de firma de ese tenant (o sentinel superuser)
//  3. re-verificación completa con el algoritmo/secret correcto
//
// La fase 1 jamás se usa para autorizar: solo para elegir la clave.
package token

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/store/core"
)

// Claims estándar del dominio.
const (
	ClaimOrganizationID = "organizationId"
	ClaimUserID         = "userId"
	ClaimUserName       = "userName"
	ClaimEmail          = "email"
	ClaimRole           = "role"
	ClaimFirstName      = "firstName"
	ClaimLastName       = "lastName"
	ClaimProvider       = "provider"
	ClaimVerified       = "verified"
)

// SuperuserSentinel es el valor de organizationId que marca tokens de
// superusuario. El código downstream lo chequea explícitamente.
const SuperuserSentinel = "superuser"

const (
	// DefaultTTL es la expiración por defecto si el tenant no configura otra.
	DefaultTTL = 24 * time.Hour

	// SuperuserTTL: efectivamente no expira (1 año).
	SuperuserTTL = 365 * 24 * time.Hour
)

// Errores de verificación. ErrExpired envuelve a ErrInvalid: para control
// de acceso ambos son lo mismo, la distinción es solo para mensajería.
var (
	ErrInvalid       = errors.New("token: invalid")
	ErrExpired       = fmt.Errorf("%w: expired", ErrInvalid)
	ErrMisconfigured = errors.New("token: tenant signing misconfigured")
)

// supportedAlgs es el set cerrado de algoritmos por tenant.
var supportedAlgs = map[string]bool{
	"HS256": true, "HS384": true, "HS512": true,
	"RS256": true, "RS384": true, "RS512": true,
}

// TenantLookup resuelve un tenant por ID durante la verificación.
type TenantLookup func(ctx context.Context, id string) (*core.Tenant, error)

// VerifiedClaims es el resultado de una verificación exitosa.
type VerifiedClaims struct {
	Claims         jwtv5.MapClaims
	OrganizationID string
	Superuser      bool
}

// Service emite y verifica tokens.
type Service interface {
	// Issue firma un token para un principal bajo la config del tenant.
	Issue(ctx context.Context, p *core.Principal, t *core.Tenant) (string, time.Time, error)

	// IssueSuperuser firma con la clave fija de superusuario (sin tenant).
	IssueSuperuser(ctx context.Context, p *core.Principal) (string, time.Time, error)

	// Verify ejecuta la verificación en dos fases.
	Verify(ctx context.Context, token string) (*VerifiedClaims, error)
}

// Config es la configuración de proceso del servicio de tokens.
// Se inyecta en el constructor: nada de estado global ambiente.
type Config struct {
	// DefaultSecret es el secreto compartido de fallback cuando un tenant
	// no configuró clave propia. Riesgo latente de colisión cross-tenant;
	// cada uso se loguea como condición degradada.
	DefaultSecret string

	// RequireTenantSecret hace el fallback fail-closed: sin secret de
	// tenant la emisión/verificación falla con ErrMisconfigured.
	RequireTenantSecret bool

	// SuperuserSecret es la clave fija (HS512) del path de superusuario.
	SuperuserSecret string
}

type service struct {
	cfg     Config
	tenants TenantLookup
}

// New crea el Service. tenants se usa en la fase 2 de Verify.
func New(cfg Config, tenants TenantLookup) Service {
	return &service{cfg: cfg, tenants: tenants}
}

// ─── Emisión ───

func (s *service) Issue(ctx context.Context, p *core.Principal, t *core.Tenant) (string, time.Time, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("token"), logger.Op("Issue"))

	alg, key, err := s.signingKeyFor(ctx, t)
	if err != nil {
		return "", time.Time{}, err
	}

	ttl := DefaultTTL
	if t.Signing.TokenTTL > 0 {
		ttl = t.Signing.TokenTTL
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)

	claims := projectClaims(p, t)
	// Piso de seguridad: organizationId SIEMPRE va, aunque el tenant lo
	// haya omitido de su lista de campos.
	claims[ClaimOrganizationID] = t.ID
	claims["iat"] = now.Unix()
	claims["exp"] = exp.Unix()

	tk := jwtv5.NewWithClaims(jwtv5.GetSigningMethod(alg), claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(key)
	if err != nil {
		log.Error("sign failed", logger.OrgID(t.ID), logger.Err(err))
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, exp, nil
}

func (s *service) IssueSuperuser(ctx context.Context, p *core.Principal) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(SuperuserTTL)

	claims := jwtv5.MapClaims{
		ClaimUserID:         p.ID,
		ClaimUserName:       p.FullName(),
		ClaimEmail:          p.Email,
		ClaimOrganizationID: SuperuserSentinel,
		"iat":               now.Unix(),
		"exp":               exp.Unix(),
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS512, claims)
	signed, err := tk.SignedString([]byte(s.cfg.SuperuserSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign superuser: %w", err)
	}
	return signed, exp, nil
}

// projectClaims construye el mapa de claims iterando la lista ordenada de
// campos configurada por el tenant. El orden no afecta nada funcionalmente
// pero se respeta para que la salida sea determinística.
func projectClaims(p *core.Principal, t *core.Tenant) jwtv5.MapClaims {
	fields := t.Signing.PayloadFields
	if len(fields) == 0 {
		fields = []string{ClaimUserID, ClaimUserName, ClaimEmail, ClaimRole}
	}
	claims := jwtv5.MapClaims{}
	for _, f := range fields {
		switch f {
		case ClaimUserID:
			claims[f] = p.ID
		case ClaimUserName:
			claims[f] = p.FullName()
		case ClaimEmail:
			claims[f] = p.Email
		case ClaimRole:
			claims[f] = p.RoleSlug
		case ClaimFirstName:
			claims[f] = p.FirstName
		case ClaimLastName:
			claims[f] = p.LastName
		case ClaimProvider:
			claims[f] = p.Provider
		case ClaimVerified:
			claims[f] = p.Verified
		case ClaimOrganizationID:
			claims[f] = t.ID
		default:
			// Campo pass-through desconocido: se emite vacío para que el
			// shape del token sea estable para los consumidores.
			claims[f] = ""
		}
	}
	return claims
}

// ─── Verificación (dos fases) ───

func (s *service) Verify(ctx context.Context, raw string) (*VerifiedClaims, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("token"), logger.Op("Verify"))

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalid
	}

	// Fase 1: decode SIN verificar firma, solo para leer organizationId.
	// Nada de lo leído acá es confiable todavía.
	unverified := jwtv5.MapClaims{}
	parser := jwtv5.NewParser()
	if _, _, err := parser.ParseUnverified(raw, unverified); err != nil {
		return nil, ErrInvalid
	}
	orgID, _ := unverified[ClaimOrganizationID].(string)
	if orgID == "" {
		return nil, ErrInvalid
	}

	// Fase 2: resolver la clave según el claim (no verificado) de tenant.
	var (
		alg string
		key any
	)
	superuser := orgID == SuperuserSentinel
	if superuser {
		alg = "HS512"
		key = []byte(s.cfg.SuperuserSecret)
	} else {
		t, err := s.tenants(ctx, orgID)
		if err != nil {
			// Tenant inexistente: el token es inválido, no un 500.
			log.Debug("claimed tenant unknown", logger.OrgID(orgID))
			return nil, ErrInvalid
		}
		alg, key, err = s.verifyKeyFor(ctx, t)
		if err != nil {
			return nil, ErrInvalid
		}
	}

	// Fase 3: re-verificación completa. Un alg del header distinto al
	// configurado por el tenant falla acá por WithValidMethods.
	tok, err := jwtv5.Parse(raw, func(t *jwtv5.Token) (any, error) { return key, nil },
		jwtv5.WithValidMethods([]string{alg}))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok || !tok.Valid {
		return nil, ErrInvalid
	}

	// organizationId verificado debe coincidir con el usado para elegir
	// la clave (ya garantizado porque la firma cubre el payload).
	return &VerifiedClaims{
		Claims:         claims,
		OrganizationID: orgID,
		Superuser:      superuser,
	}, nil
}

// ─── Selección de claves ───

func (s *service) signingKeyFor(ctx context.Context, t *core.Tenant) (string, any, error) {
	alg := strings.ToUpper(strings.TrimSpace(t.Signing.Algorithm))
	if alg == "" {
		alg = "HS256"
	}
	if !supportedAlgs[alg] {
		return "", nil, fmt.Errorf("%w: unsupported algorithm %q", ErrMisconfigured, alg)
	}

	secret := t.Signing.Secret
	if secret == "" {
		if s.cfg.RequireTenantSecret {
			return "", nil, fmt.Errorf("%w: no tenant secret and fallback disabled", ErrMisconfigured)
		}
		// Dos tenants sin clave propia comparten firma: condición de
		// seguridad degradada, se loguea siempre.
		logger.From(ctx).Warn("tenant has no signing secret, using shared default",
			logger.Component("token"), logger.OrgID(t.ID))
		secret = s.cfg.DefaultSecret
		alg = "HS256"
	}

	if strings.HasPrefix(alg, "RS") {
		priv, err := jwtv5.ParseRSAPrivateKeyFromPEM([]byte(secret))
		if err != nil {
			return "", nil, fmt.Errorf("%w: bad RSA key: %v", ErrMisconfigured, err)
		}
		return alg, priv, nil
	}
	return alg, []byte(secret), nil
}

func (s *service) verifyKeyFor(ctx context.Context, t *core.Tenant) (string, any, error) {
	alg, key, err := s.signingKeyFor(ctx, t)
	if err != nil {
		return "", nil, err
	}
	if priv, ok := key.(*rsa.PrivateKey); ok {
		return alg, &priv.PublicKey, nil
	}
	return alg, key, nil
}
