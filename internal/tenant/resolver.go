// Package tenant resuelve la organización de un request a partir de su
// API key. Está en el hot path de todos los endpoints públicos.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dropDatabas3/multipass/internal/cache"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	tokens "github.com/dropDatabas3/multipass/internal/security/token"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/util"
)

// Resolver mapea una API key a un tenant activo.
type Resolver interface {
	// Resolve busca el tenant por igualdad exacta de API key.
	// Distingue tenant inexistente (ErrNotFound) de deshabilitado
	// (ErrInactive) para que el caller pueda dar un mensaje accionable.
	Resolve(ctx context.Context, apiKey string) (*core.Tenant, error)
}

// Errores del resolver.
var (
	ErrMissingKey = fmt.Errorf("tenant: missing api key")
	ErrNotFound   = fmt.Errorf("tenant: unknown api key")
	ErrInactive   = fmt.Errorf("tenant: organization is inactive")
)

// Deps contiene las dependencias del resolver.
type Deps struct {
	Tenants core.TenantRepository
	Cache   cache.Cache   // opcional; nil = sin cache
	TTL     time.Duration // TTL del cache read-through (default 30s)
}

type resolver struct {
	tenants core.TenantRepository
	cache   cache.Cache
	ttl     time.Duration
}

// NewResolver crea un Resolver con cache read-through opcional.
func NewResolver(d Deps) Resolver {
	if d.TTL <= 0 {
		d.TTL = 30 * time.Second
	}
	return &resolver{tenants: d.Tenants, cache: d.Cache, ttl: d.TTL}
}

func (r *resolver) Resolve(ctx context.Context, apiKey string) (*core.Tenant, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("tenant.resolver"))

	if apiKey == "" {
		return nil, ErrMissingKey
	}

	t, err := r.lookup(ctx, apiKey)
	if err != nil {
		if core.IsNotFound(err) {
			log.Debug("api key unknown", logger.String("api_key", util.MaskKey(apiKey)))
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Inactivo NO es NotFound: el operador deshabilitó la organización
	// a propósito y el mensaje al usuario debe reflejarlo.
	if !t.Active {
		log.Info("tenant inactive", logger.OrgID(t.ID))
		return nil, ErrInactive
	}

	return t, nil
}

func (r *resolver) lookup(ctx context.Context, apiKey string) (*core.Tenant, error) {
	if r.cache == nil {
		return r.tenants.GetByAPIKey(ctx, apiKey)
	}

	// Nunca usar la API key cruda como key de cache (podría terminar en
	// un backend compartido); se guarda hasheada.
	key := "tenant:key:" + tokens.SHA256Base64URL(apiKey)
	if b, ok := r.cache.Get(key); ok {
		var t core.Tenant
		if err := json.Unmarshal(b, &t); err == nil {
			return &t, nil
		}
		// Entrada corrupta: descartar y seguir al store.
		r.cache.Delete(key)
	}

	t, err := r.tenants.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(t); err == nil {
		r.cache.Set(key, b, r.ttl)
	}
	return t, nil
}
