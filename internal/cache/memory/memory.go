// Package memory implementa cache.Cache en proceso con go-cache. Es el
// backend por defecto para desarrollo y tests; con más de una réplica el
// anti-replay de nonces necesita el backend Redis.
package memory

import (
	"time"

	"github.com/dropDatabas3/multipass/internal/cache"
	gocache "github.com/patrickmn/go-cache"
)

// Mem adapta go-cache a la interfaz cache.Cache.
type Mem struct{ c *gocache.Cache }

// New crea el cache con el TTL por defecto dado. El janitor corre cada
// minuto, suficiente para los TTL cortos del hot path de tenants.
func New(defaultTTL time.Duration) cache.Cache {
	return &Mem{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *Mem) Get(k string) ([]byte, bool) {
	v, ok := m.c.Get(k)
	if !ok {
		return nil, false
	}
	b, _ := v.([]byte)
	return b, true
}

// Set guarda el valor. Un ttl negativo cae al TTL por defecto: en este
// dominio nada se cachea para siempre.
func (m *Mem) Set(k string, v []byte, ttl time.Duration) {
	if ttl < 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(k, v, ttl)
}

func (m *Mem) Delete(k string) { m.c.Delete(k) }
