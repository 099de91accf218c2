// Package cache provee una abstracción mínima de cache con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// Se usa en el hot path de resolución de tenant por API key y para el
// anti-replay de nonces de state OAuth.
package cache

import "time"

// Cache define las operaciones mínimas de cache de bytes.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}
