package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SUPERUSER_SECRET", "su")
	t.Setenv("JWT_DEFAULT_SECRET", "d")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "memory", cfg.Storage.Driver)
	require.Equal(t, "memory", cfg.Cache.Kind)
	require.Equal(t, 30*time.Second, cfg.Tenant.CacheTTL)
	require.Equal(t, "auto", cfg.SMTP.TLS)
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	path := writeYAML(t, `
server:
  addr: ":9000"
jwt:
  default_secret: yaml-secret
  superuser_secret: yaml-su
tenant:
  cache_ttl: 45s
providers:
  google:
    client_id: 123-abc.apps.googleusercontent.com
    client_secret: sec
`)
	// El entorno pisa al YAML.
	t.Setenv("SERVER_ADDR", ":7000")
	t.Setenv("REDIS_PREFIX", "multipass")
	t.Setenv("ACCOUNT_DELETE_CONFIRM_TTL", "48h")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":7000", cfg.Server.Addr)
	require.Equal(t, "yaml-secret", cfg.JWT.DefaultSecret)
	require.Equal(t, 45*time.Second, cfg.Tenant.CacheTTL)
	require.Equal(t, "sec", cfg.Providers["google"].ClientSecret)
	require.Equal(t, "multipass", cfg.Cache.Redis.Prefix)
	require.Equal(t, 48*time.Hour, cfg.Account.DeleteConfirmTTL)
}

func TestValidateFailures(t *testing.T) {
	t.Setenv("JWT_SUPERUSER_SECRET", "su")
	t.Setenv("JWT_DEFAULT_SECRET", "d")

	// Driver desconocido.
	t.Setenv("STORAGE_DRIVER", "cassandra")
	_, err := Load("")
	require.Error(t, err)

	// Postgres sin DSN.
	t.Setenv("STORAGE_DRIVER", "postgres")
	_, err = Load("")
	require.Error(t, err)
	t.Setenv("STORAGE_DRIVER", "memory")

	// Sin superuser secret.
	t.Setenv("JWT_SUPERUSER_SECRET", "")
	_, err = Load("")
	require.Error(t, err)
}

func TestRequireTenantSecretSkipsDefault(t *testing.T) {
	t.Setenv("JWT_SUPERUSER_SECRET", "su")
	t.Setenv("JWT_REQUIRE_TENANT_SECRET", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.True(t, cfg.JWT.RequireTenantSecret)
	require.Empty(t, cfg.JWT.DefaultSecret)
}

func TestProdForcesTLSVerify(t *testing.T) {
	t.Setenv("JWT_SUPERUSER_SECRET", "su")
	t.Setenv("JWT_DEFAULT_SECRET", "d")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("SMTP_INSECURE_SKIP_VERIFY", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	require.False(t, cfg.SMTP.InsecureSkipVerify)
}
