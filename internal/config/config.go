package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Storage struct {
		// memory | postgres
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxConns int `yaml:"max_conns"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL time.Duration `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Account struct {
		// DeleteConfirmTTL es la vigencia del código de confirmación de
		// borrado de cuenta (default 24h).
		DeleteConfirmTTL time.Duration `yaml:"delete_confirm_ttl"`
	} `yaml:"account"`

	Tenant struct {
		// CacheTTL acota la ventana en la que un tenant recién desactivado
		// todavía resuelve desde cache.
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"tenant"`

	JWT struct {
		// DefaultSecret es el secreto compartido de fallback para tenants
		// sin clave propia. Obligatorio salvo require_tenant_secret.
		DefaultSecret string `yaml:"default_secret"`

		// RequireTenantSecret apaga el fallback (fail-closed).
		RequireTenantSecret bool `yaml:"require_tenant_secret"`

		SuperuserSecret string `yaml:"superuser_secret"`
	} `yaml:"jwt"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		Username           string `yaml:"username"`
		Password           string `yaml:"password"`
		From               string `yaml:"from"`
		TLS                string `yaml:"tls"`                  // auto | starttls | ssl | none
		InsecureSkipVerify bool   `yaml:"insecure_skip_verify"` // sólo dev
	} `yaml:"smtp"`

	Redirect struct {
		// FallbackURL es el destino final cuando ninguna regla del tenant
		// resuelve el post-login redirect.
		FallbackURL string `yaml:"fallback_url"`
	} `yaml:"redirect"`

	// ───────── OAuth fallback credentials ─────────
	// Credenciales de proceso por provider, usadas cuando las del tenant
	// no pasan la validación.
	Providers map[string]struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"providers"`
}

func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = 10
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == 0 {
		c.Cache.Memory.DefaultTTL = 2 * time.Minute
	}
	if c.Tenant.CacheTTL == 0 {
		c.Tenant.CacheTTL = 30 * time.Second
	}
	if c.SMTP.TLS == "" {
		c.SMTP.TLS = "auto"
	}

	// Overrides por env + salvaguarda prod
	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate chequea los valores críticos.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "postgres":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: postgres driver requires storage.dsn")
	}
	switch c.Cache.Kind {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache kind %q", c.Cache.Kind)
	}
	if c.JWT.SuperuserSecret == "" {
		return fmt.Errorf("config: jwt.superuser_secret is required")
	}
	if !c.JWT.RequireTenantSecret && c.JWT.DefaultSecret == "" {
		return fmt.Errorf("config: jwt.default_secret is required unless require_tenant_secret")
	}
	return nil
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}
func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}
func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}
func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

// applyEnvOverrides: pisa config.yaml con variables de entorno.
func (c *Config) applyEnvOverrides() {
	// APP
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = strings.ToLower(v)
	}

	// SERVER
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}

	// STORAGE
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("POSTGRES_MAX_CONNS"); ok {
		c.Storage.Postgres.MaxConns = v
	}

	// CACHE
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}

	// ACCOUNT
	if v, ok := getEnvDur("ACCOUNT_DELETE_CONFIRM_TTL"); ok {
		c.Account.DeleteConfirmTTL = v
	}

	// TENANT
	if v, ok := getEnvDur("TENANT_CACHE_TTL"); ok {
		c.Tenant.CacheTTL = v
	}

	// JWT
	if v, ok := getEnvStr("JWT_DEFAULT_SECRET"); ok {
		c.JWT.DefaultSecret = v
	}
	if v, ok := getEnvBool("JWT_REQUIRE_TENANT_SECRET"); ok {
		c.JWT.RequireTenantSecret = v
	}
	if v, ok := getEnvStr("JWT_SUPERUSER_SECRET"); ok {
		c.JWT.SuperuserSecret = v
	}

	// SMTP
	if v, ok := getEnvStr("SMTP_HOST"); ok {
		c.SMTP.Host = v
	}
	if v, ok := getEnvInt("SMTP_PORT"); ok {
		c.SMTP.Port = v
	}
	if v, ok := getEnvStr("SMTP_USERNAME"); ok {
		c.SMTP.Username = v
	}
	if v, ok := getEnvStr("SMTP_PASSWORD"); ok {
		c.SMTP.Password = v
	}
	if v, ok := getEnvStr("SMTP_FROM"); ok {
		c.SMTP.From = v
	}
	if v, ok := getEnvStr("SMTP_TLS"); ok {
		c.SMTP.TLS = strings.ToLower(v) // auto|starttls|ssl|none
	}
	if v, ok := getEnvBool("SMTP_INSECURE_SKIP_VERIFY"); ok {
		c.SMTP.InsecureSkipVerify = v
	}

	// REDIRECT
	if v, ok := getEnvStr("REDIRECT_FALLBACK_URL"); ok {
		c.Redirect.FallbackURL = v
	}

	// Guardia dura: en prod el skip de verificación TLS no corre.
	if strings.EqualFold(c.App.Env, "prod") {
		c.SMTP.InsecureSkipVerify = false
	}
}
