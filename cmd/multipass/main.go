package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/multipass/internal/account"
	"github.com/dropDatabas3/multipass/internal/cache"
	memcache "github.com/dropDatabas3/multipass/internal/cache/memory"
	rediscache "github.com/dropDatabas3/multipass/internal/cache/redis"
	"github.com/dropDatabas3/multipass/internal/config"
	"github.com/dropDatabas3/multipass/internal/email"
	"github.com/dropDatabas3/multipass/internal/federation"
	httpserver "github.com/dropDatabas3/multipass/internal/http"
	"github.com/dropDatabas3/multipass/internal/observability/logger"
	"github.com/dropDatabas3/multipass/internal/otp"
	"github.com/dropDatabas3/multipass/internal/security/password"
	tokens "github.com/dropDatabas3/multipass/internal/security/token"
	memstore "github.com/dropDatabas3/multipass/internal/store/adapters/memory"
	pgstore "github.com/dropDatabas3/multipass/internal/store/adapters/pg"
	"github.com/dropDatabas3/multipass/internal/store/core"
	"github.com/dropDatabas3/multipass/internal/tenant"
	"github.com/dropDatabas3/multipass/internal/token"
)

func main() {
	// .env primero: config.Load lee overrides de entorno.
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:   "multipass",
		Short: "Núcleo de autenticación multi-tenant",
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", envOr("MULTIPASS_CONFIG", ""), "Ruta al config.yaml (env MULTIPASS_CONFIG)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Levantar el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cfgPath)
		},
	}

	var seedEmail, seedPassword string
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Crear un tenant demo y un superusuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seedEmail == "" || seedPassword == "" {
				return fmt.Errorf("--email y --password son requeridos")
			}
			return runSeed(cmd.Context(), cfgPath, seedEmail, seedPassword)
		},
	}
	seedCmd.Flags().StringVar(&seedEmail, "email", "", "Email del superusuario")
	seedCmd.Flags().StringVar(&seedPassword, "password", "", "Password del superusuario")

	root.AddCommand(serveCmd)
	root.AddCommand(seedCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func runServe(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       envOr("LOG_LEVEL", "info"),
		ServiceName: "multipass",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.L()

	store, ready, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	c := buildCache(cfg)

	resolver := tenant.NewResolver(tenant.Deps{
		Tenants: store.Tenants(),
		Cache:   c,
		TTL:     cfg.Tenant.CacheTTL,
	})

	tokenSvc := token.New(token.Config{
		DefaultSecret:       cfg.JWT.DefaultSecret,
		RequireTenantSecret: cfg.JWT.RequireTenantSecret,
		SuperuserSecret:     cfg.JWT.SuperuserSecret,
	}, func(ctx context.Context, id string) (*core.Tenant, error) {
		return store.Tenants().GetByID(ctx, id)
	})

	sender := buildSender(cfg)
	otpMgr := otp.NewManager(otp.Deps{Principals: store.Principals()})

	accounts := account.NewService(account.Deps{
		Principals:       store.Principals(),
		Tokens:           tokenSvc,
		OTP:              otpMgr,
		Email:            sender,
		DeleteConfirmTTL: cfg.Account.DeleteConfirmTTL,
	})

	engine := federation.NewEngine(federation.Deps{
		Principals: store.Principals(),
		Tokens:     tokenSvc,
		Defaults:   defaultCredentials(cfg),
		Cache:      c,
	})

	handler := httpserver.NewRouter(httpserver.RouterDeps{
		Tenants:             resolver,
		TenantsR:            store.Tenants(),
		Tokens:              tokenSvc,
		Accounts:            accounts,
		Engine:              engine,
		FallbackRedirectURL: cfg.Redirect.FallbackURL,
		Ready:               ready,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runSeed(ctx context.Context, cfgPath, email, pass string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: "info", ServiceName: "multipass"})

	store, _, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	apiKey, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return err
	}
	t := &core.Tenant{
		ID:     uuid.NewString(),
		Slug:   "demo",
		Name:   "Demo",
		APIKey: apiKey,
		Active: true,
		Signing: core.SigningConfig{
			Algorithm: "HS256",
		},
		Roles: []core.Role{
			{Name: "User", Slug: "user", IsDefault: true, VisibleOnSignup: true},
			{Name: "Admin", Slug: "admin"},
		},
	}
	if err := store.Tenants().Create(ctx, t); err != nil {
		return fmt.Errorf("seed tenant: %w", err)
	}

	hash, err := password.Hash(password.Default, pass)
	if err != nil {
		return err
	}
	su := &core.Principal{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Verified:     true,
		Superuser:    true,
	}
	if err := store.Principals().Create(ctx, su); err != nil {
		return fmt.Errorf("seed superuser: %w", err)
	}

	fmt.Printf("tenant demo creado\n  id:      %s\n  api_key: %s\nsuperusuario: %s\n", t.ID, t.APIKey, su.Email)
	return nil
}

// buildStore arma el adapter de storage según config y devuelve el check
// de readiness y el cierre.
func buildStore(ctx context.Context, cfg *config.Config) (core.Store, func(r *http.Request) error, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		a, err := pgstore.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, nil, nil, err
		}
		ready := func(r *http.Request) error { return a.Ping(r.Context()) }
		return a, ready, a.Close, nil
	default:
		a := memstore.New()
		return a, nil, func() {}, nil
	}
}

func buildCache(cfg *config.Config) cache.Cache {
	if cfg.Cache.Kind == "redis" {
		return rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
	}
	return memcache.New(cfg.Cache.Memory.DefaultTTL)
}

func buildSender(cfg *config.Config) email.Sender {
	if cfg.SMTP.Host == "" {
		// Sin SMTP configurado (dev/tests) los códigos solo van al storage.
		return email.Noop{}
	}
	s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	s.TLSMode = cfg.SMTP.TLS
	s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
	return s
}

func defaultCredentials(cfg *config.Config) federation.DefaultCredentials {
	out := federation.DefaultCredentials{}
	for name, p := range cfg.Providers {
		out[strings.ToLower(name)] = federation.Credentials{
			ClientID:     p.ClientID,
			ClientSecret: p.ClientSecret,
		}
	}
	return out
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
