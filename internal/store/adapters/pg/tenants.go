package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

type tenantRepo struct {
	pool *pgxpool.Pool
}

const tenantCols = `id, slug, name, api_key, active, signing, oauth_providers, redirect_rules, roles, created_at, updated_at`

func (r *tenantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*core.Tenant, error) {
	// Igualdad exacta sobre índice único: hot path de cada request público.
	row := r.pool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenant WHERE api_key = $1`, apiKey)
	return scanTenant(row)
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*core.Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenant WHERE id = $1`, id)
	return scanTenant(row)
}

func (r *tenantRepo) Create(ctx context.Context, t *core.Tenant) error {
	signing, err := json.Marshal(t.Signing)
	if err != nil {
		return fmt.Errorf("pg: marshal signing: %w", err)
	}
	providers, err := json.Marshal(t.OAuthProviders)
	if err != nil {
		return fmt.Errorf("pg: marshal providers: %w", err)
	}
	rules, err := json.Marshal(t.RedirectRules)
	if err != nil {
		return fmt.Errorf("pg: marshal rules: %w", err)
	}
	roles, err := json.Marshal(t.Roles)
	if err != nil {
		return fmt.Errorf("pg: marshal roles: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO tenant (id, slug, name, api_key, active, signing, oauth_providers, redirect_rules, roles)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		t.ID, t.Slug, t.Name, t.APIKey, t.Active, signing, providers, rules, roles,
	)
	if isUniqueViolation(err) {
		return core.ErrAlreadyExists
	}
	return err
}

func scanTenant(row pgx.Row) (*core.Tenant, error) {
	var (
		t                                 core.Tenant
		signing, providers, rules, roles  []byte
		createdAt, updatedAt              time.Time
	)
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.APIKey, &t.Active,
		&signing, &providers, &rules, &roles, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: scan tenant: %w", err)
	}
	if err := json.Unmarshal(signing, &t.Signing); err != nil {
		return nil, fmt.Errorf("pg: decode signing: %w", err)
	}
	if err := json.Unmarshal(providers, &t.OAuthProviders); err != nil {
		return nil, fmt.Errorf("pg: decode providers: %w", err)
	}
	if err := json.Unmarshal(rules, &t.RedirectRules); err != nil {
		return nil, fmt.Errorf("pg: decode rules: %w", err)
	}
	if err := json.Unmarshal(roles, &t.Roles); err != nil {
		return nil, fmt.Errorf("pg: decode roles: %w", err)
	}
	t.CreatedAt, t.UpdatedAt = createdAt, updatedAt
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
