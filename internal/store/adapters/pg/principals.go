package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

type principalRepo struct {
	pool *pgxpool.Pool
}

const principalCols = `id, COALESCE(tenant_id::text, ''), email, first_name, last_name, password_hash,
	role_slug, verified, mfa_enabled, superuser, provider,
	challenge_code, challenge_purpose, challenge_expires_at,
	deletion_state, deletion_reason, deletion_requested_at, deletion_scheduled_at,
	login_history, created_at, updated_at`

func (r *principalRepo) GetByID(ctx context.Context, id string) (*core.Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+principalCols+` FROM principal WHERE id = $1`, id)
	return scanPrincipal(row)
}

func (r *principalRepo) GetByEmail(ctx context.Context, tenantID, email string) (*core.Principal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+principalCols+` FROM principal
		WHERE COALESCE(tenant_id::text, '') = $1 AND lower(email) = lower($2)`,
		tenantID, strings.TrimSpace(email))
	return scanPrincipal(row)
}

func (r *principalRepo) Create(ctx context.Context, p *core.Principal) error {
	hist, err := json.Marshal(p.LoginHistory)
	if err != nil {
		return fmt.Errorf("pg: marshal history: %w", err)
	}
	if p.LoginHistory == nil {
		hist = []byte("[]")
	}
	var tenantID any
	if p.TenantID != "" {
		tenantID = p.TenantID
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO principal (id, tenant_id, email, first_name, last_name, password_hash,
			role_slug, verified, mfa_enabled, superuser, provider, login_history)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		p.ID, tenantID, strings.ToLower(strings.TrimSpace(p.Email)), p.FirstName, p.LastName,
		p.PasswordHash, p.RoleSlug, p.Verified, p.MFAEnabled, p.Superuser, p.Provider, hist,
	)
	if isUniqueViolation(err) {
		return core.ErrAlreadyExists
	}
	return err
}

func (r *principalRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM principal WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *principalRepo) SetChallenge(ctx context.Context, id string, ch core.Challenge) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET challenge_code = $2, challenge_purpose = $3, challenge_expires_at = $4, updated_at = now()
		WHERE id = $1`,
		id, ch.Code, string(ch.Purpose), ch.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *principalRepo) ClearChallenge(ctx context.Context, id string, purpose core.ChallengePurpose, code string) error {
	// Condicional: no borra un código más nuevo que reemplazó a este.
	_, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET challenge_code = NULL, challenge_purpose = NULL, challenge_expires_at = NULL, updated_at = now()
		WHERE id = $1 AND challenge_purpose = $2 AND challenge_code = $3`,
		id, string(purpose), code)
	return err
}

func (r *principalRepo) ConsumeChallengeAndSetPassword(ctx context.Context, id string, purpose core.ChallengePurpose, code string, now time.Time, newHash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET password_hash = $5,
		    challenge_code = NULL, challenge_purpose = NULL, challenge_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND challenge_purpose = $2 AND challenge_code = $3 AND challenge_expires_at > $4`,
		id, string(purpose), code, now, newHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *principalRepo) ConsumeChallengeAndMarkVerified(ctx context.Context, id string, code string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET verified = true,
		    challenge_code = NULL, challenge_purpose = NULL, challenge_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND challenge_purpose = $2 AND challenge_code = $3 AND challenge_expires_at > $4`,
		id, string(core.PurposeSignupVerify), code, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *principalRepo) PushLoginEntry(ctx context.Context, id string, e core.LoginEntry) error {
	entry, err := json.Marshal([]core.LoginEntry{e})
	if err != nil {
		return fmt.Errorf("pg: marshal entry: %w", err)
	}
	// Push atómico acotado: prepend + truncado a 20 en un solo UPDATE.
	tag, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET login_history = jsonb_path_query_array($2::jsonb || login_history, '$[0 to 19]'),
		    updated_at = now()
		WHERE id = $1`,
		id, entry)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *principalRepo) MarkDeletionRequested(ctx context.Context, id, reason string, ch core.Challenge) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET deletion_state = $2, deletion_reason = $3, deletion_requested_at = now(),
		    deletion_scheduled_at = NULL,
		    challenge_code = $4, challenge_purpose = $5, challenge_expires_at = $6,
		    updated_at = now()
		WHERE id = $1`,
		id, string(core.DeletionRequested), reason, ch.Code, string(ch.Purpose), ch.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *principalRepo) ConfirmDeletion(ctx context.Context, id, code string, now, scheduledAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET deletion_state = $5, deletion_scheduled_at = $6,
		    challenge_code = NULL, challenge_purpose = NULL, challenge_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND deletion_state = $2
		  AND challenge_purpose = $3 AND challenge_code = $4 AND challenge_expires_at > $7`,
		id, string(core.DeletionRequested), string(core.PurposeDeleteConfirm), code,
		string(core.DeletionConfirmed), scheduledAt, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *principalRepo) CancelDeletion(ctx context.Context, id string, now time.Time) (bool, error) {
	// Cancelable mientras está pedida, o confirmada pero antes del purge.
	tag, err := r.pool.Exec(ctx, `
		UPDATE principal
		SET deletion_state = '', deletion_reason = '',
		    deletion_requested_at = NULL, deletion_scheduled_at = NULL,
		    challenge_code = NULL, challenge_purpose = NULL, challenge_expires_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND (
			deletion_state = $2
			OR (deletion_state = $3 AND deletion_scheduled_at > $4)
		)`,
		id, string(core.DeletionRequested), string(core.DeletionConfirmed), now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanPrincipal(row pgx.Row) (*core.Principal, error) {
	var (
		p                        core.Principal
		code, purpose            *string
		expiresAt                *time.Time
		delState, delReason      string
		delRequested, delSched   *time.Time
		hist                     []byte
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.Email, &p.FirstName, &p.LastName, &p.PasswordHash,
		&p.RoleSlug, &p.Verified, &p.MFAEnabled, &p.Superuser, &p.Provider,
		&code, &purpose, &expiresAt,
		&delState, &delReason, &delRequested, &delSched,
		&hist, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("pg: scan principal: %w", err)
	}
	if code != nil && purpose != nil && expiresAt != nil {
		p.Challenge = &core.Challenge{
			Code:      *code,
			Purpose:   core.ChallengePurpose(*purpose),
			ExpiresAt: *expiresAt,
		}
	}
	p.Deletion = core.Deletion{State: core.DeletionState(delState), Reason: delReason}
	if delRequested != nil {
		p.Deletion.RequestedAt = *delRequested
	}
	if delSched != nil {
		p.Deletion.ScheduledAt = *delSched
	}
	if len(hist) > 0 {
		if err := json.Unmarshal(hist, &p.LoginHistory); err != nil {
			return nil, fmt.Errorf("pg: decode history: %w", err)
		}
	}
	return &p, nil
}
