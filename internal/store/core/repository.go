package core

import (
	"context"
	"time"
)

// TenantRepository is read access to tenant records. The auth core never
// writes tenants; Create exists for seeding and tests.
type TenantRepository interface {
	// GetByAPIKey looks up a tenant by exact API key equality.
	// Returns ErrNotFound when no tenant holds the key. The active flag
	// is NOT checked here; the resolver distinguishes inactive from
	// missing.
	GetByAPIKey(ctx context.Context, apiKey string) (*Tenant, error)

	// GetByID looks up a tenant by its identifier.
	GetByID(ctx context.Context, id string) (*Tenant, error)

	// Create inserts a tenant (seed/tests only).
	Create(ctx context.Context, t *Tenant) error
}

// PrincipalRepository is read/conditional-write access to principals.
//
// Every mutation is a single atomic conditional update (match-then-set),
// never read-modify-write: two requests for the same principal can
// interleave (resend-OTP racing verify-OTP, concurrent logins).
type PrincipalRepository interface {
	GetByID(ctx context.Context, id string) (*Principal, error)

	// GetByEmail looks up by the unique (email, tenant) pair.
	// tenantID == "" selects the superuser namespace.
	GetByEmail(ctx context.Context, tenantID, email string) (*Principal, error)

	// Create inserts a principal. ErrAlreadyExists on (email, tenant)
	// collision.
	Create(ctx context.Context, p *Principal) error

	// Delete removes a principal. Used to roll back a signup whose
	// verification email could not be sent.
	Delete(ctx context.Context, id string) error

	// SetChallenge stores a one-time code, unconditionally replacing any
	// prior code (last-write-wins per principal).
	SetChallenge(ctx context.Context, id string, ch Challenge) error

	// ClearChallenge clears the stored code only if it still matches
	// (purpose, code). A no-op when a newer code superseded it, so
	// concurrent verifiers within the window do not fail each other.
	ClearChallenge(ctx context.Context, id string, purpose ChallengePurpose, code string) error

	// ConsumeChallengeAndSetPassword atomically matches the stored code
	// (purpose, code, unexpired at now), clears it, and sets the new
	// password hash in the same update. Returns false when the match
	// failed.
	ConsumeChallengeAndSetPassword(ctx context.Context, id string, purpose ChallengePurpose, code string, now time.Time, newHash string) (bool, error)

	// ConsumeChallengeAndMarkVerified atomically matches and clears the
	// signup-verification code and flips the verified flag.
	ConsumeChallengeAndMarkVerified(ctx context.Context, id string, code string, now time.Time) (bool, error)

	// PushLoginEntry appends a login-history entry and truncates the
	// ring to LoginHistoryLimit in one atomic bounded push.
	PushLoginEntry(ctx context.Context, id string, e LoginEntry) error

	// MarkDeletionRequested enters deletion_requested with a reason and
	// stores the confirmation challenge in the same update.
	MarkDeletionRequested(ctx context.Context, id, reason string, ch Challenge) error

	// ConfirmDeletion atomically matches the delete-confirm code, clears
	// it, and enters deletion_confirmed with the given schedule.
	ConfirmDeletion(ctx context.Context, id, code string, now, scheduledAt time.Time) (bool, error)

	// CancelDeletion reverts to active, clearing all deletion metadata,
	// only while now is before the scheduled purge. Returns false past
	// the boundary.
	CancelDeletion(ctx context.Context, id string, now time.Time) (bool, error)
}

// Store agrupa los repositorios que un adapter debe proveer.
type Store interface {
	Tenants() TenantRepository
	Principals() PrincipalRepository
}
