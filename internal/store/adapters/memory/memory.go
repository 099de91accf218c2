// Package memory is the in-process store adapter used for development and
// tests. All conditional updates run under one mutex, which makes them
// trivially atomic; the pg adapter expresses the same conditions in SQL.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/multipass/internal/store/core"
)

type Adapter struct {
	mu         sync.RWMutex
	tenants    map[string]*core.Tenant    // by ID
	byAPIKey   map[string]string          // apiKey -> tenant ID
	principals map[string]*core.Principal // by ID
	byEmail    map[string]string          // tenantID + "\x00" + email -> principal ID
}

func New() *Adapter {
	return &Adapter{
		tenants:    make(map[string]*core.Tenant),
		byAPIKey:   make(map[string]string),
		principals: make(map[string]*core.Principal),
		byEmail:    make(map[string]string),
	}
}

func (a *Adapter) Tenants() core.TenantRepository    { return (*tenantRepo)(a) }
func (a *Adapter) Principals() core.PrincipalRepository { return (*principalRepo)(a) }

func emailKey(tenantID, email string) string {
	return tenantID + "\x00" + strings.ToLower(strings.TrimSpace(email))
}

// ─── TenantRepository ───

type tenantRepo Adapter

func (r *tenantRepo) GetByAPIKey(ctx context.Context, apiKey string) (*core.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAPIKey[apiKey]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneTenant(r.tenants[id]), nil
}

func (r *tenantRepo) GetByID(ctx context.Context, id string) (*core.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tenants[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneTenant(t), nil
}

func (r *tenantRepo) Create(ctx context.Context, t *core.Tenant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tenants[t.ID]; ok {
		return core.ErrAlreadyExists
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.tenants[t.ID] = cloneTenant(t)
	if t.APIKey != "" {
		r.byAPIKey[t.APIKey] = t.ID
	}
	return nil
}

// ─── PrincipalRepository ───

type principalRepo Adapter

func (r *principalRepo) GetByID(ctx context.Context, id string) (*core.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.principals[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return clonePrincipal(p), nil
}

func (r *principalRepo) GetByEmail(ctx context.Context, tenantID, email string) (*core.Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[emailKey(tenantID, email)]
	if !ok {
		return nil, core.ErrNotFound
	}
	return clonePrincipal(r.principals[id]), nil
}

func (r *principalRepo) Create(ctx context.Context, p *core.Principal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := emailKey(p.TenantID, p.Email)
	if _, ok := r.byEmail[key]; ok {
		return core.ErrAlreadyExists
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.principals[p.ID] = clonePrincipal(p)
	r.byEmail[key] = p.ID
	return nil
}

func (r *principalRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return core.ErrNotFound
	}
	delete(r.byEmail, emailKey(p.TenantID, p.Email))
	delete(r.principals, id)
	return nil
}

func (r *principalRepo) SetChallenge(ctx context.Context, id string, ch core.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return core.ErrNotFound
	}
	c := ch
	p.Challenge = &c
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *principalRepo) ClearChallenge(ctx context.Context, id string, purpose core.ChallengePurpose, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return core.ErrNotFound
	}
	// No-op si un código más nuevo reemplazó al que se quiere limpiar.
	if p.Challenge != nil && p.Challenge.Purpose == purpose && p.Challenge.Code == code {
		p.Challenge = nil
		p.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *principalRepo) challengeMatches(p *core.Principal, purpose core.ChallengePurpose, code string, now time.Time) bool {
	return p.Challenge != nil &&
		p.Challenge.Purpose == purpose &&
		p.Challenge.Code == code &&
		now.Before(p.Challenge.ExpiresAt)
}

func (r *principalRepo) ConsumeChallengeAndSetPassword(ctx context.Context, id string, purpose core.ChallengePurpose, code string, now time.Time, newHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return false, core.ErrNotFound
	}
	if !r.challengeMatches(p, purpose, code, now) {
		return false, nil
	}
	p.Challenge = nil
	p.PasswordHash = newHash
	p.UpdatedAt = now.UTC()
	return true, nil
}

func (r *principalRepo) ConsumeChallengeAndMarkVerified(ctx context.Context, id string, code string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return false, core.ErrNotFound
	}
	if !r.challengeMatches(p, core.PurposeSignupVerify, code, now) {
		return false, nil
	}
	p.Challenge = nil
	p.Verified = true
	p.UpdatedAt = now.UTC()
	return true, nil
}

func (r *principalRepo) PushLoginEntry(ctx context.Context, id string, e core.LoginEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return core.ErrNotFound
	}
	// Push al frente y truncar a LoginHistoryLimit (más reciente primero).
	hist := make([]core.LoginEntry, 0, len(p.LoginHistory)+1)
	hist = append(hist, e)
	hist = append(hist, p.LoginHistory...)
	if len(hist) > core.LoginHistoryLimit {
		hist = hist[:core.LoginHistoryLimit]
	}
	p.LoginHistory = hist
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *principalRepo) MarkDeletionRequested(ctx context.Context, id, reason string, ch core.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return core.ErrNotFound
	}
	c := ch
	p.Challenge = &c
	p.Deletion = core.Deletion{
		State:       core.DeletionRequested,
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *principalRepo) ConfirmDeletion(ctx context.Context, id, code string, now, scheduledAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return false, core.ErrNotFound
	}
	if p.Deletion.State != core.DeletionRequested {
		return false, nil
	}
	if !r.challengeMatches(p, core.PurposeDeleteConfirm, code, now) {
		return false, nil
	}
	p.Challenge = nil
	p.Deletion.State = core.DeletionConfirmed
	p.Deletion.ScheduledAt = scheduledAt
	p.UpdatedAt = now.UTC()
	return true, nil
}

func (r *principalRepo) CancelDeletion(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.principals[id]
	if !ok {
		return false, core.ErrNotFound
	}
	switch p.Deletion.State {
	case core.DeletionRequested:
		// Aún sin confirmar: cancelar siempre es válido.
	case core.DeletionConfirmed:
		if !now.Before(p.Deletion.ScheduledAt) {
			return false, nil
		}
	default:
		return false, nil
	}
	p.Deletion = core.Deletion{}
	p.Challenge = nil
	p.UpdatedAt = now.UTC()
	return true, nil
}

// ─── clones (los callers nunca ven punteros internos) ───

func cloneTenant(t *core.Tenant) *core.Tenant {
	if t == nil {
		return nil
	}
	c := *t
	c.Roles = append([]core.Role(nil), t.Roles...)
	c.RedirectRules = append([]core.RedirectRule(nil), t.RedirectRules...)
	c.Signing.PayloadFields = append([]string(nil), t.Signing.PayloadFields...)
	if t.OAuthProviders != nil {
		c.OAuthProviders = make(map[string]core.ProviderConfig, len(t.OAuthProviders))
		for k, v := range t.OAuthProviders {
			c.OAuthProviders[k] = v
		}
	}
	return &c
}

func clonePrincipal(p *core.Principal) *core.Principal {
	if p == nil {
		return nil
	}
	c := *p
	if p.Challenge != nil {
		ch := *p.Challenge
		c.Challenge = &ch
	}
	c.LoginHistory = append([]core.LoginEntry(nil), p.LoginHistory...)
	return &c
}
