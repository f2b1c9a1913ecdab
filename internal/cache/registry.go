package cache

import (
	"context"
	"sync"
	"time"

	"github.com/btangonan/calm-productivity-app-sub002/internal/domain"
)

// DefaultTTL bounds the lifetime of an invalidation mark. A crashed or
// leaked write can never wedge a key in "always stale" state; the registry
// self-heals once the mark ages out.
const DefaultTTL = 5 * time.Minute

// Registry records which cache keys a write has made stale. Marks are
// scoped per user so callers cannot invalidate each other's entries.
type Registry interface {
	MarkInvalidated(ctx context.Context, scope string, keys []string) error
	IsInvalidated(ctx context.Context, scope, key string) (bool, error)
	MarkFresh(ctx context.Context, scope, key string) error
}

// ScopeFor derives the user scope from the stable subject identifier,
// falling back to email.
func ScopeFor(identity domain.Identity) string {
	if identity.InternalID != "" {
		return "user_" + identity.InternalID
	}
	return "user_" + identity.Email
}

// memoryRegistry is the process-local backend. Marks set here are invisible
// to other running instances; read-after-write freshness only holds for
// requests routed to the same instance within the TTL window.
type memoryRegistry struct {
	mu    sync.Mutex
	marks map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryRegistry builds the in-process backend. A nil clock uses
// time.Now; a non-positive ttl uses DefaultTTL.
func NewMemoryRegistry(ttl time.Duration, now func() time.Time) Registry {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &memoryRegistry{
		marks: make(map[string]time.Time),
		ttl:   ttl,
		now:   now,
	}
}

// MarkInvalidated stamps one mark per key. Expired marks are swept on every
// write to bound memory; lazy expiry on read keeps correctness regardless.
func (r *memoryRegistry) MarkInvalidated(_ context.Context, scope string, keys []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, stamped := range r.marks {
		if now.Sub(stamped) > r.ttl {
			delete(r.marks, key)
		}
	}
	for _, key := range keys {
		r.marks[fullKey(scope, key)] = now
	}
	return nil
}

// IsInvalidated reports whether a live mark exists for (scope, key). An
// expired mark is deleted as a side effect and the call returns false.
func (r *memoryRegistry) IsInvalidated(_ context.Context, scope, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := fullKey(scope, key)
	stamped, ok := r.marks[k]
	if !ok {
		return false, nil
	}
	if r.now().Sub(stamped) > r.ttl {
		delete(r.marks, k)
		return false, nil
	}
	return true, nil
}

// MarkFresh removes a mark unconditionally, so later checks skip the
// expiry comparison once a fresher value has been computed.
func (r *memoryRegistry) MarkFresh(_ context.Context, scope, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.marks, fullKey(scope, key))
	return nil
}

func fullKey(scope, key string) string {
	return scope + ":" + key
}
