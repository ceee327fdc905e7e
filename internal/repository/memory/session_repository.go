// Package memory holds the in-process session store. Sessions are cached
// with an idle TTL and guarded two ways: a version counter for optimistic
// concurrency on writes, and a per-session busy lock so only one turn runs
// against a session at a time.
package memory

import (
	"errors"
	"sync"
	"time"

	"workflow-agent-be/pkg/store"

	"github.com/patrickmn/go-cache"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrConflict = errors.New("session version conflict")
)

const (
	DefaultIdleTTL       = 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

type SessionRepository struct {
	cache   *cache.Cache
	idleTTL time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSessionRepository(idleTTL, sweepInterval time.Duration) *SessionRepository {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	r := &SessionRepository{
		cache:   cache.New(idleTTL, sweepInterval),
		idleTTL: idleTTL,
		locks:   make(map[string]*sync.Mutex),
	}
	// Drop the busy lock along with an evicted session so the lock map does
	// not grow without bound.
	r.cache.OnEvicted(func(sessionID string, _ interface{}) {
		r.mu.Lock()
		delete(r.locks, sessionID)
		r.mu.Unlock()
	})
	return r
}

// Create stores a fresh session. The stored copy is private to the
// repository; callers keep working on their own instance.
func (r *SessionRepository) Create(sess *store.Session) {
	r.cache.Set(sess.ID, sess.Clone(), cache.DefaultExpiration)
}

// Get returns a deep copy of the session, so turn logic can mutate it freely
// before committing through Update. Reading refreshes the idle TTL.
func (r *SessionRepository) Get(sessionID string) (*store.Session, error) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, ErrNotFound
	}
	sess := x.(*store.Session)
	r.cache.Set(sessionID, sess, cache.DefaultExpiration)
	return sess.Clone(), nil
}

// Update commits a mutated working copy if the stored version still matches
// expectedVersion. On success the version is bumped and the idle TTL
// refreshed; a stale expectedVersion returns ErrConflict.
func (r *SessionRepository) Update(sessionID string, expectedVersion int64, updated *store.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	x, found := r.cache.Get(sessionID)
	if !found {
		return ErrNotFound
	}
	current := x.(*store.Session)
	if current.Version != expectedVersion {
		return ErrConflict
	}

	committed := updated.Clone()
	committed.Version = expectedVersion + 1
	r.cache.Set(sessionID, committed, cache.DefaultExpiration)
	return nil
}

// Delete removes the session and its busy lock.
func (r *SessionRepository) Delete(sessionID string) error {
	if _, found := r.cache.Get(sessionID); !found {
		return ErrNotFound
	}
	r.cache.Delete(sessionID)
	return nil
}

// TryLock claims the session's busy lock without blocking. A false return
// means another turn is in flight for this session.
func (r *SessionRepository) TryLock(sessionID string) bool {
	r.mu.Lock()
	lock, ok := r.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[sessionID] = lock
	}
	r.mu.Unlock()
	return lock.TryLock()
}

func (r *SessionRepository) Unlock(sessionID string) {
	r.mu.Lock()
	lock, ok := r.locks[sessionID]
	if ok {
		// TryLock materializes a lock for any id before the caller knows
		// whether the session exists. Drop the entry again when it does not,
		// or unknown-id traffic grows the map without bound.
		if _, found := r.cache.Get(sessionID); !found {
			delete(r.locks, sessionID)
		}
	}
	r.mu.Unlock()
	if ok {
		lock.Unlock()
	}
}

// Count reports live sessions, expired entries excluded by the cache.
func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
