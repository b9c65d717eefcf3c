// Package auth owns the gateway's session lifecycle: exchanging upstream
// credentials for short-lived local handles, resolving handles on protected
// calls, and invalidating them.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"vcfgate/internal/observability/metrics"
)

// Session is one authenticated user's delegated access to the upstream. It is
// reachable only via its handle and is never mutated after creation.
type Session struct {
	Handle        string
	UpstreamToken string
	Origin        string
	ExpiresAt     time.Time
}

// StoreOption configures a Store instance.
type StoreOption func(*Store)

// WithClock injects the time source used for expiry decisions, making
// expiration deterministic under test.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHandleFactory injects the entropy source used to mint session handles.
func WithHandleFactory(factory func() (string, error)) StoreOption {
	return func(s *Store) {
		if factory != nil {
			s.newHandle = factory
		}
	}
}

// WithMetrics injects the recorder used for session lifecycle counters.
func WithMetrics(recorder *metrics.Recorder) StoreOption {
	return func(s *Store) {
		if recorder != nil {
			s.metrics = recorder
		}
	}
}

// Store keeps sessions in an in-memory map guarded by a single mutex. The
// critical sections are pure map reads and writes, so one coarse lock keeps
// every operation atomic with respect to the others. Expired entries are
// evicted lazily the moment a lookup observes them; there is no background
// sweep.
type Store struct {
	mu        sync.Mutex
	sessions  map[string]Session
	ttl       time.Duration
	now       func() time.Time
	newHandle func() (string, error)
	metrics   *metrics.Recorder
}

// NewStore constructs a session store issuing sessions with the provided
// fixed TTL. Sessions never renew.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	store := &Store{
		sessions:  make(map[string]Session),
		ttl:       ttl,
		now:       time.Now,
		newHandle: generateHandle,
		metrics:   metrics.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Create mints a fresh unguessable handle for the provided upstream token and
// returns it together with the TTL, in seconds, that was applied. It fails
// only when the entropy source does.
func (s *Store) Create(upstreamToken, origin string) (string, int, error) {
	handle, err := s.newHandle()
	if err != nil {
		return "", 0, err
	}
	session := Session{
		Handle:        handle,
		UpstreamToken: upstreamToken,
		Origin:        origin,
		ExpiresAt:     s.now().Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[handle] = session
	s.mu.Unlock()
	s.metrics.SessionCreated()
	return handle, int(s.ttl / time.Second), nil
}

// Get returns the session for the handle when it exists and has not expired.
// A lookup that observes an expired session removes it before reporting a
// miss.
func (s *Store) Get(handle string) (Session, bool) {
	s.mu.Lock()
	session, ok := s.sessions[handle]
	if ok && !s.now().Before(session.ExpiresAt) {
		delete(s.sessions, handle)
		s.mu.Unlock()
		s.metrics.SessionExpired()
		return Session{}, false
	}
	s.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	return session, true
}

// Invalidate removes the handle's session if present. It is idempotent and
// never fails.
func (s *Store) Invalidate(handle string) {
	s.mu.Lock()
	_, existed := s.sessions[handle]
	delete(s.sessions, handle)
	s.mu.Unlock()
	if existed {
		s.metrics.SessionInvalidated()
	}
}

// Len reports the number of stored sessions, including any not yet lazily
// evicted.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func generateHandle() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
