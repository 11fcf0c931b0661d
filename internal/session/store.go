package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgellow/riot-front/internal/crypto"
	"github.com/dgellow/riot-front/internal/log"
)

const (
	// DefaultIdleTTL is how long an untouched browser session survives
	DefaultIdleTTL = 12 * time.Hour
	// DefaultAnonymousIdleTTL bounds untouched sessions that never
	// authenticated. It outlives the signed login state.
	DefaultAnonymousIdleTTL = 15 * time.Minute
)

type entry struct {
	machine    *Machine
	loginNonce string
	createdAt  time.Time
	lastActive time.Time
}

// Store keeps one Machine per browser session, in memory only. Nothing
// here is ever written to disk.
type Store struct {
	entitlements EntitlementExchanger
	regions      RegionResolver
	idleTTL      time.Duration
	anonIdleTTL  time.Duration
	machineOpts  []Option
	now          func() time.Time

	mu       sync.RWMutex
	sessions map[string]*entry
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMachineOptions passes options to every Machine the store creates
func WithMachineOptions(opts ...Option) StoreOption {
	return func(s *Store) {
		s.machineOpts = append(s.machineOpts, opts...)
	}
}

// WithAnonymousIdleTTL overrides DefaultAnonymousIdleTTL
func WithAnonymousIdleTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.anonIdleTTL = ttl
	}
}

// WithStoreClock overrides the clock used for idle expiry
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store. A non-positive idleTTL means DefaultIdleTTL.
func NewStore(entitlements EntitlementExchanger, regions RegionResolver, idleTTL time.Duration, opts ...StoreOption) *Store {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	s := &Store{
		entitlements: entitlements,
		regions:      regions,
		idleTTL:      idleTTL,
		anonIdleTTL:  min(DefaultAnonymousIdleTTL, idleTTL),
		now:          time.Now,
		sessions:     make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new unauthenticated session and returns its handle
func (s *Store) Create() (Handle, error) {
	id, err := crypto.NewSessionID()
	if err != nil {
		return Handle{}, fmt.Errorf("generating session id: %w", err)
	}

	opts := append([]Option{}, s.machineOpts...)
	opts = append(opts, WithHooks(s.hooksFor(id)))
	machine := NewMachine(s.entitlements, s.regions, opts...)

	now := s.now()
	s.mu.Lock()
	s.sessions[id] = &entry{
		machine:    machine,
		createdAt:  now,
		lastActive: now,
	}
	s.mu.Unlock()

	log.LogDebugWithFields("session", "Created session", map[string]any{
		"session": log.RedactToken(id),
	})
	return Handle{ID: id, Machine: machine}, nil
}

// hooksFor drops the transient login material of a session as soon as its
// machine leaves the authenticating phase.
func (s *Store) hooksFor(id string) Hooks {
	drop := func() { s.clearLoginNonce(id) }
	return Hooks{
		OnAuthenticated: func(State) { drop() },
		OnFailed:        func(State) { drop() },
		OnReset:         drop,
	}
}

// Get returns the handle for id and marks the session active
func (s *Store) Get(id string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return Handle{}, ErrSessionNotFound
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.sessions, id)
		return Handle{}, ErrSessionNotFound
	}
	e.lastActive = now
	return Handle{ID: id, Machine: e.machine}, nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// SetLoginNonce records the nonce of a login redirect started by session id
func (s *Store) SetLoginNonce(id, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	e.loginNonce = nonce
	return nil
}

// LoginNonce returns the pending login nonce of a session, if any
func (s *Store) LoginNonce(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[id]
	if !ok || e.loginNonce == "" {
		return "", false
	}
	return e.loginNonce, true
}

func (s *Store) clearLoginNonce(id string) {
	s.mu.Lock()
	if e, ok := s.sessions[id]; ok {
		e.loginNonce = ""
	}
	s.mu.Unlock()
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CleanupExpired removes idle sessions and sessions whose credentials have
// passed their expiry. Credentials are never refreshed, so such a session
// can only be replaced by a fresh login.
func (s *Store) CleanupExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// expired reports whether e should be dropped. Sessions that never reached
// Authenticated get the shorter anonymous idle window so unauthenticated
// traffic cannot pin memory for the full idle TTL.
func (s *Store) expired(e *entry, now time.Time) bool {
	idle := now.Sub(e.lastActive)
	if idle > s.idleTTL {
		return true
	}

	state := e.machine.Snapshot()
	if !state.IsAuthenticated && state.Status != StatusAuthenticating && idle > s.anonIdleTTL {
		return true
	}
	return state.Expired(now)
}
