package session

import (
	"context"
	"sync"
	"time"

	"github.com/dgellow/riot-front/internal/exchange"
	"github.com/dgellow/riot-front/internal/log"
	"github.com/dgellow/riot-front/internal/token"
	"golang.org/x/sync/errgroup"
)

// EntitlementExchanger trades an access token for an entitlement token.
type EntitlementExchanger interface {
	Exchange(ctx context.Context, accessToken string) (string, error)
}

// RegionResolver resolves the region and shard of a token pair.
type RegionResolver interface {
	Resolve(ctx context.Context, accessToken, idToken string) (exchange.Region, error)
}

// Hooks are lifecycle callbacks. They run outside the machine's lock and
// must not call back into Authenticate.
type Hooks struct {
	OnInit          func()
	OnAuthenticated func(State)
	OnFailed        func(State)
	OnReset         func()
}

// Machine owns the authentication state of one browser session. It is the
// only writer of that state; readers get copies through Snapshot.
type Machine struct {
	entitlements EntitlementExchanger
	regions      RegionResolver
	hooks        Hooks
	now          func() time.Time

	mu         sync.Mutex
	state      State
	generation uint64
}

// Option configures a Machine.
type Option func(*Machine)

// WithHooks installs lifecycle hooks.
func WithHooks(hooks Hooks) Option {
	return func(m *Machine) {
		m.hooks = hooks
	}
}

// WithClock overrides the wall clock used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a machine in the Unauthenticated state.
func NewMachine(entitlements EntitlementExchanger, regions RegionResolver, opts ...Option) *Machine {
	m := &Machine{
		entitlements: entitlements,
		regions:      regions,
		now:          time.Now,
		state:        State{Status: StatusUnauthenticated},
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.hooks.OnInit != nil {
		m.hooks.OnInit()
	}
	return m
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Authenticate runs the redirect fragment through parsing and both token
// exchanges. Credentials are published only when every step succeeded;
// any failure leaves the machine Failed with LastError set and no tokens.
//
// Only a fragment carrying an access token starts an attempt. A provider
// error fragment fails a session that is not authenticated; anything else
// returns ErrNoRedirectCredentials and leaves the state untouched.
//
// The returned error is ErrAuthenticationInProgress or
// ErrNoRedirectCredentials. All other failures are reported through the
// returned State.
func (m *Machine) Authenticate(ctx context.Context, fragment string) (State, error) {
	kind := token.ClassifyFragment(fragment)

	m.mu.Lock()
	if m.state.Status == StatusAuthenticating {
		m.mu.Unlock()
		return State{}, ErrAuthenticationInProgress
	}
	if kind == token.FragmentUnrelated || (kind == token.FragmentProviderError && m.state.IsAuthenticated) {
		current := m.state
		m.mu.Unlock()
		return current, ErrNoRedirectCredentials
	}
	m.generation++
	generation := m.generation
	m.state = State{Status: StatusAuthenticating, Pending: true}
	m.mu.Unlock()

	next := m.run(ctx, fragment)

	m.mu.Lock()
	if m.generation != generation {
		// Logged out while in flight: the result belongs to an abandoned attempt.
		current := m.state
		m.mu.Unlock()
		log.LogDebugWithFields("session", "Discarding result of abandoned authentication", map[string]any{
			"status": string(next.Status),
		})
		return current, nil
	}
	m.state = next
	m.mu.Unlock()

	if next.IsAuthenticated {
		log.LogInfoWithFields("session", "Session authenticated", map[string]any{
			"subject": next.SubjectID,
			"region":  next.Region,
			"shard":   next.Shard,
		})
		if m.hooks.OnAuthenticated != nil {
			m.hooks.OnAuthenticated(next)
		}
	} else {
		log.LogWarnWithFields("session", "Authentication failed", map[string]any{
			"error": next.LastError,
		})
		if m.hooks.OnFailed != nil {
			m.hooks.OnFailed(next)
		}
	}

	return next, nil
}

func (m *Machine) run(ctx context.Context, fragment string) State {
	creds, err := token.ParseFragmentAt(fragment, m.now())
	if err != nil {
		return failedState(err)
	}

	var (
		entitlement string
		region      exchange.Region
	)

	// The two exchanges only depend on the parsed tokens. The first failure
	// cancels the other and is the one reported.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entitlement, err = m.entitlements.Exchange(gctx, creds.AccessToken)
		return err
	})
	g.Go(func() error {
		var err error
		region, err = m.regions.Resolve(gctx, creds.AccessToken, creds.IDToken)
		return err
	})
	if err := g.Wait(); err != nil {
		return failedState(err)
	}

	next := State{
		Status:           StatusAuthenticated,
		AccessToken:      creds.AccessToken,
		EntitlementToken: entitlement,
		IDToken:          creds.IDToken,
		SubjectID:        creds.SubjectID,
		Region:           region.Region,
		Shard:            region.Shard,
		IsAuthenticated:  true,
		ExpiresAt:        creds.ExpiresAt(),
	}
	if !next.Complete() {
		return failedState(errIncompleteCredentials)
	}
	return next
}

func failedState(err error) State {
	return State{
		Status:    StatusFailed,
		LastError: DescribeError(err),
	}
}

// Logout resets the machine to the empty Unauthenticated state. An attempt
// still in flight keeps running but its result is discarded.
func (m *Machine) Logout() {
	m.mu.Lock()
	m.generation++
	m.state = State{Status: StatusUnauthenticated}
	m.mu.Unlock()

	if m.hooks.OnReset != nil {
		m.hooks.OnReset()
	}
}
