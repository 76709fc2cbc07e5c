package auth

import (
	"context"
	"sync/atomic"
	"time"
)

// GuardState is the outcome of a navigation check.
type GuardState uint8

const (
	// StateChecking means the check has not resolved; nothing protected
	// may render yet.
	StateChecking GuardState = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s GuardState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

// RouteClass describes who may reach a navigation target.
type RouteClass uint8

const (
	// RoutePublic renders for everyone.
	RoutePublic RouteClass = iota
	// RoutePublicOnly renders only while anonymous (the login screen).
	RoutePublicOnly
	// RouteProtected requires an authenticated session.
	RouteProtected
)

// RouteClassifier maps a navigation target to its access class.
type RouteClassifier func(path string) RouteClass

// Decision is what a resolved check tells the rendering layer to do.
type Decision struct {
	State      GuardState
	RedirectTo string
	// Session is the snapshot the decision was made from; set only when
	// authenticated.
	Session Session
}

// Guard evaluates, per navigation, whether the target may render. It owns
// no session state and performs no token renewal; staleness of the access
// token alone never blocks navigation (the outbound request layer renews
// it transparently).
type Guard struct {
	sessions *Manager
	classify RouteClassifier
	codec    *Codec
	logger   Logger
	now      func() time.Time

	loginPath   string
	landingPath string

	gen      atomic.Uint64
	lastPath atomic.Value // string
}

type GuardOption func(*Guard)

func GuardWithLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func GuardWithCodec(codec *Codec) GuardOption {
	return func(g *Guard) {
		if codec != nil {
			g.codec = codec
		}
	}
}

// GuardWithClock injects a custom clock (useful for tests).
func GuardWithClock(clock func() time.Time) GuardOption {
	return func(g *Guard) {
		if clock != nil {
			g.now = clock
		}
	}
}

// GuardWithPaths overrides the login entry point and the authenticated
// landing route.
func GuardWithPaths(login, landing string) GuardOption {
	return func(g *Guard) {
		if login != "" {
			g.loginPath = login
		}
		if landing != "" {
			g.landingPath = landing
		}
	}
}

func NewGuard(sessions *Manager, classify RouteClassifier, opts ...GuardOption) *Guard {
	if classify == nil {
		classify = func(string) RouteClass { return RoutePublic }
	}

	g := &Guard{
		sessions:    sessions,
		classify:    classify,
		codec:       NewCodec(),
		logger:      defLogger{},
		now:         time.Now,
		loginPath:   "/login",
		landingPath: "/dashboard",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check is one navigation attempt. Starting a newer check supersedes every
// older one: a superseded check must not apply its result.
type Check struct {
	guard *Guard
	gen   uint64
	path  string
}

// StartCheck begins a check for path and supersedes all earlier checks.
func (g *Guard) StartCheck(path string) *Check {
	g.lastPath.Store(path)
	return &Check{
		guard: g,
		gen:   g.gen.Add(1),
		path:  path,
	}
}

// Current reports whether this check is still the most recent one.
func (c *Check) Current() bool {
	return c.guard.gen.Load() == c.gen
}

// Resolve runs the state machine. ok is false when the check was
// superseded or cancelled mid-flight; the caller must then discard the
// decision and keep rendering the neutral placeholder, leaving the screen
// to the check that superseded it.
func (c *Check) Resolve(ctx context.Context) (Decision, bool) {
	decision := c.guard.evaluate(ctx, c.path)
	if !c.Current() || ctx.Err() != nil {
		return Decision{State: StateChecking}, false
	}
	return decision, true
}

// Evaluate runs a standalone check for path. Request-scoped callers (one
// check per request, nothing to supersede) use this directly.
func (g *Guard) Evaluate(ctx context.Context, path string) Decision {
	return g.evaluate(ctx, path)
}

// OnSessionChange re-runs the guard against the last checked path whenever
// the session changes, feeding the decision to apply. Navigation is not
// a one-time boot check: login and logout in this or any other instance
// re-gate the current screen. The returned function unsubscribes.
func (g *Guard) OnSessionChange(ctx context.Context, apply func(Decision)) func() {
	return g.sessions.OnChange(func(Session) {
		path, _ := g.lastPath.Load().(string)
		if path == "" {
			path = g.landingPath
		}
		check := g.StartCheck(path)
		go func() {
			if decision, ok := check.Resolve(ctx); ok {
				apply(decision)
			}
		}()
	})
}

func (g *Guard) evaluate(ctx context.Context, path string) Decision {
	class := g.classify(path)
	snapshot := g.sessions.Snapshot()

	live := snapshot.Authenticated() &&
		!g.codec.IsExpired(snapshot.Credentials.RefreshToken, g.now())

	if !live {
		if snapshot.Authenticated() {
			// purge whatever stale state produced this; failures still
			// land on unauthenticated, never on an indeterminate screen
			if err := g.sessions.Logout(ctx); err != nil {
				g.logger.Warn("guard purge: %v", err)
			}
		}

		decision := Decision{State: StateUnauthenticated}
		if class == RouteProtected {
			decision.RedirectTo = g.loginPath
		}
		return decision
	}

	// an expired access token with a live refresh token still counts:
	// renewing it is the api client's job, not the guard's
	decision := Decision{State: StateAuthenticated, Session: snapshot}
	if class == RoutePublicOnly {
		decision.RedirectTo = g.landingPath
	}
	return decision
}
