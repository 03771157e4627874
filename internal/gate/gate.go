package gate

import (
	"github.com/joshdurbin/shortlink-console/internal/domain"
)

// Policy marks how a route relates to authentication
type Policy int

const (
	// Public routes are always allowed
	Public Policy = iota
	// RequiresAuth routes redirect unauthenticated sessions to the login route
	RequiresAuth
	// AuthEntry routes (login, register) redirect authenticated sessions to the landing route
	AuthEntry
)

func (p Policy) String() string {
	switch p {
	case RequiresAuth:
		return "requires-auth"
	case AuthEntry:
		return "auth-entry"
	default:
		return "public"
	}
}

// State is the gate's view of the session while a route is being entered
type State int

const (
	Checking State = iota
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return "checking"
	}
}

// Route is a guarded view
type Route struct {
	Name   string
	Policy Policy
}

// Decision is the outcome of evaluating a route
type Decision struct {
	Route    Route
	State    State
	Allowed  bool
	Redirect string
}

// Session is the read side of the session store the gate depends on
type Session interface {
	IsAuthenticated() bool
}

// Subscriber is a session that reports changes
type Subscriber interface {
	Session
	Subscribe(fn func(domain.Session)) (unsubscribe func())
}

// Gate decides whether a route may be entered for the current session
type Gate struct {
	session      Session
	loginRoute   string
	landingRoute string
}

// New creates a gate redirecting to loginRoute and landingRoute
func New(session Session, loginRoute, landingRoute string) *Gate {
	return &Gate{
		session:      session,
		loginRoute:   loginRoute,
		landingRoute: landingRoute,
	}
}

// LoginRoute returns the redirect target for unauthenticated sessions
func (g *Gate) LoginRoute() string {
	return g.loginRoute
}

// LandingRoute returns the redirect target for authenticated sessions on
// an entry route
func (g *Gate) LandingRoute() string {
	return g.landingRoute
}

// Check evaluates route against the session as it is right now. It must
// run on every entry to the route since tokens expire with time.
func (g *Gate) Check(route Route) Decision {
	d := Decision{Route: route, State: Checking}

	if g.session.IsAuthenticated() {
		d.State = Authenticated
	} else {
		d.State = Unauthenticated
	}

	switch {
	case route.Policy == RequiresAuth && d.State == Unauthenticated:
		d.Redirect = g.loginRoute
	case route.Policy == AuthEntry && d.State == Authenticated:
		d.Redirect = g.landingRoute
	default:
		d.Allowed = true
	}

	return d
}

// Watch re-evaluates route on every session change and hands each
// decision to fn. The returned function stops watching.
func (g *Gate) Watch(session Subscriber, route Route, fn func(Decision)) (stop func()) {
	return session.Subscribe(func(domain.Session) {
		fn(g.Check(route))
	})
}
