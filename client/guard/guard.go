// Package guard decides, before a protected view is entered, whether the
// current session may proceed and where to send it otherwise.
package guard

import "github.com/tokengate/tokengate/client/session"

// Decision is the outcome of evaluating a guard for a route.
type Decision struct {
	Allowed    bool
	RedirectTo string
	// ReturnURL carries the originally requested route so login can bounce
	// the user back after authenticating.
	ReturnURL string
}

// Guard evaluates whether the route may be entered.
type Guard func(route string) Decision

// Auth allows the route only when a full session is present. Unauthenticated
// access redirects to the login route with the attempted route preserved.
func Auth(state *session.State, loginRoute string) Guard {
	return func(route string) Decision {
		if state.IsAuthenticated() {
			return Decision{Allowed: true}
		}
		return Decision{
			RedirectTo: loginRoute,
			ReturnURL:  route,
		}
	}
}

// Role allows the route only when the session's user holds one of the given
// roles. A logged-in user with the wrong role is sent to the unauthorized
// route with no return URL; coming back with the same role would fail again.
// Role assumes authentication has already been checked, so compose it after
// Auth.
func Role(state *session.State, unauthorizedRoute string, roles ...string) Guard {
	return func(route string) Decision {
		for _, role := range roles {
			if state.HasRole(role) {
				return Decision{Allowed: true}
			}
		}
		return Decision{RedirectTo: unauthorizedRoute}
	}
}

// Chain evaluates guards in order and returns the first blocking decision.
func Chain(guards ...Guard) Guard {
	return func(route string) Decision {
		for _, g := range guards {
			if decision := g(route); !decision.Allowed {
				return decision
			}
		}
		return Decision{Allowed: true}
	}
}
