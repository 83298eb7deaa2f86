package guard_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/client/guard"
	"github.com/tokengate/tokengate/client/session"
)

func loggedInState(t *testing.T, role string) *session.State {
	t.Helper()

	storage := session.NewMemoryStorage()
	require.NoError(t, storage.SetSession("access-token", "refresh-token", &session.User{
		ID:   "user-1",
		Role: role,
	}))
	return session.NewState("http://localhost", storage)
}

func loggedOutState() *session.State {
	return session.NewState("http://localhost", session.NewMemoryStorage())
}

func TestAuthGuard(t *testing.T) {
	t.Run("allows an authenticated session", func(t *testing.T) {
		g := guard.Auth(loggedInState(t, "student"), "/login")
		d := g("/dashboard")
		require.True(t, d.Allowed)
	})

	t.Run("redirects to login preserving the attempted route", func(t *testing.T) {
		g := guard.Auth(loggedOutState(), "/login")
		d := g("/dashboard")
		require.False(t, d.Allowed)
		require.Equal(t, "/login", d.RedirectTo)
		require.Equal(t, "/dashboard", d.ReturnURL)
	})
}

func TestRoleGuard(t *testing.T) {
	t.Run("allows a matching role", func(t *testing.T) {
		g := guard.Role(loggedInState(t, "admin"), "/unauthorized", "admin")
		require.True(t, g("/admin").Allowed)
	})

	t.Run("allows any of several roles", func(t *testing.T) {
		g := guard.Role(loggedInState(t, "student"), "/unauthorized", "admin", "student")
		require.True(t, g("/courses").Allowed)
	})

	t.Run("redirects a wrong role without a return URL", func(t *testing.T) {
		g := guard.Role(loggedInState(t, "student"), "/unauthorized", "admin")
		d := g("/admin")
		require.False(t, d.Allowed)
		require.Equal(t, "/unauthorized", d.RedirectTo)
		require.Empty(t, d.ReturnURL)
	})
}

func TestChain(t *testing.T) {
	t.Run("auth blocks before role", func(t *testing.T) {
		state := loggedOutState()
		g := guard.Chain(
			guard.Auth(state, "/login"),
			guard.Role(state, "/unauthorized", "admin"),
		)
		d := g("/admin")
		require.Equal(t, "/login", d.RedirectTo)
		require.Equal(t, "/admin", d.ReturnURL)
	})

	t.Run("role blocks an authenticated non-admin", func(t *testing.T) {
		state := loggedInState(t, "student")
		g := guard.Chain(
			guard.Auth(state, "/login"),
			guard.Role(state, "/unauthorized", "admin"),
		)
		d := g("/admin")
		require.Equal(t, "/unauthorized", d.RedirectTo)
	})

	t.Run("all guards pass", func(t *testing.T) {
		state := loggedInState(t, "admin")
		g := guard.Chain(
			guard.Auth(state, "/login"),
			guard.Role(state, "/unauthorized", "admin"),
		)
		require.True(t, g("/admin").Allowed)
	})
}
