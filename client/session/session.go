// Package session is the client-side source of truth for "am I logged in,
// as whom": the persisted token/user triple plus an observable in-memory
// session.
package session

// User is the sanitized user record returned by the issuer.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session is the authenticated state held by the client. Either both tokens
// are present or both are absent; there is no partial session.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *User
}

// Valid reports whether the session holds a complete token pair.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != "" && s.User != nil
}

// HasRole reports whether the session's user holds the given role.
func (s Session) HasRole(role string) bool {
	return s.User != nil && s.User.Role == role
}
