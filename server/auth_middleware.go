package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/tokengate/tokengate/token"
	"github.com/tokengate/tokengate/users"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyClaims stores the verified access-token claims
const ContextKeyClaims ContextKey = "claims"

// ClaimsFromContext returns the access-token claims injected by RequireAuth,
// or nil if the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *token.AccessClaims {
	claims, _ := ctx.Value(ContextKeyClaims).(*token.AccessClaims)
	return claims
}

// RequireAuth validates the Bearer access token and injects its claims into
// the request context. Missing header, malformed header, bad signature, and
// expiry all produce the same 401 so the client can always attempt a refresh.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "Access token required")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
				writeError(w, http.StatusUnauthorized, "Invalid or expired access token")
				return
			}

			claims, err := s.tokens.VerifyAccess(parts[1])
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Invalid or expired access token")
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyClaims, claims)
			next(w, r.WithContext(ctx))
		}
	}
}

// RequireRole allows only authenticated users whose role is in allowedRoles.
// Must be chained after RequireAuth.
func (s *Server) RequireRole(allowedRoles ...users.RoleType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			for _, role := range allowedRoles {
				if claims.Role == string(role) {
					next(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "Insufficient permissions")
		}
	}
}

// RequireSelfOrAdmin allows access when the authenticated user is the owner
// of the addressed resource (path parameter paramName) or an admin.
func (s *Server) RequireSelfOrAdmin(paramName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}

			isOwner := claims.UserID == r.PathValue(paramName)
			isAdmin := claims.Role == string(users.RoleAdmin)

			if !isOwner && !isAdmin {
				writeError(w, http.StatusForbidden, "Not authorized to access this resource")
				return
			}

			next(w, r)
		}
	}
}
