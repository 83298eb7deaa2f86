package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/tokengate/tokengate/token/refresh"
	"github.com/tokengate/tokengate/users"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=admin student"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	Message      string      `json:"message,omitempty"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	User         *users.User `json:"user"`
}

// issueTokenPair mints a new access/refresh pair for the user and registers
// the refresh token in the valid set.
func (s *Server) issueTokenPair(r *http.Request, user *users.User) (accessToken, refreshToken string, err error) {
	accessToken, err = s.tokens.CreateAccessToken(user)
	if err != nil {
		return "", "", err
	}

	refreshToken, err = s.tokens.CreateRefreshToken(user.ID)
	if err != nil {
		return "", "", err
	}

	expiresAt := time.Now().Add(s.tokens.RefreshExpiry())
	if err := s.refreshTokens.Register(r.Context(), refreshToken, user.ID, expiresAt); err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// LoginHandler authenticates credentials and issues the token pair.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Email and password are required")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		user, err := s.users.GetByEmail(req.Email)
		if err != nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
			// Unknown email and wrong password are indistinguishable on purpose.
			writeError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}

		accessToken, refreshToken, err := s.issueTokenPair(r, user)
		if err != nil {
			s.log.Error().Err(err).Str("email", req.Email).Msg("login: failed to issue token pair")
			writeError(w, http.StatusInternalServerError, "Failed to issue tokens")
			return
		}

		user.LastLogin = time.Now()
		_ = s.users.Upsert(user)

		s.log.Info().Str("user_id", user.ID).Msg("login successful")
		writeJSON(w, http.StatusOK, tokenPairResponse{
			Message:      "Login successful",
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			User:         user.Sanitized(),
		})
	}
}

// RegisterHandler creates a new user. It never issues tokens; the client logs
// in afterwards.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid registration payload")
			return
		}
		if err := s.validate.Struct(req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid registration payload")
			return
		}
		if err := users.ValidatePasswordStrength(req.Password); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if _, err := s.users.GetByEmail(req.Email); err == nil {
			writeError(w, http.StatusConflict, "Email already registered")
			return
		}

		passwordHash, err := users.HashPassword(req.Password)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		user := &users.User{
			Name:         req.Name,
			Email:        req.Email,
			PasswordHash: passwordHash,
			Role:         users.RoleType(req.Role),
			DateJoined:   time.Now(),
		}
		if err := s.users.Upsert(user); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to create user")
			return
		}

		s.log.Info().Str("user_id", user.ID).Str("role", req.Role).Msg("user registered")
		writeJSON(w, http.StatusCreated, user.Sanitized())
	}
}

// RefreshHandler exchanges a valid refresh token for a new token pair,
// rotating the refresh token. The presented token leaves the valid set the
// moment it is claimed, so it is single-use even when verification of its
// signature or its user subsequently fails.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
			writeError(w, http.StatusUnauthorized, "Refresh token required")
			return
		}

		rec, err := s.refreshTokens.Take(r.Context(), req.RefreshToken)
		if err != nil {
			if errors.Is(err, refresh.ErrNotFound) {
				writeError(w, http.StatusForbidden, "Invalid refresh token")
				return
			}
			s.log.Error().Err(err).Msg("refresh: token set unavailable")
			writeError(w, http.StatusInternalServerError, "Failed to refresh tokens")
			return
		}

		claims, err := s.tokens.VerifyRefresh(req.RefreshToken)
		if err != nil || claims.UserID != rec.UserID {
			writeError(w, http.StatusForbidden, "Invalid refresh token")
			return
		}

		user, err := s.users.GetByID(claims.UserID)
		if err != nil {
			// Token was valid but the user is gone; it has already been removed
			// from the set by Take.
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		accessToken, refreshToken, err := s.issueTokenPair(r, user)
		if err != nil {
			s.log.Error().Err(err).Str("user_id", user.ID).Msg("refresh: failed to issue token pair")
			writeError(w, http.StatusInternalServerError, "Failed to refresh tokens")
			return
		}

		s.log.Debug().Str("user_id", user.ID).Msg("refresh token rotated")
		writeJSON(w, http.StatusOK, tokenPairResponse{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			User:         user.Sanitized(),
		})
	}
}

// LogoutHandler removes the given refresh token from the valid set. By
// default this is idempotent: revoking an absent token still succeeds. With
// StrictLogout a missing or unknown token is a 400.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req logoutRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.RefreshToken == "" {
			if s.strictLogout {
				writeError(w, http.StatusBadRequest, "Refresh token required")
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
			return
		}

		if err := s.refreshTokens.Revoke(r.Context(), req.RefreshToken); err != nil {
			if errors.Is(err, refresh.ErrNotFound) {
				if s.strictLogout {
					writeError(w, http.StatusBadRequest, "Invalid refresh token")
					return
				}
				writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
				return
			}
			s.log.Error().Err(err).Msg("logout: token set unavailable")
			writeError(w, http.StatusInternalServerError, "Failed to log out")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
	}
}

// MeHandler echoes the authenticated user's claims.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		user, err := s.users.GetByID(claims.UserID)
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		writeJSON(w, http.StatusOK, user.Sanitized())
	}
}

// ListUsersHandler returns all users. Admin only.
func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := s.users.List(0, 0)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list users")
			return
		}

		sanitized := make([]*users.User, 0, len(list))
		for _, u := range list {
			sanitized = append(sanitized, u.Sanitized())
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"data":  sanitized,
			"count": len(sanitized),
		})
	}
}

// GetUserHandler returns a single user. Self or admin only.
func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.users.GetByID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}

		writeJSON(w, http.StatusOK, user.Sanitized())
	}
}
