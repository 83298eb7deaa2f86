package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tokengate/tokengate/users"
)

// AccessClaims are the identity claims carried by an access token.
type AccessClaims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carry only the stable user identifier; everything else about
// the session is re-derived from the user record at refresh time.
type RefreshClaims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// Manager mints and verifies the access/refresh token pair. Access and
// refresh tokens are signed with distinct HS256 secrets so one can never be
// presented in place of the other.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFunc       func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessExpiry, refreshExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessExpiry = accessExpiry
		m.refreshExpiry = refreshExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func New(accessSecret, refreshSecret string, options ...ManagerOption) (*Manager, error) {
	if accessSecret == "" || refreshSecret == "" {
		return nil, ErrNoSecret
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("[token.New] access and refresh secrets must differ")
	}

	m := &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		nowFunc:       time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessExpiry == 0 {
		m.accessExpiry = 15 * time.Minute
	}
	if m.refreshExpiry == 0 {
		m.refreshExpiry = 7 * 24 * time.Hour
	}

	return m, nil
}

// AccessExpiry returns the configured access-token lifetime.
func (m *Manager) AccessExpiry() time.Duration { return m.accessExpiry }

// RefreshExpiry returns the configured refresh-token lifetime.
func (m *Manager) RefreshExpiry() time.Duration { return m.refreshExpiry }

// CreateAccessToken signs a short-lived access token embedding the user's
// id, email and role.
func (m *Manager) CreateAccessToken(user *users.User) (string, error) {
	now := m.nowFunc()

	claims := AccessClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessExpiry)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.accessSecret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.CreateAccessToken] SignedString")
	}
	return signed, nil
}

// CreateRefreshToken signs a long-lived refresh token embedding only the
// user's stable identifier. Registration in the valid-token set is the
// caller's responsibility.
func (m *Manager) CreateRefreshToken(userID string) (string, error) {
	now := m.nowFunc()

	claims := RefreshClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.refreshExpiry)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.refreshSecret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.CreateRefreshToken] SignedString")
	}
	return signed, nil
}

// VerifyAccess checks signature and expiry of an access token and returns its
// claims. Every failure mode collapses into ErrInvalidToken.
func (m *Manager) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.verify(raw, claims, m.accessSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks signature and expiry of a refresh token. Membership in
// the server's valid-token set is checked separately by the refresh store.
func (m *Manager) VerifyRefresh(raw string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := m.verify(raw, claims, m.refreshSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func (m *Manager) verify(raw string, claims jwt.Claims, secret []byte) error {
	parsed, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrInvalidToken
			}
			return secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return ErrInvalidToken
	}
	return nil
}
