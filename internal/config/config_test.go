package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/internal/config"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_ACCESS_SECRET", "access-secret-1234")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-5678")
}

func TestNewFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKENGATE_ENV", "prod")
	t.Setenv("TOKENGATE_ADDRESS", ":9090")
	t.Setenv("JWT_ACCESS_TTL_MINS", "5")
	t.Setenv("JWT_REFRESH_TTL_DAYS", "14")

	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "prod", cfg.Service.Env)
	require.Equal(t, ":9090", cfg.Server.Address)
	require.Equal(t, 5*time.Minute, cfg.Auth.AccessTokenTTL())
	require.Equal(t, 14*24*time.Hour, cfg.Auth.RefreshTokenTTL())
}

func TestNewAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, "dev", cfg.Service.Env)
	require.Equal(t, ":8080", cfg.Server.Address)
	require.Equal(t, 15*time.Minute, cfg.Auth.AccessTokenTTL())
	require.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTokenTTL())
	require.False(t, cfg.Auth.StrictLogout)
}

func TestNewRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "")
	t.Setenv("JWT_REFRESH_SECRET", "")

	_, err := config.New()
	require.Error(t, err)
}

func TestNewRejectsSharedSecret(t *testing.T) {
	t.Setenv("JWT_ACCESS_SECRET", "same-secret")
	t.Setenv("JWT_REFRESH_SECRET", "same-secret")

	_, err := config.New()
	require.Error(t, err)
}

func TestNewSplitsCommaSeparatedOrigins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TOKENGATE_ALLOWED_ORIGINS", "http://localhost:4200, https://app.example.com")

	cfg, err := config.New()
	require.NoError(t, err)

	require.Equal(t, []string{"http://localhost:4200", "https://app.example.com"}, cfg.Server.AllowedOrigins)
}
