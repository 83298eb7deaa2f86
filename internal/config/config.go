package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Configuration key constants
const (
	envKey               = "service.env"
	appNameKey           = "service.app_name"
	listenAddressKey     = "server.address"
	allowedOriginsKey    = "server.allowed_origins"
	accessSecretKey      = "auth.access_secret"
	refreshSecretKey     = "auth.refresh_secret"
	accessTTLMinsKey     = "auth.access_ttl_mins"
	refreshTTLDaysKey    = "auth.refresh_ttl_days"
	issuerKey            = "auth.issuer"
	strictLogoutKey      = "auth.strict_logout"
	redisAddrKey         = "redis.addr"
	redisPasswordKey     = "redis.password"
)

// Config is the full application configuration.
type Config struct {
	Service ServiceParams `mapstructure:"service" validate:"required"`
	Server  ServerParams  `mapstructure:"server" validate:"required"`
	Auth    AuthParams    `mapstructure:"auth" validate:"required"`
	Redis   RedisParams   `mapstructure:"redis"`
}

type ServiceParams struct {
	Env     string `mapstructure:"env" validate:"required,oneof=dev prod test"`
	AppName string `mapstructure:"app_name"`
}

type ServerParams struct {
	Address        string   `mapstructure:"address" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type AuthParams struct {
	// Access and refresh tokens are signed with distinct secrets.
	AccessSecret   string `mapstructure:"access_secret" validate:"required"`
	RefreshSecret  string `mapstructure:"refresh_secret" validate:"required,nefield=AccessSecret"`
	AccessTTLMins  int    `mapstructure:"access_ttl_mins" validate:"required,min=1,max=60"`
	RefreshTTLDays int    `mapstructure:"refresh_ttl_days" validate:"required,min=1,max=30"`
	Issuer         string `mapstructure:"issuer"`
	// StrictLogout makes logout with a missing or unknown refresh token a 400
	// instead of a silent no-op.
	StrictLogout bool `mapstructure:"strict_logout"`
}

type RedisParams struct {
	// Addr empty means the in-memory token set is used instead of Redis.
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
}

// AccessTokenTTL returns the access-token lifetime as a Duration.
func (a *AuthParams) AccessTokenTTL() time.Duration {
	return time.Minute * time.Duration(a.AccessTTLMins)
}

// RefreshTokenTTL returns the refresh-token lifetime as a Duration.
func (a *AuthParams) RefreshTokenTTL() time.Duration {
	return time.Hour * 24 * time.Duration(a.RefreshTTLDays)
}

// envBindings maps configuration keys to their environment variables.
func envBindings() map[string]string {
	return map[string]string{
		envKey:            "TOKENGATE_ENV",
		appNameKey:        "TOKENGATE_APP_NAME",
		listenAddressKey:  "TOKENGATE_ADDRESS",
		allowedOriginsKey: "TOKENGATE_ALLOWED_ORIGINS",
		accessSecretKey:   "JWT_ACCESS_SECRET",
		refreshSecretKey:  "JWT_REFRESH_SECRET",
		accessTTLMinsKey:  "JWT_ACCESS_TTL_MINS",
		refreshTTLDaysKey: "JWT_REFRESH_TTL_DAYS",
		issuerKey:         "JWT_ISSUER",
		strictLogoutKey:   "TOKENGATE_STRICT_LOGOUT",
		redisAddrKey:      "REDIS_ADDR",
		redisPasswordKey:  "REDIS_PASSWORD",
	}
}

// New loads configuration from an optional config file and the environment.
func New() (*Config, error) {
	v := viper.New()

	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	for configKey, envVar := range envBindings() {
		if err := v.BindEnv(configKey, envVar); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable %s: %w", envVar, err)
		}
	}

	v.SetDefault(envKey, "dev")
	v.SetDefault(appNameKey, "tokengate")
	v.SetDefault(listenAddressKey, ":8080")
	v.SetDefault(accessTTLMinsKey, 15)
	v.SetDefault(refreshTTLDaysKey, 7)

	// A config file is optional; env vars alone are a valid configuration.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	// Origins may arrive comma-separated from a single env var, with or
	// without surrounding whitespace.
	origins := make([]string, 0, len(config.Server.AllowedOrigins))
	for _, origin := range config.Server.AllowedOrigins {
		for _, part := range strings.Split(origin, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	config.Server.AllowedOrigins = origins

	validate := validator.New()

	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}
