package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/token"
	"github.com/tokengate/tokengate/token/refresh"
	"github.com/tokengate/tokengate/users"
)

// Server is the token issuer/verifier: it authenticates credentials, mints
// the access/refresh pair, verifies access tokens on protected routes, and
// rotates refresh tokens on renewal.
type Server struct {
	env            string // Environment (e.g., "dev", "prod")
	mux            *http.ServeMux
	routes         []string
	log            zerolog.Logger
	validate       *validator.Validate
	users          users.Repo
	tokens         *token.Manager
	refreshTokens  *refresh.Manager
	allowedOrigins []string
	strictLogout   bool
}

func New(cfg *config.Config, userRepo users.Repo, refreshRepo refresh.Repo, log zerolog.Logger, tokenOptions ...token.ManagerOption) (*Server, error) {
	if userRepo == nil {
		return nil, fmt.Errorf("[server.New] user repo is required")
	}
	if refreshRepo == nil {
		return nil, fmt.Errorf("[server.New] refresh token repo is required")
	}

	options := append([]token.ManagerOption{
		token.WithTokenExpiry(cfg.Auth.AccessTokenTTL(), cfg.Auth.RefreshTokenTTL()),
		token.WithIssuer(cfg.Auth.Issuer),
	}, tokenOptions...)

	tokenManager, err := token.New(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, options...)
	if err != nil {
		return nil, fmt.Errorf("[server.New] failed to create token manager: %w", err)
	}

	s := &Server{
		env:            cfg.Service.Env,
		mux:            http.NewServeMux(),
		log:            log,
		validate:       validator.New(),
		users:          userRepo,
		tokens:         tokenManager,
		refreshTokens:  refresh.NewManager(refreshRepo),
		allowedOrigins: cfg.Server.AllowedOrigins,
		strictLogout:   cfg.Auth.StrictLogout,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) initRoutes() {
	// Public auth endpoints
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))

	// Protected endpoints (require a valid access token)
	s.RegisterRouteFunc("GET "+RouteMe, ChainMiddleware(s.MeHandler(), s.ProtectedMiddleware()...))
	s.RegisterRouteFunc("GET "+RouteUsers, ChainMiddleware(s.ListUsersHandler(), s.ProtectedMiddleware(s.RequireRole(users.RoleAdmin))...))
	s.RegisterRouteFunc("GET "+RouteUserByID, ChainMiddleware(s.GetUserHandler(), s.ProtectedMiddleware(s.RequireSelfOrAdmin("id"))...))
}

func (s *Server) logRoutes() {
	if s.env != "dev" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route registered")
		} else {
			s.log.Debug().Str("path", parts[0]).Msg("route registered")
		}
	}
}
