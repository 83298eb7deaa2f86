package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Public auth routes (no bearer token required)
	RouteLogin    = "/users/login"
	RouteRegister = "/users/register"
	RouteRefresh  = "/users/refresh"
	RouteLogout   = "/users/logout"

	// Protected routes
	RouteMe       = "/users/me"
	RouteUsers    = "/users"
	RouteUserByID = "/users/{id}"
)
