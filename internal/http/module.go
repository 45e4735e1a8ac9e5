// Package http provides the server scaffolding: the Module interface each
// bounded context implements and the shared RouterContext handed to it.
package http

import (
	"prime_crm_backend/platform/config"
	"prime_crm_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Module is a bounded context that mounts its own HTTP routes. The router
// iterates registered modules so it never knows individual endpoints.
type Module interface {
	// Name identifies the module in logs.
	Name() string
	// RegisterRoutes mounts the module's routes using the shared context.
	RegisterRoutes(ctx *RouterContext)
}

// RouterContext bundles the route groups and middleware modules need when
// registering, instead of a long parameter list per module.
type RouterContext struct {
	// Engine is the root Gin engine for modules that need engine-level access.
	Engine *gin.Engine
	// V1 is the /api/v1 route group.
	V1 *gin.RouterGroup
	// Protected is the authenticated route group under /api/v1.
	Protected *gin.RouterGroup
	// Admin is the admin-only route group under /api/v1/admin.
	Admin *gin.RouterGroup
	// Config is the JWT configuration for auth middleware (scoped access).
	Config config.JWTConfig
	// AuthMiddleware provides the authentication middleware.
	AuthMiddleware gin.HandlerFunc
	// AuthRateLimiter is the stricter rate limiter for auth routes.
	AuthRateLimiter *httpkit.AuthRateLimiter
}
