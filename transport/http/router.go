package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/service"
)

// RouterDeps bundles everything the router wires into middleware and
// handlers.
type RouterDeps struct {
	Auth    *service.AuthService
	Limiter *service.RateLimiter
	Guard   *service.BruteForceGuard
	Audit   *service.AuditService
	Log     *zap.Logger
}

// SetupRouter sets up the Gin router
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(deps.Log))

	handlers := NewAuthHandlers(deps.Auth)

	router.GET("/healthz", handlers.Healthz)

	// The brute force guard counts every auth protocol request into one
	// shared per-IP window, so attempts spread across endpoints that each
	// stay under their own budget still trip it.
	auth := router.Group("/api/auth")
	{
		auth.GET("/challenge",
			RateLimitMiddleware(deps.Limiter, deps.Audit, service.EndpointChallenge),
			BruteForceMiddleware(deps.Guard),
			handlers.Challenge)
		auth.POST("/verify",
			RateLimitMiddleware(deps.Limiter, deps.Audit, service.EndpointVerify),
			BruteForceMiddleware(deps.Guard),
			handlers.Verify)
		auth.POST("/token",
			RateLimitMiddleware(deps.Limiter, deps.Audit, service.EndpointToken),
			BruteForceMiddleware(deps.Guard),
			handlers.Token)
		auth.POST("/logout",
			RateLimitMiddleware(deps.Limiter, deps.Audit, service.EndpointLogout),
			BruteForceMiddleware(deps.Guard),
			AuthMiddleware(deps.Auth),
			handlers.Logout)
		auth.GET("/session",
			RateLimitMiddleware(deps.Limiter, deps.Audit, service.EndpointAPI),
			AuthMiddleware(deps.Auth),
			handlers.Session)
	}

	return router
}
