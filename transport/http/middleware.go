package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/service"
)

const (
	requestIDKey = "requestID"
	sessionKey   = "authSession"
	payloadKey   = "authPayload"
)

const headerRequestID = "X-Request-Id"

// RequestIDMiddleware assigns every request a uuid, honouring an inbound
// X-Request-Id so callers can correlate across services.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// RequestIDFrom returns the request id set by RequestIDMiddleware.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// RequestMetaFrom collects the caller identity fields the services audit.
func RequestMetaFrom(c *gin.Context) service.RequestMeta {
	return service.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: RequestIDFrom(c),
	}
}

// LoggingMiddleware logs one line per request with latency and status.
func LoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("request_id", RequestIDFrom(c)),
		)
	}
}

// RateLimitMiddleware applies the per-endpoint fixed window keyed by
// caller IP, recording an audit event when the limit trips.
func RateLimitMiddleware(limiter *service.RateLimiter, audit *service.AuditService, class service.EndpointClass) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := limiter.Record(c.Request.Context(), c.ClientIP(), class)
		if d.Limited {
			audit.Log(&core.AuditEvent{
				Type:      core.AuditTypeSecurity,
				Action:    core.ActionRateLimitExceeded,
				Status:    core.AuditFailure,
				Details:   map[string]string{"endpoint": string(class), "request_id": RequestIDFrom(c)},
				IPAddress: c.ClientIP(),
				UserAgent: c.Request.UserAgent(),
			})
			RespondError(c, service.RateLimitedError(d))
			return
		}
		c.Next()
	}
}

// BruteForceMiddleware blocks IPs whose failed-auth volume crossed the
// guard threshold within its window.
func BruteForceMiddleware(guard *service.BruteForceGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if guard.RecordAttempt(c.Request.Context(), c.ClientIP()) {
			RespondError(c, core.E(core.KindRateLimited, core.CodeBruteForceDetected, "too many authentication attempts"))
			return
		}
		c.Next()
	}
}

// AuthMiddleware validates the bearer access token and stores the session
// and claims in the request context.
func AuthMiddleware(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			RespondError(c, core.E(core.KindInvalidSession, core.CodeTokenInvalid, "missing or malformed authorization header"))
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		session, payload, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			RespondError(c, err)
			return
		}
		c.Set(sessionKey, session)
		c.Set(payloadKey, payload)
		c.Next()
	}
}

// SessionFrom returns the session stored by AuthMiddleware.
func SessionFrom(c *gin.Context) (*core.Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil, false
	}
	session, ok := v.(*core.Session)
	return session, ok
}

// PayloadFrom returns the token claims stored by AuthMiddleware.
func PayloadFrom(c *gin.Context) (*core.TokenPayload, bool) {
	v, ok := c.Get(payloadKey)
	if !ok {
		return nil, false
	}
	payload, ok := v.(*core.TokenPayload)
	return payload, ok
}
