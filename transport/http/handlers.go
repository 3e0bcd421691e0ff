package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
	"github.com/CoachCoe/polkadot-sso-sub005/service"
)

// AuthHandlers contains the HTTP handlers for the auth endpoints
type AuthHandlers struct {
	auth *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(auth *service.AuthService) *AuthHandlers {
	return &AuthHandlers{auth: auth}
}

// Challenge issues a signing challenge for a client, optionally bound to
// a wallet address.
func (h *AuthHandlers) Challenge(c *gin.Context) {
	clientID := c.Query("client_id")
	if clientID == "" {
		RespondError(c, core.E(core.KindValidation, core.CodeInvalidRequest, "client_id is required"))
		return
	}
	address := c.Query("address")

	challenge, err := h.auth.Challenges().Create(c.Request.Context(), clientID, address, RequestMetaFrom(c))
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"challenge_id":   challenge.ID,
		"message":        challenge.Message,
		"nonce":          challenge.Nonce,
		"code_verifier":  challenge.CodeVerifier,
		"code_challenge": challenge.CodeChallenge,
		"state":          challenge.State,
		"expires_at":     challenge.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Verify checks the signed challenge and opens a session.
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, core.E(core.KindValidation, core.CodeInvalidRequest, "invalid request body"))
		return
	}

	session, pair, err := h.auth.Verify(c.Request.Context(), req, RequestMetaFrom(c))
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondOK(c, tokenResponse(session, pair, h.auth.AccessTTL()))
}

// Token handles the refresh_token grant.
func (h *AuthHandlers) Token(c *gin.Context) {
	var req service.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, core.E(core.KindValidation, core.CodeInvalidRequest, "invalid request body"))
		return
	}

	session, pair, err := h.auth.Refresh(c.Request.Context(), req, RequestMetaFrom(c))
	if err != nil {
		RespondError(c, err)
		return
	}

	RespondOK(c, tokenResponse(session, pair, h.auth.AccessTTL()))
}

// Logout invalidates the bearer's session. Repeating the call with a
// token from an already-closed session is rejected by the middleware, so
// the handler itself always succeeds once.
func (h *AuthHandlers) Logout(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		RespondError(c, core.Internal("session missing from request context", nil))
		return
	}

	if err := h.auth.Logout(c.Request.Context(), session, RequestMetaFrom(c)); err != nil {
		RespondError(c, err)
		return
	}

	RespondOK(c, gin.H{"message": "logged out"})
}

// Session returns a summary of the authenticated session.
func (h *AuthHandlers) Session(c *gin.Context) {
	session, ok := SessionFrom(c)
	if !ok {
		RespondError(c, core.Internal("session missing from request context", nil))
		return
	}

	RespondOK(c, gin.H{
		"session_id":   session.ID,
		"address":      session.Address,
		"client_id":    session.ClientID,
		"created_at":   session.CreatedAt.UTC().Format(time.RFC3339),
		"last_used_at": session.LastUsedAt.UTC().Format(time.RFC3339),
		"expires_at":   session.RefreshTokenExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Healthz is the liveness probe.
func (h *AuthHandlers) Healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}

func tokenResponse(session *core.Session, pair *core.TokenPair, expiresIn int64) gin.H {
	return gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    expiresIn,
		"expires_at":    pair.AccessTokenExpiresAt.UTC().Format(time.RFC3339),
		"address":       session.Address,
		"session_id":    session.ID,
	}
}
