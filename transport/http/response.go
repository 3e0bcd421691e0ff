package http

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CoachCoe/polkadot-sso-sub005/core"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ErrorBody carries the stable error code plus a human-readable message.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondOK writes a success envelope with the given payload.
func RespondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success:   true,
		Data:      data,
		RequestID: RequestIDFrom(c),
		Timestamp: time.Now().UTC(),
	})
}

// RespondError maps a tagged error onto an HTTP status and writes the
// failure envelope. Internal error detail is suppressed in release mode.
func RespondError(c *gin.Context, err error) {
	kind := core.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	var tagged *core.Error
	if e, ok := err.(*core.Error); ok {
		tagged = e
		message = e.Message
	}

	if kind == core.KindRateLimited && tagged != nil && tagged.RetryAfter > 0 {
		seconds := int(math.Ceil(tagged.RetryAfter.Seconds()))
		if seconds < 1 {
			seconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(seconds))
	}
	if status == http.StatusInternalServerError && gin.Mode() == gin.ReleaseMode {
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, Response{
		Success:   false,
		Error:     &ErrorBody{Code: core.CodeOf(err), Message: message},
		RequestID: RequestIDFrom(c),
		Timestamp: time.Now().UTC(),
	})
}

func statusFor(kind core.Kind) int {
	switch kind {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindExpired, core.KindReplay, core.KindInvalidSignature, core.KindInvalidSession:
		return http.StatusUnauthorized
	case core.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
