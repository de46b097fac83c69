package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
)

// Response messages. Authentication failures share one message whatever the cause.
const (
	msgInvalidAddress = "invalid address"
	msgAuthFailed     = "authentication failed"
	msgUnauthorized   = "unauthorized"
	msgRateLimited    = "too many challenge requests"
	msgUpstream       = "balances unavailable"
	msgInternal       = "internal error"
)

// statusOf maps a service error to its HTTP status and public message
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidAddress):
		return http.StatusBadRequest, msgInvalidAddress
	case errors.Is(err, core.ErrChallengeExpiredOrUnknown),
		errors.Is(err, core.ErrAuthenticationFailed):
		return http.StatusUnauthorized, msgAuthFailed
	case core.IsCredentialError(err):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, core.ErrChallengeRateLimited):
		return http.StatusTooManyRequests, msgRateLimited
	case errors.Is(err, core.ErrAggregationFailed):
		return http.StatusBadGateway, msgUpstream
	default:
		return http.StatusInternalServerError, msgInternal
	}
}

func writeError(c *gin.Context, log *slog.Logger, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg})
}
