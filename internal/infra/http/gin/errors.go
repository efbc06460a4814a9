package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"convo/internal/domain/shared/fault"
)

// StatusFor maps an error kind onto its HTTP status.
func StatusFor(err error) int {
	switch fault.KindOf(err) {
	case fault.Unauthorized:
		return http.StatusUnauthorized
	case fault.Forbidden:
		return http.StatusForbidden
	case fault.NotFound:
		return http.StatusNotFound
	case fault.InvalidRequest:
		return http.StatusBadRequest
	case fault.Conflict:
		return http.StatusConflict
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}. Unclassified failures are logged and hidden from
// the client.
func respondError(c *gin.Context, logger *slog.Logger, err error, op string, args ...any) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error(op+" failed", append(args, "error", err)...)
		}
		c.JSON(status, gin.H{"error": http.StatusText(status)})
		return
	}
	msg := fault.Message(err)
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.JSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
