package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"convo/internal/domain/user"
	"convo/internal/infra/obs"
)

const callerContextKey = "convo.caller"

// TokenVerifier turns a bearer token into the id of the calling user.
type TokenVerifier interface {
	Verify(raw string) (user.ID, error)
}

// AuthMiddleware attaches the caller of a valid bearer token. Requests without one
// continue anonymously and are rejected by the handlers that need a caller.
type AuthMiddleware struct {
	Tokens TokenVerifier
	Logger *slog.Logger
}

func (m AuthMiddleware) Handle(c *gin.Context) {
	token := extractBearerToken(c.GetHeader("Authorization"))
	if token == "" || m.Tokens == nil {
		c.Next()
		return
	}
	id, err := m.Tokens.Verify(token)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Debug("token validation failed", "error", err)
		}
		c.Next()
		return
	}
	setCaller(c, id)
	c.Next()
}

func setCaller(c *gin.Context, id user.ID) {
	c.Set(callerContextKey, id)
	c.Set(obs.CallerCtxKey, string(id))
}

func currentCaller(c *gin.Context) (user.ID, bool) {
	val, exists := c.Get(callerContextKey)
	if !exists {
		return "", false
	}
	id, ok := val.(user.ID)
	return id, ok && id != ""
}

func requireCaller(c *gin.Context) (user.ID, bool) {
	id, ok := currentCaller(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return "", false
	}
	return id, true
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
