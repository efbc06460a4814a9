package obs

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestReadyz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	healthy := true
	h := HealthHandlers{Checks: map[string]Check{
		"store": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("down")
		},
	}}
	r := gin.New()
	r.Use(Middleware{Logger: Discard()}.RequestID())
	r.GET("/readyz", h.Readyz)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	healthy = false
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "down")
}
