package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBodyLimitRouter(maxBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(BodyLimit(maxBytes))
	engine.POST("/operations", func(c *gin.Context) {
		c.Status(http.StatusAccepted)
	})
	return engine
}

func TestBodyLimit(t *testing.T) {
	t.Run("oversized payload is rejected with 413", func(t *testing.T) {
		engine := setupBodyLimitRouter(16)

		req, err := http.NewRequest(http.MethodPost, "/operations", strings.NewReader(strings.Repeat("x", 64)))
		require.NoError(t, err)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "PAYLOAD_TOO_LARGE")
	})

	t.Run("payload within the limit passes through", func(t *testing.T) {
		engine := setupBodyLimitRouter(64)

		req, err := http.NewRequest(http.MethodPost, "/operations", strings.NewReader(`{"ok":true}`))
		require.NoError(t, err)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})

	t.Run("unset limit falls back to the default", func(t *testing.T) {
		engine := setupBodyLimitRouter(0)

		req, err := http.NewRequest(http.MethodPost, "/operations", strings.NewReader(`{"ok":true}`))
		require.NoError(t, err)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
	})
}
