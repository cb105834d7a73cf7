package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/possync/backend/internal/interfaces/http/dto"
)

// DefaultMaxBodySize bounds operation payloads when no limit is configured.
// A till sale with a few hundred lines fits comfortably under 1 MiB.
const DefaultMaxBodySize int64 = 1 << 20

// BodyLimit rejects operation payloads larger than maxBytes with 413
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse("PAYLOAD_TOO_LARGE", "Operation payload exceeds the configured size limit"))
			return
		}

		// Chunked requests carry no Content-Length; cap them while reading
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
