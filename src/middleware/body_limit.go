package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RawBodyKey is the context key for the body bytes exactly as received
const RawBodyKey = "raw_body"

// DefaultMaxBodyBytes caps webhook bodies at 1 MiB
const DefaultMaxBodyBytes int64 = 1 << 20

// RawBodyMiddleware reads the request body once, rejecting bodies larger
// than maxBytes with 413. Signature checks must run over these exact bytes.
func RawBodyMiddleware(maxBytes int64) gin.HandlerFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	return func(c *gin.Context) {
		reader := http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		body, err := io.ReadAll(reader)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
					"ok":    false,
					"error": "payload too large",
				})
				return
			}
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"ok":    false,
				"error": "failed to read request body",
			})
			return
		}

		c.Set(RawBodyKey, body)
		// restore body for handlers that read it directly
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// GetRawBody returns the bytes stored by RawBodyMiddleware
func GetRawBody(c *gin.Context) ([]byte, bool) {
	v, ok := c.Get(RawBodyKey)
	if !ok {
		return nil, false
	}
	body, ok := v.([]byte)
	return body, ok
}
