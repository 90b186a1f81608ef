// Package middleware holds the gin middleware shared by the HTTP endpoints.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
)

// RequestLogger logs every request except health checks at debug level, and
// failed requests at warn level. requestIDKey names the context key set by
// RequestID.
func RequestLogger(logger hclog.Logger, requestIDKey string) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		// Skip logging for health checks
		if c.Request.URL.Path == "/api/health" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		args := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"size", c.Writer.Size(),
			"ip", c.ClientIP(),
		}
		if id := c.GetString(requestIDKey); id != "" {
			args = append(args, "request_id", id)
		}
		if action := c.GetString(ActionKey); action != "" {
			args = append(args, "action", action)
		}

		if c.Writer.Status() >= 500 {
			logger.Warn("request failed", args...)
			return
		}
		logger.Debug("request served", args...)
	}
}

// ActionKey is the gin context key under which the control endpoint stores
// the SOAP action it dispatched.
const ActionKey = "upnp_action"

// ErrorLogger logs errors attached to the gin context.
func ErrorLogger(logger hclog.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		c.Next()

		for _, err := range c.Errors {
			logger.Error("request error",
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
				"error", err.Error(),
				"type", err.Type,
			)
		}
	}
}

// RequestID assigns every request an id, reusing an incoming X-Request-ID,
// and echoes it in the response.
func RequestID(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(key, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
