package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ZapLogger returns a middleware that logs HTTP requests using zap logger.
// API paths (/api/*) are logged at info level, everything else at debug.
func ZapLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		dur := time.Since(start)

		path := c.Request.URL.Path
		fields := []interface{}{
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", dur.String(),
			"clientIP", c.ClientIP(),
		}
		if id := c.GetString("request_id"); id != "" {
			fields = append(fields, "requestID", id)
		}
		if user := c.GetString(ContextUserID); user != "" {
			fields = append(fields, "userID", user)
		}

		if strings.HasPrefix(path, "/api/") {
			log.Sugar().Infow("HTTP", fields...)
		} else {
			log.Sugar().Debugw("HTTP", fields...)
		}
	}
}
