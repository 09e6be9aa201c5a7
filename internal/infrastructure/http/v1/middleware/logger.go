package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"lotkeeper/pkg/logger"
)

// quietPaths are probed by orchestrators and scrapers every few seconds;
// they are logged only when they fail.
var quietPaths = map[string]bool{"/health": true, "/ready": true, "/metrics": true}

// Logger puts log into the request context and writes one access line per
// request. Client errors are warnings and server errors are errors.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logger.WithLogger(c.Request.Context(), log))

		c.Next()

		status := c.Writer.Status()
		if status < 400 && quietPaths[c.Request.URL.Path] {
			return
		}

		fields := []any{
			"method", c.Request.Method,
			"route", c.FullPath(),
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", time.Since(start).Milliseconds(),
			"bytes", c.Writer.Size(),
			"client_ip", c.ClientIP(),
		}
		if key := c.GetHeader(HeaderIdempotencyKey); key != "" {
			fields = append(fields, "idempotency_key", key)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Error())
		}

		l := log.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			l.Errorw("http request", fields...)
		case status >= 400:
			l.Warnw("http request", fields...)
		default:
			l.Infow("http request", fields...)
		}
	}
}
