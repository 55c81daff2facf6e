package log

import (
	"time"

	"github.com/gin-gonic/gin"
)

var apiLogger = Component("api")

// GinLogger returns a Gin middleware that logs one line per API request.
// Besides the route it records which snapshot or file the request was about,
// so history reads and restores can be traced per path.
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		event := apiLogger.Debug()
		if status >= 500 {
			event = apiLogger.Error()
		} else if status >= 400 {
			event = apiLogger.Warn()
		}

		// unmatched requests have no route template
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP())

		if name := c.Param("name"); name != "" {
			event.Str("snapshot", name)
		}
		for _, key := range []string{"path", "old", "new"} {
			if v := c.Query(key); v != "" {
				event.Str(key, v)
			}
		}
		if msg := c.Errors.ByType(gin.ErrorTypePrivate).String(); msg != "" {
			event.Str("error", msg)
		}

		event.Msg("request")
	}
}
