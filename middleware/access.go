package middleware

import (
	"time"

	"KingShare/logger"

	"github.com/gin-gonic/gin"
)

// AccessLog writes one structured line per request through the shared
// logger, replacing gin's default stdout writer.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// upgraded websockets hold the handler for the connection
		// lifetime; logging those here would be misleading
		if c.Writer.Status() == 101 {
			return
		}
		logger.Infof("[http] %s %s status=%d cost=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
