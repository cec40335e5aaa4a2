package handler

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestLogger logs one line per request in the service's log format.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := "INFO"
		if status >= 500 {
			level = "ERROR"
		} else if status >= 400 {
			level = "WARNING"
		}
		log.Printf("%s: %s %s %d %s", level, c.Request.Method, c.Request.URL.Path, status, time.Since(start))
	}
}
