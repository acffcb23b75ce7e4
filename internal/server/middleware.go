package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leofalp/nodeflow/providers/observability"
)

// requestLogger logs every request through observer and records its
// duration. It is a no-op without an observer.
func requestLogger(observer observability.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observer == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []observability.Attribute{
			observability.String(observability.AttrHTTPMethod, c.Request.Method),
			observability.String(observability.AttrHTTPRoute, route),
			observability.Int(observability.AttrHTTPStatusCode, c.Writer.Status()),
		}
		observer.Histogram(observability.MetricHTTPRequestDuration).Record(c.Request.Context(), elapsed.Seconds(), attrs...)

		attrs = append(attrs, observability.Duration(observability.AttrHTTPDuration, elapsed))
		if c.Writer.Status() >= http.StatusInternalServerError {
			observer.Error(c.Request.Context(), "HTTP request failed", attrs...)
			return
		}
		observer.Debug(c.Request.Context(), "HTTP request served", attrs...)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
