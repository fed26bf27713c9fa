package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/scoolish-backend/internal/platform/ctxutil"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// RequestLogger writes one line per finished API request; 4xx log at warn
// and 5xx at error.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("component", "http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := append(requestFields(c),
			"method", c.Request.Method,
			"path", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if tool := c.Param("tool"); tool != "" {
			fields = append(fields, "tool", tool)
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "error", c.Errors.Last().Err)
		}

		switch {
		case status >= 500:
			log.Error("HTTP request", fields...)
		case status >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
	}
}

// requestFields returns the caller and correlation ids attached earlier in
// the chain.
func requestFields(c *gin.Context) []interface{} {
	ctx := c.Request.Context()
	var out []interface{}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		out = append(out, "trace_id", td.TraceID, "request_id", td.RequestID)
	}
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.UserID != "" {
		out = append(out, "user_id", rd.UserID, "authenticated", rd.Authenticated)
	}
	return out
}
