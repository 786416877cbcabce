package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/entitlement/internal/appcontext"
	"go.uber.org/zap"
)

const headerApplicationID = "X-Application-ID"

// ApplicationContextMiddleware reads the tenant header and stores it on the
// request context. Routes that require a tenant reject requests without it
// themselves; catalog reads may legitimately run without one.
func ApplicationContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerApplicationID))
		if raw != "" {
			appID, err := snowflake.ParseString(raw)
			if err != nil {
				AbortWithError(c, newValidationError("application_id", "invalid_application", "invalid application id"))
				return
			}
			ctx := appcontext.WithApplicationID(c.Request.Context(), int64(appID))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

func RequestLoggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if appID := strings.TrimSpace(c.GetHeader(headerApplicationID)); appID != "" {
			fields = append(fields, zap.String("application_id", appID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}
		log.Info("request", fields...)
	}
}

// RecordRateLimitMiddleware throttles consumption recording per application.
// Redis outages fail open: metering must not take the product down.
func (s *Server) RecordRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.recordLimiter.Enabled() {
			c.Next()
			return
		}

		appID, ok := appcontext.ApplicationIDFromContext(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		allowed, err := s.recordLimiter.AllowApplication(c.Request.Context(), appID.String())
		if err != nil {
			c.Next()
			return
		}
		if !allowed {
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
