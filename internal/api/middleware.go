package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"deposit-reconciler-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// RequestID tags each request with X-Request-ID, generating one if absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestId := c.GetHeader("X-Request-ID")
		if requestId == "" {
			requestId = uuid.New().String()
		}
		c.Set("request_id", requestId)
		c.Header("X-Request-ID", requestId)
		c.Next()
	}
}

// RequestLogger writes one zap line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString("request_id")),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			zap.L().Error("HTTP request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			zap.L().Warn("HTTP request", fields...)
		default:
			zap.L().Info("HTTP request", fields...)
		}
	}
}

func LimitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	}
}

// RequireBearer rejects requests whose Authorization header does not carry
// token. An empty token rejects everything.
func RequireBearer(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !bearerMatches(c.GetHeader("Authorization"), token) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
			return
		}
		c.Next()
	}
}

func bearerMatches(header, token string) bool {
	if token == "" {
		return false
	}
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(strings.TrimSpace(presented)), []byte(token)) == 1
}
