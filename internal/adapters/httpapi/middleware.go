package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/reelforge/internal/ctxutil"
)

const (
	headerActor     = "X-Actor"
	headerRequestID = "X-Request-ID"
	loggerKey       = "reelforge.logger"
)

// requestLogger logs one line per request and stores a request-scoped logger.
func requestLogger(base *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(headerRequestID, id)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), id))

		logger := base.With(zap.String("request_id", id))
		c.Set(loggerKey, logger)

		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, recovered any) {
		loggerFrom(c).Error("panic serving request", zap.Any("panic", recovered), zap.Stack("stack"))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": ErrorModel{
			Status: http.StatusInternalServerError,
			Title:  http.StatusText(http.StatusInternalServerError),
			Detail: "internal error",
		}})
	})
}

// actorFromHeader records the caller's identity for the audit log.
func actorFromHeader(c *gin.Context) {
	actor := c.GetHeader(headerActor)
	if actor == "" {
		actor = "api"
	}
	c.Request = c.Request.WithContext(ctxutil.WithActorID(c.Request.Context(), actor))
	c.Next()
}

func loggerFrom(c *gin.Context) *zap.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*zap.Logger); ok {
			return l
		}
	}
	return zap.NewNop()
}
