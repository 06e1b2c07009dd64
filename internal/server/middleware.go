package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/flowin/pdam/internal/actor"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"
)

// ActorRequired resolves the acting identity from the forwarded headers.
// Authentication happens upstream; this service trusts the gateway and only
// rejects requests that arrive without a usable identity.
func ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(headerActorID))
		rawRole := strings.TrimSpace(c.GetHeader(headerActorRole))
		if rawID == "" || rawRole == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		id, err := snowflake.ParseString(rawID)
		if err != nil || id == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		role, ok := actor.ParseRole(rawRole)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := actor.WithActor(c.Request.Context(), actor.Actor{ID: id, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminRequired gates routes whose service commands carry no role check of
// their own, such as billing issuance driven internally by the scheduler.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		act, ok := actor.FromContext(c.Request.Context())
		if !ok || !act.IsAdmin() {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// RequestLogger emits one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	httpLog := log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		httpLog.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
