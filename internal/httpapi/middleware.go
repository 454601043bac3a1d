package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limitermem "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"sukpos/internal/database/models"
	"sukpos/internal/domain"
)

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func RateLimit(formatted string) gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		panic("invalid rate limit format: " + formatted)
	}

	instance := limiter.New(limitermem.NewStore(), rate)
	limiterMiddleware := stdlib.NewMiddleware(instance)

	return func(c *gin.Context) {
		limiterMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if c.Writer.Status() == http.StatusTooManyRequests {
			c.Abort()
			return
		}
	}
}

// RequestLogger records one structured line per request.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// JWTAuth authenticates the bearer token, loads the user and verifies
// both the user and the shop are still active before letting the
// request through. The resolved actor is stored on the request context.
func (h *Handler) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			h.abortWith(c, domain.E(domain.KindUnauthorized, "Authorization token required"))
			return
		}

		claims, err := h.tokens.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			h.abortWith(c, domain.Wrap(domain.KindUnauthorized, "Invalid or expired token", err))
			return
		}

		user, err := h.store.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			h.abortWith(c, domain.Wrap(domain.KindUnauthorized, "Invalid or expired token", err))
			return
		}
		if !user.IsActive {
			h.abortWith(c, domain.E(domain.KindUnauthorized, "Account is deactivated"))
			return
		}
		if user.Shop != nil && !user.Shop.IsActive {
			h.abortWith(c, domain.E(domain.KindForbidden, "Shop is deactivated"))
			return
		}

		actor := domain.Actor{UserID: user.ID, ShopID: user.ShopID, Role: user.Role}
		ctx := domain.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRole gates an endpoint to the listed roles. Admins always pass.
func (h *Handler) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := domain.ActorFromContext(c.Request.Context())
		if !ok {
			h.abortWith(c, domain.E(domain.KindUnauthorized, "Authorization token required"))
			return
		}
		if actor.Role == models.RoleAdmin {
			c.Next()
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		h.abortWith(c, domain.E(domain.KindForbidden, "You do not have permission to perform this action"))
	}
}

func (h *Handler) abortWith(c *gin.Context, err error) {
	h.respondError(c, err)
	c.Abort()
}
