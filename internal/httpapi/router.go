package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sukpos/internal/database/models"
)

// NewRouter assembles the full HTTP surface. Callback endpoints stay
// outside the authenticated group; gateways do not carry our tokens.
func NewRouter(h *Handler, logger *zap.Logger, debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(CORS())
	r.Use(RequestLogger(logger))
	r.Use(RateLimit("120-M"))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"message":   "Server is running",
			"timestamp": time.Now(),
		})
	})

	public := r.Group("/api")
	{
		public.POST("/login", h.Login)

		callbacks := public.Group("/payment")
		{
			callbacks.POST("/telebirr/callback", h.GatewayCallback(models.PaymentTelebirr))
			callbacks.POST("/cbe-birr/callback", h.GatewayCallback(models.PaymentCBEBirr))
			callbacks.POST("/chapa/callback", h.GatewayCallback(models.PaymentChapa))
		}
	}

	protected := r.Group("/api")
	protected.Use(h.JWTAuth())
	{
		transactions := protected.Group("/transactions")
		{
			transactions.POST("", h.CreateTransaction)
			transactions.GET("", h.ListTransactions)
			transactions.GET("/daily-summary", h.DailySummary)
			transactions.GET("/:id", h.GetTransaction)
			transactions.GET("/:id/verify-payment", h.VerifyPayment)
			transactions.POST("/:id/refund", h.RefundTransaction)
		}

		products := protected.Group("/products")
		{
			products.GET("/search/:barcode", h.SearchByBarcode)
			products.POST("/:id/adjust-stock",
				h.RequireRole(models.RoleManager), h.AdjustStock)
		}
	}

	return r
}
