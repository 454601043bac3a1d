package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sukpos/internal/domain"
)

// GatewayCallback handles the unauthenticated notification endpoints.
// Gateways treat any non-2xx response as a signal to retry, so only a
// transaction we cannot locate gets a 404; everything else that goes
// wrong is a 500.
func (h *Handler) GatewayCallback(method string) gin.HandlerFunc {
	return func(c *gin.Context) {
		gateway, ok := h.gateways.Gateway(method)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error processing callback"})
			return
		}

		payload, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error processing callback"})
			return
		}

		h.logger.Info("gateway callback received",
			zap.String("gateway", method),
			zap.ByteString("payload", payload))

		parsed, err := gateway.ParseCallback(payload)
		if err != nil {
			h.logger.Warn("gateway callback rejected",
				zap.String("gateway", method), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error processing callback"})
			return
		}

		if err := h.coordinator.FinalizeFromCallback(c.Request.Context(), parsed); err != nil {
			var de *domain.Error
			if errors.As(err, &de) && de.Kind == domain.KindNotFound {
				c.JSON(http.StatusNotFound, gin.H{"message": "Transaction not found"})
				return
			}
			h.logger.Error("gateway callback processing failed",
				zap.String("gateway", method),
				zap.String("reference", parsed.Reference),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Error processing callback"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Callback processed"})
	}
}
