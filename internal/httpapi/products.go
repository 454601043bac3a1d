package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sukpos/internal/domain"
	"sukpos/internal/sale"
)

func (h *Handler) SearchByBarcode(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	barcode := c.Param("barcode")
	if barcode == "" {
		h.respondError(c, domain.E(domain.KindValidation, "Barcode is required"))
		return
	}

	product, err := h.catalog.ByBarcode(c.Request.Context(), actor.ShopID, barcode)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) AdjustStock(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	id, err := parseID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	var adj sale.StockAdjustment
	if err := c.ShouldBindJSON(&adj); err != nil {
		h.respondError(c, domain.Wrap(domain.KindValidation, "Invalid request body", err))
		return
	}

	movement, err := h.coordinator.AdjustStock(c.Request.Context(), actor, id, adj)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, movement)
}
