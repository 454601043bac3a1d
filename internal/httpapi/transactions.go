package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sukpos/internal/domain"
	"sukpos/internal/sale"
	"sukpos/internal/store"
)

const (
	summaryCacheKey = "pos:summary:%d:%s"
	summaryCacheTTL = 5 * time.Minute
)

func (h *Handler) CreateTransaction(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	var cart sale.Cart
	if err := c.ShouldBindJSON(&cart); err != nil {
		h.respondError(c, domain.Wrap(domain.KindValidation, "Invalid request body", err))
		return
	}

	result, err := h.coordinator.CreateSale(c.Request.Context(), actor, cart)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateSummary(c, actor.ShopID)
	c.JSON(http.StatusCreated, result)
}

func (h *Handler) GetTransaction(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	id, err := parseID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	txn, err := h.coordinator.GetReceipt(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *Handler) ListTransactions(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	filter := store.TransactionFilter{
		Status:        c.Query("status"),
		PaymentMethod: c.Query("payment_method"),
		Limit:         50,
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			filter.Limit = n
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	if raw := c.Query("date_from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.respondError(c, domain.E(domain.KindValidation, "date_from must be YYYY-MM-DD"))
			return
		}
		filter.DateFrom = &t
	}
	if raw := c.Query("date_to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.respondError(c, domain.E(domain.KindValidation, "date_to must be YYYY-MM-DD"))
			return
		}
		filter.DateTo = &t
	}

	txns, err := h.coordinator.ListTransactions(c.Request.Context(), actor, filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

func (h *Handler) RefundTransaction(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	id, err := parseID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	refund, err := h.coordinator.RefundSale(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.invalidateSummary(c, actor.ShopID)
	c.JSON(http.StatusOK, refund)
}

func (h *Handler) VerifyPayment(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	id, err := parseID(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	outcome, err := h.coordinator.VerifyPayment(c.Request.Context(), actor, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *Handler) DailySummary(c *gin.Context) {
	actor, _ := domain.ActorFromContext(c.Request.Context())

	date := time.Now()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.respondError(c, domain.E(domain.KindValidation, "date must be YYYY-MM-DD"))
			return
		}
		date = parsed
	}

	key := fmt.Sprintf(summaryCacheKey, actor.ShopID, date.Format("2006-01-02"))
	if h.cache != nil {
		if cached, err := h.cache.Get(c.Request.Context(), key).Result(); err == nil {
			var summary store.DailySummary
			if json.Unmarshal([]byte(cached), &summary) == nil {
				c.JSON(http.StatusOK, summary)
				return
			}
		}
	}

	summary, err := h.coordinator.DailySummary(c.Request.Context(), actor, date)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if h.cache != nil {
		if payload, err := json.Marshal(summary); err == nil {
			if err := h.cache.Set(c.Request.Context(), key, payload, summaryCacheTTL).Err(); err != nil {
				h.logger.Warn("summary cache write failed", zap.Error(err))
			}
		}
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) invalidateSummary(c *gin.Context, shopID uint) {
	if h.cache == nil {
		return
	}
	key := fmt.Sprintf(summaryCacheKey, shopID, time.Now().Format("2006-01-02"))
	if err := h.cache.Del(c.Request.Context(), key).Err(); err != nil {
		h.logger.Warn("summary cache invalidation failed", zap.Error(err))
	}
}

func parseID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, domain.E(domain.KindValidation, "Invalid id")
	}
	return uint(id), nil
}
