package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sukpos/internal/domain"
)

// errorBody is the envelope every failed request returns. Successful
// responses carry the resource directly.
type errorBody struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Status  int               `json:"status"`
	Errors  map[string]string `json:"errors,omitempty"`
	Debug   string            `json:"debug,omitempty"`
}

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation, domain.KindInvalidProduct,
		domain.KindInsufficientStock, domain.KindInsufficientPayment:
		return http.StatusUnprocessableEntity
	case domain.KindPaymentFailed:
		return http.StatusPaymentRequired
	case domain.KindPaymentTimeout:
		return http.StatusGatewayTimeout
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondError(c *gin.Context, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		de = domain.Wrap(domain.KindInternal, "Internal server error", err)
	}

	status := statusFor(de.Kind)
	body := errorBody{
		Message: de.Message,
		Status:  status,
		Errors:  de.Fields,
	}
	if h.debug && de.Err != nil {
		body.Debug = de.Err.Error()
	}
	if status >= 500 {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, body)
}
