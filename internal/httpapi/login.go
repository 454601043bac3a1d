package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"sukpos/internal/domain"
	"sukpos/internal/store"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, domain.Wrap(domain.KindValidation, "Email and password are required", err))
		return
	}

	user, err := h.store.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.respondError(c, domain.E(domain.KindUnauthorized, "Invalid credentials"))
			return
		}
		h.respondError(c, err)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		h.respondError(c, domain.E(domain.KindUnauthorized, "Invalid credentials"))
		return
	}
	if !user.IsActive {
		h.respondError(c, domain.E(domain.KindUnauthorized, "Account is deactivated"))
		return
	}
	if user.Shop != nil && !user.Shop.IsActive {
		h.respondError(c, domain.E(domain.KindForbidden, "Shop is deactivated"))
		return
	}

	token, expiresAt, err := h.tokens.Generate(user.ID, user.ShopID, user.Role, user.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": expiresAt,
		"user": gin.H{
			"id":      user.ID,
			"name":    user.Name,
			"email":   user.Email,
			"role":    user.Role,
			"shop_id": user.ShopID,
		},
	})
}
