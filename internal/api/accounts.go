package api

import (
	"net/http"

	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) loginBuyer(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, _, err := h.auth.LoginBuyer(c.Request.Context(), req, service.ClientInfo{
		IPAddress:  c.ClientIP(),
		DeviceInfo: c.Request.UserAgent(),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "User logged in successfully",
		"token":   token,
	})
}

func (h *Handler) buyerSession(c *gin.Context) {
	user, logs, err := h.auth.BuyerSession(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_data": user,
		"sessions":  logs,
	})
}

func (h *Handler) loginSeller(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	token, _, err := h.auth.LoginSeller(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Seller logged in successfully",
		"token":   token,
	})
}

func (h *Handler) sellerSession(c *gin.Context) {
	seller, err := h.auth.SellerSession(c.Request.Context(), currentSeller(c).ID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, seller)
}
