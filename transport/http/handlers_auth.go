package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/custodia/core"
	"github.com/custodia-labs/custodia/internal/sol"
	"github.com/custodia-labs/custodia/service"
)

// AuthHandlers contains HTTP handlers for the login protocol.
type AuthHandlers struct {
	auth *service.AuthService
}

// NewAuthHandlers creates new auth handlers.
func NewAuthHandlers(auth *service.AuthService) *AuthHandlers {
	return &AuthHandlers{auth: auth}
}

// Nonce issues a fresh challenge for the given address.
func (h *AuthHandlers) Nonce(c *gin.Context) {
	address := c.Query("address")
	if !sol.ValidAddress(address) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address"})
		return
	}

	nonce, err := h.auth.Nonce(c.Request.Context(), address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue nonce"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Login verifies the signed challenge and returns a bearer credential. The
// two rejection messages are deliberately the only ones this endpoint emits.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Message   string `json:"message" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	token, err := h.auth.Login(c.Request.Context(), req.Address, req.Message, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrNonceInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrNonceInvalid.Error()})
		case errors.Is(err, core.ErrInvalidSignature):
			c.JSON(http.StatusBadRequest, gin.H{"error": core.ErrInvalidSignature.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me returns the authenticated subject.
func (h *AuthHandlers) Me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"address": owner(c)})
}
