package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/tunepack-go/internal/infrastructure"
	"go.uber.org/zap"
)

// AuthHandler handles login state HTTP requests
type AuthHandler struct {
	auth   *infrastructure.AuthClient
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *infrastructure.AuthClient, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		auth:   auth,
		logger: logger,
	}
}

// Status handles GET /api/v1/auth/status
func (h *AuthHandler) Status(c *gin.Context) {
	status, err := h.auth.LoginStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("Login status check failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Login handles POST /api/v1/auth/login. It blocks until the QR login
// completes or the wait window expires; the QR code itself is surfaced
// through the client's OnQR hook.
func (h *AuthHandler) Login(c *gin.Context) {
	status, err := h.auth.AwaitLogin(c.Request.Context())
	if err != nil {
		h.logger.Warn("Login wait ended without a login", zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.auth.SetSessionToken("")
	c.JSON(http.StatusOK, gin.H{"message": "session cleared"})
}
