package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/AnTengye/invoicedesk/config"
	"github.com/AnTengye/invoicedesk/middleware"
	"github.com/AnTengye/invoicedesk/model"
	"github.com/AnTengye/invoicedesk/service"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	config   *config.Config
	accounts *service.AccountService
}

func NewAuthHandler(cfg *config.Config, accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{config: cfg, accounts: accounts}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.accounts.Verify(req.Email, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		slog.Info("login rejected", "request_id", middleware.GetRequestID(c))
		respondError(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Login failed")
		return
	}

	h.issueToken(c, user)
}

// GetCurrentUser returns the current user info
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, ok := h.currentAccount(c)
	if !ok {
		return
	}
	respondOK(c, user)
}

// Verify confirms the token is still good and returns its user
func (h *AuthHandler) Verify(c *gin.Context) {
	user, ok := h.currentAccount(c)
	if !ok {
		return
	}
	respondOK(c, gin.H{"user": user})
}

// Refresh issues a new token for the current user
func (h *AuthHandler) Refresh(c *gin.Context) {
	user, ok := h.currentAccount(c)
	if !ok {
		return
	}
	h.issueToken(c, user)
}

// currentAccount resolves the token's user against the account table, so a
// removed account stops working before its token expires
func (h *AuthHandler) currentAccount(c *gin.Context) (*model.User, bool) {
	claimed := middleware.GetUser(c)
	if claimed == nil {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	user, ok := h.accounts.Lookup(claimed.ID)
	if !ok || user.Role != claimed.Role {
		respondError(c, http.StatusUnauthorized, "Account no longer valid")
		return nil, false
	}
	return user, true
}

func (h *AuthHandler) issueToken(c *gin.Context, user *model.User) {
	token, expiresAt, err := middleware.GenerateToken(user, &h.config.Auth)
	if err != nil {
		slog.Error("failed to generate token", "error", err, "request_id", middleware.GetRequestID(c))
		respondError(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondOK(c, model.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user,
	})
}
