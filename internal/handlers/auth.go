package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/teamsync/backend/internal/middleware"
	"github.com/teamsync/backend/internal/services"
	"github.com/teamsync/backend/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Register creates an unverified account and mails a verification link
// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(&req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, gin.H{
		"user":    user,
		"message": "check your email to verify your account",
	})
}

// VerifyEmail consumes a verification token and logs the user in
// GET /api/auth/verify-email/:token
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	result, err := h.authService.VerifyEmail(c.Param("token"), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req services.ResendVerificationRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ResendVerification(&req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "verification email sent"})
}

// Login handles user login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req services.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.authService.Refresh(req.RefreshToken, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// Logout revokes the refresh token; the access token simply expires.
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req services.RefreshRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.Logout(req.RefreshToken); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "logged out successfully"})
}

// Me returns the current logged-in user
// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.authService.Me(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, user)
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ChangePassword(middleware.GetUserID(c), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password changed"})
}

// POST /api/auth/password-reset
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req services.PasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.RequestPasswordReset(&req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password reset email sent"})
}

// POST /api/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req services.ConfirmPasswordResetRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ConfirmPasswordReset(&req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "password reset successful"})
}
