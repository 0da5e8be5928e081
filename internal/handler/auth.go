package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rescuelog/backend/internal/model"
	"github.com/rescuelog/backend/internal/service"
)

type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{svc: svc, logger: logger}
}

// Signup godoc
// @Summary Register a new account
// @Description Creates an account with role "user" and returns a fresh token pair.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.SignupRequest true "Full name, phone, optional email and password"
// @Success 201 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	var req model.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Invalid request"})
		return
	}

	sess, err := h.svc.Signup(c.Request.Context(), req)
	if err != nil {
		h.writeAuthError(c, err, "Signup failed")
		return
	}

	c.JSON(http.StatusCreated, model.AuthResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		User:         sess.Account.Projection(),
	})
}

// Login godoc
// @Summary Login
// @Description Unknown phone and wrong password both answer 401. Every 5th consecutive failure locks the account.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Phone and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 423 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Invalid request"})
		return
	}

	sess, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		h.writeAuthError(c, err, "Login failed")
		return
	}

	c.JSON(http.StatusOK, model.AuthResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		User:         sess.Account.Projection(),
	})
}

// RefreshToken godoc
// @Summary Refresh access token
// @Description Accepts only the refresh token stored by the latest login. refreshToken is returned only when rotation is enabled.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest true "Refresh token"
// @Success 200 {object} model.RefreshResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req model.RefreshRequest
	// 바디가 없거나 깨져 있으면 토큰이 없는 것으로 취급
	_ = c.ShouldBindJSON(&req)

	result, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeAuthError(c, err, "Server error")
		return
	}

	c.JSON(http.StatusOK, model.RefreshResponse{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	})
}

// Logout godoc
// @Summary Logout
// @Description Clears the server-side refresh token slot for the caller.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: "No token"})
		return
	}

	if err := h.svc.Logout(c.Request.Context(), user.ID); err != nil {
		h.writeAuthError(c, err, "Server error")
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logged out"})
}

// Me godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserProjection
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: "No token"})
		return
	}

	acct, err := h.svc.Me(c.Request.Context(), user.ID)
	if err != nil {
		h.writeAuthError(c, err, "Server error")
		return
	}
	c.JSON(http.StatusOK, acct.Projection())
}

// ChangePassword godoc
// @Summary Change password
// @Description Verifies the current password. A changed password ends every session of the account.
// @Tags user
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/user/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: "No token"})
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Invalid request"})
		return
	}

	if err := h.svc.ChangePassword(c.Request.Context(), user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		h.writeAuthError(c, err, "Server error")
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Password updated"})
}

// DeleteTestUser godoc
// @Summary Delete a test account
// @Description Test support. Registered only when ENABLE_TEST_ROUTES is true.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.DeleteTestUserRequest true "Phone"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/delete-test-user [post]
func (h *AuthHandler) DeleteTestUser(c *gin.Context) {
	var req model.DeleteTestUserRequest
	_ = c.ShouldBindJSON(&req)
	if strings.TrimSpace(req.Phone) == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Phone is required"})
		return
	}

	if err := h.svc.DeleteTestAccount(c.Request.Context(), req.Phone); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "delete test user failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: "Error deleting test user"})
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Test user deleted"})
}

// writeAuthError maps service errors onto status codes. Anything unrecognised is
// logged and answered with fallback so storage details never reach the client.
func (h *AuthHandler) writeAuthError(c *gin.Context, err error, fallback string) {
	var locked *service.LockedError
	switch {
	case errors.As(err, &locked):
		c.JSON(http.StatusLocked, model.ErrorResponse{
			Message: "Account locked. Try again at " + h.svc.Lockout().FormatUnlockTime(locked.Until),
		})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: inputMessage(err)})
	case errors.Is(err, service.ErrDuplicatePhone):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Message: "Phone already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: "Invalid credentials"})
	case errors.Is(err, service.ErrTokenMissing):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: "No token"})
	case errors.Is(err, service.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Message: "Invalid token"})
	case errors.Is(err, service.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Message: "User not found"})
	case errors.Is(err, service.ErrTokenMismatch):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Message: "Token does not match latest login"})
	case errors.Is(err, service.ErrTokenInvalid):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Message: "Invalid or expired refresh token"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Message: "Access denied"})
	default:
		h.logger.ErrorContext(c.Request.Context(), "auth request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Message: fallback})
	}
}

func inputMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
	if msg == "" || msg == service.ErrInvalidInput.Error() {
		return "Invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
