package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yavishsahrawat40/My-Notes/internal/model"
	"github.com/yavishsahrawat40/My-Notes/internal/service"
)

// authService - session lifecycle
type authService interface {
	Register(ctx context.Context, name, email, password string) (*model.User, model.SessionPair, error)
	Login(ctx context.Context, email, password string) (*model.User, model.SessionPair, error)
	Refresh(ctx context.Context, refreshToken string) (model.SessionPair, error)
	Logout(ctx context.Context, refreshToken string)
	LogoutAll(ctx context.Context, userID string) (int64, error)
	AllowSignup() bool
}

// userService - profile of the signed-in user
type userService interface {
	Profile(ctx context.Context, userID string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID, name, email string) (*model.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type AuthHandler struct {
	svc   authService
	users userService
}

func NewAuthHandler(svc authService, users userService) *AuthHandler {
	return &AuthHandler{svc: svc, users: users}
}

// Register godoc
// @Summary Register a new user
// @Description Sign up when ALLOW_SIGNUP is true.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Name, email and password"
// @Success 201 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, pair, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse(user, pair))
}

// Login godoc
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Email and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse(user, pair))
}

// Refresh godoc
// @Summary Rotate the refresh token
// @Description Consumes the refresh token and returns a new access/refresh pair. A token can be used once.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RefreshRequest true "Refresh token"
// @Success 200 {object} model.RefreshResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req model.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	pair, err := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// Logout godoc
// @Summary Logout
// @Description Revokes the refresh token if one is sent. Always succeeds.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LogoutRequest false "Refresh token"
// @Success 200 {object} model.MessageResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	var req model.LogoutRequest
	// An empty or malformed body still logs the caller out client-side.
	_ = c.ShouldBindJSON(&req)

	h.svc.Logout(c.Request.Context(), req.RefreshToken)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}

// LogoutAll godoc
// @Summary Logout from every device
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.MessageResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/logout-all [post]
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	if _, err := h.svc.LogoutAll(c.Request.Context(), user.ID); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logged out from all sessions"})
}

// Config godoc
// @Summary Get auth config
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthConfigResponse
// @Router /api/auth/config [get]
func (h *AuthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, model.AuthConfigResponse{
		AllowSignup: h.svc.AllowSignup(),
	})
}

// Profile godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.ProfileResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/auth/profile [get]
func (h *AuthHandler) Profile(c *gin.Context) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	user, err := h.users.Profile(c.Request.Context(), authUser.ID)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ProfileResponse{User: user.Public()})
}

// UpdateProfile godoc
// @Summary Update name and email
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} model.ProfileUpdateResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 409 {object} model.ErrorResponse
// @Router /api/auth/profile [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	var req model.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), authUser.ID, req.Name, req.Email)
	if err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.ProfileUpdateResponse{
		Message: "Profile updated successfully",
		User:    user.Public(),
	})
}

// ChangePassword godoc
// @Summary Change password
// @Description Signs the user out of every session on success.
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.ChangePasswordRequest true "Current and new password"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/password [put]
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	authUser := GetAuthUser(c)
	if authUser == nil {
		writeUnauthorized(c, codeMissingToken)
		return
	}

	var req model.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), authUser.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Password updated successfully"})
}

func authResponse(user *model.User, pair model.SessionPair) model.AuthResponse {
	return model.AuthResponse{
		User:         user.Public(),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}
}

func writeBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid request: " + err.Error()})
}

// writeAuthError maps service errors to HTTP responses. Internal failures
// never leak their cause to the client.
func writeAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "invalid email or password"})
	case errors.Is(err, service.ErrSessionInvalid):
		c.JSON(http.StatusUnauthorized, model.ErrorResponse{Error: "invalid or expired refresh token", Code: "session_invalid"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, model.ErrorResponse{Error: "signup disabled"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, model.ErrorResponse{Error: err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "internal server error"})
	}
}
