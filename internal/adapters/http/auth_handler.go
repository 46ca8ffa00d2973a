package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	authService ports.AuthService
	logger      *logger.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService ports.AuthService, logger *logger.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Register handles account creation
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.RegisterRequest true "Account details"
// @Success 201 {object} ports.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req ports.RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	response, err := h.authService.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusCreated, "User registered successfully", echo.Map{
		"user":         response.User,
		"token":        response.Token,
		"refreshToken": response.RefreshToken,
	})
}

// Login handles user login
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.LoginRequest true "Credentials"
// @Success 200 {object} ports.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req ports.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	response, err := h.authService.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Login successful", echo.Map{
		"user":         response.User,
		"token":        response.Token,
		"refreshToken": response.RefreshToken,
	})
}

// Profile returns the authenticated user
// @Summary Current user profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Router /auth/profile [get]
func (h *AuthHandler) Profile(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Profile retrieved successfully", echo.Map{"user": user})
}

// UpdateProfile changes the authenticated user's name or email
// @Summary Update profile
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ports.UpdateProfileRequest true "Profile fields"
// @Router /auth/profile [put]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	user, err := CurrentUser(c)
	if err != nil {
		return err
	}

	var req ports.UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	updated, err := h.authService.UpdateProfile(c.Request().Context(), user.ID, req)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Profile updated successfully", echo.Map{"user": updated})
}

// Refresh exchanges a refresh token for a new token pair
// @Summary Refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.RefreshRequest true "Refresh token"
// @Success 200 {object} ports.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req ports.RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	response, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Token refreshed successfully", echo.Map{
		"user":         response.User,
		"token":        response.Token,
		"refreshToken": response.RefreshToken,
	})
}

// Logout revokes the presented refresh token
// @Summary Log out
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ports.RefreshRequest true "Refresh token"
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req ports.RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken); err != nil {
		return err
	}

	return respond(c, http.StatusOK, "Logged out successfully", nil)
}
