package handlers

import (
	"net/http"

	"storefront/internal/common"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/labstack/echo/v4"
)

// AuthHandlers handles signup and signin
type AuthHandlers struct {
	authService services.AuthService
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(authService services.AuthService) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

// SignupRequest is the body of POST /auth/signup
type SignupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

// SigninRequest is the body of POST /auth/signin
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserResponse wraps a created user
type UserResponse struct {
	Message string       `json:"message"`
	Data    *models.User `json:"data"`
}

// SigninResult wraps the signed in user and token
type SigninResult struct {
	Message string                 `json:"message"`
	Data    *models.SigninResponse `json:"data"`
}

// Signup handles POST /auth/signup
//
//	@Summary	Register a user
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SignupRequest	true	"account"
//	@Success	201		{object}	UserResponse
//	@Failure	400		{object}	common.ErrorResponse
//	@Failure	409		{object}	common.ErrorResponse
//	@Router		/auth/signup [post]
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}

	user, err := h.authService.Signup(c.Request().Context(), req.Username, req.Password, req.Address, models.Role(req.Role))
	if err != nil {
		return common.SendAppError(c, err)
	}

	return c.JSON(http.StatusCreated, UserResponse{Message: "User created successfully", Data: user})
}

// Signin handles POST /auth/signin
//
//	@Summary	Sign in
//	@Tags		auth
//	@Accept		json
//	@Produce	json
//	@Param		body	body		SigninRequest	true	"credentials"
//	@Success	200		{object}	SigninResult
//	@Failure	403		{object}	common.ErrorResponse
//	@Failure	404		{object}	common.ErrorResponse
//	@Router		/auth/signin [post]
func (h *AuthHandlers) Signin(c echo.Context) error {
	var req SigninRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := common.ValidateRequiredString(req.Username, "username", 50); err != nil {
		return common.SendValidationError(c, "username", err.Error())
	}
	if req.Password == "" {
		return common.SendValidationError(c, "password", "password is required")
	}

	resp, err := h.authService.Signin(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return common.SendAppError(c, err)
	}

	return c.JSON(http.StatusOK, SigninResult{Message: "Signin successful", Data: resp})
}
