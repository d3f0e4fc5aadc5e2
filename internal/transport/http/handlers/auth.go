package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	auth *usecase.AuthService
}

// NewAuthHandler builds an auth handler.
func NewAuthHandler(auth *usecase.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register creates an account and returns a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username, email and password are required"))
		return
	}

	result, err := h.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		var dup *repository.DuplicateFieldError
		if errors.As(err, &dup) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, fmt.Sprintf("%s is already taken", dup.Field)))
			return
		}
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Success:   true,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      newUserPayload(result.User),
	})
}

// Login verifies credentials and issues a session token. Accounts with an
// active second factor get a challenge instead.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and password are required"))
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, usecase.ErrTwoFactorRequired) {
			c.JSON(http.StatusOK, TwoFactorChallengeResponse{
				Success:           true,
				RequiresTwoFactor: true,
				Email:             req.Email,
			})
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid email or password"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Success:   true,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      newUserPayload(result.User),
	})
}

// ValidateTwoFactor completes login for accounts with an active second
// factor.
func (h *AuthHandler) ValidateTwoFactor(c *gin.Context) {
	var req TwoFactorValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and token are required"))
		return
	}

	result, err := h.auth.ValidateTwoFactorLogin(c.Request.Context(), req.Email, req.Token)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorNotEnabled, Status: http.StatusBadRequest, Message: "two-factor authentication is not enabled"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusBadRequest, Message: "invalid two-factor code"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Success:   true,
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      newUserPayload(result.User),
	})
}
