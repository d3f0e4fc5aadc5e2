package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

// PasswordHandler serves the forgot-password flow and in-session password
// changes.
type PasswordHandler struct {
	resets *usecase.PasswordResetService
}

// NewPasswordHandler builds a password handler.
func NewPasswordHandler(resets *usecase.PasswordResetService) *PasswordHandler {
	return &PasswordHandler{resets: resets}
}

// Forgot issues and mails a reset code. The response does not reveal whether
// the email belongs to an account.
func (h *PasswordHandler) Forgot(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email is required"))
		return
	}

	if err := h.resets.RequestReset(c.Request.Context(), req.Email); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTooManyResetRequests, Status: http.StatusTooManyRequests, Message: "too many reset requests, try again later"},
			{Err: usecase.ErrMailDelivery, Status: http.StatusBadGateway, Message: "could not deliver reset code, try again"},
		}, http.StatusInternalServerError, "could not process reset request")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("if the email exists, a reset code has been sent"))
}

// VerifyOTP exchanges the emailed code for a short-lived reset token.
func (h *PasswordHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "email and otp are required"))
		return
	}

	token, err := h.resets.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrOTPInvalidOrExpired, Status: http.StatusBadRequest, Message: "code is invalid or expired"},
		}, http.StatusInternalServerError, "could not verify code")
		return
	}

	c.JSON(http.StatusOK, OTPVerifyResponse{Success: true, ResetToken: token})
}

// Reset finalizes the flow with the token from VerifyOTP.
func (h *PasswordHandler) Reset(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "resetToken and newPassword are required"))
		return
	}

	if err := h.resets.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		if errors.Is(err, usecase.ErrPasswordPolicyViolation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrResetTokenInvalid, Status: http.StatusUnauthorized, Message: "reset token is invalid or expired"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "could not reset password")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("password has been reset"))
}

// Change updates the password for the authenticated user.
func (h *PasswordHandler) Change(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "currentPassword and newPassword are required"))
		return
	}

	if err := h.resets.ChangePassword(c.Request.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, usecase.ErrPasswordPolicyViolation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "could not change password")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("password has been changed"))
}
