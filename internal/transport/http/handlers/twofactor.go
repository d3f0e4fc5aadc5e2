package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

// TwoFactorHandler serves TOTP enrollment for the authenticated user.
type TwoFactorHandler struct {
	twofactor *usecase.TwoFactorService
}

// NewTwoFactorHandler builds a two-factor handler.
func NewTwoFactorHandler(twofactor *usecase.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twofactor: twofactor}
}

// Setup issues a fresh secret and provisioning URI.
func (h *TwoFactorHandler) Setup(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	setup, err := h.twofactor.Setup(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusBadRequest, Message: "two-factor authentication is already enabled"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "could not start two-factor setup")
		return
	}

	c.JSON(http.StatusOK, TwoFactorSetupResponse{
		Success: true,
		Secret:  setup.Secret,
		QRCode:  setup.ProvisioningURI,
	})
}

// Verify confirms the authenticator code and enables the second factor.
func (h *TwoFactorHandler) Verify(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "token is required"))
		return
	}

	if err := h.twofactor.Verify(c.Request.Context(), userID, req.Token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrTwoFactorAlreadyEnabled, Status: http.StatusBadRequest, Message: "two-factor authentication is already enabled"},
			{Err: usecase.ErrTwoFactorNotConfigured, Status: http.StatusBadRequest, Message: "run setup before verifying"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusBadRequest, Message: "invalid two-factor code"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "could not verify two-factor code")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("two-factor authentication enabled"))
}

// Disable removes the second factor. The password is always required; the
// TOTP token only while the factor is enabled.
func (h *TwoFactorHandler) Disable(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req TwoFactorDisableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "password is required"))
		return
	}

	if err := h.twofactor.Disable(c.Request.Context(), userID, req.Password, req.Token); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "password is incorrect"},
			{Err: usecase.ErrInvalidTwoFactorCode, Status: http.StatusBadRequest, Message: "invalid two-factor code"},
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "could not disable two-factor authentication")
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("two-factor authentication disabled"))
}

// Status reports the current enrollment state.
func (h *TwoFactorHandler) Status(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	status, err := h.twofactor.Status(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "could not load two-factor status")
		return
	}

	c.JSON(http.StatusOK, TwoFactorStatusResponse{
		Success: true,
		Status:  string(status),
		Enabled: status == domain.TwoFactorEnabled,
	})
}
