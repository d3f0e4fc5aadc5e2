package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
)

// Response is the uniform envelope for message-only replies.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	TraceID string `json:"traceId,omitempty"`
}

// NewErrorResponse builds a failure envelope carrying the trace ID.
func NewErrorResponse(c *gin.Context, message string) Response {
	return Response{
		Success: false,
		Message: message,
		TraceID: middleware.GetTraceID(c),
	}
}

// NewMessageResponse builds a success envelope with a human-readable message.
func NewMessageResponse(message string) Response {
	return Response{Success: true, Message: message}
}

// RegisterRequest is the payload for account creation.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is the payload for credential login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TwoFactorValidateRequest completes the login challenge with a TOTP code.
type TwoFactorValidateRequest struct {
	Email string `json:"email" binding:"required"`
	Token string `json:"token" binding:"required"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPRequest exchanges the emailed code for a reset token.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// ResetPasswordRequest finalizes the reset flow.
type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

// ChangePasswordRequest updates the password for a logged-in user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// TwoFactorVerifyRequest confirms enrollment with an authenticator code.
type TwoFactorVerifyRequest struct {
	Token string `json:"token" binding:"required"`
}

// TwoFactorDisableRequest removes the second factor. The token is required
// only while two-factor is enabled.
type TwoFactorDisableRequest struct {
	Password string `json:"password" binding:"required"`
	Token    string `json:"token"`
}

// UpdateProfileRequest changes the mutable identity fields.
type UpdateProfileRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
}

// AddFavoriteRequest saves a sneaker to the user's favorites.
type AddFavoriteRequest struct {
	SneakerID string  `json:"sneakerId" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Brand     string  `json:"brand"`
	ImageURL  string  `json:"imageUrl"`
	Price     float64 `json:"price"`
}

// UserPayload is the sanitized user representation.
type UserPayload struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	TwoFactorEnabled bool      `json:"twoFactorEnabled"`
	CreatedAt        time.Time `json:"createdAt"`
}

func newUserPayload(user domain.User) UserPayload {
	return UserPayload{
		ID:               user.ID,
		Username:         user.Username,
		Email:            user.Email,
		TwoFactorEnabled: user.TwoFactorEnabled,
		CreatedAt:        user.CreatedAt,
	}
}

// AuthResponse carries a session token after registration or login.
type AuthResponse struct {
	Success   bool        `json:"success"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserPayload `json:"user"`
}

// TwoFactorChallengeResponse tells the client to retry with a TOTP code.
type TwoFactorChallengeResponse struct {
	Success           bool   `json:"success"`
	RequiresTwoFactor bool   `json:"requires2FA"`
	Email             string `json:"email"`
}

// OTPVerifyResponse carries the short-lived reset token.
type OTPVerifyResponse struct {
	Success    bool   `json:"success"`
	ResetToken string `json:"resetToken"`
}

// TwoFactorSetupResponse carries enrollment material for authenticator apps.
// QRCode is the otpauth:// provisioning URI the client renders as a QR image.
type TwoFactorSetupResponse struct {
	Success bool   `json:"success"`
	Secret  string `json:"secret"`
	QRCode  string `json:"qrCode"`
}

// TwoFactorStatusResponse reports the enrollment state.
type TwoFactorStatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Enabled bool   `json:"twoFactorEnabled"`
}

// ProfileStatsPayload aggregates activity counters.
type ProfileStatsPayload struct {
	Searches    int `json:"searches"`
	Predictions int `json:"predictions"`
	Favorites   int `json:"favorites"`
}

// ProfileResponse carries the user and their activity counters.
type ProfileResponse struct {
	Success bool                `json:"success"`
	User    UserPayload         `json:"user"`
	Stats   ProfileStatsPayload `json:"stats"`
}

// SearchHistoryPayload is one recorded catalog search.
type SearchHistoryPayload struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Results    int       `json:"results"`
	SearchedAt time.Time `json:"searchedAt"`
}

// SearchHistoryResponse lists recorded searches, newest first.
type SearchHistoryResponse struct {
	Success bool                   `json:"success"`
	History []SearchHistoryPayload `json:"history"`
}

// PredictionHistoryPayload is one recorded price prediction.
type PredictionHistoryPayload struct {
	ID             string    `json:"id"`
	SneakerID      string    `json:"sneakerId,omitempty"`
	SneakerName    string    `json:"sneakerName"`
	PredictedPrice float64   `json:"predictedPrice"`
	Confidence     float64   `json:"confidence"`
	PredictedAt    time.Time `json:"predictedAt"`
}

// PredictionHistoryResponse lists recorded predictions, newest first.
type PredictionHistoryResponse struct {
	Success bool                       `json:"success"`
	History []PredictionHistoryPayload `json:"history"`
}

// FavoritePayload is one saved sneaker.
type FavoritePayload struct {
	ID         string    `json:"id"`
	SneakerID  string    `json:"sneakerId"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand,omitempty"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	SavedPrice float64   `json:"savedPrice"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newFavoritePayload(fav domain.Favorite) FavoritePayload {
	return FavoritePayload{
		ID:         fav.ID,
		SneakerID:  fav.SneakerID,
		Name:       fav.Name,
		Brand:      fav.Brand,
		ImageURL:   fav.ImageURL,
		SavedPrice: fav.SavedPrice,
		CreatedAt:  fav.CreatedAt,
	}
}

// FavoritesResponse lists the user's saved sneakers.
type FavoritesResponse struct {
	Success   bool              `json:"success"`
	Favorites []FavoritePayload `json:"favorites"`
}

// FavoriteResponse carries one saved sneaker.
type FavoriteResponse struct {
	Success  bool            `json:"success"`
	Favorite FavoritePayload `json:"favorite"`
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadinessResponse reports per-dependency probe results.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
