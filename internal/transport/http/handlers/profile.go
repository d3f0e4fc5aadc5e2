package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

// ProfileHandler serves the authenticated user's profile and histories.
type ProfileHandler struct {
	users *usecase.UserService
}

// NewProfileHandler builds a profile handler.
func NewProfileHandler(users *usecase.UserService) *ProfileHandler {
	return &ProfileHandler{users: users}
}

// Get returns the profile with activity counters.
func (h *ProfileHandler) Get(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	user, stats, err := h.users.Profile(c.Request.Context(), userID)
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusInternalServerError, "could not load profile")
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		Success: true,
		User:    newUserPayload(*user),
		Stats: ProfileStatsPayload{
			Searches:    stats.Searches,
			Predictions: stats.Predictions,
			Favorites:   stats.Favorites,
		},
	})
}

// Update changes the username and email.
func (h *ProfileHandler) Update(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username and email are required"))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), userID, req.Username, req.Email)
	if err != nil {
		var dup *repository.DuplicateFieldError
		if errors.As(err, &dup) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, fmt.Sprintf("%s is already taken", dup.Field)))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
		}, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{Success: true, User: newUserPayload(*user)})
}

// SearchHistory lists the recorded catalog searches, newest first.
func (h *ProfileHandler) SearchHistory(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	entries, err := h.users.SearchHistory(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "could not load search history"))
		return
	}

	history := make([]SearchHistoryPayload, 0, len(entries))
	for _, entry := range entries {
		history = append(history, SearchHistoryPayload{
			ID:         entry.ID,
			Query:      entry.Query,
			Results:    entry.Results,
			SearchedAt: entry.SearchedAt,
		})
	}

	c.JSON(http.StatusOK, SearchHistoryResponse{Success: true, History: history})
}

// PredictionHistory lists the recorded predictions, newest first.
func (h *ProfileHandler) PredictionHistory(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	entries, err := h.users.PredictionHistory(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "could not load prediction history"))
		return
	}

	history := make([]PredictionHistoryPayload, 0, len(entries))
	for _, entry := range entries {
		history = append(history, PredictionHistoryPayload{
			ID:             entry.ID,
			SneakerID:      entry.SneakerID,
			SneakerName:    entry.SneakerName,
			PredictedPrice: entry.PredictedPrice,
			Confidence:     entry.Confidence,
			PredictedAt:    entry.PredictedAt,
		})
	}

	c.JSON(http.StatusOK, PredictionHistoryResponse{Success: true, History: history})
}
