package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/transport/http/middleware"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/usecase"
)

// FavoritesHandler serves the authenticated user's saved sneakers.
type FavoritesHandler struct {
	favorites *usecase.FavoriteService
}

// NewFavoritesHandler builds a favorites handler.
func NewFavoritesHandler(favorites *usecase.FavoriteService) *FavoritesHandler {
	return &FavoritesHandler{favorites: favorites}
}

// List returns the user's favorites, newest first.
func (h *FavoritesHandler) List(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	favorites, err := h.favorites.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "could not load favorites"))
		return
	}

	payload := make([]FavoritePayload, 0, len(favorites))
	for _, fav := range favorites {
		payload = append(payload, newFavoritePayload(fav))
	}

	c.JSON(http.StatusOK, FavoritesResponse{Success: true, Favorites: payload})
}

// Add saves a sneaker to the user's favorites.
func (h *FavoritesHandler) Add(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req AddFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "sneakerId and name are required"))
		return
	}

	favorite, err := h.favorites.Add(c.Request.Context(), userID, domain.Favorite{
		SneakerID:  req.SneakerID,
		Name:       req.Name,
		Brand:      req.Brand,
		ImageURL:   req.ImageURL,
		SavedPrice: req.Price,
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrFavoriteExists, Status: http.StatusBadRequest, Message: "sneaker is already in favorites"},
		}, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, FavoriteResponse{Success: true, Favorite: newFavoritePayload(*favorite)})
}

// Remove deletes one favorite by sneaker id.
func (h *FavoritesHandler) Remove(c *gin.Context) {
	userID, ok := middleware.GetAuthenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	sneakerID := c.Param("sneakerId")
	if err := h.favorites.Remove(c.Request.Context(), userID, sneakerID); err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrFavoriteNotFound, Status: http.StatusNotFound, Message: "favorite not found"},
		}, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, NewMessageResponse("favorite removed"))
}
