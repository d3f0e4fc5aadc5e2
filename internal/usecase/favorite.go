package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

var (
	// ErrFavoriteExists indicates the sneaker is already saved.
	ErrFavoriteExists = errors.New("sneaker is already in favorites")
	// ErrFavoriteNotFound indicates no favorite matched the sneaker id.
	ErrFavoriteNotFound = errors.New("favorite not found")
)

// FavoriteService manages a user's saved sneakers.
type FavoriteService struct {
	favorites port.FavoriteRepository
	now       func() time.Time
}

// NewFavoriteService constructs a favorite service.
func NewFavoriteService(favorites port.FavoriteRepository) *FavoriteService {
	return &FavoriteService{favorites: favorites, now: time.Now}
}

// WithClock overrides the internal clock, used in tests.
func (s *FavoriteService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Add saves a sneaker with its display fields and current price.
func (s *FavoriteService) Add(ctx context.Context, userID string, input domain.Favorite) (*domain.Favorite, error) {
	favorite := domain.Favorite{
		ID:         uuid.NewString(),
		UserID:     userID,
		SneakerID:  strings.TrimSpace(input.SneakerID),
		Name:       strings.TrimSpace(input.Name),
		Brand:      strings.TrimSpace(input.Brand),
		ImageURL:   strings.TrimSpace(input.ImageURL),
		SavedPrice: input.SavedPrice,
		CreatedAt:  s.now().UTC(),
	}

	if favorite.SneakerID == "" {
		return nil, fmt.Errorf("sneaker id is required")
	}
	if favorite.Name == "" {
		return nil, fmt.Errorf("sneaker name is required")
	}

	if err := s.favorites.Add(ctx, favorite); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrFavoriteExists
		}
		return nil, fmt.Errorf("add favorite: %w", err)
	}

	return &favorite, nil
}

// List returns the user's favorites, newest first.
func (s *FavoriteService) List(ctx context.Context, userID string) ([]domain.Favorite, error) {
	favorites, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	return favorites, nil
}

// Remove deletes one favorite by sneaker id.
func (s *FavoriteService) Remove(ctx context.Context, userID, sneakerID string) error {
	sneakerID = strings.TrimSpace(sneakerID)
	if sneakerID == "" {
		return fmt.Errorf("sneaker id is required")
	}

	if err := s.favorites.Remove(ctx, userID, sneakerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrFavoriteNotFound
		}
		return fmt.Errorf("remove favorite: %w", err)
	}

	return nil
}
