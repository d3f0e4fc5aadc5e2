package port

import (
	"context"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
)

// FavoriteRepository persists saved sneakers per user.
type FavoriteRepository interface {
	Add(ctx context.Context, favorite domain.Favorite) error
	ListByUser(ctx context.Context, userID string) ([]domain.Favorite, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Remove(ctx context.Context, userID, sneakerID string) error
}
