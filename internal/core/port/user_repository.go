package port

import (
	"context"
	"time"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
)

// UserRepository defines persistence operations for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// ExistsByUsernameOrEmail is the fast-path duplicate check before insert;
	// the unique constraints remain the correctness backstop.
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	UpdateProfile(ctx context.Context, id string, username, email string) error
	UpdatePassword(ctx context.Context, id string, passwordHash, passwordAlgo string, changedAt time.Time) error

	SetTOTPSecret(ctx context.Context, id string, secret string) error
	EnableTwoFactor(ctx context.Context, id string) error
	ClearTwoFactor(ctx context.Context, id string) error
}

// HistoryRepository persists the bounded per-user search and prediction
// histories.
type HistoryRepository interface {
	AddSearch(ctx context.Context, entry domain.SearchHistoryEntry) error
	ListSearches(ctx context.Context, userID string, limit int) ([]domain.SearchHistoryEntry, error)
	CountSearches(ctx context.Context, userID string) (int, error)
	TrimSearches(ctx context.Context, userID string, maxEntries int) error

	AddPrediction(ctx context.Context, entry domain.PredictionHistoryEntry) error
	ListPredictions(ctx context.Context, userID string, limit int) ([]domain.PredictionHistoryEntry, error)
	CountPredictions(ctx context.Context, userID string) (int, error)
	TrimPredictions(ctx context.Context, userID string, maxEntries int) error
}
