package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/port"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

// UserService serves profiles and the bounded per-user histories.
type UserService struct {
	users     port.UserRepository
	history   port.HistoryRepository
	favorites port.FavoriteRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewUserService constructs a user service.
func NewUserService(users port.UserRepository, history port.HistoryRepository, favorites port.FavoriteRepository, log *zap.Logger) *UserService {
	return &UserService{
		users:     users,
		history:   history,
		favorites: favorites,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the internal clock, used in tests.
func (s *UserService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ProfileStats aggregates activity counters shown on the profile page.
type ProfileStats struct {
	Searches    int
	Predictions int
	Favorites   int
}

// Profile returns the sanitized user plus activity counters.
func (s *UserService) Profile(ctx context.Context, userID string) (*domain.User, *ProfileStats, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrUserNotFound
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	stats := &ProfileStats{}
	if stats.Searches, err = s.history.CountSearches(ctx, userID); err != nil {
		return nil, nil, fmt.Errorf("count searches: %w", err)
	}
	if stats.Predictions, err = s.history.CountPredictions(ctx, userID); err != nil {
		return nil, nil, fmt.Errorf("count predictions: %w", err)
	}
	if stats.Favorites, err = s.favorites.CountByUser(ctx, userID); err != nil {
		return nil, nil, fmt.Errorf("count favorites: %w", err)
	}

	sanitized := sanitizeUser(*user)
	return &sanitized, stats, nil
}

// UpdateProfile changes the username and email. Collisions surface as
// DuplicateFieldError from the repository.
func (s *UserService) UpdateProfile(ctx context.Context, userID, username, email string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = normalizeEmail(email)

	if username == "" {
		return nil, fmt.Errorf("username is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("email is invalid")
	}

	if err := s.users.UpdateProfile(ctx, userID, username, email); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}

	sanitized := sanitizeUser(*user)
	return &sanitized, nil
}

// RecordSearch appends a search entry and trims the history to its cap.
func (s *UserService) RecordSearch(ctx context.Context, userID, query string, results int) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return fmt.Errorf("query is required")
	}

	entry := domain.SearchHistoryEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Query:      query,
		Results:    results,
		SearchedAt: s.now().UTC(),
	}

	if err := s.history.AddSearch(ctx, entry); err != nil {
		return fmt.Errorf("add search entry: %w", err)
	}

	if err := s.history.TrimSearches(ctx, userID, domain.HistoryLimit); err != nil {
		// The cap is enforced again on the next append; losing one trim only
		// leaves the history briefly over the limit.
		s.logger.Warn("trim search history failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return nil
}

// SearchHistory lists the newest search entries, capped at the history limit.
func (s *UserService) SearchHistory(ctx context.Context, userID string) ([]domain.SearchHistoryEntry, error) {
	entries, err := s.history.ListSearches(ctx, userID, domain.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list search history: %w", err)
	}
	return entries, nil
}

// RecordPrediction appends a prediction entry and trims the history to its cap.
func (s *UserService) RecordPrediction(ctx context.Context, userID string, input domain.PredictionHistoryEntry) error {
	entry := domain.PredictionHistoryEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		SneakerID:      strings.TrimSpace(input.SneakerID),
		SneakerName:    strings.TrimSpace(input.SneakerName),
		PredictedPrice: input.PredictedPrice,
		Confidence:     input.Confidence,
		PredictedAt:    s.now().UTC(),
	}
	if entry.SneakerName == "" {
		return fmt.Errorf("sneaker name is required")
	}

	if err := s.history.AddPrediction(ctx, entry); err != nil {
		return fmt.Errorf("add prediction entry: %w", err)
	}

	if err := s.history.TrimPredictions(ctx, userID, domain.HistoryLimit); err != nil {
		s.logger.Warn("trim prediction history failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return nil
}

// PredictionHistory lists the newest prediction entries, capped at the limit.
func (s *UserService) PredictionHistory(ctx context.Context, userID string) ([]domain.PredictionHistoryEntry, error) {
	entries, err := s.history.ListPredictions(ctx, userID, domain.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("list prediction history: %w", err)
	}
	return entries, nil
}
