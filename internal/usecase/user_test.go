package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

func userFixture(t *testing.T) (*UserService, *mockUserRepository, *mockHistoryRepository, *mockFavoriteRepository) {
	t.Helper()

	user := domain.User{
		ID:           "user-1",
		Username:     "kamal",
		Email:        "kamal@example.com",
		PasswordHash: "secret-hash",
	}
	users := &mockUserRepository{byID: map[string]domain.User{"user-1": user}}
	history := &mockHistoryRepository{}
	favorites := &mockFavoriteRepository{}

	service := NewUserService(users, history, favorites, zaptest.NewLogger(t))
	return service, users, history, favorites
}

func TestProfileReturnsSanitizedUserAndStats(t *testing.T) {
	service, _, history, favorites := userFixture(t)

	history.searches = []domain.SearchHistoryEntry{{ID: "s1"}, {ID: "s2"}}
	history.predictions = []domain.PredictionHistoryEntry{{ID: "p1"}}
	favorites.favorites = []domain.Favorite{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}}

	user, stats, err := service.Profile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Profile returned error: %v", err)
	}

	if user.PasswordHash != "" {
		t.Fatal("profile must not expose the password hash")
	}
	if stats.Searches != 2 || stats.Predictions != 1 || stats.Favorites != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestProfileUnknownUser(t *testing.T) {
	service, _, _, _ := userFixture(t)

	if _, _, err := service.Profile(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateProfilePropagatesDuplicate(t *testing.T) {
	service, users, _, _ := userFixture(t)
	users.updateProfileErr = &repository.DuplicateFieldError{Field: "email"}

	_, err := service.UpdateProfile(context.Background(), "user-1", "kamal", "taken@example.com")

	var dup *repository.DuplicateFieldError
	if !errors.As(err, &dup) || dup.Field != "email" {
		t.Fatalf("expected DuplicateFieldError for email, got %v", err)
	}
}

func TestUpdateProfileValidatesInput(t *testing.T) {
	service, users, _, _ := userFixture(t)

	if _, err := service.UpdateProfile(context.Background(), "user-1", "  ", "kamal@example.com"); err == nil {
		t.Fatal("expected error for blank username")
	}
	if _, err := service.UpdateProfile(context.Background(), "user-1", "kamal", "not-an-email"); err == nil {
		t.Fatal("expected error for malformed email")
	}
	if users.updateProfileCalls != 0 {
		t.Fatal("invalid input must not reach the repository")
	}
}

func TestUpdateProfileReloadsUser(t *testing.T) {
	service, _, _, _ := userFixture(t)

	user, err := service.UpdateProfile(context.Background(), "user-1", "newname", "NewMail@Example.com")
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}

	if user.Username != "newname" {
		t.Fatalf("expected updated username, got %s", user.Username)
	}
	if user.Email != "newmail@example.com" {
		t.Fatalf("expected normalized email, got %s", user.Email)
	}
	if user.PasswordHash != "" {
		t.Fatal("updated profile must not expose the password hash")
	}
}

func TestRecordSearchAppendsAndTrims(t *testing.T) {
	service, _, history, _ := userFixture(t)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.WithClock(func() time.Time { return at })

	if err := service.RecordSearch(context.Background(), "user-1", "  jordan 1  ", 17); err != nil {
		t.Fatalf("RecordSearch returned error: %v", err)
	}

	if len(history.searches) != 1 {
		t.Fatalf("expected one search entry, got %d", len(history.searches))
	}
	entry := history.searches[0]
	if entry.Query != "jordan 1" {
		t.Fatalf("expected trimmed query, got %q", entry.Query)
	}
	if entry.Results != 17 {
		t.Fatalf("unexpected result count: %d", entry.Results)
	}
	if !entry.SearchedAt.Equal(at) {
		t.Fatalf("unexpected timestamp: %v", entry.SearchedAt)
	}

	if history.trimSearchCalls != 1 || history.trimSearchLimit != domain.HistoryLimit {
		t.Fatalf("expected trim to %d entries, got %d calls with limit %d",
			domain.HistoryLimit, history.trimSearchCalls, history.trimSearchLimit)
	}
}

func TestRecordSearchRequiresQuery(t *testing.T) {
	service, _, history, _ := userFixture(t)

	if err := service.RecordSearch(context.Background(), "user-1", "   ", 0); err == nil {
		t.Fatal("expected error for blank query")
	}
	if len(history.searches) != 0 {
		t.Fatal("blank query must not be recorded")
	}
}

func TestRecordSearchSurvivesTrimFailure(t *testing.T) {
	service, _, history, _ := userFixture(t)
	history.trimSearchErr = errors.New("deadlock")

	if err := service.RecordSearch(context.Background(), "user-1", "dunk low", 3); err != nil {
		t.Fatalf("trim failure must not fail the append, got %v", err)
	}
	if len(history.searches) != 1 {
		t.Fatal("entry must still be recorded when trim fails")
	}
}

func TestRecordPredictionAppendsAndTrims(t *testing.T) {
	service, _, history, _ := userFixture(t)

	if err := service.RecordPrediction(context.Background(), "user-1", domain.PredictionHistoryEntry{
		SneakerID:      "aj1-chicago",
		SneakerName:    "Air Jordan 1 Chicago",
		PredictedPrice: 412.50,
		Confidence:     0.87,
	}); err != nil {
		t.Fatalf("RecordPrediction returned error: %v", err)
	}

	if len(history.predictions) != 1 {
		t.Fatalf("expected one prediction entry, got %d", len(history.predictions))
	}
	if history.predictions[0].UserID != "user-1" {
		t.Fatalf("unexpected user id: %s", history.predictions[0].UserID)
	}
	if history.trimPredictionCalls != 1 || history.trimPredictionLimit != domain.HistoryLimit {
		t.Fatalf("expected trim to %d entries", domain.HistoryLimit)
	}
}

func TestRecordPredictionRequiresName(t *testing.T) {
	service, _, history, _ := userFixture(t)

	err := service.RecordPrediction(context.Background(), "user-1", domain.PredictionHistoryEntry{
		SneakerID: "aj1-chicago",
	})
	if err == nil {
		t.Fatal("expected error for missing sneaker name")
	}
	if len(history.predictions) != 0 {
		t.Fatal("nameless prediction must not be recorded")
	}
}
