package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/security"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/repository"
)

func newTestTokens(t *testing.T) *security.JWTManager {
	t.Helper()

	provider, err := security.NewEphemeralKeyProvider("test-key")
	if err != nil {
		t.Fatalf("NewEphemeralKeyProvider returned error: %v", err)
	}

	manager, err := security.NewJWTManager(security.JWTManagerOptions{
		Provider:   provider,
		KID:        provider.SigningKID(),
		Issuer:     "driplytics-test",
		SessionTTL: time.Hour,
		ResetTTL:   15 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewJWTManager returned error: %v", err)
	}

	return manager
}

func mustHashPassword(t *testing.T, password string) string {
	t.Helper()

	hash, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	return hash
}

type mockUserRepository struct {
	byID    map[string]domain.User
	byEmail map[string]domain.User

	createErr   error
	createCalls int
	created     domain.User

	getByEmailErr error
	existsResult  bool
	existsErr     error

	updateProfileErr   error
	updateProfileCalls int

	updatePasswordErr    error
	updatePasswordCalls  int
	updatedPasswordHash  string
	updatedPasswordAlgo  string
	updatedPasswordAt    time.Time
	updatedPasswordID    string

	setSecretErr   error
	setSecretCalls int
	setSecretValue string

	enableErr   error
	enableCalls int

	clearErr   error
	clearCalls int
	clearedID  string
}

func (m *mockUserRepository) Create(_ context.Context, user domain.User) error {
	m.createCalls++
	m.created = user
	return m.createErr
}

func (m *mockUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	if user, ok := m.byID[id]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.getByEmailErr != nil {
		return nil, m.getByEmailErr
	}
	if user, ok := m.byEmail[email]; ok {
		copy := user
		return &copy, nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockUserRepository) ExistsByUsernameOrEmail(context.Context, string, string) (bool, error) {
	return m.existsResult, m.existsErr
}

func (m *mockUserRepository) UpdateProfile(_ context.Context, id, username, email string) error {
	m.updateProfileCalls++
	if m.updateProfileErr != nil {
		return m.updateProfileErr
	}
	if user, ok := m.byID[id]; ok {
		user.Username = username
		user.Email = email
		m.byID[id] = user
	}
	return nil
}

func (m *mockUserRepository) UpdatePassword(_ context.Context, id, passwordHash, passwordAlgo string, changedAt time.Time) error {
	m.updatePasswordCalls++
	m.updatedPasswordID = id
	m.updatedPasswordHash = passwordHash
	m.updatedPasswordAlgo = passwordAlgo
	m.updatedPasswordAt = changedAt
	return m.updatePasswordErr
}

func (m *mockUserRepository) SetTOTPSecret(_ context.Context, id, secret string) error {
	m.setSecretCalls++
	m.setSecretValue = secret
	return m.setSecretErr
}

func (m *mockUserRepository) EnableTwoFactor(_ context.Context, id string) error {
	m.enableCalls++
	return m.enableErr
}

func (m *mockUserRepository) ClearTwoFactor(_ context.Context, id string) error {
	m.clearCalls++
	m.clearedID = id
	return m.clearErr
}

type mockEventPublisher struct {
	registered      []domain.UserRegisteredEvent
	passwordChanged []domain.PasswordChangedEvent
	resetRequested  []domain.PasswordResetRequestedEvent
	twoFactor       []domain.TwoFactorStatusChangedEvent
	err             error
}

func (m *mockEventPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	m.registered = append(m.registered, event)
	return m.err
}

func (m *mockEventPublisher) PublishPasswordChanged(_ context.Context, event domain.PasswordChangedEvent) error {
	m.passwordChanged = append(m.passwordChanged, event)
	return m.err
}

func (m *mockEventPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	m.resetRequested = append(m.resetRequested, event)
	return m.err
}

func (m *mockEventPublisher) PublishTwoFactorStatusChanged(_ context.Context, event domain.TwoFactorStatusChangedEvent) error {
	m.twoFactor = append(m.twoFactor, event)
	return m.err
}

type mockOTPStore struct {
	records map[string]*domain.ResetOTP
	clock   func() time.Time

	replaceErr   error
	replaceCalls int
	getErr       error
	markErr      error
	markCalls    int
	deleteErr    error
	deleteCalls  int
}

func newMockOTPStore(clock func() time.Time) *mockOTPStore {
	if clock == nil {
		clock = time.Now
	}
	return &mockOTPStore{
		records: make(map[string]*domain.ResetOTP),
		clock:   clock,
	}
}

func (m *mockOTPStore) Replace(_ context.Context, email, code string, ttl time.Duration) (*domain.ResetOTP, error) {
	m.replaceCalls++
	if m.replaceErr != nil {
		return nil, m.replaceErr
	}

	now := m.clock().UTC()
	record := &domain.ResetOTP{
		Email:     email,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.records[email] = record

	copy := *record
	return &copy, nil
}

func (m *mockOTPStore) Get(_ context.Context, email string) (*domain.ResetOTP, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	record, ok := m.records[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *record
	return &copy, nil
}

func (m *mockOTPStore) MarkUsed(_ context.Context, email string) error {
	m.markCalls++
	if m.markErr != nil {
		return m.markErr
	}
	record, ok := m.records[email]
	if !ok {
		return repository.ErrNotFound
	}
	record.Used = true
	return nil
}

func (m *mockOTPStore) Delete(_ context.Context, email string) error {
	m.deleteCalls++
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.records[email]; !ok {
		return repository.ErrNotFound
	}
	delete(m.records, email)
	return nil
}

type sentMail struct {
	email     string
	code      string
	expiresAt time.Time
}

type mockMailer struct {
	sent []sentMail
	err  error
}

func (m *mockMailer) SendResetOTP(_ context.Context, email, code string, expiresAt time.Time) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{email: email, code: code, expiresAt: expiresAt})
	return nil
}

type mockRateLimitStore struct {
	attempts map[string][]time.Time

	recordErr error
	countErr  error
	trimErr   error
}

func newMockRateLimitStore() *mockRateLimitStore {
	return &mockRateLimitStore{attempts: make(map[string][]time.Time)}
}

func (m *mockRateLimitStore) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *mockRateLimitStore) CountAttempts(_ context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, at := range m.attempts[identifier] {
		if !at.Before(reference.Add(-window)) {
			count++
		}
	}
	return count, nil
}

func (m *mockRateLimitStore) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	return m.trimErr
}

func (m *mockRateLimitStore) OldestAttempt(_ context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error) {
	attempts := m.attempts[identifier]
	if len(attempts) == 0 {
		return time.Time{}, false, nil
	}
	return attempts[0], true, nil
}

type mockHistoryRepository struct {
	searches    []domain.SearchHistoryEntry
	predictions []domain.PredictionHistoryEntry

	addSearchErr        error
	trimSearchErr       error
	trimSearchCalls     int
	trimSearchLimit     int
	addPredictionErr    error
	trimPredictionErr   error
	trimPredictionCalls int
	trimPredictionLimit int
	listErr             error
	countErr            error
}

func (m *mockHistoryRepository) AddSearch(_ context.Context, entry domain.SearchHistoryEntry) error {
	if m.addSearchErr != nil {
		return m.addSearchErr
	}
	m.searches = append(m.searches, entry)
	return nil
}

func (m *mockHistoryRepository) ListSearches(_ context.Context, userID string, limit int) ([]domain.SearchHistoryEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.SearchHistoryEntry, len(m.searches))
	copy(out, m.searches)
	return out, nil
}

func (m *mockHistoryRepository) CountSearches(_ context.Context, userID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.searches), nil
}

func (m *mockHistoryRepository) TrimSearches(_ context.Context, userID string, maxEntries int) error {
	m.trimSearchCalls++
	m.trimSearchLimit = maxEntries
	return m.trimSearchErr
}

func (m *mockHistoryRepository) AddPrediction(_ context.Context, entry domain.PredictionHistoryEntry) error {
	if m.addPredictionErr != nil {
		return m.addPredictionErr
	}
	m.predictions = append(m.predictions, entry)
	return nil
}

func (m *mockHistoryRepository) ListPredictions(_ context.Context, userID string, limit int) ([]domain.PredictionHistoryEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.PredictionHistoryEntry, len(m.predictions))
	copy(out, m.predictions)
	return out, nil
}

func (m *mockHistoryRepository) CountPredictions(_ context.Context, userID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.predictions), nil
}

func (m *mockHistoryRepository) TrimPredictions(_ context.Context, userID string, maxEntries int) error {
	m.trimPredictionCalls++
	m.trimPredictionLimit = maxEntries
	return m.trimPredictionErr
}

type mockFavoriteRepository struct {
	favorites []domain.Favorite

	addErr    error
	listErr   error
	countErr  error
	removeErr error
}

func (m *mockFavoriteRepository) Add(_ context.Context, favorite domain.Favorite) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.favorites = append(m.favorites, favorite)
	return nil
}

func (m *mockFavoriteRepository) ListByUser(_ context.Context, userID string) ([]domain.Favorite, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]domain.Favorite, len(m.favorites))
	copy(out, m.favorites)
	return out, nil
}

func (m *mockFavoriteRepository) CountByUser(_ context.Context, userID string) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.favorites), nil
}

func (m *mockFavoriteRepository) Remove(_ context.Context, userID, sneakerID string) error {
	if m.removeErr != nil {
		return m.removeErr
	}
	for i, favorite := range m.favorites {
		if favorite.UserID == userID && favorite.SneakerID == sneakerID {
			m.favorites = append(m.favorites[:i], m.favorites[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}
