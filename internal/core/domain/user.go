package domain

import "time"

// TwoFactorStatus enumerates the TOTP enrollment states for an account.
type TwoFactorStatus string

const (
	TwoFactorDisabled TwoFactorStatus = "disabled"
	TwoFactorPending  TwoFactorStatus = "pending"
	TwoFactorEnabled  TwoFactorStatus = "enabled"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	PasswordAlgo     string
	TOTPSecret       *string
	TwoFactorEnabled bool
	CreatedAt        time.Time
}

// TwoFactorState derives the enrollment state from the persisted fields.
// A secret without the enabled flag means setup was started but never
// confirmed.
func (u User) TwoFactorState() TwoFactorStatus {
	switch {
	case u.TwoFactorEnabled:
		return TwoFactorEnabled
	case u.TOTPSecret != nil && *u.TOTPSecret != "":
		return TwoFactorPending
	default:
		return TwoFactorDisabled
	}
}

// SearchHistoryEntry records one sneaker search performed by a user.
type SearchHistoryEntry struct {
	ID         string
	UserID     string
	Query      string
	Results    int
	SearchedAt time.Time
}

// PredictionHistoryEntry records one price prediction requested by a user.
type PredictionHistoryEntry struct {
	ID             string
	UserID         string
	SneakerID      string
	SneakerName    string
	PredictedPrice float64
	Confidence     float64
	PredictedAt    time.Time
}

// HistoryLimit caps how many history entries are retained per user.
const HistoryLimit = 50
