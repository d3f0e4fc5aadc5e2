package domain

import "time"

// Favorite links a user to a sneaker with denormalized display fields and the
// price at the moment it was saved. (user_id, sneaker_id) is unique.
type Favorite struct {
	ID         string
	UserID     string
	SneakerID  string
	Name       string
	Brand      string
	ImageURL   string
	SavedPrice float64
	CreatedAt  time.Time
}
