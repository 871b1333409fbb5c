package users

import "time"

// User statuses. A user is pending until the verification flow sets a
// password.
const (
	StatusPending = "pending"
	StatusActive  = "active"
)

// User is an account on the platform. PasswordHash is empty until the account
// is verified and never serialized.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Verification is a one-shot token mailed (in principle) to a new user.
type Verification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// RefreshToken is a persisted refresh credential; rotation revokes the old row.
type RefreshToken struct {
	ID        int64
	UserID    int64
	Token     string
	ExpiresAt time.Time
	Revoked   bool
}
