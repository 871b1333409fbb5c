package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists users, verification tokens and refresh tokens.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, email, COALESCE(password_hash, ''), type, status, created_at`

// CreateUser inserts a pending user and its verification token in one
// transaction.
func (r *Repository) CreateUser(ctx context.Context, u *User, v *Verification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create user: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		INSERT INTO users (name, email, type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, u.Name, u.Email, u.Type, u.Status)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	v.UserID = u.ID
	row = tx.QueryRowContext(ctx, `
		INSERT INTO user_verifications (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, v.UserID, v.Token, v.ExpiresAt)
	if err := row.Scan(&v.ID, &v.CreatedAt); err != nil {
		return fmt.Errorf("insert verification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create user: %w", err)
	}
	return nil
}

// UserByEmail returns the user, nil when absent.
func (r *Repository) UserByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE email = $1
	`, email))
}

// UserByID returns the user, nil when absent.
func (r *Repository) UserByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id = $1
	`, id))
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Type, &u.Status, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by creation.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Type, &u.Status, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// VerificationByToken returns an unexpired verification, nil when absent.
func (r *Repository) VerificationByToken(ctx context.Context, token string, now time.Time) (*Verification, error) {
	var v Verification
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, created_at
		FROM user_verifications
		WHERE token = $1 AND expires_at > $2
	`, token, now).Scan(&v.ID, &v.UserID, &v.Token, &v.ExpiresAt, &v.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("verification by token: %w", err)
	}
	return &v, nil
}

// ActivateUser sets the password, flips the user to active and consumes the
// verification token atomically.
func (r *Repository) ActivateUser(ctx context.Context, userID int64, passwordHash string, verificationID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin activate: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, status = $3 WHERE id = $1
	`, userID, passwordHash, StatusActive); err != nil {
		return fmt.Errorf("activate user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM user_verifications WHERE id = $1
	`, verificationID); err != nil {
		return fmt.Errorf("consume verification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit activate: %w", err)
	}
	return nil
}

// SaveRefreshToken persists a newly issued refresh token.
func (r *Repository) SaveRefreshToken(ctx context.Context, t *RefreshToken) error {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, t.UserID, t.Token, t.ExpiresAt)
	if err := row.Scan(&t.ID); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// RefreshTokenLive reports whether the token exists, is unrevoked and
// unexpired.
func (r *Repository) RefreshTokenLive(ctx context.Context, token string, now time.Time) (*RefreshToken, error) {
	var t RefreshToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, token, expires_at, revoked
		FROM refresh_tokens
		WHERE token = $1 AND revoked = FALSE AND expires_at > $2
	`, token, now).Scan(&t.ID, &t.UserID, &t.Token, &t.ExpiresAt, &t.Revoked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("refresh token lookup: %w", err)
	}
	return &t, nil
}

// RevokeRefreshToken marks a token revoked; rotation calls this on the old row.
func (r *Repository) RevokeRefreshToken(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1
	`, id); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}
