package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/spachava753/stayconnected/auth"
)

// CreateUser stores an account. Anonymous accounts have no email.
func (s *Store) CreateUser(ctx context.Context, u auth.User, passwordHash string) error {
	var email sql.NullString
	if u.Email != "" {
		email = sql.NullString{String: u.Email, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, email, password_hash, anonymous, created_at) VALUES (?, ?, ?, ?, ?);`,
		u.ID, email, passwordHash, u.Anonymous, time.Now().UnixNano(),
	)
	if isConstraint(err, sqlite3.ErrConstraintUnique) {
		return auth.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("store: inserting user failed: %w", err)
	}
	return nil
}

// UserByEmail returns the account and password hash for email.
func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, string, error) {
	var (
		u    auth.User
		hash string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, email, password_hash FROM users WHERE email = ?;`, email).Scan(&u.ID, &u.Email, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, "", auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, "", fmt.Errorf("store: reading user failed: %w", err)
	}
	return u, hash, nil
}

// SaveSession records the signed-in user id. An empty id clears it.
func (s *Store) SaveSession(ctx context.Context, userID string) error {
	var err error
	if userID == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM session;`)
	} else {
		_, err = s.db.ExecContext(ctx, `
INSERT INTO session (id, user_id) VALUES (1, ?)
ON CONFLICT (id) DO UPDATE SET user_id = excluded.user_id;`, userID)
	}
	if err != nil {
		return fmt.Errorf("store: saving session failed: %w", err)
	}
	return nil
}

// LoadSession returns the last signed-in user.
func (s *Store) LoadSession(ctx context.Context) (auth.User, error) {
	var (
		u     auth.User
		email sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT u.id, u.email, u.anonymous FROM session s JOIN users u ON u.id = s.user_id WHERE s.id = 1;`).
		Scan(&u.ID, &email, &u.Anonymous)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, fmt.Errorf("store: loading session failed: %w", err)
	}
	u.Email = email.String
	return u, nil
}
