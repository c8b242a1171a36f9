package storage

import (
	"context"
	"time"

	"finance-tracker/internal/models"
)

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// CreateSession creates a new session for a user.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := s.exec(ctx,
		"INSERT INTO sessions (token, user_id, expires_at, last_activity) VALUES (?, ?, ?, ?)",
		token, userID, expiresAt.UTC().Truncate(time.Second), utcNow(),
	)
	return err
}

// SessionInfo holds session validation data.
type SessionInfo struct {
	User         *models.User
	LastActivity time.Time
	ExpiresAt    time.Time
}

// ValidateSessionWithInfo checks if a session token is valid and returns session details.
func (s *Store) ValidateSessionWithInfo(ctx context.Context, token string) (*SessionInfo, error) {
	row := s.queryRow(ctx, `
		SELECT u.id, u.username, u.email, u.password_hash, u.created_at, s.last_activity, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > ?
	`, token, utcNow())

	var u models.User
	var lastActivity, expiresAt time.Time
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt, &lastActivity, &expiresAt); err != nil {
		return nil, notFound(err)
	}
	return &SessionInfo{
		User:         &u,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
	}, nil
}

// RenewSession updates the last_activity and expires_at for a session.
func (s *Store) RenewSession(ctx context.Context, token string, newExpiresAt time.Time) error {
	_, err := s.exec(ctx,
		"UPDATE sessions SET last_activity = ?, expires_at = ? WHERE token = ?",
		utcNow(), newExpiresAt.UTC().Truncate(time.Second), token,
	)
	return err
}

// DeleteSession removes a session by token.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	_, err := s.exec(ctx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// DeleteUserSessions removes every session belonging to a user.
func (s *Store) DeleteUserSessions(ctx context.Context, userID int64) error {
	_, err := s.exec(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	return err
}

// CleanExpiredSessions removes all expired sessions and reports how many went.
func (s *Store) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "DELETE FROM sessions WHERE expires_at <= ?", utcNow())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
