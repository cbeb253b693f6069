package sqlite

import (
	"context"
	"fmt"
	"time"
)

// RevokeSession records a signed-out session. Rows whose tokens have
// expired are purged on the way, since expired tokens fail validation anyway.
func (s *SQLiteStore) RevokeSession(ctx context.Context, sessionID string, expiresAt int64) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM revoked_sessions WHERE expires_at < ?",
		time.Now().Unix(),
	); err != nil {
		return fmt.Errorf("failed to purge revoked sessions: %w", err)
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO revoked_sessions (id, expires_at) VALUES (?, ?)",
		sessionID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsSessionRevoked reports whether a session was signed out.
func (s *SQLiteStore) IsSessionRevoked(ctx context.Context, sessionID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM revoked_sessions WHERE id = ?",
		sessionID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}
	return n > 0, nil
}
