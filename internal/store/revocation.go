package store

import (
	"database/sql"
	"fmt"
	"time"
)

// RevocationStore records session token IDs that were logged out before
// they expired.
type RevocationStore struct {
	db *sql.DB
}

func NewRevocationStore(db *sql.DB) *RevocationStore {
	return &RevocationStore{db: db}
}

// Revoke marks the token id as unusable until expiresAt. Revoking the same
// id twice is not an error.
func (s *RevocationStore) Revoke(id, userID string, expiresAt time.Time) error {
	if id == "" {
		return fmt.Errorf("revoke session: empty id")
	}
	_, err := s.db.Exec(
		`INSERT INTO revoked_sessions (id, user_id, expires_at, revoked_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, userID, expiresAt.UTC().Unix(), time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// IsRevoked reports whether id was revoked.
func (s *RevocationStore) IsRevoked(id string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM revoked_sessions WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check revoked session: %w", err)
	}
	return n > 0, nil
}

// DeleteExpired drops rows whose token would have expired anyway.
func (s *RevocationStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM revoked_sessions WHERE expires_at <= ?`, time.Now().UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
