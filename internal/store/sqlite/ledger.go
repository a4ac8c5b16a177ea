package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const balanceFingerprintKey = "balance_fingerprint"

func (s *Store) GetBalanceFingerprint(ctx context.Context) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE key = ?
	`, balanceFingerprintKey).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	if value == "" {
		return "", false, nil
	}
	return value, true, nil
}

func (s *Store) SetBalanceFingerprint(ctx context.Context, fp string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, balanceFingerprintKey, fp, now)
	return err
}
