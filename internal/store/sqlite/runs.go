package sqlite

import (
	"context"
	"time"

	"checkin_engine/internal/model"
)

func (s *Store) RecordRun(ctx context.Context, rec model.RunRecord) error {
	notified := 0
	if rec.Notified {
		notified = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, at_ms, success_count, total_count, notified, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.At.UnixMilli(), rec.SuccessCount, rec.TotalCount, notified, rec.Fingerprint)
	return err
}

func (s *Store) RecentRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, at_ms, success_count, total_count, notified, fingerprint
		FROM runs ORDER BY at_ms DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var (
			rec      model.RunRecord
			atMs     int64
			notified int
		)
		if err := rows.Scan(&rec.ID, &atMs, &rec.SuccessCount, &rec.TotalCount, &notified, &rec.Fingerprint); err != nil {
			return nil, err
		}
		rec.At = time.UnixMilli(atMs)
		rec.Notified = notified == 1
		out = append(out, rec)
	}
	return out, rows.Err()
}
