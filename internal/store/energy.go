package store

import (
	"context"
	"database/sql"
	"fmt"

	appLog "wallboard/internal/log"
	"wallboard/internal/model"
)

// UpsertBillingRecords writes billing records keyed by date. The extractor
// does not deduplicate; when a bill export repeats a date the last row wins
// here, and re-importing the same bill is idempotent.
func (s *Store) UpsertBillingRecords(ctx context.Context, records []model.BillingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO energy_usage (date, usage_kwh, cost)
		VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			usage_kwh = excluded.usage_kwh,
			cost      = excluded.cost`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var cost sql.NullFloat64
		if rec.Cost != nil {
			cost = sql.NullFloat64{Float64: *rec.Cost, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, rec.Date, rec.UsageKWh, cost); err != nil {
			return 0, fmt.Errorf("store: upsert %s: %w", rec.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}

	appLog.Info("energy records upserted", "count", len(records))
	return len(records), nil
}

// ListBillingRecords returns stored usage records with date in [from, to]
// (YYYY-MM-DD, either may be empty for an open end), newest first.
func (s *Store) ListBillingRecords(ctx context.Context, from, to string) ([]model.BillingRecord, error) {
	query := `SELECT date, usage_kwh, cost FROM energy_usage WHERE 1=1`
	args := make([]any, 0, 2)
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list energy: %w", err)
	}
	defer rows.Close()

	out := make([]model.BillingRecord, 0)
	for rows.Next() {
		var rec model.BillingRecord
		var cost sql.NullFloat64
		if err := rows.Scan(&rec.Date, &rec.UsageKWh, &cost); err != nil {
			return nil, fmt.Errorf("store: scan energy: %w", err)
		}
		if cost.Valid {
			c := cost.Float64
			rec.Cost = &c
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
