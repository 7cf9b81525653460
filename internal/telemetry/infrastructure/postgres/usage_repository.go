package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	telemetry "fleetwatch-cloud/internal/telemetry/domain"
)

// UsageRepository is an append-only Postgres store for usage events.
type UsageRepository struct {
	db *sql.DB
}

// NewUsageRepository constructs a repository.
func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Append inserts a batch of usage events. Duplicate ids are ignored so
// feed replays stay idempotent.
func (r *UsageRepository) Append(ctx context.Context, events []telemetry.UsageEvent) error {
	if r == nil || r.db == nil {
		return errors.New("usage repo: nil db")
	}
	if len(events) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO usage_events (id, device_id, start_at, duration_seconds, tool_active)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, event := range events {
		if err := event.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			event.ID,
			event.DeviceID,
			event.StartAt.UTC(),
			event.DurationSeconds,
			event.ToolActive,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListRange returns a device's events starting within [from, to).
func (r *UsageRepository) ListRange(ctx context.Context, deviceID string, from, to time.Time) ([]telemetry.UsageEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("usage repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("usage repo: empty device id")
	}
	return r.query(ctx, usageColumns+`
FROM usage_events
WHERE device_id = $1 AND start_at >= $2 AND start_at < $3
ORDER BY start_at`, deviceID, from.UTC(), to.UTC())
}

// ListSince returns every event starting at or after the given instant,
// across all devices.
func (r *UsageRepository) ListSince(ctx context.Context, since time.Time) ([]telemetry.UsageEvent, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("usage repo: nil db")
	}
	return r.query(ctx, usageColumns+`
FROM usage_events
WHERE start_at >= $1
ORDER BY start_at`, since.UTC())
}

const usageColumns = `
SELECT id, device_id, start_at, duration_seconds, tool_active`

func (r *UsageRepository) query(ctx context.Context, query string, args ...any) ([]telemetry.UsageEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []telemetry.UsageEvent
	for rows.Next() {
		var event telemetry.UsageEvent
		if err := rows.Scan(
			&event.ID,
			&event.DeviceID,
			&event.StartAt,
			&event.DurationSeconds,
			&event.ToolActive,
		); err != nil {
			return nil, err
		}
		event.StartAt = event.StartAt.UTC()
		events = append(events, event)
	}
	return events, rows.Err()
}
