package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	telemetry "fleetwatch-cloud/internal/telemetry/domain"
)

// SampleRepository is an append-only Postgres store for telemetry samples.
type SampleRepository struct {
	db *sql.DB
}

// NewSampleRepository constructs a repository.
func NewSampleRepository(db *sql.DB) *SampleRepository {
	return &SampleRepository{db: db}
}

// Append inserts a batch of samples inside a single transaction.
func (r *SampleRepository) Append(ctx context.Context, samples []telemetry.Sample) error {
	if r == nil || r.db == nil {
		return errors.New("sample repo: nil db")
	}
	if len(samples) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO telemetry_samples (device_id, ts, lat, lon, speed_kmh, battery_pct, shock_g, engine_hours)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (device_id, ts) DO NOTHING`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sample := range samples {
		if err := sample.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			sample.DeviceID,
			sample.Timestamp.UTC(),
			sample.Position.Latitude,
			sample.Position.Longitude,
			sample.SpeedKmh,
			sample.BatteryPct,
			sample.ShockG,
			sample.EngineHours,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LatestByDevice returns the most recent sample or nil when none exists.
func (r *SampleRepository) LatestByDevice(ctx context.Context, deviceID string) (*telemetry.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sample repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("sample repo: empty device id")
	}
	row := r.db.QueryRowContext(ctx, sampleColumns+`
FROM telemetry_samples
WHERE device_id = $1
ORDER BY ts DESC
LIMIT 1`, deviceID)
	return scanSample(row)
}

// ListRange returns samples within [from, to) ordered by time.
func (r *SampleRepository) ListRange(ctx context.Context, deviceID string, from, to time.Time) ([]telemetry.Sample, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("sample repo: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("sample repo: empty device id")
	}
	rows, err := r.db.QueryContext(ctx, sampleColumns+`
FROM telemetry_samples
WHERE device_id = $1 AND ts >= $2 AND ts < $3
ORDER BY ts`, deviceID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, *sample)
	}
	return samples, rows.Err()
}

const sampleColumns = `
SELECT device_id, ts, lat, lon, speed_kmh, battery_pct, shock_g, engine_hours`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*telemetry.Sample, error) {
	var sample telemetry.Sample
	if err := row.Scan(
		&sample.DeviceID,
		&sample.Timestamp,
		&sample.Position.Latitude,
		&sample.Position.Longitude,
		&sample.SpeedKmh,
		&sample.BatteryPct,
		&sample.ShockG,
		&sample.EngineHours,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	sample.Timestamp = sample.Timestamp.UTC()
	return &sample, nil
}
