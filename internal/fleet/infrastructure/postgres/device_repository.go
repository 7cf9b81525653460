package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// DeviceRepository is a Postgres implementation for devices.
type DeviceRepository struct {
	db *sql.DB
}

// NewDeviceRepository constructs a repository.
func NewDeviceRepository(db *sql.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Get loads a device by id.
func (r *DeviceRepository) Get(ctx context.Context, id string) (*fleet.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if id == "" {
		return nil, errors.New("device repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, deviceColumns+`
FROM devices
WHERE id = $1`, id)
	return scanDevice(row)
}

// ListByTenant returns all devices owned by a tenant.
func (r *DeviceRepository) ListByTenant(ctx context.Context, tenantID string) ([]fleet.Device, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("device repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("device repo: empty tenant id")
	}
	rows, err := r.db.QueryContext(ctx, deviceColumns+`
FROM devices
WHERE tenant_id = $1
ORDER BY id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []fleet.Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return devices, nil
}

// Save upserts a device.
func (r *DeviceRepository) Save(ctx context.Context, device *fleet.Device) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if device == nil {
		return errors.New("device repo: nil device")
	}
	if err := device.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	var lat, lon sql.NullFloat64
	if device.LastPosition != nil {
		lat = sql.NullFloat64{Float64: device.LastPosition.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: device.LastPosition.Longitude, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO devices (
	id, tenant_id, owner_id, name, model, external_id,
	last_lat, last_lon, last_seen_at, cumulative_hours, last_maintenance_hour,
	battery_warn_pct, battery_crit_pct, max_speed_kmh, shock_warn_g, shock_crit_g,
	created_at, updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18
)
ON CONFLICT (id) DO UPDATE SET
	owner_id = EXCLUDED.owner_id,
	name = EXCLUDED.name,
	model = EXCLUDED.model,
	external_id = EXCLUDED.external_id,
	last_lat = EXCLUDED.last_lat,
	last_lon = EXCLUDED.last_lon,
	last_seen_at = EXCLUDED.last_seen_at,
	cumulative_hours = EXCLUDED.cumulative_hours,
	last_maintenance_hour = EXCLUDED.last_maintenance_hour,
	battery_warn_pct = EXCLUDED.battery_warn_pct,
	battery_crit_pct = EXCLUDED.battery_crit_pct,
	max_speed_kmh = EXCLUDED.max_speed_kmh,
	shock_warn_g = EXCLUDED.shock_warn_g,
	shock_crit_g = EXCLUDED.shock_crit_g,
	updated_at = EXCLUDED.updated_at`,
		device.ID,
		device.TenantID,
		nullString(device.OwnerID),
		device.Name,
		nullString(device.Model),
		nullString(device.ExternalID),
		lat,
		lon,
		nullTime(device.LastSeenAt),
		device.CumulativeHours,
		device.LastMaintenanceHour,
		device.Limits.BatteryWarnPct,
		device.Limits.BatteryCritPct,
		device.Limits.MaxSpeedKmh,
		device.Limits.ShockWarnG,
		device.Limits.ShockCritG,
		device.CreatedAt,
		device.UpdatedAt,
	)
	return err
}

// UpdateTelemetryState records the latest position and hours counter from
// the ingestion pipeline. The maintenance marker is never touched here.
func (r *DeviceRepository) UpdateTelemetryState(ctx context.Context, id string, position *fleet.Position, cumulativeHours float64, seenAt time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("device repo: nil db")
	}
	if id == "" {
		return errors.New("device repo: empty id")
	}
	var lat, lon sql.NullFloat64
	if position != nil {
		lat = sql.NullFloat64{Float64: position.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: position.Longitude, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE devices
SET last_lat = COALESCE($1, last_lat),
	last_lon = COALESCE($2, last_lon),
	cumulative_hours = GREATEST(cumulative_hours, $3),
	last_seen_at = $4,
	updated_at = $5
WHERE id = $6`, lat, lon, cumulativeHours, seenAt.UTC(), time.Now().UTC(), id)
	return err
}

const deviceColumns = `
SELECT id, tenant_id, owner_id, name, model, external_id,
	last_lat, last_lon, last_seen_at, cumulative_hours, last_maintenance_hour,
	battery_warn_pct, battery_crit_pct, max_speed_kmh, shock_warn_g, shock_crit_g,
	created_at, updated_at`

type deviceScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row deviceScanner) (*fleet.Device, error) {
	var device fleet.Device
	var ownerID, model, externalID sql.NullString
	var lat, lon sql.NullFloat64
	var lastSeen sql.NullTime
	if err := row.Scan(
		&device.ID,
		&device.TenantID,
		&ownerID,
		&device.Name,
		&model,
		&externalID,
		&lat,
		&lon,
		&lastSeen,
		&device.CumulativeHours,
		&device.LastMaintenanceHour,
		&device.Limits.BatteryWarnPct,
		&device.Limits.BatteryCritPct,
		&device.Limits.MaxSpeedKmh,
		&device.Limits.ShockWarnG,
		&device.Limits.ShockCritG,
		&device.CreatedAt,
		&device.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	device.OwnerID = ownerID.String
	device.Model = model.String
	device.ExternalID = externalID.String
	if lat.Valid && lon.Valid {
		device.LastPosition = &fleet.Position{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	if lastSeen.Valid {
		device.LastSeenAt = lastSeen.Time.UTC()
	}
	device.CreatedAt = device.CreatedAt.UTC()
	device.UpdatedAt = device.UpdatedAt.UTC()
	return &device, nil
}

func nullString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
