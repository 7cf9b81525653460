package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// SettingsRepository is a Postgres implementation for tenant settings.
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository constructs a repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetWorkHours loads the tenant work window. A missing or invalid row
// falls back to the default window.
func (r *SettingsRepository) GetWorkHours(ctx context.Context, tenantID string) (fleet.WorkHours, error) {
	if r == nil || r.db == nil {
		return fleet.DefaultWorkHours(), errors.New("settings repo: nil db")
	}
	if tenantID == "" {
		return fleet.DefaultWorkHours(), errors.New("settings repo: empty tenant id")
	}
	var window fleet.WorkHours
	err := r.db.QueryRowContext(ctx, `
SELECT work_start_hour, work_end_hour, weekend_allowed
FROM tenant_settings
WHERE tenant_id = $1`, tenantID).Scan(
		&window.StartHour,
		&window.EndHour,
		&window.WeekendAllowed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.DefaultWorkHours(), nil
	}
	if err != nil {
		return fleet.DefaultWorkHours(), err
	}
	return window.Normalize(), nil
}

// SaveWorkHours upserts the tenant work window.
func (r *SettingsRepository) SaveWorkHours(ctx context.Context, tenantID string, window fleet.WorkHours) error {
	if r == nil || r.db == nil {
		return errors.New("settings repo: nil db")
	}
	if tenantID == "" {
		return errors.New("settings repo: empty tenant id")
	}
	window = window.Normalize()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO tenant_settings (tenant_id, work_start_hour, work_end_hour, weekend_allowed, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (tenant_id) DO UPDATE SET
	work_start_hour = EXCLUDED.work_start_hour,
	work_end_hour = EXCLUDED.work_end_hour,
	weekend_allowed = EXCLUDED.weekend_allowed,
	updated_at = EXCLUDED.updated_at`,
		tenantID, window.StartHour, window.EndHour, window.WeekendAllowed, time.Now().UTC(),
	)
	return err
}
