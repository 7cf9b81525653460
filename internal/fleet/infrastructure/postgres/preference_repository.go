package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// PreferenceRepository is a Postgres implementation for notification
// preferences. A missing row means every family is enabled.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository constructs a repository.
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// GetByUser loads the preference for a user, falling back to the
// default-allow preference when no row exists.
func (r *PreferenceRepository) GetByUser(ctx context.Context, tenantID, userID string) (fleet.NotificationPreference, error) {
	if r == nil || r.db == nil {
		return fleet.NotificationPreference{}, errors.New("preference repo: nil db")
	}
	if tenantID == "" || userID == "" {
		return fleet.NotificationPreference{}, errors.New("preference repo: empty key")
	}
	pref := fleet.DefaultNotificationPreference(tenantID, userID)
	err := r.db.QueryRowContext(ctx, `
SELECT battery, shock, geofence, maintenance, after_hours
FROM notification_preferences
WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID).Scan(
		&pref.Battery,
		&pref.Shock,
		&pref.Geofence,
		&pref.Maintenance,
		&pref.AfterHours,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fleet.DefaultNotificationPreference(tenantID, userID), nil
	}
	if err != nil {
		return fleet.NotificationPreference{}, err
	}
	return pref, nil
}

// Save upserts a preference row.
func (r *PreferenceRepository) Save(ctx context.Context, pref fleet.NotificationPreference) error {
	if r == nil || r.db == nil {
		return errors.New("preference repo: nil db")
	}
	if pref.TenantID == "" || pref.UserID == "" {
		return errors.New("preference repo: empty key")
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO notification_preferences (tenant_id, user_id, battery, shock, geofence, maintenance, after_hours, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (tenant_id, user_id) DO UPDATE SET
	battery = EXCLUDED.battery,
	shock = EXCLUDED.shock,
	geofence = EXCLUDED.geofence,
	maintenance = EXCLUDED.maintenance,
	after_hours = EXCLUDED.after_hours,
	updated_at = EXCLUDED.updated_at`,
		pref.TenantID, pref.UserID,
		pref.Battery, pref.Shock, pref.Geofence, pref.Maintenance, pref.AfterHours,
		time.Now().UTC(),
	)
	return err
}
