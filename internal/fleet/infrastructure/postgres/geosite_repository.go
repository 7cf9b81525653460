package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// GeoSiteRepository is a Postgres implementation for geofence sites.
// Device membership lives in the geo_site_devices join table.
type GeoSiteRepository struct {
	db *sql.DB
}

// NewGeoSiteRepository constructs a repository.
func NewGeoSiteRepository(db *sql.DB) *GeoSiteRepository {
	return &GeoSiteRepository{db: db}
}

// Get loads a site by id, including its device membership.
func (r *GeoSiteRepository) Get(ctx context.Context, id string) (*fleet.GeoSite, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("geo site repo: nil db")
	}
	if id == "" {
		return nil, errors.New("geo site repo: empty id")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, tenant_id, name, center_lat, center_lon, radius_meters, alarms_enabled, created_at, updated_at
FROM geo_sites
WHERE id = $1`, id)
	site, err := scanGeoSite(row)
	if err != nil || site == nil {
		return site, err
	}
	site.DeviceIDs, err = r.deviceIDs(ctx, site.ID)
	if err != nil {
		return nil, err
	}
	return site, nil
}

// ListByTenant returns all sites of a tenant with membership populated.
func (r *GeoSiteRepository) ListByTenant(ctx context.Context, tenantID string) ([]fleet.GeoSite, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("geo site repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("geo site repo: empty tenant id")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, tenant_id, name, center_lat, center_lon, radius_meters, alarms_enabled, created_at, updated_at
FROM geo_sites
WHERE tenant_id = $1
ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []fleet.GeoSite
	for rows.Next() {
		site, err := scanGeoSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range sites {
		sites[i].DeviceIDs, err = r.deviceIDs(ctx, sites[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return sites, nil
}

// Save upserts a site and replaces its device membership.
func (r *GeoSiteRepository) Save(ctx context.Context, site *fleet.GeoSite) error {
	if r == nil || r.db == nil {
		return errors.New("geo site repo: nil db")
	}
	if site == nil {
		return errors.New("geo site repo: nil site")
	}
	if err := site.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()
	if site.CreatedAt.IsZero() {
		site.CreatedAt = now
	}
	site.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO geo_sites (id, tenant_id, name, center_lat, center_lon, radius_meters, alarms_enabled, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	center_lat = EXCLUDED.center_lat,
	center_lon = EXCLUDED.center_lon,
	radius_meters = EXCLUDED.radius_meters,
	alarms_enabled = EXCLUDED.alarms_enabled,
	updated_at = EXCLUDED.updated_at`,
		site.ID, site.TenantID, site.Name,
		site.Center.Latitude, site.Center.Longitude,
		site.RadiusMeters, site.AlarmsEnabled,
		site.CreatedAt, site.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM geo_site_devices WHERE site_id = $1`, site.ID); err != nil {
		return err
	}
	for _, deviceID := range site.DeviceIDs {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO geo_site_devices (site_id, device_id) VALUES ($1,$2)
ON CONFLICT DO NOTHING`, site.ID, deviceID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *GeoSiteRepository) deviceIDs(ctx context.Context, siteID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT device_id FROM geo_site_devices WHERE site_id = $1 ORDER BY device_id`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanGeoSite(row deviceScanner) (*fleet.GeoSite, error) {
	var site fleet.GeoSite
	if err := row.Scan(
		&site.ID,
		&site.TenantID,
		&site.Name,
		&site.Center.Latitude,
		&site.Center.Longitude,
		&site.RadiusMeters,
		&site.AlarmsEnabled,
		&site.CreatedAt,
		&site.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	site.CreatedAt = site.CreatedAt.UTC()
	site.UpdatedAt = site.UpdatedAt.UTC()
	return &site, nil
}
