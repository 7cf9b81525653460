package fleet

import (
	"context"
	"errors"
	"math"
	"time"
)

const earthRadiusMeters = 6371000.0

// GeoSite is a named circular region devices are expected to stay within.
type GeoSite struct {
	ID            string
	TenantID      string
	Name          string
	Center        Position
	RadiusMeters  float64
	AlarmsEnabled bool
	DeviceIDs     []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks site invariants.
func (s GeoSite) Validate() error {
	if s.ID == "" {
		return errors.New("geo site: empty id")
	}
	if s.TenantID == "" {
		return errors.New("geo site: empty tenant id")
	}
	if s.Name == "" {
		return errors.New("geo site: empty name")
	}
	if s.RadiusMeters <= 0 {
		return errors.New("geo site: radius must be positive")
	}
	return nil
}

// Monitors returns true when the site watches the given device.
func (s GeoSite) Monitors(deviceID string) bool {
	for _, id := range s.DeviceIDs {
		if id == deviceID {
			return true
		}
	}
	return false
}

// Contains returns true when the position is within the site radius.
// The boundary itself counts as inside.
func (s GeoSite) Contains(p Position) bool {
	return DistanceMeters(s.Center, p) <= s.RadiusMeters
}

// DistanceMeters computes the great-circle distance between two positions
// using the Haversine formula.
func DistanceMeters(a, b Position) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// GeoSiteRepository manages geofence site persistence.
type GeoSiteRepository interface {
	Get(ctx context.Context, id string) (*GeoSite, error)
	ListByTenant(ctx context.Context, tenantID string) ([]GeoSite, error)
	Save(ctx context.Context, site *GeoSite) error
}
