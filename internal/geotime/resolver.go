// Package geotime maps device positions to local wall-clock time using a
// static timezone-boundary dataset.
package geotime

import (
	"time"

	"github.com/ringsaturn/tzf"

	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// Resolver converts UTC instants into device-local time.
type Resolver struct {
	finder tzf.F
}

// NewResolver constructs a resolver backed by the embedded timezone dataset.
func NewResolver() (*Resolver, error) {
	finder, err := tzf.NewDefaultFinder()
	if err != nil {
		return nil, err
	}
	return &Resolver{finder: finder}, nil
}

// Resolve returns the local time and IANA zone name for the given position.
// A nil position or any lookup failure degrades to UTC; Resolve never fails.
func (r *Resolver) Resolve(position *fleet.Position, instant time.Time) (time.Time, string) {
	utc := instant.UTC()
	if r == nil || r.finder == nil || position == nil {
		return utc, "UTC"
	}
	name := r.finder.GetTimezoneName(position.Longitude, position.Latitude)
	if name == "" {
		return utc, "UTC"
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return utc, "UTC"
	}
	return utc.In(location), name
}
