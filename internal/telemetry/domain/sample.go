package telemetry

import (
	"context"
	"errors"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// Sample is an immutable point reading delivered by the telematics feed.
type Sample struct {
	DeviceID   string
	Timestamp  time.Time
	Position   fleet.Position
	SpeedKmh   float64
	BatteryPct float64
	ShockG     float64
	// EngineHours is the cumulative operating-hours counter at sample time.
	EngineHours float64
}

// Validate checks sample invariants.
func (s Sample) Validate() error {
	if s.DeviceID == "" {
		return errors.New("sample: empty device id")
	}
	if s.Timestamp.IsZero() {
		return errors.New("sample: zero timestamp")
	}
	return nil
}

// SampleRepository persists telemetry samples. Samples are append-only.
type SampleRepository interface {
	Append(ctx context.Context, samples []Sample) error
	LatestByDevice(ctx context.Context, deviceID string) (*Sample, error)
	ListRange(ctx context.Context, deviceID string, from, to time.Time) ([]Sample, error)
}
