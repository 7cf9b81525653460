package fleet

import (
	"context"
	"errors"
	"time"
)

// Position is a GPS coordinate in decimal degrees.
type Position struct {
	Latitude  float64
	Longitude float64
}

// Limits holds per-device alarm limits. Zero values mean "use default".
type Limits struct {
	BatteryWarnPct float64
	BatteryCritPct float64
	MaxSpeedKmh    float64
	ShockWarnG     float64
	ShockCritG     float64
}

// Default per-device limits applied when a field is unset.
const (
	DefaultBatteryWarnPct = 20.0
	DefaultBatteryCritPct = 10.0
	DefaultMaxSpeedKmh    = 30.0
	DefaultShockWarnG     = 8.0
	DefaultShockCritG     = 16.0
)

// Device represents a tracked piece of hydraulic equipment.
type Device struct {
	ID                  string
	TenantID            string
	OwnerID             string
	Name                string
	Model               string
	ExternalID          string
	LastPosition        *Position
	LastSeenAt          time.Time
	CumulativeHours     float64
	LastMaintenanceHour float64
	Limits              Limits
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Validate checks device invariants.
func (d Device) Validate() error {
	if d.ID == "" {
		return errors.New("device: empty id")
	}
	if d.TenantID == "" {
		return errors.New("device: empty tenant id")
	}
	if d.Name == "" {
		return errors.New("device: empty name")
	}
	return nil
}

// EffectiveLimits returns the device limits with defaults filled in.
func (d Device) EffectiveLimits() Limits {
	limits := d.Limits
	if limits.BatteryWarnPct <= 0 {
		limits.BatteryWarnPct = DefaultBatteryWarnPct
	}
	if limits.BatteryCritPct <= 0 {
		limits.BatteryCritPct = DefaultBatteryCritPct
	}
	if limits.MaxSpeedKmh <= 0 {
		limits.MaxSpeedKmh = DefaultMaxSpeedKmh
	}
	if limits.ShockWarnG <= 0 {
		limits.ShockWarnG = DefaultShockWarnG
	}
	if limits.ShockCritG <= 0 {
		limits.ShockCritG = DefaultShockCritG
	}
	return limits
}

// HoursSinceMaintenance returns cumulative operating hours since the last
// recorded maintenance. Never negative.
func (d Device) HoursSinceMaintenance() float64 {
	since := d.CumulativeHours - d.LastMaintenanceHour
	if since < 0 {
		return 0
	}
	return since
}

// DeviceRepository manages device persistence.
type DeviceRepository interface {
	Get(ctx context.Context, id string) (*Device, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Device, error)
	Save(ctx context.Context, device *Device) error
	UpdateTelemetryState(ctx context.Context, id string, position *Position, cumulativeHours float64, seenAt time.Time) error
}
