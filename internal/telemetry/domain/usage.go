package telemetry

import (
	"context"
	"errors"
	"time"
)

// UsageEvent is an immutable interval of tool activity delivered by the
// utilization feed.
type UsageEvent struct {
	ID              string
	DeviceID        string
	StartAt         time.Time
	DurationSeconds int
	ToolActive      bool
}

// EndAt returns the interval end. Negative durations collapse to StartAt.
func (u UsageEvent) EndAt() time.Time {
	if u.DurationSeconds <= 0 {
		return u.StartAt
	}
	return u.StartAt.Add(time.Duration(u.DurationSeconds) * time.Second)
}

// Validate checks usage event invariants.
func (u UsageEvent) Validate() error {
	if u.DeviceID == "" {
		return errors.New("usage event: empty device id")
	}
	if u.StartAt.IsZero() {
		return errors.New("usage event: zero start")
	}
	return nil
}

// UsageRepository persists usage events. Events are append-only.
type UsageRepository interface {
	Append(ctx context.Context, events []UsageEvent) error
	ListRange(ctx context.Context, deviceID string, from, to time.Time) ([]UsageEvent, error)
	ListSince(ctx context.Context, since time.Time) ([]UsageEvent, error)
}
