package application

import (
	"context"
	"errors"
	"time"

	telemetry "fleetwatch-cloud/internal/telemetry/domain"
	utilization "fleetwatch-cloud/internal/utilization/domain"
)

// UsageSource loads usage events for a device and window.
type UsageSource interface {
	ListRange(ctx context.Context, deviceID string, from, to time.Time) ([]telemetry.UsageEvent, error)
}

// DailySummary aggregates one device-day of classified usage.
type DailySummary struct {
	DeviceID          string
	Day               time.Time
	SecondsByCategory map[utilization.Category]int
	WorkingSeconds    int
	IdleSeconds       int
	TransportSeconds  int
	BurstCount        int
	EventCount        int
}

// RollupService classifies usage events into per-day summaries for the
// report and UI layers.
type RollupService struct {
	usage UsageSource
}

// NewRollupService constructs a rollup service.
func NewRollupService(usage UsageSource) (*RollupService, error) {
	if usage == nil {
		return nil, errors.New("utilization rollup: nil usage source")
	}
	return &RollupService{usage: usage}, nil
}

// Summarize classifies all of a device's usage events within the UTC day
// containing the given instant.
func (s *RollupService) Summarize(ctx context.Context, deviceID string, day time.Time) (DailySummary, error) {
	if s == nil || s.usage == nil {
		return DailySummary{}, errors.New("utilization rollup: nil service")
	}
	if deviceID == "" {
		return DailySummary{}, errors.New("utilization rollup: empty device id")
	}

	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)
	events, err := s.usage.ListRange(ctx, deviceID, start, end)
	if err != nil {
		return DailySummary{}, err
	}

	summary := DailySummary{
		DeviceID:          deviceID,
		Day:               start,
		SecondsByCategory: make(map[utilization.Category]int),
	}
	for _, event := range events {
		seconds := event.DurationSeconds
		if seconds < 0 {
			seconds = 0
		}
		classified := utilization.Classify(event.DurationSeconds, event.ToolActive)

		summary.EventCount++
		summary.SecondsByCategory[classified.Category] += seconds
		if classified.IsBurst {
			summary.BurstCount++
		}
		switch {
		case classified.Category == utilization.CategoryIdle:
			summary.IdleSeconds += seconds
		case classified.Category == utilization.CategoryTransport:
			summary.TransportSeconds += seconds
		case classified.Category.CountsAsWorking():
			summary.WorkingSeconds += seconds
		}
	}
	return summary, nil
}

// SummarizeDevices builds summaries for a list of devices, skipping devices
// whose usage lookup fails so one bad device cannot sink the whole report.
func (s *RollupService) SummarizeDevices(ctx context.Context, deviceIDs []string, day time.Time) ([]DailySummary, error) {
	if s == nil {
		return nil, errors.New("utilization rollup: nil service")
	}
	summaries := make([]DailySummary, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		summary, err := s.Summarize(ctx, id, day)
		if err != nil {
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
