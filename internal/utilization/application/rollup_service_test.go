package application

import (
	"context"
	"testing"
	"time"

	telemetry "fleetwatch-cloud/internal/telemetry/domain"
	utilization "fleetwatch-cloud/internal/utilization/domain"
)

type stubUsageSource struct {
	events []telemetry.UsageEvent
	err    error
}

func (s stubUsageSource) ListRange(_ context.Context, _ string, _, _ time.Time) ([]telemetry.UsageEvent, error) {
	return s.events, s.err
}

func TestSummarizeAggregatesCategories(t *testing.T) {
	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	source := stubUsageSource{events: []telemetry.UsageEvent{
		{DeviceID: "dev-1", StartAt: day.Add(8 * time.Hour), DurationSeconds: 15, ToolActive: true},   // ideal burst
		{DeviceID: "dev-1", StartAt: day.Add(9 * time.Hour), DurationSeconds: 60, ToolActive: true},   // tool damage
		{DeviceID: "dev-1", StartAt: day.Add(10 * time.Hour), DurationSeconds: 120, ToolActive: true}, // operator error
		{DeviceID: "dev-1", StartAt: day.Add(11 * time.Hour), DurationSeconds: 400, ToolActive: true}, // transport
		{DeviceID: "dev-1", StartAt: day.Add(12 * time.Hour), DurationSeconds: 300, ToolActive: false},
	}}

	service, err := NewRollupService(source)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	summary, err := service.Summarize(context.Background(), "dev-1", day.Add(13*time.Hour))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}

	if summary.EventCount != 5 {
		t.Fatalf("expected 5 events, got %d", summary.EventCount)
	}
	if summary.WorkingSeconds != 15+60+120 {
		t.Fatalf("working seconds = %d", summary.WorkingSeconds)
	}
	if summary.TransportSeconds != 400 {
		t.Fatalf("transport seconds = %d", summary.TransportSeconds)
	}
	if summary.IdleSeconds != 300 {
		t.Fatalf("idle seconds = %d", summary.IdleSeconds)
	}
	if summary.BurstCount != 1 {
		t.Fatalf("burst count = %d", summary.BurstCount)
	}
	if got := summary.SecondsByCategory[utilization.CategoryToolDamage]; got != 60 {
		t.Fatalf("tool damage seconds = %d", got)
	}
	if !summary.Day.Equal(day) {
		t.Fatalf("day = %v", summary.Day)
	}
}

func TestSummarizeEmptyDay(t *testing.T) {
	service, err := NewRollupService(stubUsageSource{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	summary, err := service.Summarize(context.Background(), "dev-1", time.Now())
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.EventCount != 0 || summary.WorkingSeconds != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
}

func TestSummarizeRequiresDevice(t *testing.T) {
	service, _ := NewRollupService(stubUsageSource{})
	if _, err := service.Summarize(context.Background(), "", time.Now()); err == nil {
		t.Fatal("expected error for empty device id")
	}
}
