package telematics

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
	telemetry "fleetwatch-cloud/internal/telemetry/domain"
)

type stubFeed struct {
	samples   []telemetry.Sample
	usage     []telemetry.UsageEvent
	sampleErr error

	sampleSince time.Time
	usageSince  time.Time
}

func (f *stubFeed) FetchSamples(_ context.Context, since time.Time) ([]telemetry.Sample, error) {
	f.sampleSince = since
	return f.samples, f.sampleErr
}

func (f *stubFeed) FetchUsageEvents(_ context.Context, since time.Time) ([]telemetry.UsageEvent, error) {
	f.usageSince = since
	return f.usage, nil
}

type memSampleRepo struct {
	appended []telemetry.Sample
}

func (m *memSampleRepo) Append(_ context.Context, samples []telemetry.Sample) error {
	m.appended = append(m.appended, samples...)
	return nil
}

func (m *memSampleRepo) LatestByDevice(context.Context, string) (*telemetry.Sample, error) {
	return nil, nil
}

func (m *memSampleRepo) ListRange(context.Context, string, time.Time, time.Time) ([]telemetry.Sample, error) {
	return nil, nil
}

type memUsageRepo struct {
	appended []telemetry.UsageEvent
}

func (m *memUsageRepo) Append(_ context.Context, events []telemetry.UsageEvent) error {
	m.appended = append(m.appended, events...)
	return nil
}

func (m *memUsageRepo) ListRange(context.Context, string, time.Time, time.Time) ([]telemetry.UsageEvent, error) {
	return nil, nil
}

func (m *memUsageRepo) ListSince(context.Context, time.Time) ([]telemetry.UsageEvent, error) {
	return nil, nil
}

type stubDeviceState struct {
	updates map[string]float64
}

func (s *stubDeviceState) UpdateTelemetryState(_ context.Context, id string, _ *fleet.Position, hours float64, _ time.Time) error {
	if s.updates == nil {
		s.updates = map[string]float64{}
	}
	s.updates[id] = hours
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestIngestorAdvancesCursorAndMirrorsDeviceState(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	feed := &stubFeed{
		samples: []telemetry.Sample{
			{DeviceID: "dev-1", Timestamp: start.Add(time.Minute), EngineHours: 10},
			{DeviceID: "dev-1", Timestamp: start.Add(3 * time.Minute), EngineHours: 10.1},
			{DeviceID: "dev-2", Timestamp: start.Add(2 * time.Minute), EngineHours: 55},
		},
		usage: []telemetry.UsageEvent{
			{ID: "evt-1", DeviceID: "dev-1", StartAt: start.Add(time.Minute), DurationSeconds: 30, ToolActive: true},
		},
	}
	samples := &memSampleRepo{}
	usage := &memUsageRepo{}
	devices := &stubDeviceState{}

	ing, err := NewIngestor(feed, samples, usage, devices, start, quietLogger())
	if err != nil {
		t.Fatalf("NewIngestor: %v", err)
	}
	if err := ing.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(samples.appended) != 3 {
		t.Fatalf("appended %d samples, want 3", len(samples.appended))
	}
	if len(usage.appended) != 1 {
		t.Fatalf("appended %d usage events, want 1", len(usage.appended))
	}
	// The newest sample per device drives the device row.
	if got := devices.updates["dev-1"]; got != 10.1 {
		t.Errorf("dev-1 hours = %v, want 10.1", got)
	}
	if got := devices.updates["dev-2"]; got != 55 {
		t.Errorf("dev-2 hours = %v, want 55", got)
	}

	// A second pull resumes from the newest timestamps seen.
	feed.samples = nil
	feed.usage = nil
	if err := ing.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !feed.sampleSince.Equal(start.Add(3 * time.Minute)) {
		t.Errorf("sample cursor = %v", feed.sampleSince)
	}
	if !feed.usageSince.Equal(start.Add(time.Minute)) {
		t.Errorf("usage cursor = %v", feed.usageSince)
	}
}

func TestIngestorSampleFailureDoesNotBlockUsage(t *testing.T) {
	start := time.Now().UTC()
	feed := &stubFeed{
		sampleErr: errors.New("feed down"),
		usage: []telemetry.UsageEvent{
			{ID: "evt-1", DeviceID: "dev-1", StartAt: start, DurationSeconds: 5},
		},
	}
	usage := &memUsageRepo{}
	ing, err := NewIngestor(feed, &memSampleRepo{}, usage, nil, start, quietLogger())
	if err != nil {
		t.Fatalf("NewIngestor: %v", err)
	}
	if err := ing.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error from sample pull")
	}
	if len(usage.appended) != 1 {
		t.Fatalf("usage events still ingested despite sample failure, got %d", len(usage.appended))
	}
}
