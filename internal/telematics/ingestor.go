package telematics

import (
	"context"
	"errors"
	"log"
	"time"

	fleet "fleetwatch-cloud/internal/fleet/domain"
	"fleetwatch-cloud/internal/observability/metrics"
	telemetry "fleetwatch-cloud/internal/telemetry/domain"
)

// Feed is the slice of the provider client the ingestor needs.
type Feed interface {
	FetchSamples(ctx context.Context, since time.Time) ([]telemetry.Sample, error)
	FetchUsageEvents(ctx context.Context, since time.Time) ([]telemetry.UsageEvent, error)
}

// DeviceState updates a device's last-known telemetry fields.
type DeviceState interface {
	UpdateTelemetryState(ctx context.Context, id string, position *fleet.Position, cumulativeHours float64, seenAt time.Time) error
}

// Ingestor pulls the provider feed and persists it. It keeps per-stream
// cursors in memory; on restart it re-reads a small overlap, which the
// append-only stores deduplicate.
type Ingestor struct {
	feed    Feed
	samples telemetry.SampleRepository
	usage   telemetry.UsageRepository
	devices DeviceState
	logger  *log.Logger

	sampleCursor time.Time
	usageCursor  time.Time
}

// NewIngestor constructs an ingestor starting from the given cursor.
func NewIngestor(feed Feed, samples telemetry.SampleRepository, usage telemetry.UsageRepository, devices DeviceState, start time.Time, logger *log.Logger) (*Ingestor, error) {
	if feed == nil {
		return nil, errors.New("ingestor: nil feed")
	}
	if samples == nil || usage == nil {
		return nil, errors.New("ingestor: nil store")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Ingestor{
		feed:         feed,
		samples:      samples,
		usage:        usage,
		devices:      devices,
		logger:       logger,
		sampleCursor: start.UTC(),
		usageCursor:  start.UTC(),
	}, nil
}

// RunOnce pulls both streams once. Stream failures are independent: a
// failing sample pull does not block the usage pull.
func (i *Ingestor) RunOnce(ctx context.Context) error {
	var firstErr error
	if err := i.pullSamples(ctx); err != nil {
		metrics.IncIngestError("samples")
		i.logger.Printf("ingest samples: %v", err)
		firstErr = err
	}
	if err := i.pullUsage(ctx); err != nil {
		metrics.IncIngestError("usage")
		i.logger.Printf("ingest usage: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (i *Ingestor) pullSamples(ctx context.Context) error {
	samples, err := i.feed.FetchSamples(ctx, i.sampleCursor)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}
	if err := i.samples.Append(ctx, samples); err != nil {
		return err
	}
	metrics.IncIngestSamples("success", len(samples))

	// Advance the cursor and mirror the newest reading per device onto
	// the device row.
	latest := map[string]telemetry.Sample{}
	for _, sample := range samples {
		if sample.Timestamp.After(i.sampleCursor) {
			i.sampleCursor = sample.Timestamp
		}
		prev, ok := latest[sample.DeviceID]
		if !ok || sample.Timestamp.After(prev.Timestamp) {
			latest[sample.DeviceID] = sample
		}
	}
	if i.devices == nil {
		return nil
	}
	for deviceID, sample := range latest {
		position := sample.Position
		if err := i.devices.UpdateTelemetryState(ctx, deviceID, &position, sample.EngineHours, sample.Timestamp); err != nil {
			i.logger.Printf("ingest device state %s: %v", deviceID, err)
		}
	}
	return nil
}

func (i *Ingestor) pullUsage(ctx context.Context) error {
	events, err := i.feed.FetchUsageEvents(ctx, i.usageCursor)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	if err := i.usage.Append(ctx, events); err != nil {
		return err
	}
	for _, event := range events {
		if event.StartAt.After(i.usageCursor) {
			i.usageCursor = event.StartAt
		}
	}
	return nil
}
