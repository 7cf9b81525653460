package application

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	fleet "fleetwatch-cloud/internal/fleet/domain"
	"fleetwatch-cloud/internal/observability/metrics"
	telemetry "fleetwatch-cloud/internal/telemetry/domain"
	utilization "fleetwatch-cloud/internal/utilization/domain"
)

// DeviceSource lists devices for evaluation.
type DeviceSource interface {
	ListByTenant(ctx context.Context, tenantID string) ([]fleet.Device, error)
}

// SiteSource lists geofence sites.
type SiteSource interface {
	ListByTenant(ctx context.Context, tenantID string) ([]fleet.GeoSite, error)
}

// PreferenceSource loads per-user notification preferences.
type PreferenceSource interface {
	GetByUser(ctx context.Context, tenantID, userID string) (fleet.NotificationPreference, error)
}

// SettingsSource loads tenant work-hours settings.
type SettingsSource interface {
	GetWorkHours(ctx context.Context, tenantID string) (fleet.WorkHours, error)
}

// SampleSource loads the latest telemetry sample per device.
type SampleSource interface {
	LatestByDevice(ctx context.Context, deviceID string) (*telemetry.Sample, error)
}

// UsageEventSource loads usage events for backfill evaluation.
type UsageEventSource interface {
	ListSince(ctx context.Context, since time.Time) ([]telemetry.UsageEvent, error)
}

// LocalTimeResolver converts an instant to device-local time.
type LocalTimeResolver interface {
	Resolve(position *fleet.Position, instant time.Time) (time.Time, string)
}

// Engine runs one evaluation pass over the fleet. It owns no scheduling;
// the host invokes EvaluateLive and EvaluateUsage on its own timers.
type Engine struct {
	lifecycle *Lifecycle
	devices   DeviceSource
	sites     SiteSource
	prefs     PreferenceSource
	settings  SettingsSource
	samples   SampleSource
	usage     UsageEventSource
	localTime LocalTimeResolver
	cfg       Config
	clock     Clock
	tenantID  string
	logger    *log.Logger
}

// NewEngine constructs the evaluation engine.
func NewEngine(
	lifecycle *Lifecycle,
	devices DeviceSource,
	sites SiteSource,
	prefs PreferenceSource,
	settings SettingsSource,
	samples SampleSource,
	usage UsageEventSource,
	localTime LocalTimeResolver,
	cfg Config,
	tenantID string,
	logger *log.Logger,
) (*Engine, error) {
	if lifecycle == nil {
		return nil, errors.New("engine: nil lifecycle")
	}
	if devices == nil || samples == nil {
		return nil, errors.New("engine: nil device or sample source")
	}
	if localTime == nil {
		return nil, errors.New("engine: nil local time resolver")
	}
	if tenantID == "" {
		return nil, errors.New("engine: empty tenant id")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		lifecycle: lifecycle,
		devices:   devices,
		sites:     sites,
		prefs:     prefs,
		settings:  settings,
		samples:   samples,
		usage:     usage,
		localTime: localTime,
		cfg:       cfg.normalize(),
		clock:     lifecycle.clock,
		tenantID:  tenantID,
		logger:    logger,
	}, nil
}

// EvaluateLive runs one pass over every device's latest telemetry. Devices
// are evaluated independently with bounded concurrency; a failing rule is
// logged and skipped, never aborting the pass.
func (e *Engine) EvaluateLive(ctx context.Context) error {
	if e == nil {
		return errors.New("engine: nil engine")
	}
	started := e.clock.Now()

	devices, err := e.devices.ListByTenant(ctx, e.tenantID)
	if err != nil {
		return err
	}
	sites := e.loadSites(ctx)
	window := e.loadWorkWindow(ctx)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.cfg.Workers)
	for _, device := range devices {
		device := device
		group.Go(func() error {
			e.evaluateDevice(groupCtx, device, sites, window)
			return nil
		})
	}
	_ = group.Wait()

	metrics.ObserveEvaluationCycle("live", len(devices), e.clock.Now().Sub(started))
	return nil
}

// EvaluateUsage classifies usage events recorded since the given instant
// and proposes alarms for damaging tool-use categories.
func (e *Engine) EvaluateUsage(ctx context.Context, since time.Time) error {
	if e == nil {
		return errors.New("engine: nil engine")
	}
	if e.usage == nil {
		return errors.New("engine: no usage source")
	}
	started := e.clock.Now()

	events, err := e.usage.ListSince(ctx, since.UTC())
	if err != nil {
		return err
	}
	for _, event := range events {
		e.evaluateUsageEvent(ctx, event)
	}

	metrics.ObserveEvaluationCycle("usage", len(events), e.clock.Now().Sub(started))
	return nil
}

func (e *Engine) evaluateDevice(ctx context.Context, device fleet.Device, sites []fleet.GeoSite, window fleet.WorkHours) {
	now := e.clock.Now().UTC()
	pref := e.loadPreference(ctx, device)
	limits := device.EffectiveLimits()

	e.evaluateMaintenance(ctx, device, pref)

	sample, err := e.samples.LatestByDevice(ctx, device.ID)
	if err != nil {
		e.logger.Printf("engine: latest sample for %s: %v", device.ID, err)
		return
	}
	if sample == nil {
		return
	}

	e.evaluateBattery(ctx, device, pref, limits, *sample, now)
	e.evaluateSpeed(ctx, device, limits, *sample, now)
	e.evaluateShock(ctx, device, pref, limits, *sample, now)
	for _, site := range sites {
		e.evaluateGeofence(ctx, device, pref, site, now)
	}
	if sample.SpeedKmh > 0 {
		e.evaluateWorkHours(ctx, device, pref, window, now)
	}
}

func (e *Engine) evaluateUsageEvent(ctx context.Context, event telemetry.UsageEvent) {
	classified := utilization.Classify(event.DurationSeconds, event.ToolActive)

	var critical bool
	switch classified.Category {
	case utilization.CategoryOperatorError:
		critical = true
	case utilization.CategoryToolDamage:
		critical = false
	default:
		// Idle, ideal, risky and transport intervals never alarm.
		return
	}

	proposal := alarms.UsageProposal{
		DeviceID:        event.DeviceID,
		DurationSeconds: event.DurationSeconds,
		Category:        string(classified.Category),
		Critical:        critical,
	}
	e.proposeWithCooldown(ctx, proposal, e.cfg.UsageCooldown())
}

// proposeWithCooldown applies the rule-family cooldown before handing the
// proposal to the lifecycle manager. A storage failure suppresses the rule
// for this cycle only.
func (e *Engine) proposeWithCooldown(ctx context.Context, proposal alarms.Proposal, cooldown time.Duration) {
	metrics.IncRuleEvaluation(proposal.AlarmFamily())
	if cooldown > 0 {
		latest, err := e.lifecycle.LatestFor(ctx, proposal.Device(), proposal.Rule())
		if err != nil {
			e.logger.Printf("engine: cooldown lookup %s/%s: %v", proposal.Device(), proposal.Rule(), err)
			return
		}
		if latest != nil && e.clock.Now().UTC().Sub(latest.CreatedAt) < cooldown {
			metrics.IncCooldownSuppressed(proposal.AlarmFamily())
			return
		}
	}
	if _, _, err := e.lifecycle.Propose(ctx, proposal); err != nil {
		e.logger.Printf("engine: propose %s/%s: %v", proposal.Device(), proposal.Rule(), err)
	}
}

func (e *Engine) loadSites(ctx context.Context) []fleet.GeoSite {
	if e.sites == nil {
		return nil
	}
	sites, err := e.sites.ListByTenant(ctx, e.tenantID)
	if err != nil {
		e.logger.Printf("engine: list sites: %v", err)
		return nil
	}
	return sites
}

func (e *Engine) loadWorkWindow(ctx context.Context) fleet.WorkHours {
	if e.settings == nil {
		return e.cfg.DefaultWorkWindow()
	}
	window, err := e.settings.GetWorkHours(ctx, e.tenantID)
	if err != nil {
		return e.cfg.DefaultWorkWindow()
	}
	return window.Normalize()
}

func (e *Engine) loadPreference(ctx context.Context, device fleet.Device) fleet.NotificationPreference {
	fallback := fleet.DefaultNotificationPreference(device.TenantID, device.OwnerID)
	if e.prefs == nil || device.OwnerID == "" {
		return fallback
	}
	pref, err := e.prefs.GetByUser(ctx, device.TenantID, device.OwnerID)
	if err != nil {
		return fallback
	}
	return pref
}

