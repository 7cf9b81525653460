package application

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	"fleetwatch-cloud/internal/observability/metrics"
)

// AlarmRepository is the persistence surface the lifecycle manager writes
// through. No other component writes alarm state.
type AlarmRepository interface {
	Create(ctx context.Context, alarm *alarms.Alarm) error
	GetByID(ctx context.Context, id string) (*alarms.Alarm, error)
	FindActiveByDeviceRule(ctx context.Context, tenantID, deviceID, ruleID string) (*alarms.Alarm, error)
	FindLatestByDeviceRule(ctx context.Context, tenantID, deviceID, ruleID string) (*alarms.Alarm, error)
	MarkResolved(ctx context.Context, id, resolvedBy, note string, at time.Time) error
}

// AlarmNotifier publishes alarm lifecycle events.
type AlarmNotifier interface {
	Notify(ctx context.Context, event AlarmEvent)
}

// AlarmEvent represents a lifecycle update.
type AlarmEvent struct {
	Type  string       `json:"type"`
	Alarm alarms.Alarm `json:"alarm"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Lifecycle owns the active/resolved state of all alarms. Every write path
// checks for an existing Active row for the same (device, rule) key before
// inserting, which enforces the at-most-one-Active invariant.
type Lifecycle struct {
	repo     AlarmRepository
	notifier AlarmNotifier
	clock    Clock
	tenantID string

	// mu serializes check-then-insert across concurrent device workers.
	mu sync.Mutex
}

// LifecycleOption customizes the lifecycle manager.
type LifecycleOption func(*Lifecycle)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlarmNotifier) LifecycleOption {
	return func(l *Lifecycle) {
		l.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) LifecycleOption {
	return func(l *Lifecycle) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewLifecycle constructs the alarm lifecycle manager.
func NewLifecycle(repo AlarmRepository, tenantID string, opts ...LifecycleOption) (*Lifecycle, error) {
	if repo == nil {
		return nil, errors.New("alarm lifecycle: nil repository")
	}
	if tenantID == "" {
		return nil, errors.New("alarm lifecycle: empty tenant id")
	}
	lifecycle := &Lifecycle{
		repo:     repo,
		tenantID: tenantID,
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(lifecycle)
	}
	return lifecycle, nil
}

// Propose inserts a new Active alarm for the proposal's (device, rule) key,
// or suppresses the proposal when one already exists. Re-proposing while an
// alarm is Active is a no-op beyond the first call.
func (l *Lifecycle) Propose(ctx context.Context, proposal alarms.Proposal) (*alarms.Alarm, bool, error) {
	if l == nil || l.repo == nil {
		return nil, false, errors.New("alarm lifecycle: nil manager")
	}
	if proposal == nil {
		return nil, false, errors.New("alarm lifecycle: nil proposal")
	}
	if proposal.Device() == "" || proposal.Rule() == "" {
		return nil, false, errors.New("alarm lifecycle: proposal missing key")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	existing, err := l.repo.FindActiveByDeviceRule(ctx, l.tenantID, proposal.Device(), proposal.Rule())
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	now := l.clock.Now().UTC()
	alarm, err := materialize(proposal, l.tenantID, now)
	if err != nil {
		return nil, false, err
	}
	if err := l.repo.Create(ctx, &alarm); err != nil {
		return nil, false, err
	}
	l.notify(ctx, "active", alarm)
	return &alarm, true, nil
}

// ResolveIfExists closes the matching Active alarm with the given note.
// Returns false without error when no Active alarm exists for the key.
func (l *Lifecycle) ResolveIfExists(ctx context.Context, deviceID, ruleID, note string, at time.Time) (bool, error) {
	if l == nil || l.repo == nil {
		return false, errors.New("alarm lifecycle: nil manager")
	}
	if deviceID == "" || ruleID == "" {
		return false, errors.New("alarm lifecycle: empty key")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	active, err := l.repo.FindActiveByDeviceRule(ctx, l.tenantID, deviceID, ruleID)
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}
	resolvedAt := at.UTC()
	if resolvedAt.IsZero() {
		resolvedAt = l.clock.Now().UTC()
	}
	if err := l.repo.MarkResolved(ctx, active.ID, "auto", note, resolvedAt); err != nil {
		return false, err
	}
	active.Status = alarms.StatusResolved
	active.ResolvedAt = resolvedAt
	active.ResolvedBy = "auto"
	active.ResolutionNote = note
	active.UpdatedAt = resolvedAt
	l.notify(ctx, "resolved", *active)
	return true, nil
}

// Acknowledge closes an alarm through the explicit operator path,
// independent of automatic resolution.
func (l *Lifecycle) Acknowledge(ctx context.Context, alarmID, actor string) (bool, error) {
	if l == nil || l.repo == nil {
		return false, errors.New("alarm lifecycle: nil manager")
	}
	if alarmID == "" {
		return false, errors.New("alarm lifecycle: empty alarm id")
	}
	if actor == "" {
		actor = "operator"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	alarm, err := l.repo.GetByID(ctx, alarmID)
	if err != nil {
		return false, err
	}
	if alarm == nil {
		return false, alarms.ErrNotFound
	}
	if alarm.Status != alarms.StatusActive {
		return false, nil
	}
	resolvedAt := l.clock.Now().UTC()
	if err := l.repo.MarkResolved(ctx, alarm.ID, actor, "acknowledged", resolvedAt); err != nil {
		return false, err
	}
	alarm.Status = alarms.StatusResolved
	alarm.ResolvedAt = resolvedAt
	alarm.ResolvedBy = actor
	alarm.ResolutionNote = "acknowledged"
	alarm.UpdatedAt = resolvedAt
	l.notify(ctx, "resolved", *alarm)
	return true, nil
}

// LatestFor returns the most recent alarm for the key regardless of status.
// Rule evaluators use it for cooldown suppression.
func (l *Lifecycle) LatestFor(ctx context.Context, deviceID, ruleID string) (*alarms.Alarm, error) {
	if l == nil || l.repo == nil {
		return nil, errors.New("alarm lifecycle: nil manager")
	}
	return l.repo.FindLatestByDeviceRule(ctx, l.tenantID, deviceID, ruleID)
}

func (l *Lifecycle) notify(ctx context.Context, eventType string, alarm alarms.Alarm) {
	if l == nil {
		return
	}
	metrics.IncAlarmEvent(alarm.Family, eventType)
	if l.notifier == nil {
		return
	}
	l.notifier.Notify(ctx, AlarmEvent{Type: eventType, Alarm: alarm})
}

// materialize converts a proposal into an alarm row. The variant set is
// closed; a variant added without a case here is a programming error.
func materialize(proposal alarms.Proposal, tenantID string, now time.Time) (alarms.Alarm, error) {
	alarm := alarms.Alarm{
		ID:        buildAlarmID(tenantID, proposal.Device(), proposal.Rule(), now),
		TenantID:  tenantID,
		DeviceID:  proposal.Device(),
		RuleID:    proposal.Rule(),
		Family:    proposal.AlarmFamily(),
		Status:    alarms.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	switch p := proposal.(type) {
	case alarms.BatteryProposal:
		alarm.Severity = alarms.SeverityWarning
		if p.Critical {
			alarm.Severity = alarms.SeverityCritical
		}
		alarm.Value = p.BatteryPct
		alarm.Description = fmt.Sprintf("Battery at %.0f%% (threshold %.0f%%)", p.BatteryPct, p.ThresholdPct)
	case alarms.SpeedProposal:
		alarm.Severity = alarms.SeverityWarning
		alarm.Value = p.SpeedKmh
		alarm.Description = fmt.Sprintf("Speed %.1f km/h over limit %.1f km/h", p.SpeedKmh, p.LimitKmh)
	case alarms.ShockProposal:
		alarm.Severity = alarms.SeverityWarning
		if p.Critical {
			alarm.Severity = alarms.SeverityCritical
		}
		alarm.Value = p.ShockG
		alarm.Description = fmt.Sprintf("Shock %.1f g over limit %.1f g", p.ShockG, p.LimitG)
	case alarms.GeofenceExitProposal:
		alarm.Severity = alarms.SeverityCritical
		alarm.Value = p.DistanceMeters
		alarm.ValueText = p.SiteName
		alarm.Description = fmt.Sprintf(
			"Device left site %q at %s (%s), %.0f m outside the %.0f m radius",
			p.SiteName,
			p.LocalTime.Format("2006-01-02 15:04"),
			p.Zone,
			p.OverageMeters(),
			p.RadiusMeters,
		)
	case alarms.MaintenanceProposal:
		alarm.Severity = p.Severity
		if alarm.Severity == "" {
			alarm.Severity = alarms.SeverityWarning
		}
		alarm.Value = p.HoursSince
		alarm.Description = fmt.Sprintf("Maintenance interval %.0f h exceeded: %.0f h since last service", p.IntervalHours, p.HoursSince)
	case alarms.AfterHoursProposal:
		alarm.Severity = alarms.SeverityCritical
		when := p.LocalTime.Format("2006-01-02 15:04")
		if p.Weekend {
			alarm.Description = fmt.Sprintf("Equipment used on a weekend at %s (%s)", when, p.Zone)
		} else {
			alarm.Description = fmt.Sprintf("Equipment used after hours at %s (%s)", when, p.Zone)
		}
		alarm.ValueText = p.Zone
	case alarms.UsageProposal:
		alarm.Severity = alarms.SeverityWarning
		if p.Critical {
			alarm.Severity = alarms.SeverityCritical
		}
		alarm.Value = float64(p.DurationSeconds)
		alarm.ValueText = p.Category
		alarm.Description = fmt.Sprintf("Tool activation of %d s classified as %s", p.DurationSeconds, p.Category)
	default:
		return alarms.Alarm{}, alarms.ErrUnknownProposal
	}
	return alarm, nil
}

func buildAlarmID(tenantID, deviceID, ruleID string, createdAt time.Time) string {
	sum := sha1.Sum([]byte(tenantID + "|" + deviceID + "|" + ruleID + "|" + createdAt.Format(time.RFC3339Nano)))
	return "alarm-" + hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
