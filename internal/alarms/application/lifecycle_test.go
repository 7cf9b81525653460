package application

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
)

type memAlarmRepo struct {
	mu     sync.Mutex
	rows   map[string]*alarms.Alarm
	order  []string
	failOn string
}

func newMemAlarmRepo() *memAlarmRepo {
	return &memAlarmRepo{rows: map[string]*alarms.Alarm{}}
}

func (m *memAlarmRepo) Create(_ context.Context, alarm *alarms.Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "create" {
		return errors.New("storage down")
	}
	clone := *alarm
	m.rows[alarm.ID] = &clone
	m.order = append(m.order, alarm.ID)
	return nil
}

func (m *memAlarmRepo) GetByID(_ context.Context, id string) (*alarms.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	clone := *row
	return &clone, nil
}

func (m *memAlarmRepo) FindActiveByDeviceRule(_ context.Context, tenantID, deviceID, ruleID string) (*alarms.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "find" {
		return nil, errors.New("storage down")
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		row := m.rows[m.order[i]]
		if row.TenantID == tenantID && row.DeviceID == deviceID && row.RuleID == ruleID && row.Status == alarms.StatusActive {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memAlarmRepo) FindLatestByDeviceRule(_ context.Context, tenantID, deviceID, ruleID string) (*alarms.Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "latest" {
		return nil, errors.New("storage down")
	}
	for i := len(m.order) - 1; i >= 0; i-- {
		row := m.rows[m.order[i]]
		if row.TenantID == tenantID && row.DeviceID == deviceID && row.RuleID == ruleID {
			clone := *row
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memAlarmRepo) MarkResolved(_ context.Context, id, resolvedBy, note string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return errors.New("no such alarm")
	}
	row.Status = alarms.StatusResolved
	row.ResolvedBy = resolvedBy
	row.ResolutionNote = note
	row.ResolvedAt = at
	row.UpdatedAt = at
	return nil
}

func (m *memAlarmRepo) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.Status == alarms.StatusActive {
			count++
		}
	}
	return count
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []AlarmEvent
}

func (n *recordingNotifier) Notify(_ context.Context, event AlarmEvent) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, event := range n.events {
		out = append(out, event.Type)
	}
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLifecycle(t *testing.T, repo AlarmRepository, opts ...LifecycleOption) *Lifecycle {
	t.Helper()
	lifecycle, err := NewLifecycle(repo, "tenant-1", opts...)
	if err != nil {
		t.Fatalf("NewLifecycle: %v", err)
	}
	return lifecycle
}

func TestProposeCreatesSingleActiveAlarm(t *testing.T) {
	repo := newMemAlarmRepo()
	notifier := &recordingNotifier{}
	lifecycle := newTestLifecycle(t, repo, WithNotifier(notifier))

	proposal := alarms.BatteryProposal{DeviceID: "dev-1", BatteryPct: 7, ThresholdPct: 10, Critical: true}

	alarm, created, err := lifecycle.Propose(context.Background(), proposal)
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if !created {
		t.Fatal("first proposal should create")
	}
	if alarm.Severity != alarms.SeverityCritical {
		t.Errorf("severity = %q", alarm.Severity)
	}
	if alarm.Family != alarms.FamilyBattery {
		t.Errorf("family = %q", alarm.Family)
	}
	if !strings.HasPrefix(alarm.ID, "alarm-") {
		t.Errorf("id = %q", alarm.ID)
	}

	// Re-proposing while active is suppressed and returns the open alarm.
	again, created, err := lifecycle.Propose(context.Background(), proposal)
	if err != nil {
		t.Fatalf("Propose again: %v", err)
	}
	if created {
		t.Fatal("second proposal must not create")
	}
	if again.ID != alarm.ID {
		t.Errorf("expected existing alarm %s, got %s", alarm.ID, again.ID)
	}
	if repo.activeCount() != 1 {
		t.Fatalf("active alarms = %d, want 1", repo.activeCount())
	}
	if got := notifier.types(); len(got) != 1 || got[0] != "active" {
		t.Errorf("notified events = %v", got)
	}
}

func TestResolveClearsSuppression(t *testing.T) {
	repo := newMemAlarmRepo()
	lifecycle := newTestLifecycle(t, repo)
	proposal := alarms.SpeedProposal{DeviceID: "dev-1", SpeedKmh: 42, LimitKmh: 30}

	first, created, err := lifecycle.Propose(context.Background(), proposal)
	if err != nil || !created {
		t.Fatalf("Propose: created=%v err=%v", created, err)
	}

	resolved, err := lifecycle.ResolveIfExists(context.Background(), "dev-1", alarms.RuleOverspeed, "back under limit", time.Now())
	if err != nil {
		t.Fatalf("ResolveIfExists: %v", err)
	}
	if !resolved {
		t.Fatal("expected resolution")
	}

	// A new violation after resolution opens a fresh alarm.
	second, created, err := lifecycle.Propose(context.Background(), proposal)
	if err != nil || !created {
		t.Fatalf("Propose after resolve: created=%v err=%v", created, err)
	}
	if second.ID == first.ID {
		t.Error("expected a new alarm id after resolution")
	}
}

func TestResolveIfExistsNoActive(t *testing.T) {
	lifecycle := newTestLifecycle(t, newMemAlarmRepo())
	resolved, err := lifecycle.ResolveIfExists(context.Background(), "dev-1", alarms.RuleOverspeed, "note", time.Now())
	if err != nil {
		t.Fatalf("ResolveIfExists: %v", err)
	}
	if resolved {
		t.Fatal("nothing to resolve, got true")
	}
}

func TestAcknowledge(t *testing.T) {
	repo := newMemAlarmRepo()
	notifier := &recordingNotifier{}
	lifecycle := newTestLifecycle(t, repo, WithNotifier(notifier))

	alarm, _, err := lifecycle.Propose(context.Background(), alarms.ShockProposal{DeviceID: "dev-1", ShockG: 20, LimitG: 16, Critical: true})
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	acked, err := lifecycle.Acknowledge(context.Background(), alarm.ID, "user-7")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !acked {
		t.Fatal("expected acknowledgement")
	}
	stored, _ := repo.GetByID(context.Background(), alarm.ID)
	if stored.Status != alarms.StatusResolved || stored.ResolvedBy != "user-7" {
		t.Errorf("stored = %+v", stored)
	}

	// Second acknowledge is a no-op.
	acked, err = lifecycle.Acknowledge(context.Background(), alarm.ID, "user-7")
	if err != nil {
		t.Fatalf("Acknowledge again: %v", err)
	}
	if acked {
		t.Fatal("already resolved, ack must return false")
	}

	if _, err := lifecycle.Acknowledge(context.Background(), "missing", "user-7"); !errors.Is(err, alarms.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMaterializeVariants(t *testing.T) {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	local := time.Date(2026, 4, 1, 3, 0, 0, 0, time.UTC)

	cases := []struct {
		name         string
		proposal     alarms.Proposal
		wantSeverity string
		wantFamily   string
	}{
		{"battery warn", alarms.BatteryProposal{DeviceID: "d", BatteryPct: 15, ThresholdPct: 20}, alarms.SeverityWarning, alarms.FamilyBattery},
		{"battery crit", alarms.BatteryProposal{DeviceID: "d", BatteryPct: 5, ThresholdPct: 10, Critical: true}, alarms.SeverityCritical, alarms.FamilyBattery},
		{"speed", alarms.SpeedProposal{DeviceID: "d", SpeedKmh: 40, LimitKmh: 30}, alarms.SeverityWarning, alarms.FamilySpeed},
		{"shock crit", alarms.ShockProposal{DeviceID: "d", ShockG: 20, LimitG: 16, Critical: true}, alarms.SeverityCritical, alarms.FamilyShock},
		{"geofence", alarms.GeofenceExitProposal{DeviceID: "d", SiteID: "s", SiteName: "Depot", DistanceMeters: 700, RadiusMeters: 500, LocalTime: local, Zone: "UTC"}, alarms.SeverityCritical, alarms.FamilyGeofence},
		{"maintenance", alarms.MaintenanceProposal{DeviceID: "d", IntervalHours: 500, HoursSince: 512, Severity: alarms.SeverityWarning}, alarms.SeverityWarning, alarms.FamilyMaintenance},
		{"after hours", alarms.AfterHoursProposal{DeviceID: "d", LocalTime: local, Zone: "Europe/Paris"}, alarms.SeverityCritical, alarms.FamilyAfterHours},
		{"usage", alarms.UsageProposal{DeviceID: "d", DurationSeconds: 120, Category: "operator_error", Critical: true}, alarms.SeverityCritical, alarms.FamilyUsage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			alarm, err := materialize(tc.proposal, "tenant-1", now)
			if err != nil {
				t.Fatalf("materialize: %v", err)
			}
			if alarm.Severity != tc.wantSeverity {
				t.Errorf("severity = %q, want %q", alarm.Severity, tc.wantSeverity)
			}
			if alarm.Family != tc.wantFamily {
				t.Errorf("family = %q, want %q", alarm.Family, tc.wantFamily)
			}
			if alarm.Description == "" {
				t.Error("empty description")
			}
			if alarm.Status != alarms.StatusActive {
				t.Errorf("status = %q", alarm.Status)
			}
		})
	}
}
