package notify

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	alarmapp "fleetwatch-cloud/internal/alarms/application"
	alarms "fleetwatch-cloud/internal/alarms/domain"
	fleet "fleetwatch-cloud/internal/fleet/domain"
)

type stubChannel struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (c *stubChannel) Send(_ context.Context, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, content)
	return nil
}

func (c *stubChannel) messages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

type stubAlarmReader struct {
	mu     sync.Mutex
	alarms map[string]*alarms.Alarm
}

func (r *stubAlarmReader) GetByID(_ context.Context, id string) (*alarms.Alarm, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alarms[id], nil
}

func (r *stubAlarmReader) set(alarm *alarms.Alarm) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.alarms == nil {
		r.alarms = map[string]*alarms.Alarm{}
	}
	r.alarms[alarm.ID] = alarm
}

type stubDeviceReader struct {
	device *fleet.Device
}

func (r *stubDeviceReader) Get(context.Context, string) (*fleet.Device, error) {
	return r.device, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testAlarm(id, severity string) alarms.Alarm {
	return alarms.Alarm{
		ID:          id,
		TenantID:    "tenant-1",
		DeviceID:    "dev-1",
		RuleID:      alarms.RuleLowBatteryCritical,
		Family:      alarms.FamilyBattery,
		Severity:    severity,
		Description: "battery critically low",
		Value:       7,
		Status:      alarms.StatusActive,
		CreatedAt:   time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNotifierRendersDeviceName(t *testing.T) {
	channel := &stubChannel{}
	reader := &stubAlarmReader{}
	devices := &stubDeviceReader{device: &fleet.Device{ID: "dev-1", Name: "Breaker 12"}}

	n, err := NewNotifier(devices, reader, channel, nil)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer n.Close()

	n.Notify(context.Background(), alarmapp.AlarmEvent{Type: "active", Alarm: testAlarm("a-1", alarms.SeverityCritical)})

	messages := channel.messages()
	if len(messages) != 1 {
		t.Fatalf("sent %d messages, want 1", len(messages))
	}
	if !strings.Contains(messages[0], "Breaker 12") {
		t.Errorf("message missing device name:\n%s", messages[0])
	}
	if !strings.Contains(messages[0], "Triggered") {
		t.Errorf("message missing event label:\n%s", messages[0])
	}
	if !strings.Contains(messages[0], "battery critically low") {
		t.Errorf("message missing description:\n%s", messages[0])
	}
}

func TestNotifierDedupesIdenticalContent(t *testing.T) {
	channel := &stubChannel{}
	reader := &stubAlarmReader{}
	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}

	n, err := NewNotifier(nil, reader, channel, nil,
		WithClock(clock),
		WithDedupeWindow(10*time.Minute),
	)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer n.Close()

	event := alarmapp.AlarmEvent{Type: "active", Alarm: testAlarm("a-1", alarms.SeverityWarning)}
	n.Notify(context.Background(), event)
	n.Notify(context.Background(), event)
	if got := len(channel.messages()); got != 1 {
		t.Fatalf("sent %d messages within dedupe window, want 1", got)
	}

	clock.advance(11 * time.Minute)
	n.Notify(context.Background(), event)
	if got := len(channel.messages()); got != 2 {
		t.Fatalf("sent %d messages after window, want 2", got)
	}
}

func TestNotifierCooldownSuppressesRepeats(t *testing.T) {
	channel := &stubChannel{}
	reader := &stubAlarmReader{}
	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}

	n, err := NewNotifier(nil, reader, channel, nil,
		WithClock(clock),
		WithCooldown(5*time.Minute),
	)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer n.Close()

	event := alarmapp.AlarmEvent{Type: "active", Alarm: testAlarm("a-1", alarms.SeverityWarning)}
	n.Notify(context.Background(), event)
	clock.advance(time.Minute)
	n.Notify(context.Background(), event)
	if got := len(channel.messages()); got != 1 {
		t.Fatalf("sent %d messages within cooldown, want 1", got)
	}
}

func TestNotifierEscalatesCriticalAlarms(t *testing.T) {
	channel := &stubChannel{}
	reader := &stubAlarmReader{}
	alarm := testAlarm("a-1", alarms.SeverityCritical)
	reader.set(&alarm)

	n, err := NewNotifier(nil, reader, channel, nil, WithEscalation(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer n.Close()

	n.Notify(context.Background(), alarmapp.AlarmEvent{Type: "active", Alarm: alarm})

	deadline := time.Now().Add(2 * time.Second)
	for {
		messages := channel.messages()
		if len(messages) >= 2 {
			if !strings.Contains(messages[1], "Escalated") {
				t.Fatalf("second message is not an escalation:\n%s", messages[1])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("escalation never fired, got %d messages", len(messages))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNotifierResolveCancelsEscalation(t *testing.T) {
	channel := &stubChannel{}
	reader := &stubAlarmReader{}
	alarm := testAlarm("a-1", alarms.SeverityCritical)
	reader.set(&alarm)

	n, err := NewNotifier(nil, reader, channel, nil, WithEscalation(50*time.Millisecond))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer n.Close()

	n.Notify(context.Background(), alarmapp.AlarmEvent{Type: "active", Alarm: alarm})

	resolved := alarm
	resolved.Status = alarms.StatusResolved
	n.Notify(context.Background(), alarmapp.AlarmEvent{Type: "resolved", Alarm: resolved})

	time.Sleep(120 * time.Millisecond)
	for _, msg := range channel.messages() {
		if strings.Contains(msg, "Escalated") {
			t.Fatal("escalation fired after resolve")
		}
	}
}

func TestNotifierSkipsEscalationForWarnings(t *testing.T) {
	channel := &stubChannel{}
	reader := &stubAlarmReader{}
	alarm := testAlarm("a-1", alarms.SeverityWarning)
	reader.set(&alarm)

	n, err := NewNotifier(nil, reader, channel, nil, WithEscalation(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}
	defer n.Close()

	n.Notify(context.Background(), alarmapp.AlarmEvent{Type: "active", Alarm: alarm})
	time.Sleep(80 * time.Millisecond)
	if got := len(channel.messages()); got != 1 {
		t.Fatalf("sent %d messages, want 1 (no escalation for warning)", got)
	}
}
