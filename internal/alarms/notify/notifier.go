package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	alarmapp "fleetwatch-cloud/internal/alarms/application"
	alarms "fleetwatch-cloud/internal/alarms/domain"
	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// DeviceReader loads device metadata.
type DeviceReader interface {
	Get(ctx context.Context, id string) (*fleet.Device, error)
}

// AlarmReader loads alarm records.
type AlarmReader interface {
	GetByID(ctx context.Context, id string) (*alarms.Alarm, error)
}

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier sends alarm notifications via a channel and handles escalation.
type Notifier struct {
	devices        DeviceReader
	alarms         AlarmReader
	channel        Channel
	template       *Template
	escalation     time.Duration
	clock          Clock
	mu             sync.Mutex
	timers         map[string]*time.Timer
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation configures escalation delay for critical alarms that stay
// active.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithRequestTimeout overrides the default timeout for escalation checks.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// alarm and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alarm notifier.
func NewNotifier(devices DeviceReader, alarmReader AlarmReader, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if alarmReader == nil {
		return nil, errors.New("alarm notifier: nil alarm reader")
	}
	if channel == nil {
		return nil, errors.New("alarm notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		devices:        devices,
		alarms:         alarmReader,
		channel:        channel,
		template:       template,
		escalation:     0,
		clock:          systemClock{},
		timers:         make(map[string]*time.Timer),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements alarmapp.AlarmNotifier.
func (n *Notifier) Notify(ctx context.Context, event alarmapp.AlarmEvent) {
	if n == nil || n.channel == nil {
		return
	}
	device := n.lookupDevice(ctx, event.Alarm.DeviceID)
	n.dispatch(ctx, event.Type, event.Alarm, device)

	switch event.Type {
	case "active":
		n.scheduleEscalation(event.Alarm)
	case "resolved":
		n.cancelEscalation(event.Alarm.ID)
	}
}

// Close stops all pending escalation timers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	timers := n.timers
	n.timers = make(map[string]*time.Timer)
	n.mu.Unlock()
	for _, timer := range timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

func (n *Notifier) lookupDevice(ctx context.Context, deviceID string) *fleet.Device {
	if n.devices == nil || deviceID == "" {
		return nil
	}
	device, err := n.devices.Get(ctx, deviceID)
	if err != nil {
		return nil
	}
	return device
}

func (n *Notifier) dispatch(ctx context.Context, eventType string, alarm alarms.Alarm, device *fleet.Device) {
	data := buildTemplateData(eventType, alarm, device)
	content, err := n.template.Render(data)
	if err != nil {
		return
	}
	if !n.shouldSend(alarm.ID, eventType, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return
	}
	n.markSent(alarm.ID, eventType, content)
}

func (n *Notifier) scheduleEscalation(alarm alarms.Alarm) {
	if n == nil || n.escalation <= 0 || alarm.ID == "" {
		return
	}
	if alarm.Severity != alarms.SeverityCritical {
		return
	}
	n.mu.Lock()
	if existing, ok := n.timers[alarm.ID]; ok {
		if existing != nil {
			existing.Stop()
		}
	}
	timer := time.AfterFunc(n.escalation, func() {
		n.runEscalation(alarm.ID)
	})
	n.timers[alarm.ID] = timer
	n.mu.Unlock()
}

func (n *Notifier) cancelEscalation(alarmID string) {
	if n == nil || alarmID == "" {
		return
	}
	n.mu.Lock()
	timer := n.timers[alarmID]
	delete(n.timers, alarmID)
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (n *Notifier) runEscalation(alarmID string) {
	if n == nil || alarmID == "" {
		return
	}
	n.mu.Lock()
	delete(n.timers, alarmID)
	n.mu.Unlock()

	ctx := context.Background()
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}

	alarm, err := n.alarms.GetByID(ctx, alarmID)
	if err != nil || alarm == nil {
		return
	}
	if alarm.Status != alarms.StatusActive {
		return
	}
	if alarm.Severity != alarms.SeverityCritical {
		return
	}
	device := n.lookupDevice(ctx, alarm.DeviceID)
	n.dispatch(ctx, "escalated", *alarm, device)
}

func buildTemplateData(eventType string, alarm alarms.Alarm, device *fleet.Device) TemplateData {
	deviceName := alarm.DeviceID
	if device != nil && device.Name != "" {
		deviceName = device.Name
	}
	value := alarm.ValueText
	if value == "" {
		value = formatFloat(alarm.Value)
	}
	return TemplateData{
		Device:      deviceName,
		DeviceID:    alarm.DeviceID,
		Rule:        alarm.RuleID,
		RuleID:      alarm.RuleID,
		Family:      alarm.Family,
		Severity:    alarm.Severity,
		Description: alarm.Description,
		Value:       value,
		StartTime:   alarm.CreatedAt.UTC().Format(time.RFC3339),
		Status:      alarm.Status,
		Suggestion:  suggestionFor(alarm),
		Event:       eventType,
		EventLabel:  eventLabel(eventType),
	}
}

func eventLabel(event string) string {
	switch event {
	case "active":
		return "Triggered"
	case "resolved":
		return "Resolved"
	case "escalated":
		return "Escalated"
	default:
		return event
	}
}

func suggestionFor(alarm alarms.Alarm) string {
	switch strings.TrimSpace(strings.ToLower(alarm.Severity)) {
	case alarms.SeverityCritical:
		return "Investigate immediately and mitigate risk."
	case alarms.SeverityWarning:
		return "Verify the condition and take action if needed."
	default:
		return "Monitor the alarm condition."
	}
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func (n *Notifier) shouldSend(alarmID, eventType, content string) bool {
	if n == nil {
		return false
	}
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alarmID, eventType)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(alarmID, eventType, content string) {
	if n == nil {
		return
	}
	key := notificationKey(alarmID, eventType)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(alarmID, eventType string) string {
	return alarmID + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
