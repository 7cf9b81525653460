package alarms

import "time"

const (
	StatusActive   = "active"
	StatusResolved = "resolved"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Alarm families group rule identifiers for preference gating and metrics.
const (
	FamilyBattery     = "battery"
	FamilySpeed       = "speed"
	FamilyShock       = "shock"
	FamilyGeofence    = "geofence"
	FamilyMaintenance = "maintenance"
	FamilyAfterHours  = "after_hours"
	FamilyUsage       = "usage"
)

// Alarm is a persisted rule violation for a device. The engine's lifecycle
// manager is the only writer; at most one Active alarm may exist per
// (device id, rule id) pair.
type Alarm struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenant_id"`
	DeviceID       string    `json:"device_id"`
	RuleID         string    `json:"rule_id"`
	Family         string    `json:"family"`
	Severity       string    `json:"severity"`
	Description    string    `json:"description"`
	Value          float64   `json:"value"`
	ValueText      string    `json:"value_text,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	ResolvedAt     time.Time `json:"resolved_at,omitempty"`
	ResolvedBy     string    `json:"resolved_by,omitempty"`
	ResolutionNote string    `json:"resolution_note,omitempty"`
}

// IsActive reports whether the alarm is still open.
func (a Alarm) IsActive() bool { return a.Status == StatusActive }
