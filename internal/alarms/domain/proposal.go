package alarms

import (
	"fmt"
	"time"
)

// Stable rule identifiers. A rule id distinguishes one alarm-producing
// condition from another on the same device.
const (
	RuleLowBatteryWarning  = "low-battery-warning"
	RuleLowBatteryCritical = "low-battery-critical"
	RuleOverspeed          = "overspeed"
	RuleShockWarning       = "shock-warning"
	RuleShockCritical      = "shock-critical"
	RuleAfterHours         = "after-hours"
	RuleToolDamageRisk     = "tool-damage-risk"
	RuleErroneousToolUse   = "erroneous-tool-use"
)

// GeofenceRuleID builds the per-site rule identifier.
func GeofenceRuleID(siteID string) string { return "geofence:" + siteID }

// MaintenanceRuleID builds the per-interval rule identifier.
func MaintenanceRuleID(intervalHours float64) string {
	return fmt.Sprintf("maintenance:%.0fh", intervalHours)
}

// Proposal is a closed set of per-family alarm proposals. Rule evaluators
// only propose; the lifecycle manager materializes proposals into alarms and
// matches the variant set exhaustively.
type Proposal interface {
	Device() string
	Rule() string
	AlarmFamily() string

	isProposal()
}

// BatteryProposal reports battery charge under a configured threshold.
type BatteryProposal struct {
	DeviceID     string
	BatteryPct   float64
	ThresholdPct float64
	Critical     bool
}

func (p BatteryProposal) Device() string { return p.DeviceID }

func (p BatteryProposal) Rule() string {
	if p.Critical {
		return RuleLowBatteryCritical
	}
	return RuleLowBatteryWarning
}

func (p BatteryProposal) AlarmFamily() string { return FamilyBattery }
func (BatteryProposal) isProposal()           {}

// SpeedProposal reports transport speed over the device limit.
type SpeedProposal struct {
	DeviceID string
	SpeedKmh float64
	LimitKmh float64
}

func (p SpeedProposal) Device() string      { return p.DeviceID }
func (p SpeedProposal) Rule() string        { return RuleOverspeed }
func (p SpeedProposal) AlarmFamily() string { return FamilySpeed }
func (SpeedProposal) isProposal()           {}

// ShockProposal reports shock magnitude over the device limit. Critical
// shock events are never cooldown-suppressed.
type ShockProposal struct {
	DeviceID string
	ShockG   float64
	LimitG   float64
	Critical bool
}

func (p ShockProposal) Device() string { return p.DeviceID }

func (p ShockProposal) Rule() string {
	if p.Critical {
		return RuleShockCritical
	}
	return RuleShockWarning
}

func (p ShockProposal) AlarmFamily() string { return FamilyShock }
func (ShockProposal) isProposal()           {}

// GeofenceExitProposal reports a device outside a monitored site.
type GeofenceExitProposal struct {
	DeviceID       string
	SiteID         string
	SiteName       string
	DistanceMeters float64
	RadiusMeters   float64
	LocalTime      time.Time
	Zone           string
}

func (p GeofenceExitProposal) Device() string      { return p.DeviceID }
func (p GeofenceExitProposal) Rule() string        { return GeofenceRuleID(p.SiteID) }
func (p GeofenceExitProposal) AlarmFamily() string { return FamilyGeofence }
func (GeofenceExitProposal) isProposal()           {}

// OverageMeters is the distance beyond the site radius.
func (p GeofenceExitProposal) OverageMeters() float64 {
	overage := p.DistanceMeters - p.RadiusMeters
	if overage < 0 {
		return 0
	}
	return overage
}

// MaintenanceProposal reports an exceeded maintenance interval. Each
// exceeded interval proposes independently under its own rule id.
type MaintenanceProposal struct {
	DeviceID      string
	IntervalHours float64
	HoursSince    float64
	Severity      string
}

func (p MaintenanceProposal) Device() string      { return p.DeviceID }
func (p MaintenanceProposal) Rule() string        { return MaintenanceRuleID(p.IntervalHours) }
func (p MaintenanceProposal) AlarmFamily() string { return FamilyMaintenance }
func (MaintenanceProposal) isProposal()           {}

// AfterHoursProposal reports equipment usage outside the tenant work window.
type AfterHoursProposal struct {
	DeviceID  string
	LocalTime time.Time
	Zone      string
	Weekend   bool
}

func (p AfterHoursProposal) Device() string      { return p.DeviceID }
func (p AfterHoursProposal) Rule() string        { return RuleAfterHours }
func (p AfterHoursProposal) AlarmFamily() string { return FamilyAfterHours }
func (AfterHoursProposal) isProposal()           {}

// UsageProposal reports a damaging tool-use interval from the classifier.
type UsageProposal struct {
	DeviceID        string
	DurationSeconds int
	Category        string
	Critical        bool
}

func (p UsageProposal) Device() string { return p.DeviceID }

func (p UsageProposal) Rule() string {
	if p.Critical {
		return RuleErroneousToolUse
	}
	return RuleToolDamageRisk
}

func (p UsageProposal) AlarmFamily() string { return FamilyUsage }
func (UsageProposal) isProposal()           {}
