package application

import (
	"context"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	fleet "fleetwatch-cloud/internal/fleet/domain"
	telemetry "fleetwatch-cloud/internal/telemetry/domain"
)

// evaluateBattery checks battery charge against the warning and critical
// thresholds. The two thresholds are independent rules with distinct rule
// ids, but only the matching bucket proposes: a device at 5% produces the
// critical alarm alone, never both.
func (e *Engine) evaluateBattery(ctx context.Context, device fleet.Device, pref fleet.NotificationPreference, limits fleet.Limits, sample telemetry.Sample, now time.Time) {
	if !pref.AllowsFamily(alarms.FamilyBattery) {
		return
	}
	critRule := alarms.ThresholdRule{
		ID:        alarms.RuleLowBatteryCritical,
		Family:    alarms.FamilyBattery,
		Operator:  alarms.OperatorLess,
		Threshold: limits.BatteryCritPct,
		Severity:  alarms.SeverityCritical,
	}
	warnRule := alarms.ThresholdRule{
		ID:        alarms.RuleLowBatteryWarning,
		Family:    alarms.FamilyBattery,
		Operator:  alarms.OperatorLess,
		Threshold: limits.BatteryWarnPct,
		Severity:  alarms.SeverityWarning,
	}

	switch {
	case critRule.Matches(sample.BatteryPct):
		e.proposeWithCooldown(ctx, alarms.BatteryProposal{
			DeviceID:     device.ID,
			BatteryPct:   sample.BatteryPct,
			ThresholdPct: critRule.Threshold,
			Critical:     true,
		}, e.cfg.ThresholdCooldown())
	case warnRule.Matches(sample.BatteryPct):
		e.proposeWithCooldown(ctx, alarms.BatteryProposal{
			DeviceID:     device.ID,
			BatteryPct:   sample.BatteryPct,
			ThresholdPct: warnRule.Threshold,
			Critical:     false,
		}, e.cfg.ThresholdCooldown())
	}
}

// evaluateSpeed checks transport speed against the per-device limit.
func (e *Engine) evaluateSpeed(ctx context.Context, device fleet.Device, limits fleet.Limits, sample telemetry.Sample, now time.Time) {
	rule := alarms.ThresholdRule{
		ID:        alarms.RuleOverspeed,
		Family:    alarms.FamilySpeed,
		Operator:  alarms.OperatorGreater,
		Threshold: limits.MaxSpeedKmh,
		Severity:  alarms.SeverityWarning,
	}
	if !rule.Matches(sample.SpeedKmh) {
		return
	}
	e.proposeWithCooldown(ctx, alarms.SpeedProposal{
		DeviceID: device.ID,
		SpeedKmh: sample.SpeedKmh,
		LimitKmh: rule.Threshold,
	}, e.cfg.ThresholdCooldown())
}

// evaluateShock checks shock magnitude. The critical rule carries no
// cooldown: physical damage events must never be silently dropped.
func (e *Engine) evaluateShock(ctx context.Context, device fleet.Device, pref fleet.NotificationPreference, limits fleet.Limits, sample telemetry.Sample, now time.Time) {
	if !pref.AllowsFamily(alarms.FamilyShock) {
		return
	}
	switch {
	case sample.ShockG > limits.ShockCritG:
		e.proposeWithCooldown(ctx, alarms.ShockProposal{
			DeviceID: device.ID,
			ShockG:   sample.ShockG,
			LimitG:   limits.ShockCritG,
			Critical: true,
		}, alarms.CooldownShockCrit)
	case sample.ShockG > limits.ShockWarnG:
		e.proposeWithCooldown(ctx, alarms.ShockProposal{
			DeviceID: device.ID,
			ShockG:   sample.ShockG,
			LimitG:   limits.ShockWarnG,
			Critical: false,
		}, e.cfg.ThresholdCooldown())
	}
}

// evaluateMaintenance checks every schedule interval against hours since
// last service. Each exceeded interval proposes independently, so a device
// 1000 hours overdue opens several maintenance alarms at once. The one-
// Active-per-rule invariant keeps re-proposals idempotent; no cooldown
// applies.
func (e *Engine) evaluateMaintenance(ctx context.Context, device fleet.Device, pref fleet.NotificationPreference) {
	if !pref.AllowsFamily(alarms.FamilyMaintenance) {
		return
	}
	hoursSince := device.HoursSinceMaintenance()
	for _, interval := range e.cfg.MaintenanceSchedule() {
		if !interval.Due(hoursSince) {
			continue
		}
		e.proposeWithCooldown(ctx, alarms.MaintenanceProposal{
			DeviceID:      device.ID,
			IntervalHours: interval.Hours,
			HoursSince:    hoursSince,
			Severity:      interval.Severity,
		}, 0)
	}
}
