package application

import (
	"context"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// evaluateWorkHours checks the device-local hour and weekday against the
// tenant work window. Callers only invoke it when the latest sample shows
// the equipment in use.
func (e *Engine) evaluateWorkHours(ctx context.Context, device fleet.Device, pref fleet.NotificationPreference, window fleet.WorkHours, now time.Time) {
	if !pref.AllowsFamily(alarms.FamilyAfterHours) {
		return
	}

	local, zone := e.localTime.Resolve(device.LastPosition, now)
	weekday := local.Weekday()
	weekend := weekday == time.Saturday || weekday == time.Sunday
	outsideWindow := local.Hour() < window.StartHour || local.Hour() >= window.EndHour

	violation := (weekend && !window.WeekendAllowed) || outsideWindow
	if !violation {
		return
	}

	e.proposeWithCooldown(ctx, alarms.AfterHoursProposal{
		DeviceID:  device.ID,
		LocalTime: local,
		Zone:      zone,
		Weekend:   weekend && !window.WeekendAllowed,
	}, e.cfg.AfterHoursCooldown())
}
