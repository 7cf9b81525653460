package application

import (
	"context"
	"fmt"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// evaluateGeofence drives the per-(device, site) inside/outside state
// machine. Outside the radius with no open exit alarm proposes one; back
// inside resolves it. There is no hysteresis band: a device oscillating at
// the exact boundary opens and closes alarms on every pass.
func (e *Engine) evaluateGeofence(ctx context.Context, device fleet.Device, pref fleet.NotificationPreference, site fleet.GeoSite, now time.Time) {
	if !site.AlarmsEnabled || !site.Monitors(device.ID) {
		return
	}
	if !pref.AllowsFamily(alarms.FamilyGeofence) {
		return
	}
	if device.LastPosition == nil {
		return
	}

	distance := fleet.DistanceMeters(site.Center, *device.LastPosition)
	ruleID := alarms.GeofenceRuleID(site.ID)

	if distance > site.RadiusMeters {
		local, zone := e.localTime.Resolve(device.LastPosition, now)
		e.proposeWithCooldown(ctx, alarms.GeofenceExitProposal{
			DeviceID:       device.ID,
			SiteID:         site.ID,
			SiteName:       site.Name,
			DistanceMeters: distance,
			RadiusMeters:   site.RadiusMeters,
			LocalTime:      local,
			Zone:           zone,
		}, 0)
		return
	}

	note := fmt.Sprintf("device returned inside site %q at %s", site.Name, now.UTC().Format(time.RFC3339))
	if _, err := e.lifecycle.ResolveIfExists(ctx, device.ID, ruleID, note, now); err != nil {
		e.logger.Printf("engine: resolve geofence %s/%s: %v", device.ID, ruleID, err)
	}
}
