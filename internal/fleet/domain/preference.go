package fleet

import "context"

// NotificationPreference gates which alarm families may be raised for a
// user's devices. Missing rows default to everything enabled.
type NotificationPreference struct {
	UserID      string
	TenantID    string
	Battery     bool
	Shock       bool
	Geofence    bool
	Maintenance bool
	AfterHours  bool
}

// DefaultNotificationPreference returns a preference with every family enabled.
func DefaultNotificationPreference(tenantID, userID string) NotificationPreference {
	return NotificationPreference{
		UserID:      userID,
		TenantID:    tenantID,
		Battery:     true,
		Shock:       true,
		Geofence:    true,
		Maintenance: true,
		AfterHours:  true,
	}
}

// AllowsFamily returns true when the alarm family may be raised.
// Unknown families are allowed rather than silently dropped.
func (p NotificationPreference) AllowsFamily(family string) bool {
	switch family {
	case "battery":
		return p.Battery
	case "shock":
		return p.Shock
	case "geofence":
		return p.Geofence
	case "maintenance":
		return p.Maintenance
	case "after_hours":
		return p.AfterHours
	default:
		return true
	}
}

// PreferenceRepository loads notification preferences.
type PreferenceRepository interface {
	GetByUser(ctx context.Context, tenantID, userID string) (NotificationPreference, error)
}
