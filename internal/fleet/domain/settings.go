package fleet

import "context"

// WorkHours is a tenant-level working window in device-local hours.
// The window is [StartHour, EndHour).
type WorkHours struct {
	StartHour      int
	EndHour        int
	WeekendAllowed bool
}

// DefaultWorkHours returns the fallback window: 08:00-18:00, no weekends.
func DefaultWorkHours() WorkHours {
	return WorkHours{StartHour: 8, EndHour: 18, WeekendAllowed: false}
}

// Normalize replaces an invalid window with the default one. Configuration
// parse failures degrade silently rather than blocking evaluation.
func (w WorkHours) Normalize() WorkHours {
	if w.StartHour < 0 || w.StartHour > 23 {
		return DefaultWorkHours()
	}
	if w.EndHour < 1 || w.EndHour > 24 {
		return DefaultWorkHours()
	}
	if w.StartHour >= w.EndHour {
		return DefaultWorkHours()
	}
	return w
}

// TenantSettingsRepository loads tenant-level engine settings.
type TenantSettingsRepository interface {
	GetWorkHours(ctx context.Context, tenantID string) (WorkHours, error)
}
