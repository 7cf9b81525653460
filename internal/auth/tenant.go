package auth

import (
	"context"
	"database/sql"
	"errors"

	fleetrepo "fleetwatch-cloud/internal/fleet/infrastructure/postgres"
)

var (
	// ErrTenantMismatch indicates resource belongs to a different tenant.
	ErrTenantMismatch = errors.New("tenant mismatch")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("resource not found")
)

// DeviceTenantChecker validates device tenant ownership.
type DeviceTenantChecker interface {
	EnsureDeviceTenant(ctx context.Context, tenantID, deviceID string) error
}

// DeviceChecker checks device ownership against the fleet store.
type DeviceChecker struct {
	repo *fleetrepo.DeviceRepository
}

// NewDeviceChecker constructs a DeviceChecker.
func NewDeviceChecker(db *sql.DB) *DeviceChecker {
	if db == nil {
		return nil
	}
	return &DeviceChecker{repo: fleetrepo.NewDeviceRepository(db)}
}

// EnsureDeviceTenant verifies the device belongs to the tenant.
func (c *DeviceChecker) EnsureDeviceTenant(ctx context.Context, tenantID, deviceID string) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if tenantID == "" || deviceID == "" {
		return nil
	}
	device, err := c.repo.Get(ctx, deviceID)
	if err != nil {
		return err
	}
	if device == nil {
		return ErrNotFound
	}
	if device.TenantID != tenantID {
		return ErrTenantMismatch
	}
	return nil
}
