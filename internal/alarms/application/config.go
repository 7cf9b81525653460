package application

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	fleet "fleetwatch-cloud/internal/fleet/domain"
)

// CooldownConfig holds per-family cooldowns in seconds.
type CooldownConfig struct {
	UsageSeconds      int `yaml:"usage_seconds"`
	ThresholdSeconds  int `yaml:"threshold_seconds"`
	AfterHoursSeconds int `yaml:"after_hours_seconds"`
}

// WorkHoursConfig is the tenant default work window.
type WorkHoursConfig struct {
	StartHour      int  `yaml:"start_hour"`
	EndHour        int  `yaml:"end_hour"`
	WeekendAllowed bool `yaml:"weekend_allowed"`
}

// MaintenanceIntervalConfig is one maintenance schedule step.
type MaintenanceIntervalConfig struct {
	Hours     float64 `yaml:"hours"`
	Tolerance float64 `yaml:"tolerance"`
	Severity  string  `yaml:"severity"`
}

// Config holds engine tuning. Every field has a working default; a missing
// or malformed file degrades to the defaults rather than blocking startup.
type Config struct {
	Cooldowns   CooldownConfig              `yaml:"cooldowns"`
	WorkHours   WorkHoursConfig             `yaml:"work_hours"`
	Maintenance []MaintenanceIntervalConfig `yaml:"maintenance"`
	Workers     int                         `yaml:"workers"`
}

// DefaultConfig returns the built-in engine configuration.
func DefaultConfig() Config {
	window := fleet.DefaultWorkHours()
	schedule := alarms.DefaultMaintenanceSchedule()
	intervals := make([]MaintenanceIntervalConfig, 0, len(schedule))
	for _, step := range schedule {
		intervals = append(intervals, MaintenanceIntervalConfig{
			Hours:     step.Hours,
			Tolerance: step.Tolerance,
			Severity:  step.Severity,
		})
	}
	return Config{
		Cooldowns: CooldownConfig{
			UsageSeconds:      int(alarms.CooldownUsage / time.Second),
			ThresholdSeconds:  int(alarms.CooldownThreshold / time.Second),
			AfterHoursSeconds: int(alarms.CooldownAfterHours / time.Second),
		},
		WorkHours: WorkHoursConfig{
			StartHour: window.StartHour,
			EndHour:   window.EndHour,
		},
		Maintenance: intervals,
		Workers:     8,
	}
}

// LoadConfig loads engine configuration from a yaml file. An empty path,
// unreadable file, or bad yaml returns the defaults together with the error
// so the caller can log and proceed.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), err
	}
	return cfg.normalize(), nil
}

func (c Config) normalize() Config {
	defaults := DefaultConfig()
	if c.Cooldowns.UsageSeconds <= 0 {
		c.Cooldowns.UsageSeconds = defaults.Cooldowns.UsageSeconds
	}
	if c.Cooldowns.ThresholdSeconds <= 0 {
		c.Cooldowns.ThresholdSeconds = defaults.Cooldowns.ThresholdSeconds
	}
	if c.Cooldowns.AfterHoursSeconds <= 0 {
		c.Cooldowns.AfterHoursSeconds = defaults.Cooldowns.AfterHoursSeconds
	}
	if c.Workers <= 0 {
		c.Workers = defaults.Workers
	}
	if len(c.Maintenance) == 0 {
		c.Maintenance = defaults.Maintenance
	}
	return c
}

// UsageCooldown returns the erroneous-tool-use cooldown.
func (c Config) UsageCooldown() time.Duration {
	return time.Duration(c.Cooldowns.UsageSeconds) * time.Second
}

// ThresholdCooldown returns the battery/speed/shock cooldown.
func (c Config) ThresholdCooldown() time.Duration {
	return time.Duration(c.Cooldowns.ThresholdSeconds) * time.Second
}

// AfterHoursCooldown returns the after-hours cooldown.
func (c Config) AfterHoursCooldown() time.Duration {
	return time.Duration(c.Cooldowns.AfterHoursSeconds) * time.Second
}

// DefaultWorkWindow returns the configured default work window, normalized.
func (c Config) DefaultWorkWindow() fleet.WorkHours {
	return fleet.WorkHours{
		StartHour:      c.WorkHours.StartHour,
		EndHour:        c.WorkHours.EndHour,
		WeekendAllowed: c.WorkHours.WeekendAllowed,
	}.Normalize()
}

// MaintenanceSchedule returns the configured maintenance intervals.
func (c Config) MaintenanceSchedule() []alarms.MaintenanceInterval {
	schedule := make([]alarms.MaintenanceInterval, 0, len(c.Maintenance))
	for _, step := range c.Maintenance {
		if step.Hours <= 0 {
			continue
		}
		severity := step.Severity
		switch severity {
		case alarms.SeverityCritical, alarms.SeverityWarning, alarms.SeverityInfo:
		default:
			severity = alarms.SeverityWarning
		}
		schedule = append(schedule, alarms.MaintenanceInterval{
			Hours:     step.Hours,
			Tolerance: step.Tolerance,
			Severity:  severity,
		})
	}
	if len(schedule) == 0 {
		return alarms.DefaultMaintenanceSchedule()
	}
	return schedule
}
