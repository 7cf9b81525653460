package alarms

import (
	"errors"
	"time"
)

type Operator string

const (
	OperatorGreater Operator = ">"
	OperatorLess    Operator = "<"
	OperatorEqual   Operator = "=="
)

// Valid returns true when the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorLess, OperatorEqual:
		return true
	default:
		return false
	}
}

// Compare applies the operator to a value and threshold.
func (o Operator) Compare(value, threshold float64) bool {
	switch o {
	case OperatorGreater:
		return value > threshold
	case OperatorLess:
		return value < threshold
	case OperatorEqual:
		return value == threshold
	default:
		return false
	}
}

// Rule-family cooldowns: minimum time between two alarms of the same
// (device, rule) key. Critical shock has no cooldown; physical damage
// events are never silently dropped.
const (
	CooldownUsage      = 60 * time.Second
	CooldownThreshold  = 1800 * time.Second
	CooldownAfterHours = 14400 * time.Second
	CooldownShockCrit  = 0 * time.Second
)

// ThresholdRule is a generic over/under-limit check with a per-rule cooldown.
type ThresholdRule struct {
	ID        string
	Family    string
	Operator  Operator
	Threshold float64
	Severity  string
	Cooldown  time.Duration
}

// Validate checks rule invariants.
func (r ThresholdRule) Validate() error {
	if r.ID == "" {
		return errors.New("threshold rule: empty id")
	}
	if r.Family == "" {
		return errors.New("threshold rule: empty family")
	}
	if !r.Operator.Valid() {
		return errors.New("threshold rule: invalid operator")
	}
	switch r.Severity {
	case SeverityCritical, SeverityWarning, SeverityInfo:
	default:
		return errors.New("threshold rule: invalid severity")
	}
	return nil
}

// Matches applies the rule comparison to a value.
func (r ThresholdRule) Matches(value float64) bool {
	return r.Operator.Compare(value, r.Threshold)
}

// MaintenanceInterval is one step of the maintenance schedule. An interval
// is due when hours-since-maintenance reaches the interval minus its
// tolerance, so service can be scheduled slightly ahead.
type MaintenanceInterval struct {
	Hours     float64
	Tolerance float64
	Severity  string
}

// Due reports whether the interval has been exceeded.
func (m MaintenanceInterval) Due(hoursSince float64) bool {
	return hoursSince >= m.Hours-m.Tolerance
}

// DefaultMaintenanceSchedule is the fixed ascending interval sequence.
// Every exceeded interval alarms independently, so a long-overdue device
// carries several open maintenance alarms at once.
func DefaultMaintenanceSchedule() []MaintenanceInterval {
	return []MaintenanceInterval{
		{Hours: 50, Tolerance: 2, Severity: SeverityInfo},
		{Hours: 100, Tolerance: 5, Severity: SeverityInfo},
		{Hours: 200, Tolerance: 5, Severity: SeverityWarning},
		{Hours: 300, Tolerance: 10, Severity: SeverityWarning},
		{Hours: 500, Tolerance: 10, Severity: SeverityWarning},
		{Hours: 1000, Tolerance: 20, Severity: SeverityCritical},
		{Hours: 1500, Tolerance: 20, Severity: SeverityCritical},
	}
}
