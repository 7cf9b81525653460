package reports

import (
	"strings"
	"testing"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	utilapp "fleetwatch-cloud/internal/utilization/application"
)

func TestBuildUtilizationCSV(t *testing.T) {
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	out := BuildUtilizationCSV([]utilapp.DailySummary{
		{DeviceID: "dev-1", Day: day, EventCount: 3, WorkingSeconds: 120, IdleSeconds: 40, TransportSeconds: 200, BurstCount: 2},
	})
	text := string(out)
	if !strings.HasPrefix(text, UtilizationCSVHeader+"\n") {
		t.Fatalf("missing header:\n%s", text)
	}
	if !strings.Contains(text, "dev-1,2026-05-04,3,120,40,200,2") {
		t.Fatalf("missing row:\n%s", text)
	}
}

func TestBuildAlarmExportsProduceBytes(t *testing.T) {
	period := AlarmReportPeriod{
		From: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
	}
	list := []alarms.Alarm{
		{
			ID:          "a-1",
			DeviceID:    "dev-1",
			RuleID:      alarms.RuleOverspeed,
			Family:      alarms.FamilySpeed,
			Severity:    alarms.SeverityWarning,
			Status:      alarms.StatusActive,
			Description: "speed 42.0 km/h exceeds limit 30.0 km/h",
			Value:       42,
			CreatedAt:   time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC),
		},
	}

	pdf, err := BuildAlarmPDF("tenant-1", period, list)
	if err != nil {
		t.Fatalf("BuildAlarmPDF: %v", err)
	}
	if len(pdf) == 0 {
		t.Fatal("empty pdf output")
	}

	xlsx, err := BuildAlarmXLSX("tenant-1", period, list)
	if err != nil {
		t.Fatalf("BuildAlarmXLSX: %v", err)
	}
	if len(xlsx) == 0 {
		t.Fatal("empty xlsx output")
	}
}
