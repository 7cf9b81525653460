package reports

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alarms "fleetwatch-cloud/internal/alarms/domain"
)

// AlarmReportPeriod labels the window an alarm report covers.
type AlarmReportPeriod struct {
	From time.Time
	To   time.Time
}

func (p AlarmReportPeriod) label() string {
	if p.From.IsZero() && p.To.IsZero() {
		return "all time"
	}
	return fmt.Sprintf("%s - %s", p.From.UTC().Format("2006-01-02"), p.To.UTC().Format("2006-01-02"))
}

// BuildAlarmPDF renders an alarm history report as PDF.
func BuildAlarmPDF(tenantID string, period AlarmReportPeriod, list []alarms.Alarm) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Fleet Alarm Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Tenant: %s", tenantID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s", period.label()))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alarms: %d", len(list)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(40, 6, "Device", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Rule", "1", 0, "C", false, 0, "")
	pdf.CellFormat(22, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(20, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Created", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Resolved", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Detail", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alarm := range list {
		resolved := ""
		if !alarm.ResolvedAt.IsZero() {
			resolved = alarm.ResolvedAt.UTC().Format(time.RFC3339)
		}
		pdf.CellFormat(40, 6, alarm.DeviceID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(45, 6, alarm.RuleID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(22, 6, alarm.Severity, "1", 0, "C", false, 0, "")
		pdf.CellFormat(20, 6, alarm.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, alarm.CreatedAt.UTC().Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, resolved, "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, alarm.Description, "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlarmXLSX renders an alarm history report as XLSX.
func BuildAlarmXLSX(tenantID string, period AlarmReportPeriod, list []alarms.Alarm) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	alarmsSheet := "alarms"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(alarmsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Fleet Alarm Report")
	_ = f.SetCellValue(summarySheet, "A3", "Tenant")
	_ = f.SetCellValue(summarySheet, "B3", tenantID)
	_ = f.SetCellValue(summarySheet, "A4", "Period")
	_ = f.SetCellValue(summarySheet, "B4", period.label())
	_ = f.SetCellValue(summarySheet, "A5", "Alarms")
	_ = f.SetCellValue(summarySheet, "B5", len(list))

	bySeverity := map[string]int{}
	for _, alarm := range list {
		bySeverity[alarm.Severity]++
	}
	_ = f.SetCellValue(summarySheet, "A7", "Critical")
	_ = f.SetCellValue(summarySheet, "B7", bySeverity[alarms.SeverityCritical])
	_ = f.SetCellValue(summarySheet, "A8", "Warning")
	_ = f.SetCellValue(summarySheet, "B8", bySeverity[alarms.SeverityWarning])
	_ = f.SetCellValue(summarySheet, "A9", "Info")
	_ = f.SetCellValue(summarySheet, "B9", bySeverity[alarms.SeverityInfo])

	headers := []string{"Device", "Rule", "Family", "Severity", "Status", "Value", "Created", "Resolved", "Resolved By", "Detail"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(alarmsSheet, cell, header)
	}
	for i, alarm := range list {
		row := i + 2
		resolved := ""
		if !alarm.ResolvedAt.IsZero() {
			resolved = alarm.ResolvedAt.UTC().Format(time.RFC3339)
		}
		values := []any{
			alarm.DeviceID,
			alarm.RuleID,
			alarm.Family,
			alarm.Severity,
			alarm.Status,
			alarm.Value,
			alarm.CreatedAt.UTC().Format(time.RFC3339),
			resolved,
			alarm.ResolvedBy,
			alarm.Description,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(alarmsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
