package reports

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	utilapp "fleetwatch-cloud/internal/utilization/application"
	utilization "fleetwatch-cloud/internal/utilization/domain"
)

// BuildUtilizationXLSX renders per-device daily utilization summaries.
func BuildUtilizationXLSX(tenantID string, summaries []utilapp.DailySummary) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "utilization"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Fleet Utilization Report")
	_ = f.SetCellValue(sheet, "A2", "Tenant")
	_ = f.SetCellValue(sheet, "B2", tenantID)

	headers := []string{
		"Device", "Day", "Events", "Working (s)", "Idle (s)", "Transport (s)", "Bursts",
		"Ideal (s)", "Risky (s)", "Tool Damage (s)", "Operator Error (s)",
	}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		_ = f.SetCellValue(sheet, cell, header)
	}
	for i, summary := range summaries {
		row := i + 5
		values := []any{
			summary.DeviceID,
			summary.Day.Format("2006-01-02"),
			summary.EventCount,
			summary.WorkingSeconds,
			summary.IdleSeconds,
			summary.TransportSeconds,
			summary.BurstCount,
			summary.SecondsByCategory[utilization.CategoryIdeal],
			summary.SecondsByCategory[utilization.CategoryRisky],
			summary.SecondsByCategory[utilization.CategoryToolDamage],
			summary.SecondsByCategory[utilization.CategoryOperatorError],
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UtilizationCSVHeader is the header row of the CSV export.
const UtilizationCSVHeader = "device_id,day,events,working_seconds,idle_seconds,transport_seconds,bursts"

// BuildUtilizationCSV renders the same summaries as CSV for spreadsheet
// imports that cannot read XLSX.
func BuildUtilizationCSV(summaries []utilapp.DailySummary) []byte {
	var buf bytes.Buffer
	buf.WriteString(UtilizationCSVHeader + "\n")
	for _, summary := range summaries {
		fmt.Fprintf(&buf, "%s,%s,%d,%d,%d,%d,%d\n",
			summary.DeviceID,
			summary.Day.Format("2006-01-02"),
			summary.EventCount,
			summary.WorkingSeconds,
			summary.IdleSeconds,
			summary.TransportSeconds,
			summary.BurstCount,
		)
	}
	return buf.Bytes()
}
