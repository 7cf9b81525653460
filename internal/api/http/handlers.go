package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
	alarmsrepo "fleetwatch-cloud/internal/alarms/infrastructure/postgres"
	"fleetwatch-cloud/internal/auth"
	fleet "fleetwatch-cloud/internal/fleet/domain"
	"fleetwatch-cloud/internal/observability/metrics"
	"fleetwatch-cloud/internal/reports"
	utilapp "fleetwatch-cloud/internal/utilization/application"
)

const timeLayout = time.RFC3339

type positionView struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

type deviceView struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Model           string        `json:"model,omitempty"`
	LastPosition    *positionView `json:"last_position,omitempty"`
	LastSeenAt      string        `json:"last_seen_at,omitempty"`
	CumulativeHours float64       `json:"cumulative_hours"`
	HoursSinceMaint float64       `json:"hours_since_maintenance"`
	BatteryWarnPct  float64       `json:"battery_warn_pct"`
	BatteryCritPct  float64       `json:"battery_crit_pct"`
	MaxSpeedKmh     float64       `json:"max_speed_kmh"`
	ShockWarnG      float64       `json:"shock_warn_g"`
	ShockCritG      float64       `json:"shock_crit_g"`
}

// DevicesHandler serves the device list for the dashboard map view.
type DevicesHandler struct {
	devices fleet.DeviceRepository
}

// NewDevicesHandler constructs a DevicesHandler.
func NewDevicesHandler(devices fleet.DeviceRepository) *DevicesHandler {
	return &DevicesHandler{devices: devices}
}

// ServeHTTP handles GET /api/v1/devices.
func (h *DevicesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.devices == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	devices, err := h.devices.ListByTenant(r.Context(), tenantID)
	if err != nil {
		http.Error(w, "query devices error", http.StatusInternalServerError)
		return
	}
	views := make([]deviceView, 0, len(devices))
	for _, device := range devices {
		limits := device.EffectiveLimits()
		view := deviceView{
			ID:              device.ID,
			Name:            device.Name,
			Model:           device.Model,
			CumulativeHours: device.CumulativeHours,
			HoursSinceMaint: device.HoursSinceMaintenance(),
			BatteryWarnPct:  limits.BatteryWarnPct,
			BatteryCritPct:  limits.BatteryCritPct,
			MaxSpeedKmh:     limits.MaxSpeedKmh,
			ShockWarnG:      limits.ShockWarnG,
			ShockCritG:      limits.ShockCritG,
		}
		if device.LastPosition != nil {
			view.LastPosition = &positionView{
				Latitude:  device.LastPosition.Latitude,
				Longitude: device.LastPosition.Longitude,
			}
		}
		if !device.LastSeenAt.IsZero() {
			view.LastSeenAt = device.LastSeenAt.UTC().Format(timeLayout)
		}
		views = append(views, view)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

// UtilizationHandler serves classified daily usage summaries.
type UtilizationHandler struct {
	rollup  *utilapp.RollupService
	devices fleet.DeviceRepository
}

// NewUtilizationHandler constructs a UtilizationHandler.
func NewUtilizationHandler(rollup *utilapp.RollupService, devices fleet.DeviceRepository) *UtilizationHandler {
	return &UtilizationHandler{rollup: rollup, devices: devices}
}

// ServeHTTP handles GET /api/v1/utilization.
func (h *UtilizationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.rollup == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	day, err := parseDayQuery(r, "day")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	summaries, err := h.summarize(r.Context(), tenantID, deviceID, day)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summaries)
}

func (h *UtilizationHandler) summarize(ctx context.Context, tenantID, deviceID string, day time.Time) ([]utilapp.DailySummary, error) {
	if deviceID != "" {
		summary, err := h.rollup.Summarize(ctx, deviceID, day)
		if err != nil {
			return nil, err
		}
		return []utilapp.DailySummary{summary}, nil
	}
	ids, err := h.tenantDeviceIDs(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return h.rollup.SummarizeDevices(ctx, ids, day)
}

func (h *UtilizationHandler) tenantDeviceIDs(ctx context.Context, tenantID string) ([]string, error) {
	if h.devices == nil {
		return nil, errors.New("device source unavailable")
	}
	devices, err := h.devices.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(devices))
	for _, device := range devices {
		ids = append(ids, device.ID)
	}
	return ids, nil
}

// AlarmSource reads alarm rows for report exports.
type AlarmSource interface {
	List(ctx context.Context, tenantID string, filter alarmsrepo.ListFilter) ([]alarms.Alarm, error)
}

// ReportsHandler serves downloadable report exports.
type ReportsHandler struct {
	alarms  AlarmSource
	rollup  *utilapp.RollupService
	devices fleet.DeviceRepository
}

// NewReportsHandler constructs a ReportsHandler.
func NewReportsHandler(alarmSource AlarmSource, rollup *utilapp.RollupService, devices fleet.DeviceRepository) *ReportsHandler {
	return &ReportsHandler{alarms: alarmSource, rollup: rollup, devices: devices}
}

// ServeHTTP handles GET /api/v1/reports/{name}.
func (h *ReportsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/reports/")
	switch name {
	case "alarms.pdf":
		h.serveAlarmReport(w, r, tenantID, "pdf")
	case "alarms.xlsx":
		h.serveAlarmReport(w, r, tenantID, "xlsx")
	case "utilization.xlsx":
		h.serveUtilizationReport(w, r, tenantID, "xlsx")
	case "utilization.csv":
		h.serveUtilizationReport(w, r, tenantID, "csv")
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *ReportsHandler) serveAlarmReport(w http.ResponseWriter, r *http.Request, tenantID, format string) {
	if h.alarms == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	filter := alarmsrepo.ListFilter{
		DeviceID: r.URL.Query().Get("device_id"),
		Status:   r.URL.Query().Get("status"),
	}
	var err error
	filter.From, err = parseOptionalTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.To, err = parseOptionalTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list, err := h.alarms.List(r.Context(), tenantID, filter)
	if err != nil {
		metrics.IncReportExport(format, "error")
		http.Error(w, "query alarms error", http.StatusInternalServerError)
		return
	}
	period := reports.AlarmReportPeriod{From: filter.From, To: filter.To}

	var payload []byte
	switch format {
	case "pdf":
		payload, err = reports.BuildAlarmPDF(tenantID, period, list)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="alarms.pdf"`)
	default:
		payload, err = reports.BuildAlarmXLSX(tenantID, period, list)
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="alarms.xlsx"`)
	}
	if err != nil {
		metrics.IncReportExport(format, "error")
		http.Error(w, "render report error", http.StatusInternalServerError)
		return
	}
	metrics.IncReportExport(format, "success")
	_, _ = w.Write(payload)
}

func (h *ReportsHandler) serveUtilizationReport(w http.ResponseWriter, r *http.Request, tenantID, format string) {
	if h.rollup == nil || h.devices == nil {
		http.Error(w, "server not ready", http.StatusServiceUnavailable)
		return
	}
	day, err := parseDayQuery(r, "day")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	devices, err := h.devices.ListByTenant(r.Context(), tenantID)
	if err != nil {
		metrics.IncReportExport(format, "error")
		http.Error(w, "query devices error", http.StatusInternalServerError)
		return
	}
	ids := make([]string, 0, len(devices))
	for _, device := range devices {
		ids = append(ids, device.ID)
	}
	summaries, err := h.rollup.SummarizeDevices(r.Context(), ids, day)
	if err != nil {
		metrics.IncReportExport(format, "error")
		http.Error(w, "summarize error", http.StatusInternalServerError)
		return
	}

	switch format {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="utilization.csv"`)
		metrics.IncReportExport(format, "success")
		_, _ = w.Write(reports.BuildUtilizationCSV(summaries))
	default:
		payload, err := reports.BuildUtilizationXLSX(tenantID, summaries)
		if err != nil {
			metrics.IncReportExport(format, "error")
			http.Error(w, "render report error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="utilization.xlsx"`)
		metrics.IncReportExport(format, "success")
		_, _ = w.Write(payload)
	}
}

func parseDayQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Now().UTC(), nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be YYYY-MM-DD")
	}
	return parsed.UTC(), nil
}

func parseOptionalTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
