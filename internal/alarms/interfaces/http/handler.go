package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	alarmapp "fleetwatch-cloud/internal/alarms/application"
	alarms "fleetwatch-cloud/internal/alarms/domain"
	alarmsrepo "fleetwatch-cloud/internal/alarms/infrastructure/postgres"
	"fleetwatch-cloud/internal/audit"
	"fleetwatch-cloud/internal/auth"
)

const timeLayout = time.RFC3339

// AlarmLister reads alarm rows for the list endpoint.
type AlarmLister interface {
	List(ctx context.Context, tenantID string, filter alarmsrepo.ListFilter) ([]alarms.Alarm, error)
	GetByID(ctx context.Context, id string) (*alarms.Alarm, error)
}

// Handler provides alarm HTTP endpoints.
type Handler struct {
	lister        AlarmLister
	lifecycle     *alarmapp.Lifecycle
	deviceChecker auth.DeviceTenantChecker
	auditor       audit.Logger
	logger        *log.Logger
}

// NewHandler constructs a handler.
func NewHandler(lister AlarmLister, lifecycle *alarmapp.Lifecycle, deviceChecker auth.DeviceTenantChecker, auditor audit.Logger, logger *log.Logger) (*Handler, error) {
	if lister == nil {
		return nil, errors.New("alarms handler: nil lister")
	}
	if lifecycle == nil {
		return nil, errors.New("alarms handler: nil lifecycle")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		lister:        lister,
		lifecycle:     lifecycle,
		deviceChecker: deviceChecker,
		auditor:       auditor,
		logger:        logger,
	}, nil
}

// ServeHTTP handles /api/v1/alarms and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/alarms":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
		return
	case strings.HasPrefix(r.URL.Path, "/api/v1/alarms/"):
		h.handleAction(w, r)
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantIDFromContext(r.Context())
	if tenantID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	filter := alarmsrepo.ListFilter{
		DeviceID: r.URL.Query().Get("device_id"),
		Status:   r.URL.Query().Get("status"),
		Severity: r.URL.Query().Get("severity"),
	}
	var err error
	filter.From, err = parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filter.To, err = parseTimeQuery(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		http.Error(w, "to must be after from", http.StatusBadRequest)
		return
	}
	if filter.DeviceID != "" && h.deviceChecker != nil {
		if err := h.deviceChecker.EnsureDeviceTenant(r.Context(), tenantID, filter.DeviceID); err != nil {
			respondTenantError(w, err)
			return
		}
	}

	list, err := h.lister.List(r.Context(), tenantID, filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []alarms.Alarm{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/alarms/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "ack" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	id := parts[0]
	tenantID := auth.TenantIDFromContext(r.Context())
	actor := auth.SubjectFromContext(r.Context())

	existing, err := h.lister.GetByID(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if tenantID != "" && existing.TenantID != tenantID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	acked, err := h.lifecycle.Acknowledge(r.Context(), id, actor)
	if err != nil {
		if errors.Is(err, alarms.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !acked {
		http.Error(w, "alarm is not active", http.StatusConflict)
		return
	}
	h.logAudit(r, tenantID, actor, existing)

	updated, err := h.lister.GetByID(r.Context(), id)
	if err != nil || updated == nil {
		updated = existing
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(updated)
}

func (h *Handler) logAudit(r *http.Request, tenantID, actor string, alarm *alarms.Alarm) {
	if h.auditor == nil || alarm == nil {
		return
	}
	entry := audit.Entry{
		TenantID:     tenantID,
		Actor:        actor,
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "alarm.acknowledge",
		ResourceType: "alarm",
		ResourceID:   alarm.ID,
		DeviceID:     alarm.DeviceID,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.auditor.Log(r.Context(), entry); err != nil {
		h.logger.Printf("audit alarm ack %s: %v", alarm.ID, err)
	}
}

func respondTenantError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, auth.ErrTenantMismatch) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if errors.Is(err, auth.ErrNotFound) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	http.Error(w, "tenant check failed", http.StatusInternalServerError)
}

func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
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
