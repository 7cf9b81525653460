package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	alarms "fleetwatch-cloud/internal/alarms/domain"
)

// AlarmRepository is a Postgres repository for alarms.
type AlarmRepository struct {
	db *sql.DB
}

// NewAlarmRepository constructs a repository.
func NewAlarmRepository(db *sql.DB) *AlarmRepository {
	return &AlarmRepository{db: db}
}

// Create inserts a new alarm row.
func (r *AlarmRepository) Create(ctx context.Context, alarm *alarms.Alarm) error {
	if r == nil || r.db == nil {
		return errors.New("alarm repo: nil db")
	}
	if alarm == nil {
		return errors.New("alarm repo: nil alarm")
	}
	if alarm.ID == "" || alarm.TenantID == "" || alarm.DeviceID == "" || alarm.RuleID == "" {
		return errors.New("alarm repo: missing fields")
	}
	if alarm.CreatedAt.IsZero() {
		alarm.CreatedAt = time.Now().UTC()
	}
	if alarm.UpdatedAt.IsZero() {
		alarm.UpdatedAt = alarm.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
INSERT INTO alarms (
	id, tenant_id, device_id, rule_id, family, severity, description,
	value, value_text, status, created_at, updated_at,
	resolved_at, resolved_by, resolution_note
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12,
	$13, $14, $15
)`,
		alarm.ID,
		alarm.TenantID,
		alarm.DeviceID,
		alarm.RuleID,
		alarm.Family,
		alarm.Severity,
		alarm.Description,
		alarm.Value,
		nullableString(alarm.ValueText),
		alarm.Status,
		alarm.CreatedAt,
		alarm.UpdatedAt,
		nullableTime(alarm.ResolvedAt),
		nullableString(alarm.ResolvedBy),
		nullableString(alarm.ResolutionNote),
	)
	return err
}

// GetByID fetches an alarm by id.
func (r *AlarmRepository) GetByID(ctx context.Context, id string) (*alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, selectColumns+`
FROM alarms
WHERE id = $1`, id)
	return scanAlarm(row)
}

// FindActiveByDeviceRule returns the Active alarm for a (device, rule) key.
// At most one may exist; the lifecycle manager relies on this lookup before
// every insert.
func (r *AlarmRepository) FindActiveByDeviceRule(ctx context.Context, tenantID, deviceID, ruleID string) (*alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	if tenantID == "" || deviceID == "" || ruleID == "" {
		return nil, errors.New("alarm repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, selectColumns+`
FROM alarms
WHERE tenant_id = $1 AND device_id = $2 AND rule_id = $3 AND status = 'active'
ORDER BY created_at DESC
LIMIT 1`, tenantID, deviceID, ruleID)
	return scanAlarm(row)
}

// FindLatestByDeviceRule returns the most recent alarm for the key
// regardless of status. Used for cooldown suppression.
func (r *AlarmRepository) FindLatestByDeviceRule(ctx context.Context, tenantID, deviceID, ruleID string) (*alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	if tenantID == "" || deviceID == "" || ruleID == "" {
		return nil, errors.New("alarm repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, selectColumns+`
FROM alarms
WHERE tenant_id = $1 AND device_id = $2 AND rule_id = $3
ORDER BY created_at DESC
LIMIT 1`, tenantID, deviceID, ruleID)
	return scanAlarm(row)
}

// MarkResolved closes an alarm.
func (r *AlarmRepository) MarkResolved(ctx context.Context, id, resolvedBy, note string, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alarm repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE alarms
SET status = $1, resolved_at = $2, resolved_by = $3, resolution_note = $4, updated_at = $5
WHERE id = $6`, alarms.StatusResolved, at, resolvedBy, note, at, id)
	return err
}

// ListFilter narrows alarm list queries.
type ListFilter struct {
	DeviceID string
	Status   string
	Severity string
	From     time.Time
	To       time.Time
}

// List returns alarms for a tenant, newest first.
func (r *AlarmRepository) List(ctx context.Context, tenantID string, filter ListFilter) ([]alarms.Alarm, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alarm repo: nil db")
	}
	if tenantID == "" {
		return nil, errors.New("alarm repo: empty tenant id")
	}
	query := selectColumns + `
FROM alarms
WHERE tenant_id = $1`
	args := []any{tenantID}
	if filter.DeviceID != "" {
		args = append(args, filter.DeviceID)
		query += " AND device_id = $" + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += " AND status = $" + strconv.Itoa(len(args))
	}
	if filter.Severity != "" {
		args = append(args, filter.Severity)
		query += " AND severity = $" + strconv.Itoa(len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += " AND created_at >= $" + strconv.Itoa(len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += " AND created_at < $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alarms.Alarm
	for rows.Next() {
		alarm, err := scanAlarm(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alarm)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

const selectColumns = `
SELECT id, tenant_id, device_id, rule_id, family, severity, description,
	value, value_text, status, created_at, updated_at,
	resolved_at, resolved_by, resolution_note`

type alarmScanner interface {
	Scan(dest ...any) error
}

func scanAlarm(row alarmScanner) (*alarms.Alarm, error) {
	var alarm alarms.Alarm
	var valueText sql.NullString
	var resolvedAt sql.NullTime
	var resolvedBy sql.NullString
	var resolutionNote sql.NullString
	if err := row.Scan(
		&alarm.ID,
		&alarm.TenantID,
		&alarm.DeviceID,
		&alarm.RuleID,
		&alarm.Family,
		&alarm.Severity,
		&alarm.Description,
		&alarm.Value,
		&valueText,
		&alarm.Status,
		&alarm.CreatedAt,
		&alarm.UpdatedAt,
		&resolvedAt,
		&resolvedBy,
		&resolutionNote,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alarm.CreatedAt = alarm.CreatedAt.UTC()
	alarm.UpdatedAt = alarm.UpdatedAt.UTC()
	if valueText.Valid {
		alarm.ValueText = valueText.String
	}
	if resolvedAt.Valid {
		alarm.ResolvedAt = resolvedAt.Time.UTC()
	}
	if resolvedBy.Valid {
		alarm.ResolvedBy = resolvedBy.String
	}
	if resolutionNote.Valid {
		alarm.ResolutionNote = resolutionNote.String
	}
	return &alarm, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
