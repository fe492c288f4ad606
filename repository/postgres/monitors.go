package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"reacher-incidents/models"
)

const monitorColumns = `id, project_id, name, monitor_type, monitor_steps, current_status_id,
	disable_active_monitoring, disabled_by_manual_incident, disabled_by_maintenance,
	url, check_interval, expected_status, timeout_ms, incoming_secret_key,
	incoming_request_received_at, created_at`

func scanMonitor(row rowScanner) (*models.Monitor, error) {
	var (
		m          models.Monitor
		monType    string
		steps      []byte
		expected   sql.NullInt64
		timeout    sql.NullInt64
		receivedAt sql.NullTime
	)
	err := row.Scan(&m.ID, &m.ProjectID, &m.Name, &monType, &steps, &m.CurrentStatusID,
		&m.DisableActiveMonitoring, &m.DisableActiveMonitoringBecauseOfManualIncident,
		&m.DisableActiveMonitoringBecauseOfScheduledMaintenance,
		&m.URL, &m.Interval, &expected, &timeout, &m.IncomingSecretKey, &receivedAt, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	m.Type = models.MonitorType(monType)
	m.ExpectedStatus = intPtr(expected)
	m.TimeoutMs = intPtr(timeout)
	m.IncomingRequestReceivedAt = timePtr(receivedAt)
	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &m.Steps); err != nil {
			return nil, fmt.Errorf("decode steps of monitor %s: %w", m.ID, err)
		}
	}
	return &m, nil
}

// SaveMonitor faz upsert do monitor; usado pela sincronização com o painel.
func (s *Store) SaveMonitor(ctx context.Context, m *models.Monitor) error {
	m.ID = newID(m.ID)
	steps, err := json.Marshal(m.Steps)
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO monitors (` + monitorColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, monitor_type = EXCLUDED.monitor_type,
			monitor_steps = EXCLUDED.monitor_steps,
			disable_active_monitoring = EXCLUDED.disable_active_monitoring,
			disabled_by_manual_incident = EXCLUDED.disabled_by_manual_incident,
			disabled_by_maintenance = EXCLUDED.disabled_by_maintenance,
			url = EXCLUDED.url, check_interval = EXCLUDED.check_interval,
			expected_status = EXCLUDED.expected_status, timeout_ms = EXCLUDED.timeout_ms,
			incoming_secret_key = EXCLUDED.incoming_secret_key
	`
	_, err = s.db.ExecContext(ctx, q, m.ID, m.ProjectID, m.Name, string(m.Type), steps, m.CurrentStatusID,
		m.DisableActiveMonitoring, m.DisableActiveMonitoringBecauseOfManualIncident,
		m.DisableActiveMonitoringBecauseOfScheduledMaintenance,
		m.URL, m.Interval, nullInt(m.ExpectedStatus), nullInt(m.TimeoutMs), m.IncomingSecretKey,
		nullTime(m.IncomingRequestReceivedAt), m.CreatedAt)
	return err
}

func (s *Store) GetMonitor(ctx context.Context, id string) (*models.Monitor, error) {
	m, err := scanMonitor(s.db.QueryRowContext(ctx, `SELECT `+monitorColumns+` FROM monitors WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "monitor", id)
	}
	return m, nil
}

func (s *Store) FindMonitorBySecretKey(ctx context.Context, secretKey string) (*models.Monitor, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("monitor with empty secret key: %w", models.ErrNotFound)
	}
	m, err := scanMonitor(s.db.QueryRowContext(ctx,
		`SELECT `+monitorColumns+` FROM monitors WHERE incoming_secret_key = $1 LIMIT 1`, secretKey))
	if err != nil {
		return nil, notFound(err, "monitor with secret key", "")
	}
	return m, nil
}

func (s *Store) ListMonitorsByType(ctx context.Context, types ...models.MonitorType) ([]*models.Monitor, error) {
	q := `SELECT ` + monitorColumns + ` FROM monitors`
	var args []any
	if len(types) > 0 {
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		q += ` WHERE monitor_type = ANY($1)`
		args = append(args, pq.Array(names))
	}
	q += ` ORDER BY id`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Monitor
	for rows.Next() {
		m, err := scanMonitor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) MarkIncomingRequest(ctx context.Context, monitorID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE monitors SET incoming_request_received_at = $1 WHERE id = $2`, at, monitorID)
	return expectOne(res, err, "monitor", monitorID)
}
