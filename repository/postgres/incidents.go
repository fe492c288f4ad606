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

const incidentColumns = `id, project_id, number, title, description, current_state_id, severity_id,
	monitor_ids, on_call_policy_ids, created_criteria_id, created_incident_template_id,
	is_created_automatically, root_cause, created_state_log, created_by_probe_id,
	telemetry_query, remediation_notes, created_at`

func scanIncident(row rowScanner) (*models.Incident, error) {
	var (
		inc       models.Incident
		monitors  pq.StringArray
		policies  pq.StringArray
		stateLog  []byte
		telemetry []byte
	)
	err := row.Scan(&inc.ID, &inc.ProjectID, &inc.Number, &inc.Title, &inc.Description,
		&inc.CurrentStateID, &inc.SeverityID, &monitors, &policies, &inc.CreatedCriteriaID,
		&inc.CreatedIncidentTemplateID, &inc.IsCreatedAutomatically, &inc.RootCause, &stateLog,
		&inc.CreatedByProbeID, &telemetry, &inc.RemediationNotes, &inc.CreatedAt)
	if err != nil {
		return nil, err
	}
	inc.MonitorIDs = []string(monitors)
	inc.OnCallPolicyIDs = []string(policies)
	if len(stateLog) > 0 {
		inc.CreatedStateLog = stateLog
	}
	if len(telemetry) > 0 {
		var tq models.TelemetryQuery
		if err := json.Unmarshal(telemetry, &tq); err != nil {
			return nil, fmt.Errorf("decode telemetry query of incident %s: %w", inc.ID, err)
		}
		inc.TelemetryQuery = &tq
	}
	return &inc, nil
}

func (s *Store) GetIncident(ctx context.Context, id string) (*models.Incident, error) {
	inc, err := scanIncident(s.db.QueryRowContext(ctx, `SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "incident", id)
	}
	return inc, nil
}

func (s *Store) CreateIncident(ctx context.Context, inc *models.Incident) error {
	var telemetry []byte
	if inc.TelemetryQuery != nil {
		var err error
		if telemetry, err = json.Marshal(inc.TelemetryQuery); err != nil {
			return fmt.Errorf("encode telemetry query: %w", err)
		}
	}
	if inc.MonitorIDs == nil {
		inc.MonitorIDs = []string{}
	}
	if inc.OnCallPolicyIDs == nil {
		inc.OnCallPolicyIDs = []string{}
	}
	inc.ID = newID(inc.ID)
	if inc.CreatedAt.IsZero() {
		inc.CreatedAt = time.Now().UTC()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := nextNumber(ctx, tx, inc.ProjectID, models.OwnerIncident)
		if err != nil {
			return err
		}
		inc.Number = n
		const q = `
			INSERT INTO incidents (` + incidentColumns + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		`
		_, err = tx.ExecContext(ctx, q, inc.ID, inc.ProjectID, inc.Number, inc.Title, inc.Description,
			inc.CurrentStateID, inc.SeverityID, pq.Array(inc.MonitorIDs), pq.Array(inc.OnCallPolicyIDs),
			inc.CreatedCriteriaID, inc.CreatedIncidentTemplateID, inc.IsCreatedAutomatically, inc.RootCause,
			nullJSON(inc.CreatedStateLog), inc.CreatedByProbeID, nullJSON(telemetry), inc.RemediationNotes,
			inc.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert incident: %w", err)
		}
		return nil
	})
}

func (s *Store) FindOpenIncidentsForMonitor(ctx context.Context, projectID, monitorID string) ([]*models.Incident, error) {
	q := `SELECT ` + prefixed("i.", incidentColumns) + ` FROM incidents i
		LEFT JOIN states st ON st.id = i.current_state_id
		WHERE i.project_id = $1 AND $2 = ANY(i.monitor_ids)
		  AND COALESCE(st.is_resolved_state, FALSE) = FALSE
		ORDER BY i.number`
	rows, err := s.db.QueryContext(ctx, q, projectID, monitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}

const alertColumns = `id, project_id, number, title, description, current_state_id, severity_id,
	monitor_id, on_call_policy_ids, is_created_automatically, root_cause, created_state_log,
	created_by_probe_id, created_at`

func (s *Store) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	var (
		a        models.Alert
		policies pq.StringArray
		stateLog []byte
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+alertColumns+` FROM alerts WHERE id = $1`, id).Scan(
		&a.ID, &a.ProjectID, &a.Number, &a.Title, &a.Description, &a.CurrentStateID, &a.SeverityID,
		&a.MonitorID, &policies, &a.IsCreatedAutomatically, &a.RootCause, &stateLog,
		&a.CreatedByProbeID, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, "alert", id)
	}
	a.OnCallPolicyIDs = []string(policies)
	if len(stateLog) > 0 {
		a.CreatedStateLog = stateLog
	}
	return &a, nil
}

func (s *Store) CreateAlert(ctx context.Context, a *models.Alert) error {
	if a.OnCallPolicyIDs == nil {
		a.OnCallPolicyIDs = []string{}
	}
	a.ID = newID(a.ID)
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		n, err := nextNumber(ctx, tx, a.ProjectID, models.OwnerAlert)
		if err != nil {
			return err
		}
		a.Number = n
		const q = `INSERT INTO alerts (` + alertColumns + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
		_, err = tx.ExecContext(ctx, q, a.ID, a.ProjectID, a.Number, a.Title, a.Description,
			a.CurrentStateID, a.SeverityID, a.MonitorID, pq.Array(a.OnCallPolicyIDs),
			a.IsCreatedAutomatically, a.RootCause, nullJSON(a.CreatedStateLog), a.CreatedByProbeID, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert alert: %w", err)
		}
		return nil
	})
}

const maintenanceColumns = `id, project_id, title, description, current_state_id, starts_at, ends_at, monitor_ids, created_at`

func (s *Store) GetMaintenance(ctx context.Context, id string) (*models.ScheduledMaintenance, error) {
	var (
		sm       models.ScheduledMaintenance
		monitors pq.StringArray
	)
	err := s.db.QueryRowContext(ctx, `SELECT `+maintenanceColumns+` FROM scheduled_maintenance WHERE id = $1`, id).Scan(
		&sm.ID, &sm.ProjectID, &sm.Title, &sm.Description, &sm.CurrentStateID, &sm.StartsAt, &sm.EndsAt,
		&monitors, &sm.CreatedAt)
	if err != nil {
		return nil, notFound(err, "scheduled maintenance", id)
	}
	sm.MonitorIDs = []string(monitors)
	return &sm, nil
}

func (s *Store) CreateMaintenance(ctx context.Context, sm *models.ScheduledMaintenance) error {
	if sm.MonitorIDs == nil {
		sm.MonitorIDs = []string{}
	}
	sm.ID = newID(sm.ID)
	if sm.CreatedAt.IsZero() {
		sm.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO scheduled_maintenance (`+maintenanceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		sm.ID, sm.ProjectID, sm.Title, sm.Description, sm.CurrentStateID, sm.StartsAt, sm.EndsAt,
		pq.Array(sm.MonitorIDs), sm.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert scheduled maintenance: %w", err)
	}
	return nil
}
