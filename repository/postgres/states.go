package postgres

import (
	"context"
	"fmt"

	"reacher-incidents/models"
)

const stateColumns = `id, project_id, owner_kind, name, color, sort_order,
	is_created_state, is_acknowledged_state, is_resolved_state, is_scheduled_state,
	is_ongoing_state, is_ended_state, is_operational_state`

var flagColumns = map[models.StateFlag]string{
	models.FlagCreated:      "is_created_state",
	models.FlagAcknowledged: "is_acknowledged_state",
	models.FlagResolved:     "is_resolved_state",
	models.FlagScheduled:    "is_scheduled_state",
	models.FlagOngoing:      "is_ongoing_state",
	models.FlagEnded:        "is_ended_state",
	models.FlagOperational:  "is_operational_state",
}

func scanState(row rowScanner) (*models.State, error) {
	var (
		st   models.State
		kind string
	)
	err := row.Scan(&st.ID, &st.ProjectID, &kind, &st.Name, &st.Color, &st.Order,
		&st.IsCreatedState, &st.IsAcknowledgedState, &st.IsResolvedState, &st.IsScheduledState,
		&st.IsOngoingState, &st.IsEndedState, &st.IsOperationalState)
	if err != nil {
		return nil, err
	}
	st.OwnerKind = models.OwnerKind(kind)
	return &st, nil
}

func (s *Store) GetState(ctx context.Context, id string) (*models.State, error) {
	st, err := scanState(s.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM states WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "state", id)
	}
	return st, nil
}

func (s *Store) FindStateByFlag(ctx context.Context, projectID string, kind models.OwnerKind, flag models.StateFlag) (*models.State, error) {
	col, ok := flagColumns[flag]
	if !ok {
		return nil, models.BadData("unknown state flag %q", flag)
	}
	q := `SELECT ` + stateColumns + ` FROM states
		WHERE project_id = $1 AND owner_kind = $2 AND ` + col + ` = TRUE
		ORDER BY sort_order ASC LIMIT 1`
	st, err := scanState(s.db.QueryRowContext(ctx, q, projectID, string(kind)))
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("%s %s state for project", kind, flag), projectID)
	}
	return st, nil
}

func (s *Store) GetSeverity(ctx context.Context, id string) (*models.Severity, error) {
	var sev models.Severity
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, name, sort_order FROM severities WHERE id = $1`, id).
		Scan(&sev.ID, &sev.ProjectID, &sev.Name, &sev.Order)
	if err != nil {
		return nil, notFound(err, "severity", id)
	}
	return &sev, nil
}

func (s *Store) FindLowestSeverity(ctx context.Context, projectID string) (*models.Severity, error) {
	var sev models.Severity
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, name, sort_order FROM severities
		WHERE project_id = $1 ORDER BY sort_order ASC LIMIT 1`, projectID).
		Scan(&sev.ID, &sev.ProjectID, &sev.Name, &sev.Order)
	if err != nil {
		return nil, notFound(err, "severity for project", projectID)
	}
	return &sev, nil
}
