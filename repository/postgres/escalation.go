package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reacher-incidents/models"
)

func (s *Store) GetPolicy(ctx context.Context, id string) (*models.OnCallPolicy, error) {
	var p models.OnCallPolicy
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, name, repeat_if_no_ack FROM on_call_policies WHERE id = $1`, id).
		Scan(&p.ID, &p.ProjectID, &p.Name, &p.RepeatIfNoOneAcknowledges)
	if err != nil {
		return nil, notFound(err, "on-call policy", id)
	}
	return &p, nil
}

func (s *Store) FindRule(ctx context.Context, projectID, policyID string, order int) (*models.EscalationRule, error) {
	var r models.EscalationRule
	err := s.db.QueryRowContext(ctx, `SELECT id, project_id, policy_id, name, sort_order, escalate_after_minutes
		FROM escalation_rules WHERE project_id = $1 AND policy_id = $2 AND sort_order = $3`, projectID, policyID, order).
		Scan(&r.ID, &r.ProjectID, &r.PolicyID, &r.Name, &r.Order, &r.EscalateAfterMinutes)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("escalation rule %d of policy", order), policyID)
	}
	return &r, nil
}

const executionLogColumns = `id, project_id, policy_id, triggered_by_kind, triggered_by_id, notification_event_type,
	last_executed_rule_order, last_executed_rule_id, last_executed_at, inter_rule_delay_minutes,
	repeat_count, max_repeats, status, status_message, created_at, updated_at`

func scanExecutionLog(row rowScanner) (*models.ExecutionLog, error) {
	var (
		l         models.ExecutionLog
		kind      string
		eventType string
		status    string
		lastAt    sql.NullTime
	)
	err := row.Scan(&l.ID, &l.ProjectID, &l.PolicyID, &kind, &l.TriggeredBy.ID, &eventType,
		&l.LastExecutedRuleOrder, &l.LastExecutedRuleID, &lastAt, &l.InterRuleDelayMinutes,
		&l.RepeatCount, &l.MaxRepeats, &status, &l.StatusMessage, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.TriggeredBy.Kind = models.OwnerKind(kind)
	l.NotificationEventType = models.NotificationEventType(eventType)
	l.Status = models.ExecutionStatus(status)
	l.LastExecutedAt = timePtr(lastAt)
	return &l, nil
}

func (s *Store) CreateExecutionLog(ctx context.Context, l *models.ExecutionLog) error {
	l.ID = newID(l.ID)
	now := time.Now().UTC()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `INSERT INTO execution_logs (`+executionLogColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		l.ID, l.ProjectID, l.PolicyID, string(l.TriggeredBy.Kind), l.TriggeredBy.ID, string(l.NotificationEventType),
		l.LastExecutedRuleOrder, l.LastExecutedRuleID, nullTime(l.LastExecutedAt), l.InterRuleDelayMinutes,
		l.RepeatCount, l.MaxRepeats, string(l.Status), l.StatusMessage, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert execution log: %w", err)
	}
	return nil
}

func (s *Store) GetExecutionLog(ctx context.Context, id string) (*models.ExecutionLog, error) {
	l, err := scanExecutionLog(s.db.QueryRowContext(ctx, `SELECT `+executionLogColumns+` FROM execution_logs WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "execution log", id)
	}
	return l, nil
}

func (s *Store) ListExecutionLogs(ctx context.Context, projectID string, status models.ExecutionStatus) ([]*models.ExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+executionLogColumns+` FROM execution_logs
		WHERE ($1 = '' OR project_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at`, projectID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.ExecutionLog
	for rows.Next() {
		l, err := scanExecutionLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListExecutingLogs(ctx context.Context) ([]*models.ExecutionLog, error) {
	return s.ListExecutionLogs(ctx, "", models.ExecutionExecuting)
}

// AdvanceExecutionLog só atualiza se a linha ainda estiver no estado lido
// pelo chamador; um tick concorrente que chegou antes faz este virar no-op.
func (s *Store) AdvanceExecutionLog(ctx context.Context, id string, adv models.Advance) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE execution_logs SET
			last_executed_rule_order = $1, repeat_count = $2, last_executed_rule_id = $3,
			inter_rule_delay_minutes = $4, last_executed_at = $5, updated_at = NOW()
		WHERE id = $6 AND status = $7 AND last_executed_rule_order = $8 AND repeat_count = $9`,
		adv.Order, adv.RepeatCount, adv.RuleID, adv.InterRuleDelayMinutes, adv.ExecutedAt,
		id, string(models.ExecutionExecuting), adv.ExpectedOrder, adv.ExpectedRepeat)
	if err != nil {
		return false, fmt.Errorf("advance execution log %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Store) FinishExecutionLog(ctx context.Context, id string, status models.ExecutionStatus, message string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE execution_logs SET status = $1, status_message = $2, updated_at = NOW()
		WHERE id = $3 AND status = $4`, string(status), message, id, string(models.ExecutionExecuting))
	if err != nil {
		return false, fmt.Errorf("finish execution log %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Store) DeleteFinishedLogsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM execution_logs WHERE status <> $1 AND updated_at < $2`,
		string(models.ExecutionExecuting), before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
