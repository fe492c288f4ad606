package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"reacher-incidents/models"
	"reacher-incidents/repository"
)

const timelineColumns = `id, project_id, owner_kind, owner_id, state_id, starts_at, ends_at,
	root_cause, state_change_log, created_by_user_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTimelineEntry(row rowScanner) (*models.TimelineEntry, error) {
	var (
		e      models.TimelineEntry
		kind   string
		endsAt sql.NullTime
		log    []byte
	)
	if err := row.Scan(&e.ID, &e.ProjectID, &kind, &e.Owner.ID, &e.StateID, &e.StartsAt, &endsAt,
		&e.RootCause, &log, &e.CreatedByUserID, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Owner.Kind = models.OwnerKind(kind)
	e.EndsAt = timePtr(endsAt)
	if len(log) > 0 {
		e.StateChangeLog = log
	}
	return &e, nil
}

// optionalEntry converte "sem linhas" em nil.
func optionalEntry(row *sql.Row) (*models.TimelineEntry, error) {
	e, err := scanTimelineEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

func (s *Store) GetTimelineEntry(ctx context.Context, id string) (*models.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries WHERE id = $1`, id)
	e, err := scanTimelineEntry(row)
	if err != nil {
		return nil, notFound(err, "timeline entry", id)
	}
	return e, nil
}

func (s *Store) ListTimeline(ctx context.Context, owner models.OwnerRef) ([]*models.TimelineEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries
		WHERE owner_kind = $1 AND owner_id = $2 ORDER BY starts_at, seq`, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.TimelineEntry
	for rows.Next() {
		e, err := scanTimelineEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) OpenTimelineEntry(ctx context.Context, owner models.OwnerRef) (*models.TimelineEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries
		WHERE owner_kind = $1 AND owner_id = $2 AND ends_at IS NULL
		ORDER BY starts_at DESC, seq DESC LIMIT 1`, string(owner.Kind), owner.ID)
	return optionalEntry(row)
}

// ownerTables mapeia cada tipo de owner para a tabela que guarda o projeto.
var ownerTables = map[models.OwnerKind]string{
	models.OwnerMonitor:              "monitors",
	models.OwnerIncident:             "incidents",
	models.OwnerAlert:                "alerts",
	models.OwnerScheduledMaintenance: "scheduled_maintenance",
}

func (s *Store) OwnerProject(ctx context.Context, owner models.OwnerRef) (string, error) {
	table, ok := ownerTables[owner.Kind]
	if !ok {
		return "", models.BadData("unknown owner kind %q", owner.Kind)
	}
	var project string
	err := s.db.QueryRowContext(ctx, `SELECT project_id FROM `+table+` WHERE id = $1`, owner.ID).Scan(&project)
	if err != nil {
		return "", notFound(err, "owner", owner.String())
	}
	return project, nil
}

// ownerLockKey deriva a chave do pg_advisory_xact_lock a partir do owner.
func ownerLockKey(owner models.OwnerRef) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(owner.String()))
	return int64(h.Sum64())
}

func (s *Store) InOwnerTx(ctx context.Context, owner models.OwnerRef, fn func(tx repository.TimelineTx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ownerLockKey(owner)); err != nil {
			return fmt.Errorf("lock owner %s: %w", owner, err)
		}
		return fn(&timelineTx{q: tx, owner: owner})
	})
}

type timelineTx struct {
	q     dbtx
	owner models.OwnerRef
}

func (t *timelineTx) FindPredecessor(ctx context.Context, at time.Time) (*models.TimelineEntry, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries
		WHERE owner_kind = $1 AND owner_id = $2 AND starts_at <= $3
		ORDER BY starts_at DESC, seq DESC LIMIT 1`, string(t.owner.Kind), t.owner.ID, at)
	return optionalEntry(row)
}

func (t *timelineTx) FindSuccessor(ctx context.Context, at time.Time) (*models.TimelineEntry, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries
		WHERE owner_kind = $1 AND owner_id = $2 AND starts_at > $3
		ORDER BY starts_at ASC, seq ASC LIMIT 1`, string(t.owner.Kind), t.owner.ID, at)
	return optionalEntry(row)
}

// Neighbours compara a posição (starts_at, seq) da linha, então empates em
// starts_at não trocam predecessor por sucessor.
func (t *timelineTx) Neighbours(ctx context.Context, id string) (*models.TimelineEntry, *models.TimelineEntry, error) {
	var (
		startsAt time.Time
		seq      int64
	)
	err := t.q.QueryRowContext(ctx, `SELECT starts_at, seq FROM timeline_entries
		WHERE id = $1 AND owner_kind = $2 AND owner_id = $3`, id, string(t.owner.Kind), t.owner.ID).Scan(&startsAt, &seq)
	if err != nil {
		return nil, nil, notFound(err, "timeline entry", id)
	}
	pred, err := optionalEntry(t.q.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries
		WHERE owner_kind = $1 AND owner_id = $2 AND (starts_at, seq) < ($3, $4)
		ORDER BY starts_at DESC, seq DESC LIMIT 1`, string(t.owner.Kind), t.owner.ID, startsAt, seq))
	if err != nil {
		return nil, nil, err
	}
	succ, err := optionalEntry(t.q.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries
		WHERE owner_kind = $1 AND owner_id = $2 AND (starts_at, seq) > ($3, $4)
		ORDER BY starts_at ASC, seq ASC LIMIT 1`, string(t.owner.Kind), t.owner.ID, startsAt, seq))
	if err != nil {
		return nil, nil, err
	}
	return pred, succ, nil
}

func (t *timelineTx) Latest(ctx context.Context) (*models.TimelineEntry, error) {
	row := t.q.QueryRowContext(ctx, `SELECT `+timelineColumns+` FROM timeline_entries
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY starts_at DESC, seq DESC LIMIT 1`, string(t.owner.Kind), t.owner.ID)
	return optionalEntry(row)
}

func (t *timelineTx) Count(ctx context.Context) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM timeline_entries WHERE owner_kind = $1 AND owner_id = $2`,
		string(t.owner.Kind), t.owner.ID).Scan(&n)
	return n, err
}

func (t *timelineTx) Create(ctx context.Context, e *models.TimelineEntry) error {
	e.ID = newID(e.ID)
	e.Owner = t.owner
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	const q = `
		INSERT INTO timeline_entries
		(id, project_id, owner_kind, owner_id, state_id, starts_at, ends_at,
		 root_cause, state_change_log, created_by_user_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := t.q.ExecContext(ctx, q, e.ID, e.ProjectID, string(t.owner.Kind), t.owner.ID, e.StateID,
		e.StartsAt, nullTime(e.EndsAt), e.RootCause, nullJSON(e.StateChangeLog), e.CreatedByUserID, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert timeline entry: %w", err)
	}
	return nil
}

func (t *timelineTx) UpdateBounds(ctx context.Context, id string, startsAt time.Time, endsAt *time.Time) error {
	res, err := t.q.ExecContext(ctx, `UPDATE timeline_entries SET starts_at = $1, ends_at = $2
		WHERE id = $3 AND owner_kind = $4 AND owner_id = $5`,
		startsAt, nullTime(endsAt), id, string(t.owner.Kind), t.owner.ID)
	return expectOne(res, err, "timeline entry", id)
}

func (t *timelineTx) Delete(ctx context.Context, id string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM timeline_entries WHERE id = $1 AND owner_kind = $2 AND owner_id = $3`,
		id, string(t.owner.Kind), t.owner.ID)
	return expectOne(res, err, "timeline entry", id)
}

func (t *timelineTx) SetCurrentState(ctx context.Context, stateID string) error {
	var q string
	switch t.owner.Kind {
	case models.OwnerMonitor:
		q = `UPDATE monitors SET current_status_id = $1 WHERE id = $2`
	case models.OwnerIncident:
		q = `UPDATE incidents SET current_state_id = $1 WHERE id = $2`
	case models.OwnerAlert:
		q = `UPDATE alerts SET current_state_id = $1 WHERE id = $2`
	case models.OwnerScheduledMaintenance:
		q = `UPDATE scheduled_maintenance SET current_state_id = $1 WHERE id = $2`
	default:
		return models.BadData("unknown owner kind %q", t.owner.Kind)
	}
	res, err := t.q.ExecContext(ctx, q, stateID, t.owner.ID)
	return expectOne(res, err, "owner", t.owner.String())
}

func expectOne(res sql.Result, err error, what, id string) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, models.ErrNotFound)
	}
	return nil
}
