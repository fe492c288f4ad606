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

func insertPoints(ctx context.Context, q dbtx, points []models.MetricPoint) error {
	const insert = `INSERT INTO metric_points (name, project_id, owner_kind, owner_id, value, unit, at, attributes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	for _, p := range points {
		var attrs []byte
		if len(p.Attributes) > 0 {
			var err error
			if attrs, err = json.Marshal(p.Attributes); err != nil {
				return fmt.Errorf("encode metric attributes: %w", err)
			}
		}
		if _, err := q.ExecContext(ctx, insert, string(p.Name), p.ProjectID, string(p.Owner.Kind), p.Owner.ID,
			p.Value, p.Unit, p.Time, nullJSON(attrs)); err != nil {
			return fmt.Errorf("insert metric %s: %w", p.Name, err)
		}
	}
	return nil
}

func (s *Store) ReplaceOwnerMetrics(ctx context.Context, owner models.OwnerRef, names []models.MetricName, points []models.MetricPoint) error {
	ns := make([]string, len(names))
	for i, n := range names {
		ns[i] = string(n)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM metric_points WHERE owner_kind = $1 AND owner_id = $2 AND name = ANY($3)`,
			string(owner.Kind), owner.ID, pq.Array(ns)); err != nil {
			return fmt.Errorf("delete metrics of %s: %w", owner, err)
		}
		return insertPoints(ctx, tx, points)
	})
}

func (s *Store) AppendMetrics(ctx context.Context, points []models.MetricPoint) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return insertPoints(ctx, tx, points)
	})
}

func (s *Store) ListMetrics(ctx context.Context, owner models.OwnerRef) ([]models.MetricPoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, project_id, value, unit, at, attributes FROM metric_points
		WHERE owner_kind = $1 AND owner_id = $2 ORDER BY at`, string(owner.Kind), owner.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.MetricPoint
	for rows.Next() {
		var (
			p     models.MetricPoint
			name  string
			attrs []byte
		)
		if err := rows.Scan(&name, &p.ProjectID, &p.Value, &p.Unit, &p.Time, &attrs); err != nil {
			return nil, err
		}
		p.Name = models.MetricName(name)
		p.Owner = owner
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
				return nil, fmt.Errorf("decode metric attributes: %w", err)
			}
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM metric_points WHERE at < $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
