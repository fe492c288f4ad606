// Package metrics deriva pontos de métrica das timelines (contagem, tempo até
// ack/resolve, duração) e de cada resultado de check.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reacher-incidents/logging"
	"reacher-incidents/models"
	"reacher-incidents/repository"
)

const (
	unitSeconds = "seconds"
	unitCount   = "count"
	unitMs      = "ms"
	unitPercent = "percent"
)

// Store é o recorte do repositório usado pelo Recorder.
type Store interface {
	repository.TimelineStore
	repository.StateStore
	repository.MetricStore
}

type Recorder struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewRecorder(store Store, log *zap.Logger) *Recorder {
	return &Recorder{store: store, log: logging.Component(log, "metrics"), now: time.Now}
}

func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

func derivedNames(kind models.OwnerKind) []models.MetricName {
	switch kind {
	case models.OwnerIncident:
		return []models.MetricName{models.MetricIncidentCount, models.MetricTimeToAcknowledge, models.MetricTimeToResolve, models.MetricDuration}
	case models.OwnerAlert:
		return []models.MetricName{models.MetricAlertCount, models.MetricTimeToAcknowledge, models.MetricTimeToResolve, models.MetricDuration}
	}
	return []models.MetricName{models.MetricDuration}
}

// Refresh recalcula e substitui os pontos derivados da timeline do owner.
func (r *Recorder) Refresh(ctx context.Context, owner models.OwnerRef) error {
	entries, err := r.store.ListTimeline(ctx, owner)
	if err != nil {
		return fmt.Errorf("timeline of %s: %w", owner, err)
	}
	var points []models.MetricPoint
	if len(entries) > 0 {
		states := map[string]*models.State{}
		for _, e := range entries {
			if _, ok := states[e.StateID]; ok {
				continue
			}
			s, err := r.store.GetState(ctx, e.StateID)
			if err != nil {
				return err
			}
			states[e.StateID] = s
		}
		points = r.derive(owner, entries, states)
	}
	if err := r.store.ReplaceOwnerMetrics(ctx, owner, derivedNames(owner.Kind), points); err != nil {
		return fmt.Errorf("store metrics of %s: %w", owner, err)
	}
	r.log.Debug("derived metrics refreshed",
		zap.String("owner", owner.String()),
		zap.Int("points", len(points)))
	return nil
}

func (r *Recorder) derive(owner models.OwnerRef, entries []*models.TimelineEntry, states map[string]*models.State) []models.MetricPoint {
	first, last := entries[0], entries[len(entries)-1]
	point := func(name models.MetricName, value float64, unit string, at time.Time, attrs map[string]string) models.MetricPoint {
		return models.MetricPoint{Name: name, ProjectID: first.ProjectID, Owner: owner, Value: value, Unit: unit, Time: at, Attributes: attrs}
	}

	switch owner.Kind {
	case models.OwnerIncident, models.OwnerAlert:
		countName := models.MetricIncidentCount
		if owner.Kind == models.OwnerAlert {
			countName = models.MetricAlertCount
		}
		points := []models.MetricPoint{point(countName, 1, unitCount, first.StartsAt, nil)}
		if ack := firstWith(entries, states, models.FlagAcknowledged); ack != nil {
			points = append(points, point(models.MetricTimeToAcknowledge, ack.StartsAt.Sub(first.StartsAt).Seconds(), unitSeconds, ack.StartsAt, nil))
		}
		resolved := firstWith(entries, states, models.FlagResolved)
		if resolved != nil {
			points = append(points, point(models.MetricTimeToResolve, resolved.StartsAt.Sub(first.StartsAt).Seconds(), unitSeconds, resolved.StartsAt, nil))
		}
		end := r.now().UTC()
		if states[last.StateID].IsResolvedState {
			end = last.StartsAt
		}
		return append(points, point(models.MetricDuration, end.Sub(first.StartsAt).Seconds(), unitSeconds, first.StartsAt, nil))
	}

	// monitores e manutenções: quanto tempo no estado atual
	end := r.now().UTC()
	if last.EndsAt != nil {
		end = *last.EndsAt
	}
	return []models.MetricPoint{point(models.MetricDuration, end.Sub(last.StartsAt).Seconds(), unitSeconds, last.StartsAt,
		map[string]string{"stateId": last.StateID, "stateName": states[last.StateID].Name})}
}

func firstWith(entries []*models.TimelineEntry, states map[string]*models.State, flag models.StateFlag) *models.TimelineEntry {
	for _, e := range entries {
		if s := states[e.StateID]; s != nil && s.Has(flag) {
			return e
		}
	}
	return nil
}

// RecordCheck grava os pontos de um resultado de check do monitor.
func (r *Recorder) RecordCheck(ctx context.Context, monitor *models.Monitor, result models.CheckResult) error {
	points := CheckPoints(monitor, result, r.now())
	if len(points) == 0 {
		return nil
	}
	return r.store.AppendMetrics(ctx, points)
}

// CheckPoints converte um resultado em pontos. Variantes sem valor numérico
// (logs, traces, incoming request) não geram nada.
func CheckPoints(monitor *models.Monitor, result models.CheckResult, now time.Time) []models.MetricPoint {
	if result == nil {
		return nil
	}
	env := result.Common()
	at := env.CheckedAt
	if at.IsZero() {
		at = now
	}
	attrs := map[string]string{"monitorType": string(monitor.Type)}
	if env.ProbeID != "" {
		attrs["probeId"] = env.ProbeID
	}
	point := func(name models.MetricName, value float64, unit string, extra map[string]string) models.MetricPoint {
		a := make(map[string]string, len(attrs)+len(extra))
		for k, v := range attrs {
			a[k] = v
		}
		for k, v := range extra {
			a[k] = v
		}
		return models.MetricPoint{Name: name, ProjectID: monitor.ProjectID, Owner: monitor.Owner(), Value: value, Unit: unit, Time: at, Attributes: a}
	}

	var out []models.MetricPoint
	switch r := result.(type) {
	case *models.ProbeResult:
		out = append(out, point(models.MetricIsOnline, boolValue(r.IsOnline), unitCount, nil))
		if r.ResponseTimeMs > 0 {
			out = append(out, point(models.MetricResponseTime, r.ResponseTimeMs, unitMs, nil))
		}
		if r.ResponseCode > 0 {
			out = append(out, point(models.MetricResponseStatusCode, float64(r.ResponseCode), "", nil))
		}
	case *models.ServerResult:
		out = append(out, point(models.MetricIsOnline, 1, unitCount, nil))
		if r.CPUPercent != nil {
			out = append(out, point(models.MetricCPUUsagePercent, *r.CPUPercent, unitPercent, nil))
		}
		if r.MemoryPercent != nil {
			out = append(out, point(models.MetricMemoryUsagePercent, *r.MemoryPercent, unitPercent, nil))
		}
		for _, d := range r.Disks {
			out = append(out, point(models.MetricDiskUsagePercent, d.PercentUsed, unitPercent, map[string]string{"diskPath": d.DiskPath}))
		}
	case *models.SyntheticResult:
		for _, run := range r.Runs {
			out = append(out, point(models.MetricExecutionTime, run.ExecutionTimeMs, unitMs,
				map[string]string{"browserType": run.BrowserType, "screenSizeType": run.ScreenSizeType}))
		}
	case *models.CustomCodeResult:
		out = append(out, point(models.MetricExecutionTime, r.ExecutionTimeMs, unitMs, nil))
	case *models.SSLResult:
		out = append(out, point(models.MetricIsOnline, boolValue(r.IsOnline), unitCount, nil))
	}
	return out
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
