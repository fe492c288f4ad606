// Package monitor é a porta de entrada dos resultados de check: carrega o
// monitor, registra o check, avalia os critérios e entrega ao controller de
// incidentes.
package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reacher-incidents/instrument"
	"reacher-incidents/logging"
	"reacher-incidents/models"
	"reacher-incidents/repository"
	"reacher-incidents/services/v1/criteria"
	"reacher-incidents/services/v1/incident"
)

const reasonDisabled = "Monitor is disabled."

type Evaluator interface {
	Evaluate(ctx context.Context, monitor *models.Monitor, result models.CheckResult) criteria.Outcome
}

type Applier interface {
	Apply(ctx context.Context, in incident.Input) (incident.Outcome, error)
}

type CheckRecorder interface {
	RecordCheck(ctx context.Context, monitor *models.Monitor, result models.CheckResult) error
}

// IngestResponse resume o que aconteceu com um resultado.
type IngestResponse struct {
	MonitorID     string           `json:"monitorId"`
	Processed     bool             `json:"processed"`
	Reason        string           `json:"reason,omitempty"`
	CriteriaMetID string           `json:"criteriaMetId,omitempty"`
	RootCause     string           `json:"rootCause,omitempty"`
	NextStepID    string           `json:"nextMonitorStepId,omitempty"`
	Incidents     incident.Outcome `json:"incidents"`
}

type Resource struct {
	monitors  repository.MonitorStore
	evaluator Evaluator
	incidents Applier
	metrics   CheckRecorder
	checks    CheckLog
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Resource)

// WithCheckLog liga o registro de checks no Redis.
func WithCheckLog(l CheckLog) Option { return func(r *Resource) { r.checks = l } }

func WithCheckRecorder(m CheckRecorder) Option { return func(r *Resource) { r.metrics = m } }

func WithClock(now func() time.Time) Option { return func(r *Resource) { r.now = now } }

func NewResource(monitors repository.MonitorStore, evaluator Evaluator, incidents Applier, log *zap.Logger, opts ...Option) *Resource {
	r := &Resource{
		monitors:  monitors,
		evaluator: evaluator,
		incidents: incidents,
		log:       logging.Component(log, "monitor"),
		now:       time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func disabled(m *models.Monitor) bool {
	return m.DisableActiveMonitoring ||
		m.DisableActiveMonitoringBecauseOfManualIncident ||
		m.DisableActiveMonitoringBecauseOfScheduledMaintenance
}

// Process leva um resultado pelo pipeline inteiro. Falhas do check log e das
// métricas só são logadas; erros de avaliação e do controller são devolvidos.
func (r *Resource) Process(ctx context.Context, result models.CheckResult) (IngestResponse, error) {
	if result == nil {
		return IngestResponse{}, models.BadData("check result is required")
	}
	env := result.Common()
	if env.MonitorID == "" {
		return IngestResponse{}, models.BadData("monitorId is required")
	}
	resp := IngestResponse{MonitorID: env.MonitorID}

	mon, err := r.monitors.GetMonitor(ctx, env.MonitorID)
	if err != nil {
		return resp, fmt.Errorf("monitor %s: %w", env.MonitorID, err)
	}
	if disabled(mon) {
		r.log.Debug("monitor disabled, result ignored", zap.String("monitorId", mon.ID))
		resp.Reason = reasonDisabled
		return resp, nil
	}
	if env.CheckedAt.IsZero() {
		env.CheckedAt = r.now().UTC()
	}
	instrument.CheckResultsIngested.WithLabelValues(string(result.Kind())).Inc()

	if r.checks != nil {
		if err := r.checks.Record(ctx, mon, result); err != nil {
			r.log.Warn("failed to record check", zap.String("monitorId", mon.ID), zap.Error(err))
		}
	}
	if in, ok := result.(*models.IncomingRequestResult); ok && in.IsHeartbeat {
		at := env.CheckedAt
		if in.ReceivedAt != nil {
			at = *in.ReceivedAt
		}
		if err := r.monitors.MarkIncomingRequest(ctx, mon.ID, at); err != nil {
			return resp, fmt.Errorf("mark incoming request of monitor %s: %w", mon.ID, err)
		}
		mon.IncomingRequestReceivedAt = &at
	}
	if r.metrics != nil {
		if err := r.metrics.RecordCheck(ctx, mon, result); err != nil {
			r.log.Warn("failed to record check metrics", zap.String("monitorId", mon.ID), zap.Error(err))
		}
	}

	out := r.evaluator.Evaluate(ctx, mon, result)
	resp.NextStepID = out.NextStepID
	if out.Match != nil {
		resp.CriteriaMetID = out.Match.CriteriaID()
		resp.RootCause = out.Match.RootCause
	}

	applied, err := r.incidents.Apply(ctx, incident.Input{
		Monitor:         mon,
		Result:          result,
		Match:           out.Match,
		DefaultStatusID: out.DefaultStatusID,
		AutoResolve:     criteria.BuildAutoResolveMap(mon.Steps),
	})
	if err != nil {
		return resp, err
	}
	resp.Processed = true
	resp.Incidents = applied

	r.log.Info("check result processed",
		zap.String("monitorId", mon.ID),
		zap.String("kind", string(result.Kind())),
		zap.String("criteriaMetId", resp.CriteriaMetID),
		zap.Bool("statusChanged", applied.StatusChanged),
		zap.Int("created", len(applied.Created)),
		zap.Int("resolved", len(applied.Resolved)))
	return resp, nil
}

// ReceiveHeartbeat trata uma requisição recebida na URL secreta do monitor.
func (r *Resource) ReceiveHeartbeat(ctx context.Context, secretKey string, req models.IncomingRequestResult) (IngestResponse, error) {
	if secretKey == "" {
		return IngestResponse{}, models.BadData("secret key is required")
	}
	mon, err := r.monitors.FindMonitorBySecretKey(ctx, secretKey)
	if err != nil {
		return IngestResponse{}, fmt.Errorf("incoming request monitor: %w", err)
	}
	if mon.Type != models.MonitorIncomingRequest {
		return IngestResponse{}, models.BadData("monitor %s is not an incoming request monitor", mon.ID)
	}
	now := r.now().UTC()
	req.MonitorID = mon.ID
	req.IsHeartbeat = true
	req.ReceivedAt = &now
	req.CheckedAt = now
	return r.Process(ctx, &req)
}

// CheckHeartbeats avalia todos os monitores de incoming request com o último
// recebimento conhecido, para que critérios "não recebido em N minutos"
// disparem mesmo sem tráfego.
func (r *Resource) CheckHeartbeats(ctx context.Context) (int, error) {
	monitors, err := r.monitors.ListMonitorsByType(ctx, models.MonitorIncomingRequest)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, mon := range monitors {
		if disabled(mon) {
			continue
		}
		res := &models.IncomingRequestResult{
			CheckEnvelope: models.CheckEnvelope{MonitorID: mon.ID, CheckedAt: r.now().UTC()},
			ReceivedAt:    mon.IncomingRequestReceivedAt,
		}
		if _, err := r.Process(ctx, res); err != nil {
			r.log.Error("heartbeat check failed", zap.String("monitorId", mon.ID), zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}
