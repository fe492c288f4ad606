// Package incident aplica o resultado da avaliação de critérios: muda o
// status do monitor, resolve incidentes que não valem mais e abre os novos.
// Também concentra o ciclo de vida de alertas e manutenções agendadas.
package incident

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reacher-incidents/instrument"
	"reacher-incidents/logging"
	"reacher-incidents/models"
	"reacher-incidents/repository"
	"reacher-incidents/services/v1/criteria"
	"reacher-incidents/services/v1/timeline"
)

const (
	autoResolvePrefix   = "Incident autoresolved because autoresolve is set to true in monitor criteria. "
	DefaultStatusReason = "No monitoring criteria met. Change to default status."
)

// Store é o recorte do repositório usado por este pacote.
type Store interface {
	repository.StateStore
	repository.TimelineStore
	repository.IncidentStore
	repository.AlertStore
	repository.MaintenanceStore
}

// Timeline grava mudanças de estado. *timeline.Manager implementa.
type Timeline interface {
	Insert(ctx context.Context, in timeline.InsertInput) (*models.TimelineEntry, error)
}

// PolicyTrigger inicia a execução de uma política de on-call.
type PolicyTrigger interface {
	Trigger(ctx context.Context, projectID, policyID string, by models.OwnerRef, event models.NotificationEventType) (*models.ExecutionLog, error)
}

// Input é um tick de monitor já avaliado.
type Input struct {
	Monitor *models.Monitor
	Result  models.CheckResult
	// Match é nil quando nenhum critério casou.
	Match *criteria.Match
	// DefaultStatusID vem preenchido quando nada casou e o status padrão
	// difere do atual.
	DefaultStatusID string
	AutoResolve     criteria.AutoResolveMap
}

type Outcome struct {
	StatusChanged bool               `json:"statusChanged"`
	Resolved      []string           `json:"resolvedIncidentIds,omitempty"`
	Created       []*models.Incident `json:"createdIncidents,omitempty"`
	Deduplicated  int                `json:"deduplicated"`
}

type Controller struct {
	store    Store
	timeline Timeline
	policies PolicyTrigger
	locker   timeline.Locker
	log      *zap.Logger
	now      func() time.Time
}

func NewController(store Store, tl Timeline, policies PolicyTrigger, log *zap.Logger) *Controller {
	return &Controller{
		store:    store,
		timeline: tl,
		policies: policies,
		locker:   timeline.NewKeyedMutex(),
		log:      logging.Component(log, "incident"),
		now:      time.Now,
	}
}

// WithLocker troca o lock por monitor (Redis quando há várias réplicas).
func (c *Controller) WithLocker(l timeline.Locker) *Controller {
	c.locker = l
	return c
}

func (c *Controller) WithClock(now func() time.Time) *Controller {
	c.now = now
	return c
}

// Apply roda, nesta ordem: mudança de status, passada de auto-resolve
// (sempre), criação de incidentes e disparo de políticas. Os ticks de um
// mesmo monitor são serializados para que a deduplicação valha.
func (c *Controller) Apply(ctx context.Context, in Input) (Outcome, error) {
	var out Outcome
	mon := in.Monitor
	if mon == nil {
		return out, models.BadData("monitor is required")
	}
	unlock, err := c.locker.Lock(ctx, "apply:"+mon.ID)
	if err != nil {
		return out, err
	}
	defer unlock()

	stateLog, err := models.EncodeCheckResult(in.Result)
	if err != nil {
		return out, err
	}

	changed, err := c.changeStatus(ctx, in, stateLog)
	if err != nil {
		return out, err
	}
	out.StatusChanged = changed

	rootCause := DefaultStatusReason
	matchedCriteria := ""
	if in.Match != nil {
		rootCause = in.Match.RootCause
		matchedCriteria = in.Match.CriteriaID()
	}

	open, err := c.store.FindOpenIncidentsForMonitor(ctx, mon.ProjectID, mon.ID)
	if err != nil {
		return out, fmt.Errorf("open incidents of monitor %s: %w", mon.ID, err)
	}
	stillOpen, resolved, err := c.autoResolve(ctx, mon, open, matchedCriteria, in.AutoResolve, rootCause, stateLog)
	if err != nil {
		return out, err
	}
	out.Resolved = resolved

	if in.Match == nil || in.Match.Instance == nil || !in.Match.Instance.CreateIncidents {
		return out, nil
	}
	inst := in.Match.Instance
	for i := range inst.Incidents {
		tpl := &inst.Incidents[i]
		key := models.DedupKey{CriteriaID: inst.ID, TemplateID: tpl.ID}
		if hasOpen(stillOpen, key) {
			out.Deduplicated++
			c.log.Debug("incident already open, skipping",
				zap.String("monitorId", mon.ID),
				zap.String("criteriaId", key.CriteriaID),
				zap.String("templateId", key.TemplateID))
			continue
		}
		created, err := c.create(ctx, mon, inst, tpl, in.Match.RootCause, in.Result, stateLog)
		if err != nil {
			return out, err
		}
		stillOpen = append(stillOpen, created)
		out.Created = append(out.Created, created)
	}
	return out, nil
}

func (c *Controller) changeStatus(ctx context.Context, in Input, stateLog []byte) (bool, error) {
	mon := in.Monitor
	target, reason := "", ""
	switch {
	case in.Match != nil && in.Match.Instance != nil:
		inst := in.Match.Instance
		if !inst.ChangeMonitorStatus || inst.MonitorStatusID == "" {
			return false, nil
		}
		target, reason = inst.MonitorStatusID, in.Match.RootCause
		if target == mon.CurrentStatusID {
			// mesmo status: só grava se o monitor ainda não tem timeline
			current, err := c.store.OpenTimelineEntry(ctx, mon.Owner())
			if err != nil {
				return false, err
			}
			if current != nil {
				return false, nil
			}
		}
	case in.DefaultStatusID != "":
		target, reason = in.DefaultStatusID, DefaultStatusReason
	default:
		return false, nil
	}

	entry, err := c.timeline.Insert(ctx, timeline.InsertInput{
		Owner:          mon.Owner(),
		ProjectID:      mon.ProjectID,
		StateID:        target,
		At:             c.now(),
		RootCause:      reason,
		StateChangeLog: stateLog,
		Label:          "Monitor " + mon.Name,
	})
	if err != nil {
		return false, fmt.Errorf("change status of monitor %s: %w", mon.ID, err)
	}
	if entry != nil {
		c.log.Info("monitor status changed",
			zap.String("monitorId", mon.ID),
			zap.String("statusId", target))
	}
	return entry != nil, nil
}

// ShouldAutoResolve decide se um incidente aberto deve ser fechado. Nunca
// fecha o incidente cujo critério é o que está casando agora.
func ShouldAutoResolve(open *models.Incident, matchedCriteriaID string, autoResolve criteria.AutoResolveMap) bool {
	if open.CreatedCriteriaID == matchedCriteriaID {
		return false
	}
	if open.CreatedCriteriaID == "" || open.CreatedIncidentTemplateID == "" {
		return false
	}
	return autoResolve.Contains(open.CreatedCriteriaID, open.CreatedIncidentTemplateID)
}

func (c *Controller) autoResolve(ctx context.Context, mon *models.Monitor, open []*models.Incident, matchedCriteriaID string, autoResolve criteria.AutoResolveMap, rootCause string, stateLog []byte) ([]*models.Incident, []string, error) {
	var (
		remaining []*models.Incident
		resolved  []string
		state     *models.State
	)
	for _, inc := range open {
		if !ShouldAutoResolve(inc, matchedCriteriaID, autoResolve) {
			remaining = append(remaining, inc)
			continue
		}
		if state == nil {
			s, err := requireState(ctx, c.store, mon.ProjectID, models.OwnerIncident, models.FlagResolved)
			if err != nil {
				return nil, nil, err
			}
			state = s
		}
		_, err := c.timeline.Insert(ctx, timeline.InsertInput{
			Owner:          models.OwnerRef{Kind: models.OwnerIncident, ID: inc.ID},
			ProjectID:      inc.ProjectID,
			StateID:        state.ID,
			At:             c.now(),
			RootCause:      autoResolvePrefix + rootCause,
			StateChangeLog: stateLog,
			Label:          fmt.Sprintf("Incident %d", inc.Number),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("auto-resolve incident %s: %w", inc.ID, err)
		}
		instrument.IncidentsAutoResolved.Inc()
		c.log.Info("incident auto-resolved",
			zap.String("monitorId", mon.ID),
			zap.String("incidentId", inc.ID),
			zap.String("criteriaId", inc.CreatedCriteriaID))
		resolved = append(resolved, inc.ID)
	}
	return remaining, resolved, nil
}

func (c *Controller) create(ctx context.Context, mon *models.Monitor, inst *models.CriteriaInstance, tpl *models.IncidentTemplate, rootCause string, result models.CheckResult, stateLog []byte) (*models.Incident, error) {
	created, err := requireState(ctx, c.store, mon.ProjectID, models.OwnerIncident, models.FlagCreated)
	if err != nil {
		return nil, err
	}
	severityID, err := resolveSeverity(ctx, c.store, mon.ProjectID, tpl.SeverityID)
	if err != nil {
		return nil, err
	}

	inc := &models.Incident{
		ProjectID:                 mon.ProjectID,
		Title:                     tpl.Title,
		Description:               tpl.Description,
		CurrentStateID:            created.ID,
		SeverityID:                severityID,
		MonitorIDs:                []string{mon.ID},
		OnCallPolicyIDs:           append([]string(nil), tpl.OnCallPolicyIDs...),
		CreatedCriteriaID:         inst.ID,
		CreatedIncidentTemplateID: tpl.ID,
		IsCreatedAutomatically:    true,
		RootCause:                 rootCause,
		CreatedStateLog:           stateLog,
		TelemetryQuery:            telemetryQuery(result),
		RemediationNotes:          tpl.RemediationNotes,
		CreatedAt:                 c.now().UTC(),
	}
	if result != nil {
		inc.CreatedByProbeID = result.Common().ProbeID
	}
	if err := c.store.CreateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident for monitor %s: %w", mon.ID, err)
	}
	instrument.IncidentsCreated.Inc()
	c.log.Info("incident created",
		zap.String("monitorId", mon.ID),
		zap.String("incidentId", inc.ID),
		zap.Int("number", inc.Number),
		zap.String("criteriaId", inst.ID),
		zap.String("templateId", tpl.ID))

	owner := models.OwnerRef{Kind: models.OwnerIncident, ID: inc.ID}
	_, err = c.timeline.Insert(ctx, timeline.InsertInput{
		Owner:          owner,
		ProjectID:      inc.ProjectID,
		StateID:        created.ID,
		At:             inc.CreatedAt,
		RootCause:      rootCause,
		StateChangeLog: stateLog,
		Label:          fmt.Sprintf("Incident %d", inc.Number),
	})
	if err != nil {
		return nil, fmt.Errorf("initial state of incident %s: %w", inc.ID, err)
	}
	triggerPolicies(ctx, c.policies, c.log, inc.ProjectID, inc.OnCallPolicyIDs, owner, models.EventIncidentCreated)
	return inc, nil
}

func hasOpen(open []*models.Incident, key models.DedupKey) bool {
	for _, inc := range open {
		if inc.Key() == key {
			return true
		}
	}
	return false
}

func telemetryQuery(result models.CheckResult) *models.TelemetryQuery {
	switch r := result.(type) {
	case *models.LogQueryResult:
		if len(r.LogQuery) > 0 {
			return &models.TelemetryQuery{Kind: models.KindLogQuery, Query: r.LogQuery}
		}
	case *models.TraceQueryResult:
		if len(r.SpanQuery) > 0 {
			return &models.TelemetryQuery{Kind: models.KindTraceQuery, Query: r.SpanQuery}
		}
	}
	return nil
}

// requireState busca o estado com a flag; ausência é erro de configuração.
func requireState(ctx context.Context, store repository.StateStore, projectID string, kind models.OwnerKind, flag models.StateFlag) (*models.State, error) {
	s, err := store.FindStateByFlag(ctx, projectID, kind, flag)
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.NewConfigurationError("%s %s state not found for project %s. Please add %s state from settings.", kind, flag, projectID, flag)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func resolveSeverity(ctx context.Context, store repository.StateStore, projectID, severityID string) (string, error) {
	if severityID != "" {
		return severityID, nil
	}
	s, err := store.FindLowestSeverity(ctx, projectID)
	if errors.Is(err, models.ErrNotFound) {
		return "", models.NewConfigurationError("project %s does not have a severity", projectID)
	}
	if err != nil {
		return "", err
	}
	return s.ID, nil
}

// triggerPolicies dispara cada política. A entidade já foi criada, então
// falha aqui vira log e não desfaz nada.
func triggerPolicies(ctx context.Context, policies PolicyTrigger, log *zap.Logger, projectID string, policyIDs []string, owner models.OwnerRef, event models.NotificationEventType) {
	if policies == nil {
		return
	}
	for _, id := range policyIDs {
		if _, err := policies.Trigger(ctx, projectID, id, owner, event); err != nil {
			log.Error("failed to trigger on-call policy",
				zap.String("owner", owner.String()),
				zap.String("policyId", id),
				zap.Error(err))
		}
	}
}
