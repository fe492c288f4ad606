package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reacher-incidents/logging"
	"reacher-incidents/models"
	"reacher-incidents/services/v1/timeline"
)

type AlertInput struct {
	ProjectID        string          `json:"projectId"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	SeverityID       string          `json:"severityId"`
	MonitorID        string          `json:"monitorId"`
	OnCallPolicyIDs  []string        `json:"onCallPolicyIds"`
	RootCause        string          `json:"rootCause"`
	CreatedByUserID  string          `json:"createdByUserId"`
	CreatedByProbeID string          `json:"createdByProbeId"`
	StateChangeLog   json.RawMessage `json:"stateChangeLog"`
}

type Alerts struct {
	store    Store
	timeline Timeline
	policies PolicyTrigger
	log      *zap.Logger
	now      func() time.Time
}

func NewAlerts(store Store, tl Timeline, policies PolicyTrigger, log *zap.Logger) *Alerts {
	return &Alerts{store: store, timeline: tl, policies: policies, log: logging.Component(log, "alerts"), now: time.Now}
}

// Create abre um alerta no estado "created" do projeto, numera, grava a
// primeira entrada da timeline e dispara as políticas ligadas.
func (a *Alerts) Create(ctx context.Context, in AlertInput) (*models.Alert, error) {
	if in.ProjectID == "" {
		return nil, models.BadData("ProjectId required to create alert.")
	}
	if in.Title == "" {
		return nil, models.BadData("title is required")
	}
	created, err := requireState(ctx, a.store, in.ProjectID, models.OwnerAlert, models.FlagCreated)
	if err != nil {
		return nil, err
	}
	severityID, err := resolveSeverity(ctx, a.store, in.ProjectID, in.SeverityID)
	if err != nil {
		return nil, err
	}
	rootCause := in.RootCause
	if rootCause == "" && in.CreatedByUserID != "" {
		rootCause = "Alert created by user " + in.CreatedByUserID
	}

	alert := &models.Alert{
		ProjectID:              in.ProjectID,
		Title:                  in.Title,
		Description:            in.Description,
		CurrentStateID:         created.ID,
		SeverityID:             severityID,
		MonitorID:              in.MonitorID,
		OnCallPolicyIDs:        append([]string(nil), in.OnCallPolicyIDs...),
		IsCreatedAutomatically: in.CreatedByUserID == "",
		RootCause:              rootCause,
		CreatedStateLog:        in.StateChangeLog,
		CreatedByProbeID:       in.CreatedByProbeID,
		CreatedAt:              a.now().UTC(),
	}
	if err := a.store.CreateAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	owner := models.OwnerRef{Kind: models.OwnerAlert, ID: alert.ID}
	_, err = a.timeline.Insert(ctx, timeline.InsertInput{
		Owner:           owner,
		ProjectID:       alert.ProjectID,
		StateID:         created.ID,
		At:              alert.CreatedAt,
		RootCause:       rootCause,
		StateChangeLog:  in.StateChangeLog,
		CreatedByUserID: in.CreatedByUserID,
		Label:           fmt.Sprintf("Alert %d", alert.Number),
	})
	if err != nil {
		return nil, fmt.Errorf("initial state of alert %s: %w", alert.ID, err)
	}
	a.log.Info("alert created",
		zap.String("alertId", alert.ID),
		zap.Int("number", alert.Number),
		zap.String("projectId", alert.ProjectID))
	triggerPolicies(ctx, a.policies, a.log, alert.ProjectID, alert.OnCallPolicyIDs, owner, models.EventAlertCreated)
	return alert, nil
}
