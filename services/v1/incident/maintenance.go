package incident

import (
	"context"
	"fmt"
	"time"

	"reacher-incidents/models"
	"reacher-incidents/services/v1/timeline"
)

type MaintenanceInput struct {
	ProjectID       string    `json:"projectId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartsAt        time.Time `json:"startsAt"`
	EndsAt          time.Time `json:"endsAt"`
	MonitorIDs      []string  `json:"monitorIds"`
	CreatedByUserID string    `json:"createdByUserId"`
}

type Maintenance struct {
	store    Store
	timeline Timeline
	now      func() time.Time
}

func NewMaintenance(store Store, tl Timeline) *Maintenance {
	return &Maintenance{store: store, timeline: tl, now: time.Now}
}

// Create agenda o evento no estado "scheduled" do projeto.
func (m *Maintenance) Create(ctx context.Context, in MaintenanceInput) (*models.ScheduledMaintenance, error) {
	if in.ProjectID == "" || in.Title == "" {
		return nil, models.BadData("projectId and title are required")
	}
	if !in.EndsAt.IsZero() && in.EndsAt.Before(in.StartsAt) {
		return nil, models.BadData("endsAt must not be before startsAt")
	}
	scheduled, err := requireState(ctx, m.store, in.ProjectID, models.OwnerScheduledMaintenance, models.FlagScheduled)
	if err != nil {
		return nil, err
	}
	event := &models.ScheduledMaintenance{
		ProjectID:      in.ProjectID,
		Title:          in.Title,
		Description:    in.Description,
		CurrentStateID: scheduled.ID,
		StartsAt:       in.StartsAt,
		EndsAt:         in.EndsAt,
		MonitorIDs:     append([]string(nil), in.MonitorIDs...),
		CreatedAt:      m.now().UTC(),
	}
	if err := m.store.CreateMaintenance(ctx, event); err != nil {
		return nil, fmt.Errorf("create scheduled maintenance: %w", err)
	}
	_, err = m.timeline.Insert(ctx, timeline.InsertInput{
		Owner:           models.OwnerRef{Kind: models.OwnerScheduledMaintenance, ID: event.ID},
		ProjectID:       event.ProjectID,
		StateID:         scheduled.ID,
		CreatedByUserID: in.CreatedByUserID,
		Label:           "Scheduled Maintenance " + event.Title,
	})
	if err != nil {
		return nil, fmt.Errorf("initial state of scheduled maintenance %s: %w", event.ID, err)
	}
	return event, nil
}

// ChangeState move o evento para stateID. Se já estiver nele, nada é gravado.
func (m *Maintenance) ChangeState(ctx context.Context, id, stateID, userID string) (*models.TimelineEntry, error) {
	event, err := m.store.GetMaintenance(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.CurrentStateID == stateID {
		return nil, nil
	}
	return m.timeline.Insert(ctx, timeline.InsertInput{
		Owner:           models.OwnerRef{Kind: models.OwnerScheduledMaintenance, ID: event.ID},
		ProjectID:       event.ProjectID,
		StateID:         stateID,
		CreatedByUserID: userID,
		Label:           "Scheduled Maintenance " + event.Title,
	})
}
