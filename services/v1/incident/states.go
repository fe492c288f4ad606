package incident

import (
	"context"
	"fmt"

	"reacher-incidents/models"
	"reacher-incidents/services/v1/timeline"
)

// OwnerStates faz ack/resolve manual de incidentes e alertas e responde se
// um owner já passou desses estados. O escalonamento usa IsAcknowledged
// para parar de paginar.
type OwnerStates struct {
	store    Store
	timeline Timeline
}

func NewOwnerStates(store Store, tl Timeline) *OwnerStates {
	return &OwnerStates{store: store, timeline: tl}
}

type ownerInfo struct {
	projectID      string
	currentStateID string
	label          string
}

func (s *OwnerStates) load(ctx context.Context, owner models.OwnerRef) (*ownerInfo, error) {
	switch owner.Kind {
	case models.OwnerIncident:
		inc, err := s.store.GetIncident(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		return &ownerInfo{inc.ProjectID, inc.CurrentStateID, fmt.Sprintf("Incident %d", inc.Number)}, nil
	case models.OwnerAlert:
		a, err := s.store.GetAlert(ctx, owner.ID)
		if err != nil {
			return nil, err
		}
		return &ownerInfo{a.ProjectID, a.CurrentStateID, fmt.Sprintf("Alert %d", a.Number)}, nil
	}
	return nil, models.BadData("%s has no acknowledge/resolve lifecycle", owner.Kind)
}

// Acknowledge grava o estado de ack. Devolve nil quando já estava nele.
func (s *OwnerStates) Acknowledge(ctx context.Context, owner models.OwnerRef, userID string) (*models.TimelineEntry, error) {
	return s.moveTo(ctx, owner, models.FlagAcknowledged, userID)
}

func (s *OwnerStates) Resolve(ctx context.Context, owner models.OwnerRef, userID string) (*models.TimelineEntry, error) {
	return s.moveTo(ctx, owner, models.FlagResolved, userID)
}

func (s *OwnerStates) moveTo(ctx context.Context, owner models.OwnerRef, flag models.StateFlag, userID string) (*models.TimelineEntry, error) {
	info, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	state, err := requireState(ctx, s.store, info.projectID, owner.Kind, flag)
	if err != nil {
		return nil, err
	}
	return s.timeline.Insert(ctx, timeline.InsertInput{
		Owner:           owner,
		ProjectID:       info.projectID,
		StateID:         state.ID,
		CreatedByUserID: userID,
		Label:           info.label,
	})
}

// IsAcknowledged compara pela ordem: qualquer estado depois do ack (resolved
// inclusive) conta como reconhecido.
func (s *OwnerStates) IsAcknowledged(ctx context.Context, owner models.OwnerRef) (bool, error) {
	return s.reached(ctx, owner, models.FlagAcknowledged)
}

func (s *OwnerStates) IsResolved(ctx context.Context, owner models.OwnerRef) (bool, error) {
	return s.reached(ctx, owner, models.FlagResolved)
}

func (s *OwnerStates) reached(ctx context.Context, owner models.OwnerRef, flag models.StateFlag) (bool, error) {
	info, err := s.load(ctx, owner)
	if err != nil {
		return false, err
	}
	if info.currentStateID == "" {
		return false, nil
	}
	target, err := requireState(ctx, s.store, info.projectID, owner.Kind, flag)
	if err != nil {
		return false, err
	}
	current, err := s.store.GetState(ctx, info.currentStateID)
	if err != nil {
		return false, err
	}
	return current.Order >= target.Order, nil
}
