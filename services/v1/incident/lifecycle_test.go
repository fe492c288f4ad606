package incident

import (
	"context"
	"errors"
	"testing"
	"time"

	"reacher-incidents/events"
	"reacher-incidents/models"
	"reacher-incidents/repository"
	"reacher-incidents/services/v1/timeline"
)

func TestOwnerStatesAcknowledgeAndResolve(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	states := NewOwnerStates(e.store, e.timeline)
	inc := e.store.PutIncident(models.Incident{ID: "inc-1", ProjectID: "p1", Number: 4, CurrentStateID: "inc-created"})
	owner := models.OwnerRef{Kind: models.OwnerIncident, ID: inc.ID}

	if ok, err := states.IsAcknowledged(ctx, owner); err != nil || ok {
		t.Fatalf("fresh incident is not acknowledged: ok=%v err=%v", ok, err)
	}
	if _, err := states.Acknowledge(ctx, owner, "user-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := states.IsAcknowledged(ctx, owner); !ok {
		t.Fatal("incident should be acknowledged")
	}
	if ok, _ := states.IsResolved(ctx, owner); ok {
		t.Fatal("acknowledged is not resolved")
	}
	entry, err := states.Acknowledge(ctx, owner, "user-1")
	if err != nil || entry != nil {
		t.Fatalf("acknowledging twice records nothing: entry=%+v err=%v", entry, err)
	}

	if _, err := states.Resolve(ctx, owner, "user-2"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := states.IsResolved(ctx, owner); !ok {
		t.Fatal("incident should be resolved")
	}
	if ok, _ := states.IsAcknowledged(ctx, owner); !ok {
		t.Fatal("resolved counts as acknowledged")
	}
}

func TestOwnerStatesRejectsMonitors(t *testing.T) {
	e := newEnv(t)
	states := NewOwnerStates(e.store, e.timeline)
	_, err := states.Acknowledge(context.Background(), e.monitor.Owner(), "")
	if !errors.Is(err, models.ErrBadData) {
		t.Fatalf("expected bad data, got %v", err)
	}
}

func TestOwnerStatesMissingAckState(t *testing.T) {
	store := repository.NewMemory()
	store.PutState(models.State{ID: "created", ProjectID: "p1", OwnerKind: models.OwnerIncident, IsCreatedState: true})
	store.PutIncident(models.Incident{ID: "inc-1", ProjectID: "p1", CurrentStateID: "created"})
	states := NewOwnerStates(store, timeline.NewManager(store, &events.Inline{}, nil))
	_, err := states.Acknowledge(context.Background(), models.OwnerRef{Kind: models.OwnerIncident, ID: "inc-1"}, "u")
	if !models.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAlertsCreate(t *testing.T) {
	e := newEnv(t)
	alerts := NewAlerts(e.store, e.timeline, e.policies, nil)
	ctx := context.Background()

	a, err := alerts.Create(ctx, AlertInput{ProjectID: "p1", Title: "disk filling", OnCallPolicyIDs: []string{"pol-a"}, CreatedByUserID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	b, err := alerts.Create(ctx, AlertInput{ProjectID: "p1", Title: "again", SeverityID: "sev-minor"})
	if err != nil {
		t.Fatal(err)
	}
	if a.Number != 1 || b.Number != 2 {
		t.Fatalf("alerts are numbered per project: %d, %d", a.Number, b.Number)
	}
	if a.SeverityID != "sev-critical" || b.SeverityID != "sev-minor" {
		t.Fatalf("unexpected severities %q %q", a.SeverityID, b.SeverityID)
	}
	if a.RootCause != "Alert created by user user-1" || a.IsCreatedAutomatically || !b.IsCreatedAutomatically {
		t.Fatalf("unexpected alert %+v", a)
	}
	stored, _ := e.store.GetAlert(ctx, a.ID)
	if stored.CurrentStateID != "alert-created" {
		t.Fatalf("alert should start in created state, got %q", stored.CurrentStateID)
	}
	if len(e.policies.calls) != 1 || e.policies.calls[0].Event != models.EventAlertCreated || e.policies.calls[0].By.Kind != models.OwnerAlert {
		t.Fatalf("unexpected policy triggers %+v", e.policies.calls)
	}
}

func TestAlertsCreateWithoutCreatedState(t *testing.T) {
	store := repository.NewMemory()
	store.PutSeverity(models.Severity{ProjectID: "p1", Name: "Critical"})
	alerts := NewAlerts(store, timeline.NewManager(store, &events.Inline{}, nil), nil, nil)
	_, err := alerts.Create(context.Background(), AlertInput{ProjectID: "p1", Title: "x"})
	if !models.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMaintenanceLifecycle(t *testing.T) {
	e := newEnv(t)
	sm := NewMaintenance(e.store, e.timeline)
	ctx := context.Background()

	event, err := sm.Create(ctx, MaintenanceInput{ProjectID: "p1", Title: "db upgrade", StartsAt: now.Add(time.Hour), EndsAt: now.Add(2 * time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if event.CurrentStateID != "sm-scheduled" {
		t.Fatalf("new event should be scheduled, got %q", event.CurrentStateID)
	}
	if entry, err := sm.ChangeState(ctx, event.ID, "sm-scheduled", "u"); err != nil || entry != nil {
		t.Fatalf("same state is skipped: entry=%+v err=%v", entry, err)
	}
	entry, err := sm.ChangeState(ctx, event.ID, "sm-ongoing", "u")
	if err != nil || entry == nil {
		t.Fatalf("state change should be recorded: entry=%+v err=%v", entry, err)
	}
	stored, _ := e.store.GetMaintenance(ctx, event.ID)
	if stored.CurrentStateID != "sm-ongoing" {
		t.Fatalf("current state not updated: %q", stored.CurrentStateID)
	}
	// as duas gravações usam o relógio do timeline; no mesmo instante a
	// segunda substitui a primeira
	entries, err := e.store.ListTimeline(ctx, models.OwnerRef{Kind: models.OwnerScheduledMaintenance, ID: event.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].StateID != "sm-ongoing" || !entries[0].IsOpen() || !entries[0].StartsAt.Equal(now) {
		t.Fatalf("unexpected maintenance timeline %+v", entries)
	}

	_, err = sm.Create(ctx, MaintenanceInput{ProjectID: "p1", Title: "bad", StartsAt: now, EndsAt: now.Add(-time.Minute)})
	if !errors.Is(err, models.ErrBadData) {
		t.Fatalf("inverted window should be bad data, got %v", err)
	}
}
