package incident

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"reacher-incidents/events"
	"reacher-incidents/models"
	"reacher-incidents/repository"
	"reacher-incidents/services/v1/criteria"
	"reacher-incidents/services/v1/timeline"
)

var now = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

type trigger struct {
	ProjectID, PolicyID string
	By                  models.OwnerRef
	Event               models.NotificationEventType
}

type fakePolicies struct {
	mu    sync.Mutex
	calls []trigger
	err   error
}

func (f *fakePolicies) Trigger(_ context.Context, projectID, policyID string, by models.OwnerRef, event models.NotificationEventType) (*models.ExecutionLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, trigger{projectID, policyID, by, event})
	if f.err != nil {
		return nil, f.err
	}
	return &models.ExecutionLog{PolicyID: policyID, TriggeredBy: by, Status: models.ExecutionExecuting}, nil
}

type env struct {
	store    *repository.Memory
	timeline *timeline.Manager
	policies *fakePolicies
	ctrl     *Controller
	monitor  *models.Monitor
}

func seedStates(store *repository.Memory, withSeverity bool) {
	for _, s := range []models.State{
		{ID: "up", ProjectID: "p1", OwnerKind: models.OwnerMonitor, Name: "Operational", Order: 1, IsOperationalState: true},
		{ID: "down", ProjectID: "p1", OwnerKind: models.OwnerMonitor, Name: "Major Outage", Order: 4},
		{ID: "inc-created", ProjectID: "p1", OwnerKind: models.OwnerIncident, Name: "Identified", Order: 1, IsCreatedState: true},
		{ID: "inc-ack", ProjectID: "p1", OwnerKind: models.OwnerIncident, Name: "Acknowledged", Order: 2, IsAcknowledgedState: true},
		{ID: "inc-resolved", ProjectID: "p1", OwnerKind: models.OwnerIncident, Name: "Resolved", Order: 3, IsResolvedState: true},
		{ID: "alert-created", ProjectID: "p1", OwnerKind: models.OwnerAlert, Name: "Identified", Order: 1, IsCreatedState: true},
		{ID: "alert-ack", ProjectID: "p1", OwnerKind: models.OwnerAlert, Name: "Acknowledged", Order: 2, IsAcknowledgedState: true},
		{ID: "alert-resolved", ProjectID: "p1", OwnerKind: models.OwnerAlert, Name: "Resolved", Order: 3, IsResolvedState: true},
		{ID: "sm-scheduled", ProjectID: "p1", OwnerKind: models.OwnerScheduledMaintenance, Name: "Scheduled", Order: 1, IsScheduledState: true},
		{ID: "sm-ongoing", ProjectID: "p1", OwnerKind: models.OwnerScheduledMaintenance, Name: "Ongoing", Order: 2, IsOngoingState: true},
	} {
		store.PutState(s)
	}
	if withSeverity {
		store.PutSeverity(models.Severity{ID: "sev-minor", ProjectID: "p1", Name: "Minor", Order: 3})
		store.PutSeverity(models.Severity{ID: "sev-critical", ProjectID: "p1", Name: "Critical", Order: 1})
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := repository.NewMemory().WithClock(func() time.Time { return now })
	seedStates(store, true)
	mon := store.PutMonitor(models.Monitor{ID: "mon-1", ProjectID: "p1", Name: "api", Type: models.MonitorAPI, CurrentStatusID: "up"})
	tl := timeline.NewManager(store, &events.Inline{}, nil, timeline.WithClock(func() time.Time { return now }))
	policies := &fakePolicies{}
	ctrl := NewController(store, tl, policies, nil).WithClock(func() time.Time { return now })
	return &env{store: store, timeline: tl, policies: policies, ctrl: ctrl, monitor: mon}
}

func downCriteria() models.CriteriaInstance {
	return models.CriteriaInstance{
		ID:                  "crit-down",
		Name:                "Offline",
		ChangeMonitorStatus: true,
		MonitorStatusID:     "down",
		CreateIncidents:     true,
		Incidents: []models.IncidentTemplate{{
			ID:                  "tpl-1",
			Title:               "API is down",
			AutoResolveIncident: true,
			OnCallPolicyIDs:     []string{"policy-1"},
			RemediationNotes:    "restart it",
		}},
	}
}

func probeResult() models.CheckResult {
	return &models.ProbeResult{CheckEnvelope: models.CheckEnvelope{MonitorID: "mon-1", ProbeID: "probe-9", CheckedAt: now}}
}

func (e *env) monitorNow(t *testing.T) *models.Monitor {
	t.Helper()
	m, err := e.store.GetMonitor(context.Background(), e.monitor.ID)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestApplyCreatesIncidentOnce(t *testing.T) {
	e := newEnv(t)
	inst := downCriteria()
	steps := models.MonitorSteps{Steps: []models.MonitorStep{{ID: "s1", Criteria: []models.CriteriaInstance{inst}}}}
	in := Input{
		Monitor:     e.monitor,
		Result:      probeResult(),
		Match:       &criteria.Match{Instance: &inst, RootCause: "API offline"},
		AutoResolve: criteria.BuildAutoResolveMap(steps),
	}

	first, err := e.ctrl.Apply(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(first.Created) != 1 || !first.StatusChanged {
		t.Fatalf("first tick should change status and create one incident: %+v", first)
	}
	inc := first.Created[0]
	if inc.Number != 1 || !inc.IsCreatedAutomatically || inc.SeverityID != "sev-critical" ||
		inc.CreatedByProbeID != "probe-9" || inc.RemediationNotes != "restart it" ||
		inc.Key() != (models.DedupKey{CriteriaID: "crit-down", TemplateID: "tpl-1"}) {
		t.Fatalf("unexpected incident %+v", inc)
	}
	stored, _ := e.store.GetIncident(context.Background(), inc.ID)
	if stored.CurrentStateID != "inc-created" {
		t.Fatalf("incident should start in created state, got %q", stored.CurrentStateID)
	}
	if len(e.policies.calls) != 1 || e.policies.calls[0].Event != models.EventIncidentCreated {
		t.Fatalf("policy should be triggered once: %+v", e.policies.calls)
	}

	in.Monitor = e.monitorNow(t)
	second, err := e.ctrl.Apply(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	if len(second.Created) != 0 || second.Deduplicated != 1 || second.StatusChanged {
		t.Fatalf("second tick must be a no-op: %+v", second)
	}
	open, _ := e.store.FindOpenIncidentsForMonitor(context.Background(), "p1", "mon-1")
	if len(open) != 1 {
		t.Fatalf("exactly one open incident expected, got %d", len(open))
	}
	if len(e.policies.calls) != 1 {
		t.Fatalf("dedup must not page again: %+v", e.policies.calls)
	}
}

func TestApplyAutoResolve(t *testing.T) {
	tests := []struct {
		name        string
		match       *models.CriteriaInstance
		autoResolve bool
		wantClosed  bool
	}{
		{name: "other criteria matching", match: &models.CriteriaInstance{ID: "crit-up", Name: "Online"}, autoResolve: true, wantClosed: true},
		{name: "nothing matching", match: nil, autoResolve: true, wantClosed: true},
		{name: "own criteria still matching", match: &models.CriteriaInstance{ID: "crit-down"}, autoResolve: true, wantClosed: false},
		{name: "template without auto-resolve", match: &models.CriteriaInstance{ID: "crit-up"}, autoResolve: false, wantClosed: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			e.store.PutIncident(models.Incident{
				ID: "inc-1", ProjectID: "p1", Number: 1, MonitorIDs: []string{"mon-1"},
				CurrentStateID: "inc-created", CreatedCriteriaID: "crit-down", CreatedIncidentTemplateID: "tpl-1",
			})
			inst := downCriteria()
			inst.Incidents[0].AutoResolveIncident = tt.autoResolve
			steps := models.MonitorSteps{Steps: []models.MonitorStep{{ID: "s1", Criteria: []models.CriteriaInstance{inst}}}}

			in := Input{Monitor: e.monitor, Result: probeResult(), AutoResolve: criteria.BuildAutoResolveMap(steps)}
			if tt.match != nil {
				in.Match = &criteria.Match{Instance: tt.match, RootCause: "match"}
			}
			out, err := e.ctrl.Apply(context.Background(), in)
			if err != nil {
				t.Fatal(err)
			}
			inc, _ := e.store.GetIncident(context.Background(), "inc-1")
			closed := inc.CurrentStateID == "inc-resolved"
			if closed != tt.wantClosed || (len(out.Resolved) == 1) != tt.wantClosed {
				t.Fatalf("closed=%v resolved=%v, want closed=%v", closed, out.Resolved, tt.wantClosed)
			}
			if closed {
				entry, _ := e.timeline.Current(context.Background(), models.OwnerRef{Kind: models.OwnerIncident, ID: "inc-1"})
				if entry == nil || !strings.HasPrefix(entry.RootCause, autoResolvePrefix) {
					t.Fatalf("resolution should carry the auto-resolve root cause, got %+v", entry)
				}
			}
		})
	}
}

func TestApplyDefaultStatus(t *testing.T) {
	e := newEnv(t)
	e.store.PutMonitor(models.Monitor{ID: "mon-1", ProjectID: "p1", Type: models.MonitorAPI, CurrentStatusID: "down"})
	out, err := e.ctrl.Apply(context.Background(), Input{Monitor: e.monitorNow(t), Result: probeResult(), DefaultStatusID: "up"})
	if err != nil {
		t.Fatal(err)
	}
	if !out.StatusChanged || e.monitorNow(t).CurrentStatusID != "up" {
		t.Fatalf("monitor should return to the default status: %+v", out)
	}
	entry, _ := e.timeline.Current(context.Background(), e.monitor.Owner())
	if entry.RootCause != DefaultStatusReason {
		t.Fatalf("unexpected root cause %q", entry.RootCause)
	}
}

func TestApplyFirstTimelineEntryWithSameStatus(t *testing.T) {
	e := newEnv(t)
	inst := models.CriteriaInstance{ID: "crit-up", ChangeMonitorStatus: true, MonitorStatusID: "up"}
	out, err := e.ctrl.Apply(context.Background(), Input{Monitor: e.monitor, Result: probeResult(), Match: &criteria.Match{Instance: &inst}})
	if err != nil {
		t.Fatal(err)
	}
	if !out.StatusChanged {
		t.Fatal("a monitor without timeline gets its first entry even if the status matches")
	}
	out, _ = e.ctrl.Apply(context.Background(), Input{Monitor: e.monitorNow(t), Result: probeResult(), Match: &criteria.Match{Instance: &inst}})
	if out.StatusChanged {
		t.Fatal("second identical status must not be recorded")
	}
}

func TestApplyConfigurationErrors(t *testing.T) {
	store := repository.NewMemory()
	store.PutState(models.State{ID: "inc-created", ProjectID: "p1", OwnerKind: models.OwnerIncident, IsCreatedState: true})
	mon := store.PutMonitor(models.Monitor{ID: "mon-1", ProjectID: "p1"})
	tl := timeline.NewManager(store, &events.Inline{}, nil)
	ctrl := NewController(store, tl, nil, nil)

	inst := downCriteria()
	inst.ChangeMonitorStatus = false
	_, err := ctrl.Apply(context.Background(), Input{Monitor: mon, Result: probeResult(), Match: &criteria.Match{Instance: &inst}})
	if !models.IsConfigurationError(err) {
		t.Fatalf("missing severity should be a configuration error, got %v", err)
	}

	store.PutIncident(models.Incident{ID: "inc-1", ProjectID: "p1", MonitorIDs: []string{"mon-1"}, CurrentStateID: "inc-created", CreatedCriteriaID: "crit-down", CreatedIncidentTemplateID: "tpl-1"})
	_, err = ctrl.Apply(context.Background(), Input{Monitor: mon, Result: probeResult(), AutoResolve: criteria.AutoResolveMap{"crit-down": {"tpl-1": {}}}})
	if !models.IsConfigurationError(err) {
		t.Fatalf("missing resolved state should be a configuration error, got %v", err)
	}
}

func TestApplyPolicyFailureDoesNotFailTick(t *testing.T) {
	e := newEnv(t)
	e.policies.err = errors.New("policy gone")
	inst := downCriteria()
	out, err := e.ctrl.Apply(context.Background(), Input{Monitor: e.monitor, Result: probeResult(), Match: &criteria.Match{Instance: &inst}})
	if err != nil || len(out.Created) != 1 {
		t.Fatalf("incident should still be created: out=%+v err=%v", out, err)
	}
}

func TestTelemetryQueryFromLogResult(t *testing.T) {
	q := telemetryQuery(&models.LogQueryResult{LogQuery: []byte(`{"severity":"error"}`)})
	if q == nil || q.Kind != models.KindLogQuery || string(q.Query) != `{"severity":"error"}` {
		t.Fatalf("unexpected telemetry query %+v", q)
	}
	if telemetryQuery(probeResult()) != nil {
		t.Fatal("probe results carry no telemetry query")
	}
}
