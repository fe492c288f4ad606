package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"reacher-incidents/api/middleware"
	"reacher-incidents/api/v1/checks"
	"reacher-incidents/api/v1/executions"
	"reacher-incidents/api/v1/health"
	"reacher-incidents/api/v1/owners"
	"reacher-incidents/api/v1/probe"
	"reacher-incidents/api/v1/timelines"
	"reacher-incidents/events"
	"reacher-incidents/models"
	"reacher-incidents/repository"
	"reacher-incidents/services/v1/criteria"
	"reacher-incidents/services/v1/escalation"
	"reacher-incidents/services/v1/incident"
	"reacher-incidents/services/v1/monitor"
	"reacher-incidents/services/v1/timeline"
)

var secret = []byte("router-secret")

type server struct {
	store  *repository.Memory
	router *gin.Engine
	exec   *countingExecutor
}

type countingExecutor struct{ n int }

func (c *countingExecutor) PublishRuleExecution(context.Context, events.RuleExecution) error {
	c.n++
	return nil
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemory()
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
		{ID: "p2-down", ProjectID: "p2", OwnerKind: models.OwnerMonitor, Name: "Major Outage", Order: 4},
	} {
		store.PutState(s)
	}
	store.PutSeverity(models.Severity{ID: "sev-1", ProjectID: "p1", Name: "Critical", Order: 1})
	store.PutPolicy(models.OnCallPolicy{ID: "pol-1", ProjectID: "p1", Name: "primary"})
	store.PutRule(models.EscalationRule{ID: "rule-1", ProjectID: "p1", PolicyID: "pol-1", Order: 1, EscalateAfterMinutes: 5})
	store.PutMonitor(models.Monitor{
		ID: "mon-1", ProjectID: "p1", Name: "api", Type: models.MonitorAPI, CurrentStatusID: "up",
		Steps: models.MonitorSteps{
			DefaultMonitorStatusID: "up",
			Steps: []models.MonitorStep{{ID: "s1", Criteria: []models.CriteriaInstance{{
				ID:                  "crit-5xx",
				FilterCondition:     models.FilterConditionAll,
				Filters:             []models.CriteriaFilter{{CheckOn: models.CheckResponseStatusCode, FilterType: models.FilterGreaterThan, Value: "499"}},
				ChangeMonitorStatus: true,
				MonitorStatusID:     "down",
				CreateIncidents:     true,
				Incidents:           []models.IncidentTemplate{{ID: "tpl-1", Title: "API returns 5xx", AutoResolveIncident: true, OnCallPolicyIDs: []string{"pol-1"}}},
			}}}},
		},
	})
	store.PutMonitor(models.Monitor{ID: "mon-other", ProjectID: "p2", Type: models.MonitorAPI})
	store.PutMonitor(models.Monitor{ID: "mon-hb", ProjectID: "p1", Type: models.MonitorIncomingRequest, IncomingSecretKey: "hb-key"})

	tl := timeline.NewManager(store, &events.Inline{}, nil)
	states := incident.NewOwnerStates(store, tl)
	exec := &countingExecutor{}
	sched := escalation.NewScheduler(store, states, exec, nil)
	ctrl := incident.NewController(store, tl, sched, nil)
	eval := criteria.NewEvaluator(criteria.NewPredicates(criteria.GojaSandbox{}, nil), nil)
	mr := miniredis.RunT(t)
	checkLog := monitor.NewRedisCheckLog(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	res := monitor.NewResource(store, eval, ctrl, nil, monitor.WithCheckLog(checkLog))

	router := NewRouter(Handlers{
		Health:    &health.Handler{Checks: map[string]health.Check{"store": func(context.Context) error { return nil }}},
		Probe:     &probe.Handler{Pipeline: res, Monitors: store},
		Timelines: &timelines.Handler{Timeline: tl, Entries: store},
		Owners: &owners.Handler{
			States:      states,
			Lookup:      store,
			Alerts:      incident.NewAlerts(store, tl, sched, nil),
			Maintenance: incident.NewMaintenance(store, tl),
		},
		Executions: &executions.Handler{Logs: store},
		Checks:     &checks.Handler{Log: checkLog, Monitors: store},
	}, Options{JWTSecret: secret})
	return &server{store: store, router: router, exec: exec}
}

func (s *server) do(t *testing.T, method, path, project string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if project != "" {
		token, err := middleware.IssueToken(secret, project, "user-1", time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func probePayload(monitorID string, code int) map[string]any {
	return map[string]any{"kind": "probe", "data": map[string]any{"monitorId": monitorID, "isOnline": code < 500, "responseCode": code}}
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	w := s.do(t, http.MethodGet, "/api/v1/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodGet, "/metrics", "", nil); w.Code != http.StatusOK {
		t.Fatalf("metrics endpoint: %d", w.Code)
	}
}

func TestProbeResultOpensIncidentAndAckStopsPaging(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	w := s.do(t, http.MethodPost, "/api/v1/probe/results", "p1", probePayload("mon-1", 503))
	if w.Code != http.StatusOK {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	resp := decode[monitor.IngestResponse](t, w)
	if !resp.Processed || resp.CriteriaMetID != "crit-5xx" || len(resp.Incidents.Created) != 1 {
		t.Fatalf("unexpected ingest response %+v", resp)
	}
	incID := resp.Incidents.Created[0].ID
	if s.exec.n != 1 {
		t.Fatalf("on-call policy should page rule 1 once, got %d", s.exec.n)
	}

	// segundo resultado igual: deduplicado
	w = s.do(t, http.MethodPost, "/api/v1/probe/results", "p1", probePayload("mon-1", 503))
	if resp := decode[monitor.IngestResponse](t, w); len(resp.Incidents.Created) != 0 || resp.Incidents.Deduplicated != 1 {
		t.Fatalf("second result should dedup: %+v", resp)
	}

	w = s.do(t, http.MethodPost, "/api/v1/incidents/"+incID+"/acknowledge", "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("ack: %d %s", w.Code, w.Body.String())
	}
	inc, _ := s.store.GetIncident(ctx, incID)
	if inc.CurrentStateID != "inc-ack" {
		t.Fatalf("incident should be acknowledged, state %q", inc.CurrentStateID)
	}

	w = s.do(t, http.MethodGet, "/api/v1/execution-logs?status=Executing", "p1", nil)
	list := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if list.Count != 1 {
		t.Fatalf("expected one executing log, got %s", w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/v1/incidents/"+incID+"/acknowledge", "p2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("other project must not see the incident: %d", w.Code)
	}

	// recuperou: o incidente é resolvido sozinho
	w = s.do(t, http.MethodPost, "/api/v1/probe/results", "p1", probePayload("mon-1", 200))
	if resp := decode[monitor.IngestResponse](t, w); len(resp.Incidents.Resolved) != 1 {
		t.Fatalf("recovery should auto-resolve: %+v", resp)
	}
}

func TestProbeResultErrors(t *testing.T) {
	s := newServer(t)
	cases := []struct {
		name    string
		project string
		body    any
		want    int
	}{
		{"no token", "", probePayload("mon-1", 200), http.StatusUnauthorized},
		{"unknown kind", "p1", map[string]any{"kind": "carrier-pigeon"}, http.StatusBadRequest},
		{"unknown monitor", "p1", probePayload("ghost", 200), http.StatusNotFound},
		{"foreign monitor", "p1", probePayload("mon-other", 200), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := s.do(t, http.MethodPost, "/api/v1/probe/results", tc.project, tc.body); w.Code != tc.want {
				t.Fatalf("got %d %s, want %d", w.Code, w.Body.String(), tc.want)
			}
		})
	}
}

func TestTimelineEndpoints(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	owner := map[string]any{"ownerKind": "Monitor", "ownerId": "mon-1"}
	insert := func(state string, at time.Time) *httptest.ResponseRecorder {
		body := map[string]any{"stateId": state, "startsAt": at}
		for k, v := range owner {
			body[k] = v
		}
		return s.do(t, http.MethodPost, "/api/v1/timelines", "p1", body)
	}

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	if w := insert("up", base); w.Code != http.StatusCreated {
		t.Fatalf("first insert: %d %s", w.Code, w.Body.String())
	}
	if w := insert("up", base.Add(time.Minute)); w.Code != http.StatusOK || decode[map[string]any](t, w)["recorded"] != false {
		t.Fatalf("same state is a no-op: %d %s", w.Code, w.Body.String())
	}
	w := insert("down", base.Add(10*time.Minute))
	if w.Code != http.StatusCreated {
		t.Fatalf("second insert: %d %s", w.Code, w.Body.String())
	}
	created := decode[struct {
		Entry models.TimelineEntry `json:"entry"`
	}](t, w)

	if w := s.do(t, http.MethodPost, "/api/v1/timelines", "p1", map[string]any{"ownerKind": "Monitor"}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields should be 400, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/v1/timelines/"+created.Entry.ID, "p2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign project delete should be 404, got %d", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/v1/timelines/"+created.Entry.ID, "p1", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", w.Code, w.Body.String())
	}
	entries, _ := s.store.ListTimeline(ctx, models.OwnerRef{Kind: models.OwnerMonitor, ID: "mon-1"})
	if len(entries) != 1 || entries[0].EndsAt != nil {
		t.Fatalf("remaining entry should be open again: %+v", entries)
	}
	if w := s.do(t, http.MethodDelete, "/api/v1/timelines/"+entries[0].ID, "p1", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("deleting the only entry should be 400, got %d %s", w.Code, w.Body.String())
	}
}

func TestTimelineInsertOnForeignOwner(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	body := map[string]any{"ownerKind": "Monitor", "ownerId": "mon-1", "stateId": "p2-down"}

	if w := s.do(t, http.MethodPost, "/api/v1/timelines", "p2", body); w.Code != http.StatusNotFound {
		t.Fatalf("p2 must not write on a p1 monitor: %d %s", w.Code, w.Body.String())
	}
	mon, _ := s.store.GetMonitor(ctx, "mon-1")
	if mon.CurrentStatusID != "up" {
		t.Fatalf("monitor status changed to %q", mon.CurrentStatusID)
	}
	entries, _ := s.store.ListTimeline(ctx, models.OwnerRef{Kind: models.OwnerMonitor, ID: "mon-1"})
	if len(entries) != 0 {
		t.Fatalf("nothing should be recorded, got %+v", entries)
	}
	// token certo, estado de outro projeto
	if w := s.do(t, http.MethodPost, "/api/v1/timelines", "p1", body); w.Code != http.StatusBadRequest {
		t.Fatalf("foreign state should be 400, got %d %s", w.Code, w.Body.String())
	}
}

func TestMonitorChecksEndpoint(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/monitors/mon-1/checks", "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if empty := decode[map[string]any](t, w); empty["last"] != nil {
		t.Fatalf("monitor without checks has no last result: %s", w.Body.String())
	}

	for _, code := range []int{200, 503} {
		if w := s.do(t, http.MethodPost, "/api/v1/probe/results", "p1", probePayload("mon-1", code)); w.Code != http.StatusOK {
			t.Fatalf("post result: %d %s", w.Code, w.Body.String())
		}
	}
	w = s.do(t, http.MethodGet, "/api/v1/monitors/mon-1/checks?limit=1", "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	got := decode[struct {
		Last     map[string]any         `json:"last"`
		History  []monitor.HistoryEntry `json:"history"`
		Counters map[string]int64       `json:"counters"`
	}](t, w)
	if got.Last == nil {
		t.Fatalf("last result missing: %s", w.Body.String())
	}
	if len(got.History) != 1 || got.History[0].Status != "offline" {
		t.Fatalf("limit=1 should return the latest check: %+v", got.History)
	}
	if got.Counters["total_checks"] != 2 || got.Counters["online"] != 1 || got.Counters["offline"] != 1 {
		t.Fatalf("unexpected counters %v", got.Counters)
	}

	cases := []struct {
		name, path, project string
		want                int
	}{
		{"foreign project", "/api/v1/monitors/mon-1/checks", "p2", http.StatusNotFound},
		{"unknown monitor", "/api/v1/monitors/ghost/checks", "p1", http.StatusNotFound},
		{"bad limit", "/api/v1/monitors/mon-1/checks?limit=0", "p1", http.StatusBadRequest},
		{"bad day", "/api/v1/monitors/mon-1/checks?day=yesterday", "p1", http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := s.do(t, http.MethodGet, tc.path, tc.project, nil); w.Code != tc.want {
				t.Fatalf("got %d %s, want %d", w.Code, w.Body.String(), tc.want)
			}
		})
	}
}

func TestIncidentStatusEndpoint(t *testing.T) {
	s := newServer(t)
	inc := s.store.PutIncident(models.Incident{ID: "inc-9", ProjectID: "p1", Number: 9, CurrentStateID: "inc-created"})
	status := func() map[string]any {
		t.Helper()
		w := s.do(t, http.MethodGet, "/api/v1/incidents/"+inc.ID+"/status", "p1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status: %d %s", w.Code, w.Body.String())
		}
		return decode[map[string]any](t, w)
	}

	if got := status(); got["acknowledged"] != false || got["resolved"] != false {
		t.Fatalf("fresh incident: %v", got)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/incidents/"+inc.ID+"/resolve", "p1", nil); w.Code != http.StatusOK {
		t.Fatalf("resolve: %d %s", w.Code, w.Body.String())
	}
	if got := status(); got["acknowledged"] != true || got["resolved"] != true {
		t.Fatalf("resolved incident: %v", got)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/incidents/"+inc.ID+"/status", "p2", nil); w.Code != http.StatusNotFound {
		t.Fatalf("foreign project: %d", w.Code)
	}
}

func TestIncomingHeartbeat(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/incoming/hb-key", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	mon, _ := s.store.GetMonitor(context.Background(), "mon-hb")
	if mon.IncomingRequestReceivedAt == nil {
		t.Fatal("heartbeat receipt not recorded")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/incoming/nope", nil)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown key should be 404, got %d", w.Code)
	}
}

func TestStartServerStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, "0", http.NotFoundHandler()) }()
	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestAlertAndMaintenanceEndpoints(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	w := s.do(t, http.MethodPost, "/api/v1/alerts", "p1", map[string]any{"title": "disk almost full", "onCallPolicyIds": []string{"pol-1"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create alert: %d %s", w.Code, w.Body.String())
	}
	alert := decode[models.Alert](t, w)
	if alert.ProjectID != "p1" || alert.IsCreatedAutomatically || s.exec.n != 1 {
		t.Fatalf("unexpected alert %+v (pages %d)", alert, s.exec.n)
	}
	if w := s.do(t, http.MethodPost, "/api/v1/alerts/"+alert.ID+"/resolve", "p1", nil); w.Code != http.StatusOK {
		t.Fatalf("resolve alert: %d %s", w.Code, w.Body.String())
	}
	stored, _ := s.store.GetAlert(ctx, alert.ID)
	if stored.CurrentStateID != "alert-resolved" {
		t.Fatalf("alert state %q", stored.CurrentStateID)
	}

	start := time.Now().UTC().Add(time.Hour)
	w = s.do(t, http.MethodPost, "/api/v1/maintenance", "p1", map[string]any{"title": "db upgrade", "startsAt": start, "endsAt": start.Add(time.Hour)})
	if w.Code != http.StatusCreated {
		t.Fatalf("create maintenance: %d %s", w.Code, w.Body.String())
	}
	event := decode[models.ScheduledMaintenance](t, w)
	if event.CurrentStateID != "sm-scheduled" {
		t.Fatalf("unexpected event %+v", event)
	}
	w = s.do(t, http.MethodPost, "/api/v1/maintenance/"+event.ID+"/state", "p1", map[string]any{"stateId": "sm-ongoing"})
	if w.Code != http.StatusOK || decode[map[string]any](t, w)["changed"] != true {
		t.Fatalf("change state: %d %s", w.Code, w.Body.String())
	}
	if w := s.do(t, http.MethodPost, "/api/v1/maintenance/"+event.ID+"/state", "p2", map[string]any{"stateId": "sm-ongoing"}); w.Code != http.StatusNotFound {
		t.Fatalf("foreign project: %d", w.Code)
	}
}
