package criteria

import (
	"context"
	"strings"
	"testing"

	"reacher-incidents/models"
)

func apiMonitor(current string, instances ...models.CriteriaInstance) *models.Monitor {
	return &models.Monitor{
		ID:              "mon-1",
		Type:            models.MonitorAPI,
		CurrentStatusID: current,
		Steps: models.MonitorSteps{
			DefaultMonitorStatusID: "operational",
			Steps:                  []models.MonitorStep{{ID: "step-1", Criteria: instances}},
		},
	}
}

func TestAllConditionCombinesCauses(t *testing.T) {
	e := NewEvaluator(newTestPredicates(nil), nil)
	inst := models.CriteriaInstance{
		ID:              "down",
		Name:            "API is down",
		FilterCondition: models.FilterConditionAll,
		Filters: []models.CriteriaFilter{
			filter(models.CheckResponseStatusCode, models.FilterGreaterThanOrEqualTo, "500"),
			filter(models.CheckResponseTime, models.FilterGreaterThan, "1000"),
		},
	}
	mon := apiMonitor("operational", inst)

	slow := &models.ProbeResult{IsOnline: true, ResponseCode: 502, ResponseTimeMs: 1500}
	slow.FailureCause = "upstream reset"
	out := e.Evaluate(context.Background(), mon, slow)
	if out.Match == nil || out.Match.CriteriaID() != "down" {
		t.Fatalf("expected match, got %+v", out)
	}
	rc := out.Match.RootCause
	for _, want := range []string{"**Criteria Name**: API is down", "Response status code 502", "Response time 1500ms", "**Cause**: upstream reset"} {
		if !strings.Contains(rc, want) {
			t.Errorf("root cause missing %q:\n%s", want, rc)
		}
	}
	if out.DefaultStatusID != "" {
		t.Fatal("a match never reports a default status")
	}

	// um filtro falha: nenhum match, volta para o status padrão
	fast := &models.ProbeResult{IsOnline: true, ResponseCode: 502, ResponseTimeMs: 100}
	mon = apiMonitor("major-outage", inst)
	out = e.Evaluate(context.Background(), mon, fast)
	if out.Match != nil {
		t.Fatalf("expected no match, got %+v", out.Match)
	}
	if out.DefaultStatusID != "operational" {
		t.Fatalf("expected change to default, got %q", out.DefaultStatusID)
	}

	// já no status padrão: nada a fazer
	mon = apiMonitor("operational", inst)
	if out := e.Evaluate(context.Background(), mon, fast); out.DefaultStatusID != "" {
		t.Fatalf("default equal to current must not be reported, got %q", out.DefaultStatusID)
	}
}

func TestAnyConditionUsesFirstMetCause(t *testing.T) {
	e := NewEvaluator(newTestPredicates(nil), nil)
	inst := models.CriteriaInstance{
		ID:              "any",
		Name:            "Something is wrong",
		FilterCondition: models.FilterConditionAny,
		Filters: []models.CriteriaFilter{
			filter(models.CheckIsOnline, models.FilterFalse, ""),
			filter(models.CheckResponseStatusCode, models.FilterEqualTo, "404"),
			filter(models.CheckResponseBody, models.FilterContains, "missing"),
		},
	}
	res := &models.ProbeResult{IsOnline: true, ResponseCode: 404, ResponseBody: "page missing"}
	m := e.EvaluateStep(context.Background(), apiMonitor("x"), res, []models.CriteriaInstance{inst})
	if m == nil {
		t.Fatal("expected a match")
	}
	if !strings.Contains(m.RootCause, "Response status code 404") || strings.Contains(m.RootCause, "Response body") {
		t.Fatalf("Any must carry only the first met cause:\n%s", m.RootCause)
	}
}

func TestFirstMatchingInstanceWins(t *testing.T) {
	e := NewEvaluator(newTestPredicates(nil), nil)
	online := filter(models.CheckIsOnline, models.FilterTrue, "")
	instances := []models.CriteriaInstance{
		{ID: "never", FilterCondition: models.FilterConditionAll, Filters: []models.CriteriaFilter{filter(models.CheckIsOnline, models.FilterFalse, "")}},
		{ID: "first", FilterCondition: models.FilterConditionAll, Filters: []models.CriteriaFilter{online}},
		{ID: "second", FilterCondition: models.FilterConditionAll, Filters: []models.CriteriaFilter{online}},
		{ID: "empty", FilterCondition: models.FilterConditionAll},
	}
	m := e.EvaluateStep(context.Background(), apiMonitor("x"), &models.ProbeResult{IsOnline: true}, instances)
	if m.CriteriaID() != "first" {
		t.Fatalf("expected first, got %q", m.CriteriaID())
	}
}

func TestSelectStep(t *testing.T) {
	steps := models.MonitorSteps{Steps: []models.MonitorStep{{ID: "a"}, {ID: "b"}}}

	step, next := SelectStep(steps, &models.ProbeResult{})
	if step.ID != "a" || next != "b" {
		t.Fatalf("default step: %v %q", step.ID, next)
	}
	res := &models.ProbeResult{}
	res.MonitorStepID = "b"
	step, next = SelectStep(steps, res)
	if step.ID != "b" || next != "" {
		t.Fatalf("named step: %v %q", step.ID, next)
	}
	res.MonitorStepID = "zz"
	if step, _ := SelectStep(steps, res); step != nil {
		t.Fatal("unknown step must select nothing")
	}
}

func TestBuildAutoResolveMap(t *testing.T) {
	steps := models.MonitorSteps{Steps: []models.MonitorStep{
		{ID: "s1", Criteria: []models.CriteriaInstance{
			{ID: "c1", Incidents: []models.IncidentTemplate{{ID: "t1", AutoResolveIncident: true}, {ID: "t2"}}},
		}},
		{ID: "s2", Criteria: []models.CriteriaInstance{
			{ID: "c2", Incidents: []models.IncidentTemplate{{ID: "t3", AutoResolveIncident: true}}},
			{ID: "c3"},
		}},
	}}
	m := BuildAutoResolveMap(steps)
	if !m.Contains("c1", "t1") || m.Contains("c1", "t2") || !m.Contains("c2", "t3") || m.Contains("c3", "t1") {
		t.Fatalf("unexpected map %v", m)
	}
}
