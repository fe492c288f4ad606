package metrics

import (
	"context"
	"testing"
	"time"

	"reacher-incidents/events"
	"reacher-incidents/models"
	"reacher-incidents/repository"
	"reacher-incidents/services/v1/timeline"
)

var t0 = time.Date(2024, 5, 2, 8, 0, 0, 0, time.UTC)

func setup(t *testing.T, now time.Time) (*repository.Memory, *timeline.Manager, *Recorder) {
	t.Helper()
	store := repository.NewMemory()
	for _, s := range []models.State{
		{ID: "created", ProjectID: "p1", OwnerKind: models.OwnerIncident, Name: "Created", Order: 1, IsCreatedState: true},
		{ID: "ack", ProjectID: "p1", OwnerKind: models.OwnerIncident, Name: "Acknowledged", Order: 2, IsAcknowledgedState: true},
		{ID: "resolved", ProjectID: "p1", OwnerKind: models.OwnerIncident, Name: "Resolved", Order: 3, IsResolvedState: true},
		{ID: "up", ProjectID: "p1", OwnerKind: models.OwnerMonitor, Name: "Operational", Order: 1, IsOperationalState: true},
		{ID: "down", ProjectID: "p1", OwnerKind: models.OwnerMonitor, Name: "Offline", Order: 2},
	} {
		store.PutState(s)
	}
	store.PutIncident(models.Incident{ID: "inc-1", ProjectID: "p1"})
	store.PutMonitor(models.Monitor{ID: "mon-1", ProjectID: "p1", Type: models.MonitorAPI})

	clock := func() time.Time { return now }
	rec := NewRecorder(store, nil).WithClock(clock)
	mgr := timeline.NewManager(store, &events.Inline{}, nil, timeline.WithMetrics(rec), timeline.WithClock(clock))
	return store, mgr, rec
}

func byName(points []models.MetricPoint) map[models.MetricName]models.MetricPoint {
	out := map[models.MetricName]models.MetricPoint{}
	for _, p := range points {
		out[p.Name] = p
	}
	return out
}

func TestRefreshIncidentLifecycle(t *testing.T) {
	store, mgr, _ := setup(t, t0.Add(2*time.Hour))
	ctx := context.Background()
	owner := models.OwnerRef{Kind: models.OwnerIncident, ID: "inc-1"}
	insert := func(state string, at time.Time) {
		t.Helper()
		if _, err := mgr.Insert(ctx, timeline.InsertInput{Owner: owner, ProjectID: "p1", StateID: state, At: at}); err != nil {
			t.Fatal(err)
		}
	}

	insert("created", t0)
	points, _ := store.ListMetrics(ctx, owner)
	got := byName(points)
	if got[models.MetricIncidentCount].Value != 1 || !got[models.MetricIncidentCount].Time.Equal(t0) {
		t.Fatalf("unexpected count point %+v", got[models.MetricIncidentCount])
	}
	if _, ok := got[models.MetricTimeToAcknowledge]; ok {
		t.Fatal("no ack yet")
	}
	if d := got[models.MetricDuration].Value; d != (2 * time.Hour).Seconds() {
		t.Fatalf("open incident lasts until now, got %v", d)
	}

	insert("ack", t0.Add(5*time.Minute))
	insert("resolved", t0.Add(30*time.Minute))
	points, _ = store.ListMetrics(ctx, owner)
	if len(points) != 4 {
		t.Fatalf("points are replaced, not accumulated: %d", len(points))
	}
	got = byName(points)
	if got[models.MetricTimeToAcknowledge].Value != 300 {
		t.Fatalf("time to ack %v", got[models.MetricTimeToAcknowledge].Value)
	}
	if got[models.MetricTimeToResolve].Value != 1800 || got[models.MetricDuration].Value != 1800 {
		t.Fatalf("resolved incident: ttr=%v duration=%v", got[models.MetricTimeToResolve].Value, got[models.MetricDuration].Value)
	}
}

func TestRefreshMonitorDuration(t *testing.T) {
	store, mgr, _ := setup(t, t0.Add(time.Hour))
	ctx := context.Background()
	owner := models.OwnerRef{Kind: models.OwnerMonitor, ID: "mon-1"}
	for _, in := range []struct {
		state string
		at    time.Time
	}{{"up", t0}, {"down", t0.Add(40 * time.Minute)}} {
		if _, err := mgr.Insert(ctx, timeline.InsertInput{Owner: owner, ProjectID: "p1", StateID: in.state, At: in.at}); err != nil {
			t.Fatal(err)
		}
	}
	points, _ := store.ListMetrics(ctx, owner)
	if len(points) != 1 {
		t.Fatalf("expected one duration point, got %+v", points)
	}
	p := points[0]
	if p.Name != models.MetricDuration || p.Value != (20*time.Minute).Seconds() || p.Attributes["stateId"] != "down" {
		t.Fatalf("unexpected point %+v", p)
	}
}

func TestRefreshEmptyTimelineClearsPoints(t *testing.T) {
	store, _, rec := setup(t, t0)
	ctx := context.Background()
	owner := models.OwnerRef{Kind: models.OwnerIncident, ID: "inc-1"}
	if err := store.AppendMetrics(ctx, []models.MetricPoint{{Name: models.MetricDuration, ProjectID: "p1", Owner: owner, Value: 9, Time: t0}}); err != nil {
		t.Fatal(err)
	}
	if err := rec.Refresh(ctx, owner); err != nil {
		t.Fatal(err)
	}
	if points, _ := store.ListMetrics(ctx, owner); len(points) != 0 {
		t.Fatalf("stale points left: %+v", points)
	}
}

func TestCheckPoints(t *testing.T) {
	mon := &models.Monitor{ID: "mon-1", ProjectID: "p1", Type: models.MonitorServer}
	cpu, mem := 42.5, 80.0
	checked := t0.Add(time.Minute)

	cases := []struct {
		name   string
		result models.CheckResult
		want   map[models.MetricName]float64
	}{
		{
			name:   "probe online",
			result: &models.ProbeResult{CheckEnvelope: models.CheckEnvelope{ProbeID: "probe-1", CheckedAt: checked}, IsOnline: true, ResponseCode: 200, ResponseTimeMs: 120},
			want:   map[models.MetricName]float64{models.MetricIsOnline: 1, models.MetricResponseStatusCode: 200, models.MetricResponseTime: 120},
		},
		{
			name:   "probe timeout",
			result: &models.ProbeResult{CheckEnvelope: models.CheckEnvelope{CheckedAt: checked}, IsTimeout: true},
			want:   map[models.MetricName]float64{models.MetricIsOnline: 0},
		},
		{
			name:   "server",
			result: &models.ServerResult{CheckEnvelope: models.CheckEnvelope{CheckedAt: checked}, CPUPercent: &cpu, MemoryPercent: &mem, Disks: []models.DiskMetric{{DiskPath: "/", PercentUsed: 61}}},
			want:   map[models.MetricName]float64{models.MetricIsOnline: 1, models.MetricCPUUsagePercent: 42.5, models.MetricMemoryUsagePercent: 80, models.MetricDiskUsagePercent: 61},
		},
		{
			name:   "custom code",
			result: &models.CustomCodeResult{CheckEnvelope: models.CheckEnvelope{CheckedAt: checked}, ExecutionTimeMs: 33},
			want:   map[models.MetricName]float64{models.MetricExecutionTime: 33},
		},
		{
			name:   "logs",
			result: &models.LogQueryResult{CheckEnvelope: models.CheckEnvelope{CheckedAt: checked}, LogCount: 7},
			want:   map[models.MetricName]float64{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			points := CheckPoints(mon, tc.result, t0)
			if len(points) != len(tc.want) {
				t.Fatalf("expected %d points, got %+v", len(tc.want), points)
			}
			for _, p := range points {
				if want, ok := tc.want[p.Name]; !ok || p.Value != want {
					t.Fatalf("unexpected point %+v", p)
				}
				if !p.Time.Equal(checked) || p.Owner != mon.Owner() || p.Attributes["monitorType"] != "Server" {
					t.Fatalf("point metadata %+v", p)
				}
			}
		})
	}
}

func TestRecordCheckAppends(t *testing.T) {
	store, _, rec := setup(t, t0)
	ctx := context.Background()
	mon := &models.Monitor{ID: "mon-1", ProjectID: "p1", Type: models.MonitorAPI}
	for i := 0; i < 2; i++ {
		if err := rec.RecordCheck(ctx, mon, &models.ProbeResult{IsOnline: true}); err != nil {
			t.Fatal(err)
		}
	}
	points, _ := store.ListMetrics(ctx, mon.Owner())
	if len(points) != 2 {
		t.Fatalf("check points accumulate: %+v", points)
	}
	if !points[0].Time.Equal(t0) {
		t.Fatalf("zero checkedAt falls back to now, got %v", points[0].Time)
	}
}
