package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"reacher-incidents/models"
)

// Memory é a implementação em memória do Store, usada nos testes e quando
// o serviço sobe sem POSTGRES_URI.
type Memory struct {
	mu  sync.Mutex
	seq int64
	now func() time.Time

	ownerLocks map[string]*sync.Mutex

	states      map[string]*models.State
	severities  map[string]*models.Severity
	monitors    map[string]*models.Monitor
	incidents   map[string]*models.Incident
	alerts      map[string]*models.Alert
	maintenance map[string]*models.ScheduledMaintenance
	policies    map[string]*models.OnCallPolicy
	rules       map[string]*models.EscalationRule
	logs        map[string]*models.ExecutionLog
	timeline    map[string]*memEntry
	metrics     []models.MetricPoint
	numbers     map[string]int
}

type memEntry struct {
	entry *models.TimelineEntry
	seq   int64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		now:         time.Now,
		ownerLocks:  map[string]*sync.Mutex{},
		states:      map[string]*models.State{},
		severities:  map[string]*models.Severity{},
		monitors:    map[string]*models.Monitor{},
		incidents:   map[string]*models.Incident{},
		alerts:      map[string]*models.Alert{},
		maintenance: map[string]*models.ScheduledMaintenance{},
		policies:    map[string]*models.OnCallPolicy{},
		rules:       map[string]*models.EscalationRule{},
		logs:        map[string]*models.ExecutionLog{},
		timeline:    map[string]*memEntry{},
		numbers:     map[string]int{},
	}
}

// WithClock troca o relógio usado para createdAt/updatedAt.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// Carga inicial. Não fazem parte do contrato Store: em produção os
// catálogos pertencem à API de administração.

func (m *Memory) PutState(s models.State) *models.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = newID(s.ID)
	m.states[s.ID] = &s
	c := s
	return &c
}

func (m *Memory) PutSeverity(s models.Severity) *models.Severity {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = newID(s.ID)
	m.severities[s.ID] = &s
	c := s
	return &c
}

func (m *Memory) PutMonitor(mon models.Monitor) *models.Monitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon.ID = newID(mon.ID)
	m.monitors[mon.ID] = &mon
	c := mon
	return &c
}

func (m *Memory) PutPolicy(p models.OnCallPolicy) *models.OnCallPolicy {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = newID(p.ID)
	m.policies[p.ID] = &p
	c := p
	return &c
}

func (m *Memory) PutRule(r models.EscalationRule) *models.EscalationRule {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = newID(r.ID)
	m.rules[r.ID] = &r
	c := r
	return &c
}

func (m *Memory) PutIncident(i models.Incident) *models.Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	i.ID = newID(i.ID)
	m.incidents[i.ID] = cloneIncident(&i)
	return cloneIncident(&i)
}

func (m *Memory) PutExecutionLog(l models.ExecutionLog) *models.ExecutionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = newID(l.ID)
	m.logs[l.ID] = cloneLog(&l)
	return cloneLog(&l)
}

// SeedDefaults cria os catálogos padrão de um projeto.
func (m *Memory) SeedDefaults(projectID string) {
	for _, s := range models.DefaultMonitorStatuses(projectID) {
		m.PutState(s)
	}
	for _, kind := range []models.OwnerKind{models.OwnerIncident, models.OwnerAlert} {
		for _, s := range models.DefaultIncidentStates(projectID, kind) {
			m.PutState(s)
		}
	}
	for _, s := range models.DefaultMaintenanceStates(projectID) {
		m.PutState(s)
	}
	for i, name := range []string{"Critical", "Major", "Minor"} {
		m.PutSeverity(models.Severity{ProjectID: projectID, Name: name, Order: i + 1})
	}
}

// --- timeline ---

func (m *Memory) ownerLock(owner models.OwnerRef) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.ownerLocks[owner.String()]
	if !ok {
		l = &sync.Mutex{}
		m.ownerLocks[owner.String()] = l
	}
	return l
}

// entriesLocked devolve as entradas do owner ordenadas por startsAt; empates
// ficam na ordem de inserção.
func (m *Memory) entriesLocked(owner models.OwnerRef) []*memEntry {
	var out []*memEntry
	for _, e := range m.timeline {
		if e.entry.Owner == owner {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.entry.StartsAt.Equal(b.entry.StartsAt) {
			return a.entry.StartsAt.Before(b.entry.StartsAt)
		}
		return a.seq < b.seq
	})
	return out
}

func (m *Memory) GetTimelineEntry(_ context.Context, id string) (*models.TimelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.timeline[id]
	if !ok {
		return nil, fmt.Errorf("timeline entry %s: %w", id, models.ErrNotFound)
	}
	return e.entry.Clone(), nil
}

func (m *Memory) ListTimeline(_ context.Context, owner models.OwnerRef) ([]*models.TimelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TimelineEntry
	for _, e := range m.entriesLocked(owner) {
		out = append(out, e.entry.Clone())
	}
	return out, nil
}

func (m *Memory) OpenTimelineEntry(_ context.Context, owner models.OwnerRef) (*models.TimelineEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.entriesLocked(owner)
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].entry.IsOpen() {
			return entries[i].entry.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) OwnerProject(_ context.Context, owner models.OwnerRef) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	project, ok := "", false
	switch owner.Kind {
	case models.OwnerMonitor:
		if v, found := m.monitors[owner.ID]; found {
			project, ok = v.ProjectID, true
		}
	case models.OwnerIncident:
		if v, found := m.incidents[owner.ID]; found {
			project, ok = v.ProjectID, true
		}
	case models.OwnerAlert:
		if v, found := m.alerts[owner.ID]; found {
			project, ok = v.ProjectID, true
		}
	case models.OwnerScheduledMaintenance:
		if v, found := m.maintenance[owner.ID]; found {
			project, ok = v.ProjectID, true
		}
	}
	if !ok {
		return "", fmt.Errorf("owner %s: %w", owner, models.ErrNotFound)
	}
	return project, nil
}

func (m *Memory) InOwnerTx(ctx context.Context, owner models.OwnerRef, fn func(tx TimelineTx) error) error {
	l := m.ownerLock(owner)
	l.Lock()
	defer l.Unlock()

	tx := &memTx{m: m, owner: owner}
	if err := fn(tx); err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

// memTx aplica as escritas na hora e guarda o inverso de cada uma para
// desfazer tudo se fn falhar.
type memTx struct {
	m     *Memory
	owner models.OwnerRef
	undo  []func()
}

func (t *memTx) FindPredecessor(_ context.Context, at time.Time) (*models.TimelineEntry, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var found *models.TimelineEntry
	for _, e := range t.m.entriesLocked(t.owner) {
		if e.entry.StartsAt.After(at) {
			break
		}
		found = e.entry
	}
	return found.Clone(), nil
}

func (t *memTx) FindSuccessor(_ context.Context, at time.Time) (*models.TimelineEntry, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	for _, e := range t.m.entriesLocked(t.owner) {
		if e.entry.StartsAt.After(at) {
			return e.entry.Clone(), nil
		}
	}
	return nil, nil
}

func (t *memTx) Neighbours(_ context.Context, id string) (*models.TimelineEntry, *models.TimelineEntry, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	entries := t.m.entriesLocked(t.owner)
	for i, e := range entries {
		if e.entry.ID != id {
			continue
		}
		var pred, succ *models.TimelineEntry
		if i > 0 {
			pred = entries[i-1].entry.Clone()
		}
		if i+1 < len(entries) {
			succ = entries[i+1].entry.Clone()
		}
		return pred, succ, nil
	}
	return nil, nil, fmt.Errorf("timeline entry %s: %w", id, models.ErrNotFound)
}

func (t *memTx) Latest(_ context.Context) (*models.TimelineEntry, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	entries := t.m.entriesLocked(t.owner)
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[len(entries)-1].entry.Clone(), nil
}

func (t *memTx) Count(_ context.Context) (int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return len(t.m.entriesLocked(t.owner)), nil
}

func (t *memTx) Create(_ context.Context, entry *models.TimelineEntry) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	entry.ID = newID(entry.ID)
	entry.Owner = t.owner
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = t.m.now()
	}
	t.m.seq++
	t.m.timeline[entry.ID] = &memEntry{entry: entry.Clone(), seq: t.m.seq}
	id := entry.ID
	t.undo = append(t.undo, func() { delete(t.m.timeline, id) })
	return nil
}

func (t *memTx) UpdateBounds(_ context.Context, id string, startsAt time.Time, endsAt *time.Time) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	e, ok := t.m.timeline[id]
	if !ok || e.entry.Owner != t.owner {
		return fmt.Errorf("timeline entry %s: %w", id, models.ErrNotFound)
	}
	prev := e.entry.Clone()
	e.entry.StartsAt = startsAt
	e.entry.EndsAt = nil
	if endsAt != nil {
		end := *endsAt
		e.entry.EndsAt = &end
	}
	t.undo = append(t.undo, func() { e.entry = prev })
	return nil
}

func (t *memTx) Delete(_ context.Context, id string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	e, ok := t.m.timeline[id]
	if !ok || e.entry.Owner != t.owner {
		return fmt.Errorf("timeline entry %s: %w", id, models.ErrNotFound)
	}
	delete(t.m.timeline, id)
	t.undo = append(t.undo, func() { t.m.timeline[id] = e })
	return nil
}

func (t *memTx) SetCurrentState(_ context.Context, stateID string) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	var field *string
	switch t.owner.Kind {
	case models.OwnerMonitor:
		if mon, ok := t.m.monitors[t.owner.ID]; ok {
			field = &mon.CurrentStatusID
		}
	case models.OwnerIncident:
		if inc, ok := t.m.incidents[t.owner.ID]; ok {
			field = &inc.CurrentStateID
		}
	case models.OwnerAlert:
		if a, ok := t.m.alerts[t.owner.ID]; ok {
			field = &a.CurrentStateID
		}
	case models.OwnerScheduledMaintenance:
		if sm, ok := t.m.maintenance[t.owner.ID]; ok {
			field = &sm.CurrentStateID
		}
	}
	if field == nil {
		return fmt.Errorf("owner %s: %w", t.owner, models.ErrNotFound)
	}
	prev := *field
	*field = stateID
	t.undo = append(t.undo, func() { *field = prev })
	return nil
}

// --- states ---

func (m *Memory) GetState(_ context.Context, id string) (*models.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[id]
	if !ok {
		return nil, fmt.Errorf("state %s: %w", id, models.ErrNotFound)
	}
	c := *s
	return &c, nil
}

func (m *Memory) FindStateByFlag(_ context.Context, projectID string, kind models.OwnerKind, flag models.StateFlag) (*models.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.State
	for _, s := range m.states {
		if s.ProjectID != projectID || s.OwnerKind != kind || !s.Has(flag) {
			continue
		}
		if found == nil || s.Order < found.Order {
			found = s
		}
	}
	if found == nil {
		return nil, fmt.Errorf("%s %s state for project %s: %w", kind, flag, projectID, models.ErrNotFound)
	}
	c := *found
	return &c, nil
}

func (m *Memory) GetSeverity(_ context.Context, id string) (*models.Severity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.severities[id]
	if !ok {
		return nil, fmt.Errorf("severity %s: %w", id, models.ErrNotFound)
	}
	c := *s
	return &c, nil
}

func (m *Memory) FindLowestSeverity(_ context.Context, projectID string) (*models.Severity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Severity
	for _, s := range m.severities {
		if s.ProjectID == projectID && (found == nil || s.Order < found.Order) {
			found = s
		}
	}
	if found == nil {
		return nil, fmt.Errorf("severity for project %s: %w", projectID, models.ErrNotFound)
	}
	c := *found
	return &c, nil
}

// --- monitors ---

func (m *Memory) GetMonitor(_ context.Context, id string) (*models.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon, ok := m.monitors[id]
	if !ok {
		return nil, fmt.Errorf("monitor %s: %w", id, models.ErrNotFound)
	}
	c := *mon
	return &c, nil
}

func (m *Memory) FindMonitorBySecretKey(_ context.Context, secretKey string) (*models.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mon := range m.monitors {
		if secretKey != "" && mon.IncomingSecretKey == secretKey {
			c := *mon
			return &c, nil
		}
	}
	return nil, fmt.Errorf("monitor with secret key: %w", models.ErrNotFound)
}

func (m *Memory) ListMonitorsByType(_ context.Context, types ...models.MonitorType) ([]*models.Monitor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Monitor
	for _, mon := range m.monitors {
		if len(types) == 0 || slices.Contains(types, mon.Type) {
			c := *mon
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) MarkIncomingRequest(_ context.Context, monitorID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mon, ok := m.monitors[monitorID]
	if !ok {
		return fmt.Errorf("monitor %s: %w", monitorID, models.ErrNotFound)
	}
	t := at
	mon.IncomingRequestReceivedAt = &t
	return nil
}

// --- incidents, alerts, maintenance ---

func cloneIncident(i *models.Incident) *models.Incident {
	c := *i
	c.MonitorIDs = slices.Clone(i.MonitorIDs)
	c.OnCallPolicyIDs = slices.Clone(i.OnCallPolicyIDs)
	return &c
}

func (m *Memory) nextNumberLocked(projectID string, kind models.OwnerKind) int {
	key := string(kind) + ":" + projectID
	m.numbers[key]++
	return m.numbers[key]
}

func (m *Memory) GetIncident(_ context.Context, id string) (*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident %s: %w", id, models.ErrNotFound)
	}
	return cloneIncident(inc), nil
}

func (m *Memory) CreateIncident(_ context.Context, incident *models.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	incident.ID = newID(incident.ID)
	incident.Number = m.nextNumberLocked(incident.ProjectID, models.OwnerIncident)
	if incident.CreatedAt.IsZero() {
		incident.CreatedAt = m.now()
	}
	m.incidents[incident.ID] = cloneIncident(incident)
	return nil
}

func (m *Memory) FindOpenIncidentsForMonitor(_ context.Context, projectID, monitorID string) ([]*models.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Incident
	for _, inc := range m.incidents {
		if inc.ProjectID != projectID || !slices.Contains(inc.MonitorIDs, monitorID) {
			continue
		}
		if s, ok := m.states[inc.CurrentStateID]; ok && s.IsResolvedState {
			continue
		}
		out = append(out, cloneIncident(inc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *Memory) GetAlert(_ context.Context, id string) (*models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, models.ErrNotFound)
	}
	c := *a
	c.OnCallPolicyIDs = slices.Clone(a.OnCallPolicyIDs)
	return &c, nil
}

func (m *Memory) CreateAlert(_ context.Context, alert *models.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert.ID = newID(alert.ID)
	alert.Number = m.nextNumberLocked(alert.ProjectID, models.OwnerAlert)
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = m.now()
	}
	c := *alert
	c.OnCallPolicyIDs = slices.Clone(alert.OnCallPolicyIDs)
	m.alerts[alert.ID] = &c
	return nil
}

func (m *Memory) GetMaintenance(_ context.Context, id string) (*models.ScheduledMaintenance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sm, ok := m.maintenance[id]
	if !ok {
		return nil, fmt.Errorf("scheduled maintenance %s: %w", id, models.ErrNotFound)
	}
	c := *sm
	c.MonitorIDs = slices.Clone(sm.MonitorIDs)
	return &c, nil
}

func (m *Memory) CreateMaintenance(_ context.Context, event *models.ScheduledMaintenance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = newID(event.ID)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = m.now()
	}
	c := *event
	c.MonitorIDs = slices.Clone(event.MonitorIDs)
	m.maintenance[event.ID] = &c
	return nil
}

// --- escalation ---

func cloneLog(l *models.ExecutionLog) *models.ExecutionLog {
	c := *l
	if l.LastExecutedAt != nil {
		t := *l.LastExecutedAt
		c.LastExecutedAt = &t
	}
	return &c
}

func (m *Memory) GetPolicy(_ context.Context, id string) (*models.OnCallPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.policies[id]
	if !ok {
		return nil, fmt.Errorf("on-call policy %s: %w", id, models.ErrNotFound)
	}
	c := *p
	return &c, nil
}

func (m *Memory) FindRule(_ context.Context, projectID, policyID string, order int) (*models.EscalationRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ProjectID == projectID && r.PolicyID == policyID && r.Order == order {
			c := *r
			return &c, nil
		}
	}
	return nil, fmt.Errorf("escalation rule %d of policy %s: %w", order, policyID, models.ErrNotFound)
}

func (m *Memory) CreateExecutionLog(_ context.Context, log *models.ExecutionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = newID(log.ID)
	now := m.now()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = now
	}
	log.UpdatedAt = now
	m.logs[log.ID] = cloneLog(log)
	return nil
}

func (m *Memory) GetExecutionLog(_ context.Context, id string) (*models.ExecutionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return nil, fmt.Errorf("execution log %s: %w", id, models.ErrNotFound)
	}
	return cloneLog(l), nil
}

func (m *Memory) ListExecutionLogs(_ context.Context, projectID string, status models.ExecutionStatus) ([]*models.ExecutionLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ExecutionLog
	for _, l := range m.logs {
		if (projectID == "" || l.ProjectID == projectID) && (status == "" || l.Status == status) {
			out = append(out, cloneLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ListExecutingLogs(ctx context.Context) ([]*models.ExecutionLog, error) {
	return m.ListExecutionLogs(ctx, "", models.ExecutionExecuting)
}

func (m *Memory) AdvanceExecutionLog(_ context.Context, id string, adv models.Advance) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return false, fmt.Errorf("execution log %s: %w", id, models.ErrNotFound)
	}
	if l.Status != models.ExecutionExecuting || l.LastExecutedRuleOrder != adv.ExpectedOrder || l.RepeatCount != adv.ExpectedRepeat {
		return false, nil
	}
	at := adv.ExecutedAt
	l.LastExecutedRuleOrder = adv.Order
	l.RepeatCount = adv.RepeatCount
	l.LastExecutedRuleID = adv.RuleID
	l.InterRuleDelayMinutes = adv.InterRuleDelayMinutes
	l.LastExecutedAt = &at
	l.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) FinishExecutionLog(_ context.Context, id string, status models.ExecutionStatus, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[id]
	if !ok {
		return false, fmt.Errorf("execution log %s: %w", id, models.ErrNotFound)
	}
	if l.Status != models.ExecutionExecuting {
		return false, nil
	}
	l.Status = status
	l.StatusMessage = message
	l.UpdatedAt = m.now()
	return true, nil
}

func (m *Memory) DeleteFinishedLogsBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, l := range m.logs {
		if l.Status.Terminal() && l.UpdatedAt.Before(before) {
			delete(m.logs, id)
			n++
		}
	}
	return n, nil
}

// --- metrics ---

func (m *Memory) ReplaceOwnerMetrics(_ context.Context, owner models.OwnerRef, names []models.MetricName, points []models.MetricPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.metrics[:0]
	for _, p := range m.metrics {
		if p.Owner == owner && slices.Contains(names, p.Name) {
			continue
		}
		kept = append(kept, p)
	}
	m.metrics = append(kept, points...)
	return nil
}

func (m *Memory) AppendMetrics(_ context.Context, points []models.MetricPoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = append(m.metrics, points...)
	return nil
}

func (m *Memory) ListMetrics(_ context.Context, owner models.OwnerRef) ([]models.MetricPoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MetricPoint
	for _, p := range m.metrics {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) DeleteMetricsBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.metrics[:0]
	var n int64
	for _, p := range m.metrics {
		if p.Time.Before(before) {
			n++
			continue
		}
		kept = append(kept, p)
	}
	m.metrics = kept
	return n, nil
}
