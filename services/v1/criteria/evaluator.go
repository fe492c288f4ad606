package criteria

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"reacher-incidents/instrument"
	"reacher-incidents/models"
)

// Match é a primeira instância de critério do step cujos filtros casaram.
type Match struct {
	Instance  *models.CriteriaInstance
	RootCause string
}

func (m *Match) CriteriaID() string {
	if m == nil || m.Instance == nil {
		return ""
	}
	return m.Instance.ID
}

// Outcome é o resultado de um check contra o step do monitor.
type Outcome struct {
	StepID     string
	NextStepID string
	Match      *Match
	// DefaultStatusID vem preenchido quando nada casou e o status padrão do
	// step difere do status atual do monitor.
	DefaultStatusID string
}

// AutoResolveMap liga o id da instância de critério aos ids dos templates
// de incidente com auto-resolve.
type AutoResolveMap map[string]map[string]struct{}

func (m AutoResolveMap) Contains(criteriaID, templateID string) bool {
	templates, ok := m[criteriaID]
	if !ok {
		return false
	}
	_, ok = templates[templateID]
	return ok
}

type Evaluator struct {
	predicates *Predicates
	log        *zap.Logger
}

func NewEvaluator(predicates *Predicates, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{predicates: predicates, log: log}
}

// Evaluate seleciona o step do resultado, avalia e decide o status padrão.
func (e *Evaluator) Evaluate(ctx context.Context, monitor *models.Monitor, result models.CheckResult) Outcome {
	step, next := SelectStep(monitor.Steps, result)
	if step == nil {
		instrument.CriteriaMatches.WithLabelValues("none").Inc()
		return Outcome{}
	}
	out := Outcome{StepID: step.ID, NextStepID: next}
	out.Match = e.EvaluateStep(ctx, monitor, result, step.Criteria)
	if out.Match != nil {
		instrument.CriteriaMatches.WithLabelValues("matched").Inc()
		return out
	}
	def := monitor.Steps.DefaultMonitorStatusID
	if def != "" && def != monitor.CurrentStatusID {
		out.DefaultStatusID = def
		instrument.CriteriaMatches.WithLabelValues("default").Inc()
		return out
	}
	instrument.CriteriaMatches.WithLabelValues("none").Inc()
	return out
}

// SelectStep escolhe o step indicado pelo resultado (ou o primeiro) e o id
// do step seguinte.
func SelectStep(steps models.MonitorSteps, result models.CheckResult) (*models.MonitorStep, string) {
	if len(steps.Steps) == 0 {
		return nil, ""
	}
	idx := 0
	if result != nil {
		if want := result.Common().MonitorStepID; want != "" {
			idx = -1
			for i := range steps.Steps {
				if steps.Steps[i].ID == want {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, ""
			}
		}
	}
	next := ""
	if idx+1 < len(steps.Steps) {
		next = steps.Steps[idx+1].ID
	}
	return &steps.Steps[idx], next
}

// EvaluateStep percorre as instâncias na ordem declarada e devolve a
// primeira que casa, ou nil.
func (e *Evaluator) EvaluateStep(ctx context.Context, monitor *models.Monitor, result models.CheckResult, instances []models.CriteriaInstance) *Match {
	for i := range instances {
		inst := &instances[i]
		causes, ok := e.instanceMet(ctx, monitor, result, inst)
		if !ok {
			continue
		}
		e.log.Debug("criteria met",
			zap.String("monitorId", monitor.ID),
			zap.String("criteriaId", inst.ID))
		return &Match{Instance: inst, RootCause: RootCause(inst, causes, result)}
	}
	return nil
}

// instanceMet combina os filtros. All: para no primeiro que falha e junta
// todas as causas. Any: o primeiro que casa decide, só com a causa dele.
func (e *Evaluator) instanceMet(ctx context.Context, monitor *models.Monitor, result models.CheckResult, inst *models.CriteriaInstance) ([]string, bool) {
	if len(inst.Filters) == 0 {
		return nil, false
	}
	anyOf := inst.FilterCondition == models.FilterConditionAny
	var causes []string
	for _, f := range inst.Filters {
		cause, ok := e.predicates.Evaluate(ctx, monitor.Type, result, f)
		if anyOf {
			if ok {
				return []string{cause}, true
			}
			continue
		}
		if !ok {
			return nil, false
		}
		causes = append(causes, cause)
	}
	if anyOf {
		return nil, false
	}
	return causes, true
}

// RootCause monta a explicação em markdown de um match.
func RootCause(inst *models.CriteriaInstance, causes []string, result models.CheckResult) string {
	var b strings.Builder
	b.WriteString("**This incident is created because the following criteria was met**:\n\n")
	b.WriteString("**Criteria Name**: ")
	b.WriteString(inst.Name)
	b.WriteString("\n")
	if len(causes) > 0 {
		b.WriteString("\n**Filter Conditions Met**:")
		if inst.FilterCondition != models.FilterConditionAny {
			b.WriteString(" All filters met.")
		}
		b.WriteString("\n")
		for _, c := range causes {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
	}
	if result != nil {
		if cause := result.Common().FailureCause; cause != "" {
			b.WriteString("\n**Cause**: ")
			b.WriteString(cause)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// BuildAutoResolveMap indexa, em todos os steps do monitor, os templates de
// incidente com auto-resolve.
func BuildAutoResolveMap(steps models.MonitorSteps) AutoResolveMap {
	out := AutoResolveMap{}
	for _, step := range steps.Steps {
		for _, inst := range step.Criteria {
			for _, tpl := range inst.Incidents {
				if !tpl.AutoResolveIncident {
					continue
				}
				if out[inst.ID] == nil {
					out[inst.ID] = map[string]struct{}{}
				}
				out[inst.ID][tpl.ID] = struct{}{}
			}
		}
	}
	return out
}
