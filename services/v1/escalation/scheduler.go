// Package escalation avança os execution logs das políticas de on-call: a
// cada tick, cada log em Executing espera, executa a próxima regra, recomeça
// da regra 1 ou termina.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reacher-incidents/events"
	"reacher-incidents/instrument"
	"reacher-incidents/logging"
	"reacher-incidents/models"
	"reacher-incidents/repository"
)

const (
	msgCompleted    = "Execution completed."
	msgAcknowledged = "Execution completed because the trigger was acknowledged."
	msgUnknownError = "Error occurred while executing the on-call policy."
)

// AckChecker diz se o incidente/alerta que disparou a política já teve ack.
type AckChecker interface {
	IsAcknowledged(ctx context.Context, owner models.OwnerRef) (bool, error)
}

// RuleExecutor faz o paging de fato. events.NATSPublisher implementa.
type RuleExecutor interface {
	PublishRuleExecution(ctx context.Context, req events.RuleExecution) error
}

type Outcome string

const (
	OutcomeWaiting   Outcome = "waiting"
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeRepeated  Outcome = "repeated"
	OutcomeCompleted Outcome = "completed"
	OutcomeError     Outcome = "error"
	// OutcomeSkipped: outro tick avançou o log antes deste.
	OutcomeSkipped Outcome = "skipped"
)

// SweepReport conta o resultado de cada log de um sweep.
type SweepReport struct {
	Total    int             `json:"total"`
	Outcomes map[Outcome]int `json:"outcomes"`
	Duration time.Duration   `json:"duration"`
}

type Scheduler struct {
	store    repository.EscalationStore
	acks     AckChecker
	executor RuleExecutor
	log      *zap.Logger
	now      func() time.Time
	workers  int
}

func NewScheduler(store repository.EscalationStore, acks AckChecker, executor RuleExecutor, log *zap.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		acks:     acks,
		executor: executor,
		log:      logging.Component(log, "escalation"),
		now:      time.Now,
		workers:  16,
	}
}

func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// WithWorkers limita quantos logs são processados ao mesmo tempo.
func (s *Scheduler) WithWorkers(n int) *Scheduler {
	if n > 0 {
		s.workers = n
	}
	return s
}

// Sweep processa todos os logs em Executing. Falha de um log nunca
// interrompe os outros.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	start := time.Now()
	report := SweepReport{Outcomes: map[Outcome]int{}}
	logs, err := s.store.ListExecutingLogs(ctx)
	if err != nil {
		s.log.Error("failed to list executing logs", zap.Error(err))
		return report
	}
	report.Total = len(logs)

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for _, l := range logs {
		l := l
		g.Go(func() error {
			out := s.process(ctx, l)
			mu.Lock()
			report.Outcomes[out]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	instrument.SweepDuration.Observe(report.Duration.Seconds())
	if report.Total > 0 {
		s.log.Info("escalation sweep finished",
			zap.Int("logs", report.Total),
			zap.Any("outcomes", report.Outcomes),
			zap.Duration("took", report.Duration))
	}
	return report
}

// Trigger cria o execution log de uma política e já executa a regra 1.
func (s *Scheduler) Trigger(ctx context.Context, projectID, policyID string, by models.OwnerRef, event models.NotificationEventType) (*models.ExecutionLog, error) {
	policy, err := s.store.GetPolicy(ctx, policyID)
	if err != nil {
		return nil, fmt.Errorf("on-call policy %s: %w", policyID, err)
	}
	if policy.ProjectID != projectID {
		return nil, models.BadData("on-call policy %s is not part of project %s", policyID, projectID)
	}
	now := s.now().UTC()
	l := &models.ExecutionLog{
		ProjectID:             projectID,
		PolicyID:              policyID,
		TriggeredBy:           by,
		NotificationEventType: event,
		MaxRepeats:            policy.RepeatIfNoOneAcknowledges,
		Status:                models.ExecutionExecuting,
		StatusMessage:         "Execution started.",
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.store.CreateExecutionLog(ctx, l); err != nil {
		return nil, fmt.Errorf("create execution log: %w", err)
	}
	s.log.Info("on-call policy triggered",
		zap.String("policyId", policyID),
		zap.String("executionLogId", l.ID),
		zap.String("triggeredBy", by.String()))

	s.process(ctx, l)
	return s.store.GetExecutionLog(ctx, l.ID)
}

// process isola um log: erro ou panic viram Error terminal com mensagem.
func (s *Scheduler) process(ctx context.Context, l *models.ExecutionLog) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = s.fail(ctx, l, fmt.Errorf("panic: %v", r))
		}
		instrument.ExecutionLogOutcomes.WithLabelValues(string(out)).Inc()
	}()
	out, err := s.step(ctx, l)
	if err != nil {
		return s.fail(ctx, l, err)
	}
	return out
}

func (s *Scheduler) fail(ctx context.Context, l *models.ExecutionLog, err error) Outcome {
	msg := err.Error()
	if msg == "" {
		msg = msgUnknownError
	}
	s.log.Error("execution log failed",
		zap.String("executionLogId", l.ID),
		zap.String("policyId", l.PolicyID),
		zap.Error(err))
	if _, ferr := s.store.FinishExecutionLog(ctx, l.ID, models.ExecutionError, msg); ferr != nil {
		s.log.Error("failed to record execution log error",
			zap.String("executionLogId", l.ID),
			zap.Error(ferr))
	}
	return OutcomeError
}

func (s *Scheduler) step(ctx context.Context, l *models.ExecutionLog) (Outcome, error) {
	if l.TriggeredBy.Kind == models.OwnerIncident || l.TriggeredBy.Kind == models.OwnerAlert {
		if s.acks != nil {
			acked, err := s.acks.IsAcknowledged(ctx, l.TriggeredBy)
			if err != nil {
				return "", err
			}
			if acked {
				return s.complete(ctx, l, msgAcknowledged)
			}
		}
	}

	now := s.now().UTC()
	last := l.CreatedAt
	if l.LastExecutedAt != nil {
		last = *l.LastExecutedAt
	}
	if now.Sub(last) < time.Duration(l.InterRuleDelayMinutes)*time.Minute {
		return OutcomeWaiting, nil
	}

	next, err := s.findRule(ctx, l, l.LastExecutedRuleOrder+1)
	if err != nil {
		return "", err
	}
	if next != nil {
		return s.execute(ctx, l, next, l.RepeatCount, OutcomeAdvanced)
	}

	if l.RepeatCount >= l.MaxRepeats {
		return s.complete(ctx, l, msgCompleted)
	}
	first, err := s.findRule(ctx, l, 1)
	if err != nil {
		return "", err
	}
	if first == nil {
		return s.complete(ctx, l, msgCompleted)
	}
	return s.execute(ctx, l, first, l.RepeatCount+1, OutcomeRepeated)
}

func (s *Scheduler) findRule(ctx context.Context, l *models.ExecutionLog, order int) (*models.EscalationRule, error) {
	rule, err := s.store.FindRule(ctx, l.ProjectID, l.PolicyID, order)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	return rule, err
}

// execute reivindica o avanço (compare-and-set) antes de paginar: se outro
// tick chegou primeiro, nada é executado.
func (s *Scheduler) execute(ctx context.Context, l *models.ExecutionLog, rule *models.EscalationRule, repeat int, out Outcome) (Outcome, error) {
	ok, err := s.store.AdvanceExecutionLog(ctx, l.ID, models.Advance{
		ExpectedOrder:         l.LastExecutedRuleOrder,
		ExpectedRepeat:        l.RepeatCount,
		Order:                 rule.Order,
		RepeatCount:           repeat,
		RuleID:                rule.ID,
		InterRuleDelayMinutes: rule.EscalateAfterMinutes,
		ExecutedAt:            s.now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeSkipped, nil
	}
	req := events.RuleExecution{
		RuleID:                rule.ID,
		ProjectID:             l.ProjectID,
		PolicyID:              l.PolicyID,
		ExecutionLogID:        l.ID,
		TriggeredBy:           l.TriggeredBy,
		NotificationEventType: l.NotificationEventType,
	}
	if err := s.executor.PublishRuleExecution(ctx, req); err != nil {
		return "", fmt.Errorf("execute escalation rule %s: %w", rule.ID, err)
	}
	s.log.Info("escalation rule executed",
		zap.String("executionLogId", l.ID),
		zap.String("ruleId", rule.ID),
		zap.Int("order", rule.Order),
		zap.Int("repeat", repeat))
	return out, nil
}

func (s *Scheduler) complete(ctx context.Context, l *models.ExecutionLog, msg string) (Outcome, error) {
	ok, err := s.store.FinishExecutionLog(ctx, l.ID, models.ExecutionCompleted, msg)
	if err != nil {
		return "", err
	}
	if !ok {
		return OutcomeSkipped, nil
	}
	return OutcomeCompleted, nil
}
