// Package retention apaga pontos de métrica e execution logs terminados mais
// velhos que a janela configurada.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"reacher-incidents/logging"
)

type Store interface {
	DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error)
	DeleteFinishedLogsBefore(ctx context.Context, before time.Time) (int64, error)
}

type Report struct {
	Cutoff        time.Time `json:"cutoff"`
	MetricPoints  int64     `json:"metricPoints"`
	ExecutionLogs int64     `json:"executionLogs"`
}

type Service struct {
	store Store
	keep  time.Duration
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, days int, log *zap.Logger) *Service {
	if days <= 0 {
		days = 30
	}
	return &Service{
		store: store,
		keep:  time.Duration(days) * 24 * time.Hour,
		log:   logging.Component(log, "retention"),
		now:   time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Run faz uma passada. Execution logs em Executing nunca são apagados.
func (s *Service) Run(ctx context.Context) (Report, error) {
	r := Report{Cutoff: s.now().UTC().Add(-s.keep)}
	var err error
	if r.MetricPoints, err = s.store.DeleteMetricsBefore(ctx, r.Cutoff); err != nil {
		return r, fmt.Errorf("delete metric points: %w", err)
	}
	if r.ExecutionLogs, err = s.store.DeleteFinishedLogsBefore(ctx, r.Cutoff); err != nil {
		return r, fmt.Errorf("delete execution logs: %w", err)
	}
	s.log.Info("retention pass finished",
		zap.Time("cutoff", r.Cutoff),
		zap.Int64("metricPoints", r.MetricPoints),
		zap.Int64("executionLogs", r.ExecutionLogs))
	return r, nil
}

// Schedule roda Run no ritmo de spec até ctx acabar.
func (s *Service) Schedule(ctx context.Context, spec string) error {
	if spec == "" {
		spec = "@daily"
	}
	cl := logging.Cron(s.log)
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(spec, func() {
		if _, err := s.Run(ctx); err != nil {
			s.log.Error("retention pass failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
