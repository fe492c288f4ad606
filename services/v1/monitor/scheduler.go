package monitor

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"reacher-incidents/logging"
	"reacher-incidents/models"
)

const (
	syncSpec             = "@every 15s"
	heartbeatSpec        = "@every 1m"
	defaultProbeInterval = "@every 1m"
)

type job struct {
	entryID  cron.EntryID
	cronExpr string
	url      string
}

// ProbeScheduler mantém um job de cron por monitor com URL e manda cada
// resultado para o mesmo pipeline dos probes externos.
type ProbeScheduler struct {
	resource *Resource
	checker  *HTTPChecker
	cron     *cron.Cron
	log      *zap.Logger

	mu   sync.Mutex
	jobs map[string]job
	ctx  context.Context
}

func NewProbeScheduler(resource *Resource, checker *HTTPChecker, log *zap.Logger) *ProbeScheduler {
	log = logging.Component(log, "probe-scheduler")
	cl := logging.Cron(log)
	return &ProbeScheduler{
		resource: resource,
		checker:  checker,
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		log:      log,
		jobs:     map[string]job{},
		ctx:      context.Background(),
	}
}

// Run agenda o sync periódico e o sweep de heartbeats e bloqueia até ctx
// acabar.
func (s *ProbeScheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	skip := cron.SkipIfStillRunning(logging.Cron(s.log))
	if _, err := s.cron.AddJob(syncSpec, skip(cron.FuncJob(func() { s.Sync(ctx) }))); err != nil {
		return err
	}
	if _, err := s.cron.AddJob(heartbeatSpec, skip(cron.FuncJob(func() {
		if _, err := s.resource.CheckHeartbeats(ctx); err != nil {
			s.log.Error("heartbeat sweep failed", zap.Error(err))
		}
	}))); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("probe scheduler started")
	s.Sync(ctx) // executa já na inicialização

	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// Sync ajusta os jobs aos monitores atuais: cria, recria quando intervalo ou
// URL mudam e remove os que sumiram ou foram desativados.
func (s *ProbeScheduler) Sync(ctx context.Context) {
	monitors, err := s.resource.monitors.ListMonitorsByType(ctx,
		models.MonitorAPI, models.MonitorWebsite)
	if err != nil {
		s.log.Error("failed to list monitors", zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	active := make(map[string]bool, len(monitors))
	for _, m := range monitors {
		if m.URL == "" || disabled(m) {
			continue
		}
		active[m.ID] = true
		expr := m.Interval
		if expr == "" {
			expr = defaultProbeInterval
		}
		if cur, ok := s.jobs[m.ID]; ok {
			if cur.cronExpr == expr && cur.url == m.URL {
				continue
			}
			s.log.Info("updating probe job", zap.String("monitorId", m.ID), zap.String("spec", expr))
			s.cron.Remove(cur.entryID)
			delete(s.jobs, m.ID)
		}

		monitorID := m.ID
		id, err := s.cron.AddFunc(expr, func() { s.check(monitorID) })
		if err != nil {
			s.log.Warn("invalid probe interval", zap.String("monitorId", m.ID), zap.String("spec", expr), zap.Error(err))
			continue
		}
		s.log.Info("probe job added", zap.String("monitorId", m.ID), zap.String("spec", expr))
		s.jobs[m.ID] = job{entryID: id, cronExpr: expr, url: m.URL}
	}

	for id, j := range s.jobs {
		if !active[id] {
			s.log.Info("removing probe job", zap.String("monitorId", id))
			s.cron.Remove(j.entryID)
			delete(s.jobs, id)
		}
	}
}

// Jobs devolve os ids dos monitores com job agendado.
func (s *ProbeScheduler) Jobs() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.jobs))
	for id, j := range s.jobs {
		out[id] = j.cronExpr
	}
	return out
}

func (s *ProbeScheduler) check(monitorID string) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	// recarrega: URL e flags podem ter mudado desde o último sync
	m, err := s.resource.monitors.GetMonitor(ctx, monitorID)
	if err != nil {
		s.log.Warn("monitor vanished before check", zap.String("monitorId", monitorID), zap.Error(err))
		return
	}
	result := s.checker.Check(ctx, m)
	if _, err := s.resource.Process(ctx, result); err != nil {
		s.log.Error("probe result not processed", zap.String("monitorId", monitorID), zap.Error(err))
	}
}
