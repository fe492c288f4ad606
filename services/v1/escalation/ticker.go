package escalation

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"reacher-incidents/logging"
)

// TickSource chama tick no ritmo dele até ctx acabar.
type TickSource interface {
	Run(ctx context.Context, tick func(ctx context.Context)) error
}

// CronTicker é a TickSource de produção. Um tick que ainda está rodando faz
// o próximo ser pulado, nunca empilhado.
type CronTicker struct {
	Spec string
	log  *zap.Logger
}

func NewCronTicker(spec string, log *zap.Logger) *CronTicker {
	if spec == "" {
		spec = "@every 1m"
	}
	return &CronTicker{Spec: spec, log: logging.Component(log, "cron")}
}

func (c *CronTicker) Run(ctx context.Context, tick func(ctx context.Context)) error {
	cl := logging.Cron(c.log)
	cr := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := cr.AddFunc(c.Spec, func() { tick(ctx) }); err != nil {
		return err
	}
	cr.Start()
	c.log.Info("escalation sweep scheduled", zap.String("spec", c.Spec))
	<-ctx.Done()
	<-cr.Stop().Done()
	return nil
}

// Run liga o sweep a uma TickSource e bloqueia até ctx acabar.
func (s *Scheduler) Run(ctx context.Context, src TickSource) error {
	return src.Run(ctx, func(ctx context.Context) { s.Sweep(ctx) })
}
