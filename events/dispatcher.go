package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"reacher-incidents/instrument"
)

type DispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// Dispatcher é a implementação padrão de Queue: um canal com buffer drenado
// por um pool fixo de workers.
type Dispatcher struct {
	cfg   DispatcherConfig
	log   *zap.Logger
	tasks chan Task
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*Dispatcher)(nil)

func NewDispatcher(cfg DispatcherConfig, log *zap.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{cfg: cfg, log: log, tasks: make(chan Task, cfg.BufferSize)}
}

// Start sobe os workers. Eles saem quando Stop esvazia a fila.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for task := range d.tasks {
				d.run(ctx, task)
			}
		}()
	}
}

// Enqueue nunca bloqueia; com o buffer cheio a tarefa é descartada e vai
// pro log.
func (d *Dispatcher) Enqueue(task Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		instrument.OutboundTasks.WithLabelValues(task.Name, "dropped").Inc()
		return false
	}
	select {
	case d.tasks <- task:
		return true
	default:
		instrument.OutboundTasks.WithLabelValues(task.Name, "dropped").Inc()
		d.log.Warn("outbound queue full, dropping task", zap.String("task", task.Name))
		return false
	}
}

// Stop para de aceitar tarefas e espera as pendentes terminarem.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, task Task) {
	var err error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				d.log.Warn("outbound task abandoned", zap.String("task", task.Name), zap.Error(ctx.Err()))
				instrument.OutboundTasks.WithLabelValues(task.Name, "failed").Inc()
				return
			case <-time.After(d.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
		if err = safeRun(ctx, task); err == nil {
			instrument.OutboundTasks.WithLabelValues(task.Name, "ok").Inc()
			return
		}
		d.log.Debug("outbound task attempt failed", zap.String("task", task.Name), zap.Int("attempt", attempt+1), zap.Error(err))
	}
	instrument.OutboundTasks.WithLabelValues(task.Name, "failed").Inc()
	d.log.Error("outbound task failed", zap.String("task", task.Name), zap.Error(err))
}

func safeRun(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return task.Run(ctx)
}

type panicError struct{ value any }

func (p panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
