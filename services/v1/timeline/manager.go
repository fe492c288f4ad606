// Package timeline mantém a timeline de estados de cada owner (monitor,
// incidente, alerta, manutenção): intervalos contíguos, sem buracos, com
// exatamente uma entrada aberta que define o estado atual do owner.
package timeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reacher-incidents/events"
	"reacher-incidents/instrument"
	"reacher-incidents/logging"
	"reacher-incidents/models"
	"reacher-incidents/repository"
)

const deleteOnlyEntryMsg = "Cannot delete the only state timeline. %s should have at least one state in its timeline."

// Store é o recorte do repositório que o Manager usa.
type Store interface {
	repository.TimelineStore
	repository.StateStore
}

// Refresher recalcula as métricas derivadas de uma timeline.
type Refresher interface {
	Refresh(ctx context.Context, owner models.OwnerRef) error
}

type InsertInput struct {
	Owner     models.OwnerRef
	ProjectID string
	StateID   string
	// At zero vale o agora.
	At              time.Time
	RootCause       string
	StateChangeLog  json.RawMessage
	CreatedByUserID string
	// Label é o nome do owner no feed, por exemplo "Incident 12".
	Label string
}

type Manager struct {
	store   Store
	locker  Locker
	queue   events.Queue
	feed    events.FeedPublisher
	metrics Refresher
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Manager)

func WithLocker(l Locker) Option { return func(m *Manager) { m.locker = l } }

func WithFeed(f events.FeedPublisher) Option { return func(m *Manager) { m.feed = f } }

func WithMetrics(r Refresher) Option { return func(m *Manager) { m.metrics = r } }

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func NewManager(store Store, queue events.Queue, log *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		locker: NewKeyedMutex(),
		queue:  queue,
		log:    logging.Component(log, "timeline"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Insert grava um novo estado em in.At. Devolve (nil, nil) quando o estado
// anterior já é o mesmo: estado idêntico redundante nunca é gravado. O owner
// precisa existir e pertencer ao projeto do estado.
func (m *Manager) Insert(ctx context.Context, in InsertInput) (*models.TimelineEntry, error) {
	if !in.Owner.Kind.Valid() || in.Owner.ID == "" {
		return nil, models.BadData("invalid timeline owner %q", in.Owner.String())
	}
	if in.StateID == "" {
		return nil, models.BadData("stateId is required")
	}
	state, err := m.store.GetState(ctx, in.StateID)
	if err != nil {
		return nil, fmt.Errorf("state %s: %w", in.StateID, err)
	}
	if state.OwnerKind != in.Owner.Kind {
		return nil, models.BadData("state %s belongs to %s, not %s", state.ID, state.OwnerKind, in.Owner.Kind)
	}
	project, err := m.store.OwnerProject(ctx, in.Owner)
	if err != nil {
		return nil, err
	}
	// owner de outro projeto é tratado como inexistente
	if in.ProjectID != "" && project != in.ProjectID {
		return nil, fmt.Errorf("%s: %w", in.Owner, models.ErrNotFound)
	}
	if state.ProjectID != project {
		return nil, models.BadData("state %s is not part of project %s", state.ID, project)
	}
	at := in.At
	if at.IsZero() {
		at = m.now()
	}
	at = at.UTC()

	unlock, err := m.locker.Lock(ctx, in.Owner.String())
	if err != nil {
		m.count("insert", in.Owner, "error")
		return nil, err
	}
	defer unlock()

	var created *models.TimelineEntry
	err = m.store.InOwnerTx(ctx, in.Owner, func(tx repository.TimelineTx) error {
		pred, err := tx.FindPredecessor(ctx, at)
		if err != nil {
			return err
		}
		if pred != nil && pred.StateID == in.StateID {
			return nil
		}
		succ, err := tx.FindSuccessor(ctx, at)
		if err != nil {
			return err
		}
		var succStart *time.Time
		if succ != nil {
			start := succ.StartsAt
			succStart = &start
		}
		// Duas entradas nunca começam no mesmo instante: a gravação nova
		// substitui a que já estava em at.
		for pred != nil && pred.StartsAt.Equal(at) {
			if err := tx.Delete(ctx, pred.ID); err != nil {
				return err
			}
			if pred, err = tx.FindPredecessor(ctx, at); err != nil {
				return err
			}
		}
		if pred != nil && pred.StateID == in.StateID {
			// o estado anterior volta a valer até o sucessor
			if err := tx.UpdateBounds(ctx, pred.ID, pred.StartsAt, succStart); err != nil {
				return err
			}
			pred.EndsAt = succStart
			if pred.IsOpen() {
				if err := tx.SetCurrentState(ctx, in.StateID); err != nil {
					return err
				}
			}
			created = pred
			return nil
		}
		entry := &models.TimelineEntry{
			ProjectID:       state.ProjectID,
			Owner:           in.Owner,
			StateID:         in.StateID,
			StartsAt:        at,
			RootCause:       in.RootCause,
			StateChangeLog:  in.StateChangeLog,
			CreatedByUserID: in.CreatedByUserID,
			CreatedAt:       m.now().UTC(),
		}
		entry.EndsAt = succStart
		if err := tx.Create(ctx, entry); err != nil {
			return err
		}
		if pred != nil {
			end := at
			if err := tx.UpdateBounds(ctx, pred.ID, pred.StartsAt, &end); err != nil {
				return err
			}
		}
		if entry.IsOpen() {
			if err := tx.SetCurrentState(ctx, in.StateID); err != nil {
				return err
			}
		}
		created = entry
		return nil
	})
	if err != nil {
		m.count("insert", in.Owner, "error")
		return nil, err
	}
	if created == nil {
		m.count("insert", in.Owner, "noop")
		m.log.Debug("state unchanged, nothing recorded",
			zap.String("owner", in.Owner.String()),
			zap.String("stateId", in.StateID))
		return nil, nil
	}
	m.count("insert", in.Owner, "ok")
	m.log.Info("state recorded",
		zap.String("owner", in.Owner.String()),
		zap.String("stateId", in.StateID),
		zap.Time("startsAt", at),
		zap.Bool("open", created.IsOpen()))

	label := in.Label
	if label == "" {
		label = string(in.Owner.Kind)
	}
	m.afterWrite(in.Owner, FeedEvent(state, label, in.RootCause, in.CreatedByUserID, at))
	return created, nil
}

// Delete remove uma entrada e costura os vizinhos para manter a timeline
// contígua. A única entrada de um owner nunca pode ser removida.
func (m *Manager) Delete(ctx context.Context, entryID string) error {
	entry, err := m.store.GetTimelineEntry(ctx, entryID)
	if err != nil {
		return err
	}
	owner := entry.Owner

	unlock, err := m.locker.Lock(ctx, owner.String())
	if err != nil {
		m.count("delete", owner, "error")
		return err
	}
	defer unlock()

	var current string
	err = m.store.InOwnerTx(ctx, owner, func(tx repository.TimelineTx) error {
		// relê sob o lock: os limites podem ter mudado desde a primeira leitura
		entry, err = m.store.GetTimelineEntry(ctx, entryID)
		if err != nil {
			return err
		}
		n, err := tx.Count(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return models.BadData(deleteOnlyEntryMsg, owner.Kind)
		}
		pred, succ, err := tx.Neighbours(ctx, entry.ID)
		if err != nil {
			return err
		}
		if err := tx.Delete(ctx, entry.ID); err != nil {
			return err
		}
		switch {
		case pred == nil:
			// primeira entrada: nada a costurar para trás
		case succ == nil:
			if err := tx.UpdateBounds(ctx, pred.ID, pred.StartsAt, entry.EndsAt); err != nil {
				return err
			}
		default:
			// o sucessor herda o intervalo removido; o predecessor termina onde ele começa
			if err := tx.UpdateBounds(ctx, succ.ID, entry.StartsAt, succ.EndsAt); err != nil {
				return err
			}
			end := entry.StartsAt
			if err := tx.UpdateBounds(ctx, pred.ID, pred.StartsAt, &end); err != nil {
				return err
			}
		}
		latest, err := tx.Latest(ctx)
		if err != nil {
			return err
		}
		if latest != nil {
			current = latest.StateID
			return tx.SetCurrentState(ctx, latest.StateID)
		}
		return nil
	})
	if err != nil {
		m.count("delete", owner, "error")
		return err
	}
	m.count("delete", owner, "ok")
	m.log.Info("state timeline entry deleted",
		zap.String("owner", owner.String()),
		zap.String("entryId", entry.ID),
		zap.String("currentStateId", current))

	var evt *events.FeedEvent
	if state, err := m.store.GetState(ctx, current); err == nil {
		evt = FeedEvent(state, string(owner.Kind), "", entry.CreatedByUserID, m.now().UTC())
		evt.Owner = owner
	}
	m.afterWrite(owner, evt)
	return nil
}

// Current devolve a entrada aberta do owner, ou nil.
func (m *Manager) Current(ctx context.Context, owner models.OwnerRef) (*models.TimelineEntry, error) {
	return m.store.OpenTimelineEntry(ctx, owner)
}

// afterWrite enfileira os efeitos colaterais. Falhas aqui só viram log.
func (m *Manager) afterWrite(owner models.OwnerRef, evt *events.FeedEvent) {
	if m.queue == nil {
		return
	}
	if m.metrics != nil {
		metrics := m.metrics
		m.queue.Enqueue(events.Task{
			Name: "metrics.refresh",
			Run: func(ctx context.Context) error {
				return metrics.Refresh(ctx, owner)
			},
		})
	}
	if m.feed != nil && evt != nil {
		feed := m.feed
		evt.Owner = owner
		e := *evt
		m.queue.Enqueue(events.Task{
			Name: "feed.publish",
			Run: func(ctx context.Context) error {
				return feed.PublishFeed(ctx, e)
			},
		})
	}
}

func (m *Manager) count(op string, owner models.OwnerRef, result string) {
	instrument.TimelineWrites.WithLabelValues(op, string(owner.Kind), result).Inc()
}
