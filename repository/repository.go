// Package repository define os contratos de persistência consumidos pelos
// serviços. Toda entidade é lida e escrita por aqui; os serviços nunca falam
// com o banco diretamente.
package repository

import (
	"context"
	"time"

	"reacher-incidents/models"
)

// TimelineTx é a visão da timeline de um owner dentro de uma unidade
// atômica. Tudo que passa por ela é confirmado junto ou descartado junto.
type TimelineTx interface {
	// FindPredecessor devolve a entrada com o maior startsAt <= at, ou nil.
	FindPredecessor(ctx context.Context, at time.Time) (*models.TimelineEntry, error)
	// FindSuccessor devolve a entrada com o menor startsAt > at, ou nil.
	FindSuccessor(ctx context.Context, at time.Time) (*models.TimelineEntry, error)
	// Neighbours devolve as entradas imediatamente antes e depois de id na
	// ordem (startsAt, seq). Empates em startsAt seguem a ordem de gravação.
	Neighbours(ctx context.Context, id string) (pred, succ *models.TimelineEntry, err error)
	Latest(ctx context.Context) (*models.TimelineEntry, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, entry *models.TimelineEntry) error
	UpdateBounds(ctx context.Context, id string, startsAt time.Time, endsAt *time.Time) error
	Delete(ctx context.Context, id string) error
	// SetCurrentState reaponta o currentStateId do owner.
	SetCurrentState(ctx context.Context, stateID string) error
}

type TimelineStore interface {
	GetTimelineEntry(ctx context.Context, id string) (*models.TimelineEntry, error)
	// ListTimeline devolve as entradas do owner ordenadas por startsAt.
	ListTimeline(ctx context.Context, owner models.OwnerRef) ([]*models.TimelineEntry, error)
	OpenTimelineEntry(ctx context.Context, owner models.OwnerRef) (*models.TimelineEntry, error)
	// OwnerProject devolve o projeto do owner, ou ErrNotFound.
	OwnerProject(ctx context.Context, owner models.OwnerRef) (string, error)
	// InOwnerTx roda fn como uma unidade atômica, serializada contra qualquer
	// outra chamada de InOwnerTx do mesmo owner.
	InOwnerTx(ctx context.Context, owner models.OwnerRef, fn func(tx TimelineTx) error) error
}

type StateStore interface {
	GetState(ctx context.Context, id string) (*models.State, error)
	// FindStateByFlag devolve ErrNotFound quando o projeto não tem o estado.
	FindStateByFlag(ctx context.Context, projectID string, kind models.OwnerKind, flag models.StateFlag) (*models.State, error)
	GetSeverity(ctx context.Context, id string) (*models.Severity, error)
	// FindLowestSeverity devolve a severidade de menor order.
	FindLowestSeverity(ctx context.Context, projectID string) (*models.Severity, error)
}

type MonitorStore interface {
	GetMonitor(ctx context.Context, id string) (*models.Monitor, error)
	FindMonitorBySecretKey(ctx context.Context, secretKey string) (*models.Monitor, error)
	ListMonitorsByType(ctx context.Context, types ...models.MonitorType) ([]*models.Monitor, error)
	MarkIncomingRequest(ctx context.Context, monitorID string, at time.Time) error
}

type IncidentStore interface {
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	// CreateIncident atribui o ID e o próximo Number do projeto.
	CreateIncident(ctx context.Context, incident *models.Incident) error
	// FindOpenIncidentsForMonitor lista os incidentes ligados ao monitor cujo
	// estado atual não é um estado resolvido.
	FindOpenIncidentsForMonitor(ctx context.Context, projectID, monitorID string) ([]*models.Incident, error)
}

type AlertStore interface {
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	CreateAlert(ctx context.Context, alert *models.Alert) error
}

type MaintenanceStore interface {
	GetMaintenance(ctx context.Context, id string) (*models.ScheduledMaintenance, error)
	CreateMaintenance(ctx context.Context, event *models.ScheduledMaintenance) error
}

type EscalationStore interface {
	GetPolicy(ctx context.Context, id string) (*models.OnCallPolicy, error)
	// FindRule devolve ErrNotFound quando a política não tem regra nessa ordem.
	FindRule(ctx context.Context, projectID, policyID string, order int) (*models.EscalationRule, error)
	CreateExecutionLog(ctx context.Context, log *models.ExecutionLog) error
	GetExecutionLog(ctx context.Context, id string) (*models.ExecutionLog, error)
	ListExecutionLogs(ctx context.Context, projectID string, status models.ExecutionStatus) ([]*models.ExecutionLog, error)
	ListExecutingLogs(ctx context.Context) ([]*models.ExecutionLog, error)
	// AdvanceExecutionLog aplica adv só se o log ainda estiver Executing com a
	// ordem e o repeatCount esperados. Informa se aplicou.
	AdvanceExecutionLog(ctx context.Context, id string, adv models.Advance) (bool, error)
	// FinishExecutionLog leva um log Executing a um status terminal. Logs já
	// terminais ficam como estão e o retorno é false.
	FinishExecutionLog(ctx context.Context, id string, status models.ExecutionStatus, message string) (bool, error)
	DeleteFinishedLogsBefore(ctx context.Context, before time.Time) (int64, error)
}

type MetricStore interface {
	// ReplaceOwnerMetrics apaga os pontos do owner com os nomes dados e grava
	// points no lugar.
	ReplaceOwnerMetrics(ctx context.Context, owner models.OwnerRef, names []models.MetricName, points []models.MetricPoint) error
	AppendMetrics(ctx context.Context, points []models.MetricPoint) error
	ListMetrics(ctx context.Context, owner models.OwnerRef) ([]models.MetricPoint, error)
	DeleteMetricsBefore(ctx context.Context, before time.Time) (int64, error)
}

// Store agrega todos os contratos. Memory e postgres.Store implementam.
type Store interface {
	TimelineStore
	StateStore
	MonitorStore
	IncidentStore
	AlertStore
	MaintenanceStore
	EscalationStore
	MetricStore
}
