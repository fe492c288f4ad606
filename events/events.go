// Package events é a fila de saída do serviço: efeitos colaterais (refresh
// de métricas, eventos de feed) saem do caminho de escrita e rodam aqui, com
// retry próprio.
package events

import (
	"context"
	"time"

	"reacher-incidents/models"
)

// FeedEvent é uma mensagem markdown para o feed do owner.
type FeedEvent struct {
	ProjectID    string          `json:"projectId"`
	Owner        models.OwnerRef `json:"owner"`
	Markdown     string          `json:"markdown"`
	Color        string          `json:"color,omitempty"`
	NotifyUserID string          `json:"notifyUserId,omitempty"`
	At           time.Time       `json:"at"`
}

// RuleExecution pede ao serviço de paging que execute uma regra de escalonamento.
type RuleExecution struct {
	RuleID                string                       `json:"ruleId"`
	ProjectID             string                       `json:"projectId"`
	PolicyID              string                       `json:"onCallPolicyId"`
	ExecutionLogID        string                       `json:"executionLogId"`
	TriggeredBy           models.OwnerRef              `json:"triggeredBy"`
	NotificationEventType models.NotificationEventType `json:"userNotificationEventType"`
}

// FeedPublisher entrega eventos de feed (fire-and-forget).
type FeedPublisher interface {
	PublishFeed(ctx context.Context, evt FeedEvent) error
}

// Task é uma unidade de trabalho de saída.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue aceita tarefas sem bloquear o chamador.
type Queue interface {
	Enqueue(task Task) bool
}
