package models

import "time"

type OnCallPolicy struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	// Quantas vezes a política recomeça da regra 1 se ninguém der ack.
	RepeatIfNoOneAcknowledges int `json:"repeatPolicyIfNoOneAcknowledgesNoOfTimes"`
}

type EscalationRule struct {
	ID                   string `json:"id"`
	ProjectID            string `json:"projectId"`
	PolicyID             string `json:"onCallPolicyId"`
	Name                 string `json:"name"`
	Order                int    `json:"order"`
	EscalateAfterMinutes int    `json:"escalateAfterInMinutes"`
}

type ExecutionStatus string

const (
	ExecutionExecuting ExecutionStatus = "Executing"
	ExecutionCompleted ExecutionStatus = "Completed"
	ExecutionError     ExecutionStatus = "Error"
)

// Terminal informa se o status nunca mais volta a Executing.
func (s ExecutionStatus) Terminal() bool {
	return s == ExecutionCompleted || s == ExecutionError
}

type NotificationEventType string

const (
	EventIncidentCreated NotificationEventType = "When incident is created"
	EventAlertCreated    NotificationEventType = "When alert is created"
)

// ExecutionLog acompanha o progresso de um trigger pelas regras ordenadas
// de uma política de on-call.
type ExecutionLog struct {
	ID                    string                `json:"id"`
	ProjectID             string                `json:"projectId"`
	PolicyID              string                `json:"onCallPolicyId"`
	TriggeredBy           OwnerRef              `json:"triggeredBy"`
	NotificationEventType NotificationEventType `json:"userNotificationEventType"`
	LastExecutedRuleOrder int                   `json:"lastExecutedEscalationRuleOrder"`
	LastExecutedRuleID    string                `json:"lastExecutedEscalationRuleId,omitempty"`
	LastExecutedAt        *time.Time            `json:"lastEscalationRuleExecutedAt,omitempty"`
	InterRuleDelayMinutes int                   `json:"executeNextEscalationRuleInMinutes"`
	RepeatCount           int                   `json:"onCallPolicyExecutionRepeatCount"`
	MaxRepeats            int                   `json:"maxRepeats"`
	Status                ExecutionStatus       `json:"status"`
	StatusMessage         string                `json:"statusMessage,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

// Advance é o compare-and-set de um log Executing. O store só aplica se o log
// ainda estiver em ExpectedOrder e ExpectedRepeat.
type Advance struct {
	ExpectedOrder         int
	ExpectedRepeat        int
	Order                 int
	RepeatCount           int
	RuleID                string
	InterRuleDelayMinutes int
	ExecutedAt            time.Time
}
