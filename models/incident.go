package models

import (
	"encoding/json"
	"time"
)

// TelemetryQuery guarda a consulta de logs/traces que levou ao incidente,
// para que a UI consiga reproduzir o que o monitor viu.
type TelemetryQuery struct {
	Kind  CheckKind       `json:"kind"`
	Query json.RawMessage `json:"query"`
}

// DedupKey identifica "o mesmo tipo de incidente" de um monitor.
type DedupKey struct {
	CriteriaID string
	TemplateID string
}

// Incident nasce de uma criteria que casou ou manualmente. Alert tem o mesmo
// formato e ciclo de vida.
type Incident struct {
	ID                        string          `json:"id"`
	ProjectID                 string          `json:"projectId"`
	Number                    int             `json:"number"`
	Title                     string          `json:"title"`
	Description               string          `json:"description,omitempty"`
	CurrentStateID            string          `json:"currentStateId"`
	SeverityID                string          `json:"severityId"`
	MonitorIDs                []string        `json:"monitorIds,omitempty"`
	OnCallPolicyIDs           []string        `json:"onCallPolicyIds,omitempty"`
	CreatedCriteriaID         string          `json:"createdCriteriaId,omitempty"`
	CreatedIncidentTemplateID string          `json:"createdIncidentTemplateId,omitempty"`
	IsCreatedAutomatically    bool            `json:"isCreatedAutomatically"`
	RootCause                 string          `json:"rootCause,omitempty"`
	CreatedStateLog           json.RawMessage `json:"createdStateLog,omitempty"`
	CreatedByProbeID          string          `json:"createdByProbeId,omitempty"`
	TelemetryQuery            *TelemetryQuery `json:"telemetryQuery,omitempty"`
	RemediationNotes          string          `json:"remediationNotes,omitempty"`
	CreatedAt                 time.Time       `json:"createdAt"`
}

func (i *Incident) Key() DedupKey {
	return DedupKey{CriteriaID: i.CreatedCriteriaID, TemplateID: i.CreatedIncidentTemplateID}
}

// Alert tem o mesmo ciclo de vida do incidente (created -> acknowledged -> resolved).
type Alert struct {
	ID                     string          `json:"id"`
	ProjectID              string          `json:"projectId"`
	Number                 int             `json:"number"`
	Title                  string          `json:"title"`
	Description            string          `json:"description,omitempty"`
	CurrentStateID         string          `json:"currentStateId"`
	SeverityID             string          `json:"severityId"`
	MonitorID              string          `json:"monitorId,omitempty"`
	OnCallPolicyIDs        []string        `json:"onCallPolicyIds,omitempty"`
	IsCreatedAutomatically bool            `json:"isCreatedAutomatically"`
	RootCause              string          `json:"rootCause,omitempty"`
	CreatedStateLog        json.RawMessage `json:"createdStateLog,omitempty"`
	CreatedByProbeID       string          `json:"createdByProbeId,omitempty"`
	CreatedAt              time.Time       `json:"createdAt"`
}

type ScheduledMaintenance struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"projectId"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	CurrentStateID string    `json:"currentStateId"`
	StartsAt       time.Time `json:"startsAt"`
	EndsAt         time.Time `json:"endsAt"`
	MonitorIDs     []string  `json:"monitorIds,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
