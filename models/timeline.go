package models

import (
	"encoding/json"
	"time"
)

// TimelineEntry é um intervalo contíguo de um único estado de um owner.
// EndsAt nil marca a entrada aberta (estado atual).
type TimelineEntry struct {
	ID              string          `json:"id"`
	ProjectID       string          `json:"projectId"`
	Owner           OwnerRef        `json:"owner"`
	StateID         string          `json:"stateId"`
	StartsAt        time.Time       `json:"startsAt"`
	EndsAt          *time.Time      `json:"endsAt,omitempty"`
	RootCause       string          `json:"rootCause,omitempty"`
	StateChangeLog  json.RawMessage `json:"stateChangeLog,omitempty"`
	CreatedByUserID string          `json:"createdByUserId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (e *TimelineEntry) IsOpen() bool {
	return e.EndsAt == nil
}

// Clone copia a entrada para que ninguém compartilhe ponteiros com o store.
func (e *TimelineEntry) Clone() *TimelineEntry {
	if e == nil {
		return nil
	}
	c := *e
	if e.EndsAt != nil {
		t := *e.EndsAt
		c.EndsAt = &t
	}
	if e.StateChangeLog != nil {
		c.StateChangeLog = append(json.RawMessage(nil), e.StateChangeLog...)
	}
	return &c
}
