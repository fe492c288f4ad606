package models

import "fmt"

// OwnerKind identifica a entidade dona de uma timeline de estados.
type OwnerKind string

const (
	OwnerMonitor              OwnerKind = "Monitor"
	OwnerAlert                OwnerKind = "Alert"
	OwnerIncident             OwnerKind = "Incident"
	OwnerScheduledMaintenance OwnerKind = "ScheduledMaintenance"
)

func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerMonitor, OwnerAlert, OwnerIncident, OwnerScheduledMaintenance:
		return true
	}
	return false
}

// OwnerRef aponta para um owner pelo id. Owners nunca são embutidos.
type OwnerRef struct {
	Kind OwnerKind `json:"kind"`
	ID   string    `json:"id"`
}

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%s", o.Kind, o.ID)
}
