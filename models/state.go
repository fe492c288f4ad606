package models

// State é um estado nomeado do ciclo de vida de um owner. Status de monitor e
// estados de incidente, alerta e manutenção ficam no mesmo catálogo,
// separados por OwnerKind.
type State struct {
	ID                  string    `json:"id"`
	ProjectID           string    `json:"projectId"`
	OwnerKind           OwnerKind `json:"ownerKind"`
	Name                string    `json:"name"`
	Color               string    `json:"color"`
	Order               int       `json:"order"`
	IsCreatedState      bool      `json:"isCreatedState"`
	IsAcknowledgedState bool      `json:"isAcknowledgedState"`
	IsResolvedState     bool      `json:"isResolvedState"`
	IsScheduledState    bool      `json:"isScheduledState"`
	IsOngoingState      bool      `json:"isOngoingState"`
	IsEndedState        bool      `json:"isEndedState"`
	IsOperationalState  bool      `json:"isOperationalState"`
}

// StateFlag escolhe um dos estados conhecidos do projeto.
type StateFlag string

const (
	FlagCreated      StateFlag = "created"
	FlagAcknowledged StateFlag = "acknowledged"
	FlagResolved     StateFlag = "resolved"
	FlagScheduled    StateFlag = "scheduled"
	FlagOngoing      StateFlag = "ongoing"
	FlagEnded        StateFlag = "ended"
	FlagOperational  StateFlag = "operational"
)

// Has informa se o estado tem a flag.
func (s *State) Has(flag StateFlag) bool {
	switch flag {
	case FlagCreated:
		return s.IsCreatedState
	case FlagAcknowledged:
		return s.IsAcknowledgedState
	case FlagResolved:
		return s.IsResolvedState
	case FlagScheduled:
		return s.IsScheduledState
	case FlagOngoing:
		return s.IsOngoingState
	case FlagEnded:
		return s.IsEndedState
	case FlagOperational:
		return s.IsOperationalState
	}
	return false
}

type Severity struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
	Order     int    `json:"order"`
}
