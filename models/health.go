package models

// Status é o nome de um dos status padrão de monitor.
type Status string

/*
Default monitor statuses:

Projects that do not define their own monitor statuses get this catalog.
Criteria point at statuses by id, so the catalog only matters for seeding.

  - Operational: the monitor passed its checks.
  - Degraded: the monitor answers but a criteria flagged it (slow, wrong content).
  - Partial Outage: some probes or steps fail.
  - Major Outage: the monitor is offline.
*/

const (
	Operational     Status = "Operational"
	ServiceDegraded Status = "Degraded"
	PartialOutage   Status = "Partial Outage"
	MajorOutage     Status = "Major Outage"
)

// DefaultMonitorStatuses devolve o catálogo padrão de status de monitor do projeto.
func DefaultMonitorStatuses(projectID string) []State {
	return []State{
		{ProjectID: projectID, OwnerKind: OwnerMonitor, Name: string(Operational), Color: "#10b981", Order: 1, IsOperationalState: true},
		{ProjectID: projectID, OwnerKind: OwnerMonitor, Name: string(ServiceDegraded), Color: "#f59e0b", Order: 2},
		{ProjectID: projectID, OwnerKind: OwnerMonitor, Name: string(PartialOutage), Color: "#f97316", Order: 3},
		{ProjectID: projectID, OwnerKind: OwnerMonitor, Name: string(MajorOutage), Color: "#ef4444", Order: 4},
	}
}

// DefaultIncidentStates devolve o catálogo created/acknowledged/resolved usado
// por incidentes e alertas.
func DefaultIncidentStates(projectID string, kind OwnerKind) []State {
	return []State{
		{ProjectID: projectID, OwnerKind: kind, Name: "Identified", Color: "#ef4444", Order: 1, IsCreatedState: true},
		{ProjectID: projectID, OwnerKind: kind, Name: "Acknowledged", Color: "#f59e0b", Order: 2, IsAcknowledgedState: true},
		{ProjectID: projectID, OwnerKind: kind, Name: "Resolved", Color: "#10b981", Order: 3, IsResolvedState: true},
	}
}

func DefaultMaintenanceStates(projectID string) []State {
	return []State{
		{ProjectID: projectID, OwnerKind: OwnerScheduledMaintenance, Name: "Scheduled", Color: "#6366f1", Order: 1, IsScheduledState: true},
		{ProjectID: projectID, OwnerKind: OwnerScheduledMaintenance, Name: "Ongoing", Color: "#f59e0b", Order: 2, IsOngoingState: true},
		{ProjectID: projectID, OwnerKind: OwnerScheduledMaintenance, Name: "Completed", Color: "#10b981", Order: 3, IsEndedState: true, IsResolvedState: true},
	}
}
