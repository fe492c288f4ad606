package models

import "time"

type MonitorType string

const (
	MonitorAPI             MonitorType = "API"
	MonitorWebsite         MonitorType = "Website"
	MonitorIP              MonitorType = "IP"
	MonitorPing            MonitorType = "Ping"
	MonitorPort            MonitorType = "Port"
	MonitorServer          MonitorType = "Server"
	MonitorSynthetic       MonitorType = "SyntheticMonitor"
	MonitorCustomCode      MonitorType = "CustomJavaScriptCode"
	MonitorIncomingRequest MonitorType = "IncomingRequest"
	MonitorLogs            MonitorType = "Logs"
	MonitorTraces          MonitorType = "Traces"
	MonitorSSLCertificate  MonitorType = "SSLCertificate"
	MonitorManual          MonitorType = "Manual"
)

// IsProbeKind informa se os resultados desse tipo chegam como ProbeResult.
func (t MonitorType) IsProbeKind() bool {
	switch t {
	case MonitorAPI, MonitorWebsite, MonitorIP, MonitorPing, MonitorPort:
		return true
	}
	return false
}

// SupportsExpressions informa se filtros JavaScriptExpression rodam sobre os
// resultados desse tipo de monitor.
func (t MonitorType) SupportsExpressions() bool {
	return t == MonitorAPI || t == MonitorWebsite || t == MonitorIncomingRequest
}

// Monitor é o que o pipeline precisa saber de um monitor. Incidentes e
// timelines só guardam o ID.
type Monitor struct {
	ID              string       `json:"id"`
	ProjectID       string       `json:"projectId"`
	Name            string       `json:"name"`
	Type            MonitorType  `json:"monitorType"`
	Steps           MonitorSteps `json:"monitorSteps"`
	CurrentStatusID string       `json:"currentMonitorStatusId"`

	DisableActiveMonitoring                              bool `json:"disableActiveMonitoring"`
	DisableActiveMonitoringBecauseOfManualIncident       bool `json:"disableActiveMonitoringBecauseOfManualIncident"`
	DisableActiveMonitoringBecauseOfScheduledMaintenance bool `json:"disableActiveMonitoringBecauseOfScheduledMaintenanceEvent"`

	// Check HTTP embutido. Monitor sem URL só recebe resultados de probes externos.
	URL            string `json:"url,omitempty"`
	Interval       string `json:"interval,omitempty"`
	ExpectedStatus *int   `json:"expectedStatus,omitempty"`
	TimeoutMs      *int   `json:"timeoutMs,omitempty"`

	IncomingSecretKey         string     `json:"incomingSecretKey,omitempty"`
	IncomingRequestReceivedAt *time.Time `json:"incomingRequestReceivedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Owner devolve a referência de owner da timeline do monitor.
func (m *Monitor) Owner() OwnerRef {
	return OwnerRef{Kind: OwnerMonitor, ID: m.ID}
}
