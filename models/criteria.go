package models

// CheckOn nomeia a medida que um filtro observa.
type CheckOn string

const (
	CheckIsOnline             CheckOn = "IsOnline"
	CheckIsRequestTimeout     CheckOn = "IsRequestTimeout"
	CheckResponseTime         CheckOn = "ResponseTime"
	CheckResponseStatusCode   CheckOn = "ResponseStatusCode"
	CheckResponseBody         CheckOn = "ResponseBody"
	CheckResponseHeader       CheckOn = "ResponseHeader"
	CheckResponseHeaderValue  CheckOn = "ResponseHeaderValue"
	CheckJavaScriptExpression CheckOn = "JavaScriptExpression"

	CheckCPUUsagePercent      CheckOn = "CPUUsagePercent"
	CheckMemoryUsagePercent   CheckOn = "MemoryUsagePercent"
	CheckDiskUsagePercent     CheckOn = "DiskUsagePercent"
	CheckServerProcessName    CheckOn = "ServerProcessName"
	CheckServerProcessPID     CheckOn = "ServerProcessPID"
	CheckServerProcessCommand CheckOn = "ServerProcessCommand"

	CheckExecutionTime CheckOn = "ExecutionTime"
	CheckError         CheckOn = "Error"
	CheckResultValue   CheckOn = "ResultValue"
	CheckConsoleLog    CheckOn = "ConsoleLog"

	CheckIncomingRequest    CheckOn = "IncomingRequest"
	CheckRequestBody        CheckOn = "RequestBody"
	CheckRequestHeader      CheckOn = "RequestHeader"
	CheckRequestHeaderValue CheckOn = "RequestHeaderValue"

	CheckLogCount  CheckOn = "LogCount"
	CheckSpanCount CheckOn = "SpanCount"

	CheckIsValidCertificate      CheckOn = "IsValidCertificate"
	CheckIsNotAValidCertificate  CheckOn = "IsNotAValidCertificate"
	CheckIsSelfSignedCertificate CheckOn = "IsSelfSignedCertificate"
	CheckIsExpiredCertificate    CheckOn = "IsExpiredCertificate"
	CheckExpiresInHours          CheckOn = "ExpiresInHours"
	CheckExpiresInDays           CheckOn = "ExpiresInDays"
)

// FilterType é o operador que o filtro aplica.
type FilterType string

const (
	FilterEqualTo              FilterType = "EqualTo"
	FilterNotEqualTo           FilterType = "NotEqualTo"
	FilterGreaterThan          FilterType = "GreaterThan"
	FilterLessThan             FilterType = "LessThan"
	FilterGreaterThanOrEqualTo FilterType = "GreaterThanOrEqualTo"
	FilterLessThanOrEqualTo    FilterType = "LessThanOrEqualTo"
	FilterContains             FilterType = "Contains"
	FilterNotContains          FilterType = "NotContains"
	FilterStartsWith           FilterType = "StartsWith"
	FilterEndsWith             FilterType = "EndsWith"
	FilterIsEmpty              FilterType = "IsEmpty"
	FilterIsNotEmpty           FilterType = "IsNotEmpty"
	FilterMatchesRegex         FilterType = "MatchesRegex"
	FilterNotMatchesRegex      FilterType = "NotMatchesRegex"
	FilterTrue                 FilterType = "True"
	FilterFalse                FilterType = "False"
	FilterIsExecuting          FilterType = "IsExecuting"
	FilterIsNotExecuting       FilterType = "IsNotExecuting"
	FilterReceivedInMinutes    FilterType = "ReceivedInMinutes"
	FilterNotReceivedInMinutes FilterType = "NotReceivedInMinutes"
	FilterEvaluatesToTrue      FilterType = "EvaluatesToTrue"
)

type FilterCondition string

const (
	FilterConditionAll FilterCondition = "All"
	FilterConditionAny FilterCondition = "Any"
)

type ServerMonitorOptions struct {
	DiskPaths []string `json:"diskPaths,omitempty"`
}

type CriteriaFilter struct {
	CheckOn       CheckOn               `json:"checkOn"`
	FilterType    FilterType            `json:"filterType"`
	Value         string                `json:"value"`
	ServerOptions *ServerMonitorOptions `json:"serverMonitorOptions,omitempty"`
}

// IncidentTemplate descreve o incidente aberto quando a criteria casa.
type IncidentTemplate struct {
	ID                  string   `json:"id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	SeverityID          string   `json:"incidentSeverityId,omitempty"`
	AutoResolveIncident bool     `json:"autoResolveIncident"`
	OnCallPolicyIDs     []string `json:"onCallPolicyIds,omitempty"`
	RemediationNotes    string   `json:"remediationNotes,omitempty"`
}

type CriteriaInstance struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Description         string             `json:"description,omitempty"`
	FilterCondition     FilterCondition    `json:"filterCondition"`
	Filters             []CriteriaFilter   `json:"filters"`
	ChangeMonitorStatus bool               `json:"changeMonitorStatus"`
	MonitorStatusID     string             `json:"monitorStatusId,omitempty"`
	CreateIncidents     bool               `json:"createIncidents"`
	Incidents           []IncidentTemplate `json:"incidents,omitempty"`
}

type MonitorStep struct {
	ID       string             `json:"id"`
	Criteria []CriteriaInstance `json:"monitorCriteriaInstanceArray"`
}

type MonitorSteps struct {
	Steps                  []MonitorStep `json:"monitorStepsInstanceArray"`
	DefaultMonitorStatusID string        `json:"defaultMonitorStatusId,omitempty"`
}
