package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// CheckKind identifica as variantes de CheckResult.
type CheckKind string

const (
	KindProbe           CheckKind = "probe"
	KindServer          CheckKind = "server"
	KindSynthetic       CheckKind = "synthetic"
	KindCustomCode      CheckKind = "customCode"
	KindIncomingRequest CheckKind = "incomingRequest"
	KindLogQuery        CheckKind = "logQuery"
	KindTraceQuery      CheckKind = "traceQuery"
	KindSSL             CheckKind = "ssl"
)

// CheckResult é um resultado de check normalizado. O conjunto de variantes é
// fechado: todas vivem neste arquivo e quem consome faz switch no tipo
// concreto.
type CheckResult interface {
	Kind() CheckKind
	Common() *CheckEnvelope
}

// CheckEnvelope carrega os campos comuns a todas as variantes.
type CheckEnvelope struct {
	MonitorID     string    `json:"monitorId"`
	ProbeID       string    `json:"probeId,omitempty"`
	MonitorStepID string    `json:"monitorStepId,omitempty"`
	FailureCause  string    `json:"failureCause,omitempty"`
	CheckedAt     time.Time `json:"checkedAt"`
}

func (e *CheckEnvelope) Common() *CheckEnvelope { return e }

// ProbeResult vem dos monitores API, Website, IP, Ping e Port.
type ProbeResult struct {
	CheckEnvelope
	IsOnline        bool              `json:"isOnline"`
	IsTimeout       bool              `json:"isTimeout"`
	ResponseCode    int               `json:"responseCode,omitempty"`
	ResponseTimeMs  float64           `json:"responseTimeInMs,omitempty"`
	ResponseBody    string            `json:"responseBody,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
}

func (*ProbeResult) Kind() CheckKind { return KindProbe }

type DiskMetric struct {
	DiskPath    string  `json:"diskPath"`
	PercentUsed float64 `json:"percentUsed"`
}

type ServerProcess struct {
	PID     int    `json:"pid"`
	Name    string `json:"name"`
	Command string `json:"command"`
}

// ServerResult é enviado pelo agente instalado no servidor.
type ServerResult struct {
	CheckEnvelope
	Hostname          string          `json:"hostname,omitempty"`
	RequestReceivedAt time.Time       `json:"requestReceivedAt"`
	CPUPercent        *float64        `json:"cpuPercentUsed,omitempty"`
	MemoryPercent     *float64        `json:"memoryPercentUsed,omitempty"`
	Disks             []DiskMetric    `json:"diskMetrics,omitempty"`
	Processes         []ServerProcess `json:"processes,omitempty"`
}

func (*ServerResult) Kind() CheckKind { return KindServer }

type SyntheticRun struct {
	ExecutionTimeMs float64  `json:"executionTimeInMS"`
	ScriptError     string   `json:"scriptError,omitempty"`
	Result          string   `json:"result,omitempty"`
	Logs            []string `json:"logMessages,omitempty"`
	BrowserType     string   `json:"browserType,omitempty"`
	ScreenSizeType  string   `json:"screenSizeType,omitempty"`
}

type SyntheticResult struct {
	CheckEnvelope
	Runs []SyntheticRun `json:"syntheticMonitorResponse"`
}

func (*SyntheticResult) Kind() CheckKind { return KindSynthetic }

type CustomCodeResult struct {
	CheckEnvelope
	ExecutionTimeMs float64  `json:"executionTimeInMS"`
	ScriptError     string   `json:"scriptError,omitempty"`
	Result          string   `json:"result,omitempty"`
	Logs            []string `json:"logMessages,omitempty"`
}

func (*CustomCodeResult) Kind() CheckKind { return KindCustomCode }

// IncomingRequestResult nasce de uma requisição de heartbeat (IsHeartbeat
// true) ou da varredura de heartbeats que não chegaram; nesse caso ReceivedAt
// guarda o último recebimento conhecido.
type IncomingRequestResult struct {
	CheckEnvelope
	Method         string            `json:"method,omitempty"`
	RequestBody    string            `json:"requestBody,omitempty"`
	RequestHeaders map[string]string `json:"requestHeaders,omitempty"`
	ReceivedAt     *time.Time        `json:"incomingRequestReceivedAt,omitempty"`
	IsHeartbeat    bool              `json:"isHeartbeat"`
}

func (*IncomingRequestResult) Kind() CheckKind { return KindIncomingRequest }

type LogQueryResult struct {
	CheckEnvelope
	LogCount int             `json:"logCount"`
	LogQuery json.RawMessage `json:"logQuery,omitempty"`
}

func (*LogQueryResult) Kind() CheckKind { return KindLogQuery }

type TraceQueryResult struct {
	CheckEnvelope
	SpanCount int             `json:"spanCount"`
	SpanQuery json.RawMessage `json:"spanQuery,omitempty"`
}

func (*TraceQueryResult) Kind() CheckKind { return KindTraceQuery }

type SSLResult struct {
	CheckEnvelope
	IsOnline     bool       `json:"isOnline"`
	IsSelfSigned bool       `json:"isSelfSigned"`
	IsValid      bool       `json:"isValid"`
	Issuer       string     `json:"issuer,omitempty"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
	ExpiresAt    *time.Time `json:"expiresAt,omitempty"`
}

func (*SSLResult) Kind() CheckKind { return KindSSL }

type checkResultEnvelope struct {
	Kind CheckKind       `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// DecodeCheckResult lê {"kind": ..., "data": {...}} na variante correspondente.
func DecodeCheckResult(raw []byte) (CheckResult, error) {
	var env checkResultEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, BadData("invalid check result: %v", err)
	}
	var result CheckResult
	switch env.Kind {
	case KindProbe:
		result = &ProbeResult{}
	case KindServer:
		result = &ServerResult{}
	case KindSynthetic:
		result = &SyntheticResult{}
	case KindCustomCode:
		result = &CustomCodeResult{}
	case KindIncomingRequest:
		result = &IncomingRequestResult{}
	case KindLogQuery:
		result = &LogQueryResult{}
	case KindTraceQuery:
		result = &TraceQueryResult{}
	case KindSSL:
		result = &SSLResult{}
	default:
		return nil, BadData("unknown check result kind %q", env.Kind)
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return nil, BadData("invalid %s check result: %v", env.Kind, err)
		}
	}
	return result, nil
}

// EncodeCheckResult é o inverso de DecodeCheckResult. É também o formato
// gravado como state change log das entradas de timeline.
func EncodeCheckResult(result CheckResult) (json.RawMessage, error) {
	if result == nil {
		return nil, nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode %s check result: %w", result.Kind(), err)
	}
	return json.Marshal(checkResultEnvelope{Kind: result.Kind(), Data: data})
}
