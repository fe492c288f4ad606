package criteria

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"reacher-incidents/instrument"
	"reacher-incidents/models"
)

// serverOnlineWindow é o tempo máximo desde o último report do agente para
// o servidor ainda contar como online.
const serverOnlineWindow = 2 * time.Minute

// Predicates decide se um único filtro casa com um resultado normalizado.
type Predicates struct {
	sandbox Sandbox
	log     *zap.Logger
	now     func() time.Time
}

func NewPredicates(sandbox Sandbox, log *zap.Logger) *Predicates {
	if sandbox == nil {
		sandbox = GojaSandbox{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Predicates{sandbox: sandbox, log: log, now: time.Now}
}

// WithClock fixa o relógio dos filtros relativos ao tempo.
func (p *Predicates) WithClock(now func() time.Time) *Predicates {
	p.now = now
	return p
}

// Evaluate devolve a linha de causa raiz e true quando o filtro casa.
// Problemas de avaliação não escapam: vão pro log e o filtro não casa.
func (p *Predicates) Evaluate(ctx context.Context, monitorType models.MonitorType, result models.CheckResult, f models.CriteriaFilter) (string, bool) {
	if result == nil {
		return "", false
	}
	if f.CheckOn == models.CheckJavaScriptExpression {
		return p.expression(ctx, monitorType, result, f)
	}

	switch r := result.(type) {
	case *models.ProbeResult:
		if monitorType.IsProbeKind() {
			return probe(r, f)
		}
	case *models.ServerResult:
		if monitorType == models.MonitorServer {
			return p.server(r, f)
		}
	case *models.SyntheticResult:
		if monitorType == models.MonitorSynthetic {
			return synthetic(r, f)
		}
	case *models.CustomCodeResult:
		if monitorType == models.MonitorCustomCode {
			return scriptRun(models.SyntheticRun{
				ExecutionTimeMs: r.ExecutionTimeMs,
				ScriptError:     r.ScriptError,
				Result:          r.Result,
				Logs:            r.Logs,
			}, f)
		}
	case *models.IncomingRequestResult:
		if monitorType == models.MonitorIncomingRequest {
			return p.incoming(r, f)
		}
	case *models.LogQueryResult:
		if monitorType == models.MonitorLogs && f.CheckOn == models.CheckLogCount {
			return met(compareNumber(float64(r.LogCount), f), numberCause("Log count", float64(r.LogCount), "", f))
		}
		return "", false
	case *models.TraceQueryResult:
		if monitorType == models.MonitorTraces && f.CheckOn == models.CheckSpanCount {
			return met(compareNumber(float64(r.SpanCount), f), numberCause("Span count", float64(r.SpanCount), "", f))
		}
		return "", false
	case *models.SSLResult:
		if monitorType == models.MonitorSSLCertificate {
			return p.ssl(r, f)
		}
	default:
		p.log.Warn("unknown check result variant", zap.String("kind", string(result.Kind())))
		return "", false
	}

	p.log.Debug("check result does not belong to monitor type",
		zap.String("monitorType", string(monitorType)),
		zap.String("kind", string(result.Kind())))
	return "", false
}

func met(ok bool, cause string) (string, bool) {
	if !ok {
		return "", false
	}
	return cause, true
}

func probe(r *models.ProbeResult, f models.CriteriaFilter) (string, bool) {
	switch f.CheckOn {
	case models.CheckIsOnline:
		if r.IsOnline {
			return met(compareBool(true, f), "Monitor is online.")
		}
		return met(compareBool(false, f), "Monitor is offline.")
	case models.CheckIsRequestTimeout:
		if r.IsTimeout {
			return met(compareBool(true, f), "Request timed out.")
		}
		return met(compareBool(false, f), "Request did not time out.")
	case models.CheckResponseTime:
		if !r.IsOnline && r.ResponseTimeMs == 0 {
			return "", false
		}
		return met(compareNumber(r.ResponseTimeMs, f), numberCause("Response time", r.ResponseTimeMs, "ms", f))
	case models.CheckResponseStatusCode:
		if r.ResponseCode == 0 {
			return "", false
		}
		return met(compareNumber(float64(r.ResponseCode), f), numberCause("Response status code", float64(r.ResponseCode), "", f))
	case models.CheckResponseBody:
		return met(compareString(r.ResponseBody, f), stringCause("Response body", f))
	case models.CheckResponseHeader:
		return met(compareAny(headerNames(r.ResponseHeaders), f), stringCause("Response headers", f))
	case models.CheckResponseHeaderValue:
		return met(compareAny(headerValues(r.ResponseHeaders), f), stringCause("Response header values", f))
	}
	return "", false
}

func (p *Predicates) server(r *models.ServerResult, f models.CriteriaFilter) (string, bool) {
	switch f.CheckOn {
	case models.CheckIsOnline:
		online := !r.RequestReceivedAt.IsZero() && p.now().Sub(r.RequestReceivedAt) <= serverOnlineWindow
		if online {
			return met(compareBool(true, f), "Server is online.")
		}
		return met(compareBool(false, f), "Server is offline.")
	case models.CheckCPUUsagePercent:
		if r.CPUPercent == nil {
			return "", false
		}
		return met(compareNumber(*r.CPUPercent, f), numberCause("CPU usage", round2(*r.CPUPercent), "%", f))
	case models.CheckMemoryUsagePercent:
		if r.MemoryPercent == nil {
			return "", false
		}
		return met(compareNumber(*r.MemoryPercent, f), numberCause("Memory usage", round2(*r.MemoryPercent), "%", f))
	case models.CheckDiskUsagePercent:
		var paths []string
		if f.ServerOptions != nil {
			paths = f.ServerOptions.DiskPaths
		}
		for _, d := range r.Disks {
			if len(paths) > 0 && !slices.Contains(paths, d.DiskPath) {
				continue
			}
			if compareNumber(d.PercentUsed, f) {
				return numberCause("Disk usage of "+d.DiskPath, round2(d.PercentUsed), "%", f), true
			}
		}
		return "", false
	case models.CheckServerProcessName:
		return processFilter(r.Processes, f, "Process "+f.Value, func(pr models.ServerProcess) bool {
			return pr.Name == f.Value
		})
	case models.CheckServerProcessPID:
		pid, err := strconv.Atoi(strings.TrimSpace(f.Value))
		if err != nil {
			return "", false
		}
		return processFilter(r.Processes, f, "Process with PID "+f.Value, func(pr models.ServerProcess) bool {
			return pr.PID == pid
		})
	case models.CheckServerProcessCommand:
		return processFilter(r.Processes, f, "Process with command "+f.Value, func(pr models.ServerProcess) bool {
			return pr.Command == f.Value
		})
	}
	return "", false
}

func processFilter(procs []models.ServerProcess, f models.CriteriaFilter, label string, match func(models.ServerProcess) bool) (string, bool) {
	running := slices.ContainsFunc(procs, match)
	switch f.FilterType {
	case models.FilterIsExecuting:
		return met(running, label+" is executing.")
	case models.FilterIsNotExecuting:
		return met(!running, label+" is not executing.")
	}
	return "", false
}

// synthetic casa se qualquer execução (browser x tamanho de tela) casar.
func synthetic(r *models.SyntheticResult, f models.CriteriaFilter) (string, bool) {
	for _, run := range r.Runs {
		if cause, ok := scriptRun(run, f); ok {
			if run.BrowserType != "" || run.ScreenSizeType != "" {
				cause = fmt.Sprintf("%s (%s, %s)", cause, run.BrowserType, run.ScreenSizeType)
			}
			return cause, true
		}
	}
	return "", false
}

func scriptRun(run models.SyntheticRun, f models.CriteriaFilter) (string, bool) {
	switch f.CheckOn {
	case models.CheckExecutionTime:
		return met(compareNumber(run.ExecutionTimeMs, f), numberCause("Execution time", run.ExecutionTimeMs, "ms", f))
	case models.CheckError:
		return met(compareString(run.ScriptError, f), stringCause("Script error", f))
	case models.CheckResultValue:
		return met(compareValue(run.Result, f), stringCause("Result value", f))
	case models.CheckConsoleLog:
		return met(compareAny(run.Logs, f), stringCause("Console log", f))
	}
	return "", false
}

func (p *Predicates) incoming(r *models.IncomingRequestResult, f models.CriteriaFilter) (string, bool) {
	switch f.CheckOn {
	case models.CheckIncomingRequest:
		minutes, ok := parseNumber(f.Value)
		if !ok {
			return "", false
		}
		window := time.Duration(minutes * float64(time.Minute))
		received := r.ReceivedAt != nil && p.now().Sub(*r.ReceivedAt) <= window
		switch f.FilterType {
		case models.FilterReceivedInMinutes:
			return met(received, fmt.Sprintf("Incoming request received in the last %s minutes.", f.Value))
		case models.FilterNotReceivedInMinutes:
			return met(!received, fmt.Sprintf("Incoming request not received in the last %s minutes.", f.Value))
		}
	case models.CheckRequestBody:
		return met(compareString(r.RequestBody, f), stringCause("Request body", f))
	case models.CheckRequestHeader:
		return met(compareAny(headerNames(r.RequestHeaders), f), stringCause("Request headers", f))
	case models.CheckRequestHeaderValue:
		return met(compareAny(headerValues(r.RequestHeaders), f), stringCause("Request header values", f))
	}
	return "", false
}

func (p *Predicates) ssl(r *models.SSLResult, f models.CriteriaFilter) (string, bool) {
	expired := r.ExpiresAt != nil && !r.ExpiresAt.After(p.now())
	switch f.CheckOn {
	case models.CheckIsOnline:
		if r.IsOnline {
			return met(compareBool(true, f), "Monitor is online.")
		}
		return met(compareBool(false, f), "Monitor is offline.")
	case models.CheckIsValidCertificate:
		return met(compareBool(r.IsValid, f), certCause("valid", r.IsValid))
	case models.CheckIsNotAValidCertificate:
		return met(compareBool(!r.IsValid, f), certCause("valid", r.IsValid))
	case models.CheckIsSelfSignedCertificate:
		return met(compareBool(r.IsSelfSigned, f), certCause("self-signed", r.IsSelfSigned))
	case models.CheckIsExpiredCertificate:
		return met(compareBool(expired, f), certCause("expired", expired))
	case models.CheckExpiresInHours, models.CheckExpiresInDays:
		if r.ExpiresAt == nil {
			return "", false
		}
		left := r.ExpiresAt.Sub(p.now())
		if f.CheckOn == models.CheckExpiresInHours {
			hours := math.Floor(left.Hours())
			return met(compareNumber(hours, f), numberCause("Certificate expires in", hours, " hours", f))
		}
		days := math.Floor(left.Hours() / 24)
		return met(compareNumber(days, f), numberCause("Certificate expires in", days, " days", f))
	}
	return "", false
}

func certCause(what string, is bool) string {
	if is {
		return "Certificate is " + what + "."
	}
	return "Certificate is not " + what + "."
}

// expression roda um filtro JavaScriptExpression no sandbox.
func (p *Predicates) expression(ctx context.Context, monitorType models.MonitorType, result models.CheckResult, f models.CriteriaFilter) (string, bool) {
	snapshot := expressionSnapshot(monitorType, result)
	ok, err := p.sandbox.Evaluate(ctx, f.Value, snapshot)
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, ErrSandboxTimeout), errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, ErrSandboxSyntax):
			reason = "syntax"
		}
		instrument.SandboxFailures.WithLabelValues(reason).Inc()
		p.log.Warn("expression filter degraded to not met",
			zap.String("monitorId", result.Common().MonitorID),
			zap.String("reason", reason),
			zap.Error(err))
		return "", false
	}
	return met(ok, fmt.Sprintf("JavaScript Expression - %s - evaluated to true.", f.Value))
}

// expressionSnapshot monta o que a expressão enxerga. Body que não é JSON
// chega como string crua; body vazio vira objeto vazio.
func expressionSnapshot(monitorType models.MonitorType, result models.CheckResult) map[string]any {
	switch r := result.(type) {
	case *models.ProbeResult:
		if monitorType != models.MonitorAPI && monitorType != models.MonitorWebsite {
			return map[string]any{}
		}
		return map[string]any{
			"responseBody":       parseBody(r.ResponseBody),
			"responseHeaders":    r.ResponseHeaders,
			"responseStatusCode": r.ResponseCode,
			"responseTimeInMs":   r.ResponseTimeMs,
			"isOnline":           r.IsOnline,
		}
	case *models.IncomingRequestResult:
		return map[string]any{
			"requestBody":    parseBody(r.RequestBody),
			"requestHeaders": r.RequestHeaders,
		}
	}
	return map[string]any{}
}

func parseBody(body string) any {
	if strings.TrimSpace(body) == "" {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		return body
	}
	return v
}

func headerNames(h map[string]string) []string {
	out := make([]string, 0, len(h))
	for k := range h {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

func headerValues(h map[string]string) []string {
	out := make([]string, 0, len(h))
	for _, k := range headerNames(h) {
		out = append(out, h[k])
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
