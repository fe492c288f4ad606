package monitor

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"reacher-incidents/models"
)

const (
	defaultTimeout  = 5 * time.Second
	maxResponseBody = 64 << 10
)

// HTTPChecker faz o check embutido dos monitores que têm URL.
type HTTPChecker struct {
	Client *http.Client
	now    func() time.Time
}

func NewHTTPChecker() *HTTPChecker {
	return &HTTPChecker{Client: &http.Client{}, now: time.Now}
}

// Check nunca falha: erros de rede viram um ProbeResult offline com a causa.
func (c *HTTPChecker) Check(ctx context.Context, m *models.Monitor) *models.ProbeResult {
	timeout := defaultTimeout
	if m.TimeoutMs != nil && *m.TimeoutMs > 0 {
		timeout = time.Duration(*m.TimeoutMs) * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := c.now()
	res := &models.ProbeResult{CheckEnvelope: models.CheckEnvelope{MonitorID: m.ID, CheckedAt: start.UTC()}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		res.FailureCause = err.Error()
		return res
	}
	resp, err := c.Client.Do(req)
	res.ResponseTimeMs = float64(c.now().Sub(start).Microseconds()) / 1000
	if err != nil {
		res.FailureCause = err.Error()
		res.IsTimeout = isTimeout(err)
		return res
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	res.ResponseCode = resp.StatusCode
	res.ResponseBody = string(body)
	res.ResponseHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		res.ResponseHeaders[k] = resp.Header.Get(k)
	}
	if m.ExpectedStatus != nil {
		res.IsOnline = resp.StatusCode == *m.ExpectedStatus
	} else {
		res.IsOnline = resp.StatusCode < http.StatusBadRequest
	}
	return res
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
