package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"reacher-incidents/models"
)

const (
	historyLimit = 1000
	countersTTL  = 90 * 24 * time.Hour
)

// CheckLog guarda o último resultado, o histórico curto e os contadores
// diários de cada monitor.
type CheckLog interface {
	Record(ctx context.Context, monitor *models.Monitor, result models.CheckResult) error
}

// HistoryEntry é um item da lista monitor:<id>:history.
type HistoryEntry struct {
	Timestamp      time.Time `json:"timestamp"`
	Status         string    `json:"status"`
	ResponseTimeMs float64   `json:"responseTime,omitempty"`
	ProbeID        string    `json:"probeId,omitempty"`
	FailureCause   string    `json:"failureCause,omitempty"`
}

type RedisCheckLog struct {
	rdb *redis.Client
}

func NewRedisCheckLog(rdb *redis.Client) *RedisCheckLog {
	return &RedisCheckLog{rdb: rdb}
}

func lastKey(monitorID string) string    { return fmt.Sprintf("monitor:%s:last", monitorID) }
func historyKey(monitorID string) string { return fmt.Sprintf("monitor:%s:history", monitorID) }
func countersKey(monitorID string, day time.Time) string {
	return fmt.Sprintf("monitor:%s:metrics:%s", monitorID, day.UTC().Format("2006-01-02"))
}

// Record grava tudo num único pipeline. O histórico fica limitado aos
// últimos historyLimit registros.
func (l *RedisCheckLog) Record(ctx context.Context, monitor *models.Monitor, result models.CheckResult) error {
	env := result.Common()
	raw, err := models.EncodeCheckResult(result)
	if err != nil {
		return fmt.Errorf("encode check result: %w", err)
	}
	status := CheckStatus(result)
	entry := HistoryEntry{
		Timestamp:    env.CheckedAt.UTC(),
		Status:       status,
		ProbeID:      env.ProbeID,
		FailureCause: env.FailureCause,
	}
	if p, ok := result.(*models.ProbeResult); ok {
		entry.ResponseTimeMs = p.ResponseTimeMs
	}
	hist, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}

	counters := countersKey(monitor.ID, env.CheckedAt)
	pipe := l.rdb.TxPipeline()
	// json.RawMessage não implementa BinaryMarshaler; vai como []byte
	pipe.Set(ctx, lastKey(monitor.ID), []byte(raw), 0)
	pipe.RPush(ctx, historyKey(monitor.ID), hist)
	pipe.LTrim(ctx, historyKey(monitor.ID), -historyLimit, -1)
	pipe.HIncrBy(ctx, counters, "total_checks", 1)
	pipe.HIncrBy(ctx, counters, status, 1)
	pipe.Expire(ctx, counters, countersTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record check of monitor %s: %w", monitor.ID, err)
	}
	return nil
}

// Last devolve o último resultado gravado, ou ErrNotFound.
func (l *RedisCheckLog) Last(ctx context.Context, monitorID string) (models.CheckResult, error) {
	raw, err := l.rdb.Get(ctx, lastKey(monitorID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("last check of monitor %s: %w", monitorID, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return models.DecodeCheckResult(raw)
}

// History devolve os n registros mais recentes, do mais antigo ao mais novo.
func (l *RedisCheckLog) History(ctx context.Context, monitorID string, n int64) ([]HistoryEntry, error) {
	items, err := l.rdb.LRange(ctx, historyKey(monitorID), -n, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, 0, len(items))
	for _, it := range items {
		var e HistoryEntry
		if err := json.Unmarshal([]byte(it), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Counters devolve os contadores do dia (total_checks e um campo por status).
func (l *RedisCheckLog) Counters(ctx context.Context, monitorID string, day time.Time) (map[string]int64, error) {
	raw, err := l.rdb.HGetAll(ctx, countersKey(monitorID, day)).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(raw))
	for k, v := range raw {
		var n int64
		if _, err := fmt.Sscan(v, &n); err != nil {
			return nil, fmt.Errorf("counter %s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}

// CheckStatus resume um resultado em online/offline. Variantes sem noção de
// disponibilidade contam como reported.
func CheckStatus(result models.CheckResult) string {
	switch r := result.(type) {
	case *models.ProbeResult:
		return onlineStatus(r.IsOnline)
	case *models.SSLResult:
		return onlineStatus(r.IsOnline)
	case *models.ServerResult:
		return "online"
	case *models.IncomingRequestResult:
		return onlineStatus(r.IsHeartbeat)
	}
	if result.Common().FailureCause != "" {
		return "failed"
	}
	return "reported"
}

func onlineStatus(online bool) string {
	if online {
		return "online"
	}
	return "offline"
}
