package models

import "time"

type MetricName string

const (
	MetricIncidentCount      MetricName = "IncidentCount"
	MetricAlertCount         MetricName = "AlertCount"
	MetricTimeToAcknowledge  MetricName = "TimeToAcknowledge"
	MetricTimeToResolve      MetricName = "TimeToResolve"
	MetricDuration           MetricName = "Duration"
	MetricResponseTime       MetricName = "ResponseTime"
	MetricIsOnline           MetricName = "IsOnline"
	MetricResponseStatusCode MetricName = "ResponseStatusCode"
	MetricCPUUsagePercent    MetricName = "CPUUsagePercent"
	MetricMemoryUsagePercent MetricName = "MemoryUsagePercent"
	MetricDiskUsagePercent   MetricName = "DiskUsagePercent"
	MetricExecutionTime      MetricName = "ExecutionTime"
)

// MetricPoint é um valor pontual associado a um owner.
type MetricPoint struct {
	Name       MetricName        `json:"name"`
	ProjectID  string            `json:"projectId"`
	Owner      OwnerRef          `json:"owner"`
	Value      float64           `json:"value"`
	Unit       string            `json:"unit,omitempty"`
	Time       time.Time         `json:"time"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
