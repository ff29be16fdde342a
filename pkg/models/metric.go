package models

import (
	"time"
)

// Metric names produced by the built-in sensor sources.
const (
	MetricCPUUsage           = "cpu_usage"
	MetricMemoryUsagePercent = "memory_usage_percent"
	MetricMemoryUsedGB       = "memory_used_gb"
	MetricDiskUsagePercent   = "disk_usage_percent"
	MetricCPUTemperature     = "cpu_temperature"
	MetricLoad1              = "load1"
	MetricLoad5              = "load5"
	MetricLoad15             = "load15"
)

// MetricSample is one timestamped reading of a single metric. Immutable.
type MetricSample struct {
	MetricName string    `json:"metricName"`
	Value      float64   `json:"value"`
	Timestamp  time.Time `json:"timestamp"`
}

// PercentMetric reports whether the named metric is a percentage, which
// constrains rule thresholds to the 0-100 domain.
func PercentMetric(name string) bool {
	switch name {
	case MetricCPUUsage, MetricMemoryUsagePercent, MetricDiskUsagePercent:
		return true
	}
	return false
}
