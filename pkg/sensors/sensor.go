package sensors

import (
	"context"
)

// Reading is one raw sensor value before the sampler timestamps it.
type Reading struct {
	MetricName string
	Value      float64
}

// Source produces the current readings of one metric family (CPU, memory,
// disk, temperature, fan, GPU). Implementations may block on OS calls and
// must honor ctx. A Source that the platform cannot serve at all returns
// models.ErrSensorUnavailable; transient failures return models.ErrSensorRead
// (wrapped) and are retried on the next tick.
type Source interface {
	// Name is the metric family key used for enablement and interval lookup.
	Name() string
	Sample(ctx context.Context) ([]Reading, error)
}

// BuiltinSources returns the sources shipped with this build, keyed by family
// name. GPU and fan backends are vendor-specific and plug in through the same
// interface.
func BuiltinSources() map[string]Source {
	return map[string]Source{
		"cpu":         NewCPUSource(),
		"memory":      NewMemorySource(),
		"disk":        NewDiskSource(),
		"temperature": NewTemperatureSource(),
		"load":        NewLoadSource(),
	}
}
