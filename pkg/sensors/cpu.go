package sensors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// CPUSource reports overall CPU utilization as a percentage.
type CPUSource struct{}

func NewCPUSource() *CPUSource {
	return &CPUSource{}
}

func (s *CPUSource) Name() string {
	return "cpu"
}

func (s *CPUSource) Sample(ctx context.Context) ([]Reading, error) {
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("%w: cpu: %v", models.ErrSensorRead, err)
	}
	if len(percents) == 0 {
		return nil, fmt.Errorf("%w: cpu", models.ErrSensorUnavailable)
	}
	return []Reading{
		{MetricName: models.MetricCPUUsage, Value: clampPercent(percents[0])},
	}, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
