package sensors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/load"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// LoadSource reports system load averages.
type LoadSource struct{}

func NewLoadSource() *LoadSource {
	return &LoadSource{}
}

func (s *LoadSource) Name() string {
	return "load"
}

func (s *LoadSource) Sample(ctx context.Context) ([]Reading, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", models.ErrSensorRead, err)
	}
	return []Reading{
		{MetricName: models.MetricLoad1, Value: avg.Load1},
		{MetricName: models.MetricLoad5, Value: avg.Load5},
		{MetricName: models.MetricLoad15, Value: avg.Load15},
	}, nil
}
