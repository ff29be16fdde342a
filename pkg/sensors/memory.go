package sensors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/mem"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// MemorySource reports virtual memory utilization.
type MemorySource struct{}

func NewMemorySource() *MemorySource {
	return &MemorySource{}
}

func (s *MemorySource) Name() string {
	return "memory"
}

func (s *MemorySource) Sample(ctx context.Context) ([]Reading, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: memory: %v", models.ErrSensorRead, err)
	}
	return []Reading{
		{MetricName: models.MetricMemoryUsagePercent, Value: clampPercent(vm.UsedPercent)},
		{MetricName: models.MetricMemoryUsedGB, Value: float64(vm.Used) / (1024 * 1024 * 1024)},
	}, nil
}
