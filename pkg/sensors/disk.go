package sensors

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// DiskSource reports aggregate disk utilization across all physical partitions.
type DiskSource struct{}

func NewDiskSource() *DiskSource {
	return &DiskSource{}
}

func (s *DiskSource) Name() string {
	return "disk"
}

func (s *DiskSource) Sample(ctx context.Context) ([]Reading, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("%w: disk partitions: %v", models.ErrSensorRead, err)
	}

	var total, used uint64
	for _, part := range partitions {
		usage, err := disk.UsageWithContext(ctx, part.Mountpoint)
		if err != nil {
			// transient per-mountpoint failures don't fail the family
			continue
		}
		total += usage.Total
		used += usage.Used
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: disk", models.ErrSensorRead)
	}
	return []Reading{
		{MetricName: models.MetricDiskUsagePercent, Value: clampPercent(float64(used) / float64(total) * 100)},
	}, nil
}
