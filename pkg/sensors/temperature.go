package sensors

import (
	"context"
	"fmt"
	"strings"

	gopsensors "github.com/shirou/gopsutil/v4/sensors"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// TemperatureSource reports average CPU package temperature.
type TemperatureSource struct{}

func NewTemperatureSource() *TemperatureSource {
	return &TemperatureSource{}
}

func (s *TemperatureSource) Name() string {
	return "temperature"
}

func (s *TemperatureSource) Sample(ctx context.Context) ([]Reading, error) {
	stats, err := gopsensors.TemperaturesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: temperature: %v", models.ErrSensorRead, err)
	}

	var sum float64
	var count int
	for _, stat := range stats {
		if !cpuSensorKey(stat.SensorKey) || stat.Temperature <= 0 {
			continue
		}
		sum += stat.Temperature
		count++
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: temperature", models.ErrSensorUnavailable)
	}
	return []Reading{
		{MetricName: models.MetricCPUTemperature, Value: sum / float64(count)},
	}, nil
}

func cpuSensorKey(key string) bool {
	key = strings.ToLower(key)
	return strings.Contains(key, "coretemp") ||
		strings.Contains(key, "cpu") ||
		strings.Contains(key, "k10temp") ||
		strings.Contains(key, "package")
}
