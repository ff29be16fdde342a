package sampler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/config"
	"github.com/hardwatch/hardwatch/pkg/metrics"
	"github.com/hardwatch/hardwatch/pkg/models"
	"github.com/hardwatch/hardwatch/pkg/sensors"
)

// readTimeout bounds a single sensor read so one stuck OS call cannot stall
// a source's schedule indefinitely.
const readTimeout = 10 * time.Second

// Evaluator consumes every successful sample, in production the rule engine.
type Evaluator interface {
	Evaluate(sample models.MetricSample)
}

// Sampler drives each enabled sensor source on its own schedule, timestamps
// the readings, and fans them out to the time-series store and the evaluator.
type Sampler struct {
	sources   map[string]sensors.Source
	intervals map[string]int
	enabled   map[string]bool
	store     *metrics.Store
	evaluator Evaluator
	now       func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	wg   sync.WaitGroup
}

// New builds a sampler from configuration. Unknown enabled sources are ignored
// with a warning.
func New(cfg config.SamplingConfig, sources map[string]sensors.Source, store *metrics.Store, evaluator Evaluator) *Sampler {
	enabled := make(map[string]bool, len(cfg.EnabledSources))
	for _, name := range cfg.EnabledSources {
		if _, ok := sources[name]; !ok {
			logrus.Warnf("Enabled source %q has no registered sensor, skipping", name)
			continue
		}
		enabled[name] = true
	}
	return &Sampler{
		sources:   sources,
		intervals: cfg.IntervalsMS,
		enabled:   enabled,
		store:     store,
		evaluator: evaluator,
		now:       time.Now,
	}
}

// SetNow overrides the time source, for tests.
func (s *Sampler) SetNow(now func() time.Time) {
	s.now = now
}

// Start launches one polling goroutine per enabled source.
func (s *Sampler) Start() {
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return
	}
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	for name := range s.enabled {
		source := s.sources[name]
		interval := time.Duration(s.intervals[name]) * time.Millisecond
		if interval <= 0 {
			interval = time.Second
		}
		s.wg.Add(1)
		go s.run(source, interval, stop)
	}
	logrus.Infof("Sampler started with %d sources", len(s.enabled))
}

// Stop halts all polling goroutines and waits for them to exit.
func (s *Sampler) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	s.wg.Wait()
}

func (s *Sampler) run(source sensors.Source, interval time.Duration, stop chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// first reading immediately rather than one interval in
	if !s.poll(source) {
		return
	}
	for {
		select {
		case <-ticker.C:
			if !s.poll(source) {
				return
			}
		case <-stop:
			return
		}
	}
}

// poll reads the source once and fans the samples out. It returns false when
// the source turned out to be unavailable and its schedule should end.
func (s *Sampler) poll(source sensors.Source) bool {
	ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
	readings, err := source.Sample(ctx)
	cancel()
	if err != nil {
		if errors.Is(err, models.ErrSensorUnavailable) {
			logrus.Warnf("Sensor %s unavailable, disabling until restart: %v", source.Name(), err)
			return false
		}
		logrus.Warnf("Sensor %s read failed, retrying next tick: %v", source.Name(), err)
		return true
	}

	ts := s.now()
	for _, reading := range readings {
		sample := models.MetricSample{
			MetricName: reading.MetricName,
			Value:      reading.Value,
			Timestamp:  ts,
		}
		s.store.Append(sample)
		if s.evaluator != nil {
			s.evaluator.Evaluate(sample)
		}
	}
	return true
}
