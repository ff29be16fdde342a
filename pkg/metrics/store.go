package metrics

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// Store keeps a bounded recent history per metric for charting and export.
// It is written by the sampler and read concurrently by API queries; every
// read returns a point-in-time copy.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*ring
}

// ring is a fixed-capacity circular buffer of samples in insertion order.
type ring struct {
	buf   []models.MetricSample
	start int
	count int
}

func (r *ring) push(s models.MetricSample) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = s
		r.count++
		return
	}
	// full: overwrite the oldest slot
	r.buf[r.start] = s
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) tail(n int) []models.MetricSample {
	if n > r.count {
		n = r.count
	}
	out := make([]models.MetricSample, 0, n)
	for i := r.count - n; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// NewStore creates a store with the given per-metric capacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store{
		capacity: capacity,
		series:   make(map[string]*ring),
	}
}

// Append records one sample, evicting the oldest entry once the metric's
// buffer is at capacity.
func (s *Store) Append(sample models.MetricSample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.series[sample.MetricName]
	if !ok {
		r = &ring{buf: make([]models.MetricSample, s.capacity)}
		s.series[sample.MetricName] = r
	}
	r.push(sample)
}

// Query returns the most recent min(maxPoints, stored) samples for the metric
// in chronological order. Unknown metrics yield an empty slice.
func (s *Store) Query(metricName string, maxPoints int) []models.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.series[metricName]
	if !ok || maxPoints <= 0 {
		return []models.MetricSample{}
	}
	return r.tail(maxPoints)
}

// Latest returns the newest value for the metric.
func (s *Store) Latest(metricName string) (models.MetricSample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.series[metricName]
	if !ok || r.count == 0 {
		return models.MetricSample{}, false
	}
	return r.buf[(r.start+r.count-1)%len(r.buf)], true
}

// Average returns the mean of the last n points of the metric.
func (s *Store) Average(metricName string, n int) (float64, bool) {
	samples := s.Query(metricName, n)
	if len(samples) == 0 {
		return 0, false
	}
	var sum float64
	for _, sample := range samples {
		sum += sample.Value
	}
	return sum / float64(len(samples)), true
}

// Names returns the sorted list of metrics that have at least one sample.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.series))
	for name := range s.series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the latest sample of every metric, keyed by name.
func (s *Store) Snapshot() map[string]models.MetricSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.MetricSample, len(s.series))
	for name, r := range s.series {
		if r.count == 0 {
			continue
		}
		out[name] = r.buf[(r.start+r.count-1)%len(r.buf)]
	}
	return out
}

// ExportJSON serializes every metric's full buffered history.
func (s *Store) ExportJSON() ([]byte, error) {
	s.mu.RLock()
	dump := make(map[string][]models.MetricSample, len(s.series))
	for name, r := range s.series {
		dump[name] = r.tail(r.count)
	}
	s.mu.RUnlock()
	return json.MarshalIndent(dump, "", "  ")
}
