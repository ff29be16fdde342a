package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// RecordStore is the durable backing for the alert history.
type RecordStore interface {
	ListRecords(ctx context.Context, limit int) ([]models.AlertRecord, error)
	InsertRecord(ctx context.Context, rec models.AlertRecord, maxRecords int) error
	AcknowledgeRecord(ctx context.Context, id string, at time.Time) error
	ClearRecords(ctx context.Context) error
}

// NodeStatusSink is told when a node starts or stops being the source of
// unacknowledged error/critical alerts. Implemented by the node directory.
type NodeStatusSink interface {
	MarkAlerting(nodeID string)
	ClearAlerting(nodeID string)
}

// HistoryService is the bounded append-only alert log. Records arrive from
// the local rule engine and from peer notifications; acknowledgment is the
// only mutation after insert. The log is capped and evicts oldest-first
// regardless of acknowledgment state.
type HistoryService struct {
	mu         sync.RWMutex
	records    []models.AlertRecord
	maxRecords int
	store      RecordStore
	statusSink NodeStatusSink
	now        func() time.Time
}

// NewHistoryService loads persisted records up to maxRecords. store may be nil.
func NewHistoryService(ctx context.Context, store RecordStore, maxRecords int) (*HistoryService, error) {
	if maxRecords <= 0 {
		maxRecords = 1000
	}
	s := &HistoryService{
		maxRecords: maxRecords,
		store:      store,
		now:        time.Now,
	}
	if store != nil {
		records, err := store.ListRecords(ctx, maxRecords)
		if err != nil {
			return nil, fmt.Errorf("load alert history: %w", err)
		}
		s.records = records
	}
	return s, nil
}

// SetNow overrides the time source, for tests.
func (s *HistoryService) SetNow(now func() time.Time) {
	s.now = now
}

// SetStatusSink registers the directory that tracks per-node alerting status.
func (s *HistoryService) SetStatusSink(sink NodeStatusSink) {
	s.statusSink = sink
}

// Record appends the event as an unacknowledged record, evicting the oldest
// record when the log is at capacity. Persistence failures are logged, never
// surfaced to the alert path.
func (s *HistoryService) Record(event models.AlertEvent) models.AlertRecord {
	rec := models.AlertRecord{
		ID:           uuid.New().String(),
		RuleID:       event.RuleID,
		RuleName:     event.RuleName,
		Severity:     event.Severity,
		Message:      event.Message,
		SourceNodeID: event.SourceNodeID,
		Timestamp:    event.Timestamp,
	}

	s.mu.Lock()
	s.records = append(s.records, rec)
	if len(s.records) > s.maxRecords {
		s.records = s.records[len(s.records)-s.maxRecords:]
	}
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.InsertRecord(context.Background(), rec, s.maxRecords); err != nil {
			logrus.Warnf("Failed to persist alert record %s: %v", rec.ID, err)
		}
	}

	s.updateAlertingStatus(event.SourceNodeID)
	return rec
}

// Acknowledge marks the record acknowledged. Acknowledging twice is a no-op.
func (s *HistoryService) Acknowledge(ctx context.Context, recordID string) error {
	now := s.now()

	s.mu.Lock()
	var sourceNode string
	found := false
	for i := range s.records {
		if s.records[i].ID != recordID {
			continue
		}
		found = true
		sourceNode = s.records[i].SourceNodeID
		if !s.records[i].Acknowledged {
			s.records[i].Acknowledged = true
			s.records[i].AcknowledgedAt = &now
		}
		break
	}
	s.mu.Unlock()

	if !found {
		return models.ErrRecordNotFound
	}

	if s.store != nil {
		if err := s.store.AcknowledgeRecord(ctx, recordID, now); err != nil {
			logrus.Warnf("Failed to persist acknowledgment for %s: %v", recordID, err)
		}
	}

	s.updateAlertingStatus(sourceNode)
	return nil
}

// List returns records in insertion order, optionally only unacknowledged ones.
func (s *HistoryService) List(unacknowledgedOnly bool) []models.AlertRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AlertRecord, 0, len(s.records))
	for _, rec := range s.records {
		if unacknowledgedOnly && rec.Acknowledged {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Count returns the number of records currently held.
func (s *HistoryService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear empties the log unconditionally.
func (s *HistoryService) Clear(ctx context.Context) error {
	s.mu.Lock()
	cleared := s.records
	s.records = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.ClearRecords(ctx); err != nil {
			return fmt.Errorf("clear alert history: %w", err)
		}
	}

	// every previously alerting source is clean now
	if s.statusSink != nil {
		seen := map[string]bool{}
		for _, rec := range cleared {
			if !seen[rec.SourceNodeID] {
				seen[rec.SourceNodeID] = true
				s.statusSink.ClearAlerting(rec.SourceNodeID)
			}
		}
	}
	return nil
}

// Export serializes the full log. An empty log exports as an empty array.
func (s *HistoryService) Export() ([]byte, error) {
	records := s.List(false)
	return json.MarshalIndent(records, "", "  ")
}

// updateAlertingStatus recomputes whether the node still has unacknowledged
// error/critical records and tells the directory.
func (s *HistoryService) updateAlertingStatus(nodeID string) {
	if s.statusSink == nil || nodeID == "" {
		return
	}
	s.mu.RLock()
	alerting := false
	for _, rec := range s.records {
		if rec.SourceNodeID != nodeID || rec.Acknowledged {
			continue
		}
		if rec.Severity == models.RuleSeverityError || rec.Severity == models.RuleSeverityCritical {
			alerting = true
			break
		}
	}
	s.mu.RUnlock()

	if alerting {
		s.statusSink.MarkAlerting(nodeID)
	} else {
		s.statusSink.ClearAlerting(nodeID)
	}
}
