package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// statusRecorder captures the alerting transitions the history pushes out.
type statusRecorder struct {
	transitions []string
}

func (r *statusRecorder) MarkAlerting(nodeID string) {
	r.transitions = append(r.transitions, "mark:"+nodeID)
}

func (r *statusRecorder) ClearAlerting(nodeID string) {
	r.transitions = append(r.transitions, "clear:"+nodeID)
}

func (r *statusRecorder) last() string {
	if len(r.transitions) == 0 {
		return ""
	}
	return r.transitions[len(r.transitions)-1]
}

func alertEvent(ruleID string, severity models.RuleSeverity, sourceNode string) models.AlertEvent {
	return models.AlertEvent{
		RuleID:       ruleID,
		RuleName:     "Rule " + ruleID,
		Severity:     severity,
		Message:      "node: cpu_usage=91.0 > 80.0",
		SourceNodeID: sourceNode,
		Timestamp:    time.Unix(100, 0),
	}
}

func newTestHistory(t *testing.T, maxRecords int) *HistoryService {
	t.Helper()
	svc, err := NewHistoryService(context.Background(), nil, maxRecords)
	require.NoError(t, err)
	return svc
}

func TestRecordAndList(t *testing.T) {
	svc := newTestHistory(t, 10)

	rec := svc.Record(alertEvent("r1", models.RuleSeverityWarning, "node-a"))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Acknowledged)

	records := svc.List(false)
	require.Len(t, records, 1)
	assert.Equal(t, "r1", records[0].RuleID)
	assert.Equal(t, 1, svc.Count())
}

func TestCapEvictsOldestRegardlessOfAcknowledgment(t *testing.T) {
	svc := newTestHistory(t, 3)

	first := svc.Record(alertEvent("r0", models.RuleSeverityWarning, "node-a"))
	require.NoError(t, svc.Acknowledge(context.Background(), first.ID))

	for i := 1; i <= 3; i++ {
		svc.Record(alertEvent(fmt.Sprintf("r%d", i), models.RuleSeverityWarning, "node-a"))
	}

	records := svc.List(false)
	require.Len(t, records, 3)
	assert.Equal(t, "r1", records[0].RuleID, "oldest record evicted even though acknowledged")
	assert.Equal(t, "r3", records[2].RuleID)
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	svc := newTestHistory(t, 10)
	firstAck := time.Unix(200, 0)
	now := firstAck
	svc.SetNow(func() time.Time { return now })

	rec := svc.Record(alertEvent("r1", models.RuleSeverityWarning, "node-a"))

	require.NoError(t, svc.Acknowledge(context.Background(), rec.ID))
	now = time.Unix(300, 0)
	require.NoError(t, svc.Acknowledge(context.Background(), rec.ID))

	records := svc.List(false)
	require.Len(t, records, 1)
	require.True(t, records[0].Acknowledged)
	require.NotNil(t, records[0].AcknowledgedAt)
	assert.Equal(t, firstAck, *records[0].AcknowledgedAt, "second acknowledge must not move the timestamp")
}

func TestAcknowledgeUnknownRecord(t *testing.T) {
	svc := newTestHistory(t, 10)
	err := svc.Acknowledge(context.Background(), "ghost")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)
}

func TestListUnacknowledgedOnly(t *testing.T) {
	svc := newTestHistory(t, 10)

	acked := svc.Record(alertEvent("r1", models.RuleSeverityWarning, "node-a"))
	svc.Record(alertEvent("r2", models.RuleSeverityWarning, "node-a"))
	require.NoError(t, svc.Acknowledge(context.Background(), acked.ID))

	records := svc.List(true)
	require.Len(t, records, 1)
	assert.Equal(t, "r2", records[0].RuleID)
}

func TestClear(t *testing.T) {
	svc := newTestHistory(t, 10)
	svc.Record(alertEvent("r1", models.RuleSeverityWarning, "node-a"))
	svc.Record(alertEvent("r2", models.RuleSeverityWarning, "node-b"))

	require.NoError(t, svc.Clear(context.Background()))
	assert.Zero(t, svc.Count())
	assert.Empty(t, svc.List(false))
}

func TestExportEmptyHistoryIsArray(t *testing.T) {
	svc := newTestHistory(t, 10)

	data, err := svc.Export()
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))

	svc.Record(alertEvent("r1", models.RuleSeverityCritical, "node-a"))
	data, err = svc.Export()
	require.NoError(t, err)

	var decoded []models.AlertRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "r1", decoded[0].RuleID)
}

func TestCriticalRecordMarksSourceAlerting(t *testing.T) {
	svc := newTestHistory(t, 10)
	sink := &statusRecorder{}
	svc.SetStatusSink(sink)

	rec := svc.Record(alertEvent("r1", models.RuleSeverityCritical, "node-a"))
	assert.Equal(t, "mark:node-a", sink.last())

	// acknowledging the only critical record clears the node
	require.NoError(t, svc.Acknowledge(context.Background(), rec.ID))
	assert.Equal(t, "clear:node-a", sink.last())
}

func TestWarningRecordDoesNotMarkAlerting(t *testing.T) {
	svc := newTestHistory(t, 10)
	sink := &statusRecorder{}
	svc.SetStatusSink(sink)

	svc.Record(alertEvent("r1", models.RuleSeverityWarning, "node-a"))
	assert.Equal(t, "clear:node-a", sink.last())
}

func TestAlertingPersistsWhileOtherCriticalRemains(t *testing.T) {
	svc := newTestHistory(t, 10)
	sink := &statusRecorder{}
	svc.SetStatusSink(sink)

	first := svc.Record(alertEvent("r1", models.RuleSeverityCritical, "node-a"))
	svc.Record(alertEvent("r2", models.RuleSeverityError, "node-a"))

	require.NoError(t, svc.Acknowledge(context.Background(), first.ID))
	assert.Equal(t, "mark:node-a", sink.last(), "one unacked error record still pending")
}

func TestClearResetsAlertingSources(t *testing.T) {
	svc := newTestHistory(t, 10)
	sink := &statusRecorder{}
	svc.SetStatusSink(sink)

	svc.Record(alertEvent("r1", models.RuleSeverityCritical, "node-a"))
	svc.Record(alertEvent("r2", models.RuleSeverityCritical, "node-b"))

	require.NoError(t, svc.Clear(context.Background()))
	assert.Contains(t, sink.transitions, "clear:node-a")
	assert.Contains(t, sink.transitions, "clear:node-b")
}
