package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// fakeRuleStore is an in-memory RuleStore for tests.
type fakeRuleStore struct {
	mu    sync.Mutex
	rules map[string]models.Rule
}

func newFakeRuleStore(rules ...models.Rule) *fakeRuleStore {
	s := &fakeRuleStore{rules: make(map[string]models.Rule)}
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	return s
}

func (s *fakeRuleStore) ListRules(_ context.Context) ([]models.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeRuleStore) SaveRule(_ context.Context, rule models.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[rule.ID] = rule
	return nil
}

func (s *fakeRuleStore) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rules, id)
	return nil
}

func cpuRule(id string, threshold float64, cooldownSeconds int) models.Rule {
	return models.Rule{
		ID:              id,
		Name:            "CPU rule " + id,
		MetricName:      models.MetricCPUUsage,
		Threshold:       threshold,
		Comparison:      models.ComparisonGreater,
		Severity:        models.RuleSeverityWarning,
		CooldownSeconds: cooldownSeconds,
		Enabled:         true,
		CreatedAt:       time.Unix(0, 0),
	}
}

func newTestService(t *testing.T, now *time.Time, rules ...models.Rule) (*RuleService, *fakeRuleStore) {
	t.Helper()
	store := newFakeRuleStore(rules...)
	svc, err := NewRuleService(context.Background(), store, "local-node")
	require.NoError(t, err)
	svc.SetNow(func() time.Time { return *now })
	return svc, store
}

func collectEvents(svc *RuleService) *[]models.AlertEvent {
	var events []models.AlertEvent
	svc.SetEventHandler(func(event models.AlertEvent) {
		events = append(events, event)
	})
	return &events
}

func TestSeedsDefaultRulesOnEmptyStore(t *testing.T) {
	store := newFakeRuleStore()
	svc, err := NewRuleService(context.Background(), store, "local-node")
	require.NoError(t, err)

	rules := svc.GetRules()
	assert.NotEmpty(t, rules)

	// the seed is persisted so a restart does not reseed
	persisted, err := store.ListRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, len(rules))
}

func TestCooldownSuppressesRepeatFire(t *testing.T) {
	// rule: cpu_usage > 80, cooldown 300s
	now := time.Unix(0, 0)
	svc, _ := newTestService(t, &now, cpuRule("cpu_high", 80, 300))
	events := collectEvents(svc)

	// t=0: 85 fires
	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 85, Timestamp: now})
	require.Len(t, *events, 1)
	rule, err := svc.GetRule("cpu_high")
	require.NoError(t, err)
	require.NotNil(t, rule.LastTriggeredAt)
	assert.Equal(t, time.Unix(0, 0), *rule.LastTriggeredAt)

	// t=10: 90 is within the cooldown window, no fire
	now = time.Unix(10, 0)
	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 90, Timestamp: now})
	assert.Len(t, *events, 1)

	// t=301: cooldown elapsed, fires again
	now = time.Unix(301, 0)
	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 90, Timestamp: now})
	require.Len(t, *events, 2)
	assert.Equal(t, "cpu_high", (*events)[1].RuleID)
	assert.Equal(t, "local-node", (*events)[1].SourceNodeID)
}

func TestEvaluateSkipsNonMatchingMetricAndThreshold(t *testing.T) {
	now := time.Unix(0, 0)
	svc, _ := newTestService(t, &now, cpuRule("cpu_high", 80, 300))
	events := collectEvents(svc)

	svc.Evaluate(models.MetricSample{MetricName: models.MetricMemoryUsagePercent, Value: 99, Timestamp: now})
	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 79.9, Timestamp: now})
	assert.Empty(t, *events)
}

func TestEvaluateSkipsDisabledRule(t *testing.T) {
	now := time.Unix(0, 0)
	svc, _ := newTestService(t, &now, cpuRule("cpu_high", 80, 300))
	events := collectEvents(svc)

	_, err := svc.ToggleRule(context.Background(), "cpu_high", false)
	require.NoError(t, err)

	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 95, Timestamp: now})
	assert.Empty(t, *events)
}

func TestToggleKeepsLastTriggered(t *testing.T) {
	now := time.Unix(0, 0)
	svc, _ := newTestService(t, &now, cpuRule("cpu_high", 80, 300))
	collectEvents(svc)

	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 85, Timestamp: now})

	_, err := svc.ToggleRule(context.Background(), "cpu_high", false)
	require.NoError(t, err)
	rule, err := svc.ToggleRule(context.Background(), "cpu_high", true)
	require.NoError(t, err)
	require.NotNil(t, rule.LastTriggeredAt)
	assert.Equal(t, time.Unix(0, 0), *rule.LastTriggeredAt)
}

func TestZeroCooldownFiresEveryMatch(t *testing.T) {
	now := time.Unix(0, 0)
	svc, _ := newTestService(t, &now, cpuRule("cpu_high", 80, 0))
	events := collectEvents(svc)

	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 85, Timestamp: now})
	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 86, Timestamp: now})
	assert.Len(t, *events, 2)
}

func TestCreateRuleValidation(t *testing.T) {
	now := time.Unix(0, 0)
	svc, _ := newTestService(t, &now, cpuRule("existing", 80, 300))

	tests := []struct {
		name    string
		req     models.CreateRuleRequest
		wantErr error
	}{
		{
			name: "missing name",
			req: models.CreateRuleRequest{
				MetricName: models.MetricCPUUsage, Comparison: ">", Severity: "warning",
			},
			wantErr: models.ErrInvalidRule,
		},
		{
			name: "unknown comparison",
			req: models.CreateRuleRequest{
				Name: "r", MetricName: models.MetricCPUUsage, Comparison: "!=", Severity: "warning",
			},
			wantErr: models.ErrInvalidRule,
		},
		{
			name: "unknown severity",
			req: models.CreateRuleRequest{
				Name: "r", MetricName: models.MetricCPUUsage, Comparison: ">", Severity: "urgent",
			},
			wantErr: models.ErrInvalidRule,
		},
		{
			name: "negative cooldown",
			req: models.CreateRuleRequest{
				Name: "r", MetricName: models.MetricCPUUsage, Comparison: ">", Severity: "warning",
				CooldownSeconds: -1,
			},
			wantErr: models.ErrInvalidRule,
		},
		{
			name: "percent threshold out of domain",
			req: models.CreateRuleRequest{
				Name: "r", MetricName: models.MetricCPUUsage, Comparison: ">", Severity: "warning",
				Threshold: 150,
			},
			wantErr: models.ErrInvalidRule,
		},
		{
			name: "duplicate id",
			req: models.CreateRuleRequest{
				ID: "existing", Name: "r", MetricName: models.MetricCPUUsage, Comparison: ">",
				Severity: "warning", Threshold: 50,
			},
			wantErr: models.ErrDuplicateRule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRule(context.Background(), &tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// failed creates leave the rule set unchanged
	assert.Len(t, svc.GetRules(), 1)
}

func TestCreateRuleNonPercentMetricAllowsWideThreshold(t *testing.T) {
	now := time.Unix(0, 0)
	svc, store := newTestService(t, &now, cpuRule("existing", 80, 300))

	rule, err := svc.CreateRule(context.Background(), &models.CreateRuleRequest{
		Name:       "hot cpu",
		MetricName: models.MetricCPUTemperature,
		Threshold:  105,
		Comparison: models.ComparisonGreaterEqual,
		Severity:   models.RuleSeverityCritical,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rule.ID)
	assert.True(t, rule.Enabled)

	persisted, err := store.ListRules(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestDeleteRule(t *testing.T) {
	now := time.Unix(0, 0)
	svc, store := newTestService(t, &now, cpuRule("cpu_high", 80, 300))

	require.NoError(t, svc.DeleteRule(context.Background(), "cpu_high"))
	assert.ErrorIs(t, svc.DeleteRule(context.Background(), "cpu_high"), models.ErrRuleNotFound)

	persisted, err := store.ListRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestToggleAndGetUnknownRule(t *testing.T) {
	now := time.Unix(0, 0)
	svc, _ := newTestService(t, &now, cpuRule("cpu_high", 80, 300))

	_, err := svc.ToggleRule(context.Background(), "ghost", true)
	assert.ErrorIs(t, err, models.ErrRuleNotFound)

	_, err = svc.GetRule("ghost")
	assert.ErrorIs(t, err, models.ErrRuleNotFound)
}

func TestRulesPersistAcrossRestart(t *testing.T) {
	now := time.Unix(0, 0)
	svc, store := newTestService(t, &now, cpuRule("cpu_high", 80, 300))
	collectEvents(svc)

	svc.Evaluate(models.MetricSample{MetricName: models.MetricCPUUsage, Value: 85, Timestamp: now})

	// a second service over the same store sees the fired state
	restarted, err := NewRuleService(context.Background(), store, "local-node")
	require.NoError(t, err)
	rule, err := restarted.GetRule("cpu_high")
	require.NoError(t, err)
	require.NotNil(t, rule.LastTriggeredAt)
}
