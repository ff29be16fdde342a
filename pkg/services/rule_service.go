package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// RuleStore is the durable backing for alert rules.
type RuleStore interface {
	ListRules(ctx context.Context) ([]models.Rule, error)
	SaveRule(ctx context.Context, rule models.Rule) error
	DeleteRule(ctx context.Context, id string) error
}

// EventHandler receives every locally fired AlertEvent.
type EventHandler func(event models.AlertEvent)

// RuleService owns the alert rule set and evaluates incoming samples against
// it. Evaluation runs synchronously on the sample path; the per-rule cooldown
// suppresses repeat fires for a sustained condition.
type RuleService struct {
	mu      sync.RWMutex
	rules   map[string]*models.Rule
	store   RuleStore
	nodeID  string
	now     func() time.Time
	onEvent EventHandler
}

// NewRuleService loads persisted rules, seeding the default set when the
// store is empty. store may be nil for a purely in-memory service.
func NewRuleService(ctx context.Context, store RuleStore, nodeID string) (*RuleService, error) {
	s := &RuleService{
		rules:  make(map[string]*models.Rule),
		store:  store,
		nodeID: nodeID,
		now:    time.Now,
	}

	if store != nil {
		persisted, err := store.ListRules(ctx)
		if err != nil {
			return nil, fmt.Errorf("load rules: %w", err)
		}
		for i := range persisted {
			rule := persisted[i]
			s.rules[rule.ID] = &rule
		}
	}

	if len(s.rules) == 0 {
		for _, rule := range DefaultRules(s.now()) {
			r := rule
			s.rules[r.ID] = &r
			if store != nil {
				if err := store.SaveRule(ctx, r); err != nil {
					return nil, fmt.Errorf("seed default rule %s: %w", r.ID, err)
				}
			}
		}
		logrus.Infof("Seeded %d default alert rules", len(s.rules))
	}

	return s, nil
}

// SetNow overrides the time source, for tests.
func (s *RuleService) SetNow(now func() time.Time) {
	s.now = now
}

// SetEventHandler registers the sink for fired events. Must be called before
// sampling starts.
func (s *RuleService) SetEventHandler(handler EventHandler) {
	s.onEvent = handler
}

// GetRules returns all rules ordered by creation time.
func (s *RuleService) GetRules() []models.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, *rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// GetRule returns one rule by id.
func (s *RuleService) GetRule(id string) (models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rule, ok := s.rules[id]
	if !ok {
		return models.Rule{}, models.ErrRuleNotFound
	}
	return *rule, nil
}

// CreateRule validates and adds a rule. The id is generated when the request
// leaves it empty.
func (s *RuleService) CreateRule(ctx context.Context, req *models.CreateRuleRequest) (models.Rule, error) {
	if err := validateRuleRequest(req); err != nil {
		return models.Rule{}, err
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	rule := models.Rule{
		ID:              id,
		Name:            req.Name,
		Description:     req.Description,
		MetricName:      req.MetricName,
		Threshold:       req.Threshold,
		Comparison:      req.Comparison,
		Severity:        req.Severity,
		CooldownSeconds: req.CooldownSeconds,
		Enabled:         true,
		CreatedAt:       s.now(),
	}

	s.mu.Lock()
	if _, exists := s.rules[id]; exists {
		s.mu.Unlock()
		return models.Rule{}, models.ErrDuplicateRule
	}
	s.rules[id] = &rule
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveRule(ctx, rule); err != nil {
			// roll back the in-memory insert so caller errors leave no partial state
			s.mu.Lock()
			delete(s.rules, id)
			s.mu.Unlock()
			return models.Rule{}, fmt.Errorf("persist rule: %w", err)
		}
	}

	logrus.Infof("Created alert rule %s (%s %s %.1f)", rule.Name, rule.MetricName, rule.Comparison, rule.Threshold)
	return rule, nil
}

// ToggleRule enables or disables a rule. last_triggered is preserved across
// disable/enable.
func (s *RuleService) ToggleRule(ctx context.Context, id string, enabled bool) (models.Rule, error) {
	s.mu.Lock()
	rule, ok := s.rules[id]
	if !ok {
		s.mu.Unlock()
		return models.Rule{}, models.ErrRuleNotFound
	}
	rule.Enabled = enabled
	snapshot := *rule
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveRule(ctx, snapshot); err != nil {
			return models.Rule{}, fmt.Errorf("persist rule: %w", err)
		}
	}
	return snapshot, nil
}

// DeleteRule removes a rule.
func (s *RuleService) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.rules[id]; !ok {
		s.mu.Unlock()
		return models.ErrRuleNotFound
	}
	delete(s.rules, id)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteRule(ctx, id); err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}
	}
	logrus.Infof("Removed alert rule %s", id)
	return nil
}

// Evaluate checks the sample against every enabled rule for its metric and
// fires at most one event per rule, honoring the cooldown window.
func (s *RuleService) Evaluate(sample models.MetricSample) {
	now := s.now()

	var fired []models.AlertEvent
	var dirty []models.Rule
	s.mu.Lock()
	for _, rule := range s.rules {
		if !rule.Enabled || rule.MetricName != sample.MetricName {
			continue
		}
		if !rule.Comparison.Evaluate(sample.Value, rule.Threshold) {
			continue
		}
		if rule.InCooldown(now) {
			continue
		}
		triggered := now
		rule.LastTriggeredAt = &triggered

		fired = append(fired, models.AlertEvent{
			RuleID:       rule.ID,
			RuleName:     rule.Name,
			Severity:     rule.Severity,
			Message: fmt.Sprintf("%s: %s=%.1f %s %.1f",
				rule.Name, sample.MetricName, sample.Value, rule.Comparison, rule.Threshold),
			SourceNodeID: s.nodeID,
			Timestamp:    now,
		})

		dirty = append(dirty, *rule)
	}
	s.mu.Unlock()

	if s.store != nil {
		for _, rule := range dirty {
			if err := s.store.SaveRule(context.Background(), rule); err != nil {
				logrus.Warnf("Failed to persist last_triggered for rule %s: %v", rule.ID, err)
			}
		}
	}

	for _, event := range fired {
		logrus.Infof("Alert triggered: %s", event.Message)
		if s.onEvent != nil {
			s.onEvent(event)
		}
	}
}

func validateRuleRequest(req *models.CreateRuleRequest) error {
	if req.Name == "" || req.MetricName == "" {
		return fmt.Errorf("%w: name and metricName are required", models.ErrInvalidRule)
	}
	if !req.Comparison.Valid() {
		return fmt.Errorf("%w: unknown comparison %q", models.ErrInvalidRule, req.Comparison)
	}
	if !req.Severity.Valid() {
		return fmt.Errorf("%w: unknown severity %q", models.ErrInvalidRule, req.Severity)
	}
	if req.CooldownSeconds < 0 {
		return fmt.Errorf("%w: cooldownSeconds must be >= 0", models.ErrInvalidRule)
	}
	if models.PercentMetric(req.MetricName) && (req.Threshold < 0 || req.Threshold > 100) {
		return fmt.Errorf("%w: threshold for %s must be within 0-100", models.ErrInvalidRule, req.MetricName)
	}
	return nil
}

// DefaultRules is the rule set seeded on first start.
func DefaultRules(createdAt time.Time) []models.Rule {
	mk := func(id, name, desc, metric string, threshold float64, severity models.RuleSeverity) models.Rule {
		return models.Rule{
			ID:              id,
			Name:            name,
			Description:     desc,
			MetricName:      metric,
			Threshold:       threshold,
			Comparison:      models.ComparisonGreater,
			Severity:        severity,
			CooldownSeconds: 300,
			Enabled:         true,
			CreatedAt:       createdAt,
		}
	}
	return []models.Rule{
		mk("cpu_high", "CPU high load", "CPU usage above 80%",
			models.MetricCPUUsage, 80, models.RuleSeverityWarning),
		mk("cpu_critical", "CPU critical load", "CPU usage above 95%",
			models.MetricCPUUsage, 95, models.RuleSeverityCritical),
		mk("memory_high", "Memory high usage", "Memory usage above 85%",
			models.MetricMemoryUsagePercent, 85, models.RuleSeverityWarning),
		mk("disk_high", "Disk high usage", "Disk usage above 90%",
			models.MetricDiskUsagePercent, 90, models.RuleSeverityWarning),
		mk("cpu_temp_high", "CPU temperature high", "CPU temperature above 80C",
			models.MetricCPUTemperature, 80, models.RuleSeverityWarning),
	}
}
