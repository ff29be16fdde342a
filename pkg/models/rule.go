package models

import (
	"time"
)

// RuleSeverity represents the severity level of a rule
type RuleSeverity string

const (
	RuleSeverityInfo     RuleSeverity = "info"
	RuleSeverityWarning  RuleSeverity = "warning"
	RuleSeverityError    RuleSeverity = "error"
	RuleSeverityCritical RuleSeverity = "critical"
)

// Valid reports whether the severity is one of the known levels.
func (s RuleSeverity) Valid() bool {
	switch s {
	case RuleSeverityInfo, RuleSeverityWarning, RuleSeverityError, RuleSeverityCritical:
		return true
	}
	return false
}

// Comparison is the operator applied between a sampled value and a rule threshold.
type Comparison string

const (
	ComparisonGreater      Comparison = ">"
	ComparisonGreaterEqual Comparison = ">="
	ComparisonLess         Comparison = "<"
	ComparisonLessEqual    Comparison = "<="
)

// Evaluate applies the comparison to a sampled value.
func (c Comparison) Evaluate(value, threshold float64) bool {
	switch c {
	case ComparisonGreater:
		return value > threshold
	case ComparisonGreaterEqual:
		return value >= threshold
	case ComparisonLess:
		return value < threshold
	case ComparisonLessEqual:
		return value <= threshold
	}
	return false
}

// Valid reports whether the comparison is a known operator.
func (c Comparison) Valid() bool {
	switch c {
	case ComparisonGreater, ComparisonGreaterEqual, ComparisonLess, ComparisonLessEqual:
		return true
	}
	return false
}

// Rule represents an alert rule definition
type Rule struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	MetricName      string       `json:"metricName"`
	Threshold       float64      `json:"threshold"`
	Comparison      Comparison   `json:"comparison"`
	Severity        RuleSeverity `json:"severity"`
	CooldownSeconds int          `json:"cooldownSeconds"`
	Enabled         bool         `json:"enabled"`
	CreatedAt       time.Time    `json:"createdAt"`
	LastTriggeredAt *time.Time   `json:"lastTriggeredAt,omitempty"`
}

// InCooldown reports whether the rule fired within its cooldown window before now.
func (r *Rule) InCooldown(now time.Time) bool {
	if r.LastTriggeredAt == nil {
		return false
	}
	return now.Sub(*r.LastTriggeredAt) < time.Duration(r.CooldownSeconds)*time.Second
}

// CreateRuleRequest represents the request payload for creating a rule
type CreateRuleRequest struct {
	ID              string       `json:"id,omitempty"`
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	MetricName      string       `json:"metricName"`
	Threshold       float64      `json:"threshold"`
	Comparison      Comparison   `json:"comparison"`
	Severity        RuleSeverity `json:"severity"`
	CooldownSeconds int          `json:"cooldownSeconds"`
}

// ToggleRuleRequest represents the request payload for enabling or disabling a rule
type ToggleRuleRequest struct {
	Enabled bool `json:"enabled"`
}
