package models

import (
	"time"
)

// AlertEvent is a single rule firing, either local or received from a peer.
// It is immutable once created.
type AlertEvent struct {
	RuleID       string       `json:"ruleId"`
	RuleName     string       `json:"ruleName"`
	Severity     RuleSeverity `json:"severity"`
	Message      string       `json:"message"`
	SourceNodeID string       `json:"sourceNodeId"`
	Timestamp    time.Time    `json:"timestamp"`
}

// AlertRecord is an AlertEvent as stored in the alert history. Acknowledgment
// is the only mutation applied after creation.
type AlertRecord struct {
	ID             string       `json:"id"`
	RuleID         string       `json:"ruleId"`
	RuleName       string       `json:"ruleName"`
	Severity       RuleSeverity `json:"severity"`
	Message        string       `json:"message"`
	SourceNodeID   string       `json:"sourceNodeId"`
	Timestamp      time.Time    `json:"timestamp"`
	Acknowledged   bool         `json:"acknowledged"`
	AcknowledgedAt *time.Time   `json:"acknowledgedAt,omitempty"`
}

// AlertNotification is the wire payload posted to a peer's /alerts/notify endpoint.
type AlertNotification struct {
	SourceNodeID   string       `json:"sourceNodeId"`
	SourceNodeName string       `json:"sourceNodeName"`
	RuleID         string       `json:"ruleId"`
	RuleName       string       `json:"ruleName"`
	Severity       RuleSeverity `json:"severity"`
	Message        string       `json:"message"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Validate checks the notification payload shape.
func (n *AlertNotification) Validate() error {
	if n.SourceNodeID == "" || n.RuleID == "" || n.Message == "" {
		return ErrMalformedNotification
	}
	if !n.Severity.Valid() {
		return ErrMalformedNotification
	}
	return nil
}

// Event converts the notification into the AlertEvent recorded locally.
func (n *AlertNotification) Event() AlertEvent {
	return AlertEvent{
		RuleID:       n.RuleID,
		RuleName:     n.RuleName,
		Severity:     n.Severity,
		Message:      n.Message,
		SourceNodeID: n.SourceNodeID,
		Timestamp:    n.Timestamp,
	}
}
