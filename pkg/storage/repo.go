package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// Repository persists alert rules and alert history so both survive
// process restarts. Time-series samples are deliberately not stored here.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps an open database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListRules returns all stored rules ordered by creation time.
func (r *Repository) ListRules(ctx context.Context) ([]models.Rule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, description, metric_name, threshold,
		comparison, severity, cooldown_seconds, enabled, created_at, last_triggered_at
		FROM alert_rules ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var rule models.Rule
		var enabled int
		var lastTriggered sql.NullTime
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Description, &rule.MetricName,
			&rule.Threshold, &rule.Comparison, &rule.Severity, &rule.CooldownSeconds,
			&enabled, &rule.CreatedAt, &lastTriggered); err != nil {
			return nil, err
		}
		rule.Enabled = enabled != 0
		if lastTriggered.Valid {
			t := lastTriggered.Time
			rule.LastTriggeredAt = &t
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// SaveRule inserts or replaces a rule.
func (r *Repository) SaveRule(ctx context.Context, rule models.Rule) error {
	enabled := 0
	if rule.Enabled {
		enabled = 1
	}
	var lastTriggered interface{}
	if rule.LastTriggeredAt != nil {
		lastTriggered = *rule.LastTriggeredAt
	}
	_, err := r.db.ExecContext(ctx, `INSERT OR REPLACE INTO alert_rules
		(id, name, description, metric_name, threshold, comparison, severity,
		 cooldown_seconds, enabled, created_at, last_triggered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID, rule.Name, rule.Description, rule.MetricName, rule.Threshold,
		rule.Comparison, rule.Severity, rule.CooldownSeconds, enabled,
		rule.CreatedAt, lastTriggered)
	return err
}

// DeleteRule removes a rule by id.
func (r *Repository) DeleteRule(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = ?`, id)
	return err
}

// ListRecords returns stored alert records in insertion order, capped at limit.
func (r *Repository) ListRecords(ctx context.Context, limit int) ([]models.AlertRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, rule_id, rule_name, severity, message,
		source_node_id, ts, acknowledged, acknowledged_at
		FROM alert_records ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.AlertRecord
	for rows.Next() {
		var rec models.AlertRecord
		var acked int
		var ackedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.RuleName, &rec.Severity, &rec.Message,
			&rec.SourceNodeID, &rec.Timestamp, &acked, &ackedAt); err != nil {
			return nil, err
		}
		rec.Acknowledged = acked != 0
		if ackedAt.Valid {
			t := ackedAt.Time
			rec.AcknowledgedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// query is newest-first for the LIMIT; flip back to insertion order
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// InsertRecord appends an alert record and evicts the oldest rows beyond maxRecords.
func (r *Repository) InsertRecord(ctx context.Context, rec models.AlertRecord, maxRecords int) error {
	var seq int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM alert_records`).Scan(&seq); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO alert_records
		(id, rule_id, rule_name, severity, message, source_node_id, ts, acknowledged, acknowledged_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?)`,
		rec.ID, rec.RuleID, rec.RuleName, rec.Severity, rec.Message, rec.SourceNodeID,
		rec.Timestamp, seq)
	if err != nil {
		return err
	}
	if maxRecords > 0 {
		_, err = r.db.ExecContext(ctx, `DELETE FROM alert_records WHERE seq <= ? - ?`, seq, maxRecords)
	}
	return err
}

// AcknowledgeRecord marks a record acknowledged.
func (r *Repository) AcknowledgeRecord(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_records SET acknowledged = 1, acknowledged_at = ? WHERE id = ?`, at, id)
	return err
}

// ClearRecords removes all alert records.
func (r *Repository) ClearRecords(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alert_records`)
	return err
}
