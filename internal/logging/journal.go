package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// Execer is satisfied by both *sql.DB and *sql.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// #region log-decision
// LogDecision writes a decision entry to the decisions table.
func LogDecision(db Execer, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decisions (id, created_at, label, confidence, chosen_text, bank_text, used_formatter, source_ref)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		entry.Label,
		entry.Confidence,
		entry.ChosenText,
		nullIfEmpty(entry.BankText),
		boolInt(entry.UsedExternalFormatter),
		nullIfEmpty(entry.SourceRef),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region log-feedback
// LogFeedback appends a feedback entry to the feedback table.
func LogFeedback(db Execer, entry FeedbackEntry) error {
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO feedback (decision_ts, label, accepted, received_at) VALUES (?, ?, ?, ?)`,
		entry.DecisionTimestamp,
		entry.Label,
		boolInt(entry.Accepted),
		entry.ReceivedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log feedback: %w", err)
	}
	return nil
}

// #endregion log-feedback

// #region queries
// RecentDecisions returns up to limit decisions, newest first.
func RecentDecisions(db *sql.DB, limit int) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT id, created_at, label, confidence, chosen_text, bank_text, used_formatter, source_ref
		 FROM decisions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var created string
		var bank, ref sql.NullString
		var used int
		if err := rows.Scan(&e.ID, &created, &e.Label, &e.Confidence, &e.ChosenText, &bank, &used, &ref); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		e.BankText = bank.String
		e.SourceRef = ref.String
		e.UsedExternalFormatter = used != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecentFeedback returns up to limit feedback rows, newest first.
func RecentFeedback(db *sql.DB, limit int) ([]FeedbackEntry, error) {
	rows, err := db.Query(
		`SELECT decision_ts, label, accepted, received_at FROM feedback ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}
	defer rows.Close()

	var out []FeedbackEntry
	for rows.Next() {
		var e FeedbackEntry
		var accepted int
		var received string
		if err := rows.Scan(&e.DecisionTimestamp, &e.Label, &accepted, &received); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		e.Accepted = accepted != 0
		e.ReceivedAt, _ = time.Parse(time.RFC3339Nano, received)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion queries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
