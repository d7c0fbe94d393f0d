package logging

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`
	CREATE TABLE decisions (
		id             TEXT PRIMARY KEY,
		created_at     TEXT NOT NULL,
		label          TEXT NOT NULL,
		confidence     REAL NOT NULL,
		chosen_text    TEXT NOT NULL,
		bank_text      TEXT,
		used_formatter INTEGER NOT NULL DEFAULT 0,
		source_ref     TEXT
	);
	CREATE TABLE feedback (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		decision_ts REAL NOT NULL,
		label       TEXT NOT NULL,
		accepted    INTEGER NOT NULL,
		received_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create tables: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := DecisionEntry{
		ID:                    "d1",
		CreatedAt:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Label:                 "low_food",
		Confidence:            0.9,
		ChosenText:            "Bread recipe: 3 wheat",
		BankText:              "Bread recipe: {recipe}",
		UsedExternalFormatter: true,
		SourceRef:             "1767225600",
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := RecentDecisions(db, 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if !got[0].CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at: got %v, want %v", got[0].CreatedAt, entry.CreatedAt)
	}
	got[0].CreatedAt = entry.CreatedAt
	if got[0] != entry {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got[0], entry)
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	if err := LogDecision(db, DecisionEntry{ID: "d2", Label: "combat", ChosenText: "Block."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM decisions").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	if err := LogDecision(db, DecisionEntry{ID: "d3", Label: "combat", ChosenText: "Block."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var bank, ref sql.NullString
	db.QueryRow("SELECT bank_text, source_ref FROM decisions").Scan(&bank, &ref)
	if bank.Valid {
		t.Error("expected NULL bank_text for empty string")
	}
	if ref.Valid {
		t.Error("expected NULL source_ref for empty string")
	}
}

func TestLogDecision_InTransaction(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := LogDecision(tx, DecisionEntry{ID: "d4", Label: "combat", ChosenText: "x"}); err != nil {
		t.Fatalf("LogDecision: %v", err)
	}
	tx.Rollback()

	var count int
	db.QueryRow("SELECT COUNT(*) FROM decisions").Scan(&count)
	if count != 0 {
		t.Errorf("expected rollback to discard the row, got %d", count)
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogDecision(db, DecisionEntry{ID: "d5"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-decision-tests

// #region feedback-tests
func TestLogFeedback(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entries := []FeedbackEntry{
		{DecisionTimestamp: 100.5, Label: "combat", Accepted: true},
		{DecisionTimestamp: 200, Label: "exploring", Accepted: false},
	}
	for _, e := range entries {
		if err := LogFeedback(db, e); err != nil {
			t.Fatalf("LogFeedback: %v", err)
		}
	}

	got, err := RecentFeedback(db, 10)
	if err != nil {
		t.Fatalf("RecentFeedback: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	// newest first
	if got[0].Label != "exploring" || got[0].Accepted {
		t.Errorf("unexpected first row %+v", got[0])
	}
	if got[1].DecisionTimestamp != 100.5 || !got[1].Accepted {
		t.Errorf("unexpected second row %+v", got[1])
	}
	if got[1].ReceivedAt.IsZero() {
		t.Error("expected received_at filled")
	}
}

// #endregion feedback-tests

// #region null-if-empty-tests
func TestNullIfEmpty(t *testing.T) {
	if result := nullIfEmpty(""); result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
	if result := nullIfEmpty("hello"); result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests
