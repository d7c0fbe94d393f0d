package state

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caiga/companion/internal/logging"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS cooldowns (
	scope    TEXT NOT NULL,
	key      TEXT NOT NULL,
	last_at  TEXT NOT NULL,
	PRIMARY KEY (scope, key)
);

CREATE TABLE IF NOT EXISTS counters (
	label    TEXT PRIMARY KEY,
	posted   INTEGER NOT NULL DEFAULT 0,
	accepted INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS decisions (
	id             TEXT PRIMARY KEY,
	created_at     TEXT NOT NULL,
	label          TEXT NOT NULL,
	confidence     REAL NOT NULL,
	chosen_text    TEXT NOT NULL,
	bank_text      TEXT,
	used_formatter INTEGER NOT NULL DEFAULT 0,
	source_ref     TEXT
);

CREATE TABLE IF NOT EXISTS feedback (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	decision_ts REAL NOT NULL,
	label       TEXT NOT NULL,
	accepted    INTEGER NOT NULL,
	received_at TEXT NOT NULL
);
`

const (
	scopeGlobal    = "global"
	scopeLabel     = "label"
	scopeCandidate = "candidate"
)

// #endregion schema

// #region store-struct
// Store persists engine state and the decision/feedback journals in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Open is NewStore that tolerates an unreadable file: the file is moved aside and a
// fresh database is created in its place.
func Open(dbPath string) (*Store, error) {
	s, err := NewStore(dbPath)
	if err == nil {
		return s, nil
	}
	if _, statErr := os.Stat(dbPath); statErr != nil {
		return nil, err
	}
	aside := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
	log.Printf("[STATE] %s unreadable (%v), moving to %s", dbPath, err, aside)
	if rnErr := os.Rename(dbPath, aside); rnErr != nil {
		return nil, fmt.Errorf("move aside %s: %w", dbPath, rnErr)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	return NewStore(dbPath)
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region load
// Load reads the persisted engine state. A read failure yields an empty state, not an error;
// the failure is logged.
func (s *Store) Load() EngineState {
	st, err := s.load()
	if err != nil {
		log.Printf("[STATE] load failed, starting with empty ledgers: %v", err)
		return NewEngineState()
	}
	return st
}

func (s *Store) load() (EngineState, error) {
	st := NewEngineState()

	rows, err := s.db.Query(`SELECT scope, key, last_at FROM cooldowns`)
	if err != nil {
		return st, fmt.Errorf("query cooldowns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var scope, key, lastAt string
		if err := rows.Scan(&scope, &key, &lastAt); err != nil {
			return NewEngineState(), fmt.Errorf("scan cooldown: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, lastAt)
		if err != nil {
			continue
		}
		switch scope {
		case scopeGlobal:
			st.Ledger.Global = ts
		case scopeLabel:
			st.Ledger.Labels[key] = ts
		case scopeCandidate:
			st.Ledger.Candidates[key] = ts
		}
	}
	if err := rows.Err(); err != nil {
		return NewEngineState(), err
	}

	crows, err := s.db.Query(`SELECT label, posted, accepted FROM counters`)
	if err != nil {
		return NewEngineState(), fmt.Errorf("query counters: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var label string
		var posted, accepted int
		if err := crows.Scan(&label, &posted, &accepted); err != nil {
			return NewEngineState(), fmt.Errorf("scan counters: %w", err)
		}
		if posted > 0 {
			st.Counters.Posted[label] = posted
		}
		if accepted > 0 {
			st.Counters.Accepted[label] = accepted
		}
	}
	return st, crows.Err()
}

// #endregion load

// #region save
// Save replaces the persisted engine state.
func (s *Store) Save(st EngineState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := writeState(tx, st); err != nil {
		return err
	}
	return tx.Commit()
}

// CommitDecision persists the post-dispatch state and appends the decision row atomically.
func (s *Store) CommitDecision(st EngineState, entry logging.DecisionEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := writeState(tx, st); err != nil {
		return err
	}
	if err := logging.LogDecision(tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// CommitFeedback persists the updated counters and appends the feedback row atomically.
func (s *Store) CommitFeedback(st EngineState, entry logging.FeedbackEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := writeState(tx, st); err != nil {
		return err
	}
	if err := logging.LogFeedback(tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

func writeState(tx *sql.Tx, st EngineState) error {
	if _, err := tx.Exec(`DELETE FROM cooldowns`); err != nil {
		return fmt.Errorf("clear cooldowns: %w", err)
	}
	put := func(scope, key string, ts time.Time) error {
		if ts.IsZero() {
			return nil
		}
		_, err := tx.Exec(
			`INSERT INTO cooldowns (scope, key, last_at) VALUES (?, ?, ?)`,
			scope, key, ts.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("insert cooldown %s/%s: %w", scope, key, err)
		}
		return nil
	}
	if err := put(scopeGlobal, "", st.Ledger.Global); err != nil {
		return err
	}
	for k, ts := range st.Ledger.Labels {
		if err := put(scopeLabel, k, ts); err != nil {
			return err
		}
	}
	for k, ts := range st.Ledger.Candidates {
		if err := put(scopeCandidate, k, ts); err != nil {
			return err
		}
	}

	labels := make(map[string]struct{})
	for l := range st.Counters.Posted {
		labels[l] = struct{}{}
	}
	for l := range st.Counters.Accepted {
		labels[l] = struct{}{}
	}
	for l := range labels {
		_, err := tx.Exec(
			`INSERT INTO counters (label, posted, accepted) VALUES (?, ?, ?)
			 ON CONFLICT(label) DO UPDATE SET posted = excluded.posted, accepted = excluded.accepted`,
			l, st.Counters.Posted[l], st.Counters.Accepted[l],
		)
		if err != nil {
			return fmt.Errorf("upsert counters %s: %w", l, err)
		}
	}
	return nil
}

// #endregion save
