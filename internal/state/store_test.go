package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/caiga/companion/internal/logging"
	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleState() EngineState {
	st := NewEngineState()
	base := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)
	st.Ledger.Global = base
	st.Ledger.Labels["combat"] = base.Add(-time.Minute)
	st.Ledger.Candidates["Block."] = base
	st.Counters.Posted["combat"] = 3
	st.Counters.Accepted["combat"] = 1
	st.Counters.Accepted["exploring"] = 2
	return st
}

func TestLoadEmpty(t *testing.T) {
	s := tempDB(t)
	st := s.Load()
	if !st.Ledger.Global.IsZero() || len(st.Ledger.Labels) != 0 || len(st.Counters.Posted) != 0 {
		t.Fatalf("expected empty state, got %+v", st)
	}
}

func TestSaveAndLoad(t *testing.T) {
	s := tempDB(t)
	want := sampleState()

	if err := s.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := s.Load()

	if !got.Ledger.Global.Equal(want.Ledger.Global) {
		t.Errorf("global: got %v, want %v", got.Ledger.Global, want.Ledger.Global)
	}
	if !got.Ledger.Labels["combat"].Equal(want.Ledger.Labels["combat"]) {
		t.Errorf("label ledger mismatch: %v", got.Ledger.Labels)
	}
	if !got.Ledger.Candidates["Block."].Equal(want.Ledger.Candidates["Block."]) {
		t.Errorf("candidate ledger mismatch: %v", got.Ledger.Candidates)
	}
	if got.Counters.Posted["combat"] != 3 || got.Counters.Accepted["combat"] != 1 || got.Counters.Accepted["exploring"] != 2 {
		t.Errorf("counters mismatch: %+v", got.Counters)
	}
}

func TestSaveReplaces(t *testing.T) {
	s := tempDB(t)
	s.Save(sampleState())

	next := NewEngineState()
	next.Ledger.Labels["mining_mode"] = time.Unix(100, 0)
	if err := s.Save(next); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := s.Load()
	if _, ok := got.Ledger.Labels["combat"]; ok {
		t.Error("expected stale label entry removed")
	}
	if !got.Ledger.Global.IsZero() {
		t.Error("expected global cleared")
	}
}

func TestCommitDecision(t *testing.T) {
	s := tempDB(t)
	st := sampleState()
	entry := logging.DecisionEntry{ID: "abc", Label: "combat", Confidence: 0.9, ChosenText: "Block.", SourceRef: "123"}

	if err := s.CommitDecision(st, entry); err != nil {
		t.Fatalf("CommitDecision: %v", err)
	}

	got, err := logging.RecentDecisions(s.DB(), 5)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "abc" {
		t.Fatalf("unexpected decisions %+v", got)
	}
	if s.Load().Counters.Posted["combat"] != 3 {
		t.Error("expected counters persisted with the decision")
	}
}

func TestCommitDecision_AtomicOnFailure(t *testing.T) {
	s := tempDB(t)
	entry := logging.DecisionEntry{ID: "dup", Label: "combat", ChosenText: "x"}
	if err := s.CommitDecision(sampleState(), entry); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	changed := sampleState()
	changed.Counters.Posted["combat"] = 99
	// duplicate primary key fails the insert after the state rows were written
	if err := s.CommitDecision(changed, entry); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if got := s.Load().Counters.Posted["combat"]; got != 3 {
		t.Errorf("expected state rolled back to 3, got %d", got)
	}
}

func TestCommitFeedback(t *testing.T) {
	s := tempDB(t)
	st := NewEngineState()
	st.Counters.Accepted["combat"] = 1

	if err := s.CommitFeedback(st, logging.FeedbackEntry{DecisionTimestamp: 42, Label: "combat", Accepted: true}); err != nil {
		t.Fatalf("CommitFeedback: %v", err)
	}
	fb, _ := logging.RecentFeedback(s.DB(), 5)
	if len(fb) != 1 || !fb[0].Accepted {
		t.Fatalf("unexpected feedback %+v", fb)
	}
	if s.Load().Counters.Accepted["combat"] != 1 {
		t.Error("expected accepted counter persisted")
	}
}

func TestOpen_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	if err := os.WriteFile(path, []byte("this is not a sqlite database, just garbage bytes padding padding"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if st := s.Load(); len(st.Ledger.Labels) != 0 {
		t.Errorf("expected empty state, got %+v", st)
	}
	matches, _ := filepath.Glob(path + ".corrupt-*")
	if len(matches) != 1 {
		t.Errorf("expected corrupt file moved aside, found %v", matches)
	}
}

func TestClonesAreIndependent(t *testing.T) {
	st := sampleState()
	c := st.Clone()
	c.Ledger.Labels["combat"] = time.Time{}
	c.Counters.Posted["combat"] = 0
	if st.Ledger.Labels["combat"].IsZero() || st.Counters.Posted["combat"] != 3 {
		t.Error("clone shares maps with original")
	}
}
