package replay

import (
	"context"
	"testing"
	"time"

	"github.com/caiga/companion/internal/engine"
	"github.com/caiga/companion/internal/signals"
	"github.com/caiga/companion/internal/tips"
)

var start = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

// helper: snapshot the rule ladder classifies as exploring.
func exploring() signals.Snapshot {
	s := signals.DefaultSnapshot()
	s.Inventory.Logs = 5
	return s
}

func table() tips.Table {
	return tips.Table{"exploring": {{Text: "Mark your base coordinates.", Priority: 5}}}
}

// 1. Dispatch then cooldown: the second poll a second later is rejected.
func TestReplay_DispatchThenReject(t *testing.T) {
	steps := []Step{
		{ID: "a", At: 0, Snapshot: exploring()},
		{ID: "b", At: time.Second, Snapshot: exploring()},
	}
	results, summary, err := Replay(context.Background(), steps, table(), engine.DefaultConfig(), start)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Phase != engine.PhaseDispatched || results[0].Text != "Mark your base coordinates." {
		t.Errorf("expected first step dispatched, got %+v", results[0])
	}
	if results[1].Phase != engine.PhaseRejected {
		t.Errorf("expected second step rejected, got %s", results[1].Phase)
	}
	if summary.TotalSteps != 2 || summary.Dispatched != 1 || summary.Rejected != 1 {
		t.Errorf("unexpected summary %+v", summary)
	}
}

// 2. A scripted failure leaves no trace; the next step dispatches.
func TestReplay_FailureThenRetry(t *testing.T) {
	steps := []Step{
		{ID: "a", At: 0, Snapshot: exploring(), DispatchFails: true},
		{ID: "b", At: time.Second, Snapshot: exploring()},
	}
	results, summary, err := Replay(context.Background(), steps, table(), engine.DefaultConfig(), start)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Phase != engine.PhaseFailed || results[1].Phase != engine.PhaseDispatched {
		t.Fatalf("expected failed then dispatched, got %s then %s", results[0].Phase, results[1].Phase)
	}
	if !summary.FinalLedger.Global.Equal(start.Add(time.Second)) {
		t.Errorf("expected global ledger at +1s, got %s", summary.FinalLedger.Global)
	}
}

// 3. Steps out of order are refused.
func TestReplay_OutOfOrder(t *testing.T) {
	steps := []Step{
		{ID: "a", At: 5 * time.Second, Snapshot: exploring()},
		{ID: "b", At: time.Second, Snapshot: exploring()},
	}
	if _, _, err := Replay(context.Background(), steps, table(), engine.DefaultConfig(), start); err == nil {
		t.Fatal("expected error for out-of-order steps")
	}
}

// 4. Empty input yields an empty summary.
func TestReplay_Empty(t *testing.T) {
	results, summary, err := Replay(context.Background(), nil, table(), engine.DefaultConfig(), start)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 0 || summary.TotalSteps != 0 {
		t.Errorf("expected empty run, got %d results", len(results))
	}
}
