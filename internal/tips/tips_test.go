package tips

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const sampleBank = `{
  "version": "2.1",
  "labels": {
    "low_health": [
      {"text": "Eat.", "spoiler_level": 0, "priority": 10},
      {"text": "", "spoiler_level": 0, "priority": 3},
      {"text": "Bad priority", "spoiler_level": 0, "priority": 0}
    ],
    "building": [
      {"text": "Recipe: {recipe}", "spoiler_level": 1, "priority": 4},
      {"text": "Torch: {recipe}", "spoiler_level": 0, "priority": 2, "enrich_query": "torch"}
    ],
    "broken": "not a list"
  }
}`

// #region parse-tests

func TestParse(t *testing.T) {
	table, version, err := Parse([]byte(sampleBank))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if version != "2.1" {
		t.Errorf("version: got %q", version)
	}
	if _, ok := table["broken"]; ok {
		t.Error("expected non-list label skipped")
	}
	if got := len(table["low_health"]); got != 1 {
		t.Fatalf("expected 1 valid low_health entry, got %d", got)
	}
	if table["low_health"][0].Kind != KindPlain {
		t.Error("expected plain candidate")
	}

	b := table["building"]
	if len(b) != 2 {
		t.Fatalf("expected 2 building entries, got %d", len(b))
	}
	if b[0].Kind != KindNeedsEnrichment || b[0].Query != "building" {
		t.Errorf("expected enrichment with label query, got %+v", b[0])
	}
	if b[1].Query != "torch" {
		t.Errorf("expected explicit query kept, got %q", b[1].Query)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, _, err := Parse([]byte(`{"labels":`)); err == nil {
		t.Fatal("expected error")
	}
}

func TestBundledBankParses(t *testing.T) {
	table, _, err := Parse(bundledBank)
	if err != nil {
		t.Fatalf("bundled bank: %v", err)
	}
	for _, label := range []string{"low_health", "low_food", "exploring", "combat"} {
		if len(table[label]) == 0 {
			t.Errorf("bundled bank has no %s tips", label)
		}
	}
}

// #endregion parse-tests

// #region store-tests

func TestStore_CandidatesFor(t *testing.T) {
	s := NewStore(Stub())
	if got := s.CandidatesFor("exploring"); len(got) != 1 || got[0].Priority != 5 {
		t.Errorf("unexpected exploring candidates %+v", got)
	}
	if got := s.CandidatesFor("unknown"); len(got) != 0 {
		t.Errorf("expected no candidates, got %d", len(got))
	}
}

func TestStore_ReplaceIsCopied(t *testing.T) {
	table := Table{"combat": {{Text: "Block.", Priority: 3}}}
	s := NewStore(table)
	table["combat"][0].Text = "mutated"

	if got := s.CandidatesFor("combat")[0].Text; got != "Block." {
		t.Errorf("store leaked caller mutation: %q", got)
	}

	out := s.CandidatesFor("combat")
	out[0].Text = "also mutated"
	if got := s.CandidatesFor("combat")[0].Text; got != "Block." {
		t.Errorf("store leaked reader mutation: %q", got)
	}
}

func TestStore_ConcurrentReplace(t *testing.T) {
	a := Table{"x": {{Text: "a1", Priority: 1}, {Text: "a2", Priority: 1}}}
	b := Table{"x": {{Text: "b1", Priority: 1}, {Text: "b2", Priority: 1}}}
	s := NewStore(a)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				s.Replace(b, "b", "test")
			} else {
				s.Replace(a, "a", "test")
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			c := s.CandidatesFor("x")
			if c[0].Text[0] != c[1].Text[0] {
				t.Errorf("observed mixed table: %v", c)
				return
			}
		}
	}()
	wg.Wait()
}

func TestStore_Info(t *testing.T) {
	s := NewStore(nil)
	s.Replace(Stub(), "stub", "stub")
	info := s.Info()
	if info.Labels != 3 || info.Candidates != 3 || info.Source != "stub" {
		t.Errorf("unexpected info %+v", info)
	}
}

// #endregion store-tests

// #region provider-tests

func TestProvider_LocalPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.json")
	os.WriteFile(path, []byte(sampleBank), 0o644)

	p := NewProvider(ProviderConfig{URL: path, CachePath: filepath.Join(dir, "cache.json")})
	table, version, source := p.Load(context.Background())
	if source != "local" || version != "2.1" || len(table["low_health"]) != 1 {
		t.Errorf("unexpected load: %s %s %v", source, version, table)
	}
}

func TestProvider_RemoteWritesCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleBank))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "sub", "cache.json")
	p := NewProvider(ProviderConfig{URL: srv.URL, CachePath: cache})

	_, _, source := p.Load(context.Background())
	if source != "remote" {
		t.Fatalf("expected remote, got %s", source)
	}
	if _, err := os.Stat(cache); err != nil {
		t.Fatalf("expected cache written: %v", err)
	}
}

func TestProvider_RemoteNotDueUsesCache(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(sampleBank))
	}))
	defer srv.Close()

	cache := filepath.Join(t.TempDir(), "cache.json")
	p := NewProvider(ProviderConfig{URL: srv.URL, CachePath: cache, RefreshInterval: time.Hour})
	p.Load(context.Background())

	_, _, source := p.Load(context.Background())
	if source != "cache" {
		t.Errorf("expected cache within refresh interval, got %s", source)
	}
	if hits != 1 {
		t.Errorf("expected 1 fetch, got %d", hits)
	}

	p.Reload(context.Background())
	if hits != 2 {
		t.Errorf("expected reload to fetch, got %d fetches", hits)
	}
}

func TestProvider_FallbackChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	dir := t.TempDir()

	// remote fails, no cache: embedded default
	p := NewProvider(ProviderConfig{URL: srv.URL, CachePath: filepath.Join(dir, "none.json")})
	if _, _, source := p.Load(context.Background()); source != "bundled" {
		t.Errorf("expected bundled, got %s", source)
	}

	// bundled override missing: stub
	p = NewProvider(ProviderConfig{URL: srv.URL, BundledPath: filepath.Join(dir, "missing.json")})
	table, _, source := p.Load(context.Background())
	if source != "stub" {
		t.Fatalf("expected stub, got %s", source)
	}
	if len(table["low_food"]) != 1 || table["low_food"][0].Priority != 9 {
		t.Errorf("unexpected stub %+v", table)
	}
}

func TestProvider_RunStopsOnCancel(t *testing.T) {
	p := NewProvider(ProviderConfig{BundledPath: "/nonexistent", RefreshInterval: 10 * time.Millisecond})
	s := NewStore(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, s) }()

	deadline := time.After(2 * time.Second)
	for s.Info().Source != "stub" {
		select {
		case <-deadline:
			t.Fatal("refresher never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}
}

// #endregion provider-tests
