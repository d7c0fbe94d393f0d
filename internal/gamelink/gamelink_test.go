package gamelink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStateClient_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Write([]byte(`{"timestamp": 1772366400, "vitals": {"health": 7}, "recentEvents": [{"type": "damage_taken"}]}`))
	}))
	defer srv.Close()

	snap, err := NewStateClient(srv.URL, 0).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if snap.Vitals.Health != 7 || snap.Vitals.Hunger != 20 || snap.Position.Y != 64 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if len(snap.RecentEvents) != 1 || snap.RecentEvents[0].Type != "damage_taken" {
		t.Errorf("unexpected events %+v", snap.RecentEvents)
	}
}

func TestStateClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }},
		{"bad-json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{`)) }},
		{"slow", func(w http.ResponseWriter, r *http.Request) { time.Sleep(200 * time.Millisecond) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			if _, err := NewStateClient(srv.URL, 50*time.Millisecond).Fetch(context.Background()); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestTipClient_Send(t *testing.T) {
	var got tipRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	if err := NewTipClient(srv.URL, 0).Send(context.Background(), "Place torches."); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Message != "Place torches." {
		t.Errorf("unexpected body %+v", got)
	}
}

func TestTipClient_NonOKFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	if err := NewTipClient(srv.URL, 0).Send(context.Background(), "x"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
