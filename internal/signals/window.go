package signals

import (
	"encoding/json"
	"fmt"
	"log"
	"time"
)

// #region defaults

// millisThreshold separates epoch-millisecond timestamps (the mod's format) from epoch seconds.
const millisThreshold = 1e12

// DefaultSnapshot returns a snapshot carrying the documented defaults for absent fields.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Position: Position{Y: 64},
		Vitals:   Vitals{Health: 20, Hunger: 20},
	}
}

// #endregion defaults

// #region decode

// rawSnapshot defers event decoding so one malformed event cannot poison the snapshot.
type rawSnapshot struct {
	Snapshot
	RecentEvents json.RawMessage `json:"recentEvents"`
}

// DecodeSnapshot parses a state document. Absent fields keep the defaults of DefaultSnapshot;
// a malformed event list degrades to no events, and malformed entries are skipped.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	raw := rawSnapshot{Snapshot: DefaultSnapshot()}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap := raw.Snapshot
	snap.RecentEvents = decodeEvents(raw.RecentEvents)
	return snap, nil
}

func decodeEvents(data json.RawMessage) []Event {
	if len(data) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		log.Printf("[SIGNALS] recentEvents is not a list, ignoring: %v", err)
		return nil
	}
	events := make([]Event, 0, len(items))
	for _, item := range items {
		var e Event
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		e.Timestamp = normalizeTimestamp(e.Timestamp)
		events = append(events, e)
	}
	return events
}

func normalizeTimestamp(ts float64) float64 {
	if ts > millisThreshold {
		return ts / 1000
	}
	return ts
}

// #endregion decode

// #region extract

// Extract filters the snapshot's events to the window opened at previousCutoff.
// An event belongs to the window when its timestamp is 0 or not older than the cutoff.
// The new cutoff is the wall-clock time of this cycle, never an event timestamp, so an
// upstream source that does not clear its buffer can repeat an event in adjacent windows.
func Extract(snap Snapshot, previousCutoff, now time.Time) Window {
	cutoff := EpochSeconds(previousCutoff)
	var events []Event
	for _, e := range snap.RecentEvents {
		if e.Timestamp == 0 || e.Timestamp >= cutoff {
			events = append(events, e)
		}
	}
	return Window{Events: events, Cutoff: now}
}

// EpochSeconds converts t to fractional Unix seconds. The zero time maps far into the past.
func EpochSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// #endregion extract
