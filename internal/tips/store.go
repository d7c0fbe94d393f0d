package tips

import (
	"slices"
	"sync/atomic"
	"time"
)

// #region store

type loaded struct {
	table Table
	info  Info
}

// Store serves the current tip table. Replace swaps the whole table, so a reader
// sees either the old table or the new one, never a mix.
type Store struct {
	cur atomic.Pointer[loaded]
}

// NewStore creates a store holding a copy of t.
func NewStore(t Table) *Store {
	s := &Store{}
	s.Replace(t, "", "init")
	return s
}

// CandidatesFor returns the label's candidates in bank order, or nil for an unknown label.
func (s *Store) CandidatesFor(label string) []Candidate {
	return slices.Clone(s.cur.Load().table[label])
}

// Labels returns the labels that have at least one candidate.
func (s *Store) Labels() []string {
	t := s.cur.Load().table
	out := make([]string, 0, len(t))
	for l := range t {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Replace installs a copy of t as the served table.
func (s *Store) Replace(t Table, version, source string) {
	cp := make(Table, len(t))
	n := 0
	for label, cands := range t {
		if len(cands) == 0 {
			continue
		}
		cp[label] = slices.Clone(cands)
		n += len(cands)
	}
	s.cur.Store(&loaded{
		table: cp,
		info: Info{
			Version:    version,
			Source:     source,
			Labels:     len(cp),
			Candidates: n,
			LoadedAt:   time.Now(),
		},
	})
}

// Info describes the served table.
func (s *Store) Info() Info {
	return s.cur.Load().info
}

// #endregion store
