package relay

import (
	"sync"

	"voucher-node/internal/transport"
)

// Store holds a relay's records. Ledger records are replaceable: only the
// newest record per logical key is retained (ties broken by the smaller
// record ID, matching the readers' rule). Backup records are append-only and
// accumulate.
type Store struct {
	mu   sync.RWMutex
	byID map[string]transport.Record
	// newest replaceable record ID per logical key
	byKey map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		byID:  make(map[string]transport.Record),
		byKey: make(map[string]string),
	}
}

// Put stores the record, dropping any older record under the same logical key
// when the record is replaceable.
func (s *Store) Put(rec transport.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.Kind != transport.KindLedger || rec.Key == "" {
		s.byID[rec.ID] = rec
		return
	}
	if currentID, ok := s.byKey[rec.Key]; ok {
		current := s.byID[currentID]
		if !supersedes(rec, current) {
			return
		}
		delete(s.byID, currentID)
	}
	s.byID[rec.ID] = rec
	s.byKey[rec.Key] = rec.ID
}

// supersedes reports whether a replaces b under last-write-wins.
func supersedes(a, b transport.Record) bool {
	if a.CreatedAt != b.CreatedAt {
		return a.CreatedAt > b.CreatedAt
	}
	return a.ID < b.ID
}

// Select returns every stored record matching the selector.
func (s *Store) Select(sel transport.Selector) []transport.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []transport.Record
	for _, rec := range s.byID {
		if sel.Matches(rec) {
			out = append(out, rec)
			if sel.Limit > 0 && len(out) >= sel.Limit {
				break
			}
		}
	}
	return out
}

// Len reports how many records the store holds.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
