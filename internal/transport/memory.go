package transport

import (
	"context"
	"sync"
)

// MemoryEndpoint is an in-process record store, used by tests and by nodes
// configured with a "memory" relay entry.
type MemoryEndpoint struct {
	name string

	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryEndpoint creates an empty in-memory endpoint.
func NewMemoryEndpoint(name string) *MemoryEndpoint {
	return &MemoryEndpoint{
		name:    name,
		records: make(map[string]Record),
	}
}

func (m *MemoryEndpoint) Name() string { return m.name }

// Publish stores the record. Re-publishing an identical record is a no-op
// because the ID is content-derived.
func (m *MemoryEndpoint) Publish(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}

// Query returns every stored record matching the selector, in no particular
// order.
func (m *MemoryEndpoint) Query(ctx context.Context, sel Selector) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Record
	for _, rec := range m.records {
		if sel.Matches(rec) {
			out = append(out, rec)
			if sel.Limit > 0 && len(out) >= sel.Limit {
				break
			}
		}
	}
	return out, nil
}

// Delete drops a record by ID, simulating store-side expiry. Missing IDs are
// ignored.
func (m *MemoryEndpoint) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Len reports how many records the endpoint holds.
func (m *MemoryEndpoint) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
