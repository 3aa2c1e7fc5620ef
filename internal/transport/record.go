// Package transport defines the publish/query boundary the synchronizers
// consume, and a fan-out pool over multiple independent record endpoints. The
// pool never retries: retry and backoff policy belongs to whoever operates the
// endpoints, not to the core.
package transport

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// Record kinds understood by the relays.
const (
	KindLedger = "ledger-status"
	KindBackup = "wallet-backup"
)

// Record is one replicated unit of storage. Records sharing the same logical
// Key replace each other at read time (greatest CreatedAt wins); records with
// distinct IDs accumulate.
type Record struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Key       string            `json:"key,omitempty"`   // logical key, e.g. "voucher:<id>"
	Owner     string            `json:"owner,omitempty"` // hex x-only pubkey of the addressee
	CreatedAt int64             `json:"created_at"`      // writer-assigned logical timestamp, unix seconds
	Tags      map[string]string `json:"tags,omitempty"`
	Content   []byte            `json:"content"`
}

// NewRecord assembles a record and stamps its content-derived ID.
func NewRecord(kind, key, owner string, createdAt int64, tags map[string]string, content []byte) Record {
	r := Record{
		Kind:      kind,
		Key:       key,
		Owner:     owner,
		CreatedAt: createdAt,
		Tags:      tags,
		Content:   content,
	}
	r.ID = r.computeID()
	return r
}

// computeID hashes every addressable field, so identical content published
// twice dedups to one record while any difference yields a new identity.
func (r *Record) computeID() string {
	h := sha256.New()
	h.Write([]byte(r.Kind))
	h.Write([]byte{0})
	h.Write([]byte(r.Key))
	h.Write([]byte{0})
	h.Write([]byte(r.Owner))
	h.Write([]byte{0})
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(r.CreatedAt))
	h.Write(ts[:])
	keys := make([]string, 0, len(r.Tags))
	for k := range r.Tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write([]byte(r.Tags[k]))
		h.Write([]byte{0})
	}
	h.Write(r.Content)
	return hex.EncodeToString(h.Sum(nil))
}

// Selector describes which records a query wants. Empty slices match
// everything for that dimension.
type Selector struct {
	Kinds  []string `json:"kinds,omitempty"`
	Keys   []string `json:"keys,omitempty"`
	Owners []string `json:"owners,omitempty"`
	Limit  int      `json:"limit,omitempty"` // per-endpoint cap, 0 means unbounded
}

// Matches reports whether the record satisfies the selector.
func (s Selector) Matches(r Record) bool {
	return contains(s.Kinds, r.Kind) && contains(s.Keys, r.Key) && contains(s.Owners, r.Owner)
}

func contains(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
