// Package ledger tracks voucher status over replicated, replaceable records.
// The synchronizer itself is transition-agnostic: every write is a full-record
// replace, and "current" is whichever record carries the greatest writer
// timestamp among the replicas that answered. A delayed write from an
// abandoned client can therefore resurface an older status at some replica;
// that is the accepted price of availability over consistency, not a bug this
// package tries to paper over.
package ledger

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"voucher-node/internal/logger"
	"voucher-node/internal/transport"
	"voucher-node/internal/voucher"
)

// ErrNotFound means no replica holds any record for the voucher. It is
// distinct from a transport failure: the query succeeded and came back empty.
var ErrNotFound = errors.New("voucher not found in ledger")

// StatusRecord is the resolved current state of a voucher.
type StatusRecord struct {
	Envelope  *voucher.Envelope
	Status    voucher.Status
	UpdatedAt int64 // logical timestamp of the winning record
}

// LogicalKey derives the replicated record key for a voucher identity.
func LogicalKey(id string) string { return "voucher:" + id }

// payload is the record content: the full signed voucher plus its status.
// Status rides outside the envelope because it changes after signing.
type payload struct {
	Envelope []byte `cbor:"envelope"`
	Status   string `cbor:"status"`
}

// Synchronizer maps voucher+status pairs onto replicated records.
type Synchronizer struct {
	pub transport.Publisher
}

// NewSynchronizer creates a synchronizer over the given publish/query
// boundary.
func NewSynchronizer(pub transport.Publisher) *Synchronizer {
	return &Synchronizer{pub: pub}
}

// Publish writes the voucher with the given status as a fresh record under
// the voucher's logical key.
func (s *Synchronizer) Publish(ctx context.Context, env *voucher.Envelope, status voucher.Status) error {
	return s.publishAt(ctx, env, status, time.Now().Unix())
}

func (s *Synchronizer) publishAt(ctx context.Context, env *voucher.Envelope, status voucher.Status, ts int64) error {
	envBytes, err := env.Marshal()
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	content, err := cbor.Marshal(payload{Envelope: envBytes, Status: string(status)})
	if err != nil {
		return errors.Wrap(err, "marshal ledger payload")
	}

	secret := env.Secret
	tags := map[string]string{
		"status": string(status),
		"amount": strconv.FormatUint(secret.FaceValue, 10),
		"unit":   secret.Unit,
	}
	if secret.HasExpiry() {
		tags["expiry"] = strconv.FormatInt(secret.Expiry, 10)
	}

	rec := transport.NewRecord(transport.KindLedger, LogicalKey(secret.ID), env.PublicKeyHex(), ts, tags, content)
	acked, err := s.pub.Publish(ctx, rec)
	if err != nil {
		return errors.Wrap(err, "publish ledger record")
	}
	if !acked {
		return errors.New("no replica acknowledged ledger record")
	}
	return nil
}

// Current resolves the voucher's current status by querying every reachable
// replica and taking the newest record. Replicas that did not answer simply do
// not vote; whatever subset responded produces a deterministic answer.
func (s *Synchronizer) Current(ctx context.Context, id string) (*StatusRecord, error) {
	recs, err := s.pub.Query(ctx, transport.Selector{
		Kinds: []string{transport.KindLedger},
		Keys:  []string{LogicalKey(id)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "query ledger records")
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}

	// Newest first; ties go to the smaller record ID so every reader agrees.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt > recs[j].CreatedAt
		}
		return recs[i].ID < recs[j].ID
	})

	for _, rec := range recs {
		sr, err := decodeRecord(rec)
		if err != nil {
			logger.Log.Warnf("skipping undecodable ledger record %s for %s: %v", rec.ID, id, err)
			continue
		}
		return sr, nil
	}
	return nil, errors.Errorf("every ledger record for %s was undecodable", id)
}

// UpdateStatus re-publishes the full current record with a new status. The
// read-modify-write has no cross-replica atomicity; the new record's timestamp
// is bumped past the one it read, so it supersedes it under last-write-wins.
// Re-asserting the current status is an idempotent no-op.
func (s *Synchronizer) UpdateStatus(ctx context.Context, id string, status voucher.Status) (*StatusRecord, error) {
	cur, err := s.Current(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == status {
		return cur, nil
	}
	ts := time.Now().Unix()
	if ts <= cur.UpdatedAt {
		ts = cur.UpdatedAt + 1
	}
	if err := s.publishAt(ctx, cur.Envelope, status, ts); err != nil {
		return nil, err
	}
	return &StatusRecord{Envelope: cur.Envelope, Status: status, UpdatedAt: ts}, nil
}

func decodeRecord(rec transport.Record) (*StatusRecord, error) {
	var p payload
	if err := cbor.Unmarshal(rec.Content, &p); err != nil {
		return nil, errors.Wrap(err, "decode ledger payload")
	}
	status, err := voucher.ParseStatus(p.Status)
	if err != nil {
		return nil, err
	}
	env, err := voucher.DecodeEnvelope(p.Envelope)
	if err != nil {
		return nil, err
	}
	return &StatusRecord{Envelope: env, Status: status, UpdatedAt: rec.CreatedAt}, nil
}
