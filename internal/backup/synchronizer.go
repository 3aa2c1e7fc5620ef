// Package backup encrypts batches of signed vouchers into self-addressed
// records and reconciles every batch it can recover back into one wallet
// view. Backups are append-only: a new backup never invalidates older
// records, restore merges them all.
package backup

import (
	"context"
	"encoding/hex"
	"sort"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"voucher-node/internal/logger"
	"voucher-node/internal/transport"
	"voucher-node/internal/voucher"
)

// batch is the cleartext structure inside one backup record: an ordered list
// of signed-voucher payloads plus the writer timestamp.
type batch struct {
	Vouchers  [][]byte `cbor:"vouchers"`
	CreatedAt int64    `cbor:"created_at"`
}

// Synchronizer publishes and restores encrypted wallet backups.
type Synchronizer struct {
	pub transport.Publisher
}

// NewSynchronizer creates a synchronizer over the given publish/query
// boundary.
func NewSynchronizer(pub transport.Publisher) *Synchronizer {
	return &Synchronizer{pub: pub}
}

func ownerAddress(owner *btcec.PrivateKey) string {
	return hex.EncodeToString(schnorr.SerializePubKey(owner.PubKey()))
}

// Backup encrypts the full batch under the owner-derived key and publishes it
// as one opaque record addressed to the owner.
func (s *Synchronizer) Backup(ctx context.Context, envs []*voucher.Envelope, owner *btcec.PrivateKey) error {
	if owner == nil {
		return errors.New("backup requires the owner key")
	}
	if len(envs) == 0 {
		return errors.New("nothing to back up")
	}

	now := time.Now().Unix()
	b := batch{Vouchers: make([][]byte, 0, len(envs)), CreatedAt: now}
	for _, env := range envs {
		raw, err := env.Marshal()
		if err != nil {
			return errors.Wrapf(err, "marshal voucher %s", env.Secret.ID)
		}
		b.Vouchers = append(b.Vouchers, raw)
	}
	plaintext, err := cbor.Marshal(b)
	if err != nil {
		return errors.Wrap(err, "marshal backup batch")
	}

	key, err := deriveKey(owner)
	if err != nil {
		return err
	}
	blob, err := seal(key, plaintext)
	if err != nil {
		return errors.Wrap(err, "encrypt backup batch")
	}

	rec := transport.NewRecord(transport.KindBackup, "", ownerAddress(owner), now, nil, blob)
	acked, err := s.pub.Publish(ctx, rec)
	if err != nil {
		return errors.Wrap(err, "publish backup record")
	}
	if !acked {
		return errors.New("no replica acknowledged backup record")
	}
	return nil
}

// Restore fetches every backup record addressed to the owner, decrypts each
// one independently, and merges the recovered vouchers keyed by identity,
// keeping per identity the copy from the newest record. A record that fails
// to decrypt is logged and skipped: partial recovery beats total failure.
func (s *Synchronizer) Restore(ctx context.Context, owner *btcec.PrivateKey) ([]*voucher.Envelope, error) {
	if owner == nil {
		return nil, errors.New("restore requires the owner key")
	}
	recs, err := s.pub.Query(ctx, transport.Selector{
		Kinds:  []string{transport.KindBackup},
		Owners: []string{ownerAddress(owner)},
	})
	if err != nil {
		return nil, errors.Wrap(err, "query backup records")
	}

	key, err := deriveKey(owner)
	if err != nil {
		return nil, err
	}

	// Older records first, so newer copies of the same voucher overwrite as
	// they land. Among equal timestamps the smaller record ID wins, matching
	// the ledger's tie rule.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt != recs[j].CreatedAt {
			return recs[i].CreatedAt < recs[j].CreatedAt
		}
		return recs[i].ID > recs[j].ID
	})

	merged := make(map[string]*voucher.Envelope)
	for _, rec := range recs {
		plaintext, err := open(key, rec.Content)
		if err != nil {
			logger.Log.Warnf("skipping backup record %s: %v", rec.ID, err)
			continue
		}
		var b batch
		if err := cbor.Unmarshal(plaintext, &b); err != nil {
			logger.Log.Warnf("skipping backup record %s: undecodable batch: %v", rec.ID, err)
			continue
		}
		for i, raw := range b.Vouchers {
			env, err := voucher.DecodeEnvelope(raw)
			if err != nil {
				logger.Log.Warnf("skipping voucher %d of backup record %s: %v", i, rec.ID, err)
				continue
			}
			merged[env.Secret.ID] = env
		}
	}

	out := make([]*voucher.Envelope, 0, len(merged))
	for _, env := range merged {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Secret.ID < out[j].Secret.ID })
	return out, nil
}

// HasBackups reports whether any backup record is addressed to the owner. It
// never decrypts anything.
func (s *Synchronizer) HasBackups(ctx context.Context, owner *btcec.PrivateKey) (bool, error) {
	if owner == nil {
		return false, errors.New("existence check requires the owner key")
	}
	recs, err := s.pub.Query(ctx, transport.Selector{
		Kinds:  []string{transport.KindBackup},
		Owners: []string{ownerAddress(owner)},
		Limit:  1,
	})
	if err != nil {
		return false, errors.Wrap(err, "query backup records")
	}
	return len(recs) > 0, nil
}
