// Package service wires the signer, validator, and synchronizers into the
// operations external callers consume: issue, queryStatus, updateStatus,
// backup, restore, exists.
package service

import (
	"context"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"voucher-node/internal/backup"
	"voucher-node/internal/ledger"
	"voucher-node/internal/logger"
	"voucher-node/internal/sign"
	"voucher-node/internal/transport"
	"voucher-node/internal/validate"
	"voucher-node/internal/voucher"
)

// Service is one issuing party's view of the system: it signs with a single
// issuer key and redeems only its own paper.
type Service struct {
	issuerID  string
	issuerKey *btcec.PrivateKey
	ledger    *ledger.Synchronizer
	backup    *backup.Synchronizer
}

// New assembles a service over the given publish/query boundary.
func New(issuerID string, issuerKey *btcec.PrivateKey, pub transport.Publisher) *Service {
	return &Service{
		issuerID:  issuerID,
		issuerKey: issuerKey,
		ledger:    ledger.NewSynchronizer(pub),
		backup:    backup.NewSynchronizer(pub),
	}
}

// IssuerID returns the identity this node issues and redeems under.
func (s *Service) IssuerID() string { return s.issuerID }

// IssueParams are the issuer-supplied fields of a new voucher. ID is optional
// and defaults to a fresh uuid; Ratio defaults to 1.
type IssueParams struct {
	ID        string
	Unit      string
	FaceValue uint64
	Expiry    int64
	Memo      string
	Backing   voucher.Strategy
	Ratio     float64
	Decimals  uint32
	Metadata  voucher.Metadata
}

// Issue builds, signs, and publishes a new voucher in ISSUED state.
// Structural problems are rejected before any curve or network work. When the
// ledger publish fails, the signed envelope is still returned alongside the
// error so the caller can re-publish later instead of re-issuing.
func (s *Service) Issue(ctx context.Context, p IssueParams) (*voucher.Envelope, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Ratio == 0 {
		p.Ratio = 1
	}
	secret, err := voucher.New(voucher.Params{
		ID:        p.ID,
		Issuer:    s.issuerID,
		Unit:      p.Unit,
		FaceValue: p.FaceValue,
		Expiry:    p.Expiry,
		Memo:      p.Memo,
		Backing:   p.Backing,
		Ratio:     p.Ratio,
		Decimals:  p.Decimals,
		Metadata:  p.Metadata,
	})
	if err != nil {
		return nil, &ValidationError{Reasons: []string{err.Error()}}
	}

	sig, err := sign.Sign(secret, s.issuerKey)
	if err != nil {
		return nil, errors.Wrap(err, "sign voucher")
	}
	env, err := voucher.NewEnvelope(secret, sig, sign.PublicKeyBytes(s.issuerKey))
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Publish(ctx, env, voucher.StatusIssued); err != nil {
		logger.Log.Errorf("voucher %s signed but not published: %v", secret.ID, err)
		return env, err
	}
	logger.Log.Infof("issued voucher %s: %d %s", secret.ID, secret.FaceValue, secret.Unit)
	return env, nil
}

// QueryStatus resolves the voucher's current status from whatever replicas
// answered.
func (s *Service) QueryStatus(ctx context.Context, id string) (*ledger.StatusRecord, error) {
	return s.ledger.Current(ctx, id)
}

// UpdateStatus moves the voucher through the state machine: ISSUED may go to
// any terminal state, terminal states only re-assert themselves (an
// idempotent no-op). Redemption additionally runs the issuer-binding check:
// this node redeems only vouchers it issued itself.
func (s *Service) UpdateStatus(ctx context.Context, id string, status voucher.Status) (*ledger.StatusRecord, error) {
	if !status.Valid() {
		return nil, &ValidationError{Reasons: []string{"unknown voucher status " + string(status)}}
	}
	cur, err := s.ledger.Current(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Status == status {
		return cur, nil
	}
	if !cur.Status.CanTransitionTo(status) {
		return nil, errors.Wrapf(ErrInvalidTransition, "%s -> %s", cur.Status, status)
	}
	if status == voucher.StatusRedeemed {
		if res := validate.ValidateWithIssuer(cur.Envelope, s.issuerID); !res.Valid {
			return nil, &ValidationError{Reasons: res.Errors}
		}
	}
	return s.ledger.UpdateStatus(ctx, id, status)
}

// Validate runs the full rule set against a submitted envelope.
func (s *Service) Validate(env *voucher.Envelope) validate.Result {
	return validate.Validate(env)
}

// Backup encrypts the wallet set under the node key and publishes it.
func (s *Service) Backup(ctx context.Context, envs []*voucher.Envelope) error {
	return s.backup.Backup(ctx, envs, s.issuerKey)
}

// Restore merges every recoverable backup batch into one wallet view.
func (s *Service) Restore(ctx context.Context) ([]*voucher.Envelope, error) {
	return s.backup.Restore(ctx, s.issuerKey)
}

// Exists cheaply reports whether any backups are addressed to the node key.
func (s *Service) Exists(ctx context.Context) (bool, error) {
	return s.backup.HasBackups(ctx, s.issuerKey)
}
