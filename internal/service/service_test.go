package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voucher-node/internal/sign"
	"voucher-node/internal/transport"
	"voucher-node/internal/validate"
	"voucher-node/internal/voucher"
)

func newTestService(t *testing.T, issuerID string, pool transport.Publisher) *Service {
	t.Helper()
	key, err := sign.GenerateKey()
	require.NoError(t, err)
	return New(issuerID, key, pool)
}

func newPool(replicas int) *transport.Pool {
	eps := make([]transport.Endpoint, replicas)
	for i := range eps {
		eps[i] = transport.NewMemoryEndpoint("mem")
	}
	return transport.NewPool(time.Second, eps...)
}

// The issue-redeem walk-through: sign, publish, query, transition, repeat.
func TestIssueRedeemLifecycle(t *testing.T) {
	svc := newTestService(t, "model-b", newPool(3))
	ctx := context.Background()

	env, err := svc.Issue(ctx, IssueParams{
		Unit:      "sat",
		FaceValue: 10000,
		Backing:   voucher.StrategyMinimal,
	})
	require.NoError(t, err)
	require.NotNil(t, env)
	assert.Equal(t, "model-b", env.Secret.Issuer)
	assert.NotEmpty(t, env.Secret.ID)
	assert.True(t, validate.CheckSignature(env))

	rec, err := svc.QueryStatus(ctx, env.Secret.ID)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusIssued, rec.Status)

	rec, err = svc.UpdateStatus(ctx, env.Secret.ID, voucher.StatusRedeemed)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRedeemed, rec.Status)

	// Redeeming again is idempotent: still REDEEMED, no error.
	rec, err = svc.UpdateStatus(ctx, env.Secret.ID, voucher.StatusRedeemed)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRedeemed, rec.Status)

	// But a terminal state will not move to a different terminal state.
	_, err = svc.UpdateStatus(ctx, env.Secret.ID, voucher.StatusRevoked)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestIssueRejectsStructurallyInvalidInput(t *testing.T) {
	svc := newTestService(t, "model-b", newPool(1))
	ctx := context.Background()

	var verr *ValidationError

	_, err := svc.Issue(ctx, IssueParams{Unit: "sat", FaceValue: 0, Backing: voucher.StrategyFixed})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Issue(ctx, IssueParams{Unit: "", FaceValue: 1, Backing: voucher.StrategyFixed})
	require.ErrorAs(t, err, &verr)

	_, err = svc.Issue(ctx, IssueParams{Unit: "sat", FaceValue: 1, Backing: "SOMETIMES"})
	require.ErrorAs(t, err, &verr)
}

func TestQueryStatusNotFound(t *testing.T) {
	svc := newTestService(t, "model-b", newPool(1))
	_, err := svc.QueryStatus(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedeemEnforcesIssuerBinding(t *testing.T) {
	pool := newPool(2)
	modelB := newTestService(t, "model-b", pool)
	foreign := newTestService(t, "issuer-x", pool)
	ctx := context.Background()

	env, err := foreign.Issue(ctx, IssueParams{
		Unit:      "sat",
		FaceValue: 42,
		Backing:   voucher.StrategyFixed,
	})
	require.NoError(t, err)

	// model-b can see the foreign voucher...
	rec, err := modelB.QueryStatus(ctx, env.Secret.ID)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusIssued, rec.Status)

	// ...but refuses to redeem paper it did not issue, naming both parties.
	var verr *ValidationError
	_, err = modelB.UpdateStatus(ctx, env.Secret.ID, voucher.StatusRedeemed)
	require.ErrorAs(t, err, &verr)
	joined := ""
	for _, r := range verr.Reasons {
		joined += r + "\n"
	}
	assert.Contains(t, joined, "issuer-x")
	assert.Contains(t, joined, "model-b")

	// Revocation is not redemption; the issuer binding does not apply.
	rec, err = modelB.UpdateStatus(ctx, env.Secret.ID, voucher.StatusRevoked)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRevoked, rec.Status)
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	svc := newTestService(t, "model-b", newPool(1))
	var verr *ValidationError
	_, err := svc.UpdateStatus(context.Background(), "whatever", "SHREDDED")
	assert.ErrorAs(t, err, &verr)
}

func TestExpireThroughNormalPath(t *testing.T) {
	svc := newTestService(t, "model-b", newPool(1))
	ctx := context.Background()

	env, err := svc.Issue(ctx, IssueParams{
		Unit:      "sat",
		FaceValue: 7,
		Backing:   voucher.StrategyProportional,
		Expiry:    time.Now().Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)
	assert.False(t, validate.CheckExpiry(env))

	rec, err := svc.UpdateStatus(ctx, env.Secret.ID, voucher.StatusExpired)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusExpired, rec.Status)
}

func TestBackupRestoreExists(t *testing.T) {
	svc := newTestService(t, "model-b", newPool(2))
	ctx := context.Background()

	exists, err := svc.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	var wallet []*voucher.Envelope
	for _, unit := range []string{"sat", "eur"} {
		env, err := svc.Issue(ctx, IssueParams{
			Unit:      unit,
			FaceValue: 100,
			Backing:   voucher.StrategyMinimal,
		})
		require.NoError(t, err)
		wallet = append(wallet, env)
	}

	require.NoError(t, svc.Backup(ctx, wallet))

	exists, err = svc.Exists(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	restored, err := svc.Restore(ctx)
	require.NoError(t, err)
	require.Len(t, restored, 2)
	for _, env := range restored {
		assert.True(t, validate.CheckSignature(env))
	}
}

func TestIssueReturnsEnvelopeOnTransportFailure(t *testing.T) {
	// A pool with no endpoints: signing succeeds, replication cannot.
	svc := newTestService(t, "model-b", transport.NewPool(time.Second))
	env, err := svc.Issue(context.Background(), IssueParams{
		Unit:      "sat",
		FaceValue: 1,
		Backing:   voucher.StrategyFixed,
	})
	assert.Error(t, err)
	require.NotNil(t, env)
	assert.True(t, validate.CheckSignature(env))
}
