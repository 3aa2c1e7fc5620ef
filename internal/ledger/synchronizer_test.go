package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voucher-node/internal/sign"
	"voucher-node/internal/transport"
	"voucher-node/internal/voucher"
)

func signedEnvelope(t *testing.T, id string) *voucher.Envelope {
	t.Helper()
	secret, err := voucher.New(voucher.Params{
		ID:        id,
		Issuer:    "issuer-a",
		Unit:      "sat",
		FaceValue: 10000,
		Backing:   voucher.StrategyMinimal,
		Ratio:     1,
	})
	require.NoError(t, err)
	priv, err := sign.GenerateKey()
	require.NoError(t, err)
	sig, err := sign.Sign(secret, priv)
	require.NoError(t, err)
	env, err := voucher.NewEnvelope(secret, sig, sign.PublicKeyBytes(priv))
	require.NoError(t, err)
	return env
}

func newSync(t *testing.T, replicas int) (*Synchronizer, []*transport.MemoryEndpoint) {
	t.Helper()
	eps := make([]*transport.MemoryEndpoint, replicas)
	poolEps := make([]transport.Endpoint, replicas)
	for i := range eps {
		eps[i] = transport.NewMemoryEndpoint("mem")
		poolEps[i] = eps[i]
	}
	return NewSynchronizer(transport.NewPool(time.Second, poolEps...)), eps
}

func TestPublishAndCurrent(t *testing.T) {
	s, _ := newSync(t, 3)
	env := signedEnvelope(t, "led-1")
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, env, voucher.StatusIssued))

	cur, err := s.Current(ctx, "led-1")
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusIssued, cur.Status)
	assert.Equal(t, env.Secret.ID, cur.Envelope.Secret.ID)
	assert.Equal(t, env.Signature, cur.Envelope.Signature)
}

func TestCurrentNotFound(t *testing.T) {
	s, _ := newSync(t, 2)
	_, err := s.Current(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLastWriteWins(t *testing.T) {
	s, _ := newSync(t, 1)
	env := signedEnvelope(t, "led-lww")
	ctx := context.Background()

	// Physically store the newer record first: arrival order must not matter.
	require.NoError(t, s.publishAt(ctx, env, voucher.StatusRedeemed, 200))
	require.NoError(t, s.publishAt(ctx, env, voucher.StatusIssued, 100))

	cur, err := s.Current(ctx, "led-lww")
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRedeemed, cur.Status)
	assert.Equal(t, int64(200), cur.UpdatedAt)
}

func TestLastWriteWinsAcrossDivergentReplicas(t *testing.T) {
	// Two replicas that never saw each other's write.
	epOld := transport.NewMemoryEndpoint("old")
	epNew := transport.NewMemoryEndpoint("new")
	env := signedEnvelope(t, "led-div")
	ctx := context.Background()

	oldSync := NewSynchronizer(transport.NewPool(time.Second, epOld))
	newSync := NewSynchronizer(transport.NewPool(time.Second, epNew))
	require.NoError(t, oldSync.publishAt(ctx, env, voucher.StatusIssued, 100))
	require.NoError(t, newSync.publishAt(ctx, env, voucher.StatusRevoked, 150))

	merged := NewSynchronizer(transport.NewPool(time.Second, epOld, epNew))
	cur, err := merged.Current(ctx, "led-div")
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRevoked, cur.Status)

	// A reader that only reaches one replica still gets a deterministic
	// answer from that subset.
	cur, err = oldSync.Current(ctx, "led-div")
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusIssued, cur.Status)
}

func TestUpdateStatusSupersedesWhatItRead(t *testing.T) {
	s, _ := newSync(t, 2)
	env := signedEnvelope(t, "led-upd")
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, env, voucher.StatusIssued))

	// Same wall-clock second as the publish: the update must still win.
	rec, err := s.UpdateStatus(ctx, "led-upd", voucher.StatusRedeemed)
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRedeemed, rec.Status)

	cur, err := s.Current(ctx, "led-upd")
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusRedeemed, cur.Status)
	assert.Greater(t, cur.UpdatedAt, int64(0))
}

func TestUpdateStatusIsIdempotent(t *testing.T) {
	s, _ := newSync(t, 1)
	env := signedEnvelope(t, "led-idem")
	ctx := context.Background()

	require.NoError(t, s.Publish(ctx, env, voucher.StatusIssued))
	first, err := s.UpdateStatus(ctx, "led-idem", voucher.StatusRedeemed)
	require.NoError(t, err)

	second, err := s.UpdateStatus(ctx, "led-idem", voucher.StatusRedeemed)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestUpdateStatusUnknownVoucher(t *testing.T) {
	s, _ := newSync(t, 1)
	_, err := s.UpdateStatus(context.Background(), "ghost", voucher.StatusRevoked)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCurrentSkipsCorruptWinner(t *testing.T) {
	ep := transport.NewMemoryEndpoint("mem")
	pool := transport.NewPool(time.Second, ep)
	s := NewSynchronizer(pool)
	env := signedEnvelope(t, "led-corrupt")
	ctx := context.Background()

	require.NoError(t, s.publishAt(ctx, env, voucher.StatusIssued, 100))
	// A newer record with garbage content must not take the ledger down.
	garbage := transport.NewRecord(transport.KindLedger, LogicalKey("led-corrupt"), "", 200, nil, []byte{0xde, 0xad})
	_, err := pool.Publish(ctx, garbage)
	require.NoError(t, err)

	cur, err := s.Current(ctx, "led-corrupt")
	require.NoError(t, err)
	assert.Equal(t, voucher.StatusIssued, cur.Status)
}

func TestLedgerRecordTags(t *testing.T) {
	ep := transport.NewMemoryEndpoint("mem")
	s := NewSynchronizer(transport.NewPool(time.Second, ep))
	env := signedEnvelope(t, "led-tags")
	ctx := context.Background()

	require.NoError(t, s.publishAt(ctx, env, voucher.StatusIssued, 100))
	recs, err := ep.Query(ctx, transport.Selector{Keys: []string{LogicalKey("led-tags")}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "ISSUED", recs[0].Tags["status"])
	assert.Equal(t, "10000", recs[0].Tags["amount"])
	assert.Equal(t, "sat", recs[0].Tags["unit"])
	_, hasExpiry := recs[0].Tags["expiry"]
	assert.False(t, hasExpiry)
}
