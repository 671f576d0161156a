package listener

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"deposit-reconciler-go/internal/chain"
	"deposit-reconciler-go/internal/lock"
	"deposit-reconciler-go/internal/metrics"
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairStore struct {
	store.LedgerStore
	pairs []models.WatchPair
	err   error
}

func (s *pairStore) ListPendingPairs(context.Context) ([]models.WatchPair, error) {
	return s.pairs, s.err
}

// fakeReader returns one transfer per address, or blocks until the context
// expires for addresses listed in hang.
type fakeReader struct {
	hang map[string]bool
	fail map[string]bool
}

func (r *fakeReader) FetchTransfers(ctx context.Context, address string, asset models.Asset) ([]models.ExternalTransfer, error) {
	if r.hang[address] {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", chain.ErrUpstreamUnavailable, ctx.Err())
	}
	if r.fail[address] {
		return nil, fmt.Errorf("%w: status 503", chain.ErrUpstreamUnavailable)
	}
	return []models.ExternalTransfer{{
		TxHash:        "tx-" + address,
		ToAddress:     address,
		Amount:        decimal.NewFromInt(1),
		Confirmations: 20,
		Asset:         asset,
	}}, nil
}

type countingReconciler struct {
	mu   sync.Mutex
	seen []string
	err  error
}

func (c *countingReconciler) Reconcile(_ context.Context, t models.ExternalTransfer) (*models.ReconcileResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.seen = append(c.seen, t.TxHash)
	return &models.ReconcileResult{Outcome: models.OutcomeMatched, TxHash: t.TxHash}, nil
}

func pairs(n int) []models.WatchPair {
	out := make([]models.WatchPair, n)
	for i := range out {
		out[i] = models.WatchPair{Address: fmt.Sprintf("addr-%d", i), Asset: models.AssetETH}
	}
	return out
}

func newListener(t *testing.T, cfg DepositListenerConfig) *DepositListener {
	t.Helper()
	l, err := NewDepositListener(cfg)
	require.NoError(t, err)
	return l
}

func TestSweepAllIsolatesSlowPair(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	rec := &countingReconciler{}
	l := newListener(t, DepositListenerConfig{
		Store:          &pairStore{pairs: pairs(5)},
		Reader:         &fakeReader{hang: map[string]bool{"addr-2": true}},
		Reconciler:     rec,
		Metrics:        m,
		MaxConcurrency: 2,
		PairTimeout:    50 * time.Millisecond,
	})

	report, err := l.SweepAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Pairs, 5)
	assert.Equal(t, 4, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Len(t, rec.seen, 4)

	for _, pr := range report.Pairs {
		if pr.Address == "addr-2" {
			assert.False(t, pr.Success)
			assert.NotEmpty(t, pr.Error)
		} else {
			assert.True(t, pr.Success, pr.Address)
			assert.Equal(t, 1, pr.Outcomes[models.OutcomeMatched])
		}
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamErrors.WithLabelValues("ETH")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SweepPairs.WithLabelValues("succeeded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SweepPairs.WithLabelValues("failed")))
}

func TestSweepPairSkipsWhenLocked(t *testing.T) {
	locker := lock.NewMemoryLocker()
	rec := &countingReconciler{}
	l := newListener(t, DepositListenerConfig{
		Store:      &pairStore{},
		Reader:     &fakeReader{},
		Reconciler: rec,
		Locker:     locker,
	})

	pair := models.WatchPair{Address: "addr-0", Asset: models.AssetBTC}
	unlock, ok, err := locker.TryLock(context.Background(), pair.Key())
	require.NoError(t, err)
	require.True(t, ok)

	result := l.SweepPair(context.Background(), pair)
	assert.True(t, result.Skipped)
	assert.False(t, result.Success)
	assert.Empty(t, rec.seen)

	unlock()
	result = l.SweepPair(context.Background(), pair)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.Transfers)
}

func TestSweepPairReportsReconcileFailure(t *testing.T) {
	l := newListener(t, DepositListenerConfig{
		Store:      &pairStore{},
		Reader:     &fakeReader{},
		Reconciler: &countingReconciler{err: errors.New("database is locked")},
	})

	result := l.SweepPair(context.Background(), models.WatchPair{Address: "addr-0", Asset: models.AssetUSDT})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "database is locked")
}

func TestSweepAllUpstreamFailureKeepsGoing(t *testing.T) {
	rec := &countingReconciler{}
	l := newListener(t, DepositListenerConfig{
		Store:      &pairStore{pairs: pairs(3)},
		Reader:     &fakeReader{fail: map[string]bool{"addr-0": true, "addr-1": true}},
		Reconciler: rec,
	})

	report, err := l.SweepAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, []string{"tx-addr-2"}, rec.seen)
}

func TestSweepAllStoreError(t *testing.T) {
	l := newListener(t, DepositListenerConfig{
		Store:      &pairStore{err: errors.New("no such table: deposits")},
		Reader:     &fakeReader{},
		Reconciler: &countingReconciler{},
	})

	_, err := l.SweepAll(context.Background())
	assert.Error(t, err)
}

func TestSweepAllWithNoPairs(t *testing.T) {
	l := newListener(t, DepositListenerConfig{
		Store:      &pairStore{},
		Reader:     &fakeReader{},
		Reconciler: &countingReconciler{},
	})

	report, err := l.SweepAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Pairs)
}

func TestStartAndStop(t *testing.T) {
	l := newListener(t, DepositListenerConfig{
		Store:      &pairStore{},
		Reader:     &fakeReader{},
		Reconciler: &countingReconciler{},
		Schedule:   "@every 1h",
	})

	require.NoError(t, l.Start(context.Background()))
	assert.Error(t, l.Start(context.Background()), "second start")
	l.Stop()
	l.Stop()

	bad := newListener(t, DepositListenerConfig{
		Store:      &pairStore{},
		Reader:     &fakeReader{},
		Reconciler: &countingReconciler{},
		Schedule:   "every now and then",
	})
	assert.Error(t, bad.Start(context.Background()))
}

func TestNewDepositListenerRequiresCollaborators(t *testing.T) {
	_, err := NewDepositListener(DepositListenerConfig{})
	assert.Error(t, err)
}
