package webhook

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"deposit-reconciler-go/internal/database"
	"deposit-reconciler-go/internal/metrics"
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/policy"
	"deposit-reconciler-go/internal/reconciler"
	"deposit-reconciler-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blockCypherBody = `{"event":"confirmed-tx","address":"bc1qcustody","hash":"abc123","total":150000000,"confirmations":6,"confirmed":"2025-03-01T10:00:00Z"}`

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"txHash":"0x1"}`)
	good := Sign(body, "s3cret")

	assert.NoError(t, VerifySignature(body, good, "s3cret"))
	assert.NoError(t, VerifySignature(body, "", ""), "no secret configured")
	assert.NoError(t, VerifySignature(body, "garbage", ""), "no secret configured")

	assert.ErrorIs(t, VerifySignature(body, "", "s3cret"), ErrUnauthorized)
	assert.ErrorIs(t, VerifySignature(body, "sha256=zz", "s3cret"), ErrUnauthorized)
	assert.ErrorIs(t, VerifySignature(body, Sign(body, "other"), "s3cret"), ErrUnauthorized)
	assert.ErrorIs(t, VerifySignature([]byte(`{"txHash":"0x2"}`), good, "s3cret"), ErrUnauthorized)
}

func TestParseDetectsProvider(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		provider string
	}{
		{"blockcypher", blockCypherBody, "blockcypher"},
		{"alchemy top level", `{"activity":[{"hash":"0x1","toAddress":"0xa","value":1.5,"asset":"ETH","blockNum":"0x10"}]}`, "alchemy"},
		{"alchemy nested", `{"webhookId":"wh_1","event":{"activity":[{"hash":"0x1","toAddress":"0xa","value":2,"asset":"USDT"}]}}`, "alchemy"},
		{"generic numeric amount", `{"txHash":"0x1","toAddress":"0xa","amount":0.5}`, "generic"},
		{"generic string amount", `{"txHash":"0x1","toAddress":"0xa","amount":"0.5","cryptoType":"ETH"}`, "generic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.provider, Provider(p))
		})
	}
}

func TestParseRejectsUnknownShapes(t *testing.T) {
	for _, body := range []string{
		`not json`,
		`{}`,
		`{"foo":"bar"}`,
		`{"activity":[]}`,
		`{"txHash":"0x1","toAddress":"0xa","amount":0}`,
		`{"event":"tx","address":"bc1q"}`,
	} {
		p, err := Parse([]byte(body))
		assert.ErrorIs(t, err, ErrMalformedPayload, body)
		assert.Equal(t, "unknown", Provider(p))
	}
}

func TestNormalizeBlockCypher(t *testing.T) {
	p, err := Parse([]byte(blockCypherBody))
	require.NoError(t, err)

	transfers, err := NewNormalizer(nil).Normalize(p)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	got := transfers[0]
	assert.Equal(t, "abc123", got.TxHash)
	assert.Equal(t, "bc1qcustody", got.ToAddress)
	assert.Equal(t, models.AssetBTC, got.Asset)
	assert.Equal(t, 6, got.Confirmations)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1.5")), got.Amount.String())
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), got.ObservedAt)
}

func TestNormalizeAlchemySkipsUnsupportedAssets(t *testing.T) {
	body := `{"activity":[
		{"hash":"0x1","fromAddress":"0xf","toAddress":"0xa","value":1.25,"asset":"ETH","blockNum":"0x10"},
		{"hash":"0x2","fromAddress":"0xf","toAddress":"0xa","value":3,"asset":"MATIC","blockNum":"0x10"},
		{"hash":"0x3","fromAddress":"0xf","toAddress":"0xa","value":"40","asset":"USDT"}
	]}`
	p, err := Parse([]byte(body))
	require.NoError(t, err)

	transfers, err := NewNormalizer(policy.Default()).Normalize(p)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, models.AssetETH, transfers[0].Asset)
	assert.Equal(t, 12, transfers[0].Confirmations)
	assert.True(t, transfers[0].Amount.Equal(decimal.RequireFromString("1.25")))

	assert.Equal(t, models.AssetUSDT, transfers[1].Asset)
	assert.Equal(t, 0, transfers[1].Confirmations, "no block number yet")
}

func TestNormalizeGenericDefaults(t *testing.T) {
	n := NewNormalizer(nil)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	n.now = func() time.Time { return fixed }

	p, err := Parse([]byte(`{"txHash":"h1","toAddress":"bc1q","amount":"0.25"}`))
	require.NoError(t, err)
	transfers, err := n.Normalize(p)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, models.AssetBTC, transfers[0].Asset)
	assert.Equal(t, 0, transfers[0].Confirmations)
	assert.Equal(t, fixed, transfers[0].ObservedAt)

	p, err = Parse([]byte(`{"txHash":"h2","toAddress":"0xa","amount":7,"cryptoType":"usdt","confirmations":20,"timestamp":1700000000}`))
	require.NoError(t, err)
	transfers, err = n.Normalize(p)
	require.NoError(t, err)
	assert.Equal(t, models.AssetUSDT, transfers[0].Asset)
	assert.Equal(t, 20, transfers[0].Confirmations)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), transfers[0].ObservedAt)

	p, err = Parse([]byte(`{"txHash":"h3","toAddress":"0xa","amount":7,"cryptoType":"DOGE"}`))
	require.NoError(t, err)
	_, err = n.Normalize(p)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestNormalizeAlchemySkipsZeroValue(t *testing.T) {
	body := `{"activity":[
		{"hash":"0xzero","toAddress":"0xa","value":0,"asset":"ETH","blockNum":"0x10"},
		{"hash":"0xnull","toAddress":"0xa","value":null,"asset":"ETH","blockNum":"0x10"},
		{"hash":"0xreal","toAddress":"0xa","value":1,"asset":"ETH","blockNum":"0x10"}
	]}`
	p, err := Parse([]byte(body))
	require.NoError(t, err)

	transfers, err := NewNormalizer(nil).Normalize(p)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0xreal", transfers[0].TxHash)
}

func TestNormalizeGenericTimestamps(t *testing.T) {
	n := NewNormalizer(nil)
	normalize := func(ts string) (models.ExternalTransfer, error) {
		p, err := Parse([]byte(`{"txHash":"h","toAddress":"bc1q","amount":"1","timestamp":` + ts + `}`))
		require.NoError(t, err)
		transfers, err := n.Normalize(p)
		if err != nil {
			return models.ExternalTransfer{}, err
		}
		return transfers[0], nil
	}

	got, err := normalize("1700000000.5")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 500000000).UTC(), got.ObservedAt)

	got, err = normalize("1700000000123")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 123000000).UTC(), got.ObservedAt.Round(time.Millisecond))

	for _, bad := range []string{"-5", "1e300"} {
		_, err = normalize(bad)
		assert.ErrorIs(t, err, ErrMalformedPayload, bad)
	}
}

type stubReconciler struct {
	seen    []models.ExternalTransfer
	result  models.Outcome
	err     error
	invalid map[string]bool
}

func (s *stubReconciler) Reconcile(_ context.Context, t models.ExternalTransfer) (*models.ReconcileResult, error) {
	s.seen = append(s.seen, t)
	if s.err != nil {
		return nil, s.err
	}
	if s.invalid[t.TxHash] {
		return nil, fmt.Errorf("%w: rejected %s", reconciler.ErrInvalidTransfer, t.TxHash)
	}
	return &models.ReconcileResult{Outcome: s.result, TxHash: t.TxHash, Asset: t.Asset, Amount: t.Amount}, nil
}

func TestIngest(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	stub := &stubReconciler{result: models.OutcomeMatched}
	ingestor := NewIngestor(stub, NewNormalizer(nil), "s3cret", m)
	body := []byte(blockCypherBody)

	results, err := ingestor.Ingest(context.Background(), body, Sign(body, "s3cret"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.OutcomeMatched, results[0].Outcome)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("ok")))

	_, err = ingestor.Ingest(context.Background(), body, "")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Len(t, stub.seen, 1, "unauthorized delivery never reaches the reconciler")

	junk := []byte(`{"hello":"world"}`)
	_, err = ingestor.Ingest(context.Background(), junk, Sign(junk, "s3cret"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("malformed")))
}

func TestIngestMapsInvalidTransferToMalformed(t *testing.T) {
	stub := &stubReconciler{err: errors.Join(reconciler.ErrInvalidTransfer, errors.New("non-positive amount"))}
	ingestor := NewIngestor(stub, NewNormalizer(nil), "", nil)

	body := []byte(`{"txHash":"h","toAddress":"0xa","amount":"-1","cryptoType":"ETH"}`)
	_, err := ingestor.Ingest(context.Background(), body, "")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestIngestSkipsInvalidTransferAndContinues(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	stub := &stubReconciler{result: models.OutcomeUnmatched, invalid: map[string]bool{"0xbad": true}}
	ingestor := NewIngestor(stub, NewNormalizer(nil), "", m)

	body := []byte(`{"activity":[
		{"hash":"0xbad","toAddress":"0xa","value":2,"asset":"ETH","blockNum":"0x10"},
		{"hash":"0xgood","toAddress":"0xa","value":1,"asset":"ETH","blockNum":"0x10"}
	]}`)
	results, err := ingestor.Ingest(context.Background(), body, "")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "0xgood", results[0].TxHash)
	assert.Len(t, stub.seen, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WebhookRequests.WithLabelValues("ok")))
}

func TestIngestAlchemyZeroValueDoesNotBlockCredit(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "webhook.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	const custody = "0xc0ffee0000000000000000000000000000000001"
	_, err = db.CreateClaim(ctx, store.CreateClaimParams{
		UserId:         "user-1",
		Asset:          models.AssetETH,
		ClaimedAmount:  decimal.NewFromInt(1),
		CustodyAddress: custody,
		CreatedAt:      time.Now().UTC(),
	})
	require.NoError(t, err)

	r, err := reconciler.New(reconciler.Config{Store: db, Policy: policy.Default()})
	require.NoError(t, err)
	ingestor := NewIngestor(r, NewNormalizer(nil), "", nil)

	body := []byte(`{"activity":[
		{"hash":"0xzero","toAddress":"` + custody + `","value":0,"asset":"ETH","blockNum":"0x10"},
		{"hash":"0xreal","toAddress":"` + custody + `","value":1,"asset":"ETH","blockNum":"0x10"},
		{"hash":"0xstray","toAddress":"` + custody + `","value":7,"asset":"ETH","blockNum":"0x10"}
	]}`)
	results, err := ingestor.Ingest(ctx, body, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.OutcomeMatched, results[0].Outcome)
	assert.Equal(t, models.OutcomeUnmatched, results[1].Outcome)

	balance, err := db.GetUserBalance(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(1)), balance.Balance.String())

	orphans, err := db.ListOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.NotNil(t, orphans[0].TxHash)
	assert.Equal(t, "0xstray", *orphans[0].TxHash)
}

func TestIngestPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("database is closed")
	ingestor := NewIngestor(&stubReconciler{err: boom}, NewNormalizer(nil), "", nil)

	_, err := ingestor.Ingest(context.Background(), []byte(blockCypherBody), "")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMalformedPayload)
}
