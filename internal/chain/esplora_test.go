package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deposit-reconciler-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const btcCustody = "bc1qcustodyaddress"

const esploraTxs = `[
  {
    "txid": "confirmed-tx",
    "vin": [{"prevout": {"scriptpubkey_address": "bc1qsender", "value": 200000000}}],
    "vout": [
      {"scriptpubkey_address": "bc1qcustodyaddress", "value": 150000000},
      {"scriptpubkey_address": "bc1qchange", "value": 49990000}
    ],
    "status": {"confirmed": true, "block_height": 100, "block_time": 1700000000}
  },
  {
    "txid": "mempool-tx",
    "vin": [{"prevout": null}],
    "vout": [{"scriptpubkey_address": "bc1qcustodyaddress", "value": 2500}],
    "status": {"confirmed": false}
  },
  {
    "txid": "outgoing-tx",
    "vin": [{"prevout": {"scriptpubkey_address": "bc1qcustodyaddress", "value": 10000}}],
    "vout": [{"scriptpubkey_address": "bc1qsomeoneelse", "value": 9000}],
    "status": {"confirmed": true, "block_height": 90, "block_time": 1690000000}
  }
]`

func TestEsploraReaderFetchTransfers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/address/" + btcCustody + "/txs":
			_, _ = fmt.Fprint(w, esploraTxs)
		case "/blocks/tip/height":
			_, _ = fmt.Fprint(w, "102")
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	reader := NewEsploraReader(server.URL+"/", server.Client(), 0)
	transfers, err := reader.FetchTransfers(context.Background(), btcCustody, models.AssetBTC)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	confirmed := transfers[0]
	assert.Equal(t, "confirmed-tx", confirmed.TxHash)
	assert.True(t, confirmed.Amount.Equal(decimal.RequireFromString("1.5")), confirmed.Amount.String())
	assert.Equal(t, 3, confirmed.Confirmations)
	assert.Equal(t, "bc1qsender", confirmed.FromAddress)
	assert.Equal(t, btcCustody, confirmed.ToAddress)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), confirmed.ObservedAt)

	pending := transfers[1]
	assert.Equal(t, "mempool-tx", pending.TxHash)
	assert.Equal(t, 0, pending.Confirmations)
	assert.True(t, pending.Amount.Equal(decimal.RequireFromString("0.000025")))
	assert.Empty(t, pending.FromAddress)
}

func TestEsploraReaderUpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}},
		{"malformed body", func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, "<html>rate limited</html>")
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := server.Client()
			client.Timeout = 100 * time.Millisecond

			reader := NewEsploraReader(server.URL, client, 0)
			transfers, err := reader.FetchTransfers(context.Background(), btcCustody, models.AssetBTC)
			assert.ErrorIs(t, err, ErrUpstreamUnavailable)
			assert.Nil(t, transfers)
		})
	}
}

func TestEsploraReaderRejectsOtherAssets(t *testing.T) {
	reader := NewEsploraReader("http://unused", nil, 0)
	_, err := reader.FetchTransfers(context.Background(), btcCustody, models.AssetETH)
	assert.Error(t, err)
}
