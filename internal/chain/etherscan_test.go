package chain

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"deposit-reconciler-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const evmCustody = "0xAbC0000000000000000000000000000000000001"

const txlistBody = `{"status":"1","message":"OK","result":[
  {"hash":"0xin","from":"0xsender","to":"0xabc0000000000000000000000000000000000001","value":"1500000000000000000","confirmations":"15","timeStamp":"1700000000","isError":"0"},
  {"hash":"0xfailed","from":"0xsender","to":"0xabc0000000000000000000000000000000000001","value":"1000","confirmations":"15","timeStamp":"1700000000","isError":"1"},
  {"hash":"0xout","from":"0xabc0000000000000000000000000000000000001","to":"0xother","value":"1000","confirmations":"15","timeStamp":"1700000000","isError":"0"},
  {"hash":"0xzero","from":"0xsender","to":"0xabc0000000000000000000000000000000000001","value":"0","confirmations":"15","timeStamp":"1700000000","isError":"0"}
]}`

const tokentxBody = `{"status":"1","message":"OK","result":[
  {"hash":"0xusdt","from":"0xsender","to":"0xabc0000000000000000000000000000000000001","value":"100000000","tokenDecimal":"6","contractAddress":"0xdac17f958d2ee523a2206206994597c13d831ec7","confirmations":"4","timeStamp":"1700000100"},
  {"hash":"0xfake","from":"0xsender","to":"0xabc0000000000000000000000000000000000001","value":"100000000","tokenDecimal":"6","contractAddress":"0xbad","confirmations":"4","timeStamp":"1700000100"}
]}`

func newEtherscanServer(t *testing.T, bodies map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "account", q.Get("module"))
		assert.Equal(t, evmCustody, q.Get("address"))
		assert.Equal(t, "test-key", q.Get("apikey"))
		if q.Get("action") == "tokentx" {
			assert.Equal(t, USDTMainnetContract, q.Get("contractaddress"))
		}
		body, ok := bodies[q.Get("action")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = fmt.Fprint(w, body)
	}))
}

func TestEtherscanReaderETH(t *testing.T) {
	server := newEtherscanServer(t, map[string]string{"txlist": txlistBody})
	defer server.Close()

	reader := NewEtherscanReader(EtherscanConfig{BaseURL: server.URL, ApiKey: "test-key", Client: server.Client()})
	transfers, err := reader.FetchTransfers(context.Background(), evmCustody, models.AssetETH)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	assert.Equal(t, "0xin", transfers[0].TxHash)
	assert.True(t, transfers[0].Amount.Equal(decimal.RequireFromString("1.5")))
	assert.Equal(t, 15, transfers[0].Confirmations)
	assert.Equal(t, "0xsender", transfers[0].FromAddress)
	assert.Equal(t, models.AssetETH, transfers[0].Asset)
}

func TestEtherscanReaderUSDT(t *testing.T) {
	server := newEtherscanServer(t, map[string]string{"tokentx": tokentxBody})
	defer server.Close()

	reader := NewEtherscanReader(EtherscanConfig{BaseURL: server.URL, ApiKey: "test-key", Client: server.Client()})
	transfers, err := reader.FetchTransfers(context.Background(), evmCustody, models.AssetUSDT)
	require.NoError(t, err)
	require.Len(t, transfers, 1)

	assert.Equal(t, "0xusdt", transfers[0].TxHash)
	assert.True(t, transfers[0].Amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 4, transfers[0].Confirmations)
}

func TestEtherscanReaderEnvelopeStatus(t *testing.T) {
	server := newEtherscanServer(t, map[string]string{
		"txlist":  `{"status":"0","message":"No transactions found","result":[]}`,
		"tokentx": `{"status":"0","message":"NOTOK","result":"Max rate limit reached"}`,
	})
	defer server.Close()

	reader := NewEtherscanReader(EtherscanConfig{BaseURL: server.URL, ApiKey: "test-key", Client: server.Client()})

	transfers, err := reader.FetchTransfers(context.Background(), evmCustody, models.AssetETH)
	require.NoError(t, err)
	assert.Empty(t, transfers)

	transfers, err = reader.FetchTransfers(context.Background(), evmCustody, models.AssetUSDT)
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Nil(t, transfers)

	_, err = reader.FetchTransfers(context.Background(), evmCustody, models.AssetBTC)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
}
