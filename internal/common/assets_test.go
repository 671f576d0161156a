package common

import (
	"os"
	"path/filepath"
	"testing"

	"deposit-reconciler-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetConfig(t *testing.T) {
	data := []byte(`
assets:
  - symbol: btc
    confirmations: 1
  - symbol: ETH
    source: prime
  - symbol: USDT
    source: etherscan
    contract: "0x7169D38820dfd117C3FA1f22a697dBA58d90BA06"
`)
	assets, err := ParseAssetConfig(data)
	require.NoError(t, err)
	require.Len(t, assets, 3)

	assert.Equal(t, "BTC", assets[0].Symbol)
	assert.Equal(t, SourceEsplora, assets[0].Source)
	assert.Equal(t, SourcePrime, assets[1].Source)
	assert.Equal(t, "0x7169D38820dfd117C3FA1f22a697dBA58d90BA06", assets[2].Contract)

	assert.Equal(t, map[models.Asset]int{models.AssetBTC: 1}, ConfirmationOverrides(assets))
}

func TestParseAssetConfigRejectsBadEntries(t *testing.T) {
	for _, data := range []string{
		"assets:\n  - symbol: DOGE\n",
		"assets:\n  - symbol: BTC\n    source: etherscan\n",
		"assets:\n  - symbol: ETH\n    source: esplora\n",
		"assets:\n  - symbol: ETH\n    source: infura\n",
		"assets:\n  - symbol: ETH\n  - symbol: eth\n",
		"assets:\n  - symbol: BTC\n    confirmations: -1\n",
		"assets: [",
	} {
		_, err := ParseAssetConfig([]byte(data))
		assert.Error(t, err, data)
	}
}

func TestLoadAssetConfig(t *testing.T) {
	assets, err := LoadAssetConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultAssetConfig(), assets)

	path := filepath.Join(t.TempDir(), "assets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("assets:\n  - symbol: BTC\n"), 0o600))
	assets, err = LoadAssetConfig(path)
	require.NoError(t, err)
	assert.Len(t, assets, 1)

	_, err = LoadAssetConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
