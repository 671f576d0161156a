package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"deposit-reconciler-go/internal/models"

	"gopkg.in/yaml.v2"
)

const (
	SourceEsplora   = "esplora"
	SourceEtherscan = "etherscan"
	SourcePrime     = "prime"
)

// AssetConfig overrides how one asset is observed. Empty fields keep the defaults.
type AssetConfig struct {
	Symbol        string `yaml:"symbol"`
	Source        string `yaml:"source"`
	BaseURL       string `yaml:"base_url"`
	Confirmations *int   `yaml:"confirmations"`
	Contract      string `yaml:"contract"`
}

type AssetsConfig struct {
	Assets []AssetConfig `yaml:"assets"`
}

// DefaultAssetConfig observes BTC on Esplora and ETH/USDT on Etherscan.
func DefaultAssetConfig() []AssetConfig {
	return []AssetConfig{
		{Symbol: string(models.AssetBTC), Source: SourceEsplora},
		{Symbol: string(models.AssetETH), Source: SourceEtherscan},
		{Symbol: string(models.AssetUSDT), Source: SourceEtherscan},
	}
}

func LoadAssetConfig(assetsFile string) ([]AssetConfig, error) {
	if assetsFile == "" {
		return DefaultAssetConfig(), nil
	}

	var assetsPath string
	if filepath.IsAbs(assetsFile) {
		assetsPath = assetsFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		assetsPath = filepath.Join(wd, assetsFile)
	}

	data, err := os.ReadFile(assetsPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", assetsFile, err)
	}

	return ParseAssetConfig(data)
}

func ParseAssetConfig(data []byte) ([]AssetConfig, error) {
	var config AssetsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse assets config: %w", err)
	}

	seen := make(map[models.Asset]bool)
	for i, asset := range config.Assets {
		parsed, err := models.ParseAsset(asset.Symbol)
		if err != nil {
			return nil, fmt.Errorf("asset at index %d: %w", i, err)
		}
		if seen[parsed] {
			return nil, fmt.Errorf("asset %s configured twice", parsed)
		}
		seen[parsed] = true
		config.Assets[i].Symbol = string(parsed)

		source := strings.ToLower(asset.Source)
		switch {
		case source == "":
			source = defaultSource(parsed)
		case source == SourceEsplora && parsed != models.AssetBTC,
			source == SourceEtherscan && !parsed.IsEVM(),
			source != SourceEsplora && source != SourceEtherscan && source != SourcePrime:
			return nil, fmt.Errorf("asset %s cannot use source %q", parsed, asset.Source)
		}
		config.Assets[i].Source = source

		if asset.Confirmations != nil && *asset.Confirmations < 0 {
			return nil, fmt.Errorf("asset %s has negative confirmations", parsed)
		}
	}

	return config.Assets, nil
}

// ConfirmationOverrides collects the per-asset confirmation depths set in the file.
func ConfirmationOverrides(assets []AssetConfig) map[models.Asset]int {
	overrides := make(map[models.Asset]int)
	for _, a := range assets {
		if a.Confirmations != nil {
			overrides[models.Asset(a.Symbol)] = *a.Confirmations
		}
	}
	return overrides
}

func defaultSource(asset models.Asset) string {
	if asset == models.AssetBTC {
		return SourceEsplora
	}
	return SourceEtherscan
}
