package chain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	btcDecimals = 8
	ethDecimals = 18
)

// ToWholeUnits converts an integer amount of base units (satoshis, wei, token units) to whole coins.
func ToWholeUnits(raw string, decimals int32) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid base unit amount %q: %w", raw, err)
	}
	if !value.Equal(value.Truncate(0)) {
		return decimal.Zero, fmt.Errorf("base unit amount %q is not an integer", raw)
	}
	return value.Shift(-decimals), nil
}

func satoshisToBTC(sats int64) decimal.Decimal {
	return decimal.New(sats, -btcDecimals)
}
