// Package policy decides when an observed transfer is final and how far an
// observed amount may drift from a claimed one.
package policy

import (
	"fmt"

	"deposit-reconciler-go/internal/models"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the accepted relative difference between observed and claimed amounts.
var DefaultTolerance = decimal.RequireFromString("0.05")

// ToleranceBasis names the amount the tolerance band is measured against.
type ToleranceBasis string

const (
	// BasisTransfer accepts claims within tolerance of the observed amount.
	BasisTransfer ToleranceBasis = "transfer"
	// BasisClaim accepts observed amounts within tolerance of the claim.
	BasisClaim ToleranceBasis = "claim"
)

// ParseToleranceBasis accepts "transfer" or "claim"; empty means BasisTransfer.
func ParseToleranceBasis(s string) (ToleranceBasis, error) {
	switch ToleranceBasis(s) {
	case "", BasisTransfer:
		return BasisTransfer, nil
	case BasisClaim:
		return BasisClaim, nil
	default:
		return "", fmt.Errorf("unknown tolerance basis %q", s)
	}
}

// DefaultConfirmations are the block depths at which each asset is treated as final.
var DefaultConfirmations = map[models.Asset]int{
	models.AssetBTC:  3,
	models.AssetETH:  12,
	models.AssetUSDT: 12,
}

type Policy struct {
	confirmations map[models.Asset]int
	tolerance     decimal.Decimal
	basis         ToleranceBasis
}

// New builds a policy from per-asset overrides on top of the defaults.
func New(overrides map[models.Asset]int, tolerance decimal.Decimal) (*Policy, error) {
	if tolerance.IsNegative() || tolerance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("tolerance must be in [0, 1), got %s", tolerance)
	}

	confirmations := make(map[models.Asset]int, len(DefaultConfirmations))
	for asset, n := range DefaultConfirmations {
		confirmations[asset] = n
	}
	for asset, n := range overrides {
		if n < 0 {
			return nil, fmt.Errorf("required confirmations for %s cannot be negative, got %d", asset, n)
		}
		confirmations[asset] = n
	}

	return &Policy{confirmations: confirmations, tolerance: tolerance, basis: BasisTransfer}, nil
}

// WithToleranceBasis returns a copy of p measuring the band against b.
func (p *Policy) WithToleranceBasis(b ToleranceBasis) (*Policy, error) {
	if b != BasisTransfer && b != BasisClaim {
		return nil, fmt.Errorf("unknown tolerance basis %q", b)
	}
	cp := *p
	cp.basis = b
	return &cp, nil
}

func Default() *Policy {
	p, _ := New(nil, DefaultTolerance)
	return p
}

func (p *Policy) RequiredConfirmations(asset models.Asset) int {
	return p.confirmations[asset]
}

// IsFinal reports whether the transfer has reached its asset's confirmation depth.
func (p *Policy) IsFinal(t models.ExternalTransfer) bool {
	required, ok := p.confirmations[t.Asset]
	if !ok {
		return false
	}
	return t.Confirmations >= required
}

func (p *Policy) Tolerance() decimal.Decimal {
	return p.tolerance
}

func (p *Policy) ToleranceBasis() ToleranceBasis {
	return p.basis
}

// WithinTolerance reports |observed - claimed| <= tolerance * reference, where
// reference is the observed amount by default or the claim under BasisClaim.
func (p *Policy) WithinTolerance(observed, claimed decimal.Decimal) bool {
	if !claimed.IsPositive() || !observed.IsPositive() {
		return false
	}
	reference := observed
	if p.basis == BasisClaim {
		reference = claimed
	}
	return observed.Sub(claimed).Abs().LessThanOrEqual(reference.Mul(p.tolerance))
}
