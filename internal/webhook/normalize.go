package webhook

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"deposit-reconciler-go/internal/chain"
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/policy"

	"go.uber.org/zap"
)

// maxUnixSeconds is year 5138; larger timestamps are read as milliseconds.
const maxUnixSeconds = 1e11

// Normalizer converts provider payloads into ExternalTransfers.
type Normalizer struct {
	policy *policy.Policy
	now    func() time.Time
}

func NewNormalizer(p *policy.Policy) *Normalizer {
	if p == nil {
		p = policy.Default()
	}
	return &Normalizer{policy: p, now: func() time.Time { return time.Now().UTC() }}
}

func (n *Normalizer) Normalize(p Payload) ([]models.ExternalTransfer, error) {
	switch v := p.(type) {
	case BlockCypherPayload:
		return n.blockCypher(v)
	case AlchemyPayload:
		return n.alchemy(v), nil
	case GenericPayload:
		return n.generic(v)
	default:
		return nil, fmt.Errorf("%w: no normalizer for %s payload", ErrMalformedPayload, Provider(p))
	}
}

func (n *Normalizer) blockCypher(p BlockCypherPayload) ([]models.ExternalTransfer, error) {
	amount, err := chain.ToWholeUnits(fmt.Sprintf("%d", p.Total), 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	observed := n.now()
	if p.Confirmed != "" {
		t, err := time.Parse(time.RFC3339, p.Confirmed)
		if err != nil {
			return nil, fmt.Errorf("%w: confirmed timestamp %q: %w", ErrMalformedPayload, p.Confirmed, err)
		}
		observed = t.UTC()
	}

	return []models.ExternalTransfer{{
		TxHash:        p.Hash,
		ToAddress:     p.Address,
		Amount:        amount,
		Confirmations: p.Confirmations,
		Asset:         models.AssetBTC,
		ObservedAt:    observed,
	}}, nil
}

// alchemy keeps every ETH or USDT activity with a positive value. A block
// number means the provider saw it mined, which is treated as final depth.
func (n *Normalizer) alchemy(p AlchemyPayload) []models.ExternalTransfer {
	transfers := make([]models.ExternalTransfer, 0, len(p.Activity))
	for _, a := range p.Activity {
		asset, err := models.ParseAsset(a.Asset)
		if err != nil || !asset.IsEVM() {
			zap.L().Debug("Skipping webhook activity for unsupported asset",
				zap.String("tx_hash", a.Hash),
				zap.String("asset", a.Asset))
			continue
		}
		if !a.Value.IsPositive() {
			zap.L().Debug("Skipping webhook activity without a positive value",
				zap.String("tx_hash", a.Hash),
				zap.String("value", a.Value.String()))
			continue
		}

		confirmations := 0
		if strings.TrimSpace(a.BlockNum) != "" {
			confirmations = n.policy.RequiredConfirmations(asset)
		}

		transfers = append(transfers, models.ExternalTransfer{
			TxHash:        a.Hash,
			FromAddress:   a.FromAddress,
			ToAddress:     a.ToAddress,
			Amount:        a.Value,
			Confirmations: confirmations,
			Asset:         asset,
			ObservedAt:    n.now(),
		})
	}
	return transfers
}

func (n *Normalizer) generic(p GenericPayload) ([]models.ExternalTransfer, error) {
	asset := models.AssetBTC
	if p.CryptoType != "" {
		parsed, err := models.ParseAsset(p.CryptoType)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		asset = parsed
	}

	observed := n.now()
	if p.Timestamp != "" {
		t, err := unixTimestamp(p.Timestamp.String())
		if err != nil {
			return nil, err
		}
		observed = t
	}

	return []models.ExternalTransfer{{
		TxHash:        p.TxHash,
		FromAddress:   p.FromAddress,
		ToAddress:     p.ToAddress,
		Amount:        p.Amount,
		Confirmations: p.Confirmations,
		Asset:         asset,
		ObservedAt:    observed,
	}}, nil
}

// unixTimestamp reads fractional seconds since the epoch, accepting
// milliseconds from providers that send them.
func unixTimestamp(raw string) (time.Time, error) {
	seconds, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %w", ErrMalformedPayload, raw, err)
	}
	if seconds >= maxUnixSeconds {
		seconds /= 1000
	}
	if math.IsNaN(seconds) || seconds < 0 || seconds >= maxUnixSeconds {
		return time.Time{}, fmt.Errorf("%w: timestamp %q out of range", ErrMalformedPayload, raw)
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))).UTC(), nil
}
