package matcher

import (
	"testing"
	"time"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/policy"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const custody = "0xAbC0000000000000000000000000000000000001"

var base = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func claim(id, amount string, asset models.Asset, address string, createdAt time.Time) models.Deposit {
	user := "user-" + id
	return models.Deposit{
		Id:             id,
		UserId:         &user,
		Asset:          asset,
		ClaimedAmount:  decimal.RequireFromString(amount),
		CustodyAddress: address,
		Status:         models.DepositStatusPending,
		CreatedAt:      createdAt,
	}
}

func transfer(amount string, asset models.Asset, to string) models.ExternalTransfer {
	return models.ExternalTransfer{
		TxHash:        "0xhash",
		ToAddress:     to,
		Amount:        decimal.RequireFromString(amount),
		Confirmations: 12,
		Asset:         asset,
	}
}

func TestFindCandidateClaimWithinTolerance(t *testing.T) {
	m := New(policy.Default())
	claims := []models.Deposit{claim("a", "100", models.AssetUSDT, custody, base)}

	got := m.FindCandidateClaim(transfer("98", models.AssetUSDT, custody), claims)
	require.NotNil(t, got)
	assert.Equal(t, "a", got.Id)

	assert.Nil(t, m.FindCandidateClaim(transfer("90", models.AssetUSDT, custody), claims))
	assert.Nil(t, m.FindCandidateClaim(transfer("106", models.AssetUSDT, custody), claims))
}

func TestFindCandidateClaimPrefersNewest(t *testing.T) {
	m := New(policy.Default())
	claims := []models.Deposit{
		claim("old", "1.0", models.AssetETH, custody, base),
		claim("new", "1.02", models.AssetETH, custody, base.Add(time.Hour)),
		claim("mid", "0.99", models.AssetETH, custody, base.Add(time.Minute)),
	}

	got := m.FindCandidateClaim(transfer("1.0", models.AssetETH, custody), claims)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.Id)
}

func TestFindCandidateClaimTieBreakIsStable(t *testing.T) {
	m := New(policy.Default())
	claims := []models.Deposit{
		claim("b", "1", models.AssetBTC, "bc1qx", base),
		claim("c", "1", models.AssetBTC, "bc1qx", base),
		claim("a", "1", models.AssetBTC, "bc1qx", base),
	}

	got := m.FindCandidateClaim(transfer("1", models.AssetBTC, "bc1qx"), claims)
	require.NotNil(t, got)
	assert.Equal(t, "c", got.Id)
}

func TestFindCandidateClaimFilters(t *testing.T) {
	m := New(policy.Default())

	rejected := claim("rejected", "1", models.AssetETH, custody, base)
	rejected.Status = models.DepositStatusRejected
	orphan := claim("orphan", "1", models.AssetETH, custody, base)
	orphan.UserId = nil

	claims := []models.Deposit{
		rejected,
		orphan,
		claim("wrong-asset", "1", models.AssetUSDT, custody, base),
		claim("wrong-address", "1", models.AssetETH, "0xdef", base),
	}

	assert.Nil(t, m.FindCandidateClaim(transfer("1", models.AssetETH, custody), claims))
	assert.Nil(t, m.FindCandidateClaim(transfer("1", models.AssetETH, custody), nil))
}

func TestFindCandidateClaimAddressRules(t *testing.T) {
	m := New(policy.Default())

	evm := []models.Deposit{claim("evm", "5", models.AssetETH, custody, base)}
	got := m.FindCandidateClaim(transfer("5", models.AssetETH, "0xabc0000000000000000000000000000000000001"), evm)
	require.NotNil(t, got)

	btc := []models.Deposit{claim("btc", "5", models.AssetBTC, "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2", base)}
	assert.Nil(t, m.FindCandidateClaim(transfer("5", models.AssetBTC, "1bvbmseystwetqtfn5au4m4gfg7xjanvn2"), btc))
}
