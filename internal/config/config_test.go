package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "DATABASE_PATH", "LISTENER_SCHEDULE", "MATCH_TOLERANCE", "MATCH_TOLERANCE_BASIS", "RECONCILE_MAX_ATTEMPTS", "CRON_SECRET", "FORMANCE_STACK_URL", "FORMANCE_LEDGER"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "deposits.db", cfg.Database.Path)
	assert.Equal(t, "@every 30s", cfg.Listener.Schedule)
	assert.Equal(t, 8, cfg.Listener.MaxConcurrency)
	assert.Equal(t, 5, cfg.Reconciler.MaxAttempts)
	assert.True(t, cfg.Reconciler.MatchTolerance.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, "transfer", cfg.Reconciler.ToleranceBasis)
	assert.Empty(t, cfg.Server.CronSecret)
	assert.Empty(t, cfg.Formance.StackURL)
	assert.Equal(t, "deposit-reconciler", cfg.Formance.LedgerName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/deposits?sslmode=disable")
	t.Setenv("LISTENER_PAIR_TIMEOUT", "3s")
	t.Setenv("MATCH_TOLERANCE", "0.01")
	t.Setenv("MATCH_TOLERANCE_BASIS", "claim")
	t.Setenv("EXPLORER_RATE_LIMIT", "2.5")
	t.Setenv("USE_TESTNET", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://ledger@localhost/deposits?sslmode=disable", cfg.Database.Path)
	assert.Equal(t, 3*time.Second, cfg.Listener.PairTimeout)
	assert.True(t, cfg.Reconciler.MatchTolerance.Equal(decimal.RequireFromString("0.01")))
	assert.Equal(t, "claim", cfg.Reconciler.ToleranceBasis)
	assert.Equal(t, 2.5, cfg.Explorer.RequestsPerSec)
	assert.True(t, cfg.Explorer.UseTestnet)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("LISTENER_PAIR_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LISTENER_PAIR_TIMEOUT", "")
	t.Setenv("MATCH_TOLERANCE", "five percent")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("MATCH_TOLERANCE", "")
	t.Setenv("MATCH_TOLERANCE_BASIS", "average")
	_, err = Load()
	assert.Error(t, err)
}
