/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/policy"

	"github.com/shopspring/decimal"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	pairTimeout, err := getEnvDuration("LISTENER_PAIR_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}

	lockTTL, err := getEnvDuration("LISTENER_LOCK_TTL", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	readTimeout, err := getEnvDuration("HTTP_READ_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	writeTimeout, err := getEnvDuration("HTTP_WRITE_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	explorerTimeout, err := getEnvDuration("EXPLORER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	retryInitial, err := getEnvDuration("RECONCILE_RETRY_INITIAL", 50*time.Millisecond)
	if err != nil {
		return nil, err
	}

	retryMax, err := getEnvDuration("RECONCILE_RETRY_MAX", time.Second)
	if err != nil {
		return nil, err
	}

	tolerance, err := getEnvDecimal("MATCH_TOLERANCE", policy.DefaultTolerance)
	if err != nil {
		return nil, err
	}

	basis, err := policy.ParseToleranceBasis(getEnvString("MATCH_TOLERANCE_BASIS", string(policy.BasisTransfer)))
	if err != nil {
		return nil, err
	}

	rateLimit, err := getEnvFloat("EXPLORER_RATE_LIMIT", 4)
	if err != nil {
		return nil, err
	}

	driver := getEnvString("DB_DRIVER", "sqlite3")
	path := getEnvString("DATABASE_PATH", "deposits.db")
	if driver == "postgres" {
		path = getEnvString("DATABASE_URL", path)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Driver:          driver,
			Path:            path,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Listener: models.ListenerConfig{
			Schedule:       getEnvString("LISTENER_SCHEDULE", "@every 30s"),
			MaxConcurrency: getEnvInt("LISTENER_MAX_CONCURRENCY", 8),
			PairTimeout:    pairTimeout,
			LockTTL:        lockTTL,
			AssetsFile:     getEnvString("ASSETS_FILE", ""),
			Enabled:        getEnvBool("LISTENER_ENABLED", true),
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("HTTP_ADDR", ":8080"),
			WebhookSecret:   os.Getenv("WEBHOOK_SECRET"),
			CronSecret:      os.Getenv("CRON_SECRET"),
			AdminToken:      os.Getenv("ADMIN_TOKEN"),
			ReadTimeout:     readTimeout,
			WriteTimeout:    writeTimeout,
			ShutdownTimeout: shutdownTimeout,
		},
		Explorer: models.ExplorerConfig{
			UseTestnet:       getEnvBool("USE_TESTNET", false),
			EtherscanApiKey:  os.Getenv("ETHERSCAN_API_KEY"),
			Timeout:          explorerTimeout,
			RequestsPerSec:   rateLimit,
			PrimePortfolioId: os.Getenv("PRIME_PORTFOLIO_ID"),
		},
		Reconciler: models.ReconcilerConfig{
			MatchTolerance:  tolerance,
			ToleranceBasis:  string(basis),
			MaxAttempts:     getEnvInt("RECONCILE_MAX_ATTEMPTS", 5),
			InitialInterval: retryInitial,
			MaxInterval:     retryMax,
		},
		Redis: models.RedisConfig{
			Url: os.Getenv("REDIS_URL"),
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "deposit-reconciler"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	if value := os.Getenv(key); value != "" {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return f, nil
	}
	return defaultValue, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid decimal for %s: %q (%w)", key, value, err)
		}
		return d, nil
	}
	return defaultValue, nil
}
