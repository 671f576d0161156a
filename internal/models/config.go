package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Listener   ListenerConfig
	Server     ServerConfig
	Explorer   ExplorerConfig
	Reconciler ReconcilerConfig
	Redis      RedisConfig
	Formance   FormanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // sqlite3 or postgres
	Path            string // sqlite file path or postgres DSN
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// ListenerConfig holds polling scheduler settings
type ListenerConfig struct {
	Schedule       string
	MaxConcurrency int
	PairTimeout    time.Duration
	LockTTL        time.Duration
	AssetsFile     string
	Enabled        bool
}

// ServerConfig holds HTTP surface settings
type ServerConfig struct {
	Addr            string
	WebhookSecret   string
	CronSecret      string
	AdminToken      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ExplorerConfig holds block explorer client settings
type ExplorerConfig struct {
	UseTestnet       bool
	EtherscanApiKey  string
	Timeout          time.Duration
	RequestsPerSec   float64
	PrimePortfolioId string
}

// ReconcilerConfig holds matching and retry settings
type ReconcilerConfig struct {
	MatchTolerance  decimal.Decimal
	ToleranceBasis  string
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// RedisConfig enables the distributed sweep lock when Url is set
type RedisConfig struct {
	Url string
}

// FormanceConfig enables mirroring credits to a Formance ledger when StackURL is set
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}
