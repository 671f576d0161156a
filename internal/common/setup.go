package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"deposit-reconciler-go/internal/chain"
	"deposit-reconciler-go/internal/database"
	"deposit-reconciler-go/internal/formance"
	"deposit-reconciler-go/internal/listener"
	"deposit-reconciler-go/internal/lock"
	"deposit-reconciler-go/internal/metrics"
	"deposit-reconciler-go/internal/models"
	"deposit-reconciler-go/internal/notification"
	"deposit-reconciler-go/internal/policy"
	"deposit-reconciler-go/internal/prime"
	"deposit-reconciler-go/internal/reconciler"
	"deposit-reconciler-go/internal/webhook"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// init picks up a local .env file. Variables already exported take precedence.
func init() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded (%v), using process environment\n", err)
		return
	}
	log.Println("Loaded environment variables from .env file")
}

// Services is everything the binaries share, built once and passed explicitly.
type Services struct {
	DbService  *database.Service
	Router     *chain.Router
	Policy     *policy.Policy
	Registry   *prometheus.Registry
	Metrics    *metrics.Metrics
	Notifier   notification.Fanout
	Reconciler *reconciler.Reconciler
	Ingestor   *webhook.Ingestor
	Listener   *listener.DepositListener

	redisClient *redis.Client
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	assets, err := LoadAssetConfig(cfg.Listener.AssetsFile)
	if err != nil {
		return nil, err
	}

	pol, err := policy.New(ConfirmationOverrides(assets), cfg.Reconciler.MatchTolerance)
	if err != nil {
		return nil, err
	}
	basis, err := policy.ParseToleranceBasis(cfg.Reconciler.ToleranceBasis)
	if err != nil {
		return nil, err
	}
	if pol, err = pol.WithToleranceBasis(basis); err != nil {
		return nil, err
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{
		DbService: dbService,
		Policy:    pol,
		Registry:  prometheus.NewRegistry(),
	}
	services.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	services.Metrics = metrics.New(services.Registry)

	services.Router, err = buildRouter(ctx, cfg, assets, pol)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Notifier, err = BuildNotifier(ctx, cfg, dbService)
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Reconciler, err = reconciler.New(reconciler.Config{
		Store:    dbService,
		Policy:   pol,
		Notifier: services.Notifier,
		Metrics:  services.Metrics,
		Retry: reconciler.RetryConfig{
			MaxAttempts:     cfg.Reconciler.MaxAttempts,
			InitialInterval: cfg.Reconciler.InitialInterval,
			MaxInterval:     cfg.Reconciler.MaxInterval,
		},
	})
	if err != nil {
		services.Close()
		return nil, err
	}

	services.Ingestor = webhook.NewIngestor(services.Reconciler, webhook.NewNormalizer(pol), cfg.Server.WebhookSecret, services.Metrics)

	var locker lock.Locker = lock.NewMemoryLocker()
	if cfg.Redis.Url != "" {
		client, err := lock.NewRedisClient(ctx, cfg.Redis.Url)
		if err != nil {
			services.Close()
			return nil, err
		}
		services.redisClient = client
		locker = lock.NewRedisLocker(client, "deposit-sweep:", cfg.Listener.LockTTL)
		zap.L().Info("Using Redis sweep lock")
	}

	services.Listener, err = listener.NewDepositListener(listener.DepositListenerConfig{
		Store:          dbService,
		Reader:         services.Router,
		Reconciler:     services.Reconciler,
		Locker:         locker,
		Metrics:        services.Metrics,
		Schedule:       cfg.Listener.Schedule,
		MaxConcurrency: cfg.Listener.MaxConcurrency,
		PairTimeout:    cfg.Listener.PairTimeout,
	})
	if err != nil {
		services.Close()
		return nil, err
	}

	return services, nil
}

// InitializeDatabaseOnly initializes just the database service without chain readers
// Useful for operator tools like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// BuildNotifier always records a user notification and, when a Formance stack
// is configured, mirrors the credit to it as well.
func BuildNotifier(ctx context.Context, cfg *models.Config, dbService *database.Service) (notification.Fanout, error) {
	sinks := []notification.Sink{notification.NewRecorder(dbService)}
	if cfg.Formance.StackURL != "" {
		mirror, err := formance.NewMirror(ctx, cfg.Formance)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize formance mirror: %w", err)
		}
		sinks = append(sinks, mirror)
		zap.L().Info("Mirroring credits to Formance", zap.String("ledger", cfg.Formance.LedgerName))
	}
	return notification.NewFanout(sinks...), nil
}

func (cs *Services) Close() {
	if cs.redisClient != nil {
		if err := cs.redisClient.Close(); err != nil {
			zap.L().Warn("Failed to close redis client", zap.Error(err))
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func buildRouter(ctx context.Context, cfg *models.Config, assets []AssetConfig, pol *policy.Policy) (*chain.Router, error) {
	httpClient, err := chain.NewHttpClient(cfg.Explorer.Timeout)
	if err != nil {
		return nil, err
	}

	router := chain.NewRouter()
	var primeReader *chain.PrimeReader

	for _, asset := range assets {
		symbol := models.Asset(asset.Symbol)
		switch asset.Source {
		case SourceEsplora:
			baseURL := asset.BaseURL
			if baseURL == "" {
				baseURL = chain.BlockstreamMainnetURL
				if cfg.Explorer.UseTestnet {
					baseURL = chain.BlockstreamTestnetURL
				}
			}
			router.Register(symbol, chain.NewEsploraReader(baseURL, httpClient, cfg.Explorer.RequestsPerSec))

		case SourceEtherscan:
			baseURL := asset.BaseURL
			if baseURL == "" {
				baseURL = chain.EtherscanMainnetURL
				if cfg.Explorer.UseTestnet {
					baseURL = chain.EtherscanTestnetURL
				}
			}
			if cfg.Explorer.EtherscanApiKey == "" {
				zap.L().Warn("ETHERSCAN_API_KEY not set, requests will be heavily rate limited",
					zap.String("asset", asset.Symbol))
			}
			router.Register(symbol, chain.NewEtherscanReader(chain.EtherscanConfig{
				BaseURL:        baseURL,
				ApiKey:         cfg.Explorer.EtherscanApiKey,
				USDTContract:   asset.Contract,
				Client:         httpClient,
				RequestsPerSec: cfg.Explorer.RequestsPerSec,
			}))

		case SourcePrime:
			if primeReader == nil {
				primeReader, err = buildPrimeReader(ctx, cfg, pol)
				if err != nil {
					return nil, err
				}
			}
			router.Register(symbol, primeReader)
		}

		zap.L().Info("Chain reader configured",
			zap.String("asset", asset.Symbol),
			zap.String("source", asset.Source))
	}

	return router, nil
}

func buildPrimeReader(ctx context.Context, cfg *models.Config, pol *policy.Policy) (*chain.PrimeReader, error) {
	zap.L().Info("Loading Prime API credentials")
	creds, ok, err := prime.LoadCredentials()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("assets file selects the prime source but PRIME_ACCESS_KEY, PRIME_PASSPHRASE and PRIME_SIGNING_KEY are not set")
	}

	primeService, err := prime.NewService(creds, nil)
	if err != nil {
		return nil, err
	}

	portfolioId := cfg.Explorer.PrimePortfolioId
	if portfolioId == "" {
		zap.L().Info("Finding default portfolio")
		defaultPortfolio, err := primeService.FindDefaultPortfolio(ctx)
		if err != nil {
			return nil, err
		}
		zap.L().Info("Using default portfolio",
			zap.String("name", defaultPortfolio.Name),
			zap.String("id", defaultPortfolio.Id))
		portfolioId = defaultPortfolio.Id
	}

	return chain.NewPrimeReader(primeService, portfolioId, pol, 0), nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
