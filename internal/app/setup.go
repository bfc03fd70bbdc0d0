package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/percyitchy/xleaderboard/internal/backend"
	"github.com/percyitchy/xleaderboard/internal/execution"
	"github.com/percyitchy/xleaderboard/internal/orders"
	"github.com/percyitchy/xleaderboard/internal/pricing"
	"github.com/percyitchy/xleaderboard/internal/quote"
	"github.com/percyitchy/xleaderboard/internal/signing"
	"github.com/percyitchy/xleaderboard/internal/storage"
	"github.com/percyitchy/xleaderboard/internal/trade"
	"github.com/percyitchy/xleaderboard/pkg/cache"
	"github.com/percyitchy/xleaderboard/pkg/config"
	"github.com/percyitchy/xleaderboard/pkg/healthprobe"
	"github.com/percyitchy/xleaderboard/pkg/httpserver"
	"github.com/percyitchy/xleaderboard/pkg/types"
	"github.com/percyitchy/xleaderboard/pkg/wallet"
	"github.com/percyitchy/xleaderboard/pkg/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	client := setupBackendClient(cfg, logger)
	healthChecker := setupHealthChecker(client)

	// Setup cache
	prices, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	// Setup wallet session
	session, err := setupSession(cfg, logger, opts)
	if err != nil {
		cancel()
		prices.Close()
		return nil, fmt.Errorf("setup wallet session: %w", err)
	}

	// Setup storage
	history, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		prices.Close()
		return nil, fmt.Errorf("setup storage: %w", err)
	}

	fetcher := setupQuoteFetcher(cfg, logger, client, prices)
	engine := setupEngine(cfg, logger, client, session)
	controller := trade.New(ctx, &trade.Config{
		Quotes:   fetcher,
		Resolver: pricing.NewResolver(pricing.PolicyFromConfig(cfg)),
		Executor: engine,
		Storage:  history,
		Debounce: cfg.QuoteDebounce,
		Logger:   logger,
	})

	orderManager := orders.New(&orders.Config{
		Backend: client,
		Session: session,
		Logger:  logger,
	})

	hub := websocket.NewHub(&websocket.Config{Logger: logger})
	unsubscribe := controller.Subscribe(func(ev trade.Event) {
		err := hub.Broadcast(ev)
		if err != nil {
			logger.Warn("broadcast-event-failed", zap.String("type", ev.Type), zap.Error(err))
		}
	})

	httpServer := httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Controller:    controller,
		Orders:        orderManager,
		History:       history,
		Updates:       hub,
	})

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		hub:           hub,
		backend:       client,
		prices:        prices,
		session:       session,
		positions:     wallet.NewPositionsClient(cfg.DataAPIURL, logger),
		controller:    controller,
		orders:        orderManager,
		storage:       history,
		unsubscribe:   unsubscribe,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupBackendClient(cfg *config.Config, logger *zap.Logger) *backend.Client {
	return backend.NewClient(&backend.Config{
		BaseURL: cfg.BackendURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
	})
}

func setupHealthChecker(client *backend.Client) *healthprobe.HealthChecker {
	hc := healthprobe.New()
	hc.AddCheck("backend", func(ctx context.Context) error {
		status, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if !status.Ready {
			return errors.New("trading client not initialized")
		}
		return nil
	})
	return hc
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000, // 10x expected max items
		MaxCost:     1000,  // one entry per token side
		BufferItems: 64,
		Logger:      logger,
	})
}

// setupSession connects the configured wallet. Without a private key the
// session stays disconnected and confirmations fail with
// CredentialsUnavailable.
func setupSession(cfg *config.Config, logger *zap.Logger, opts *Options) (*wallet.Session, error) {
	var signer *wallet.LocalSigner

	if cfg.WalletPrivateKey != "" {
		var err error
		signer, err = wallet.NewLocalSigner(&wallet.SignerConfig{
			PrivateKey: cfg.WalletPrivateKey,
			Approve:    opts.Approve,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create signer: %w", err)
		}
	} else {
		logger.Warn("wallet-not-configured", zap.String("reason", "WALLET_PRIVATE_KEY is empty"))
	}

	return wallet.NewSession(&wallet.SessionConfig{
		Signer:       signer,
		ProxyAddress: cfg.WalletProxyAddress,
		Credentials: &types.APICredentials{
			APIKey:     cfg.PolymarketAPIKey,
			Secret:     cfg.PolymarketSecret,
			Passphrase: cfg.PolymarketPassphrase,
		},
		Logger: logger,
	}), nil
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	switch cfg.StorageMode {
	case "postgres":
		pgStorage, err := storage.NewPostgresStorage(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres storage: %w", err)
		}
		return pgStorage, nil

	case "sqlite":
		sqliteStorage, err := storage.NewSQLiteStorage(cfg.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return sqliteStorage, nil
	}

	return storage.NewConsoleStorage(logger), nil
}

func setupQuoteFetcher(cfg *config.Config, logger *zap.Logger, client *backend.Client, prices cache.Cache) *quote.Fetcher {
	return quote.NewFetcher(&quote.Config{
		Source:      client,
		Cache:       prices,
		CacheTTL:    cfg.QuoteCacheTTL,
		MinNotional: decimal.NewFromFloat(cfg.MinQuoteNotional),
		Logger:      logger,
	})
}

func setupEngine(cfg *config.Config, logger *zap.Logger, client *backend.Client, session *wallet.Session) *execution.Engine {
	coordinator := signing.New(&signing.Config{
		Preparer: client,
		Signer:   session,
		Identity: session,
		Logger:   logger,
	})

	return execution.New(&execution.Config{
		Signer:      coordinator,
		Submitter:   client,
		Credentials: session,
		MaxRetries:  cfg.ExecutionMaxRetries,
		Logger:      logger,
	})
}
