package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rashody/internal/amqp"
	"rashody/internal/backend"
	"rashody/internal/cache"
	"rashody/internal/config"
	"rashody/internal/core"
	applog "rashody/internal/log"
	"rashody/internal/services"
	"rashody/internal/storage"
)

const (
	accountCacheSize     = 4096
	accountCacheTTL      = 15 * time.Minute
	cacheCleanupInterval = 5 * time.Minute
)

// app holds what every long-running command shares.
type app struct {
	cfg      *config.Config
	logger   *applog.Logger
	loc      *time.Location
	store    storage.Store
	caches   *cache.Manager
	accounts *services.AccountResolver
	expenses *services.ExpenseService
	reports  *services.ReportService
}

// bootstrap opens the store and builds the services. withPublisher connects
// to the broker when AMQP_URL is set.
func bootstrap(ctx context.Context, cfg *config.Config, logger *applog.Logger, withPublisher bool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("report timezone: %w", err)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := backend.NewFactory(logger).CreateStore(ctx, backendCfg)
	if err != nil {
		return nil, err
	}

	// A nil *amqp.Client must not reach the Publisher interface.
	var publisher services.Publisher
	if withPublisher && cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
		publisher = client
		logger.Info("Expense export publishing enabled",
			applog.FieldExchange, cfg.AMQPExchange,
			applog.FieldQueue, cfg.AMQPQueue)
	} else if withPublisher {
		logger.Info("AMQP_URL not set, expenses will not be exported")
	}

	accountCache := cache.NewLRUCache[int64, core.User](accountCacheSize, accountCacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(accountCache)

	return &app{
		cfg:      cfg,
		logger:   logger,
		loc:      loc,
		store:    store,
		caches:   caches,
		accounts: services.NewAccountResolver(store, accountCache, logger),
		expenses: services.NewExpenseService(store, publisher, logger),
		reports:  services.NewReportService(store, loc, logger),
	}, nil
}

func (a *app) startCacheCleanup(ctx context.Context) {
	a.caches.StartCleanup(ctx, cacheCleanupInterval)
}

// Close releases the broker connection, the cache loop and the store.
func (a *app) Close() error {
	a.caches.Stop()
	return errors.Join(a.expenses.Close(), a.store.Close())
}
