package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/config"
	impl_dispatcher "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/dispatcher"
	impl_ledger "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/ledger"
	impl_inmemory "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/messaging/inmemory"
	impl_rabbitmq "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/messaging/rabbitmq"
	impl_memory "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/persistence/memory"
	impl_mongo "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/persistence/mongo"
	impl_postgres "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/persistence/postgres"
	impl_platform "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/gateway/platform"
	impl_http "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/http"
	impl_operation "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/usecase/operation"
	impl_transfer "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/impl/usecase/transfer"
	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/logging"
	"github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/messaging"
	port_persistence "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/persistence"
	port_platform "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/platform"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

type stores struct {
	transactions port_persistence.TransactionRepository
	operations   port_persistence.OperationRepository
	ping         impl_http.HealthCheck
	close        func(context.Context) error
}

type broker interface {
	messaging.Publisher
	messaging.Consumer
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otel.SetTextMapPropagator(propagation.TraceContext{})

	checks := map[string]impl_http.HealthCheck{}

	st, err := buildStores(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer closeWithTimeout(cfg, logger, "store", st.close)
	if st.ping != nil {
		checks["store"] = st.ping
	}

	br, brPing, brFailed, brClose, err := buildBroker(cfg.Broker, logger)
	if err != nil {
		return err
	}
	defer closeWithTimeout(cfg, logger, "broker", func(context.Context) error { return brClose() })
	if brPing != nil {
		checks["broker"] = brPing
	}

	locker, lockPing, lockClose := buildLocker(cfg.Redis, logger)
	defer closeWithTimeout(cfg, logger, "redis", func(context.Context) error { return lockClose() })
	if lockPing != nil {
		checks["redis"] = lockPing
	}

	clock := impl_platform.SystemClock{}
	ids := impl_platform.UUIDGenerator{}

	ledger := impl_ledger.NewClient(impl_ledger.Config{
		BaseURL:             cfg.Ledger.BaseURL,
		Timeout:             cfg.Ledger.Timeout,
		ConsecutiveFailures: cfg.Ledger.BreakerFailures,
		BreakerTimeout:      cfg.Ledger.BreakerTimeout,
	}, nil, logger.Named("ledger"))

	transferUC := impl_transfer.NewTransferUsecaseImpl(st.transactions, st.operations, br, clock, ids, logger.Named("transfer"))
	statusUC := impl_transfer.NewGetStatusUsecaseImpl(st.transactions, ids, logger.Named("status"))
	processor := impl_operation.NewBalanceProcessorImpl(st.transactions, st.operations, br, ledger, locker, clock, logger.Named("processor"))

	dispatcher := impl_dispatcher.NewDispatcher(br, transferUC, processor, logger.Named("dispatcher"),
		impl_dispatcher.WithHandlerTimeout(cfg.Broker.HandlerTimeout))
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	router := impl_http.NewRouter(logger.Named("http"), impl_http.RouterDependencies{
		Transfer: transferUC,
		Status:   statusUC,
		Ledger:   ledger,
		Health:   checks,
	})
	srv := impl_http.NewServer(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	case <-brFailed:
		runErr = errors.New("message broker connection lost")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}

	// stores and broker close in the deferred calls, after the handlers
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("message handlers still running at shutdown", zap.Error(err))
	}

	return runErr
}

func buildStores(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (stores, error) {
	switch cfg.Driver {
	case config.StorePostgres:
		store, err := impl_postgres.Open(impl_postgres.Config{
			DSN:             cfg.PostgresDSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, logger.Named("postgres"))
		if err != nil {
			return stores{}, err
		}

		if cfg.AutoMigrate {
			if err := store.Migrate(); err != nil {
				_ = store.Close()
				return stores{}, err
			}
		}

		return stores{
			transactions: store.Transactions(),
			operations:   store.Operations(),
			ping:         store.Ping,
			close:        func(context.Context) error { return store.Close() },
		}, nil

	case config.StoreMongo:
		store, err := impl_mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return stores{}, err
		}

		if err := store.EnsureIndexes(ctx); err != nil {
			_ = store.Close(ctx)
			return stores{}, err
		}

		return stores{
			transactions: store.Transactions(),
			operations:   store.Operations(),
			ping:         store.Ping,
			close:        store.Close,
		}, nil

	default:
		logger.Warn("using in-memory store; data is lost on restart")
		store := impl_memory.NewStore()
		return stores{
			transactions: store.Transactions(),
			operations:   store.Operations(),
			close:        func(context.Context) error { return nil },
		}, nil
	}
}

func buildBroker(cfg config.BrokerConfig, logger *zap.Logger) (broker, impl_http.HealthCheck, <-chan struct{}, func() error, error) {
	if cfg.Driver == config.BrokerRabbitMQ {
		b, err := impl_rabbitmq.Dial(impl_rabbitmq.Config{
			URL:                cfg.URL,
			Prefetch:           cfg.Prefetch,
			ConfirmTimeout:     cfg.ConfirmTimeout,
			MaxRedeliveries:    cfg.MaxRedeliveries,
			RetryDelay:         cfg.RetryDelay,
			DeadLetterExchange: cfg.DeadLetterExchange,
			DeadLetterQueue:    cfg.DeadLetterQueue,
			ReconnectAttempts:  cfg.ReconnectAttempts,
			ReconnectDelay:     cfg.ReconnectDelay,
		}, logger.Named("rabbitmq"))
		if err != nil {
			return nil, nil, nil, nil, err
		}
		return b, b.Ping, b.Failed(), b.Close, nil
	}

	logger.Warn("using in-memory broker; messages are lost on restart")
	b := impl_inmemory.NewBroker(logger.Named("inmemory"),
		impl_inmemory.WithRedeliveryDelay(cfg.RetryDelay),
		impl_inmemory.WithMaxRedeliveries(cfg.MaxRedeliveries),
	)
	return b, nil, nil, b.Close, nil
}

func buildLocker(cfg config.RedisConfig, logger *zap.Logger) (port_platform.Locker, impl_http.HealthCheck, func() error) {
	if !cfg.Enabled() {
		return impl_platform.NewLocalLocker(), nil, func() error { return nil }
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	locker := impl_platform.NewRedisLocker(client, impl_platform.LockConfig{
		Expiry:     cfg.LockExpiry,
		Tries:      cfg.LockTries,
		RetryDelay: cfg.LockRetryDelay,
	}, logger.Named("lock"))

	ping := func(ctx context.Context) error { return client.Ping(ctx).Err() }

	return locker, ping, client.Close
}

func closeWithTimeout(cfg config.Config, logger *zap.Logger, name string, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := closeFn(ctx); err != nil {
		logger.Warn("closing dependency failed", zap.String("component", name), zap.Error(err))
	}
}
