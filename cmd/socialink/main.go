package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	socialink "github.com/goliatone/go-socialink"
	"github.com/goliatone/go-socialink/adapters/gocommand"
	"github.com/goliatone/go-socialink/adapters/gojob"
	"github.com/goliatone/go-socialink/adapters/gologger"
	socialinkcommand "github.com/goliatone/go-socialink/command"
	"github.com/goliatone/go-socialink/core"
	"github.com/goliatone/go-socialink/httpapi"
	socialinkmigrations "github.com/goliatone/go-socialink/migrations"
	"github.com/goliatone/go-socialink/providers/ayrshare"
	"github.com/goliatone/go-socialink/ratelimit"
	sqlstore "github.com/goliatone/go-socialink/store/sql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/sync/errgroup"
)

const maxReconcileDelay = 10 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "socialink: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := gologger.NewJSONLogger(cfg.LogLevel)

	client, err := openPersistence(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = cfg.CacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		return fmt.Errorf("cache service: %w", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithCacheService(cacheService),
		sqlstore.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("repository factory: %w", err)
	}

	gateway, err := socialink.AyrshareGateway(ayrshare.Config{
		APIKey:     cfg.AyrshareAPIKey,
		BaseURL:    cfg.AyrshareBaseURL,
		Domain:     cfg.AyrshareDomain,
		PrivateKey: cfg.AyrsharePrivateKey,
		Timeout:    cfg.GatewayTimeout,
		Limiter:    ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore()),
	})
	if err != nil {
		return fmt.Errorf("ayrshare gateway: %w", err)
	}

	serviceConfig := cfg.serviceConfig()
	reconcileQueue := gojob.NewMemoryQueue()
	svc, err := socialink.NewService(serviceConfig,
		socialink.WithLogger(logger),
		socialink.WithPersistenceClient(client),
		socialink.WithRepositoryFactory(factory),
		socialink.WithProviderGateway(gateway),
		socialink.WithJobEnqueuer(gojob.NewEnqueuerAdapter(reconcileQueue)),
	)
	if err != nil {
		return fmt.Errorf("service: %w", err)
	}
	facade, err := socialink.NewFacade(svc)
	if err != nil {
		return fmt.Errorf("facade: %w", err)
	}

	registry := gocommand.NewRegistryAdapter(command.NewRegistry())
	mount, err := gocommand.MountFacade(registry, facade)
	if err != nil {
		return fmt.Errorf("mount commands: %w", err)
	}
	defer mount.Close()
	if err := registry.Initialize(); err != nil {
		return fmt.Errorf("initialize registry: %w", err)
	}

	worker, err := core.NewReconcileWorker(svc,
		gojob.NewDequeuerAdapter(reconcileQueue, gojob.NewRetryPolicy(maxReconcileDelay)),
		core.ReconcileWorkerOptions{Hook: gologger.NewWorkerLogHook(logger)},
	)
	if err != nil {
		return fmt.Errorf("reconcile worker: %w", err)
	}

	api, err := httpapi.New(facade, httpapi.Options{
		Logger:        logger,
		AllowedOrigin: cfg.AllowedOrigin,
		ReadinessChecks: []httpapi.ReadinessCheck{
			func(ctx context.Context) error { return client.DB().PingContext(ctx) },
		},
	})
	if err != nil {
		return fmt.Errorf("http api: %w", err)
	}
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("http server started", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("http server stopping")
		return server.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return worker.Run(groupCtx)
	})
	group.Go(func() error {
		runReconcileSweep(groupCtx, logger, cfg.ReconcileInterval, serviceConfig.Reconcile.BatchSize)
		return nil
	})

	return group.Wait()
}

func openPersistence(ctx context.Context, cfg appConfig) (*persistence.Client, error) {
	sqlDB, err := sql.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	target, err := socialinkmigrations.DialectForDriver(cfg.DatabaseDriver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	var client *persistence.Client
	pcfg := persistenceConfig{driver: cfg.DatabaseDriver, dsn: cfg.DatabaseDSN, debug: cfg.DatabaseDebug}
	if target == socialinkmigrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
		client, err = persistence.New(pcfg, sqlDB, sqlitedialect.New())
	} else {
		client, err = persistence.New(pcfg, sqlDB, pgdialect.New())
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("persistence client: %w", err)
	}

	err = socialinkmigrations.Register(target, func(fsys fs.FS) {
		client.RegisterSQLMigrations(fsys)
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return client, nil
}

// runReconcileSweep dispatches a pending-connection sweep on every tick so
// records left pending by an interrupted callback are eventually confirmed.
func runReconcileSweep(ctx context.Context, logger glog.Logger, interval time.Duration, batch int) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := gocommand.DispatchWithResult[socialinkcommand.ReconcilePendingMessage, core.ReconcileResult](ctx, socialinkcommand.ReconcilePendingMessage{Limit: batch})
			if err != nil {
				logger.Warn("reconcile sweep failed", "error", err.Error())
				continue
			}
			logger.Info("reconcile sweep finished",
				"checked", result.Checked,
				"connected", result.Connected,
				"failed", result.Failed,
			)
		}
	}
}
