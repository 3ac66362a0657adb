package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/coupon"
	"github.com/angelmondragon/storefront-checkout/internal/cron"
	"github.com/angelmondragon/storefront-checkout/internal/selection"
	"github.com/angelmondragon/storefront-checkout/pkg/backend"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/kv"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

const janitorLockKey = "sf:lock:session-purge"

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	// Money goes over the wire as JSON numbers, the same way the backend sends it.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	jobMetrics := metrics.NewJobMetrics(registry)

	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	var closers []func() error
	defer func() {
		var closeErr error
		for i := len(closers) - 1; i >= 0; i-- {
			closeErr = multierr.Append(closeErr, closers[i]())
		}
		if closeErr != nil {
			logg.Error(context.Background(), "error releasing resources", closeErr)
		}
	}()

	var redisClient *redis.Client
	if cfg.Persistence.Driver == config.PersistenceRedis || cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		switch {
		case err != nil && cfg.Persistence.Driver == config.PersistenceRedis:
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		case err != nil:
			logg.Warn(ctx, "redis unavailable, idempotent replay and coupon throttling disabled")
			redisClient = nil
		default:
			closers = append(closers, redisClient.Close)
		}
	}

	var (
		store   kv.Store
		janitor *cron.Service
	)
	switch cfg.Persistence.Driver {
	case config.PersistenceRedis:
		store = redisClient.KV()
	case config.PersistenceSQL:
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		closers = append(closers, dbClient.Close)

		if err := migrate.MaybeRun(ctx, cfg.DB, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run migrations", err)
			os.Exit(1)
		}
		sessions := db.NewSessionStore(dbClient)
		store = sessions

		janitor, err = newJanitor(cfg, logg, sessions, redisClient, jobMetrics)
		if err != nil {
			logg.Error(ctx, "failed to create session janitor", err)
			os.Exit(1)
		}
	default:
		logg.Warn(ctx, "checkout session state is kept in memory and is lost on restart")
		store = kv.NewMemory()
	}

	backendClient, err := backend.NewClient(
		cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithBreaker(cfg.Backend.BreakerMaxFailures, cfg.Backend.BreakerOpenTimeout),
		backend.WithObserver(checkoutMetrics),
	)
	if err != nil {
		logg.Error(ctx, "failed to create backend client", err)
		os.Exit(1)
	}

	engine, err := cart.NewEngine(
		backendClient,
		logg,
		cart.WithFanOut(cfg.Checkout.FanOutLimit),
		cart.WithPlaceholder(cfg.Checkout.PlaceholderImage),
		cart.WithFailureRecorder(checkoutMetrics),
	)
	if err != nil {
		logg.Error(ctx, "failed to create reconciliation engine", err)
		os.Exit(1)
	}

	selections := selection.NewStore(store, cfg.Persistence.TTL)

	cartService, err := cart.NewService(engine, backendClient, selections)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}

	couponService, err := coupon.NewService(backendClient, store, cfg.Persistence.TTL)
	if err != nil {
		logg.Error(ctx, "failed to create coupon service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(cartService, selections, couponService, backendClient, store, logg, checkout.Options{
		Checkout: cfg.Checkout,
		TTL:      cfg.Persistence.TTL,
		Metrics:  checkoutMetrics,
	})
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	runCtx := logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"persistence": cfg.Persistence.Driver,
	})
	logg.Info(runCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, store, redisClient, metricsHandler, cartService, couponService, checkoutService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if janitor != nil {
		group.Go(func() error {
			if err := janitor.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		logg.Info(runCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return multierr.Combine(
			server.Shutdown(shutdownCtx),
			checkoutService.Close(shutdownCtx),
		)
	})

	if err := group.Wait(); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		exitCode = 1
		return
	}
	logg.Info(runCtx, "api server stopped")
}

func newJanitor(cfg *config.Config, logg *logger.Logger, sessions *db.SessionStore, redisClient *redis.Client, jobMetrics *metrics.JobMetrics) (*cron.Service, error) {
	purge, err := cron.NewSessionPurgeJob(logg, sessions)
	if err != nil {
		return nil, err
	}
	var lock cron.Lock
	if redisClient != nil {
		lock, err = cron.NewRedisLock(redisClient, janitorLockKey, cfg.Persistence.PurgeInterval)
		if err != nil {
			return nil, err
		}
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(purge),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Persistence.PurgeInterval,
	})
}
