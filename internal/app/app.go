package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/storefront-checkout/internal/client/donationapi"
	"github.com/xenking/storefront-checkout/internal/domain/cart"
	"github.com/xenking/storefront-checkout/internal/domain/checkout"
	"github.com/xenking/storefront-checkout/internal/domain/donation"
	"github.com/xenking/storefront-checkout/internal/domain/pricing"
	"github.com/xenking/storefront-checkout/internal/handler"
	"github.com/xenking/storefront-checkout/internal/storage/postgres"
	"github.com/xenking/storefront-checkout/internal/storage/redis"
	"github.com/xenking/storefront-checkout/internal/telemetry"
	"github.com/xenking/storefront-checkout/pkg/health"
	"github.com/xenking/storefront-checkout/pkg/httpmiddleware"
)

const serviceName = "storefront-api"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	svc, err := build(ctx, lg, m, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	svc.health.Start(ctx, 10*time.Second)
	svc.health.SetReady(true)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           svc.handler,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		svc.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		// Orders submitted before shutdown still get their donation reported.
		if err := svc.dispatcher.Wait(shutdownCtx); err != nil {
			lg.Warn("Pending donation notifications abandoned", zap.Error(err))
		}
		svc.health.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// services is the wired application, ready to be served.
type services struct {
	handler    http.Handler
	health     *health.Health
	dispatcher *donation.Dispatcher
	closers    []func()
}

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// build connects storage and assembles the HTTP handler chain. The returned
// services must be closed by the caller.
func build(ctx context.Context, lg *zap.Logger, tel httpmiddleware.Telemetry, cfg *Config) (_ *services, rerr error) {
	svc := &services{health: health.New()}
	defer func() {
		if rerr != nil {
			svc.close()
		}
	}()

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	svc.closers = append(svc.closers, pool.Close)

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}

	svc.health.Register(health.Readiness, "postgres", health.PingCheck(pool), health.WithTimeout(5*time.Second))
	svc.health.Register(health.Liveness, "goroutines", health.GoroutineCountCheck(10000))
	svc.health.Register(health.Liveness, "gc_pause", health.GCMaxPauseCheck(500*time.Millisecond))

	// Cart lock: Redis when configured so replicas serialize on the same
	// owner, otherwise in-process.
	var locker cart.Locker = cart.NewKeyedMutex()
	if cfg.Redis.URL != "" {
		opts, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		rdb := goredis.NewClient(opts)
		svc.closers = append(svc.closers, func() { _ = rdb.Close() })

		redisLocker := redis.NewLocker(rdb, cfg.Redis.LockTTL, lg.Named("lock"))
		svc.health.Register(health.Readiness, "redis", health.PingCheck(redisLocker), health.WithTimeout(2*time.Second))
		locker = redisLocker
		lg.Info("Using redis cart lock", zap.String("addr", opts.Addr))
	}

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	apikeyRepo := postgres.NewAPIKeyRepository(pool)
	cartRepo := postgres.NewCartRepository(pool)
	orderRepo := postgres.NewOrderRepository(pool)

	metrics, err := telemetry.New(tel.MeterProvider())
	if err != nil {
		return nil, errors.Wrap(err, "create metrics")
	}

	// Domain services.
	rates, err := cfg.Pricing.Rates()
	if err != nil {
		return nil, err
	}
	minDonation, maxDonation, err := cfg.Donation.Bounds()
	if err != nil {
		return nil, err
	}
	calc := pricing.NewCalculator(rates)
	cartService := cart.NewService(cartRepo, productRepo, calc,
		cart.WithLocker(locker),
		cart.WithObserver(metrics),
	)

	notifier, err := newNotifier(cfg.Donation, lg.Named("donation"))
	if err != nil {
		return nil, err
	}
	svc.dispatcher = donation.NewDispatcher(notifier, cfg.Donation.Timeout, lg.Named("donation"), metrics.ObserveDonation)

	checkoutService := checkout.NewService(
		checkout.Config{
			Retailer: cfg.Donation.Retailer,
			Currency: cfg.Donation.Currency,
		},
		userRepo,
		cartService,
		orderRepo,
		calc,
		donation.NewCalculator(minDonation, maxDonation),
		svc.dispatcher,
	)
	checkoutService.SetObserver(metrics)

	// HTTP handlers.
	h := handler.NewHandler(
		handler.HandlerConfig{
			ImageBaseURL:  cfg.ImageBaseURL,
			SecureCookies: cfg.SecureCookies,
		},
		productRepo,
		cartService,
		checkoutService,
	)
	securityHandler := handler.NewSecurityHandler(apikeyRepo, []byte(cfg.APIKeyPepper))

	router := h.Router(securityHandler,
		httpmiddleware.Instrument(serviceName, tel),
		httpmiddleware.LogRequests(),
	)
	router.Get("/livez", svc.health.LiveEndpoint)
	router.Get("/readyz", svc.health.ReadyEndpoint)

	svc.handler = httpmiddleware.Wrap(router,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.RateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
	)
	return svc, nil
}

// newNotifier returns the HTTP donation client, or a notifier that only logs
// when no donation service is configured.
func newNotifier(cfg DonationConfig, lg *zap.Logger) (donation.Notifier, error) {
	if cfg.BaseURL == "" {
		lg.Warn("Donation service URL not set, donations will only be logged")
		return logNotifier{lg: lg}, nil
	}
	client, err := donationapi.New(cfg.BaseURL, lg)
	if err != nil {
		return nil, errors.Wrap(err, "create donation client")
	}
	lg.Info("Donation service configured", zap.String("endpoint", client.Endpoint()))
	return client, nil
}

type logNotifier struct {
	lg *zap.Logger
}

func (n logNotifier) Notify(_ context.Context, d donation.Donation) error {
	n.lg.Info("Donation recorded",
		zap.String("order_id", d.OrderID),
		zap.String("customer_id", d.CustomerID),
		zap.Stringer("amount", d.Amount),
		zap.String("currency", d.Currency),
	)
	return nil
}
