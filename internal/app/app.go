package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/flight-gateway/internal/domain/auth"
	"github.com/xenking/flight-gateway/internal/domain/flight"
	"github.com/xenking/flight-gateway/internal/domain/privilege"
	"github.com/xenking/flight-gateway/internal/domain/route"
	"github.com/xenking/flight-gateway/internal/domain/ticket"
	"github.com/xenking/flight-gateway/internal/domain/user"
	"github.com/xenking/flight-gateway/internal/handler"
	"github.com/xenking/flight-gateway/internal/storage/postgres"
	rediscache "github.com/xenking/flight-gateway/internal/storage/redis"
	"github.com/xenking/flight-gateway/pkg/health"
	"github.com/xenking/flight-gateway/pkg/httpmiddleware"
)

const serviceName = "flight-gateway"

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool. Wait for the database the way the container probe
	// does before touching the schema.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	pingDB := func(ctx context.Context) error { return pool.Ping(ctx) }
	lg.Info("Waiting for database",
		zap.Duration("interval", cfg.DBProbe.Interval),
		zap.Duration("start_period", cfg.DBProbe.StartPeriod),
		zap.Int("retries", cfg.DBProbe.Retries),
	)
	if err := health.WaitHealthy(ctx, pingDB, cfg.DBProbe,
		health.OnProbeFailure(func(attempt int, counted bool, err error) {
			lg.Warn("Database not ready",
				zap.Int("attempt", attempt),
				zap.Bool("counted", counted),
				zap.Error(err),
			)
		}),
	); err != nil {
		return errors.Wrap(err, "wait for database")
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := newHealth(cfg, pingDB)
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()

	// Repositories.
	userRepo := postgres.NewUserRepository(pool)
	ticketRepo := postgres.NewTicketRepository(pool)
	privilegeRepo := postgres.NewPrivilegeRepository(pool)
	cache, err := newRedis(ctx, lg, cfg.Redis)
	if err != nil {
		return err
	}
	var flightRepo flight.Repository = postgres.NewFlightRepository(pool)
	limiter := newLimiter(ctx, cfg.RateLimit, cache)
	if cache != nil {
		defer func() { _ = cache.Close() }()
		flightRepo = rediscache.NewFlightCache(flightRepo, cache, cfg.Redis.TTL)
	}

	// Domain services.
	tokens, err := auth.NewTokens(auth.TokenConfig{
		Secret:    cfg.Auth.Secret,
		Algorithm: cfg.Auth.Algorithm,
		Lifetime:  cfg.Auth.TokenLifetime,
		Issuer:    cfg.Auth.Issuer,
	})
	if err != nil {
		return errors.Wrap(err, "create token issuer")
	}
	userService, err := user.NewService(userRepo, auth.BcryptHasher{},
		m.MeterProvider().Meter("github.com/xenking/flight-gateway/internal/domain/user"))
	if err != nil {
		return errors.Wrap(err, "create user service")
	}
	ticketService, err := ticket.NewService(ticketRepo, postgres.NewTransactor(pool),
		m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create ticket service")
	}

	// HTTP handlers.
	h := handler.NewHandler(handler.HandlerConfig{}, handler.Deps{
		Users:      userService,
		Tokens:     tokens,
		Flights:    flight.NewService(flightRepo),
		Tickets:    ticketService,
		Privileges: privilege.NewService(privilegeRepo),
		Routes:     route.NewFinder(flightRepo),
	})

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.HandleFunc("GET /manage/health", healthSvc.ReadyEndpoint)
	h.Register(mux)
	routeFinder := httpmiddleware.MakeRouteFinder(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				ExposeHeaders:    []string{"X-Request-ID", "WWW-Authenticate"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				Limiter: limiter,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(serviceName, routeFinder, m),
			httpmiddleware.LogRequests(routeFinder),
			httpmiddleware.Labeler(routeFinder),
		),
	}
	healthSvc.SetReady(true)

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHealth registers the database ping and one check per configured peer as
// readiness checks. Every readiness check follows the start-up probe: failures
// inside DBProbe.StartPeriod are not counted and readiness flips only after
// DBProbe.Retries consecutive failures.
func newHealth(cfg *Config, pingDB health.CheckFunc) *health.Health {
	probe := []health.CheckOption{
		health.WithFailureThreshold(cfg.DBProbe.Retries),
		health.WithStartPeriod(cfg.DBProbe.StartPeriod),
	}

	h := health.New()
	h.AddReadinessCheck("postgres", 5*time.Second, pingDB, probe...)
	client := &http.Client{Timeout: 5 * time.Second}
	for name, base := range cfg.Services.peers() {
		url := strings.TrimRight(base, "/") + "/manage/health"
		h.AddReadinessCheck(name, 5*time.Second, health.HTTPCheck(client, url), probe...)
	}
	h.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	h.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(time.Second))
	return h
}

// newRedis connects to Redis when an address is configured and returns nil
// otherwise.
func newRedis(ctx context.Context, lg *zap.Logger, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, nil
	}
	client, err := rediscache.NewClient(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, errors.Wrap(err, "connect redis")
	}
	lg.Info("Redis enabled", zap.String("addr", cfg.Addr), zap.Duration("flight_ttl", cfg.TTL))
	return client, nil
}

// newLimiter counts requests in Redis when it is available so replicas share
// one budget per client, and in process memory otherwise.
func newLimiter(ctx context.Context, cfg RateLimitConfig, client *redis.Client) httpmiddleware.Limiter {
	if cfg.Max <= 0 || cfg.Window <= 0 {
		return nil
	}
	if client != nil {
		return rediscache.NewRateLimiter(client, cfg.Max, cfg.Window)
	}
	l := httpmiddleware.NewMemoryLimiter(cfg.Max, cfg.Window)
	l.SweepEvery(ctx, 2*cfg.Window)
	return l
}
