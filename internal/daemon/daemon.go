package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/starpath-app/starpath/internal/api"
	"github.com/starpath-app/starpath/internal/app/aigen"
	"github.com/starpath-app/starpath/internal/app/events"
	"github.com/starpath-app/starpath/internal/app/tracker"
	"github.com/starpath-app/starpath/internal/domain"
	"github.com/starpath-app/starpath/internal/health"
	"github.com/starpath-app/starpath/internal/infra/postgres"
	"github.com/starpath-app/starpath/internal/infra/ratelimit"
	"github.com/starpath-app/starpath/internal/infra/sqlite"
	"github.com/starpath-app/starpath/internal/logger"
	"github.com/starpath-app/starpath/internal/security"
)

// Daemon is the StarPath server runtime. It wires together all services.
type Daemon struct {
	Config  Config
	Store   domain.Store
	Tracker *tracker.Tracker
	Events  events.Hub
	AI      *aigen.Service
	Health  *health.Checker
	Tokens  *security.TokenManager
	Server  *api.Server

	redis  *redis.Client
	bridge *events.RedisBridge
	cancel context.CancelFunc
}

// New creates and initializes a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	cfg.ResolveSecrets()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := OpenStore(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	d := &Daemon{Config: cfg, Store: store}

	if d.Tokens, err = NewTokenManager(cfg); err != nil {
		store.Close()
		return nil, err
	}

	// Rate limiter and event hub: Redis when shared across instances,
	// in-process otherwise.
	hub := events.NewMemory(events.DefaultBuffer)
	var limiter ratelimit.Limiter = ratelimit.NewMemory()
	var redisPinger health.Pinger
	if cfg.Redis.Enabled {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rl := ratelimit.NewRedis(d.redis)
		limiter, redisPinger = rl, rl
		d.bridge = events.NewRedisBridge(hub, d.redis)
		d.Events = d.bridge
	} else {
		d.Events = hub
	}

	d.Tracker = tracker.New(store, tracker.Options{
		Rewards: cfg.Rewards,
		Events:  d.Events,
		Cache:   tracker.NewCache(cfg.API.CacheSize),
	})

	if cfg.AI.Endpoint != "" {
		gen := aigen.NewHTTPGenerator(cfg.AI.Endpoint, cfg.AI.APIKey, cfg.AITimeout())
		d.AI = aigen.NewService(gen, limiter, d.Tracker.Profiles, aigen.Limits{
			Free:    cfg.AI.FreeLimit,
			Premium: cfg.AI.PremiumLimit,
			Window:  cfg.AIWindow(),
		}, aigen.DefaultRetryPolicy(), cfg.Rewards.GenerationXP)
	} else {
		logger.Info("ai.endpoint not set, content generation disabled")
	}

	dataDir := cfg.Store.Dir
	if dataDir == "" {
		dataDir = Home()
	}
	d.Health = health.NewChecker(store, dataDir, redisPinger)

	d.Server = api.NewServer(api.Deps{
		Tracker:     d.Tracker,
		Generator:   d.AI,
		Events:      d.Events,
		Health:      d.Health,
		Tokens:      d.Tokens,
		CORSOrigins: cfg.API.CORSOrigins,
	})

	// Enable Prometheus /metrics if configured
	if cfg.Telemetry.Prometheus {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// OpenStore opens the configured persistent store.
func OpenStore(ctx context.Context, cfg Config) (domain.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		s, err := postgres.Open(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		dir := cfg.Store.Dir
		if dir == "" {
			dir = Home()
		}
		db, err := sqlite.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		return db, nil
	}
}

// NewTokenManager builds the bearer-token manager from auth.jwt_secret,
// falling back to a secret generated under the data directory.
func NewTokenManager(cfg Config) (*security.TokenManager, error) {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		var err error
		if secret, err = security.LoadOrCreateSecret(Home()); err != nil {
			return nil, fmt.Errorf("load jwt secret: %w", err)
		}
		logger.Warn("using the local jwt secret file; set auth.jwt_secret for shared deployments")
	}
	return security.NewTokenManager(secret)
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	if d.bridge != nil {
		go func() {
			if err := d.bridge.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("event relay stopped", "err", err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           d.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		// No WriteTimeout: /api/events streams for the life of the client.
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", "addr", addr, "store", d.Config.Store.Driver, "redis", d.Config.Redis.Enabled)
	fmt.Printf("StarPath serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}
