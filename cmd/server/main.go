package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openctemio/console/internal/config"
	"github.com/openctemio/console/internal/infra/http"
	"github.com/openctemio/console/internal/infra/http/middleware"
	"github.com/openctemio/console/internal/infra/http/routes"
	"github.com/openctemio/console/internal/infra/postgres"
	"github.com/openctemio/console/internal/infra/redis"
	"github.com/openctemio/console/pkg/jwt"
	"github.com/openctemio/console/pkg/logger"
	"github.com/openctemio/console/pkg/migrations"
	"github.com/openctemio/console/pkg/validator"
)

// Command line flags.
var (
	migrateOnly   = flag.Bool("migrate", false, "Apply pending database migrations and exit")
	migrateDown   = flag.Bool("migrate-down", false, "Roll back the last applied migration and exit")
	migrateStatus = flag.Bool("migrate-status", false, "Print the migration status and exit")
	showRoutes    = flag.Bool("routes", false, "Print all registered routes and exit")
	routeFormat   = flag.String("route-format", "table", "Route output format: table, json")
	routeMethod   = flag.String("route-method", "", "Filter routes by HTTP method")
	routePath     = flag.String("route-path", "", "Filter routes containing this path")
)

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	ctx := context.Background()

	// ==========================================================================
	// Configuration & Logger
	// ==========================================================================
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env, "storage", cfg.Storage.Driver)

	// ==========================================================================
	// Storage
	// ==========================================================================
	var (
		db    *postgres.DB
		repos *Repositories
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		repos = NewMemoryRepositories()
		log.Warn("using in-memory storage, state is lost on restart")
	default:
		db, err = postgres.New(&cfg.Database)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			return 1
		}
		defer closeWithLog(db, "database", log)
		log.Info("database connected")

		runner := migrations.NewRunner(db.DB, cfg.Storage.Migrations, log)
		switch {
		case *migrateStatus:
			return printMigrationStatus(ctx, runner, log)
		case *migrateDown:
			if err := runner.Down(ctx); err != nil {
				log.Error("failed to roll back migration", "error", err)
				return 1
			}
			return 0
		case *migrateOnly || cfg.Storage.AutoMigrate:
			applied, err := runner.Up(ctx)
			if err != nil {
				log.Error("failed to apply migrations", "error", err)
				return 1
			}
			log.Info("migrations applied", "count", applied)
		}
		repos = NewPostgresRepositories(db)
	}
	if *migrateOnly || *migrateDown || *migrateStatus {
		return 0
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(&cfg.Redis, log)
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			return 1
		}
		defer closeWithLog(redisClient, "redis", log)
	}

	// ==========================================================================
	// Services & Handlers
	// ==========================================================================
	services, err := NewServices(&ServiceDeps{
		Config:      cfg,
		Log:         log,
		Repos:       repos,
		RedisClient: redisClient,
	})
	if err != nil {
		log.Error("failed to initialize services", "error", err)
		return 1
	}
	log.Info("services initialized",
		"module_root", cfg.Modules.Root,
		"group_move", services.Assembly.GroupMoveMode(),
	)

	handlers := NewHandlers(&HandlerDeps{
		Log:         log,
		Validator:   validator.New(),
		DB:          db,
		RedisClient: redisClient,
		Services:    services,
	})

	// ==========================================================================
	// HTTP Server
	// ==========================================================================
	server := http.NewServer(cfg, log)

	lifecycleLimit, stopLifecycleLimit := middleware.LifecycleRateLimitWithStop(&cfg.RateLimit, log)
	server.OnShutdown(stopLifecycleLimit)

	routes.Register(server.Router(), handlers, routes.Middlewares{
		Auth:      middleware.Auth(jwt.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer), log),
		Lifecycle: lifecycleLimit,
	})

	if *showRoutes {
		stats := http.FilterRoutes(http.CollectRoutes(server.Router()), http.RouteFilters{
			Method: *routeMethod,
			Path:   *routePath,
		})
		if err := http.PrintRoutes(os.Stdout, stats, *routeFormat); err != nil {
			log.Error("failed to print routes", "error", err)
			return 1
		}
		return 0
	}

	// ==========================================================================
	// Start Server
	// ==========================================================================
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()
	log.Info("application started", "http_addr", cfg.Server.Addr())

	// ==========================================================================
	// Graceful Shutdown
	// ==========================================================================
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			log.Error("server error", "error", err)
			return 1
		}
	}

	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

// =============================================================================
// Helper Functions
// =============================================================================

func initLogger(cfg *config.Config) *logger.Logger {
	var log *logger.Logger
	if cfg.IsProduction() {
		//nolint:gosec // G115: SamplingThreshold is validated non-negative in config.Validate()
		threshold := uint64(cfg.Log.SamplingThreshold)
		log = logger.New(logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Sampling: logger.SamplingConfig{
				Enabled:   cfg.Log.SamplingEnabled,
				Tick:      time.Second,
				Threshold: threshold,
				Rate:      cfg.Log.SamplingRate,
			},
		})
	} else {
		log = logger.NewDevelopment()
	}
	log.SetDefault()
	return log
}

func printMigrationStatus(ctx context.Context, runner *migrations.Runner, log *logger.Logger) int {
	entries, err := runner.Status(ctx)
	if err != nil {
		log.Error("failed to read migration status", "error", err)
		return 1
	}
	for _, e := range entries {
		state := "pending"
		if e.Applied {
			state = "applied " + e.AppliedAt.Format(time.RFC3339)
		}
		fmt.Printf("%-40s %s\n", e.Migration.String(), state)
	}
	return 0
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
