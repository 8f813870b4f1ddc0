package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/gurkanbulca/taskboard/internal/broker"
	"github.com/gurkanbulca/taskboard/internal/config"
	"github.com/gurkanbulca/taskboard/internal/database"
	"github.com/gurkanbulca/taskboard/internal/events"
	"github.com/gurkanbulca/taskboard/internal/handler"
	"github.com/gurkanbulca/taskboard/internal/health"
	"github.com/gurkanbulca/taskboard/internal/middleware"
	"github.com/gurkanbulca/taskboard/internal/repository"
	"github.com/gurkanbulca/taskboard/internal/scheduler"
	"github.com/gurkanbulca/taskboard/internal/service"
	"github.com/gurkanbulca/taskboard/internal/stomp"
	"github.com/gurkanbulca/taskboard/pkg/auth"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	fs := config.Flags("taskboard")
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "invalid arguments: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fatal(slog.Default(), "failed to load config", err)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fatal(logger, "invalid configuration", err)
	}

	// Connect to database
	db, err := database.Open(database.Config{
		Driver:   cfg.Database.Driver,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Path:     cfg.Database.Path,
		Debug:    cfg.Database.Debug,
	}, logger)
	if err != nil {
		fatal(logger, "failed to connect to database", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run auto migration
	if cfg.Server.AutoMigrate {
		if err := runAutoMigration(ctx, db, logger); err != nil {
			fatal(logger, "failed to run auto migration", err)
		}
	}

	// Initialize auth
	tokenManager := auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.Issuer)
	passwordManager := auth.NewPasswordManagerWithCost(cfg.Auth.BcryptCost)

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	group, gctx := errgroup.WithContext(ctx)

	// Publish/subscribe channel, optionally relayed across instances
	b := broker.New(logger)
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = broker.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			fatal(logger, "failed to connect to redis", err)
		}
		relay := broker.NewRedisRelay(redisClient, cfg.Redis.Channel, logger)
		b.SetRelay(relay)
		group.Go(func() error { return relay.Run(gctx, b) })
	}
	fanOut := events.NewFanOut(b, notificationRepo, logger)

	// Initialize services
	securityLogger := service.NewSecurityLogger(logger)
	userService := service.NewUserService(userRepo)
	authService := service.NewAuthService(userRepo, tokenManager, passwordManager, securityLogger)
	taskService := service.NewTaskService(taskRepo, userRepo, fanOut, logger)

	seedAccounts(ctx, cfg.Seed, service.NewSeeder(userRepo, taskRepo, passwordManager, logger), logger)

	app := handler.NewApp(gctx, handler.Config{
		CORSOrigins:    cfg.Server.CORSOrigins,
		LoginRateLimit: cfg.Auth.LoginRateLimit,
		QueueSize:      stomp.DefaultQueueSize,
	}, handler.Dependencies{
		Auth:          authService,
		Users:         userService,
		Tasks:         taskService,
		Comments:      service.NewCommentService(commentRepo, taskRepo, userRepo),
		Activities:    service.NewActivityService(activityRepo, taskRepo, userRepo),
		Notifications: service.NewNotificationService(notificationRepo),
		Authenticator: middleware.NewAuthenticator(tokenManager, userService).WithRejectionLogger(securityLogger),
		Validator:     middleware.NewValidator(middleware.DefaultValidationConfig(), passwordManager),
		Gate:          stomp.NewGate(tokenManager, userService),
		Broker:        b,
		Security:      securityLogger,
		Database:      db,
		Logger:        logger,
	})

	// Admin gRPC server with health checks
	checker := health.NewChecker(db, health.DefaultInterval, logger)
	grpcServer := health.NewServer(checker, cfg.IsDevelopment(), logger)
	listener, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		fatal(logger, "failed to listen", err)
	}

	group.Go(func() error {
		logger.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := app.Listen(":" + cfg.Server.HTTPPort); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		logger.Info("gRPC admin server listening", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(listener); err != nil {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	group.Go(func() error { return checker.Run(gctx) })
	if cfg.Scheduler.Enabled {
		poller := scheduler.NewPoller(taskRepo, fanOut, cfg.Scheduler.Interval, cfg.Scheduler.DueSoonWindow, logger)
		group.Go(func() error { return poller.Run(gctx) })
	}

	// Stop both servers once any component fails or shutdown begins
	group.Go(func() error {
		<-gctx.Done()
		stopGRPC(grpcServer, shutdownTimeout)
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	var once sync.Once
	var stopErr error
	stop := func(ctx context.Context) error {
		once.Do(func() {
			logger.Info("shutting down")
			cancel()

			done := make(chan error, 1)
			go func() { done <- group.Wait() }()
			select {
			case stopErr = <-done:
			case <-ctx.Done():
				stopErr = ctx.Err()
			}

			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					logger.Warn("failed to close redis client", "error", err)
				}
			}
			if err := db.Close(); err != nil {
				logger.Warn("failed to close database connection", "error", err)
			}
		})
		return stopErr
	}

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, map[string]gfshutdown.Operation{
		"taskboard": stop,
	})

	var exitCode int
	select {
	case <-gctx.Done():
		if ctx.Err() == nil {
			// A component failed before any signal arrived
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			err := stop(stopCtx)
			stopCancel()
			fatal(logger, "server stopped", err)
		}
		exitCode = <-wait
	case exitCode = <-wait:
	}

	logger.Info("server shutdown complete", "exit_code", exitCode)
	os.Exit(exitCode)
}

// runAutoMigration creates or updates the schema
func runAutoMigration(ctx context.Context, db *database.DB, logger *slog.Logger) error {
	logger.Info("running auto migration")
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("run auto migration: %w", err)
	}
	logger.Info("auto migration completed")
	return nil
}

// seedAccounts creates test and demo data when enabled. Failures are logged, not fatal.
func seedAccounts(ctx context.Context, cfg config.SeedConfig, seeder *service.Seeder, logger *slog.Logger) {
	if cfg.TestUsers {
		if err := seeder.SeedTestUsers(ctx); err != nil {
			logger.Warn("failed to seed test users", "error", err)
		}
	}
	if cfg.DemoData {
		if err := seeder.SeedDemoData(ctx); err != nil {
			logger.Warn("failed to seed demo data", "error", err)
		}
	}
}

// stopGRPC drains in-flight calls, forcing the stop after timeout
func stopGRPC(server *grpc.Server, timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		server.Stop()
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
