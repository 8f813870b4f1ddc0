// Package health serves the gRPC health protocol on the admin port, fed by periodic database probes.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/gurkanbulca/taskboard/internal/middleware"
)

// Service names reported by the health server. The empty name is the overall status.
const (
	ServiceOverall  = ""
	ServiceDatabase = "taskboard.Database"
	ServiceAPI      = "taskboard.API"
)

const (
	DefaultInterval = 15 * time.Second
	probeTimeout    = 3 * time.Second
)

// Pinger reports whether the database answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker probes the database and publishes the result through a gRPC health server
type Checker struct {
	server   *health.Server
	db       Pinger
	interval time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	last grpc_health_v1.HealthCheckResponse_ServingStatus
}

// NewChecker creates a checker. Every service starts NOT_SERVING until the first probe.
func NewChecker(db Pinger, interval time.Duration, logger *slog.Logger) *Checker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Checker{
		server:   health.NewServer(),
		db:       db,
		interval: interval,
		logger:   logger.With("component", "health"),
		last:     grpc_health_v1.HealthCheckResponse_UNKNOWN,
	}
	c.set(grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return c
}

// Server returns the health server to register on a gRPC server
func (c *Checker) Server() *health.Server {
	return c.server
}

// Probe pings the database once and updates every service status
func (c *Checker) Probe(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	status := grpc_health_v1.HealthCheckResponse_SERVING
	if err := c.db.Ping(ctx); err != nil {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		c.logger.Warn("database probe failed", "error", err)
	}

	c.mu.Lock()
	changed := status != c.last
	c.last = status
	c.mu.Unlock()

	if changed {
		c.logger.Info("serving status changed", "status", status.String())
	}
	c.set(status)
	return status
}

// Run probes immediately and then on every interval until ctx is done.
// On return every service reports NOT_SERVING.
func (c *Checker) Run(ctx context.Context) error {
	c.Probe(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return nil
		case <-ticker.C:
			c.Probe(ctx)
		}
	}
}

func (c *Checker) set(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	for _, service := range []string{ServiceOverall, ServiceDatabase, ServiceAPI} {
		c.server.SetServingStatus(service, status)
	}
}

// NewServer builds the admin gRPC server with the health service registered.
// Reflection is registered when enabled.
func NewServer(checker *Checker, enableReflection bool, logger *slog.Logger) *grpc.Server {
	if logger == nil {
		logger = slog.Default()
	}

	metadataExtractor := middleware.NewMetadataExtractorInterceptor()
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metadataExtractor.Unary(),
			middleware.LoggingInterceptor(logger),
		),
	)

	grpc_health_v1.RegisterHealthServer(server, checker.Server())
	if enableReflection {
		reflection.Register(server)
		logger.Info("gRPC reflection enabled")
	}
	return server
}
