// Package health drives the grpc.health.v1 status from database reachability.
package health

import (
	"context"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/authkeeper-server/internal/logger"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "authkeeper.Auth"

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker periodically pings the database and flips the health status.
type Checker struct {
	server   *health.Server
	pinger   Pinger
	interval time.Duration
	logger   *logger.Logger
}

// NewChecker creates a Checker. The status starts as NOT_SERVING until the first ping succeeds.
func NewChecker(pinger Pinger, interval time.Duration, logger *logger.Logger) *Checker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Checker{
		server:   srv,
		pinger:   pinger,
		interval: interval,
		logger:   logger,
	}
}

// Server returns the health service to register on a gRPC server.
func (c *Checker) Server() healthpb.HealthServer {
	return c.server
}

// Run checks immediately and then every interval until ctx is done, after
// which every service reports NOT_SERVING.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			c.server.Shutdown()
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check pings once and updates the status.
func (c *Checker) Check(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, c.interval)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := c.pinger.Ping(pingCtx); err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
		c.logger.Warn("Health checker: database ping failed",
			"error", err.Error())
	}
	c.server.SetServingStatus("", status)
	c.server.SetServingStatus(ServiceName, status)
}
