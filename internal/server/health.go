package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/cardsmith/cardsmith-server-go/internal/session"
)

// SessionService is the health service name that tracks the session manager.
const SessionService = "cardsmith.session"

// DefaultCheckInterval is how often registered checks run.
const DefaultCheckInterval = 10 * time.Second

// HealthCheck reports a dependency as healthy by returning nil.
type HealthCheck func(ctx context.Context) error

// HealthServer serves the standard gRPC health protocol. Each registered
// check backs one service name; the overall status ("") is SERVING only while
// every check passes.
type HealthServer struct {
	logger   *zap.Logger
	health   *health.Server
	grpc     *grpc.Server
	interval time.Duration

	mu     sync.Mutex
	checks map[string]HealthCheck
}

// NewHealthServer builds a health server with the recovery and logging
// interceptors installed.
func NewHealthServer(logger *zap.Logger, interval time.Duration) *HealthServer {
	if interval <= 0 {
		interval = DefaultCheckInterval
	}
	h := &HealthServer{
		logger:   logger,
		health:   health.NewServer(),
		interval: interval,
		checks:   make(map[string]HealthCheck),
	}
	h.grpc = grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
	healthpb.RegisterHealthServer(h.grpc, h.health)
	reflection.Register(h.grpc)
	return h
}

// AddCheck registers check under service. Status stays NOT_SERVING until the
// first run.
func (h *HealthServer) AddCheck(service string, check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[service] = check
	h.health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
}

// Refresh runs every check once and publishes the results.
func (h *HealthServer) Refresh(ctx context.Context) {
	h.mu.Lock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]HealthCheck, len(names))
	for i, name := range names {
		checks[i] = h.checks[name]
	}
	h.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	for i, name := range names {
		cctx, cancel := context.WithTimeout(ctx, h.interval)
		err := checks[i](cctx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
			if h.logger != nil {
				h.logger.Warn("health check failed", zap.String("service", name), zap.Error(err))
			}
		}
		h.health.SetServingStatus(name, st)
	}
	h.health.SetServingStatus("", overall)
}

// Server exposes the gRPC server so more services can be registered on it.
func (h *HealthServer) Server() *grpc.Server {
	return h.grpc
}

// Serve runs checks on the interval and serves gRPC on lis until ctx ends.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	h.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		h.health.Shutdown()
		h.grpc.GracefulStop()
	}()

	if h.logger != nil {
		h.logger.Info("starting gRPC health server", zap.String("address", lis.Addr().String()))
	}
	if err := h.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (h *HealthServer) ListenAndServe(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return h.Serve(ctx, lis)
}

// SessionCheck reports the manager as live when it answers a listing within
// the check deadline.
func SessionCheck(manager *session.Manager) HealthCheck {
	return func(ctx context.Context) error {
		done := make(chan int, 1)
		go func() { done <- len(manager.List()) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("session manager unresponsive: %w", ctx.Err())
		}
	}
}

// RecoveryInterceptor turns handler panics into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				if logger != nil {
					logger.Error("panic in grpc handler",
						zap.String("method", info.FullMethod),
						zap.Any("panic", r),
						zap.ByteString("stack", debug.Stack()),
					)
				}
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs each call at debug level.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if logger != nil {
			logger.Debug("grpc call",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", time.Since(start)),
				zap.String("code", status.Code(err).String()),
			)
		}
		return resp, err
	}
}
