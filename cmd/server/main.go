package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"parley/cmd/server/config"
	"parley/internal/gateway"
	"parley/internal/observability"

	grpcpkg "google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const healthServiceName = "parley.gateway"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func run(ctx context.Context) error {
	gatewayCfg, err := config.LoadGateway()
	if err != nil {
		return err
	}
	verifier, err := buildVerifier()
	if err != nil {
		return err
	}

	store, cleanupStore := buildMessageStore(ctx, os.Getenv("DATABASE_URL"), log.Printf)
	defer cleanupStore()

	events, cleanupEvents, err := buildEventLog(ctx)
	if err != nil {
		return err
	}
	defer cleanupEvents()

	completions, err := buildCompletionClient()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	limiter := gateway.NewRateLimiter(gatewayCfg.RateLimitInterval, gatewayCfg.RateLimitBurst, metrics.AddRateLimitWait)

	opts := gateway.Options{
		Limiter:      limiter,
		Metrics:      metrics,
		HistoryLimit: gatewayCfg.HistoryLimit,
	}
	if events != nil {
		opts.Events = events
	}
	gw := gateway.New(verifier, store, completions, opts)

	reaper := gateway.NewReaper(gw.Registry(), gatewayCfg.SweepInterval, gatewayCfg.IdleTimeout, metrics)
	go reaper.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", gateway.NewServer(gw))
	wsSrv := &http.Server{
		Addr:    gatewayCfg.Addr,
		Handler: mux,
	}

	grpcSrv, healthServer, err := startHealthServer()
	if err != nil {
		return err
	}

	obsSrv, obsErr := startObservabilityServer(metrics)
	if obsErr != nil {
		return obsErr
	}

	log.Printf("gateway listening on %s", gatewayCfg.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.MarkShutdown(int64(gw.Registry().Len()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = wsSrv.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		if obsSrv != nil {
			obsCtx, cancelObs := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelObs()
			_ = obsSrv.Shutdown(obsCtx)
		}
		return nil
	case err := <-errCh:
		return err
	}
}

// newHealthServer assembles the standard gRPC health protocol server so
// orchestrators can probe readiness without speaking the WebSocket protocol.
func newHealthServer() (*grpcpkg.Server, *health.Server) {
	server := grpcpkg.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	if env := os.Getenv("APP_ENV"); env != "production" {
		reflection.Register(server)
		log.Println("gRPC reflection enabled (APP_ENV=", env, ")")
	}

	return server, healthServer
}

func startHealthServer() (*grpcpkg.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", ":50051")
	if err != nil {
		return nil, nil, err
	}

	server, healthServer := newHealthServer()
	go func() {
		if err := server.Serve(lis); err != nil {
			log.Printf("health server error: %v", err)
		}
	}()

	return server, healthServer, nil
}

func startObservabilityServer(metrics *observability.Metrics) (*http.Server, error) {
	cfg, err := config.LoadObservability()
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler(metrics))
	mux.Handle("/healthz", observability.Healthz())

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("observability server error: %v", err)
		}
	}()

	return srv, nil
}
