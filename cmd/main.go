package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "speech-diarization-service/internal/api/grpc"
	"speech-diarization-service/internal/app"
	"speech-diarization-service/internal/config"
	httpapi "speech-diarization-service/internal/http"
	"speech-diarization-service/internal/observability"
	"speech-diarization-service/internal/observability/metrics"
)

const shutdownTimeout = 30 * time.Second

func main() {
	help := flag.Bool("help", false, "Print the environment variables the service reads and exit")
	flag.Parse()
	if *help {
		fmt.Println(config.Usage())
		return
	}

	cfg := config.MustLoad()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Observability server (metrics + health)
	obsServer := observability.NewServer(":"+cfg.Observability.MetricsPort, application.Ready)
	obsServer.Start()

	// Websocket feed of transcript events
	hub := httpapi.NewHub()
	go hub.Run(ctx)
	application.Publisher.Subscribe(hub.Broadcast)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           httpapi.NewRouter(application, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("Failed to listen")
	}

	// gRPC server with observability interceptors
	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(metrics.DefaultMetrics)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(metrics.DefaultMetrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	// Register application services
	grpcapi.Register(grpcServer, application.Transcripts)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(grpcServer)

	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("gRPC server started")
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("gRPC serve failed")
		}
	}()

	go func() {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP serve failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown failed")
	}
	grpcServer.GracefulStop()

	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Application shutdown failed")
	}
	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}
