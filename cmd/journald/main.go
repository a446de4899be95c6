package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	grpcapi "voice-journal/internal/api/grpc"
	"voice-journal/internal/app"
	"voice-journal/internal/config"
	apihttp "voice-journal/internal/http"
	"voice-journal/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", os.Getenv("CONFIG_FILE"), "optional YAML configuration file")
	flag.Parse()

	cfg, err := config.LoadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create application")
	}
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start application")
	}

	lis, err := net.Listen("tcp", ":"+cfg.Service.GRPCPort)
	if err != nil {
		log.Fatal().Err(err).Str("port", cfg.Service.GRPCPort).Msg("failed to listen")
	}

	server := grpc.NewServer(
		grpc.UnaryInterceptor(observability.UnaryServerInterceptor(application.Metrics)),
		grpc.StreamInterceptor(observability.StreamServerInterceptor(application.Metrics)),
	)

	// Register gRPC health check service
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(grpcapi.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	// Register application services
	grpcapi.Register(server, application)

	// Enable gRPC reflection for debugging tools like grpcurl
	reflection.Register(server)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Service.HTTPPort,
		Handler:           apihttp.NewRouter(application),
		ReadHeaderTimeout: 5 * time.Second,
	}
	obsServer := observability.NewServer(cfg.Observability.MetricsAddr, nil, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return application.Relay.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Service.GRPCPort).Msg("Voice journal gRPC server started")
		return server.Serve(lis)
	})
	g.Go(func() error {
		log.Info().Str("port", cfg.Service.HTTPPort).Msg("Voice journal HTTP server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(obsServer.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down servers")
		healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// WatchState streams only end when their clients leave.
		stopped := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			server.Stop()
		}

		return errors.Join(
			httpServer.Shutdown(shutdownCtx),
			obsServer.Shutdown(shutdownCtx),
		)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
	}
	if err := application.Shutdown(); err != nil {
		os.Exit(1)
	}
}
