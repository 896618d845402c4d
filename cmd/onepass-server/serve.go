package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Techtrust201/cannes-one-pass/internal/config"
	"github.com/Techtrust201/cannes-one-pass/internal/grpchealth"
	"github.com/Techtrust201/cannes-one-pass/internal/httpapi"
	"github.com/Techtrust201/cannes-one-pass/internal/logging"
	"github.com/Techtrust201/cannes-one-pass/internal/metrics"
	"github.com/Techtrust201/cannes-one-pass/internal/onepass/service"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and gRPC health server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	graph, err := loadGraph(cfg)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	svc := service.NewAccreditationService(service.Config{
		Store:    st,
		Graph:    graph,
		Gate:     service.NewActorPolicy(cfg.AllowAll, cfg.AllowedActors),
		Location: loc,
		Logger:   logger,
		Metrics:  m,
	})

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	collector := service.NewOccupancyCollector(st, m, cfg.OccupancyInterval, logger)
	collector.Start(ctx)
	defer collector.Stop()

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:      logger,
		Addr:        cfg.HTTPAddr,
		Service:     svc,
		Metrics:     m,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "storage", cfg.StorageDriver)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	var health *grpchealth.Server
	if cfg.GRPCAddr != "" {
		health = grpchealth.New(cfg.GRPCAddr, st, 0, logger)
		go health.Watch(ctx)
		go func() {
			if err := health.ListenAndServe(); err != nil {
				logger.Error("grpc server error", "err", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if health != nil {
		health.Stop()
	}
	return srv.Shutdown(shutdownCtx)
}

// loadConfig is shared by the maintenance commands, which log to stderr so
// their stdout stays machine readable.
func loadConfig(configPath string) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	return cfg, nil
}
