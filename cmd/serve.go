package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cytodash/dashboard"
	"cytodash/db"
	qhttp "cytodash/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the prediction dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("port"); port != 0 {
			cfg.Server.Port = port
		}

		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		opts := dashboard.OptionsFromConfig(cfg)
		opts.Logger = logger
		opts.Metrics = dashboard.NewMetrics(reg)
		deps := qhttp.Deps{Gatherer: reg, Logger: logger}

		if cfg.History.Enabled {
			store, err := db.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history database: %w", err)
			}
			defer store.Close()
			logger.Info("prediction history enabled", zap.String("path", cfg.History.Path))
			opts.History = store
			deps.History = store
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		manager, err := dashboard.NewManager(opts)
		if err != nil {
			return err
		}
		if err := manager.Load(ctx); err != nil {
			return fmt.Errorf("load reference data: %w", err)
		}
		defer manager.Close()
		deps.Manager = manager

		server := qhttp.NewServer(qhttp.ServerConfig{
			Port:           cfg.Server.Port,
			Timeout:        cfg.Server.Timeout,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}, deps)

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Stop(shutdownCtx); err != nil {
			logger.Warn("server forced to shutdown", zap.Error(err))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "Listen port (overrides server.port)")
}
