package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/workshop/vehicleapi/internal/config"
	"github.com/workshop/vehicleapi/internal/logger"
	"github.com/workshop/vehicleapi/internal/repository/postgres"
	"github.com/workshop/vehicleapi/internal/server"
	"github.com/workshop/vehicleapi/internal/telemetry"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "vehicle-api",
	Short: "Vehicle directory API",
	Long: `Vehicle directory API. Every request is authenticated by the remote
identity service and authorized against the permissions it returns.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		// flags override the environment
		if port, _ := cmd.Flags().GetString("port"); port != "" {
			cfg.ServerPort = port
		}
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.LogLevel = level
		}
		logger.InitLogger(logger.ParseLevel(cfg.LogLevel))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the vehicles table in DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		pool, err := postgres.Connect(cmd.Context(), cfg.DatabaseURL, 5, 2*time.Second)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.New(pool).Migrate(cmd.Context()); err != nil {
			return err
		}
		logger.Default().Info("migration complete")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("port", "", "HTTP port (env: SERVER_PORT)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (env: LOG_LEVEL)")
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func serve(ctx context.Context) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.OTELServiceName, cfg.OTELEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	return srv.Start()
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Default().WithError(err).Error("server failed")
		os.Exit(1)
	}
}
