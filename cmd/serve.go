package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/anirudhms/vani/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and WebSocket chat server",
	Long:  `Starts the vani server with the REST conversation API and the WebSocket chat endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		defer logger.Sync()

		ctx := context.Background()
		a, err := buildApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(server.Config{
			Port:     port,
			AllowAll: cfg.Server.AllowAll,
		}, a.service, a.vault, a.quotas, logger)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}

		a.persistFacts(shutdownCtx)
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
