package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		ginMode string
		port    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the store and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			gin.SetMode(ginMode)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("close failed", "error", err)
				}
			}()

			if n, err := a.writeRepo.Count(ctx); err == nil {
				logger.Info("users in store", "count", n)
			}

			srv := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      a.router(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  120 * time.Second,
			}

			go func() {
				<-ctx.Done()
				logger.Info("shutting down")
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			logger.Info("authorization service listening", "port", cfg.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Listen port (overrides PORT)")
	cmd.Flags().StringVar(&ginMode, "gin-mode", gin.ReleaseMode, "Gin mode (debug, release, test)")
	return cmd
}
