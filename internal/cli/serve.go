package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/app"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/config"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/db"
)

const shutdownTimeout = 5 * time.Second

func NewServeCmd() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// For receiving Ctrl+C / SIGTERM
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}

			if migrate && cfg.Store == config.StorePostgres {
				pool, err := db.NewPool(ctx, cfg.DBDSN)
				if err != nil {
					return fmt.Errorf("failed to connect to db: %w", err)
				}
				err = db.Migrate(ctx, pool, log)
				pool.Close()
				if err != nil {
					return err
				}
			}

			container, err := app.NewContainer(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			// Use http.Server for graceful shutdown
			server := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           container.Router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serveErr := make(chan error, 1)
			go func() {
				log.Infof("server running on %s", cfg.HTTPAddr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			case <-ctx.Done():
				log.Info("shutdown signal received")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.WithError(err).Warn("server forced to shutdown")
			}

			log.Info("server exited gracefully")
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}
