package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/config"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/pkg/logger"
)

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hospitality-booking",
		Short:         "Booking backend for rooms, tables and other bookable resources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	return cmd
}

// bootstrap loads configuration and builds the logger every command shares.
func bootstrap() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(logger.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  cfg.IsProduction,
	})
	return cfg, log, nil
}
