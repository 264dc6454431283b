package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nekogravitycat/hospitality-booking-backend/internal/config"
	"github.com/nekogravitycat/hospitality-booking-backend/internal/db"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return fmt.Errorf("migrate requires STORE=%s", config.StorePostgres)
			}

			pool, err := db.NewPool(cmd.Context(), cfg.DBDSN)
			if err != nil {
				return fmt.Errorf("failed to connect to db: %w", err)
			}
			defer pool.Close()

			return db.Migrate(cmd.Context(), pool, log)
		},
	}
}
