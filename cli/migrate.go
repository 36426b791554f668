package cli

import (
	"context"
	"time"

	"github.com/fenilmodi00/ipo-tracker/config"
	"github.com/fenilmodi00/ipo-tracker/database"
	"github.com/fenilmodi00/ipo-tracker/shared"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema for the sqlite or postgres store",
		Example: `  STORE_DRIVER=sqlite ipo-tracker migrate
  STORE_DRIVER=postgres DATABASE_URL=postgres://... ipo-tracker migrate`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			app := &App{Config: cfg, Unified: cfg.Unified()}
			app.logCloser = shared.SetupLogging(app.Unified.Logging)
			defer app.Close()

			if cfg.StoreDriver == config.StoreDriverJSON {
				logrus.Info("STORE_DRIVER is json, no schema to apply")
				return nil
			}

			if err := app.connectDB(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()
			return database.Migrate(ctx, app.DB)
		},
	}
}
