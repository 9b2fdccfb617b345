package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/scenario"
)

var migrateSeedScenario string

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations (and optionally seed a scenario)",
	RunE:  runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateSeedScenario, "seed", "", "scenario YAML file to seed after migrating (omit to skip seeding)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigOrDefault(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if noColor {
		cfg.Logging.NoColor = true
	}

	log := logger.NewWithConfig(logger.Config{
		Level:   logger.ParseLevel(cfg.Logging.ConsoleLevel),
		NoColor: cfg.Logging.NoColor,
	}).WithPrefix("migrate")

	dsn, err := resolveDSN()
	if err != nil {
		log.Warnf("no environment resolved (%v), falling back to config DSN", err)
	} else {
		cfg.Database.DSN = dsn
	}

	ctx := context.Background()
	store, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(cfg.Database.DSN); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	log.Info("migrations applied")

	if migrateSeedScenario == "" {
		return nil
	}

	sc, err := scenario.Load(migrateSeedScenario)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	if err := store.SeedScenario(ctx, sc); err != nil {
		return fmt.Errorf("seeding scenario: %w", err)
	}
	log.Infof("seeded scenario %q", sc.Name)
	return nil
}
