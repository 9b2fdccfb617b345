// Command engine runs the Simulation Engine service standalone: it
// ingests simulation.launch messages, advances munition kinematics every
// tick, checks termination conditions, and publishes missile.position.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
	"github.com/aegis-sim/aegis-sim/pkg/engine"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to simulation config YAML")
	flag.Parse()

	cfg, err := config.LoadConfigOrDefault(*configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	log := logger.NewWithConfig(logger.Config{
		Level:   logger.ParseLevel(cfg.Logging.ConsoleLevel),
		NoColor: cfg.Logging.NoColor,
	}).WithPrefix("engine")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer store.Close()

	if err := store.Migrate(cfg.Database.DSN); err != nil {
		log.Fatalf("applying migrations: %v", err)
	}

	b := bus.New()
	defer b.Close()

	eng := engine.New(cfg, b, store, clock.Real{}, log)

	log.Info("simulation engine starting")
	if err := eng.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("engine stopped with error: %v", err)
	}
	log.Info("simulation engine stopped")
}
