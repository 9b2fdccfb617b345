// Command radar runs the Radar Subsystem service standalone: it samples
// detection probability for every live munition position against each
// detection_system installation and publishes radar.detection events.
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
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/radar"
	"github.com/aegis-sim/aegis-sim/pkg/randsrc"
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
	}).WithPrefix("radar")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer store.Close()

	b := bus.New()
	defer b.Close()

	sub := radar.New(cfg, b, store, clock.Real{}, randsrc.New(cfg.Scenario.RandomSeed), log)

	log.Info("radar subsystem starting")
	if err := sub.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("radar subsystem stopped with error: %v", err)
	}
	log.Info("radar subsystem stopped")
}
