// Command command runs the Command Center service standalone: it
// correlates radar detections and engine position updates into threat
// assessments, selects batteries, and dispatches engagement orders.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/command"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
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
	}).WithPrefix("command")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer store.Close()

	b := bus.New()
	defer b.Close()

	center := command.New(cfg, b, store, clock.Real{}, log)

	log.Info("command center starting")
	if err := center.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("command center stopped with error: %v", err)
	}
	log.Info("command center stopped")
}
