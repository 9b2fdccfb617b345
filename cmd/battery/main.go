// Command battery runs one Battery Controller goroutine per
// counter-defense installation in the catalog: each cycles
// ready -> preparing -> launching -> reloading independently as it
// receives engagement orders addressed to its callsign.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aegis-sim/aegis-sim/pkg/battery"
	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
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
	}).WithPrefix("battery")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer store.Close()

	b := bus.New()
	defer b.Close()

	installations, err := store.InstallationsByCategory(ctx, models.CategoryCounterDefense)
	if err != nil {
		log.Fatalf("loading battery installations: %v", err)
	}
	if len(installations) == 0 {
		log.Fatalf("no counter-defense installations found in catalog")
	}

	var wg sync.WaitGroup
	for _, inst := range installations {
		controller := battery.New(cfg, b, store, clock.Real{}, log, inst.Callsign)
		wg.Add(1)
		go func(callsign string) {
			defer wg.Done()
			log.Infof("battery controller starting for %s", callsign)
			if err := controller.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("battery controller %s stopped with error: %v", callsign, err)
			}
		}(inst.Callsign)
	}

	wg.Wait()
	log.Info("all battery controllers stopped")
}
