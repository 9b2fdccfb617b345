package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aegis-sim/aegis-sim/pkg/battery"
	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/command"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
	"github.com/aegis-sim/aegis-sim/pkg/engine"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
	"github.com/aegis-sim/aegis-sim/pkg/radar"
	"github.com/aegis-sim/aegis-sim/pkg/randsrc"
	"github.com/aegis-sim/aegis-sim/pkg/reporting"
	"github.com/aegis-sim/aegis-sim/pkg/scenario"
	"github.com/aegis-sim/aegis-sim/pkg/service"
	"github.com/aegis-sim/aegis-sim/pkg/utils"
)

var (
	scenarioPath string
	autoLaunch   bool
	reportDir    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation: engine, radar, command center, and batteries in one process",
	Long: `run seeds the catalog, then starts the Simulation Engine, Radar
Subsystem, Command Center, and one Battery Controller per counter-defense
installation as goroutines sharing a single Event Bus. Press Ctrl-C to
stop; a run summary is printed and saved on shutdown.`,
	RunE: runSimulation,
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "scenario YAML file (default: baseline scenario)")
	runCmd.Flags().BoolVar(&autoLaunch, "launch", false, "prompt to launch an attack missile after startup")
	runCmd.Flags().StringVar(&reportDir, "report-dir", "", "directory to save the run report (default: current directory)")
}

func runSimulation(cmd *cobra.Command, args []string) error {
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
	}).WithPrefix("aegis-cli")

	dsn, err := resolveDSN()
	if err != nil {
		log.Warnf("no environment resolved (%v), falling back to config DSN", err)
	} else {
		cfg.Database.DSN = dsn
	}

	sc := scenario.Default()
	if scenarioPath != "" {
		sc, err = scenario.Load(scenarioPath)
		if err != nil {
			return fmt.Errorf("loading scenario: %w", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()

	if err := logger.WithSpinner("applying migrations", func() error {
		return store.Migrate(cfg.Database.DSN)
	}); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	if err := logger.WithSpinner(fmt.Sprintf("seeding scenario %s", sc.Name), func() error {
		return store.SeedScenario(ctx, sc)
	}); err != nil {
		return fmt.Errorf("seeding scenario %s: %w", sc.Name, err)
	}
	log.Infof("seeded scenario %q (%d platform types, %d installations)", sc.Name, len(sc.PlatformTypes), len(sc.Installations))

	// One shared Bus for every component in this process: the engine's
	// missile.position feed reaches the radar and command center, the
	// radar's radar.detection feed reaches the command center, and the
	// command center's engagement orders reach whichever battery
	// controller owns the addressed callsign.
	b := bus.New()
	defer b.Close()

	runID := uuid.New().String()
	report := reporting.New(runID)

	clk := clock.Real{}
	rnd := randsrc.New(cfg.Scenario.RandomSeed)

	services := []service.Service{
		engine.New(cfg, b, store, clk, log.WithPrefix("engine")),
		radar.New(cfg, b, store, clk, rnd, log.WithPrefix("radar")),
		command.New(cfg, b, store, clk, log.WithPrefix("command")),
	}

	batteryInstallations, err := store.InstallationsByCategory(ctx, models.CategoryCounterDefense)
	if err != nil {
		return fmt.Errorf("loading battery installations: %w", err)
	}
	for _, inst := range batteryInstallations {
		services = append(services, battery.New(cfg, b, store, clk, log.WithPrefix("battery."+inst.Callsign), inst.Callsign))
	}

	var wg sync.WaitGroup
	for _, svc := range services {
		wg.Add(1)
		go func(s service.Service) {
			defer wg.Done()
			log.Infof("%s starting: %s", s.Name(), s.Description())
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				log.Errorf("%s stopped with error: %v", s.Name(), err)
			}
		}(svc)
	}

	subscribeEvents(b, report, log)

	if autoLaunch {
		if err := promptAndLaunch(ctx, b, sc); err != nil {
			log.Errorf("launch prompt failed: %v", err)
		}
	}

	log.Info("simulation running, press Ctrl-C to stop")
	<-ctx.Done()
	log.Info("shutting down")

	for _, svc := range services {
		if err := svc.Stop(); err != nil {
			log.Warnf("%s: stop error: %v", svc.Name(), err)
		}
	}
	wg.Wait()

	report.PrintSummary()

	gen := reporting.NewGenerator(report, reporting.ReportConfig{OutputDir: reportDirOrDefault(), DetailLevel: "full"})
	rep, err := gen.Generate()
	if err != nil {
		return fmt.Errorf("generating report: %w", err)
	}
	path, err := gen.Save(rep)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	log.Infof("report saved to %s", path)

	return nil
}

func reportDirOrDefault() string {
	if reportDir != "" {
		return reportDir
	}
	return "."
}

// subscribeEvents drives the reporting logger from bus traffic so the
// end-of-run summary reflects every launch, detection, order, intercept,
// and impact published during the run.
func subscribeEvents(b *bus.Bus, report *reporting.Logger, log logger.Logger) {
	subscribe := func(subject string, handle func([]byte)) {
		sub, err := b.Subscribe(subject, 64)
		if err != nil {
			log.Warnf("subscribing to %s for reporting: %v", subject, err)
			return
		}
		go func() {
			for msg := range sub.Messages() {
				handle(msg.Payload)
			}
		}()
	}

	subscribe(bus.SubjectSimulationLaunch, func(payload []byte) {
		var m bus.LaunchMessage
		if err := bus.Decode(payload, &m); err == nil {
			// LaunchMessage precedes the engine assigning the new munition
			// its own ID; the later missile.position/impact events carry it.
			report.LogLaunch(uuid.Nil, m.MissileType, m.LaunchCallsign)
		}
	})
	subscribe(bus.SubjectRadarDetection, func(payload []byte) {
		var m bus.DetectionMessage
		if err := bus.Decode(payload, &m); err == nil {
			report.LogDetection(m.RadarCallsign, m.MissileID, m.Confidence)
		}
	})
	subscribe(bus.SubjectEngagementOrders, func(payload []byte) {
		var m bus.EngagementOrderMessage
		if err := bus.Decode(payload, &m); err == nil {
			report.LogEngagementOrder(m.TargetMissileID, m.BatteryCallsign, m.ProbabilityOfSuccess)
		}
	})
	subscribe(bus.SubjectMissileIntercept, func(payload []byte) {
		var m bus.InterceptMessage
		if err := bus.Decode(payload, &m); err == nil {
			report.LogIntercept(m.DefenseMissileID, m.TargetMissileID)
		}
	})
	subscribe(bus.SubjectMissileImpact, func(payload []byte) {
		var m bus.ImpactMessage
		if err := bus.Decode(payload, &m); err == nil {
			report.LogImpact(m.MissileID, m.OutcomeType, m.TargetAchieved)
		}
	})
	subscribe(bus.SubjectEngagementResult, func(payload []byte) {
		var m bus.EngagementResultMessage
		if err := bus.Decode(payload, &m); err == nil && !m.Success {
			report.LogError(fmt.Sprintf("engagement against %s failed", m.TargetMissileID), fmt.Errorf("%s", m.FailureReason))
		}
	})
}

// promptAndLaunch interactively collects an attack-missile launch and
// publishes it on simulation.launch, mirroring the teacher's
// PromptForParameters-driven scenario launch idiom.
func promptAndLaunch(ctx context.Context, b *bus.Bus, sc *scenario.Scenario) error {
	var attackTypes []string
	for _, pt := range sc.PlatformTypes {
		if pt.Category == models.CategoryAttack {
			attackTypes = append(attackTypes, pt.Nickname)
		}
	}
	if len(attackTypes) == 0 {
		return fmt.Errorf("scenario %s has no attack platform types", sc.Name)
	}

	var confirmed bool
	if err := survey.AskOne(&survey.Confirm{Message: "Launch an attack missile now?", Default: true}, &confirmed); err != nil {
		return err
	}
	if !confirmed {
		return nil
	}

	params := []utils.Parameter{
		{Name: "platform", Description: "Attack platform", Type: "string", Options: attackTypes, Default: attackTypes[0], Required: true},
		{Name: "launch_callsign", Description: "Launch installation callsign", Type: "string", Default: "A1-LAUNCH", Required: true},
		{Name: "target_lon", Description: "Target longitude", Type: "float", Default: -157.86},
		{Name: "target_lat", Description: "Target latitude", Type: "float", Default: 21.31},
		{Name: "target_alt", Description: "Target altitude (m)", Type: "float", Default: 0.0},
	}

	values, err := utils.PromptForParameters(params)
	if err != nil {
		return err
	}

	var launchInst *models.Installation
	for i := range sc.Installations {
		if sc.Installations[i].Callsign == values["launch_callsign"] {
			launchInst = &sc.Installations[i]
			break
		}
	}
	if launchInst == nil {
		return fmt.Errorf("no installation with callsign %q in scenario", values["launch_callsign"])
	}

	msg := bus.LaunchMessage{
		Type:             "missile_launch",
		PlatformNickname: values["platform"].(string),
		LaunchCallsign:   launchInst.Callsign,
		LaunchLat:        launchInst.Lat,
		LaunchLon:        launchInst.Lon,
		LaunchAlt:        launchInst.AltitudeM,
		TargetLat:        values["target_lat"].(float64),
		TargetLon:        values["target_lon"].(float64),
		TargetAlt:        values["target_alt"].(float64),
		MissileType:      "attack",
		Timestamp:        time.Now(),
	}

	payload, err := bus.Encode(msg)
	if err != nil {
		return fmt.Errorf("encoding launch message: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return b.PublishReliable(publishCtx, bus.SubjectSimulationLaunch, payload)
}
