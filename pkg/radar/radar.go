// Package radar implements the Radar Subsystem: per-installation detection
// sampling against every live munition position, correlated into Tracks,
// published as radar.detection events. Concurrency for the per-radar
// probability checks on one position message is bounded by a worker pool
// of size 10, via sourcegraph/conc, as the concurrency model mandates.
package radar

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/db"
	"github.com/aegis-sim/aegis-sim/pkg/geo"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
	"github.com/aegis-sim/aegis-sim/pkg/randsrc"
)

const (
	detectionBaseProbability = 0.8
	detectionNoiseSigma      = 0.05
	trackConfidenceStep      = 0.1
	trackConfidenceCap       = 0.95
)

type radarState struct {
	installation models.Installation
	platform     models.PlatformType
	interval     time.Duration
	lastScan     time.Time
	limiter      *rate.Limiter
}

// Subsystem is the Radar Subsystem component.
type Subsystem struct {
	cfg   *config.SimulationConfig
	bus   *bus.Bus
	store *db.DB
	clock clock.Clock
	rnd   randsrc.Source
	log   logger.Logger

	mu      sync.Mutex
	radars  []*radarState
	tracks  map[uuid.UUID]*models.Track

	sub      *bus.Subscription
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New constructs a Subsystem. clk/rnd default to production implementations
// when nil.
func New(cfg *config.SimulationConfig, b *bus.Bus, store *db.DB, clk clock.Clock, rnd randsrc.Source, log logger.Logger) *Subsystem {
	if clk == nil {
		clk = clock.Real{}
	}
	if rnd == nil {
		rnd = randsrc.New(cfg.Scenario.RandomSeed)
	}
	if log == nil {
		log = logger.New()
	}
	return &Subsystem{
		cfg:    cfg,
		bus:    b,
		store:  store,
		clock:  clk,
		rnd:    rnd,
		log:    log.WithPrefix("radar"),
		tracks: make(map[uuid.UUID]*models.Track),
		stopCh: make(chan struct{}),
	}
}

func (s *Subsystem) Name() string        { return "radar" }
func (s *Subsystem) Description() string { return "Samples detections against live munitions and correlates tracks" }

func (s *Subsystem) Configure(cfg *config.SimulationConfig, b *bus.Bus) error {
	s.cfg = cfg
	s.bus = b
	return nil
}

// loadInstallations fetches every detection_system installation and derives
// its scan interval from sweep rate, per §4.3.
func (s *Subsystem) loadInstallations(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	installations, err := s.store.InstallationsByCategory(ctx, models.CategoryDetectionSystem)
	if err != nil {
		return fmt.Errorf("loading radar installations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.radars = s.radars[:0]
	for _, inst := range installations {
		pt, err := s.store.PlatformType(ctx, inst.PlatformType)
		if err != nil {
			s.log.Errorf("unknown platform for radar %s: %v", inst.Callsign, err)
			continue
		}
		intervalMS := clampFloat(float64(s.cfg.Radar.BaselineUpdateIntervalMS)*(60/pt.SweepRateDegPerSec), 100, 5000)
		s.radars = append(s.radars, &radarState{
			installation: inst,
			platform:     pt,
			interval:     time.Duration(intervalMS) * time.Millisecond,
			limiter:      rate.NewLimiter(rate.Limit(s.cfg.Radar.DutyCycleHz), 1),
		})
	}
	return nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Run subscribes to missile.position and dispatches per-radar detection
// sampling until ctx is cancelled.
func (s *Subsystem) Run(ctx context.Context) error {
	if err := s.loadInstallations(ctx); err != nil {
		return err
	}

	sub, err := s.bus.Subscribe(bus.SubjectMissilePosition, 256)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", bus.SubjectMissilePosition, err)
	}
	s.sub = sub
	defer sub.Unsubscribe()

	ttlTicker := time.NewTicker(5 * time.Second)
	defer ttlTicker.Stop()

	s.log.Infof("radar subsystem started with %d installation(s)", len(s.radars))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case msg := <-sub.Messages():
			var pm bus.PositionMessage
			if err := bus.Decode(msg.Payload, &pm); err != nil {
				s.log.Errorf("malformed position message: %v", err)
				continue
			}
			s.handlePosition(ctx, pm)
		case <-ttlTicker.C:
			s.expireIdleTracks()
		}
	}
}

func (s *Subsystem) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

// handlePosition updates the track for this missile and fans out the
// per-radar eligibility/probability check across a bounded worker pool.
func (s *Subsystem) handlePosition(ctx context.Context, pm bus.PositionMessage) {
	s.touchTrack(pm.ID)

	s.mu.Lock()
	radars := make([]*radarState, len(s.radars))
	copy(radars, s.radars)
	s.mu.Unlock()

	if len(radars) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(s.cfg.Radar.WorkerPoolSize)
	now := s.clock.Now()

	for _, r := range radars {
		r := r
		p.Go(func() {
			s.evaluateRadar(r, pm, now)
		})
	}
	p.Wait()
}

func (s *Subsystem) touchTrack(missileID uuid.UUID) *models.Track {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	t, ok := s.tracks[missileID]
	if !ok {
		t = &models.Track{
			MissileID:       missileID,
			FirstDetection:  now,
			DetectingRadars: make(map[string]struct{}),
		}
		s.tracks[missileID] = t
	}
	t.LastDetection = now
	return t
}

// evaluateRadar runs the detection-probability formula from §4.3 for one
// radar against one position sample, publishing radar.detection on success.
func (s *Subsystem) evaluateRadar(r *radarState, pm bus.PositionMessage, now time.Time) {
	if now.Sub(r.lastScan) < r.interval {
		return
	}

	radarPos := geo.Point{Lon: r.installation.Lon, Lat: r.installation.Lat, Alt: r.installation.AltitudeM}
	missilePos := geo.Point{Lon: pm.Lon, Lat: pm.Lat, Alt: pm.Alt}
	d := geo.Distance3D(radarPos, missilePos)

	if d > r.platform.DetectionRangeM || missilePos.Alt > r.platform.MaxAltitudeM {
		return
	}

	if !r.limiter.Allow() {
		return
	}

	rangeFactor := 1 - d/r.platform.DetectionRangeM
	altitudeFactor := clampFloat(missilePos.Alt/10000, 0, 1)
	signalStrengthDB := 0.0
	signalFactor := 1 + signalStrengthDB/100

	p := detectionBaseProbability * rangeFactor * altitudeFactor * signalFactor
	p += s.rnd.NormFloat64() * detectionNoiseSigma
	p = clampFloat(p, 0, 1)

	sample := s.rnd.Float64()

	s.mu.Lock()
	r.lastScan = now
	s.mu.Unlock()

	if sample >= p {
		return
	}

	track := s.touchTrack(pm.ID)
	s.mu.Lock()
	track.DetectingRadars[r.installation.Callsign] = struct{}{}
	track.DetectionCount++
	track.Confidence = math.Min(track.Confidence+trackConfidenceStep, trackConfidenceCap)
	confidence := track.Confidence
	s.mu.Unlock()

	detection := bus.DetectionMessage{
		RadarCallsign:   r.installation.Callsign,
		MissileID:       pm.ID,
		MissileCallsign: pm.Callsign,
		Position:        pm.Position,
		Velocity:        pm.Velocity,
		Confidence:      confidence,
		Timestamp:       now,
	}
	payload, err := bus.Encode(detection)
	if err != nil {
		s.log.Errorf("encoding detection message: %v", err)
		return
	}
	if err := s.bus.Publish(bus.SubjectRadarDetection, payload); err != nil {
		s.log.Errorf("publishing radar.detection: %v", err)
	}
}

func (s *Subsystem) expireIdleTracks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	ttl := s.cfg.Radar.TrackIdleTTL()
	for id, t := range s.tracks {
		if now.Sub(t.LastDetection) > ttl {
			delete(s.tracks, id)
		}
	}
}
