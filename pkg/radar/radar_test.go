package radar

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/aegis-sim/aegis-sim/pkg/bus"
	"github.com/aegis-sim/aegis-sim/pkg/clock"
	"github.com/aegis-sim/aegis-sim/pkg/config"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
	"github.com/aegis-sim/aegis-sim/pkg/randsrc"
)

func testConfig() *config.SimulationConfig {
	cfg := config.GetDefaultConfig()
	cfg.Radar.WorkerPoolSize = 4
	cfg.Radar.DutyCycleHz = 1000
	cfg.Radar.TrackIdleTTLSec = 30
	return cfg
}

func silentLogger() logger.Logger {
	return logger.NewWithConfig(logger.Config{Level: logger.FatalLevel})
}

func radarInstallation() *radarState {
	return &radarState{
		installation: models.Installation{Callsign: "R1", Lon: -157.86, Lat: 21.31, AltitudeM: 0, PlatformType: "AN/SPY-Site"},
		platform: models.PlatformType{
			Nickname:           "AN/SPY-Site",
			Category:           models.CategoryDetectionSystem,
			DetectionRangeM:    480_000,
			MaxAltitudeM:       1_200_000,
			SweepRateDegPerSec: 12,
		},
		interval: 10 * time.Millisecond,
	}
}

func newAllowAllLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// Within a package-internal test, a radarState can be injected directly
// (bypassing loadInstallations's store-backed catalog fetch, which
// loadInstallations skips when the store is nil).
func newTestSubsystem(clk clock.Clock, rnd randsrc.Source) *Subsystem {
	s := New(testConfig(), bus.New(), nil, clk, rnd, silentLogger())
	r := radarInstallation()
	r.limiter = newAllowAllLimiter()
	s.radars = append(s.radars, r)
	return s
}

func TestEvaluateRadarPublishesDetectionWithinRange(t *testing.T) {
	s := newTestSubsystem(clock.NewManual(time.Now()), randsrc.Fixed{FloatVal: 0, NormVal: 0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := s.bus.Subscribe(bus.SubjectRadarDetection, 4)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()

	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() { _ = s.Stop() })
	time.Sleep(20 * time.Millisecond)

	pos := bus.PositionMessage{
		ID:       uuid.New(),
		Callsign: "A1-LAUNCH",
		Lon:      -157.86,
		Lat:      21.32,
		Alt:      5000,
	}
	payload, _ := bus.Encode(pos)
	if err := s.bus.Publish(bus.SubjectMissilePosition, payload); err != nil {
		t.Fatalf("publishing position: %v", err)
	}

	select {
	case msg := <-sub.Messages():
		var dm bus.DetectionMessage
		if err := bus.Decode(msg.Payload, &dm); err != nil {
			t.Fatalf("decoding detection: %v", err)
		}
		if dm.MissileID != pos.ID {
			t.Fatalf("detection for wrong missile: got %s want %s", dm.MissileID, pos.ID)
		}
		if dm.RadarCallsign != "R1" {
			t.Fatalf("expected radar callsign R1, got %s", dm.RadarCallsign)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for radar.detection")
	}
}

func TestEvaluateRadarSkipsOutOfRangeMissile(t *testing.T) {
	s := newTestSubsystem(clock.NewManual(time.Now()), randsrc.Fixed{FloatVal: 0, NormVal: 0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := s.bus.Subscribe(bus.SubjectRadarDetection, 4)
	if err != nil {
		t.Fatalf("subscribing: %v", err)
	}
	defer sub.Unsubscribe()

	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() { _ = s.Stop() })
	time.Sleep(20 * time.Millisecond)

	// 20 degrees of longitude away is far beyond a 480km detection range.
	pos := bus.PositionMessage{ID: uuid.New(), Lon: -137.86, Lat: 21.31, Alt: 5000}
	payload, _ := bus.Encode(pos)
	if err := s.bus.Publish(bus.SubjectMissilePosition, payload); err != nil {
		t.Fatalf("publishing position: %v", err)
	}

	select {
	case <-sub.Messages():
		t.Fatal("did not expect a detection for a missile far outside detection range")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestExpireIdleTracksRemovesStaleEntries(t *testing.T) {
	clk := clock.NewManual(time.Now())
	s := newTestSubsystem(clk, randsrc.Fixed{})
	s.cfg.Radar.TrackIdleTTLSec = 1

	id := uuid.New()
	s.touchTrack(id)
	clk.Advance(2 * time.Second)
	s.expireIdleTracks()

	s.mu.Lock()
	_, ok := s.tracks[id]
	s.mu.Unlock()
	if ok {
		t.Fatal("expected stale track to be expired")
	}
}
