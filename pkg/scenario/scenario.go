// Package scenario loads the static platform catalog and installation
// layout a run starts from: the YAML equivalent of the teacher's
// simulation.yaml parameter files, adapted from a drone-count/area
// shape to a named catalog of platform_type rows plus installation
// placements.
package scenario

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aegis-sim/aegis-sim/pkg/models"
)

// Scenario is the seed data for one run: the platform catalog and the
// installations present at t=0.
type Scenario struct {
	Name          string                 `yaml:"name"`
	Description   string                 `yaml:"description"`
	PlatformTypes []models.PlatformType  `yaml:"platform_types"`
	Installations []models.Installation  `yaml:"installations"`
}

// Load reads a scenario definition from a YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing scenario file: %w", err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &s, nil
}

// Validate checks that every installation references a known platform type
// and every callsign/nickname is unique.
func (s *Scenario) Validate() error {
	seenTypes := make(map[string]bool)
	for _, pt := range s.PlatformTypes {
		if pt.Nickname == "" {
			return fmt.Errorf("platform type with empty nickname")
		}
		if seenTypes[pt.Nickname] {
			return fmt.Errorf("duplicate platform type nickname %q", pt.Nickname)
		}
		seenTypes[pt.Nickname] = true
	}

	seenCallsigns := make(map[string]bool)
	for _, inst := range s.Installations {
		if inst.Callsign == "" {
			return fmt.Errorf("installation with empty callsign")
		}
		if seenCallsigns[inst.Callsign] {
			return fmt.Errorf("duplicate installation callsign %q", inst.Callsign)
		}
		seenCallsigns[inst.Callsign] = true
		if !seenTypes[inst.PlatformType] {
			return fmt.Errorf("installation %q references unknown platform type %q", inst.Callsign, inst.PlatformType)
		}
	}

	return nil
}

// Default returns a baseline scenario matching the specification's S1/S2
// walkthroughs: an attack missile platform (JL-2), a counter-defense
// battery (Aegis-VLS), and a detection radar (AN/SPY), plus one
// installation of each sited the way S2 describes.
func Default() *Scenario {
	return &Scenario{
		Name:        "baseline",
		Description: "Unopposed attack vs. single battery/radar pair over the Pacific test range",
		PlatformTypes: []models.PlatformType{
			{
				Nickname:                "JL-2",
				Category:                models.CategoryAttack,
				MaxSpeedMps:             7200,
				MaxRangeM:               7_200_000,
				MaxAltitudeM:            1_100_000,
				DetectionRangeM:         0,
				SweepRateDegPerSec:      0,
				ReloadTimeSec:           0,
				AccuracyPercent:         0,
				BlastRadiusM:            500,
				FuelCapacityKg:          42_000,
				FuelConsumptionRateKgps: 140,
				ThrustN:                 1_100_000,
			},
			{
				Nickname:                "Aegis-VLS",
				Category:                models.CategoryCounterDefense,
				MaxSpeedMps:             1500,
				MaxRangeM:               240_000,
				MaxAltitudeM:            33_000,
				ReloadTimeSec:           12,
				AccuracyPercent:         0.85,
				BlastRadiusM:            30,
				FuelCapacityKg:          400,
				FuelConsumptionRateKgps: 18,
				ThrustN:                 220_000,
			},
			{
				Nickname:           "AN/SPY-Site",
				Category:           models.CategoryDetectionSystem,
				DetectionRangeM:    480_000,
				MaxAltitudeM:       1_200_000,
				SweepRateDegPerSec: 12,
			},
		},
		Installations: []models.Installation{
			{
				Callsign:     "A1-LAUNCH",
				Lon:          -155,
				Lat:          25,
				AltitudeM:    -200,
				Status:       models.InstallationActive,
				PlatformType: "JL-2",
			},
			{
				Callsign:     "B1",
				Lon:          -157.88,
				Lat:          21.33,
				AltitudeM:    0,
				Status:       models.InstallationActive,
				PlatformType: "Aegis-VLS",
				AmmoCount:    4,
			},
			{
				Callsign:     "R1",
				Lon:          -157.86,
				Lat:          21.31,
				AltitudeM:    0,
				Status:       models.InstallationActive,
				PlatformType: "AN/SPY-Site",
			},
		},
	}
}
