// Package models holds the data-only entity types shared by every
// component: platform catalog rows, installations, in-flight munitions,
// and the ephemeral records each component owns exclusively (tracks,
// threat assessments, engagement orders, outcomes). No package in models
// mutates another component's entities — ownership is enforced by the
// components in pkg/engine, pkg/radar, pkg/command, and pkg/battery, never
// here.
package models

// PlatformCategory classifies what a platform type is for.
type PlatformCategory string

const (
	CategoryAttack          PlatformCategory = "attack"
	CategoryCounterDefense   PlatformCategory = "counter_defense"
	CategoryDetectionSystem PlatformCategory = "detection_system"
)

// PlatformType is an immutable catalog row describing a class of hardware.
// Every running entity (Installation, Munition) holds a reference to
// exactly one PlatformType by nickname.
type PlatformType struct {
	Nickname  string           `json:"nickname" yaml:"nickname"`
	Category  PlatformCategory `json:"category" yaml:"category"`

	MaxSpeedMps           float64 `json:"max_speed_mps" yaml:"max_speed_mps"`
	MaxRangeM              float64 `json:"max_range_m" yaml:"max_range_m"`
	MaxAltitudeM           float64 `json:"max_altitude_m" yaml:"max_altitude_m"`
	DetectionRangeM        float64 `json:"detection_range_m" yaml:"detection_range_m"`
	SweepRateDegPerSec     float64 `json:"sweep_rate_deg_per_sec" yaml:"sweep_rate_deg_per_sec"`
	ReloadTimeSec          float64 `json:"reload_time_sec" yaml:"reload_time_sec"`
	AccuracyPercent        float64 `json:"accuracy_percent" yaml:"accuracy_percent"`
	BlastRadiusM           float64 `json:"blast_radius_m" yaml:"blast_radius_m"`
	FuelCapacityKg         float64 `json:"fuel_capacity_kg" yaml:"fuel_capacity_kg"`
	FuelConsumptionRateKgps float64 `json:"fuel_consumption_rate_kgps" yaml:"fuel_consumption_rate_kgps"`
	ThrustN                float64 `json:"thrust_n" yaml:"thrust_n"`
}

// InstallationStatus is the operational state of a fixed or mobile site.
type InstallationStatus string

const (
	InstallationActive   InstallationStatus = "active"
	InstallationDisabled InstallationStatus = "disabled"
)

// Installation is a fixed or mobile site: an attacker launch point, a
// radar, or a defensive battery. Callsign is the globally unique key other
// components reference it by (bus subjects, engagement orders).
type Installation struct {
	Callsign    string             `json:"callsign" yaml:"callsign"`
	Lon         float64            `json:"lon" yaml:"lon"`
	Lat         float64            `json:"lat" yaml:"lat"`
	AltitudeM   float64            `json:"altitude_m" yaml:"altitude_m"`
	Status      InstallationStatus `json:"status" yaml:"status"`
	PlatformType string            `json:"platform_type" yaml:"platform_type"`

	// AmmoCount is only meaningful for counter_defense installations; it
	// must never go negative.
	AmmoCount int `json:"ammo_count" yaml:"ammo_count"`
}

// Position returns the installation's geodetic position.
func (i Installation) Position() (lon, lat, alt float64) {
	return i.Lon, i.Lat, i.AltitudeM
}
