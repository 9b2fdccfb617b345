package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-sim/aegis-sim/pkg/geo"
)

// Well-known subjects, per the external interface contract.
const (
	SubjectSimulationLaunch = "simulation.launch"
	SubjectMissilePosition  = "missile.position"
	SubjectMissileImpact    = "missile.impact"
	SubjectMissileIntercept = "missile.intercepted"
	SubjectRadarDetection   = "radar.detection"
	SubjectEngagementResult = "engagement.result"
	SubjectEngagementOrders = "orders.engagement.>"
)

// EngageSubject returns the battery-specific engagement order subject.
func EngageSubject(batteryCallsign string) string {
	return fmt.Sprintf("orders.engagement.%s", batteryCallsign)
}

// LaunchMessage is published on SubjectSimulationLaunch by an external
// launcher or a Battery Controller issuing a defensive launch.
type LaunchMessage struct {
	Type               string    `json:"type"`
	PlatformNickname   string    `json:"platform_nickname"`
	LaunchCallsign     string    `json:"launch_callsign"`
	LaunchLat          float64   `json:"launch_lat"`
	LaunchLon          float64   `json:"launch_lon"`
	LaunchAlt          float64   `json:"launch_alt"`
	TargetLat          float64   `json:"target_lat"`
	TargetLon          float64   `json:"target_lon"`
	TargetAlt          float64   `json:"target_alt"`
	MissileType        string    `json:"missile_type"`
	BlastRadiusM       float64   `json:"blast_radius,omitempty"`
	TargetMissileID    uuid.UUID `json:"target_missile_id,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// PositionMessage is published on SubjectMissilePosition by the Simulation
// Engine once per tick for every still-active munition.
type PositionMessage struct {
	ID          uuid.UUID `json:"id"`
	Callsign    string    `json:"callsign"`
	Position    Vec3      `json:"position"`
	Velocity    Vec3      `json:"velocity"`
	Timestamp   time.Time `json:"timestamp"`
	MissileType string    `json:"missile_type"`

	// lon/lat/alt accompany the local x/y/z so downstream consumers that
	// need geodetic coordinates (the command center's intercept math)
	// don't need their own reference frame.
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
	Alt float64 `json:"alt"`
}

// Vec3 is the wire representation of a 3-vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// GeoPoint returns the message's geodetic position.
func (p PositionMessage) GeoPoint() geo.Point {
	return geo.Point{Lon: p.Lon, Lat: p.Lat, Alt: p.Alt}
}

// ImpactMessage is published on SubjectMissileImpact when a munition
// terminates by ground/sea impact, detonation, or fuel exhaustion.
type ImpactMessage struct {
	Type           string    `json:"type"`
	MissileID      uuid.UUID `json:"missile_id"`
	Callsign       string    `json:"callsign"`
	OutcomeType    string    `json:"outcome_type"`
	Position       Vec3      `json:"position"`
	TargetAchieved bool      `json:"target_achieved"`
	Timestamp      time.Time `json:"timestamp"`
}

// InterceptMessage is published on SubjectMissileIntercept when a defense
// munition destroys its target within blast radius.
type InterceptMessage struct {
	Type             string    `json:"type"`
	TargetMissileID  uuid.UUID `json:"target_missile_id"`
	DefenseMissileID uuid.UUID `json:"defense_missile_id"`
	Callsign         string    `json:"callsign"`
	Position         Vec3      `json:"position"`
	Timestamp        time.Time `json:"timestamp"`
}

// DetectionMessage is published on SubjectRadarDetection by a radar
// installation that sampled a successful detection.
type DetectionMessage struct {
	RadarCallsign   string    `json:"radar_callsign"`
	MissileID       uuid.UUID `json:"missile_id"`
	MissileCallsign string    `json:"missile_callsign"`
	Position        Vec3      `json:"position"`
	Velocity        Vec3      `json:"velocity"`
	Confidence      float64   `json:"confidence"`
	Timestamp       time.Time `json:"timestamp"`
}

// EngagementOrderMessage is published by the Command Center on
// orders.engagement.<callsign>.
type EngagementOrderMessage struct {
	Type                 string    `json:"type"`
	TargetMissileID      uuid.UUID `json:"target_missile_id"`
	BatteryCallsign      string    `json:"battery_callsign"`
	InterceptPoint       Vec3      `json:"intercept_point"`
	InterceptAltitudeM   float64   `json:"intercept_altitude"`
	ProbabilityOfSuccess float64   `json:"probability_of_success"`
	Timestamp            time.Time `json:"timestamp"`
}

// EngagementResultMessage is published on SubjectEngagementResult by the
// Engine (derived from impact/intercept) or by a Battery Controller.
type EngagementResultMessage struct {
	TargetMissileID  uuid.UUID `json:"target_missile_id"`
	DefenseMissileID uuid.UUID `json:"defense_missile_id"`
	Success          bool      `json:"success"`
	FailureReason    string    `json:"failure_reason,omitempty"`
}

// Encode and Decode are thin json helpers kept here so every component
// serializes wire messages the same way.

func Encode(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func Decode(payload []byte, v interface{}) error {
	return json.Unmarshal(payload, v)
}
