package db

import (
	"context"
	"fmt"

	"github.com/aegis-sim/aegis-sim/pkg/geo"
	"github.com/aegis-sim/aegis-sim/pkg/models"
	"github.com/aegis-sim/aegis-sim/pkg/scenario"
)

// SeedScenario upserts every platform type and installation in s, so a run
// can be started repeatably against a clean or already-populated database.
func (d *DB) SeedScenario(ctx context.Context, s *scenario.Scenario) error {
	tx, err := d.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, pt := range s.PlatformTypes {
		_, err := tx.Exec(ctx, `
			INSERT INTO platform_type
				(nickname, category, max_speed_mps, max_range_m, max_altitude_m,
				 detection_range_m, sweep_rate_deg_per_sec, reload_time_sec,
				 accuracy_percent, blast_radius_m, fuel_capacity_kg,
				 fuel_consumption_rate_kgps, thrust_n)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (nickname) DO UPDATE SET
				category = EXCLUDED.category,
				max_speed_mps = EXCLUDED.max_speed_mps,
				max_range_m = EXCLUDED.max_range_m,
				max_altitude_m = EXCLUDED.max_altitude_m,
				detection_range_m = EXCLUDED.detection_range_m,
				sweep_rate_deg_per_sec = EXCLUDED.sweep_rate_deg_per_sec,
				reload_time_sec = EXCLUDED.reload_time_sec,
				accuracy_percent = EXCLUDED.accuracy_percent,
				blast_radius_m = EXCLUDED.blast_radius_m,
				fuel_capacity_kg = EXCLUDED.fuel_capacity_kg,
				fuel_consumption_rate_kgps = EXCLUDED.fuel_consumption_rate_kgps,
				thrust_n = EXCLUDED.thrust_n
		`, pt.Nickname, string(pt.Category), pt.MaxSpeedMps, pt.MaxRangeM, pt.MaxAltitudeM,
			pt.DetectionRangeM, pt.SweepRateDegPerSec, pt.ReloadTimeSec,
			pt.AccuracyPercent, pt.BlastRadiusM, pt.FuelCapacityKg,
			pt.FuelConsumptionRateKgps, pt.ThrustN)
		if err != nil {
			return fmt.Errorf("seeding platform type %s: %w", pt.Nickname, err)
		}
	}

	for _, inst := range s.Installations {
		wkt := pointZToWKT(geo.Point{Lon: inst.Lon, Lat: inst.Lat, Alt: inst.AltitudeM})
		_, err := tx.Exec(ctx, `
			INSERT INTO installation (callsign, platform_type, status, position)
			VALUES ($1, $2, $3, ST_GeogFromText($4))
			ON CONFLICT (callsign) DO UPDATE SET
				platform_type = EXCLUDED.platform_type,
				status = EXCLUDED.status,
				position = EXCLUDED.position
		`, inst.Callsign, inst.PlatformType, string(inst.Status), wkt)
		if err != nil {
			return fmt.Errorf("seeding installation %s: %w", inst.Callsign, err)
		}

		// An installation's loadout lives in installation_munition, not a
		// flat column, so the same site can stock more than one munition
		// type; today's scenarios populate a single row per installation
		// keyed by its own platform type.
		_, err = tx.Exec(ctx, `
			INSERT INTO installation_munition (installation_callsign, munition_type, ammo_count)
			VALUES ($1, $2, $3)
			ON CONFLICT (installation_callsign, munition_type) DO UPDATE SET
				ammo_count = EXCLUDED.ammo_count
		`, inst.Callsign, inst.PlatformType, inst.AmmoCount)
		if err != nil {
			return fmt.Errorf("seeding munition loadout for %s: %w", inst.Callsign, err)
		}
	}

	return tx.Commit(ctx)
}

// PlatformType fetches one catalog row by nickname.
func (d *DB) PlatformType(ctx context.Context, nickname string) (models.PlatformType, error) {
	var pt models.PlatformType
	var category string
	err := d.Pool.QueryRow(ctx, `
		SELECT nickname, category, max_speed_mps, max_range_m, max_altitude_m,
		       detection_range_m, sweep_rate_deg_per_sec, reload_time_sec,
		       accuracy_percent, blast_radius_m, fuel_capacity_kg,
		       fuel_consumption_rate_kgps, thrust_n
		FROM platform_type WHERE nickname = $1
	`, nickname).Scan(&pt.Nickname, &category, &pt.MaxSpeedMps, &pt.MaxRangeM, &pt.MaxAltitudeM,
		&pt.DetectionRangeM, &pt.SweepRateDegPerSec, &pt.ReloadTimeSec,
		&pt.AccuracyPercent, &pt.BlastRadiusM, &pt.FuelCapacityKg,
		&pt.FuelConsumptionRateKgps, &pt.ThrustN)
	pt.Category = models.PlatformCategory(category)
	return pt, err
}

// InstallationsByCategory returns every installation, whatever its status,
// whose platform type belongs to category. AmmoCount is the loadout held against the
// installation's own platform type in installation_munition; an
// installation stocking no matching loadout row reads as zero ammo.
func (d *DB) InstallationsByCategory(ctx context.Context, category models.PlatformCategory) ([]models.Installation, error) {
	rows, err := d.Pool.Query(ctx, `
		SELECT i.callsign, ST_X(i.position::geometry), ST_Y(i.position::geometry),
		       ST_Z(i.position::geometry), i.status, i.platform_type,
		       COALESCE(im.ammo_count, 0)
		FROM installation i
		JOIN platform_type p ON p.nickname = i.platform_type
		LEFT JOIN installation_munition im
		       ON im.installation_callsign = i.callsign AND im.munition_type = i.platform_type
		WHERE p.category = $1
	`, string(category))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []models.Installation
	for rows.Next() {
		var inst models.Installation
		var status string
		if err := rows.Scan(&inst.Callsign, &inst.Lon, &inst.Lat, &inst.AltitudeM, &status, &inst.PlatformType, &inst.AmmoCount); err != nil {
			return nil, err
		}
		inst.Status = models.InstallationStatus(status)
		result = append(result, inst)
	}
	return result, rows.Err()
}

// Installation fetches one installation by callsign, with AmmoCount read
// from its installation_munition loadout as described above.
func (d *DB) Installation(ctx context.Context, callsign string) (models.Installation, error) {
	var inst models.Installation
	var status string
	err := d.Pool.QueryRow(ctx, `
		SELECT i.callsign, ST_X(i.position::geometry), ST_Y(i.position::geometry),
		       ST_Z(i.position::geometry), i.status, i.platform_type,
		       COALESCE(im.ammo_count, 0)
		FROM installation i
		LEFT JOIN installation_munition im
		       ON im.installation_callsign = i.callsign AND im.munition_type = i.platform_type
		WHERE i.callsign = $1
	`, callsign).Scan(&inst.Callsign, &inst.Lon, &inst.Lat, &inst.AltitudeM, &status, &inst.PlatformType, &inst.AmmoCount)
	inst.Status = models.InstallationStatus(status)
	return inst, err
}

// DecrementAmmo atomically decrements the ammo_count held against
// callsign's loadout of munitionType in installation_munition, refusing to
// go negative.
func (d *DB) DecrementAmmo(ctx context.Context, callsign, munitionType string) error {
	tag, err := d.Pool.Exec(ctx, `
		UPDATE installation_munition SET ammo_count = ammo_count - 1
		WHERE installation_callsign = $1 AND munition_type = $2 AND ammo_count > 0
	`, callsign, munitionType)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("installation %s has no ammo of type %s to decrement", callsign, munitionType)
	}
	return nil
}
