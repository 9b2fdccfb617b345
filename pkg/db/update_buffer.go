package db

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aegis-sim/aegis-sim/pkg/geo"
	"github.com/aegis-sim/aegis-sim/pkg/logger"
	"github.com/aegis-sim/aegis-sim/pkg/models"
)

// MissileUpdate is a pending write for a single in-flight munition,
// coalesced so that a fast-ticking engine doesn't issue one round trip per
// 100ms tick per missile.
type MissileUpdate struct {
	Missile      *models.Munition
	LastModified time.Time
}

// UpdateBuffer batches active_missile position writes, in the same
// coalesce-then-flush shape as the teacher's UpdateBuffer, adapted from
// a Legion-entity-location target to a PostGIS active_missile table.
type UpdateBuffer struct {
	db            *DB
	updates       map[uuid.UUID]*MissileUpdate
	maxBatchSize  int
	flushInterval time.Duration
	mu            sync.Mutex
	stopChan      chan struct{}
	wg            sync.WaitGroup
	log           logger.Logger
}

// NewUpdateBuffer creates an update buffer flushing at most every
// flushInterval or once maxBatchSize pending writes accumulate.
func NewUpdateBuffer(d *DB, maxBatchSize int, flushInterval time.Duration, log logger.Logger) *UpdateBuffer {
	if log == nil {
		log = logger.New()
	}
	return &UpdateBuffer{
		db:            d,
		updates:       make(map[uuid.UUID]*MissileUpdate),
		maxBatchSize:  maxBatchSize,
		flushInterval: flushInterval,
		stopChan:      make(chan struct{}),
		log:           log,
	}
}

// Start begins the automatic flush goroutine.
func (ub *UpdateBuffer) Start(ctx context.Context) {
	ub.wg.Add(1)
	go func() {
		defer ub.wg.Done()

		ticker := time.NewTicker(ub.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ub.stopChan:
				return
			case <-ticker.C:
				if err := ub.Flush(ctx); err != nil {
					ub.log.Errorf("error flushing missile updates: %v", err)
				}
			}
		}
	}()
}

// Stop halts the flush goroutine and waits for it to exit.
func (ub *UpdateBuffer) Stop() {
	close(ub.stopChan)
	ub.wg.Wait()
}

// QueuePositionUpdate records the current state of a live munition for the
// next flush.
func (ub *UpdateBuffer) QueuePositionUpdate(m *models.Munition) {
	ub.mu.Lock()
	defer ub.mu.Unlock()

	ub.updates[m.ID] = &MissileUpdate{Missile: m.Clone(), LastModified: time.Now()}

	if len(ub.updates) >= ub.maxBatchSize {
		go func() {
			if err := ub.Flush(context.Background()); err != nil {
				ub.log.Errorf("error auto-flushing missile updates: %v", err)
			}
		}()
	}
}

// Flush writes all pending missile states in a single transaction, one
// upsert per missile.
func (ub *UpdateBuffer) Flush(ctx context.Context) error {
	ub.mu.Lock()
	if len(ub.updates) == 0 {
		ub.mu.Unlock()
		return nil
	}
	batch := make([]*MissileUpdate, 0, len(ub.updates))
	for _, u := range ub.updates {
		batch = append(batch, u)
	}
	ub.updates = make(map[uuid.UUID]*MissileUpdate)
	ub.mu.Unlock()

	tx, err := ub.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, u := range batch {
		m := u.Missile
		wkt := pointZToWKT(m.Position)
		var targetMissileID *uuid.UUID
		if m.Type == models.MunitionDefense && m.HasTarget {
			id := m.TargetMissileID
			targetMissileID = &id
		}
		var launchedFrom *string
		if m.LaunchInstallation != "" {
			lf := m.LaunchInstallation
			launchedFrom = &lf
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO active_missile
				(id, munition_type_id, status, launched_from, target_missile_id, position,
				 velocity_x, velocity_y, velocity_z, fuel_remaining_kg, launched_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, ST_GeogFromText($6), $7, $8, $9, $10, $11, now())
			ON CONFLICT (id) DO UPDATE SET
				status = EXCLUDED.status,
				position = EXCLUDED.position,
				velocity_x = EXCLUDED.velocity_x,
				velocity_y = EXCLUDED.velocity_y,
				velocity_z = EXCLUDED.velocity_z,
				fuel_remaining_kg = EXCLUDED.fuel_remaining_kg,
				updated_at = now()
		`, m.ID, m.PlatformType, string(m.Status), launchedFrom, targetMissileID, wkt,
			m.Velocity.X, m.Velocity.Y, m.Velocity.Z, m.FuelRemainingKg, m.LaunchTime)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	ub.log.Debugf("flushed %d missile updates", len(batch))
	return nil
}

// RecordOutcome persists a terminal outcome row and removes the munition's
// active_missile row in the same transaction, per §5: a terminated
// munition must leave the live set atomically with its outcome record.
func (ub *UpdateBuffer) RecordOutcome(ctx context.Context, o *models.Outcome) error {
	ub.mu.Lock()
	delete(ub.updates, o.MissileID)
	ub.mu.Unlock()

	wkt := pointZToWKT(o.Location)
	var interceptingID *uuid.UUID
	if o.HasInterceptingMissile {
		id := o.InterceptingMissileID
		interceptingID = &id
	}

	tx, err := ub.db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO missile_outcome
			(id, missile_id, outcome_type, position, target_achieved, intercepting_missile_id, notes, occurred_at)
		VALUES ($1, $2, $3, ST_GeogFromText($4), $5, $6, $7, $8)
	`, uuid.New(), o.MissileID, string(o.OutcomeType), wkt, o.TargetAchieved, interceptingID, o.Notes, o.RecordedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM active_missile WHERE id = $1`, o.MissileID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func pointZToWKT(p geo.Point) string {
	return "POINTZ(" + strconv.FormatFloat(p.Lon, 'f', -1, 64) + " " +
		strconv.FormatFloat(p.Lat, 'f', -1, 64) + " " +
		strconv.FormatFloat(p.Alt, 'f', -1, 64) + ")"
}
