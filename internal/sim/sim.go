// Package sim provides the polling fallback and the local telemetry
// simulation used when no real telemetry source is configured.
package sim

import (
	"context"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
)

// Poller periodically re-fetches an entity collection and replaces the
// local copy wholesale. Cadence is independent of the realtime feed.
type Poller struct {
	Interval time.Duration
	Refresh  func(ctx context.Context) error
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				log.WithError(err).Warn("Poll refresh failed, keeping stale state")
			}
		}
	}
}

// Drift perturbs running vehicles' telemetry by small bounded random
// deltas per tick, clamped to each field's valid range. Used only when
// no backing telemetry source is configured.
type Drift struct {
	store *store.Store
	rng   *rand.Rand
}

// NewDrift creates a simulation over the given store.
func NewDrift(s *store.Store, seed int64) *Drift {
	return &Drift{store: s, rng: rand.New(rand.NewSource(seed))}
}

// Run ticks the simulation until the context is cancelled.
func (d *Drift) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(time.Now())
		}
	}
}

// Tick applies one simulation step. Non-Running vehicles are untouched;
// assigned and tracking emergencies get position jitter so the mechanic
// map moves.
func (d *Drift) Tick(now time.Time) {
	d.store.Vehicles.Update(func(prev []models.Vehicle) []models.Vehicle {
		next := make([]models.Vehicle, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].Status != models.VehicleRunning {
				continue
			}
			v := &next[i]
			v.Speed = clamp(v.Speed+(d.rng.Float64()-0.5)*20, 0, 120)
			v.FuelLevel = clamp(v.FuelLevel-d.rng.Float64()*0.5, 0, 100)
			v.BatteryLevel = clamp(v.BatteryLevel-d.rng.Float64()*0.1, 0, 100)
			v.Location.Lat += (d.rng.Float64() - 0.5) * 0.001
			v.Location.Lng += (d.rng.Float64() - 0.5) * 0.001
			v.LastUpdated = now
		}
		return next
	})

	d.store.Emergencies.Update(func(prev []models.EmergencyRequest) []models.EmergencyRequest {
		next := make([]models.EmergencyRequest, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].Status == models.EmergencyAssigned || next[i].Status == models.EmergencyTracking {
				next[i].Lat += (d.rng.Float64() - 0.5) * 0.0008
				next[i].Lng += (d.rng.Float64() - 0.5) * 0.0008
			}
		}
		return next
	})
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
