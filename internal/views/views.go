// Package views computes the derived read models the dashboards render.
// Every function is pure over a store snapshot and recomputed on read;
// nothing here mutates the store.
package views

import (
	"fmt"
	"sort"

	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
)

// Alert thresholds, matching the admin dashboard.
const (
	LowFuelThreshold    = 20.0
	LowBatteryThreshold = 20.0
	OverspeedThreshold  = 80.0
)

// VehicleAlert is one triggered health threshold for one vehicle. A
// vehicle can trigger several independent alerts at once.
type VehicleAlert struct {
	ID           string `json:"id"` // "<vehicle id>-<kind>", stable across recomputations
	VehicleID    string `json:"vehicle_id"`
	Registration string `json:"registration"`
	Type         string `json:"type"` // "Low Fuel", "Low Battery", "Overspeeding"
	Value        string `json:"value"`
}

// PendingRequests returns the bookings awaiting a driver decision:
// pending plus bargaining.
func PendingRequests(s *store.Store) []models.BookingRequest {
	var out []models.BookingRequest
	for _, b := range s.Bookings.Snapshot() {
		if b.Status == models.BookingPending || b.Status == models.BookingBargaining {
			out = append(out, b)
		}
	}
	return out
}

// ActiveJob returns the single accepted booking, with its messages sorted
// ascending by timestamp, or nil if there is none.
func ActiveJob(s *store.Store) *models.BookingRequest {
	for _, b := range s.Bookings.Snapshot() {
		if b.Status != models.BookingAccepted {
			continue
		}
		job := b
		msgs := make([]models.ChatMessage, len(job.Messages))
		copy(msgs, job.Messages)
		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].Time.Before(msgs[j].Time)
		})
		job.Messages = msgs
		return &job
	}
	return nil
}

// ActiveEmergencies returns the emergencies not yet completed.
func ActiveEmergencies(s *store.Store) []models.EmergencyRequest {
	var out []models.EmergencyRequest
	for _, e := range s.Emergencies.Snapshot() {
		if e.Status != models.EmergencyCompleted {
			out = append(out, e)
		}
	}
	return out
}

// AvailableLoads returns the marketplace loads still open for request.
func AvailableLoads(s *store.Store) []models.Load {
	var out []models.Load
	for _, l := range s.Loads.Snapshot() {
		if l.Status == models.LoadAvailable {
			out = append(out, l)
		}
	}
	return out
}

// VehicleAlerts emits one alert per triggered threshold per vehicle.
func VehicleAlerts(s *store.Store) []VehicleAlert {
	var out []VehicleAlert
	for _, v := range s.Vehicles.Snapshot() {
		if v.FuelLevel < LowFuelThreshold {
			out = append(out, VehicleAlert{
				ID:           v.ID + "-fuel",
				VehicleID:    v.ID,
				Registration: v.Registration,
				Type:         "Low Fuel",
				Value:        fmt.Sprintf("%.0f%%", v.FuelLevel),
			})
		}
		if v.BatteryLevel < LowBatteryThreshold {
			out = append(out, VehicleAlert{
				ID:           v.ID + "-battery",
				VehicleID:    v.ID,
				Registration: v.Registration,
				Type:         "Low Battery",
				Value:        fmt.Sprintf("%.0f%%", v.BatteryLevel),
			})
		}
		if v.Speed > OverspeedThreshold {
			out = append(out, VehicleAlert{
				ID:           v.ID + "-speed",
				VehicleID:    v.ID,
				Registration: v.Registration,
				Type:         "Overspeeding",
				Value:        fmt.Sprintf("%.0f km/h", v.Speed),
			})
		}
	}
	return out
}
