// Package geo builds the structures the external map widget consumes: a
// center point and a marker list. Rendering is not owned here.
package geo

import (
	"fmt"

	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
	"github.com/ukydev/gaadi-fleet/internal/views"
)

// Marker is one point on the map.
type Marker struct {
	Lat   float64 `json:"lat"`
	Lng   float64 `json:"lng"`
	Title string  `json:"title"`
	Type  string  `json:"type"` // "vehicle", "emergency", "pickup", "drop"
}

// View is the complete map view-model.
type View struct {
	Center  models.Location `json:"center"`
	Markers []Marker        `json:"markers"`
}

// defaultCenter is Bangalore, where the demo fleet lives.
var defaultCenter = models.Location{Lat: 12.9716, Lng: 77.5946}

// FleetView produces the admin map: every vehicle, every active
// emergency, and pickup points for pending bookings. Vehicles currently
// triggering a health alert reuse the emergency marker type so they stand
// out.
func FleetView(s *store.Store) View {
	view := View{Center: defaultCenter}

	alerted := make(map[string]bool)
	for _, a := range views.VehicleAlerts(s) {
		alerted[a.VehicleID] = true
	}

	vehicles := s.Vehicles.Snapshot()
	if len(vehicles) > 0 {
		view.Center = vehicles[0].Location
	}
	for _, v := range vehicles {
		kind := "vehicle"
		if alerted[v.ID] {
			kind = "emergency"
		}
		view.Markers = append(view.Markers, Marker{
			Lat:   v.Location.Lat,
			Lng:   v.Location.Lng,
			Title: fmt.Sprintf("%s (%.0f km/h)", v.Registration, v.Speed),
			Type:  kind,
		})
	}

	for _, e := range views.ActiveEmergencies(s) {
		view.Markers = append(view.Markers, Marker{
			Lat:   e.Lat,
			Lng:   e.Lng,
			Title: fmt.Sprintf("%s - %s", e.Type, e.Location),
			Type:  "emergency",
		})
	}

	for _, b := range views.PendingRequests(s) {
		view.Markers = append(view.Markers, Marker{
			Lat:   b.PickupLat,
			Lng:   b.PickupLng,
			Title: fmt.Sprintf("Pickup: %s", b.PickupLocation),
			Type:  "pickup",
		})
	}

	return view
}

// JobView produces the driver map for one active booking: pickup and
// drop, centered on the pickup.
func JobView(b models.BookingRequest) View {
	return View{
		Center: models.Location{Lat: b.PickupLat, Lng: b.PickupLng},
		Markers: []Marker{
			{Lat: b.PickupLat, Lng: b.PickupLng, Title: fmt.Sprintf("Pickup: %s", b.PickupLocation), Type: "pickup"},
			{Lat: b.DropLat, Lng: b.DropLng, Title: fmt.Sprintf("Drop: %s", b.DropLocation), Type: "drop"},
		},
	}
}
