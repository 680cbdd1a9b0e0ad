package views

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
)

func storeWithBookings(bookings ...models.BookingRequest) *store.Store {
	s := store.New()
	s.Bookings.Set(bookings)
	return s
}

func TestPendingRequests(t *testing.T) {
	s := storeWithBookings(
		models.BookingRequest{ID: "b1", Status: models.BookingPending},
		models.BookingRequest{ID: "b2", Status: models.BookingBargaining},
		models.BookingRequest{ID: "b3", Status: models.BookingAccepted},
		models.BookingRequest{ID: "b4", Status: models.BookingRejected},
	)

	pending := PendingRequests(s)
	assert.Len(t, pending, 2)
	assert.Equal(t, "b1", pending[0].ID)
	assert.Equal(t, "b2", pending[1].ID)
}

func TestActiveJob_SortsMessagesAscending(t *testing.T) {
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s := storeWithBookings(
		models.BookingRequest{ID: "b1", Status: models.BookingRejected},
		models.BookingRequest{
			ID:     "b2",
			Status: models.BookingAccepted,
			Messages: []models.ChatMessage{
				{Sender: "driver", Text: "third", Time: base.Add(2 * time.Minute)},
				{Sender: "customer", Text: "first", Time: base},
				{Sender: "customer", Text: "second", Time: base.Add(time.Minute)},
			},
		},
	)

	job := ActiveJob(s)
	assert.NotNil(t, job)
	assert.Equal(t, "b2", job.ID)
	assert.Equal(t, "first", job.Messages[0].Text)
	assert.Equal(t, "second", job.Messages[1].Text)
	assert.Equal(t, "third", job.Messages[2].Text)

	// sorting must not reorder the stored copy
	assert.Equal(t, "third", s.Bookings.Snapshot()[1].Messages[0].Text)
}

func TestActiveJob_NoneAccepted(t *testing.T) {
	s := storeWithBookings(models.BookingRequest{ID: "b1", Status: models.BookingPending})
	assert.Nil(t, ActiveJob(s))
}

func TestActiveEmergencies(t *testing.T) {
	s := store.New()
	s.Emergencies.Set([]models.EmergencyRequest{
		{ID: "e1", Status: models.EmergencyPending},
		{ID: "e2", Status: models.EmergencyTracking},
		{ID: "e3", Status: models.EmergencyCompleted},
	})

	active := ActiveEmergencies(s)
	assert.Len(t, active, 2)
}

func TestVehicleAlerts(t *testing.T) {
	s := store.New()
	s.Vehicles.Set([]models.Vehicle{
		// triggers all three thresholds at once
		{ID: "v1", Registration: "KA-01-HH-1234", FuelLevel: 18, BatteryLevel: 15, Speed: 85},
		{ID: "v2", Registration: "MH-02-AB-9999", FuelLevel: 50, BatteryLevel: 90, Speed: 40},
	})

	alerts := VehicleAlerts(s)
	assert.Len(t, alerts, 3)

	types := map[string]string{}
	for _, a := range alerts {
		assert.Equal(t, "v1", a.VehicleID)
		types[a.ID] = a.Type
	}
	assert.Equal(t, "Low Fuel", types["v1-fuel"])
	assert.Equal(t, "Low Battery", types["v1-battery"])
	assert.Equal(t, "Overspeeding", types["v1-speed"])
}

func TestVehicleAlerts_BoundaryValues(t *testing.T) {
	s := store.New()
	s.Vehicles.Set([]models.Vehicle{
		{ID: "v1", FuelLevel: 20, BatteryLevel: 20, Speed: 80},
	})
	// thresholds are strict: fuel < 20, battery < 20, speed > 80
	assert.Empty(t, VehicleAlerts(s))
}

func TestAlertNotifier_FiresOncePerAppearance(t *testing.T) {
	var fired []string
	n := NewAlertNotifier(func(a VehicleAlert) { fired = append(fired, a.ID) })

	low := []VehicleAlert{{ID: "v1-fuel", Type: "Low Fuel"}}

	n.Observe(low)
	n.Observe(low)
	n.Observe(low)

	assert.Equal(t, []string{"v1-fuel"}, fired, "steady condition fires once")
}

func TestAlertNotifier_Flapping(t *testing.T) {
	var fired []string
	n := NewAlertNotifier(func(a VehicleAlert) { fired = append(fired, a.ID) })

	low := []VehicleAlert{{ID: "v1-fuel", Type: "Low Fuel"}}

	// fuel crosses below 20, back above, then below again
	n.Observe(low)
	n.Observe(nil)
	n.Observe(low)

	assert.Equal(t, []string{"v1-fuel", "v1-fuel"}, fired, "flapping fires exactly twice")
}

func TestAlertNotifier_IndependentAlerts(t *testing.T) {
	var fired []string
	n := NewAlertNotifier(func(a VehicleAlert) { fired = append(fired, a.ID) })

	n.Observe([]VehicleAlert{{ID: "v1-fuel"}, {ID: "v1-speed"}})
	n.Observe([]VehicleAlert{{ID: "v1-fuel"}})
	n.Observe([]VehicleAlert{{ID: "v1-fuel"}, {ID: "v1-speed"}})

	assert.Equal(t, []string{"v1-fuel", "v1-speed", "v1-speed"}, fired)
}
