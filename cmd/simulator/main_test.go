package main

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ukydev/gaadi-fleet/internal/models"
)

func testRng() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

func TestHaversineKm(t *testing.T) {
	bangalore := models.Location{Lat: 12.9716, Lng: 77.5946}
	mysore := models.Location{Lat: 12.2958, Lng: 76.6394}

	d := haversineKm(bangalore, mysore)

	// road distance is ~145km, great circle ~128km
	assert.InDelta(t, 128, d, 10)
	assert.Zero(t, haversineKm(bangalore, bangalore))
}

func TestLerp(t *testing.T) {
	a := models.Location{Lat: 10, Lng: 70}
	b := models.Location{Lat: 14, Lng: 78}

	mid := lerp(a, b, 0.5)

	assert.InDelta(t, 12, mid.Lat, 1e-9)
	assert.InDelta(t, 74, mid.Lng, 1e-9)
	assert.Equal(t, a, lerp(a, b, 0))
	assert.Equal(t, b, lerp(a, b, 1))
}

func TestRouteStep(t *testing.T) {
	rng := testRng()
	start := towns[0].Loc
	r := newRoute(rng, start)

	require.Greater(t, r.Length, 20.0)

	pos, done := r.step(60, 60) // one minute at 60 km/h
	assert.False(t, done)
	assert.NotEqual(t, start, pos)

	// driving for many hours finishes any route between these towns
	for i := 0; i < 1000 && !done; i++ {
		pos, done = r.step(60, 600)
	}
	assert.True(t, done)
	assert.Equal(t, r.To, pos)
}

func TestTickVehicleBounds(t *testing.T) {
	rng := testRng()
	s := seedVehicle(rng, 0)
	now := time.Now()

	for i := 0; i < 500; i++ {
		fields := tickVehicle(s, rng, 2, now)

		v := s.Vehicle
		assert.GreaterOrEqual(t, v.Speed, 15.0)
		assert.LessOrEqual(t, v.Speed, 90.0)
		assert.Greater(t, v.FuelLevel, 0.0)
		assert.LessOrEqual(t, v.FuelLevel, 100.0)
		assert.Greater(t, v.BatteryLevel, 0.0)
		assert.LessOrEqual(t, v.BatteryLevel, 100.0)

		require.Contains(t, fields, "location")
		require.Contains(t, fields, "last_updated")
	}
}

func TestSeedVehicle(t *testing.T) {
	rng := testRng()

	s := seedVehicle(rng, 0)

	assert.NotEmpty(t, s.Vehicle.ID)
	assert.Regexp(t, `^KA-\d{2}-AB-\d{4}$`, s.Vehicle.Registration)
	assert.Equal(t, models.VehicleRunning, s.Vehicle.Status)
	assert.True(t, s.Vehicle.Ignition)
}

func TestNewBooking(t *testing.T) {
	rng := testRng()
	now := time.Now()

	b := newBooking(rng, now)

	assert.NotEmpty(t, b.ID)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.NotEqual(t, b.PickupLocation, b.DropLocation)
	assert.Greater(t, b.OfferedPrice, 2000)
	assert.NotNil(t, b.Messages)
	assert.Equal(t, now, b.CreatedAt)
}

func TestCustomerReplyOutcomes(t *testing.T) {
	now := time.Now()
	b := models.BookingRequest{
		ID:           "b1",
		Status:       models.BookingBargaining,
		OfferedPrice: 5000,
		CounterOffer: 5500,
		Messages:     []models.ChatMessage{{Sender: "driver", Text: "5500 final", Time: now}},
	}

	accepted, cancelled := 0, 0
	rng := testRng()
	for i := 0; i < 200; i++ {
		fields, outcome := customerReply(rng, b, now)
		switch outcome {
		case "accepted":
			accepted++
			assert.Equal(t, string(models.BookingAccepted), fields["status"])
			assert.Equal(t, 5500, fields["offered_price"])
			msgs := fields["messages"].([]models.ChatMessage)
			require.Len(t, msgs, 2)
			assert.Equal(t, "customer", msgs[1].Sender)
		case "cancelled":
			cancelled++
			assert.Equal(t, string(models.BookingCancelled), fields["status"])
			_, hasPrice := fields["offered_price"]
			assert.False(t, hasPrice)
		default:
			t.Fatalf("unexpected outcome %q", outcome)
		}
	}

	// both branches fire over 200 draws
	assert.Greater(t, accepted, 0)
	assert.Greater(t, cancelled, 0)
	assert.Greater(t, accepted, cancelled)
}

func TestSeedLoad(t *testing.T) {
	rng := testRng()

	l := seedLoad(rng, time.Now())

	assert.NotEmpty(t, l.ID)
	assert.Equal(t, models.LoadAvailable, l.Status)
	assert.NotEqual(t, l.Source, l.Destination)
	assert.Greater(t, l.ExpectedPrice, 1500)
	assert.Empty(t, l.AIAssessment)
}

func TestTickVehicleChangedFields(t *testing.T) {
	rng := testRng()
	s := seedVehicle(rng, 0)

	fields := tickVehicle(s, rng, 2, time.Now())

	loc, ok := fields["location"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, s.Vehicle.Location.Lat, loc["lat"])
	assert.Equal(t, s.Vehicle.Location.Lng, loc["lng"])
}
