package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ukydev/gaadi-fleet/internal/config"
	"github.com/ukydev/gaadi-fleet/internal/db"
	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/realtime"
	"github.com/ukydev/gaadi-fleet/internal/store"
)

// The simulator plays the parts of the world outside the driver
// dashboard: moving vehicles, customers raising booking requests and
// haggling over price, and fresh loads appearing on the board. It
// writes rows to MongoDB and publishes the matching change events on
// the realtime feed so a running agent sees them live.

var towns = []struct {
	Name string
	Loc  models.Location
}{
	{"Bangalore", models.Location{Lat: 12.9716, Lng: 77.5946}},
	{"Mysore", models.Location{Lat: 12.2958, Lng: 76.6394}},
	{"Hosur", models.Location{Lat: 12.7409, Lng: 77.8253}},
	{"Tumkur", models.Location{Lat: 13.3392, Lng: 77.1140}},
	{"Hassan", models.Location{Lat: 13.0068, Lng: 76.1004}},
	{"Mandya", models.Location{Lat: 12.5218, Lng: 76.8951}},
	{"Kolar", models.Location{Lat: 13.1367, Lng: 78.1292}},
	{"Chikballapur", models.Location{Lat: 13.4355, Lng: 77.7315}},
}

var customers = []string{"Anil", "Priya", "Suresh", "Meena", "Rajesh", "Kavita"}

var goods = []struct {
	Name   string
	Weight string
}{
	{"Cement", "8 tons"},
	{"Steel Rods", "12 tons"},
	{"Textiles", "3 tons"},
	{"Rice Bags", "6 tons"},
	{"Electronics", "2 tons"},
	{"Furniture", "4 tons"},
}

func haversineKm(a, b models.Location) float64 {
	R := 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	s := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(s), math.Sqrt(1-s))
	return R * c
}

func lerp(a, b models.Location, t float64) models.Location {
	return models.Location{Lat: a.Lat + (b.Lat-a.Lat)*t, Lng: a.Lng + (b.Lng-a.Lng)*t}
}

func jitter(base models.Location, rng *rand.Rand, meters float64) models.Location {
	latMetersPerDeg := 111320.0
	lngMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rng.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLng := (rng.Float64()*2 - 1) * (meters / lngMetersPerDeg)
	return models.Location{Lat: base.Lat + dLat, Lng: base.Lng + dLng}
}

// route is a straight-line path between two towns, stepped by speed.
type route struct {
	From, To models.Location
	Offset   float64 // km travelled along the path
	Length   float64
}

func newRoute(rng *rand.Rand, from models.Location) *route {
	var to models.Location
	for i := 0; i < 10; i++ {
		cand := towns[rng.Intn(len(towns))].Loc
		if haversineKm(from, cand) > 20 {
			to = cand
			break
		}
	}
	return &route{From: from, To: to, Length: haversineKm(from, to)}
}

// step advances the route by the distance covered at speedKmh over
// tickSec and returns the new position plus whether the route finished.
func (r *route) step(speedKmh, tickSec float64) (models.Location, bool) {
	r.Offset += speedKmh * (tickSec / 3600.0)
	if r.Length <= 0 || r.Offset >= r.Length {
		return r.To, true
	}
	return lerp(r.From, r.To, r.Offset/r.Length), false
}

type vehicleState struct {
	Vehicle models.Vehicle
	Route   *route
}

func seedVehicle(rng *rand.Rand, i int) *vehicleState {
	start := jitter(towns[rng.Intn(len(towns))].Loc, rng, 800)
	types := []string{"Truck", "Mini Truck", "Tempo"}
	return &vehicleState{
		Vehicle: models.Vehicle{
			ID:           primitive.NewObjectID().Hex(),
			Registration: fmt.Sprintf("KA-%02d-AB-%04d", 1+rng.Intn(60), 1000+rng.Intn(9000)),
			Type:         types[rng.Intn(len(types))],
			Status:       models.VehicleRunning,
			Speed:        30 + rng.Float64()*30,
			FuelLevel:    50 + rng.Float64()*50,
			BatteryLevel: 60 + rng.Float64()*40,
			Ignition:     true,
			Location:     start,
			LastUpdated:  time.Now(),
		},
	}
}

// tickVehicle moves the vehicle and returns the fields that changed.
func tickVehicle(s *vehicleState, rng *rand.Rand, tickSec float64, now time.Time) bson.M {
	v := &s.Vehicle
	v.Speed += (rng.Float64()*2 - 1) * 3
	if v.Speed < 15 {
		v.Speed = 15
	}
	if v.Speed > 90 {
		v.Speed = 90
	}

	if s.Route == nil {
		s.Route = newRoute(rng, v.Location)
	}
	pos, done := s.Route.step(v.Speed, tickSec)
	v.Location = pos
	if done {
		s.Route = newRoute(rng, pos)
	}

	km := v.Speed * (tickSec / 3600.0)
	v.FuelLevel -= km * 0.4
	if v.FuelLevel < 5 {
		v.FuelLevel = 100 // refuelled
	}
	v.BatteryLevel -= km * 0.05
	if v.BatteryLevel < 10 {
		v.BatteryLevel = 100
	}
	v.LastUpdated = now

	return bson.M{
		"speed":         v.Speed,
		"fuel_level":    v.FuelLevel,
		"battery_level": v.BatteryLevel,
		"location":      bson.M{"lat": v.Location.Lat, "lng": v.Location.Lng},
		"last_updated":  v.LastUpdated,
	}
}

// newBooking fabricates a customer booking request between two towns.
func newBooking(rng *rand.Rand, now time.Time) models.BookingRequest {
	from := towns[rng.Intn(len(towns))]
	to := towns[rng.Intn(len(towns))]
	for to.Name == from.Name {
		to = towns[rng.Intn(len(towns))]
	}
	g := goods[rng.Intn(len(goods))]
	distance := haversineKm(from.Loc, to.Loc)

	return models.BookingRequest{
		ID:             primitive.NewObjectID().Hex(),
		CustomerName:   customers[rng.Intn(len(customers))],
		CustomerPhone:  fmt.Sprintf("+91 9%09d", rng.Intn(1000000000)),
		PickupLocation: from.Name,
		DropLocation:   to.Name,
		PickupLat:      from.Loc.Lat,
		PickupLng:      from.Loc.Lng,
		DropLat:        to.Loc.Lat,
		DropLng:        to.Loc.Lng,
		GoodsType:      g.Name,
		Weight:         g.Weight,
		OfferedPrice:   2000 + int(distance*25) + rng.Intn(500),
		Status:         models.BookingPending,
		Messages:       []models.ChatMessage{},
		CreatedAt:      now,
	}
}

// customerReply decides how a customer reacts to a driver counter-offer.
// Most accept, the rest walk away.
func customerReply(rng *rand.Rand, b models.BookingRequest, now time.Time) (bson.M, string) {
	if rng.Float64() < 0.7 {
		msg := models.ChatMessage{Sender: "customer", Text: "Okay, deal. Please come fast.", Time: now}
		return bson.M{
			"status":        string(models.BookingAccepted),
			"offered_price": b.CounterOffer,
			"counter_offer": 0,
			"messages":      append(b.Messages, msg),
		}, "accepted"
	}
	msg := models.ChatMessage{Sender: "customer", Text: "Too costly, cancelling.", Time: now}
	return bson.M{
		"status":   string(models.BookingCancelled),
		"messages": append(b.Messages, msg),
	}, "cancelled"
}

func seedLoad(rng *rand.Rand, now time.Time) models.Load {
	from := towns[rng.Intn(len(towns))]
	to := towns[rng.Intn(len(towns))]
	for to.Name == from.Name {
		to = towns[rng.Intn(len(towns))]
	}
	g := goods[rng.Intn(len(goods))]
	distance := haversineKm(from.Loc, to.Loc)

	return models.Load{
		ID:            primitive.NewObjectID().Hex(),
		Source:        from.Name,
		Destination:   to.Name,
		Material:      g.Name,
		Weight:        g.Weight,
		ExpectedPrice: 1500 + int(distance*20),
		Contact:       fmt.Sprintf("+91 8%09d", rng.Intn(1000000000)),
		Company:       "SRS Logistics",
		Status:        models.LoadAvailable,
	}
}

func main() {
	cfg := config.Load()
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	seed := time.Now().UnixNano()
	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			seed = n
		}
	}
	rng := rand.New(rand.NewSource(seed))

	fleetSize := 5
	if v := os.Getenv("FLEET_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			fleetSize = n
		}
	}

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	database := client.Database(cfg.MongoDB)
	vehicles := db.NewMongoTable(database, db.TableVehicles)
	bookings := db.NewMongoTable(database, db.TableBookings)
	loads := db.NewMongoTable(database, db.TableLoads)

	feed := realtime.NewFeed(realtime.Config{
		BrokerURL:   cfg.MQTTBrokerURL,
		ClientID:    cfg.MQTTClientID + "-sim",
		TopicPrefix: cfg.MQTTTopicPrefix,
	}, store.New(), nil)
	if err := feed.Connect(); err != nil {
		log.WithError(err).Fatal("Failed to connect to MQTT broker")
	}
	defer feed.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"fleet_size": fleetSize,
		"interval":   cfg.SimInterval,
		"seed":       seed,
	}).Info("Starting fleet simulation")

	states := make([]*vehicleState, 0, fleetSize)
	for i := 0; i < fleetSize; i++ {
		s := seedVehicle(rng, i)
		if err := vehicles.InsertRow(ctx, s.Vehicle); err != nil {
			log.WithError(err).Error("Failed to seed vehicle")
			continue
		}
		feed.PublishChange(db.TableVehicles, "insert", s.Vehicle)
		log.WithFields(log.Fields{
			"vehicle_id":   s.Vehicle.ID,
			"registration": s.Vehicle.Registration,
		}).Info("Seeded vehicle")
		states = append(states, s)
	}
	if len(states) == 0 {
		log.Fatal("No vehicles seeded, exiting")
	}

	ticker := time.NewTicker(cfg.SimInterval)
	defer ticker.Stop()
	tick := 0

	for {
		select {
		case <-ctx.Done():
			log.Info("Simulation stopped")
			return
		case now := <-ticker.C:
			tick++

			for _, s := range states {
				fields := tickVehicle(s, rng, cfg.SimInterval.Seconds(), now)
				if err := vehicles.UpdateFields(ctx, s.Vehicle.ID, fields); err != nil {
					log.WithError(err).WithField("vehicle_id", s.Vehicle.ID).Warn("Vehicle update failed")
					continue
				}
				feed.PublishChange(db.TableVehicles, "update", s.Vehicle)
			}

			// a new booking request roughly every 10 ticks
			if tick%10 == 3 {
				b := newBooking(rng, now)
				if err := bookings.InsertRow(ctx, b); err != nil {
					log.WithError(err).Error("Booking insert failed")
				} else {
					feed.PublishChange(db.TableBookings, "insert", b)
					log.WithFields(log.Fields{
						"booking_id": b.ID,
						"customer":   b.CustomerName,
						"pickup":     b.PickupLocation,
						"drop":       b.DropLocation,
					}).Info("Customer raised booking")
				}
			}

			// customers answer counter-offers
			if tick%5 == 0 {
				answerCounterOffers(ctx, rng, bookings, feed, now)
			}

			// a fresh load on the board every 15 ticks
			if tick%15 == 7 {
				l := seedLoad(rng, now)
				if err := loads.InsertRow(ctx, l); err != nil {
					log.WithError(err).Error("Load insert failed")
				} else {
					feed.PublishChange(db.TableLoads, "insert", l)
					log.WithFields(log.Fields{"load_id": l.ID, "material": l.Material}).Info("Load posted")
				}
			}
		}
	}
}

func answerCounterOffers(ctx context.Context, rng *rand.Rand, bookings db.BookingCollection, feed *realtime.Feed, now time.Time) {
	rows, err := bookings.FindRows(ctx)
	if err != nil {
		log.WithError(err).Warn("Booking scan failed")
		return
	}
	for _, row := range rows {
		b := models.MapBooking(row)
		if b.Status != models.BookingBargaining || b.CounterOffer <= 0 {
			continue
		}
		fields, outcome := customerReply(rng, b, now)
		if err := bookings.UpdateFields(ctx, b.ID, fields); err != nil {
			log.WithError(err).WithField("booking_id", b.ID).Warn("Customer reply failed")
			continue
		}
		row["status"] = fields["status"]
		row["messages"] = fields["messages"]
		if v, ok := fields["offered_price"]; ok {
			row["offered_price"] = v
			row["counter_offer"] = 0
		}
		feed.PublishChange(db.TableBookings, "update", row)
		log.WithFields(log.Fields{"booking_id": b.ID, "outcome": outcome}).Info("Customer replied to counter-offer")
	}
}
