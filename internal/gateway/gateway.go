// Package gateway implements the mutation path for booking, emergency,
// load and vehicle state. Every operation follows the same shape: apply
// the change to the local store first, then issue the durable write, then
// reconcile on failure. The local apply is a pure transform over the
// previous collection value, so the dashboards see the change before the
// server confirms it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/ukydev/gaadi-fleet/internal/db"
	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
)

var (
	ErrNotFound          = errors.New("request not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCounterOfferPrice = errors.New("counter offer price must be greater than zero")
	ErrReasonRequired    = errors.New("cancellation reason is required")
	ErrEmptyMessage      = errors.New("message text is empty")
)

// Publisher broadcasts a confirmed change to the realtime feed so other
// agents converge without a re-fetch. Optional.
type Publisher interface {
	PublishChange(table, event string, row any)
}

// LoadAssessor produces a short suitability note for a marketplace load.
// Implementations never fail; they degrade to a local estimate.
type LoadAssessor interface {
	Assess(ctx context.Context, vehicleType, material, weight string) string
}

// Gateway owns all state mutations of the live collections.
type Gateway struct {
	store       *store.Store
	vehicles    db.VehicleCollection
	bookings    db.BookingCollection
	emergencies db.EmergencyCollection
	loads       db.LoadCollection
	publisher   Publisher
	assessor    LoadAssessor

	// msgMu serializes the durable read-merge-write section of message
	// sends from this agent. The source ran callbacks to completion on one
	// thread; here the same guarantee needs a lock. Remote writers are
	// still handled by the read-before-append.
	msgMu sync.Mutex

	now   func() time.Time
	newID func() string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPublisher attaches a realtime publisher for confirmed writes.
func WithPublisher(p Publisher) Option {
	return func(g *Gateway) { g.publisher = p }
}

// WithAssessor attaches the AI load assessor.
func WithAssessor(a LoadAssessor) Option {
	return func(g *Gateway) { g.assessor = a }
}

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a Gateway over the given store and durable tables.
func New(s *store.Store, vehicles db.VehicleCollection, bookings db.BookingCollection,
	emergencies db.EmergencyCollection, loads db.LoadCollection, opts ...Option) *Gateway {
	g := &Gateway{
		store:       s,
		vehicles:    vehicles,
		bookings:    bookings,
		emergencies: emergencies,
		loads:       loads,
		now:         time.Now,
		newID:       func() string { return primitive.NewObjectID().Hex() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CreateBooking inserts a new booking request. The optimistic row is
// prepended immediately; a failed durable insert is logged and the local
// row stands until the next full re-fetch.
func (g *Gateway) CreateBooking(ctx context.Context, draft models.BookingRequest) models.BookingRequest {
	if draft.ID == "" {
		draft.ID = g.newID()
	}
	draft.Status = models.BookingPending
	draft.CreatedAt = g.now()
	draft.UpdatedAt = draft.CreatedAt
	if draft.CustomerName == "" {
		draft.CustomerName = "Customer"
	}
	if draft.Messages == nil {
		draft.Messages = []models.ChatMessage{}
	}

	g.store.Bookings.Update(func(prev []models.BookingRequest) []models.BookingRequest {
		return prependBooking(prev, draft)
	})

	if err := g.bookings.InsertRow(ctx, draft); err != nil {
		log.WithError(err).WithField("booking_id", draft.ID).Error("Durable booking insert failed, keeping optimistic row")
		return draft
	}
	g.publish(db.TableBookings, "insert", draft)
	return draft
}

// AcceptBooking marks a booking accepted and attaches the driver.
func (g *Gateway) AcceptBooking(ctx context.Context, id, driverID string) error {
	return g.transitionBooking(ctx, id, models.BookingAccepted, func(b *models.BookingRequest) bson.M {
		b.DriverID = driverID
		return bson.M{"status": b.Status, "driver_id": driverID}
	})
}

// RejectBooking marks a booking rejected.
func (g *Gateway) RejectBooking(ctx context.Context, id string) error {
	return g.transitionBooking(ctx, id, models.BookingRejected, func(b *models.BookingRequest) bson.M {
		return bson.M{"status": b.Status}
	})
}

// CounterOffer moves a booking into bargaining with the driver's price.
// A non-positive price is rejected locally and the store is unchanged.
func (g *Gateway) CounterOffer(ctx context.Context, id string, price int) error {
	if price <= 0 {
		return ErrCounterOfferPrice
	}
	return g.transitionBooking(ctx, id, models.BookingBargaining, func(b *models.BookingRequest) bson.M {
		b.CounterOffer = price
		return bson.M{"status": b.Status, "counter_offer": price}
	})
}

// CancelBooking cancels a booking, recording the reason. An empty reason
// is rejected locally and the store is unchanged.
func (g *Gateway) CancelBooking(ctx context.Context, id, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	return g.transitionBooking(ctx, id, models.BookingCancelled, func(b *models.BookingRequest) bson.M {
		b.DriverResponse = reason
		return bson.M{"status": b.Status, "driver_response": reason}
	})
}

// CompleteBooking marks an accepted booking completed.
func (g *Gateway) CompleteBooking(ctx context.Context, id string) error {
	return g.transitionBooking(ctx, id, models.BookingCompleted, func(b *models.BookingRequest) bson.M {
		return bson.M{"status": b.Status}
	})
}

// transitionBooking applies a status change optimistically, writes the
// durable update, and on failure re-fetches the whole collection to
// resynchronize before returning the error (rollback by refresh).
func (g *Gateway) transitionBooking(ctx context.Context, id string, to models.BookingStatus,
	mutate func(*models.BookingRequest) bson.M) error {

	var fields bson.M
	found := false
	g.store.Bookings.Update(func(prev []models.BookingRequest) []models.BookingRequest {
		next := make([]models.BookingRequest, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].ID != id {
				continue
			}
			if !next[i].Status.CanTransition(to) {
				return prev
			}
			found = true
			next[i].Status = to
			if to != models.BookingBargaining {
				next[i].CounterOffer = 0
			}
			next[i].UpdatedAt = g.now()
			fields = mutate(&next[i])
			fields["updated_at"] = next[i].UpdatedAt
			return next
		}
		return prev
	})
	if !found {
		if g.findBooking(id) == nil {
			return ErrNotFound
		}
		return fmt.Errorf("%w: booking %s -> %s", ErrInvalidTransition, id, to)
	}

	if err := g.bookings.UpdateFields(ctx, id, fields); err != nil {
		log.WithError(err).WithFields(log.Fields{"booking_id": id, "status": to}).Error("Durable booking update failed, refreshing")
		if refreshErr := g.RefreshBookings(ctx); refreshErr != nil {
			log.WithError(refreshErr).Error("Booking refresh after failed update also failed")
		}
		return fmt.Errorf("booking update failed: %w", err)
	}
	if updated := g.findBooking(id); updated != nil {
		g.publish(db.TableBookings, "update", *updated)
	}
	return nil
}

// SendMessage appends a driver message to a booking conversation.
//
// The optimistic append happens against the local copy; the durable path
// re-reads the stored message list and appends to it before persisting,
// so two senders racing within one round-trip cannot overwrite each
// other's message.
func (g *Gateway) SendMessage(ctx context.Context, bookingID, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	msg := models.ChatMessage{Sender: "driver", Text: text, Time: g.now()}

	g.store.Bookings.Update(func(prev []models.BookingRequest) []models.BookingRequest {
		next := make([]models.BookingRequest, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].ID == bookingID {
				next[i].Messages = appendMessage(next[i].Messages, msg)
			}
		}
		return next
	})

	g.msgMu.Lock()
	defer g.msgMu.Unlock()
	merged, err := g.mergeStoredMessages(ctx, g.bookings.FindMessages, bookingID, msg)
	if err != nil {
		log.WithError(err).WithField("booking_id", bookingID).Error("Failed to read stored booking messages")
		return nil
	}
	if err := g.bookings.UpdateFields(ctx, bookingID, bson.M{"messages": merged}); err != nil {
		log.WithError(err).WithField("booking_id", bookingID).Error("Failed to persist booking messages")
	}
	return nil
}

// SendEmergencyMessage appends a mechanic message to an emergency
// conversation, with the same read-before-append durable path.
func (g *Gateway) SendEmergencyMessage(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}
	msg := models.ChatMessage{Sender: "mechanic", Text: text, Time: g.now()}

	g.store.Emergencies.Update(func(prev []models.EmergencyRequest) []models.EmergencyRequest {
		next := make([]models.EmergencyRequest, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].ID == id {
				next[i].Messages = appendMessage(next[i].Messages, msg)
			}
		}
		return next
	})

	g.msgMu.Lock()
	defer g.msgMu.Unlock()
	merged, err := g.mergeStoredMessages(ctx, g.emergencies.FindMessages, id, msg)
	if err != nil {
		log.WithError(err).WithField("emergency_id", id).Error("Failed to read stored emergency messages")
		return nil
	}
	if err := g.emergencies.UpdateFields(ctx, id, bson.M{"messages": merged}); err != nil {
		log.WithError(err).WithField("emergency_id", id).Error("Failed to persist emergency messages")
	}
	return nil
}

// CreateEmergency raises a new assistance request.
func (g *Gateway) CreateEmergency(ctx context.Context, draft models.EmergencyRequest) models.EmergencyRequest {
	if draft.ID == "" {
		draft.ID = g.newID()
	}
	draft.Status = models.EmergencyPending
	draft.AssignedMechanic = ""
	draft.CreatedAt = g.now()
	if draft.Type == "" {
		draft.Type = "General"
	}
	if draft.Location == "" {
		draft.Location = "Unknown"
	}
	if draft.Messages == nil {
		draft.Messages = []models.ChatMessage{}
	}

	g.store.Emergencies.Update(func(prev []models.EmergencyRequest) []models.EmergencyRequest {
		next := make([]models.EmergencyRequest, 0, len(prev)+1)
		next = append(next, draft)
		return append(next, prev...)
	})

	if err := g.emergencies.InsertRow(ctx, draft); err != nil {
		log.WithError(err).WithField("emergency_id", draft.ID).Error("Durable emergency insert failed, keeping optimistic row")
		return draft
	}
	g.publish(db.TableEmergencies, "insert", draft)
	return draft
}

// SOS raises a breakdown emergency for the given vehicle, original
// driver-dashboard behavior.
func (g *Gateway) SOS(ctx context.Context, vehicleReg, locationText string, at models.Location) models.EmergencyRequest {
	return g.CreateEmergency(ctx, models.EmergencyRequest{
		Type:       "Breakdown",
		Location:   locationText,
		Lat:        at.Lat,
		Lng:        at.Lng,
		VehicleReg: vehicleReg,
	})
}

// UpdateEmergencyStatus moves an emergency through its lifecycle. ETA and
// mechanic name are optional; the mechanic can only be attached once the
// request leaves pending.
func (g *Gateway) UpdateEmergencyStatus(ctx context.Context, id string, status models.EmergencyStatus, eta *int, mechanicName string) error {
	if !models.IsValidEmergencyStatus(status) {
		return fmt.Errorf("%w: emergency status %q", ErrInvalidTransition, status)
	}

	fields := bson.M{"status": status}
	found := false
	g.store.Emergencies.Update(func(prev []models.EmergencyRequest) []models.EmergencyRequest {
		next := make([]models.EmergencyRequest, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].ID != id {
				continue
			}
			found = true
			next[i].Status = status
			if eta != nil {
				next[i].ETA = *eta
				fields["eta"] = *eta
			}
			if mechanicName != "" && status != models.EmergencyPending {
				next[i].AssignedMechanic = mechanicName
				fields["assigned_mechanic"] = mechanicName
			}
		}
		return next
	})
	if !found {
		return ErrNotFound
	}

	if err := g.emergencies.UpdateFields(ctx, id, fields); err != nil {
		log.WithError(err).WithFields(log.Fields{"emergency_id": id, "status": status}).Error("Durable emergency update failed")
		return nil
	}
	if updated := g.findEmergency(id); updated != nil {
		g.publish(db.TableEmergencies, "update", *updated)
	}
	return nil
}

// RequestLoad marks a marketplace load as requested by the driver.
func (g *Gateway) RequestLoad(ctx context.Context, id string) error {
	found := false
	g.store.Loads.Update(func(prev []models.Load) []models.Load {
		next := make([]models.Load, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].ID == id && next[i].Status == models.LoadAvailable {
				next[i].Status = models.LoadRequested
				found = true
			}
		}
		return next
	})
	if !found {
		return ErrNotFound
	}

	if err := g.loads.UpdateFields(ctx, id, bson.M{"status": models.LoadRequested}); err != nil {
		log.WithError(err).WithField("load_id", id).Error("Durable load update failed")
	}
	return nil
}

// AssessLoad asynchronously fills in the AI suitability note for a load.
// The assessment is absent until computed; callers observe it through the
// store once it lands.
func (g *Gateway) AssessLoad(ctx context.Context, id, vehicleType string) {
	if g.assessor == nil {
		return
	}
	var target *models.Load
	for _, l := range g.store.Loads.Snapshot() {
		if l.ID == id {
			target = &l
			break
		}
	}
	if target == nil {
		return
	}

	text := g.assessor.Assess(ctx, vehicleType, target.Material, target.Weight)

	g.store.Loads.Update(func(prev []models.Load) []models.Load {
		next := make([]models.Load, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].ID == id {
				next[i].AIAssessment = text
			}
		}
		return next
	})
	if err := g.loads.UpdateFields(ctx, id, bson.M{"ai_assessment": text}); err != nil {
		log.WithError(err).WithField("load_id", id).Error("Durable load assessment update failed")
	}
}

// VehiclePatch is a partial vehicle update. Nil fields are untouched.
type VehiclePatch struct {
	Status       *models.VehicleStatus
	Ignition     *bool
	Speed        *float64
	FuelLevel    *float64
	BatteryLevel *float64
	Location     *models.Location
}

// UpdateVehicleStatus applies a partial update to a vehicle. Toggling the
// ignition keeps the status coherent: on means Running, off means Stopped
// with zero speed.
func (g *Gateway) UpdateVehicleStatus(ctx context.Context, id string, patch VehiclePatch) error {
	fields := bson.M{}
	found := false
	g.store.Vehicles.Update(func(prev []models.Vehicle) []models.Vehicle {
		next := make([]models.Vehicle, len(prev))
		copy(next, prev)
		for i := range next {
			if next[i].ID != id {
				continue
			}
			found = true
			v := &next[i]
			if patch.Ignition != nil {
				v.Ignition = *patch.Ignition
				fields["ignition"] = *patch.Ignition
				if *patch.Ignition {
					v.Status = models.VehicleRunning
				} else {
					v.Status = models.VehicleStopped
					v.Speed = 0
					fields["speed"] = float64(0)
				}
				fields["status"] = v.Status
			}
			if patch.Status != nil && models.IsValidVehicleStatus(*patch.Status) {
				v.Status = *patch.Status
				fields["status"] = v.Status
			}
			if patch.Speed != nil && *patch.Speed >= 0 {
				v.Speed = *patch.Speed
				fields["speed"] = v.Speed
			}
			if patch.FuelLevel != nil {
				v.FuelLevel = clamp(*patch.FuelLevel, 0, 100)
				fields["fuel_level"] = v.FuelLevel
			}
			if patch.BatteryLevel != nil {
				v.BatteryLevel = clamp(*patch.BatteryLevel, 0, 100)
				fields["battery_level"] = v.BatteryLevel
			}
			if patch.Location != nil {
				v.Location = *patch.Location
				fields["location"] = bson.M{"lat": v.Location.Lat, "lng": v.Location.Lng}
			}
			v.LastUpdated = g.now()
			fields["last_updated"] = v.LastUpdated
		}
		return next
	})
	if !found {
		return ErrNotFound
	}
	if len(fields) == 0 {
		return nil
	}

	if err := g.vehicles.UpdateFields(ctx, id, fields); err != nil {
		log.WithError(err).WithField("vehicle_id", id).Error("Durable vehicle update failed")
	}
	return nil
}

// RefreshBookings re-fetches the booking table and replaces the local
// collection wholesale.
func (g *Gateway) RefreshBookings(ctx context.Context) error {
	rows, err := g.bookings.FindRows(ctx)
	if err != nil {
		return fmt.Errorf("fetch bookings: %w", err)
	}
	items := make([]models.BookingRequest, len(rows))
	for i, row := range rows {
		items[i] = models.MapBooking(row)
	}
	g.store.Bookings.Set(items)
	return nil
}

// RefreshEmergencies re-fetches the emergency table.
func (g *Gateway) RefreshEmergencies(ctx context.Context) error {
	rows, err := g.emergencies.FindRows(ctx)
	if err != nil {
		return fmt.Errorf("fetch emergencies: %w", err)
	}
	items := make([]models.EmergencyRequest, len(rows))
	for i, row := range rows {
		items[i] = models.MapEmergency(row)
	}
	g.store.Emergencies.Set(items)
	return nil
}

// RefreshVehicles re-fetches the vehicle table.
func (g *Gateway) RefreshVehicles(ctx context.Context) error {
	rows, err := g.vehicles.FindRows(ctx)
	if err != nil {
		return fmt.Errorf("fetch vehicles: %w", err)
	}
	items := make([]models.Vehicle, len(rows))
	for i, row := range rows {
		items[i] = models.MapVehicle(row)
	}
	g.store.Vehicles.Set(items)
	return nil
}

// RefreshLoads re-fetches the load table.
func (g *Gateway) RefreshLoads(ctx context.Context) error {
	rows, err := g.loads.FindRows(ctx)
	if err != nil {
		return fmt.Errorf("fetch loads: %w", err)
	}
	items := make([]models.Load, len(rows))
	for i, row := range rows {
		items[i] = models.MapLoad(row)
	}
	g.store.Loads.Set(items)
	return nil
}

func (g *Gateway) mergeStoredMessages(ctx context.Context,
	read func(context.Context, string) ([]map[string]any, error),
	id string, msg models.ChatMessage) ([]models.ChatMessage, error) {

	rows, err := read(ctx, id)
	if err != nil {
		return nil, err
	}
	stored := make([]any, len(rows))
	for i, r := range rows {
		stored[i] = r
	}
	return appendMessage(models.MapMessages(stored), msg), nil
}

func (g *Gateway) findBooking(id string) *models.BookingRequest {
	for _, b := range g.store.Bookings.Snapshot() {
		if b.ID == id {
			return &b
		}
	}
	return nil
}

func (g *Gateway) findEmergency(id string) *models.EmergencyRequest {
	for _, e := range g.store.Emergencies.Snapshot() {
		if e.ID == id {
			return &e
		}
	}
	return nil
}

func (g *Gateway) publish(table, event string, row any) {
	if g.publisher != nil {
		g.publisher.PublishChange(table, event, row)
	}
}

func prependBooking(prev []models.BookingRequest, b models.BookingRequest) []models.BookingRequest {
	next := make([]models.BookingRequest, 0, len(prev)+1)
	next = append(next, b)
	return append(next, prev...)
}

func appendMessage(msgs []models.ChatMessage, msg models.ChatMessage) []models.ChatMessage {
	next := make([]models.ChatMessage, 0, len(msgs)+1)
	next = append(next, msgs...)
	return append(next, msg)
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
