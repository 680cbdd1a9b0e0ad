package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ukydev/gaadi-fleet/internal/db"
	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
)

func bookingRow(id string, price int, status string) map[string]any {
	return map[string]any{
		"id":            id,
		"customer_name": "Rajesh Kumar",
		"offered_price": price,
		"status":        status,
		"created_at":    "2025-06-01T10:00:00Z",
	}
}

func TestMergeBookings_InsertPrepends(t *testing.T) {
	prev := []models.BookingRequest{{ID: "b1"}}

	next, inserted := MergeBookings(prev, ChangeEvent{Event: EventInsert, Row: bookingRow("b2", 900, "pending")})

	assert.True(t, inserted)
	assert.Len(t, next, 2)
	assert.Equal(t, "b2", next[0].ID)
	// original slice untouched
	assert.Len(t, prev, 1)
}

func TestMergeBookings_InsertDedupsOptimisticRow(t *testing.T) {
	// the optimistic path already created b1; the feed insert is a
	// confirmation that may refresh fields, never a duplicate
	prev := []models.BookingRequest{{ID: "b1", Status: models.BookingPending, OfferedPrice: 2500}}

	next, inserted := MergeBookings(prev, ChangeEvent{Event: EventInsert, Row: bookingRow("b1", 2500, "pending")})

	assert.False(t, inserted)
	assert.Len(t, next, 1)
	assert.Equal(t, 2500, next[0].OfferedPrice)
	assert.Equal(t, "Rajesh Kumar", next[0].CustomerName)
}

func TestMergeBookings_Convergence(t *testing.T) {
	insert := ChangeEvent{Event: EventInsert, Row: bookingRow("b1", 2500, "pending")}
	update := ChangeEvent{Event: EventUpdate, Row: bookingRow("b1", 3000, "bargaining")}

	a, _ := MergeBookings(nil, insert)
	a, _ = MergeBookings(a, update)

	b, _ := MergeBookings(nil, update)
	b, _ = MergeBookings(b, insert)

	// full-snapshot merge: last event wins regardless of arrival order,
	// and both orders leave exactly one row
	assert.Len(t, a, 1)
	assert.Len(t, b, 1)
	last, _ := MergeBookings(b, update)
	assert.Equal(t, a, last)
}

func TestMergeBookings_EmptyMessagesNeverEraseLocal(t *testing.T) {
	local := []models.BookingRequest{{
		ID:     "b1",
		Status: models.BookingPending,
		Messages: []models.ChatMessage{
			{Sender: "driver", Text: "on my way", Time: time.Now()},
		},
	}}

	row := bookingRow("b1", 2500, "accepted")
	next, _ := MergeBookings(local, ChangeEvent{Event: EventUpdate, Row: row})

	assert.Equal(t, models.BookingAccepted, next[0].Status)
	assert.Len(t, next[0].Messages, 1, "empty incoming list must not erase local messages")

	// a non-empty incoming list does replace
	row["messages"] = []any{
		map[string]any{"sender": "customer", "text": "ok", "time": "2025-06-01T11:00:00Z"},
		map[string]any{"sender": "driver", "text": "on my way", "time": "2025-06-01T11:01:00Z"},
	}
	next, _ = MergeBookings(next, ChangeEvent{Event: EventUpdate, Row: row})
	assert.Len(t, next[0].Messages, 2)
}

func TestMergeBookings_Delete(t *testing.T) {
	prev := []models.BookingRequest{{ID: "b1"}, {ID: "b2"}}

	next, inserted := MergeBookings(prev, ChangeEvent{Event: EventDelete, Row: map[string]any{"id": "b1"}})

	assert.False(t, inserted)
	assert.Len(t, next, 1)
	assert.Equal(t, "b2", next[0].ID)
}

func TestMergeBookings_RowWithoutIDIgnored(t *testing.T) {
	prev := []models.BookingRequest{{ID: "b1"}}
	next, inserted := MergeBookings(prev, ChangeEvent{Event: EventInsert, Row: map[string]any{"offered_price": 100}})
	assert.False(t, inserted)
	assert.Equal(t, prev, next)
}

func TestMergeVehicles_DeleteIgnored(t *testing.T) {
	prev := []models.Vehicle{{ID: "v1"}}
	next, _ := MergeVehicles(prev, ChangeEvent{Event: EventDelete, Row: map[string]any{"id": "v1"}})
	assert.Len(t, next, 1)
}

func TestMergeLoads_KeepsLocalAssessment(t *testing.T) {
	prev := []models.Load{{ID: "l1", Status: models.LoadAvailable, AIAssessment: "Good load."}}

	next, _ := MergeLoads(prev, ChangeEvent{Event: EventUpdate, Row: map[string]any{"id": "l1", "status": "requested"}})

	assert.Equal(t, models.LoadRequested, next[0].Status)
	assert.Equal(t, "Good load.", next[0].AIAssessment)
}

func TestFeedApply_EndToEndOptimisticCreateThenInsertEvent(t *testing.T) {
	s := store.New()
	var notified []string
	f := &Feed{
		store:  s,
		states: map[string]FeedState{},
		notify: func(table, id string) { notified = append(notified, table+"/"+id) },
	}

	// optimistic create already placed the row locally
	s.Bookings.Set([]models.BookingRequest{{ID: "b1", Status: models.BookingPending, OfferedPrice: 2500}})

	// the matching feed insert arrives later
	f.Apply(ChangeEvent{Event: EventInsert, Table: db.TableBookings, Row: bookingRow("b1", 2500, "pending")})

	snap := s.Bookings.Snapshot()
	assert.Len(t, snap, 1, "store must contain exactly one row for the id")
	assert.Equal(t, models.BookingPending, snap[0].Status)
	assert.Equal(t, 2500, snap[0].OfferedPrice)
	assert.Empty(t, notified, "confirmation of an optimistic insert must not notify")

	// a foreign insert does notify
	f.Apply(ChangeEvent{Event: EventInsert, Table: db.TableBookings, Row: bookingRow("b2", 900, "pending")})
	assert.Equal(t, []string{"booking_requests/b2"}, notified)
	assert.Len(t, s.Bookings.Snapshot(), 2)
}

func TestFeedApply_EmergencyUpdate(t *testing.T) {
	s := store.New()
	f := &Feed{store: s, states: map[string]FeedState{}}
	s.Emergencies.Set([]models.EmergencyRequest{{ID: "e1", Status: models.EmergencyPending}})

	f.Apply(ChangeEvent{Event: EventUpdate, Table: db.TableEmergencies, Row: map[string]any{
		"id": "e1", "status": "assigned", "eta": 20, "assigned_mechanic": "Suresh",
	}})

	snap := s.Emergencies.Snapshot()
	assert.Equal(t, models.EmergencyAssigned, snap[0].Status)
	assert.Equal(t, 20, snap[0].ETA)
	assert.Equal(t, "Suresh", snap[0].AssignedMechanic)
}
