// Package realtime merges server-pushed change events into the local
// store. The transport (MQTT topic broadcast) is kept apart from the
// merge policy so the reconciliation logic tests without a broker.
package realtime

import (
	"github.com/ukydev/gaadi-fleet/internal/models"
)

// EventType tags a change event.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeEvent is one broadcast row change. Row is always the full current
// row, never a diff; the transport gives no ordering guarantee across
// rapid events for the same id.
type ChangeEvent struct {
	Event EventType      `json:"event"`
	Table string         `json:"table"`
	Row   map[string]any `json:"row"`
}

// MergeBookings applies a change event to the booking collection and
// reports whether a genuinely new row was inserted.
//
// Insert policy: if the id already exists locally, the event is a
// confirmation of an optimistic write; the row's fields are refreshed in
// place rather than duplicated. Update policy: full-snapshot merge by id,
// except an empty incoming message list never erases locally-known
// messages.
func MergeBookings(prev []models.BookingRequest, ev ChangeEvent) ([]models.BookingRequest, bool) {
	incoming := models.MapBooking(ev.Row)
	if incoming.ID == "" {
		return prev, false
	}

	switch ev.Event {
	case EventDelete:
		next := make([]models.BookingRequest, 0, len(prev))
		for _, b := range prev {
			if b.ID != incoming.ID {
				next = append(next, b)
			}
		}
		return next, false

	case EventInsert, EventUpdate:
		for i, b := range prev {
			if b.ID != incoming.ID {
				continue
			}
			if len(incoming.Messages) == 0 {
				incoming.Messages = b.Messages
			}
			next := make([]models.BookingRequest, len(prev))
			copy(next, prev)
			next[i] = incoming
			return next, false
		}
		// an update for an unknown row degrades to an insert; the event
		// carries the full row either way
		return prependBookings(prev, incoming), true
	}
	return prev, false
}

// MergeEmergencies applies a change event to the emergency collection.
func MergeEmergencies(prev []models.EmergencyRequest, ev ChangeEvent) ([]models.EmergencyRequest, bool) {
	incoming := models.MapEmergency(ev.Row)
	if incoming.ID == "" {
		return prev, false
	}

	switch ev.Event {
	case EventDelete:
		next := make([]models.EmergencyRequest, 0, len(prev))
		for _, e := range prev {
			if e.ID != incoming.ID {
				next = append(next, e)
			}
		}
		return next, false

	case EventInsert, EventUpdate:
		for i, e := range prev {
			if e.ID != incoming.ID {
				continue
			}
			if len(incoming.Messages) == 0 {
				incoming.Messages = e.Messages
			}
			next := make([]models.EmergencyRequest, len(prev))
			copy(next, prev)
			next[i] = incoming
			return next, false
		}
		next := make([]models.EmergencyRequest, 0, len(prev)+1)
		next = append(next, incoming)
		return append(next, prev...), true
	}
	return prev, false
}

// MergeVehicles applies a change event to the vehicle collection.
// Vehicles are never deleted in-session; delete events are ignored.
func MergeVehicles(prev []models.Vehicle, ev ChangeEvent) ([]models.Vehicle, bool) {
	incoming := models.MapVehicle(ev.Row)
	if incoming.ID == "" || ev.Event == EventDelete {
		return prev, false
	}
	for i, v := range prev {
		if v.ID != incoming.ID {
			continue
		}
		next := make([]models.Vehicle, len(prev))
		copy(next, prev)
		next[i] = incoming
		return next, false
	}
	next := make([]models.Vehicle, 0, len(prev)+1)
	next = append(next, incoming)
	return append(next, prev...), true
}

// MergeLoads applies a change event to the load collection.
func MergeLoads(prev []models.Load, ev ChangeEvent) ([]models.Load, bool) {
	incoming := models.MapLoad(ev.Row)
	if incoming.ID == "" {
		return prev, false
	}

	switch ev.Event {
	case EventDelete:
		next := make([]models.Load, 0, len(prev))
		for _, l := range prev {
			if l.ID != incoming.ID {
				next = append(next, l)
			}
		}
		return next, false

	case EventInsert, EventUpdate:
		for i, l := range prev {
			if l.ID != incoming.ID {
				continue
			}
			// an in-flight assessment is only known locally until it lands
			if incoming.AIAssessment == "" {
				incoming.AIAssessment = l.AIAssessment
			}
			next := make([]models.Load, len(prev))
			copy(next, prev)
			next[i] = incoming
			return next, false
		}
		next := make([]models.Load, 0, len(prev)+1)
		next = append(next, incoming)
		return append(next, prev...), true
	}
	return prev, false
}

func prependBookings(prev []models.BookingRequest, b models.BookingRequest) []models.BookingRequest {
	next := make([]models.BookingRequest, 0, len(prev)+1)
	next = append(next, b)
	return append(next, prev...)
}
