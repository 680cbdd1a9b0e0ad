package models

import (
	"time"
)

// BookingStatus is the lifecycle state of a booking request.
type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingAccepted   BookingStatus = "accepted"
	BookingRejected   BookingStatus = "rejected"
	BookingBargaining BookingStatus = "bargaining"
	BookingCancelled  BookingStatus = "cancelled"
	BookingCompleted  BookingStatus = "completed"
)

// ChatMessage is a single message in a booking or emergency conversation.
type ChatMessage struct {
	Sender string    `bson:"sender" json:"sender"` // "customer", "driver" or "mechanic"
	Text   string    `bson:"text" json:"text"`
	Time   time.Time `bson:"time" json:"time"`
}

// BookingRequest represents a customer transport request and its negotiation state.
type BookingRequest struct {
	ID             string        `bson:"_id" json:"id"`
	CustomerName   string        `bson:"customer_name" json:"customer_name"`
	CustomerPhone  string        `bson:"customer_phone" json:"customer_phone"`
	PickupLocation string        `bson:"pickup_location" json:"pickup_location"`
	DropLocation   string        `bson:"drop_location" json:"drop_location"`
	PickupLat      float64       `bson:"pickup_lat" json:"pickup_lat"`
	PickupLng      float64       `bson:"pickup_lng" json:"pickup_lng"`
	DropLat        float64       `bson:"drop_lat" json:"drop_lat"`
	DropLng        float64       `bson:"drop_lng" json:"drop_lng"`
	GoodsType      string        `bson:"goods_type" json:"goods_type"`
	Weight         string        `bson:"weight" json:"weight"`
	OfferedPrice   int           `bson:"offered_price" json:"offered_price"` // INR
	CounterOffer   int           `bson:"counter_offer,omitempty" json:"counter_offer,omitempty"`
	Status         BookingStatus `bson:"status" json:"status"`
	Messages       []ChatMessage `bson:"messages" json:"messages"`
	DriverID       string        `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	DriverResponse string        `bson:"driver_response,omitempty" json:"driver_response,omitempty"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// IsTerminal reports whether the booking can no longer change state.
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case BookingRejected, BookingCancelled, BookingCompleted:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a booking may move from one status to another.
// Transitions are one-way except bargaining, which can still resolve to
// accepted or rejected.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch s {
	case BookingPending:
		return to == BookingAccepted || to == BookingRejected ||
			to == BookingBargaining || to == BookingCancelled
	case BookingBargaining:
		return to == BookingAccepted || to == BookingRejected || to == BookingCancelled
	case BookingAccepted:
		return to == BookingCompleted || to == BookingCancelled
	default:
		return false
	}
}
