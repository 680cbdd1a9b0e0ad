package models

import (
	"time"
)

// EmergencyStatus is the lifecycle state of a roadside emergency request.
type EmergencyStatus string

const (
	EmergencyPending   EmergencyStatus = "pending"
	EmergencyAssigned  EmergencyStatus = "assigned"
	EmergencyTracking  EmergencyStatus = "tracking"
	EmergencyCompleted EmergencyStatus = "completed"
)

// EmergencyRequest represents a breakdown/assistance request raised by a driver.
type EmergencyRequest struct {
	ID               string          `bson:"_id" json:"id"`
	Type             string          `bson:"type" json:"type"` // "Breakdown", "Flat Tire", ...
	Status           EmergencyStatus `bson:"status" json:"status"`
	ETA              int             `bson:"eta" json:"eta"` // minutes
	Location         string          `bson:"location" json:"location"`
	Lat              float64         `bson:"lat" json:"lat"`
	Lng              float64         `bson:"lng" json:"lng"`
	Amount           int             `bson:"amount" json:"amount"` // INR
	Messages         []ChatMessage   `bson:"messages" json:"messages"`
	VehicleReg       string          `bson:"vehicle_reg,omitempty" json:"vehicle_reg,omitempty"`
	AssignedMechanic string          `bson:"assigned_mechanic,omitempty" json:"assigned_mechanic,omitempty"`
	CreatedAt        time.Time       `bson:"created_at" json:"created_at"`
}

// IsValidEmergencyStatus checks if an emergency status is one of the known states.
func IsValidEmergencyStatus(s EmergencyStatus) bool {
	switch s {
	case EmergencyPending, EmergencyAssigned, EmergencyTracking, EmergencyCompleted:
		return true
	default:
		return false
	}
}
