package models

import (
	"time"
)

// VehicleStatus is the operational state reported for a fleet vehicle.
type VehicleStatus string

const (
	VehicleRunning VehicleStatus = "Running"
	VehicleIdle    VehicleStatus = "Idle"
	VehicleStopped VehicleStatus = "Stopped"
	VehicleOffline VehicleStatus = "Offline"
)

// VehicleHealth carries optional workshop metrics for a vehicle.
type VehicleHealth struct {
	TirePressure float64   `bson:"tire_pressure" json:"tire_pressure"` // PSI
	EngineTemp   float64   `bson:"engine_temp" json:"engine_temp"`     // Celsius
	OilLife      float64   `bson:"oil_life" json:"oil_life"`           // percent
	LastService  time.Time `bson:"last_service,omitempty" json:"last_service,omitempty"`
}

// Vehicle represents a fleet vehicle and its live telemetry.
type Vehicle struct {
	ID           string         `bson:"_id" json:"id"`
	Registration string         `bson:"registration_number" json:"registration_number"`
	Type         string         `bson:"type" json:"type"` // "Truck", "Van", ...
	Status       VehicleStatus  `bson:"status" json:"status"`
	Speed        float64        `bson:"speed" json:"speed"` // km/h
	FuelLevel    float64        `bson:"fuel_level" json:"fuel_level"`
	BatteryLevel float64        `bson:"battery_level" json:"battery_level"`
	Ignition     bool           `bson:"ignition" json:"ignition"`
	Location     Location       `bson:"location" json:"location"`
	LastUpdated  time.Time      `bson:"last_updated" json:"last_updated"`
	Health       *VehicleHealth `bson:"health,omitempty" json:"health,omitempty"`
	OwnerID      string         `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
}

// IsValidVehicleStatus checks if a vehicle status is one of the known states.
func IsValidVehicleStatus(s VehicleStatus) bool {
	switch s {
	case VehicleRunning, VehicleIdle, VehicleStopped, VehicleOffline:
		return true
	default:
		return false
	}
}
