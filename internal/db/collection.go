package db

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// The table collections return loosely-typed rows (bson.M) on reads so
// that the fetch path runs through the same entity mapper as the realtime
// feed. Writes take partial field sets and update by row id.

// VehicleCollection defines the interface for vehicle table operations.
type VehicleCollection interface {
	FindRows(ctx context.Context) ([]map[string]any, error)
	InsertRow(ctx context.Context, row any) error
	UpdateFields(ctx context.Context, id string, fields bson.M) error
}

// BookingCollection defines the interface for booking_requests table operations.
type BookingCollection interface {
	FindRows(ctx context.Context) ([]map[string]any, error)
	InsertRow(ctx context.Context, row any) error
	UpdateFields(ctx context.Context, id string, fields bson.M) error
	FindMessages(ctx context.Context, id string) ([]map[string]any, error)
}

// EmergencyCollection defines the interface for emergency_requests table operations.
type EmergencyCollection interface {
	FindRows(ctx context.Context) ([]map[string]any, error)
	InsertRow(ctx context.Context, row any) error
	UpdateFields(ctx context.Context, id string, fields bson.M) error
	FindMessages(ctx context.Context, id string) ([]map[string]any, error)
}

// LoadCollection defines the interface for loads table operations.
type LoadCollection interface {
	FindRows(ctx context.Context) ([]map[string]any, error)
	InsertRow(ctx context.Context, row any) error
	UpdateFields(ctx context.Context, id string, fields bson.M) error
}
