package models

import (
	"encoding/json"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The mapper normalizes loosely-typed rows, as decoded from storage or a
// realtime feed payload, into fully-populated domain records. Both paths
// run through the same defaults so they can never diverge. Mapping never
// fails: absent or malformed fields degrade to their documented defaults,
// and mapping an already-mapped row yields the same record.

const (
	defaultCustomerName = "Customer"
	defaultLocationText = "Unknown"
	defaultGoodsType    = "General"
	defaultWeight       = "0kg"
	defaultEmergency    = "General"
	defaultRegistration = "Unregistered"
)

// MapVehicle builds a Vehicle from a raw row.
func MapVehicle(row map[string]any) Vehicle {
	v := Vehicle{
		ID:           rowString(row, "id", rowString(row, "_id", "")),
		Registration: rowString(row, "registration_number", defaultRegistration),
		Type:         rowString(row, "type", "Truck"),
		Status:       VehicleStatus(rowString(row, "status", string(VehicleOffline))),
		Speed:        rowFloat(row, "speed", 0),
		FuelLevel:    rowFloat(row, "fuel_level", 0),
		BatteryLevel: rowFloat(row, "battery_level", 0),
		Ignition:     rowBool(row, "ignition", false),
		LastUpdated:  rowTime(row, "last_updated"),
		OwnerID:      rowString(row, "owner_id", ""),
	}
	if !IsValidVehicleStatus(v.Status) {
		v.Status = VehicleOffline
	}
	if v.Speed < 0 {
		v.Speed = 0
	}
	v.FuelLevel = clampPct(v.FuelLevel)
	v.BatteryLevel = clampPct(v.BatteryLevel)
	if loc, ok := row["location"].(map[string]any); ok {
		v.Location = Location{Lat: rowFloat(loc, "lat", 0), Lng: rowFloat(loc, "lng", 0)}
	} else {
		v.Location = Location{Lat: rowFloat(row, "lat", 0), Lng: rowFloat(row, "lng", 0)}
	}
	if h, ok := row["health"].(map[string]any); ok {
		v.Health = &VehicleHealth{
			TirePressure: rowFloat(h, "tire_pressure", 0),
			EngineTemp:   rowFloat(h, "engine_temp", 0),
			OilLife:      clampPct(rowFloat(h, "oil_life", 0)),
			LastService:  rowTime(h, "last_service"),
		}
	}
	return v
}

// MapBooking builds a BookingRequest from a raw row.
func MapBooking(row map[string]any) BookingRequest {
	b := BookingRequest{
		ID:             rowString(row, "id", rowString(row, "_id", "")),
		CustomerName:   rowString(row, "customer_name", defaultCustomerName),
		CustomerPhone:  rowString(row, "customer_phone", ""),
		PickupLocation: rowString(row, "pickup_location", defaultLocationText),
		DropLocation:   rowString(row, "drop_location", defaultLocationText),
		PickupLat:      rowFloat(row, "pickup_lat", 0),
		PickupLng:      rowFloat(row, "pickup_lng", 0),
		DropLat:        rowFloat(row, "drop_lat", 0),
		DropLng:        rowFloat(row, "drop_lng", 0),
		GoodsType:      rowString(row, "goods_type", defaultGoodsType),
		Weight:         rowString(row, "weight", defaultWeight),
		OfferedPrice:   rowInt(row, "offered_price", 0),
		CounterOffer:   rowInt(row, "counter_offer", 0),
		Status:         BookingStatus(rowString(row, "status", string(BookingPending))),
		Messages:       MapMessages(row["messages"]),
		DriverID:       rowString(row, "driver_id", ""),
		DriverResponse: rowString(row, "driver_response", ""),
		CreatedAt:      rowTime(row, "created_at"),
		UpdatedAt:      rowTime(row, "updated_at"),
	}
	switch b.Status {
	case BookingPending, BookingAccepted, BookingRejected, BookingBargaining,
		BookingCancelled, BookingCompleted:
	default:
		b.Status = BookingPending
	}
	// counter offers only exist while bargaining
	if b.Status != BookingBargaining {
		b.CounterOffer = 0
	}
	return b
}

// MapEmergency builds an EmergencyRequest from a raw row.
func MapEmergency(row map[string]any) EmergencyRequest {
	e := EmergencyRequest{
		ID:               rowString(row, "id", rowString(row, "_id", "")),
		Type:             rowString(row, "type", defaultEmergency),
		Status:           EmergencyStatus(rowString(row, "status", string(EmergencyPending))),
		ETA:              rowInt(row, "eta", 0),
		Location:         rowString(row, "location", defaultLocationText),
		Lat:              rowFloat(row, "lat", 0),
		Lng:              rowFloat(row, "lng", 0),
		Amount:           rowInt(row, "amount", 0),
		Messages:         MapMessages(row["messages"]),
		VehicleReg:       rowString(row, "vehicle_reg", ""),
		AssignedMechanic: rowString(row, "assigned_mechanic", ""),
		CreatedAt:        rowTime(row, "created_at"),
	}
	if !IsValidEmergencyStatus(e.Status) {
		e.Status = EmergencyPending
	}
	// a mechanic is only attached once the request leaves pending
	if e.Status == EmergencyPending {
		e.AssignedMechanic = ""
	}
	return e
}

// MapLoad builds a Load from a raw row.
func MapLoad(row map[string]any) Load {
	l := Load{
		ID:            rowString(row, "id", rowString(row, "_id", "")),
		Source:        rowString(row, "source", defaultLocationText),
		Destination:   rowString(row, "destination", defaultLocationText),
		Material:      rowString(row, "material", defaultGoodsType),
		Weight:        rowString(row, "weight", defaultWeight),
		ExpectedPrice: rowInt(row, "expected_price", 0),
		Contact:       rowString(row, "contact", ""),
		Company:       rowString(row, "company", ""),
		Status:        LoadStatus(rowString(row, "status", string(LoadAvailable))),
		AIAssessment:  rowString(row, "ai_assessment", ""),
	}
	if l.Status != LoadAvailable && l.Status != LoadRequested {
		l.Status = LoadAvailable
	}
	return l
}

// MapMessages normalizes a raw message list. A missing or malformed list
// maps to an empty slice, never nil, so appends and JSON output are uniform.
func MapMessages(raw any) []ChatMessage {
	items, ok := asSlice(raw)
	if !ok {
		return []ChatMessage{}
	}
	out := make([]ChatMessage, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			continue
		}
		out = append(out, ChatMessage{
			Sender: rowString(m, "sender", "customer"),
			Text:   rowString(m, "text", ""),
			Time:   rowTime(m, "time"),
		})
	}
	return out
}

func asSlice(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case primitive.A:
		return []any(v), true
	case []ChatMessage:
		items := make([]any, len(v))
		for i, m := range v {
			items[i] = map[string]any{"sender": m.Sender, "text": m.Text, "time": m.Time}
		}
		return items, true
	default:
		return nil, false
	}
}

func asMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case map[string]any:
		return v, true
	case primitive.M:
		return map[string]any(v), true
	default:
		return nil, false
	}
}

func rowString(row map[string]any, key, def string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return def
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

func rowFloat(row map[string]any, key string, def float64) float64 {
	v, ok := row[key]
	if !ok || v == nil {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return def
}

func rowInt(row map[string]any, key string, def int) int {
	return int(rowFloat(row, key, float64(def)))
}

func rowBool(row map[string]any, key string, def bool) bool {
	v, ok := row[key]
	if !ok || v == nil {
		return def
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return def
}

func rowTime(row map[string]any, key string) time.Time {
	v, ok := row[key]
	if !ok || v == nil {
		return time.Time{}
	}
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
