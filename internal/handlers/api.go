package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ukydev/gaadi-fleet/internal/ai"
	"github.com/ukydev/gaadi-fleet/internal/gateway"
	"github.com/ukydev/gaadi-fleet/internal/geo"
	"github.com/ukydev/gaadi-fleet/internal/middleware"
	"github.com/ukydev/gaadi-fleet/internal/models"
	"github.com/ukydev/gaadi-fleet/internal/store"
	"github.com/ukydev/gaadi-fleet/internal/views"
)

// APIHandler exposes the synchronized fleet state and the booking
// lifecycle operations over JSON endpoints.
type APIHandler struct {
	gw    *gateway.Gateway
	store *store.Store
	ai    *ai.Client
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(gw *gateway.Gateway, s *store.Store, aiClient *ai.Client) *APIHandler {
	return &APIHandler{gw: gw, store: s, ai: aiClient}
}

// Register wires all API routes onto the mux
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/vehicles", h.ListVehicles)
	mux.HandleFunc("POST /api/vehicles/{id}/status", h.UpdateVehicleStatus)
	mux.HandleFunc("GET /api/alerts", h.ListAlerts)
	mux.HandleFunc("GET /api/map", h.FleetMap)

	mux.HandleFunc("GET /api/bookings", h.ListBookings)
	mux.HandleFunc("POST /api/bookings", h.CreateBooking)
	mux.HandleFunc("GET /api/bookings/pending", h.PendingBookings)
	mux.HandleFunc("GET /api/bookings/active", h.ActiveBooking)
	mux.HandleFunc("GET /api/bookings/{id}/map", h.BookingMap)
	mux.HandleFunc("POST /api/bookings/{id}/accept", h.AcceptBooking)
	mux.HandleFunc("POST /api/bookings/{id}/reject", h.RejectBooking)
	mux.HandleFunc("POST /api/bookings/{id}/counter", h.CounterOffer)
	mux.HandleFunc("POST /api/bookings/{id}/cancel", h.CancelBooking)
	mux.HandleFunc("POST /api/bookings/{id}/complete", h.CompleteBooking)
	mux.HandleFunc("POST /api/bookings/{id}/message", h.SendMessage)

	mux.HandleFunc("GET /api/emergencies", h.ListEmergencies)
	mux.HandleFunc("POST /api/emergencies", h.CreateEmergency)
	mux.HandleFunc("POST /api/emergencies/{id}/status", h.UpdateEmergencyStatus)
	mux.HandleFunc("POST /api/emergencies/{id}/message", h.SendEmergencyMessage)
	mux.HandleFunc("POST /api/sos", h.SOS)

	mux.HandleFunc("GET /api/loads", h.ListLoads)
	mux.HandleFunc("POST /api/loads/{id}/request", h.RequestLoad)

	mux.HandleFunc("POST /api/ai/estimate", h.EstimateLoad)
	mux.HandleFunc("POST /api/ai/diagnose", h.Diagnose)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeGatewayError maps gateway errors onto HTTP statuses
func writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, gateway.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, gateway.ErrCounterOfferPrice),
		errors.Is(err, gateway.ErrReasonRequired),
		errors.Is(err, gateway.ErrEmptyMessage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *APIHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Vehicles.Snapshot())
}

func (h *APIHandler) UpdateVehicleStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status       *models.VehicleStatus `json:"status"`
		Ignition     *bool                 `json:"ignition"`
		Speed        *float64              `json:"speed"`
		FuelLevel    *float64              `json:"fuel_level"`
		BatteryLevel *float64              `json:"battery_level"`
		Location     *models.Location      `json:"location"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	patch := gateway.VehiclePatch{
		Status:       req.Status,
		Ignition:     req.Ignition,
		Speed:        req.Speed,
		FuelLevel:    req.FuelLevel,
		BatteryLevel: req.BatteryLevel,
		Location:     req.Location,
	}
	if err := h.gw.UpdateVehicleStatus(r.Context(), r.PathValue("id"), patch); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *APIHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views.VehicleAlerts(h.store))
}

func (h *APIHandler) FleetMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, geo.FleetView(h.store))
}

func (h *APIHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Bookings.Snapshot())
}

func (h *APIHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerName   string  `json:"customer_name"`
		CustomerPhone  string  `json:"customer_phone"`
		PickupLocation string  `json:"pickup_location"`
		DropLocation   string  `json:"drop_location"`
		PickupLat      float64 `json:"pickup_lat"`
		PickupLng      float64 `json:"pickup_lng"`
		DropLat        float64 `json:"drop_lat"`
		DropLng        float64 `json:"drop_lng"`
		GoodsType      string  `json:"goods_type"`
		Weight         string  `json:"weight"`
		OfferedPrice   int     `json:"offered_price"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.OfferedPrice <= 0 {
		http.Error(w, "Offered price must be positive", http.StatusBadRequest)
		return
	}

	created := h.gw.CreateBooking(r.Context(), models.BookingRequest{
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		PickupLocation: req.PickupLocation,
		DropLocation:   req.DropLocation,
		PickupLat:      req.PickupLat,
		PickupLng:      req.PickupLng,
		DropLat:        req.DropLat,
		DropLng:        req.DropLng,
		GoodsType:      req.GoodsType,
		Weight:         req.Weight,
		OfferedPrice:   req.OfferedPrice,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) PendingBookings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views.PendingRequests(h.store))
}

func (h *APIHandler) ActiveBooking(w http.ResponseWriter, r *http.Request) {
	job := views.ActiveJob(h.store)
	if job == nil {
		http.Error(w, "No active job", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *APIHandler) BookingMap(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, b := range h.store.Bookings.Snapshot() {
		if b.ID == id {
			writeJSON(w, http.StatusOK, geo.JobView(b))
			return
		}
	}
	http.Error(w, "Booking not found", http.StatusNotFound)
}

func (h *APIHandler) AcceptBooking(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	if err := h.gw.AcceptBooking(r.Context(), r.PathValue("id"), claims.UserID); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (h *APIHandler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.RejectBooking(r.Context(), r.PathValue("id")); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

func (h *APIHandler) CounterOffer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price int `json:"price"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.gw.CounterOffer(r.Context(), r.PathValue("id"), req.Price); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "bargaining"})
}

func (h *APIHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.gw.CancelBooking(r.Context(), r.PathValue("id"), req.Reason); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *APIHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	if err := h.gw.CompleteBooking(r.Context(), r.PathValue("id")); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *APIHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.gw.SendMessage(r.Context(), r.PathValue("id"), req.Text); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *APIHandler) ListEmergencies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views.ActiveEmergencies(h.store))
}

func (h *APIHandler) CreateEmergency(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleReg string  `json:"vehicle_reg"`
		Type       string  `json:"type"`
		Location   string  `json:"location"`
		Lat        float64 `json:"lat"`
		Lng        float64 `json:"lng"`
		Amount     int     `json:"amount"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	created := h.gw.CreateEmergency(r.Context(), models.EmergencyRequest{
		VehicleReg: req.VehicleReg,
		Type:       req.Type,
		Location:   req.Location,
		Lat:        req.Lat,
		Lng:        req.Lng,
		Amount:     req.Amount,
	})
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) UpdateEmergencyStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var req struct {
		Status models.EmergencyStatus `json:"status"`
		ETA    *int                   `json:"eta_minutes"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	err := h.gw.UpdateEmergencyStatus(r.Context(), r.PathValue("id"), req.Status, req.ETA, claims.Username)
	if err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *APIHandler) SendEmergencyMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := h.gw.SendEmergencyMessage(r.Context(), r.PathValue("id"), req.Text); err != nil {
		writeGatewayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *APIHandler) SOS(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleReg   string          `json:"vehicle_reg"`
		LocationText string          `json:"location_text"`
		Location     models.Location `json:"location"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	created := h.gw.SOS(r.Context(), req.VehicleReg, req.LocationText, req.Location)
	writeJSON(w, http.StatusCreated, created)
}

func (h *APIHandler) ListLoads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views.AvailableLoads(h.store))
}

func (h *APIHandler) RequestLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleType string `json:"vehicle_type"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	id := r.PathValue("id")
	if err := h.gw.RequestLoad(r.Context(), id); err != nil {
		writeGatewayError(w, err)
		return
	}
	// assessment fills in ai_assessment later; the request context dies
	// with the response, so the background call gets its own
	go h.gw.AssessLoad(context.Background(), id, req.VehicleType)
	writeJSON(w, http.StatusOK, map[string]string{"status": "requested"})
}

func (h *APIHandler) EstimateLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		VehicleType string  `json:"vehicle_type"`
		Cargo       string  `json:"cargo"`
		DistanceKm  float64 `json:"distance_km"`
	}
	if !readJSON(w, r, &req) {
		return
	}

	estimate := h.ai.EstimateLoad(r.Context(), req.VehicleType, req.Cargo, req.DistanceKm)
	writeJSON(w, http.StatusOK, estimate)
}

func (h *APIHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symptoms string `json:"symptoms"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Symptoms == "" {
		http.Error(w, "Symptoms are required", http.StatusBadRequest)
		return
	}

	diagnosis := h.ai.Diagnose(r.Context(), req.Symptoms)
	writeJSON(w, http.StatusOK, diagnosis)
}
