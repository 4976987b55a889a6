package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"freight/internal/domain"
	"freight/internal/middleware"
	"freight/internal/service"
)

const timestampFormat = time.RFC3339

// TripHandler handles HTTP requests for trip lifecycle operations.
type TripHandler struct {
	transitions *service.TransitionService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(transitions *service.TransitionService) *TripHandler {
	return &TripHandler{transitions: transitions}
}

// TransitionRequest is the HTTP request body for a status transition.
type TransitionRequest struct {
	Status        string `json:"status" binding:"required"`
	Reason        string `json:"reason,omitempty"`
	ReceiverName  string `json:"receiver_name,omitempty"`
	ReceiverPhone string `json:"receiver_phone,omitempty"`
	DeliveryNotes string `json:"delivery_notes,omitempty"`
}

// TripResponse is the HTTP response for trip operations.
type TripResponse struct {
	TripID           string  `json:"trip_id"`
	LoadID           string  `json:"load_id"`
	TruckID          string  `json:"truck_id"`
	Status           string  `json:"status"`
	TrackingEnabled  bool    `json:"tracking_enabled"`
	ShipperConfirmed bool    `json:"shipper_confirmed"`
	EstimatedKm      float64 `json:"estimated_distance_km"`
	ActualKm         float64 `json:"actual_distance_km"`
	ReceiverName     string  `json:"receiver_name,omitempty"`
	ReceiverPhone    string  `json:"receiver_phone,omitempty"`
	DeliveryNotes    string  `json:"delivery_notes,omitempty"`
	CancelReason     string  `json:"cancel_reason,omitempty"`
	CreatedAt        string  `json:"created_at"`
	StartedAt        string  `json:"started_at,omitempty"`
	PickedUpAt       string  `json:"picked_up_at,omitempty"`
	DeliveredAt      string  `json:"delivered_at,omitempty"`
	CompletedAt      string  `json:"completed_at,omitempty"`
	CancelledAt      string  `json:"cancelled_at,omitempty"`
}

func tripResponse(trip *domain.Trip) TripResponse {
	resp := TripResponse{
		TripID:           trip.ID,
		LoadID:           trip.LoadID,
		TruckID:          trip.TruckID,
		Status:           string(trip.Status),
		TrackingEnabled:  trip.TrackingEnabled,
		ShipperConfirmed: trip.ShipperConfirmed,
		EstimatedKm:      trip.EstimatedDistanceKm,
		ActualKm:         trip.ActualDistanceKm,
		ReceiverName:     trip.ReceiverName,
		ReceiverPhone:    trip.ReceiverPhone,
		DeliveryNotes:    trip.DeliveryNotes,
		CancelReason:     trip.CancelReason,
		CreatedAt:        trip.CreatedAt.Format(timestampFormat),
	}

	if !trip.StartedAt.IsZero() {
		resp.StartedAt = trip.StartedAt.Format(timestampFormat)
	}
	if !trip.PickedUpAt.IsZero() {
		resp.PickedUpAt = trip.PickedUpAt.Format(timestampFormat)
	}
	if !trip.DeliveredAt.IsZero() {
		resp.DeliveredAt = trip.DeliveredAt.Format(timestampFormat)
	}
	if !trip.CompletedAt.IsZero() {
		resp.CompletedAt = trip.CompletedAt.Format(timestampFormat)
	}
	if !trip.CancelledAt.IsZero() {
		resp.CancelledAt = trip.CancelledAt.Format(timestampFormat)
	}

	return resp
}

// AssignLoad handles POST /v1/loads/:id/assign
func (h *TripHandler) AssignLoad(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	trip, err := h.transitions.CreateForAssignment(c.Request.Context(), service.CreateTripRequest{
		LoadID: c.Param("id"),
		Actor:  actor,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	trip, err := h.transitions.GetTrip(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// UpdateStatus handles POST /v1/trips/:id/status
func (h *TripHandler) UpdateStatus(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	trip, err := h.transitions.Transition(c.Request.Context(), service.TransitionRequest{
		TripID:        c.Param("id"),
		Target:        domain.TripStatus(req.Status),
		Actor:         actor,
		Reason:        req.Reason,
		ReceiverName:  req.ReceiverName,
		ReceiverPhone: req.ReceiverPhone,
		DeliveryNotes: req.DeliveryNotes,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// ConfirmDelivery handles POST /v1/trips/:id/confirm-delivery
func (h *TripHandler) ConfirmDelivery(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	trip, err := h.transitions.ConfirmDelivery(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, tripResponse(trip))
}
