package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"freight/internal/middleware"
	"freight/internal/service"
)

// TrackingHandler handles GPS ingestion and tracking queries.
type TrackingHandler struct {
	ingest   *service.IngestService
	tracking *service.TrackingService
}

// NewTrackingHandler creates a new TrackingHandler.
func NewTrackingHandler(ingest *service.IngestService, tracking *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{ingest: ingest, tracking: tracking}
}

// PositionRequest is the HTTP request body for a GPS position report.
type PositionRequest struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	SpeedKmh  *float64 `json:"speed_kmh,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	AltitudeM *float64 `json:"altitude_m,omitempty"`
	AccuracyM *float64 `json:"accuracy_m,omitempty"`
	Timestamp *string  `json:"timestamp,omitempty"` // RFC 3339
}

// PositionAckResponse acknowledges an accepted report.
type PositionAckResponse struct {
	SampleID   string `json:"sample_id"`
	RecordedAt string `json:"recorded_at"`
	Remaining  int    `json:"reports_remaining"`
}

// ReportPosition handles POST /v1/trips/:id/positions
func (h *TrackingHandler) ReportPosition(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	report := service.PositionReport{
		Lat:       req.Lat,
		Lng:       req.Lng,
		SpeedKmh:  req.SpeedKmh,
		Heading:   req.Heading,
		AltitudeM: req.AltitudeM,
		AccuracyM: req.AccuracyM,
	}

	if req.Timestamp != nil {
		ts, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid timestamp"})
			return
		}
		report.Timestamp = &ts
	}

	ack, err := h.ingest.Ingest(c.Request.Context(), c.Param("id"), actor, report)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, PositionAckResponse{
		SampleID:   ack.SampleID,
		RecordedAt: ack.RecordedAt.Format(timestampFormat),
		Remaining:  ack.Remaining,
	})
}

// PositionPoint is one sample in a live or history response.
type PositionPoint struct {
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	SpeedKmh   *float64 `json:"speed_kmh,omitempty"`
	Heading    *float64 `json:"heading,omitempty"`
	RecordedAt string   `json:"recorded_at"`
}

// LiveResponse is the HTTP response for the live tracking view.
type LiveResponse struct {
	TripID          string         `json:"trip_id"`
	Status          string         `json:"status"`
	CurrentLocation *PositionPoint `json:"current_location"`
	Signal          string         `json:"gps_signal"`
	ETAMinutes      *float64       `json:"eta_minutes,omitempty"`
}

// Live handles GET /v1/trips/:id/tracking/live
func (h *TrackingHandler) Live(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	view, err := h.tracking.Live(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := LiveResponse{
		TripID:     view.TripID,
		Status:     string(view.Status),
		Signal:     string(view.Signal),
		ETAMinutes: view.ETAMinutes,
	}

	if view.CurrentLocation != nil {
		resp.CurrentLocation = &PositionPoint{
			Lat:        view.CurrentLocation.Lat,
			Lng:        view.CurrentLocation.Lng,
			RecordedAt: view.CurrentLocation.UpdatedAt.Format(timestampFormat),
		}
	}

	respondJSON(c, http.StatusOK, resp)
}

// HistoryResponse is the HTTP response for the history view.
type HistoryResponse struct {
	TripID          string          `json:"trip_id"`
	Points          []PositionPoint `json:"points"`
	TotalSamples    int             `json:"total_samples"`
	DistanceKm      float64         `json:"distance_km"`
	AvgSpeedKmh     *float64        `json:"avg_speed_kmh,omitempty"`
	DurationMinutes *float64        `json:"duration_minutes,omitempty"`
	Simplified      bool            `json:"simplified"`
}

// History handles GET /v1/trips/:id/tracking/history
func (h *TrackingHandler) History(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		respondError(c, service.ErrUnauthenticated)
		return
	}

	query := service.HistoryQuery{
		Simplified: c.Query("resolution") == "simplified",
	}

	if from := c.Query("from"); from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid from timestamp"})
			return
		}
		query.From = ts
	}

	if to := c.Query("to"); to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid to timestamp"})
			return
		}
		query.To = ts
	}

	view, err := h.tracking.History(c.Request.Context(), c.Param("id"), actor, query)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := HistoryResponse{
		TripID:       view.TripID,
		Points:       make([]PositionPoint, 0, len(view.Points)),
		TotalSamples: view.TotalSamples,
		DistanceKm:   view.DistanceKm,
		AvgSpeedKmh:  view.AvgSpeedKmh,
		Simplified:   view.Simplified,
	}

	if view.Duration != nil {
		minutes := view.Duration.Minutes()
		resp.DurationMinutes = &minutes
	}

	for _, p := range view.Points {
		resp.Points = append(resp.Points, PositionPoint{
			Lat:        p.Lat,
			Lng:        p.Lng,
			SpeedKmh:   p.SpeedKmh,
			Heading:    p.Heading,
			RecordedAt: p.RecordedAt.Format(timestampFormat),
		})
	}

	respondJSON(c, http.StatusOK, resp)
}
