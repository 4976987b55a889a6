package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"freight/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationTripStarted       NotificationType = "TRIP_STARTED"
	NotificationTripPickedUp      NotificationType = "TRIP_PICKED_UP"
	NotificationTripDelivered     NotificationType = "TRIP_DELIVERED"
	NotificationTripCompleted     NotificationType = "TRIP_COMPLETED"
	NotificationTripCancelled     NotificationType = "TRIP_CANCELLED"
	NotificationDeliveryConfirmed NotificationType = "DELIVERY_CONFIRMED"
)

// Notification represents a notification to be dispatched to an org.
type Notification struct {
	Type           NotificationType
	RecipientOrgID string
	Title          string
	Message        string
	Data           map[string]interface{}
	CreatedAt      time.Time
}

// NotificationService dispatches fire-and-forget notifications to the
// counterparty of a trip change. Delivery failures are logged, never
// surfaced: by the time a notification fires the transaction has
// already committed.
type NotificationService struct {
	// In a real deployment this fronts a push/SMS/email gateway.
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// statusNotificationType maps a trip status to the notification sent to the
// counterparty when the trip enters it.
var statusNotificationType = map[domain.TripStatus]NotificationType{
	domain.TripStatusPickupPending: NotificationTripStarted,
	domain.TripStatusInTransit:     NotificationTripPickedUp,
	domain.TripStatusDelivered:     NotificationTripDelivered,
	domain.TripStatusCompleted:     NotificationTripCompleted,
	domain.TripStatusCancelled:     NotificationTripCancelled,
}

// NotifyTripStatus notifies the counterparty org that the trip changed
// status.
func (s *NotificationService) NotifyTripStatus(ctx context.Context, trip *domain.Trip, recipientOrgID string) error {
	notifType, ok := statusNotificationType[trip.Status]
	if !ok {
		return nil
	}

	notification := Notification{
		Type:           notifType,
		RecipientOrgID: recipientOrgID,
		Title:          "Trip Update",
		Message:        fmt.Sprintf("Trip for load %s is now %s", trip.LoadID, trip.Status),
		Data: map[string]interface{}{
			"trip_id": trip.ID,
			"load_id": trip.LoadID,
			"status":  string(trip.Status),
		},
		CreatedAt: time.Now(),
	}

	return s.send(ctx, notification)
}

// NotifyDeliveryConfirmed notifies the carrier org that the shipper
// confirmed delivery.
func (s *NotificationService) NotifyDeliveryConfirmed(ctx context.Context, trip *domain.Trip) error {
	notification := Notification{
		Type:           NotificationDeliveryConfirmed,
		RecipientOrgID: trip.CarrierOrgID,
		Title:          "Delivery Confirmed",
		Message:        fmt.Sprintf("Shipper confirmed delivery for load %s", trip.LoadID),
		Data: map[string]interface{}{
			"trip_id": trip.ID,
			"load_id": trip.LoadID,
		},
		CreatedAt: time.Now(),
	}

	return s.send(ctx, notification)
}

func (s *NotificationService) send(_ context.Context, n Notification) error {
	// Stand-in for the real dispatcher integration.
	log.Printf("[NOTIFICATION] type=%s org=%s message=%q", n.Type, n.RecipientOrgID, n.Message)
	return nil
}
