package models

import "time"

// Notification types written by the application.
const (
	NotificationGeneral      = "general"
	NotificationJoin         = "join"
	NotificationLeave        = "leave"
	NotificationMessage      = "message"
	NotificationWeatherAlert = "weather_alert"
)

// Notification is a document of the notifications collection.
type Notification struct {
	ID             string    `json:"id" firestore:"-"`
	RecipientEmail string    `json:"recipientEmail" firestore:"recipientEmail"`
	TripID         string    `json:"tripId" firestore:"tripId"`
	Message        string    `json:"message" firestore:"message"`
	Type           string    `json:"type" firestore:"type"`
	Destination    string    `json:"destination" firestore:"destination"`
	Read           bool      `json:"read" firestore:"read"`
	Timestamp      time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
}

// CountUnread returns the number of notifications with read=false.
func CountUnread(list []*Notification) int {
	n := 0
	for _, item := range list {
		if item != nil && !item.Read {
			n++
		}
	}
	return n
}

// NotificationEvent is published to the message queue for every stored notification.
type NotificationEvent struct {
	NotificationID string    `json:"notificationId"`
	RecipientEmail string    `json:"recipientEmail"`
	TripID         string    `json:"tripId"`
	Type           string    `json:"type"`
	Message        string    `json:"message"`
	Destination    string    `json:"destination"`
	CreatedAt      time.Time `json:"createdAt"`
}
