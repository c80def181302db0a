package models

import "time"

// Sender identifies the author of a chat message.
type Sender struct {
	ID      string `json:"id" firestore:"id"` // user id, or e-mail when no id is known
	Name    string `json:"name" firestore:"name"`
	Picture string `json:"picture,omitempty" firestore:"picture"`
}

// ChatMessage is a document of the tripMessages collection.
type ChatMessage struct {
	ID        string    `json:"id" firestore:"-"`
	TripID    string    `json:"tripId" firestore:"tripId"`
	Text      string    `json:"text" firestore:"text"`
	ImageURL  string    `json:"imageUrl,omitempty" firestore:"imageUrl"`
	Sender    Sender    `json:"sender" firestore:"sender"`
	Timestamp time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`
}

// SendMessageRequest is the body of POST /trips/:tripId/messages.
type SendMessageRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl"`
}
