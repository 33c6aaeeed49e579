package domain

import "time"

type MessageID string

// Message is the hydrated form a room broadcast carries: sender display
// fields are joined in by the store, never taken from the client.
type Message struct {
	ID          MessageID `json:"id"`
	RoomID      RoomID    `json:"room"`
	SenderID    UserID    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	SenderEmail string    `json:"senderEmail,omitempty"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}
