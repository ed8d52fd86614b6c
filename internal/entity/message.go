package entity

import (
	"time"
)

const (
	MessageKindUser  = "user"
	MessageKindEvent = "event"

	// SenderSystem marks room event messages (joins, leaves, clears).
	SenderSystem = "system"
)

// Message is an append-only chat log entry. Timestamp is nil between the
// optimistic insert and the store's confirmation; content is never edited,
// a message can only be deleted.
type Message struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	RoomSlug  string     `bson:"roomSlug" json:"-"`
	Kind      string     `bson:"kind" json:"kind"`
	Text      string     `bson:"text" json:"text"`
	SenderID  string     `bson:"senderId" json:"senderId"`
	Name      string     `bson:"name,omitempty" json:"name,omitempty"`
	Timestamp *time.Time `bson:"timestamp" json:"timestamp"`
}

// SystemEvent builds an event message with the system sender.
func SystemEvent(roomSlug, text string) Message {
	return Message{
		RoomSlug: roomSlug,
		Kind:     MessageKindEvent,
		Text:     text,
		SenderID: SenderSystem,
	}
}
