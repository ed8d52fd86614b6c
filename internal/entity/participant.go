package entity

import (
	"time"
)

// Participant is one client's membership row in a room. (roomSlug, clientId)
// is the compound key: a client holds at most one row per room.
type Participant struct {
	RoomSlug string    `bson:"roomSlug" json:"-"`
	ClientID string    `bson:"clientId" json:"id"`
	Name     string    `bson:"name" json:"name"`
	JoinedAt time.Time `bson:"joinedAt" json:"joinedAt"`
}
