package session

import (
	"time"

	"github.com/parley-chat/parley/internal/entity"
)

type State string

const (
	StateLoading        State = "loading"
	StateRoomSelect     State = "room-select"
	StatePasswordVerify State = "password-verify"
	StateNameSelect     State = "name-select"
	StateActiveChat     State = "active-chat"
)

// RenderedMessage is a message prepared for one client's view. Self tells
// the renderer whether to right-align; event messages render centered with
// no sender name.
type RenderedMessage struct {
	ID        string     `json:"id"`
	Kind      string     `json:"kind"`
	Text      string     `json:"text"`
	SenderID  string     `json:"senderId"`
	Name      string     `json:"name,omitempty"`
	Timestamp *time.Time `json:"timestamp"`
	Self      bool       `json:"self"`
}

// View is the rendering surface a session draws on. Implementations must
// tolerate being called from the session's run loop goroutine only.
type View interface {
	State(st State)
	Error(field, message string)
	Append(msgs []RenderedMessage)
	PatchTimestamp(id string, ts time.Time)
	Remove(id string)
	Reset()
	Participants(parts []entity.Participant)
	Unseen(count int, title string)
	Navigate(token string)
	InputRestore(text string)
}

func rendered(m entity.Message, selfID string) RenderedMessage {
	return RenderedMessage{
		ID:        m.ID,
		Kind:      m.Kind,
		Text:      m.Text,
		SenderID:  m.SenderID,
		Name:      m.Name,
		Timestamp: m.Timestamp,
		Self:      m.SenderID == selfID,
	}
}
