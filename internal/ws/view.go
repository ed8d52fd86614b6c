package ws

import (
	"time"

	"github.com/parley-chat/parley/internal/entity"
	"github.com/parley-chat/parley/internal/session"
	"github.com/rs/zerolog/log"
)

// clientView renders a session onto one websocket connection by enqueueing
// frames on the client's send channel.
type clientView struct {
	c *Client
}

func newClientView(c *Client) session.View {
	return &clientView{c: c}
}

func (v *clientView) push(frame OutgoingFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		log.Error().Err(err).Str("frame", frame.Type).Msg("ws: failed to marshal frame")
		return
	}

	select {
	case v.c.Send <- data:
	case <-v.c.ctx.Done():
	default:
		// Slow consumer; same policy as broadcast, drop the connection.
		log.Warn().Str("clientID", v.c.ID).Msg("ws: slow consumer, closing")
		go v.c.Close()
	}
}

func (v *clientView) State(st session.State) {
	v.push(OutgoingFrame{Type: frameState, State: string(st)})
}

func (v *clientView) Error(field, message string) {
	v.push(OutgoingFrame{Type: frameError, Field: field, Message: message})
}

func (v *clientView) Append(msgs []session.RenderedMessage) {
	v.push(OutgoingFrame{Type: frameAppend, Messages: msgs})
}

func (v *clientView) PatchTimestamp(id string, ts time.Time) {
	v.push(OutgoingFrame{Type: framePatchTS, ID: id, Timestamp: &ts})
}

func (v *clientView) Remove(id string) {
	v.push(OutgoingFrame{Type: frameRemove, ID: id})
}

func (v *clientView) Reset() {
	v.push(OutgoingFrame{Type: frameReset})
}

func (v *clientView) Participants(parts []entity.Participant) {
	v.push(OutgoingFrame{Type: frameParticipants, Participants: parts})
}

func (v *clientView) Unseen(count int, title string) {
	v.push(OutgoingFrame{Type: frameUnseen, Count: count, Title: title})
}

func (v *clientView) Navigate(token string) {
	v.push(OutgoingFrame{Type: frameNavigate, Token: &token})
}

func (v *clientView) InputRestore(text string) {
	v.push(OutgoingFrame{Type: frameInputRestore, Text: text})
}
