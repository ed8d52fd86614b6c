package ws

import (
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/parley-chat/parley/internal/entity"
	"github.com/parley-chat/parley/internal/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var validate = validator.New()

// IncomingFrame is one client command off the socket.
type IncomingFrame struct {
	Type     string `json:"type" validate:"required,oneof=navigate submit_room submit_password submit_name send leave clear focus blur"`
	Token    string `json:"token,omitempty"`
	Slug     string `json:"slug,omitempty"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
	Text     string `json:"text,omitempty"`
}

func (f *IncomingFrame) Command() session.Command {
	return session.Command{
		Op:       f.Type,
		Token:    f.Token,
		Slug:     f.Slug,
		Password: f.Password,
		Name:     f.Name,
		Text:     f.Text,
	}
}

// OutgoingFrame is one render operation pushed to the client.
type OutgoingFrame struct {
	Type         string                    `json:"type"`
	State        string                    `json:"state,omitempty"`
	Field        string                    `json:"field,omitempty"`
	Message      string                    `json:"message,omitempty"`
	Messages     []session.RenderedMessage `json:"messages,omitempty"`
	ID           string                    `json:"id,omitempty"`
	Timestamp    *time.Time                `json:"timestamp,omitempty"`
	Participants []entity.Participant      `json:"participants"`
	Count        int                       `json:"count"`
	Title        string                    `json:"title,omitempty"`
	Token        *string                   `json:"token,omitempty"`
	Text         string                    `json:"text,omitempty"`
}

const (
	frameState        = "state"
	frameError        = "error"
	frameAppend       = "append"
	framePatchTS      = "patch_ts"
	frameRemove       = "remove"
	frameReset        = "reset"
	frameParticipants = "participants"
	frameUnseen       = "unseen"
	frameNavigate     = "navigate"
	frameInputRestore = "input_restore"
)
