package store

import (
	"context"

	"github.com/parley-chat/parley/internal/apperr"
	"github.com/parley-chat/parley/internal/entity"
)

// Disposer stops a live subscription. After it returns, no callback for
// that subscription will fire again.
type Disposer func()

type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

type MessageEvent struct {
	Type    ChangeType     `json:"type"`
	Message entity.Message `json:"message"`
}

// MessageBatch is one delivery of the incremental message feed. Events
// within a batch carry no ordering guarantee, and batches carry no overall
// chronological guarantee against prior batches. Consumers must sort and
// de-duplicate by message id themselves.
type MessageBatch struct {
	Events []MessageEvent `json:"events"`
}

type MessageStoreContract interface {
	// Append persists a message and returns its server-assigned id. The
	// message is first delivered to watchers with a nil timestamp, then a
	// modified event confirms the server-assigned timestamp.
	Append(ctx context.Context, msg entity.Message) (string, *apperr.AppError)
	List(ctx context.Context, roomSlug string) ([]entity.Message, *apperr.AppError)
	// DeleteBatch removes the given messages. Chunks are applied
	// sequentially and the operation aborts on the first failed chunk.
	DeleteBatch(ctx context.Context, roomSlug string, ids []string) *apperr.AppError
	Watch(ctx context.Context, roomSlug string, fn func(MessageBatch)) (Disposer, *apperr.AppError)
}

type ParticipantStoreContract interface {
	List(ctx context.Context, roomSlug string) ([]entity.Participant, *apperr.AppError)
	Upsert(ctx context.Context, roomSlug, clientID, name string) *apperr.AppError
	// Touch refreshes joined-at for an existing membership row without
	// touching the stored name.
	Touch(ctx context.Context, roomSlug, clientID string) *apperr.AppError
	Delete(ctx context.Context, roomSlug, clientID string) *apperr.AppError
	// Watch delivers the full current participant set on every change,
	// not a diff.
	Watch(ctx context.Context, roomSlug string, fn func([]entity.Participant)) (Disposer, *apperr.AppError)
}
