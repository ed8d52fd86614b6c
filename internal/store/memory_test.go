package store

import (
	"context"
	"sync"
	"testing"

	"github.com/parley-chat/parley/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type batchRecorder struct {
	mu      sync.Mutex
	batches []MessageBatch
}

func (r *batchRecorder) record(b MessageBatch) {
	r.mu.Lock()
	r.batches = append(r.batches, b)
	r.mu.Unlock()
}

func (r *batchRecorder) all() []MessageBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MessageBatch, len(r.batches))
	copy(out, r.batches)
	return out
}

func TestMemoryMessages_AppendDeliversAddedThenModified(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	rec := &batchRecorder{}
	disposer, aerr := ms.Messages().Watch(ctx, "team-x", rec.record)
	require.Nil(t, aerr)
	defer disposer()

	id, aerr := ms.Messages().Append(ctx, entity.Message{
		RoomSlug: "team-x",
		Kind:     entity.MessageKindUser,
		Text:     "hi",
		SenderID: "client-a",
		Name:     "Alice",
	})
	require.Nil(t, aerr)
	require.NotEmpty(t, id)

	batches := rec.all()
	require.Len(t, batches, 2)

	added := batches[0].Events[0]
	assert.Equal(t, ChangeAdded, added.Type)
	assert.Equal(t, id, added.Message.ID)
	assert.Nil(t, added.Message.Timestamp, "first delivery carries the pending (nil) timestamp")

	modified := batches[1].Events[0]
	assert.Equal(t, ChangeModified, modified.Type)
	assert.Equal(t, id, modified.Message.ID)
	require.NotNil(t, modified.Message.Timestamp, "confirmation carries the assigned timestamp")
}

func TestMemoryMessages_ManualConfirm(t *testing.T) {
	ms := NewMemoryStore()
	ms.ManualConfirm = true
	ctx := context.Background()

	rec := &batchRecorder{}
	disposer, _ := ms.Messages().Watch(ctx, "team-x", rec.record)
	defer disposer()

	id, aerr := ms.Messages().Append(ctx, entity.Message{RoomSlug: "team-x", Kind: entity.MessageKindUser, Text: "hi", SenderID: "a"})
	require.Nil(t, aerr)
	require.Len(t, rec.all(), 1, "no confirmation until Confirm is called")

	ms.Confirm("team-x", id)
	batches := rec.all()
	require.Len(t, batches, 2)
	assert.Equal(t, ChangeModified, batches[1].Events[0].Type)
}

func TestMemoryMessages_DisposerStopsDelivery(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	rec := &batchRecorder{}
	disposer, _ := ms.Messages().Watch(ctx, "team-x", rec.record)

	_, aerr := ms.Messages().Append(ctx, entity.Message{RoomSlug: "team-x", Kind: entity.MessageKindUser, Text: "one", SenderID: "a"})
	require.Nil(t, aerr)
	before := len(rec.all())

	disposer()

	_, aerr = ms.Messages().Append(ctx, entity.Message{RoomSlug: "team-x", Kind: entity.MessageKindUser, Text: "two", SenderID: "a"})
	require.Nil(t, aerr)
	assert.Len(t, rec.all(), before, "no delivery after dispose")
}

func TestMemoryMessages_DeleteBatch(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	var ids []string
	for _, text := range []string{"one", "two", "three"} {
		id, aerr := ms.Messages().Append(ctx, entity.Message{RoomSlug: "team-x", Kind: entity.MessageKindUser, Text: text, SenderID: "a"})
		require.Nil(t, aerr)
		ids = append(ids, id)
	}

	require.Nil(t, ms.Messages().DeleteBatch(ctx, "team-x", ids[:2]))

	remaining, aerr := ms.Messages().List(ctx, "team-x")
	require.Nil(t, aerr)
	require.Len(t, remaining, 1)
	assert.Equal(t, "three", remaining[0].Text)
}

func TestMemoryParticipants_Lifecycle(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	var snapshots [][]entity.Participant
	var mu sync.Mutex
	disposer, aerr := ms.Participants().Watch(ctx, "team-x", func(parts []entity.Participant) {
		mu.Lock()
		snapshots = append(snapshots, parts)
		mu.Unlock()
	})
	require.Nil(t, aerr)
	defer disposer()

	require.Nil(t, ms.Participants().Upsert(ctx, "team-x", "client-a", "Alice"))
	require.Nil(t, ms.Participants().Upsert(ctx, "team-x", "client-b", "Bob"))

	parts, aerr := ms.Participants().List(ctx, "team-x")
	require.Nil(t, aerr)
	require.Len(t, parts, 2)
	assert.Equal(t, "Alice", parts[0].Name, "list sorted by joined-at ascending")

	require.Nil(t, ms.Participants().Delete(ctx, "team-x", "client-a"))
	parts, aerr = ms.Participants().List(ctx, "team-x")
	require.Nil(t, aerr)
	require.Len(t, parts, 1)
	assert.Equal(t, "client-b", parts[0].ClientID)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots, "every change delivers a full snapshot")
	assert.Len(t, snapshots[len(snapshots)-1], 1)
}

func TestMemoryParticipants_TouchKeepsName(t *testing.T) {
	ms := NewMemoryStore()
	ctx := context.Background()

	require.Nil(t, ms.Participants().Upsert(ctx, "team-x", "client-a", "Alice"))

	before, _ := ms.Participants().List(ctx, "team-x")
	require.Nil(t, ms.Participants().Touch(ctx, "team-x", "client-a"))
	after, _ := ms.Participants().List(ctx, "team-x")

	require.Len(t, after, 1)
	assert.Equal(t, "Alice", after[0].Name)
	assert.False(t, after[0].JoinedAt.Before(before[0].JoinedAt))
}
