package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/parley-chat/parley/internal/apperr"
	"github.com/parley-chat/parley/internal/entity"
)

// MemoryStore implements both store contracts in process memory with
// synchronous watch delivery. It backs unit tests and single-binary dev
// runs where Mongo and Redis are not available.
type MemoryStore struct {
	mu           sync.Mutex
	messages     map[string][]entity.Message     // roomSlug -> log
	participants map[string][]entity.Participant // roomSlug -> members

	watchMu      sync.Mutex
	nextID       uint64
	msgWatchers  map[string]map[uint64]*watcher
	partWatchers map[string]map[uint64]*watcher

	// ManualConfirm suppresses the immediate timestamp confirmation on
	// Append; tests drive the pending-to-confirmed transition via Confirm.
	ManualConfirm bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:     make(map[string][]entity.Message),
		participants: make(map[string][]entity.Participant),
		msgWatchers:  make(map[string]map[uint64]*watcher),
		partWatchers: make(map[string]map[uint64]*watcher),
	}
}

// Messages returns the store through its message contract.
func (s *MemoryStore) Messages() MessageStoreContract { return (*memoryMessages)(s) }

// Participants returns the store through its participant contract.
func (s *MemoryStore) Participants() ParticipantStoreContract { return (*memoryParticipants)(s) }

func (s *MemoryStore) watch(registry map[string]map[uint64]*watcher, slug string, fn func([]byte)) Disposer {
	w := &watcher{fn: fn}

	s.watchMu.Lock()
	s.nextID++
	id := s.nextID
	if registry[slug] == nil {
		registry[slug] = make(map[uint64]*watcher)
	}
	registry[slug][id] = w
	s.watchMu.Unlock()

	return func() {
		s.watchMu.Lock()
		delete(registry[slug], id)
		s.watchMu.Unlock()
		w.dispose()
	}
}

func (s *MemoryStore) emit(registry map[string]map[uint64]*watcher, slug string, payload []byte) {
	s.watchMu.Lock()
	targets := make([]*watcher, 0, len(registry[slug]))
	for _, w := range registry[slug] {
		targets = append(targets, w)
	}
	s.watchMu.Unlock()

	for _, w := range targets {
		w.deliver(payload)
	}
}

func (s *MemoryStore) emitMessages(slug string, batch MessageBatch) {
	payload, _ := json.Marshal(batch)
	s.emit(s.msgWatchers, slug, payload)
}

func (s *MemoryStore) emitParticipants(slug string) {
	s.emit(s.partWatchers, slug, []byte(`{}`))
}

// Confirm assigns the server timestamp to a still-pending message and
// delivers the modified event. Only meaningful with ManualConfirm set.
func (s *MemoryStore) Confirm(roomSlug, id string) {
	s.mu.Lock()
	var confirmed *entity.Message
	msgs := s.messages[roomSlug]
	for i := range msgs {
		if msgs[i].ID == id && msgs[i].Timestamp == nil {
			ts := time.Now().UTC()
			msgs[i].Timestamp = &ts
			m := msgs[i]
			confirmed = &m
			break
		}
	}
	s.mu.Unlock()

	if confirmed != nil {
		s.emitMessages(roomSlug, MessageBatch{Events: []MessageEvent{{Type: ChangeModified, Message: *confirmed}}})
	}
}

type memoryMessages MemoryStore

func (s *memoryMessages) Append(ctx context.Context, msg entity.Message) (string, *apperr.AppError) {
	ms := (*MemoryStore)(s)

	msg.ID = uuid.New().String()
	msg.Timestamp = nil

	ms.mu.Lock()
	ms.messages[msg.RoomSlug] = append(ms.messages[msg.RoomSlug], msg)
	ms.mu.Unlock()

	ms.emitMessages(msg.RoomSlug, MessageBatch{Events: []MessageEvent{{Type: ChangeAdded, Message: msg}}})

	if !ms.ManualConfirm {
		ms.Confirm(msg.RoomSlug, msg.ID)
	}
	return msg.ID, nil
}

func (s *memoryMessages) List(ctx context.Context, roomSlug string) ([]entity.Message, *apperr.AppError) {
	ms := (*MemoryStore)(s)

	ms.mu.Lock()
	out := make([]entity.Message, len(ms.messages[roomSlug]))
	copy(out, ms.messages[roomSlug])
	ms.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Timestamp, out[j].Timestamp
		if ti == nil {
			return tj != nil
		}
		if tj == nil {
			return false
		}
		return ti.Before(*tj)
	})
	return out, nil
}

func (s *memoryMessages) DeleteBatch(ctx context.Context, roomSlug string, ids []string) *apperr.AppError {
	ms := (*MemoryStore)(s)

	doomed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}

	ms.mu.Lock()
	kept := ms.messages[roomSlug][:0]
	for _, m := range ms.messages[roomSlug] {
		if _, gone := doomed[m.ID]; !gone {
			kept = append(kept, m)
		}
	}
	ms.messages[roomSlug] = kept
	ms.mu.Unlock()

	events := make([]MessageEvent, 0, len(ids))
	for _, id := range ids {
		events = append(events, MessageEvent{Type: ChangeRemoved, Message: entity.Message{ID: id, RoomSlug: roomSlug}})
	}
	ms.emitMessages(roomSlug, MessageBatch{Events: events})
	return nil
}

func (s *memoryMessages) Watch(ctx context.Context, roomSlug string, fn func(MessageBatch)) (Disposer, *apperr.AppError) {
	ms := (*MemoryStore)(s)
	disposer := ms.watch(ms.msgWatchers, roomSlug, func(payload []byte) {
		var batch MessageBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			return
		}
		fn(batch)
	})
	return disposer, nil
}

type memoryParticipants MemoryStore

func (s *memoryParticipants) List(ctx context.Context, roomSlug string) ([]entity.Participant, *apperr.AppError) {
	ms := (*MemoryStore)(s)

	ms.mu.Lock()
	out := make([]entity.Participant, len(ms.participants[roomSlug]))
	copy(out, ms.participants[roomSlug])
	ms.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out, nil
}

func (s *memoryParticipants) Upsert(ctx context.Context, roomSlug, clientID, name string) *apperr.AppError {
	ms := (*MemoryStore)(s)

	ms.mu.Lock()
	found := false
	for i := range ms.participants[roomSlug] {
		if ms.participants[roomSlug][i].ClientID == clientID {
			ms.participants[roomSlug][i].Name = name
			ms.participants[roomSlug][i].JoinedAt = time.Now().UTC()
			found = true
			break
		}
	}
	if !found {
		ms.participants[roomSlug] = append(ms.participants[roomSlug], entity.Participant{
			RoomSlug: roomSlug,
			ClientID: clientID,
			Name:     name,
			JoinedAt: time.Now().UTC(),
		})
	}
	ms.mu.Unlock()

	ms.emitParticipants(roomSlug)
	return nil
}

func (s *memoryParticipants) Touch(ctx context.Context, roomSlug, clientID string) *apperr.AppError {
	ms := (*MemoryStore)(s)

	ms.mu.Lock()
	for i := range ms.participants[roomSlug] {
		if ms.participants[roomSlug][i].ClientID == clientID {
			ms.participants[roomSlug][i].JoinedAt = time.Now().UTC()
			break
		}
	}
	ms.mu.Unlock()

	ms.emitParticipants(roomSlug)
	return nil
}

func (s *memoryParticipants) Delete(ctx context.Context, roomSlug, clientID string) *apperr.AppError {
	ms := (*MemoryStore)(s)

	ms.mu.Lock()
	kept := ms.participants[roomSlug][:0]
	for _, p := range ms.participants[roomSlug] {
		if p.ClientID != clientID {
			kept = append(kept, p)
		}
	}
	ms.participants[roomSlug] = kept
	ms.mu.Unlock()

	ms.emitParticipants(roomSlug)
	return nil
}

func (s *memoryParticipants) Watch(ctx context.Context, roomSlug string, fn func([]entity.Participant)) (Disposer, *apperr.AppError) {
	ms := (*MemoryStore)(s)
	disposer := ms.watch(ms.partWatchers, roomSlug, func([]byte) {
		snapshot, err := s.List(ctx, roomSlug)
		if err != nil {
			return
		}
		fn(snapshot)
	})
	return disposer, nil
}
