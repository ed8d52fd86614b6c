package store

import (
	"context"
	"fmt"
	"time"

	"github.com/parley-chat/parley/internal/apperr"
	"github.com/parley-chat/parley/internal/entity"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	messagesCollection     = "messages"
	participantsCollection = "participants"
)

// MongoMessageStore persists messages in MongoDB and publishes change
// events through the notifier after each committed write.
type MongoMessageStore struct {
	db        *mongo.Database
	notifier  *Notifier
	chunkSize int
}

func NewMongoMessageStore(client *mongo.Client, dbName string, notifier *Notifier, chunkSize int) MessageStoreContract {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &MongoMessageStore{
		db:        client.Database(dbName),
		notifier:  notifier,
		chunkSize: chunkSize,
	}
}

func (s *MongoMessageStore) Append(ctx context.Context, msg entity.Message) (string, *apperr.AppError) {
	coll := s.db.Collection(messagesCollection)

	msg.ID = bson.NewObjectID().Hex()
	msg.Timestamp = nil

	if _, err := coll.InsertOne(ctx, msg); err != nil {
		return "", apperr.Transient(fmt.Sprintf("failed to append message: %v", err))
	}
	s.publish(ctx, msg.RoomSlug, MessageBatch{Events: []MessageEvent{{Type: ChangeAdded, Message: msg}}})

	// Server-assigned timestamp confirms the pending message. Watchers see
	// it as a modified event, same as the optimistic flow they render.
	ts := time.Now().UTC()
	if _, err := coll.UpdateOne(ctx, bson.M{"_id": msg.ID}, bson.M{"$set": bson.M{"timestamp": ts}}); err != nil {
		// The message is already persisted and announced; a failed confirm
		// leaves only its timestamp stale. An error here would make the
		// sender retry a message the room can already see.
		log.Warn().Err(err).Str("slug", msg.RoomSlug).Str("id", msg.ID).Msg("store: message timestamp confirm failed")
		return msg.ID, nil
	}
	msg.Timestamp = &ts
	s.publish(ctx, msg.RoomSlug, MessageBatch{Events: []MessageEvent{{Type: ChangeModified, Message: msg}}})

	return msg.ID, nil
}

func (s *MongoMessageStore) List(ctx context.Context, roomSlug string) ([]entity.Message, *apperr.AppError) {
	coll := s.db.Collection(messagesCollection)

	cur, err := coll.Find(ctx, bson.M{"roomSlug": roomSlug}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, apperr.Transient(fmt.Sprintf("failed to fetch messages: %v", err))
	}
	defer cur.Close(ctx)

	var messages []entity.Message
	if err := cur.All(ctx, &messages); err != nil {
		return nil, apperr.Transient(fmt.Sprintf("failed to decode messages: %v", err))
	}
	return messages, nil
}

func (s *MongoMessageStore) DeleteBatch(ctx context.Context, roomSlug string, ids []string) *apperr.AppError {
	coll := s.db.Collection(messagesCollection)

	for start := 0; start < len(ids); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(ids) {
			end = len(ids)
		}
		if _, err := coll.DeleteMany(ctx, bson.M{"roomSlug": roomSlug, "_id": bson.M{"$in": ids[start:end]}}); err != nil {
			return apperr.Transient(fmt.Sprintf("failed to delete messages: %v", err))
		}
	}

	events := make([]MessageEvent, 0, len(ids))
	for _, id := range ids {
		events = append(events, MessageEvent{Type: ChangeRemoved, Message: entity.Message{ID: id, RoomSlug: roomSlug}})
	}
	s.publish(ctx, roomSlug, MessageBatch{Events: events})
	return nil
}

func (s *MongoMessageStore) Watch(ctx context.Context, roomSlug string, fn func(MessageBatch)) (Disposer, *apperr.AppError) {
	disposer := s.notifier.Watch(messageChannel(roomSlug), func(payload []byte) {
		var batch MessageBatch
		if err := json.Unmarshal(payload, &batch); err != nil {
			log.Warn().Err(err).Str("slug", roomSlug).Msg("store: dropping undecodable message batch")
			return
		}
		fn(batch)
	})
	return disposer, nil
}

func (s *MongoMessageStore) publish(ctx context.Context, roomSlug string, batch MessageBatch) {
	if err := s.notifier.Publish(ctx, messageChannel(roomSlug), batch); err != nil {
		log.Error().Err(err).Str("slug", roomSlug).Msg("store: message event publish failed")
	}
}

// MongoParticipantStore holds one membership document per (room, client).
// Change notification is a bare ping: watchers re-query the full set.
type MongoParticipantStore struct {
	db       *mongo.Database
	notifier *Notifier
}

func NewMongoParticipantStore(client *mongo.Client, dbName string, notifier *Notifier) ParticipantStoreContract {
	return &MongoParticipantStore{
		db:       client.Database(dbName),
		notifier: notifier,
	}
}

func (s *MongoParticipantStore) List(ctx context.Context, roomSlug string) ([]entity.Participant, *apperr.AppError) {
	coll := s.db.Collection(participantsCollection)

	cur, err := coll.Find(ctx, bson.M{"roomSlug": roomSlug}, options.Find().SetSort(bson.D{{Key: "joinedAt", Value: 1}}))
	if err != nil {
		return nil, apperr.Transient(fmt.Sprintf("failed to fetch participants: %v", err))
	}
	defer cur.Close(ctx)

	var participants []entity.Participant
	if err := cur.All(ctx, &participants); err != nil {
		return nil, apperr.Transient(fmt.Sprintf("failed to decode participants: %v", err))
	}
	return participants, nil
}

func (s *MongoParticipantStore) Upsert(ctx context.Context, roomSlug, clientID, name string) *apperr.AppError {
	coll := s.db.Collection(participantsCollection)

	filter := bson.M{"roomSlug": roomSlug, "clientId": clientID}
	update := bson.M{"$set": bson.M{"name": name, "joinedAt": time.Now().UTC()}}
	if _, err := coll.UpdateOne(ctx, filter, update, options.UpdateOne().SetUpsert(true)); err != nil {
		return apperr.Transient(fmt.Sprintf("failed to upsert participant: %v", err))
	}
	s.ping(ctx, roomSlug)
	return nil
}

func (s *MongoParticipantStore) Touch(ctx context.Context, roomSlug, clientID string) *apperr.AppError {
	coll := s.db.Collection(participantsCollection)

	filter := bson.M{"roomSlug": roomSlug, "clientId": clientID}
	if _, err := coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"joinedAt": time.Now().UTC()}}); err != nil {
		return apperr.Transient(fmt.Sprintf("failed to touch participant: %v", err))
	}
	s.ping(ctx, roomSlug)
	return nil
}

func (s *MongoParticipantStore) Delete(ctx context.Context, roomSlug, clientID string) *apperr.AppError {
	coll := s.db.Collection(participantsCollection)

	if _, err := coll.DeleteOne(ctx, bson.M{"roomSlug": roomSlug, "clientId": clientID}); err != nil {
		return apperr.Transient(fmt.Sprintf("failed to delete participant: %v", err))
	}
	s.ping(ctx, roomSlug)
	return nil
}

func (s *MongoParticipantStore) Watch(ctx context.Context, roomSlug string, fn func([]entity.Participant)) (Disposer, *apperr.AppError) {
	disposer := s.notifier.Watch(participantChannel(roomSlug), func([]byte) {
		snapshot, err := s.List(ctx, roomSlug)
		if err != nil {
			log.Error().Err(err).Str("slug", roomSlug).Msg("store: participant snapshot re-query failed")
			return
		}
		fn(snapshot)
	})
	return disposer, nil
}

func (s *MongoParticipantStore) ping(ctx context.Context, roomSlug string) {
	if err := s.notifier.Publish(ctx, participantChannel(roomSlug), bson.M{"slug": roomSlug}); err != nil {
		log.Error().Err(err).Str("slug", roomSlug).Msg("store: participant event publish failed")
	}
}
