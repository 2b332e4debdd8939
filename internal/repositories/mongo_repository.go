package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Activity records live in their own
// collection keyed by event id. Transactions need a replica set.
type MongoStore struct {
	client        *mongo.Client
	notifications *mongo.Collection
	events        *mongo.Collection
	activity      *mongo.Collection
}

// NewMongoStore creates a new MongoStore
func NewMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:        client,
		notifications: db.Collection(NotificationsCollection),
		events:        db.Collection(EventsCollection),
		activity:      db.Collection(ActivityCollection),
	}
}

func (s *MongoStore) GetPreference(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	err := s.notifications.FindOne(ctx, bson.M{"_id": userID}).Decode(&pref)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference %s: %w", userID, err)
	}
	pref.UserID = userID
	return &pref, nil
}

func (s *MongoStore) RemoveTokens(ctx context.Context, tokens []string) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"_id":    bson.M{"$ne": models.AggregateIndexID},
		"tokens": bson.M{"$in": tokens},
	}
	res, err := s.notifications.UpdateMany(ctx, filter, bson.M{"$pullAll": bson.M{"tokens": tokens}})
	if err != nil {
		return 0, fmt.Errorf("remove tokens: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *MongoStore) GetAggregate(ctx context.Context) (*models.AggregateIndex, error) {
	var idx models.AggregateIndex
	err := s.notifications.FindOne(ctx, bson.M{"_id": models.AggregateIndexID}).Decode(&idx)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate index: %w", err)
	}
	idx.Normalize()
	return &idx, nil
}

func (s *MongoStore) UpdateAggregate(ctx context.Context, fn AggregateMutator) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		idx := models.NewAggregateIndex()
		exists := true
		var stored models.AggregateIndex
		err := s.notifications.FindOne(sc, bson.M{"_id": models.AggregateIndexID}).Decode(&stored)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
			exists = false
		case err != nil:
			return fmt.Errorf("read aggregate index: %w", err)
		default:
			stored.Normalize()
			idx = &stored
		}

		write, err := fn(idx, exists)
		if err != nil || !write {
			return err
		}
		_, err = s.notifications.ReplaceOne(sc, bson.M{"_id": models.AggregateIndexID}, idx, options.Replace().SetUpsert(true))
		return err
	})
}

func (s *MongoStore) GetEvent(ctx context.Context, eventID string) (*models.EventRecord, error) {
	var event models.EventRecord
	err := s.events.FindOne(ctx, bson.M{"_id": eventID}).Decode(&event)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	event.ID = eventID
	return &event, nil
}

func (s *MongoStore) ListEventsByOwner(ctx context.Context, ownerID string) ([]models.EventRecord, error) {
	cursor, err := s.events.Find(ctx, bson.M{"createdBy": ownerID})
	if err != nil {
		return nil, fmt.Errorf("list events for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var events []models.EventRecord
	if err = cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("decode events for owner %s: %w", ownerID, err)
	}
	return events, nil
}

func (s *MongoStore) GetActivity(ctx context.Context, eventID string) (*models.ActivityRecord, error) {
	var activity models.ActivityRecord
	err := s.activity.FindOne(ctx, bson.M{"_id": eventID}).Decode(&activity)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", eventID, err)
	}
	activity.EventID = eventID
	return &activity, nil
}

func (s *MongoStore) ListActivitiesBySignup(ctx context.Context, userID string) ([]models.ActivityRecord, error) {
	cursor, err := s.activity.Find(ctx, bson.M{"signupIds": userID})
	if err != nil {
		return nil, fmt.Errorf("list activities for signup %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var activities []models.ActivityRecord
	if err = cursor.All(ctx, &activities); err != nil {
		return nil, fmt.Errorf("decode activities for signup %s: %w", userID, err)
	}
	return activities, nil
}

func (s *MongoStore) UpdateSubscribers(ctx context.Context, eventID string, fn SubscribersMutator) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		var current []models.Subscription
		var activity models.ActivityRecord
		err := s.activity.FindOne(sc, bson.M{"_id": eventID}).Decode(&activity)
		switch {
		case errors.Is(err, mongo.ErrNoDocuments):
		case err != nil:
			return fmt.Errorf("read activity %s: %w", eventID, err)
		default:
			current = activity.Subscribers
		}

		next, write := fn(current)
		if !write {
			return nil
		}
		if next == nil {
			next = []models.Subscription{}
		}
		_, err = s.activity.UpdateOne(sc,
			bson.M{"_id": eventID},
			bson.M{"$set": bson.M{"notificationSubscribers": next}},
			options.Update().SetUpsert(true),
		)
		return err
	})
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}
