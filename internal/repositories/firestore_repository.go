package repositories

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/event-fanout/backend/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new FirestoreStore
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) aggregateRef() *firestore.DocumentRef {
	return s.client.Collection(NotificationsCollection).Doc(models.AggregateIndexID)
}

func (s *FirestoreStore) activityRef(eventID string) *firestore.DocumentRef {
	return s.client.Collection(EventsCollection).Doc(eventID).Collection(ActivityCollection).Doc(ActivityDocID)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// GetPreference retrieves a user's notification preference
func (s *FirestoreStore) GetPreference(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	snap, err := s.client.Collection(NotificationsCollection).Doc(userID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preference %s: %w", userID, err)
	}
	var pref models.NotificationPreference
	if err := snap.DataTo(&pref); err != nil {
		return nil, fmt.Errorf("decode preference %s: %w", userID, err)
	}
	pref.UserID = userID
	return &pref, nil
}

// RemoveTokens scans every preference document and filters out the tokens
func (s *FirestoreStore) RemoveTokens(ctx context.Context, tokens []string) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	dead := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		dead[t] = struct{}{}
	}

	iter := s.client.Collection(NotificationsCollection).Documents(ctx)
	defer iter.Stop()

	changed := 0
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return changed, fmt.Errorf("scan preferences: %w", err)
		}
		if doc.Ref.ID == models.AggregateIndexID {
			continue
		}
		var pref models.NotificationPreference
		if err := doc.DataTo(&pref); err != nil {
			return changed, fmt.Errorf("decode preference %s: %w", doc.Ref.ID, err)
		}
		kept := make([]string, 0, len(pref.DeviceTokens))
		for _, t := range pref.DeviceTokens {
			if _, ok := dead[t]; !ok {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(pref.DeviceTokens) {
			continue
		}
		if _, err := doc.Ref.Update(ctx, []firestore.Update{{Path: "tokens", Value: kept}}); err != nil {
			return changed, fmt.Errorf("update tokens for %s: %w", doc.Ref.ID, err)
		}
		changed++
	}
	return changed, nil
}

// GetAggregate retrieves the aggregate index document
func (s *FirestoreStore) GetAggregate(ctx context.Context) (*models.AggregateIndex, error) {
	snap, err := s.aggregateRef().Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregate index: %w", err)
	}
	var idx models.AggregateIndex
	if err := snap.DataTo(&idx); err != nil {
		return nil, fmt.Errorf("decode aggregate index: %w", err)
	}
	idx.Normalize()
	return &idx, nil
}

// UpdateAggregate applies fn to the aggregate index inside a transaction.
// Firestore retries the function on contention.
func (s *FirestoreStore) UpdateAggregate(ctx context.Context, fn AggregateMutator) error {
	ref := s.aggregateRef()
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		idx := models.NewAggregateIndex()
		exists := true
		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
			exists = false
		case err != nil:
			return fmt.Errorf("read aggregate index: %w", err)
		default:
			var stored models.AggregateIndex
			if err := snap.DataTo(&stored); err != nil {
				return fmt.Errorf("decode aggregate index: %w", err)
			}
			stored.Normalize()
			idx = &stored
		}

		write, err := fn(idx, exists)
		if err != nil || !write {
			return err
		}
		return tx.Set(ref, idx)
	})
}

// GetEvent retrieves an event by ID
func (s *FirestoreStore) GetEvent(ctx context.Context, eventID string) (*models.EventRecord, error) {
	snap, err := s.client.Collection(EventsCollection).Doc(eventID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	var event models.EventRecord
	if err := snap.DataTo(&event); err != nil {
		return nil, fmt.Errorf("decode event %s: %w", eventID, err)
	}
	event.ID = eventID
	return &event, nil
}

// ListEventsByOwner retrieves every event owned by a user
func (s *FirestoreStore) ListEventsByOwner(ctx context.Context, ownerID string) ([]models.EventRecord, error) {
	docs, err := s.client.Collection(EventsCollection).Where("createdBy", "==", ownerID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list events for owner %s: %w", ownerID, err)
	}
	events := make([]models.EventRecord, 0, len(docs))
	for _, doc := range docs {
		var event models.EventRecord
		if err := doc.DataTo(&event); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", doc.Ref.ID, err)
		}
		event.ID = doc.Ref.ID
		events = append(events, event)
	}
	return events, nil
}

// GetActivity retrieves the activity record of an event
func (s *FirestoreStore) GetActivity(ctx context.Context, eventID string) (*models.ActivityRecord, error) {
	snap, err := s.activityRef(eventID).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %s: %w", eventID, err)
	}
	var activity models.ActivityRecord
	if err := snap.DataTo(&activity); err != nil {
		return nil, fmt.Errorf("decode activity %s: %w", eventID, err)
	}
	activity.EventID = eventID
	return &activity, nil
}

// ListActivitiesBySignup runs a collection group query over activity records
func (s *FirestoreStore) ListActivitiesBySignup(ctx context.Context, userID string) ([]models.ActivityRecord, error) {
	docs, err := s.client.CollectionGroup(ActivityCollection).
		Where("signupIds", "array-contains", userID).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list activities for signup %s: %w", userID, err)
	}
	activities := make([]models.ActivityRecord, 0, len(docs))
	for _, doc := range docs {
		eventRef := doc.Ref.Parent.Parent
		if eventRef == nil {
			continue
		}
		var activity models.ActivityRecord
		if err := doc.DataTo(&activity); err != nil {
			return nil, fmt.Errorf("decode activity %s: %w", eventRef.ID, err)
		}
		activity.EventID = eventRef.ID
		activities = append(activities, activity)
	}
	return activities, nil
}

// UpdateSubscribers rewrites notificationSubscribers inside a transaction
func (s *FirestoreStore) UpdateSubscribers(ctx context.Context, eventID string, fn SubscribersMutator) error {
	ref := s.activityRef(eventID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var current []models.Subscription
		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
		case err != nil:
			return fmt.Errorf("read activity %s: %w", eventID, err)
		default:
			var activity models.ActivityRecord
			if err := snap.DataTo(&activity); err != nil {
				return fmt.Errorf("decode activity %s: %w", eventID, err)
			}
			current = activity.Subscribers
		}

		next, write := fn(current)
		if !write {
			return nil
		}
		if next == nil {
			next = []models.Subscription{}
		}
		return tx.Set(ref, map[string]interface{}{"notificationSubscribers": next}, firestore.MergeAll)
	})
}
