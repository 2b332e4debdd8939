package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/event-fanout/backend/internal/models"
)

// ErrNotFound is returned by mutations that require an existing document.
var ErrNotFound = errors.New("document not found")

// Collection and document names shared by the document store backends.
const (
	NotificationsCollection = "notifications"
	EventsCollection        = "events"
	ActivityCollection      = "activity"
	ActivityDocID           = "private"
)

// PreferenceRepository reads per-user notification preferences.
type PreferenceRepository interface {
	// GetPreference returns nil, nil when the user has no preference document.
	GetPreference(ctx context.Context, userID string) (*models.NotificationPreference, error)
	// RemoveTokens strips the given tokens from every preference document
	// and returns how many documents were changed.
	RemoveTokens(ctx context.Context, tokens []string) (int, error)
}

// AggregateMutator edits the aggregate index in place. exists is false when
// the document has not been written yet. Returning write=false skips the write.
type AggregateMutator func(idx *models.AggregateIndex, exists bool) (write bool, err error)

// AggregateRepository guards the single aggregate index document.
type AggregateRepository interface {
	// GetAggregate returns nil, nil when the index document does not exist.
	GetAggregate(ctx context.Context) (*models.AggregateIndex, error)
	// UpdateAggregate runs fn inside a read-modify-write transaction.
	UpdateAggregate(ctx context.Context, fn AggregateMutator) error
}

// EventRepository reads event documents.
type EventRepository interface {
	GetEvent(ctx context.Context, eventID string) (*models.EventRecord, error)
	ListEventsByOwner(ctx context.Context, ownerID string) ([]models.EventRecord, error)
}

// SubscribersMutator returns the new subscriber list and whether to write it.
type SubscribersMutator func(subs []models.Subscription) ([]models.Subscription, bool)

// ActivityRepository reads activity records and maintains their cached
// subscriber lists.
type ActivityRepository interface {
	GetActivity(ctx context.Context, eventID string) (*models.ActivityRecord, error)
	// ListActivitiesBySignup returns every activity record whose signupIds
	// contains userID, with EventID populated.
	ListActivitiesBySignup(ctx context.Context, userID string) ([]models.ActivityRecord, error)
	// UpdateSubscribers transactionally rewrites an event's subscriber list,
	// creating the activity record if it does not exist.
	UpdateSubscribers(ctx context.Context, eventID string, fn SubscribersMutator) error
}

// Store is a document store backend providing every repository.
type Store interface {
	PreferenceRepository
	AggregateRepository
	EventRepository
	ActivityRepository
}
