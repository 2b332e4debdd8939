package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/anonto42/event-fanout/backend/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEvent() models.EventRecord {
	return models.EventRecord{
		Title:       "Saturday long run",
		Date:        time.Date(2026, 6, 6, 8, 0, 0, 0, time.UTC),
		Location:    "Park A",
		Description: "Easy pace",
		Tags:        []string{"Social", "Race"},
		OwnerID:     "A",
		OwnerName:   "Ada",
	}
}

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		name        string
		before      func() *models.EventRecord
		after       func() *models.EventRecord
		wantKind    TransitionKind
		wantChanged []string
	}{
		{
			name:     "deleted",
			before:   func() *models.EventRecord { e := baseEvent(); return &e },
			after:    func() *models.EventRecord { return nil },
			wantKind: TransitionDeleted,
		},
		{
			name:     "created",
			before:   func() *models.EventRecord { return nil },
			after:    func() *models.EventRecord { e := baseEvent(); return &e },
			wantKind: TransitionCreated,
		},
		{
			name:   "owner change wins over cancellation",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.OwnerID = "B"
				e.IsCancelled = true
				return &e
			},
			wantKind: TransitionOwnerChanged,
		},
		{
			name:   "cancelled",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.IsCancelled = true
				e.Title = "Saturday long run (cancelled)"
				return &e
			},
			wantKind: TransitionCancelled,
		},
		{
			name: "uncancelled is not notified",
			before: func() *models.EventRecord {
				e := baseEvent()
				e.IsCancelled = true
				return &e
			},
			after:    func() *models.EventRecord { e := baseEvent(); return &e },
			wantKind: TransitionNone,
		},
		{
			name:   "same location rewritten",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.Location = "Park A"
				return &e
			},
			wantKind: TransitionNone,
		},
		{
			name:   "location changed",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.Location = "Park B"
				return &e
			},
			wantKind:    TransitionEdited,
			wantChanged: []string{"location"},
		},
		{
			name:   "same instant in another zone",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.Date = e.Date.In(time.FixedZone("CEST", 2*60*60))
				return &e
			},
			wantKind: TransitionNone,
		},
		{
			name:   "tags reordered",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.Tags = []string{"Race", "Social"}
				return &e
			},
			wantKind: TransitionNone,
		},
		{
			name:   "several fields changed",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.Title = "Sunday long run"
				e.Date = e.Date.Add(24 * time.Hour)
				e.Description = "Steady pace"
				e.Tags = []string{"Social"}
				return &e
			},
			wantKind:    TransitionEdited,
			wantChanged: []string{"title", "date", "description", "tags"},
		},
		{
			name:   "cosmetic field only",
			before: func() *models.EventRecord { e := baseEvent(); return &e },
			after: func() *models.EventRecord {
				e := baseEvent()
				e.Duration = 90
				e.OwnerName = "Ada L."
				return &e
			},
			wantKind: TransitionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyEvent(tt.before(), tt.after())
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantChanged, got.Changed)
		})
	}
}

func newTestLifecycle(store *repositories.MemoryStore, sender Sender) *EventLifecycleNotifier {
	return NewEventLifecycleNotifier(store, store, store, sender, testMessages, discardLogger())
}

func TestEventLifecycleNotifier_NewEvent(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	seedPreferences(t, store,
		models.NotificationPreference{UserID: "A", ActivityAsOwnerEnabled: true, EventUpdatesEnabled: true, DeviceTokens: []string{"tok-A"}},
		models.NotificationPreference{UserID: "B", Tags: []string{"Social"}, DeviceTokens: []string{"tok-B"}},
		models.NotificationPreference{UserID: "C", Tags: []string{"Race"}, DeviceTokens: []string{"tok-C"}},
	)
	sender := &fakeSender{}

	event := models.EventRecord{Title: "Pub quiz", Tags: []string{"Social"}, OwnerID: "A", OwnerName: "Ada"}
	err := newTestLifecycle(store, sender).Handle(ctx, "E", trigger.Change[models.EventRecord]{After: &event})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"tok-B"}, sender.sent[0].tokens)
	n := sender.sent[0].notification
	assert.Equal(t, "New event posted", n.Title)
	assert.Equal(t, "Ada posted Pub quiz. Sign up now!", n.Body)
	assert.Equal(t, "https://events.example.com/events/E", n.Link)
	assert.Equal(t, map[string]string{"eventId": "E", "url": "https://events.example.com/events/E", "tag": TagNewEvent}, n.Data)

	assert.Equal(t, []models.Subscription{{UserID: "A", WantsEventUpdates: true, WantsActivity: true}}, subscribersOf(t, store, "E"))
}

func TestEventLifecycleNotifier_NewEventWithoutIndex(t *testing.T) {
	store := repositories.NewMemoryStore()
	sender := &fakeSender{}

	event := models.EventRecord{Title: "Pub quiz", Tags: []string{"Social"}, OwnerID: "A"}
	err := newTestLifecycle(store, sender).Handle(context.Background(), "E", trigger.Change[models.EventRecord]{After: &event})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
	// The owner has no preference document, so nothing is seeded.
	assert.Empty(t, subscribersOf(t, store, "E"))
}

func TestEventLifecycleNotifier_OwnerChanged(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	seedPreferences(t, store,
		models.NotificationPreference{UserID: "B", ActivityAsOwnerEnabled: true, DeviceTokens: []string{"tok-B1", "tok-B2"}},
	)
	store.PutActivity(models.ActivityRecord{EventID: "E", Subscribers: []models.Subscription{
		{UserID: "A", WantsEventUpdates: true, WantsActivity: true},
		{UserID: "B", WantsEventUpdates: true, WantsActivity: false},
	}})
	sender := &fakeSender{}

	before := baseEvent()
	after := baseEvent()
	after.OwnerID = "B"
	err := newTestLifecycle(store, sender).Handle(ctx, "E", trigger.Change[models.EventRecord]{Before: &before, After: &after})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"tok-B1", "tok-B2"}, sender.sent[0].tokens)
	assert.Equal(t, "You're the leader", sender.sent[0].notification.Title)
	assert.Equal(t, "You have been made the leader of Saturday long run", sender.sent[0].notification.Body)

	assert.Equal(t, []models.Subscription{
		{UserID: "A", WantsEventUpdates: true, WantsActivity: true},
		{UserID: "B", WantsEventUpdates: false, WantsActivity: true},
	}, subscribersOf(t, store, "E"))
}

func TestEventLifecycleNotifier_Cancelled(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	seedPreferences(t, store,
		models.NotificationPreference{UserID: "A", Tags: []string{"Social"}, DeviceTokens: []string{"tok-A"}},
		models.NotificationPreference{UserID: "B", DeviceTokens: []string{"tok-B"}},
		models.NotificationPreference{UserID: "C", Tags: []string{"Social"}, DeviceTokens: []string{"tok-C"}},
	)
	// C is tag-subscribed but not on the event's list. D has no tokens.
	store.PutActivity(models.ActivityRecord{EventID: "E", Subscribers: []models.Subscription{
		{UserID: "A", WantsEventUpdates: true},
		{UserID: "B", WantsEventUpdates: false, WantsActivity: true},
		{UserID: "D", WantsEventUpdates: true},
	}})
	sender := &fakeSender{}

	before := baseEvent()
	after := baseEvent()
	after.IsCancelled = true
	err := newTestLifecycle(store, sender).Handle(ctx, "E", trigger.Change[models.EventRecord]{Before: &before, After: &after})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"tok-A", "tok-B"}, sender.sent[0].tokens)
	assert.Equal(t, "Event cancelled", sender.sent[0].notification.Title)
	assert.Equal(t, `"Saturday long run" has been cancelled`, sender.sent[0].notification.Body)
	assert.Equal(t, TagEventCancelled, sender.sent[0].notification.Data["tag"])
}

func TestEventLifecycleNotifier_MaterialEdit(t *testing.T) {
	ctx := context.Background()
	store := repositories.NewMemoryStore()
	seedPreferences(t, store,
		models.NotificationPreference{UserID: "B", DeviceTokens: []string{"tok-B"}},
	)
	store.PutActivity(models.ActivityRecord{EventID: "E", Subscribers: []models.Subscription{{UserID: "B", WantsEventUpdates: true}}})
	sender := &fakeSender{}
	n := newTestLifecycle(store, sender)

	before := baseEvent()
	same := baseEvent()
	same.Location = "Park A"
	require.NoError(t, n.Handle(ctx, "E", trigger.Change[models.EventRecord]{Before: &before, After: &same}))
	assert.Empty(t, sender.sent)

	moved := baseEvent()
	moved.Location = "Park B"
	require.NoError(t, n.Handle(ctx, "E", trigger.Change[models.EventRecord]{Before: &before, After: &moved}))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"tok-B"}, sender.sent[0].tokens)
	assert.Equal(t, "Event updated", sender.sent[0].notification.Title)
	assert.Equal(t, `"Saturday long run" has been updated`, sender.sent[0].notification.Body)
}

func TestEventLifecycleNotifier_SendFailureIsAbsorbed(t *testing.T) {
	store := repositories.NewMemoryStore()
	seedPreferences(t, store, models.NotificationPreference{UserID: "B", Tags: []string{"Social"}, DeviceTokens: []string{"tok-B"}})
	sender := &fakeSender{err: errors.New("fcm unavailable")}

	event := models.EventRecord{Title: "Pub quiz", Tags: []string{"Social"}, OwnerID: "A"}
	err := newTestLifecycle(store, sender).Handle(context.Background(), "E", trigger.Change[models.EventRecord]{After: &event})
	require.NoError(t, err)
	assert.Len(t, sender.sent, 1)
}

func TestEventLifecycleNotifier_MissingOwner(t *testing.T) {
	store := repositories.NewMemoryStore()
	sender := &fakeSender{}

	event := models.EventRecord{Title: "Pub quiz"}
	err := newTestLifecycle(store, sender).Handle(context.Background(), "E", trigger.Change[models.EventRecord]{After: &event})
	assert.ErrorIs(t, err, ErrMalformedDocument)
	assert.Empty(t, sender.sent)
}

func TestEventLifecycleNotifier_DeletedIsIgnored(t *testing.T) {
	store := repositories.NewMemoryStore()
	sender := &fakeSender{}

	before := baseEvent()
	err := newTestLifecycle(store, sender).Handle(context.Background(), "E", trigger.Change[models.EventRecord]{Before: &before})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}
