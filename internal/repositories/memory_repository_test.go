package repositories

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PreferenceCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	pref := models.NotificationPreference{UserID: "A", Tags: []string{"Social"}, DeviceTokens: []string{"tok-A"}}
	store.PutPreference(pref)
	pref.DeviceTokens[0] = "mutated"

	got, err := store.GetPreference(ctx, "A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"tok-A"}, got.DeviceTokens)

	got.Tags[0] = "mutated"
	again, err := store.GetPreference(ctx, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"Social"}, again.Tags)

	missing, err := store.GetPreference(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryStore_RemoveTokens(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutPreference(models.NotificationPreference{UserID: "A", DeviceTokens: []string{"tok-1", "tok-2"}})
	store.PutPreference(models.NotificationPreference{UserID: "B", DeviceTokens: []string{"tok-2"}})
	store.PutPreference(models.NotificationPreference{UserID: "C", DeviceTokens: []string{"tok-3"}})

	changed, err := store.RemoveTokens(ctx, []string{"tok-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	a, _ := store.GetPreference(ctx, "A")
	assert.Equal(t, []string{"tok-1"}, a.DeviceTokens)
	b, _ := store.GetPreference(ctx, "B")
	assert.Empty(t, b.DeviceTokens)
	c, _ := store.GetPreference(ctx, "C")
	assert.Equal(t, []string{"tok-3"}, c.DeviceTokens)
}

func TestMemoryStore_UpdateAggregate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.UpdateAggregate(ctx, func(idx *models.AggregateIndex, exists bool) (bool, error) {
		assert.False(t, exists)
		return false, nil
	})
	require.NoError(t, err)
	idx, err := store.GetAggregate(ctx)
	require.NoError(t, err)
	assert.Nil(t, idx, "skipped write must not create the index")

	boom := errors.New("boom")
	err = store.UpdateAggregate(ctx, func(idx *models.AggregateIndex, _ bool) (bool, error) {
		idx.TagToSubscribers["Social"] = []string{"A"}
		return true, boom
	})
	assert.ErrorIs(t, err, boom)
	idx, _ = store.GetAggregate(ctx)
	assert.Nil(t, idx)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.UpdateAggregate(ctx, func(idx *models.AggregateIndex, _ bool) (bool, error) {
				idx.TagToSubscribers["Social"] = append(idx.TagToSubscribers["Social"], "u")
				return true, nil
			})
		}()
	}
	wg.Wait()

	idx, err = store.GetAggregate(ctx)
	require.NoError(t, err)
	assert.Len(t, idx.TagToSubscribers["Social"], 50)
}

func TestMemoryStore_Events(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutEvent(models.EventRecord{ID: "e1", Title: "Hill repeats", OwnerID: "A"})
	store.PutEvent(models.EventRecord{ID: "e2", Title: "Tempo", OwnerID: "B"})
	store.PutActivity(models.ActivityRecord{EventID: "e1", SignupIDs: []string{"B"}})

	owned, err := store.ListEventsByOwner(ctx, "A")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, "e1", owned[0].ID)

	store.DeleteEvent("e1")
	event, err := store.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, event)
	activity, err := store.GetActivity(ctx, "e1")
	require.NoError(t, err)
	assert.Nil(t, activity, "deleting an event drops its activity record")
}

func TestMemoryStore_Activity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.PutActivity(models.ActivityRecord{EventID: "e1", SignupIDs: []string{"A", "B"}})
	store.PutActivity(models.ActivityRecord{EventID: "e2", SignupIDs: []string{"B"}})

	signups, err := store.ListActivitiesBySignup(ctx, "A")
	require.NoError(t, err)
	require.Len(t, signups, 1)
	assert.Equal(t, "e1", signups[0].EventID)

	signups, err = store.ListActivitiesBySignup(ctx, "B")
	require.NoError(t, err)
	assert.Len(t, signups, 2)

	// A subscriber list on a missing record creates it.
	err = store.UpdateSubscribers(ctx, "e3", func(subs []models.Subscription) ([]models.Subscription, bool) {
		assert.Empty(t, subs)
		return append(subs, models.Subscription{UserID: "C", WantsActivity: true}), true
	})
	require.NoError(t, err)
	created, err := store.GetActivity(ctx, "e3")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "e3", created.EventID)
	assert.Equal(t, []models.Subscription{{UserID: "C", WantsActivity: true}}, created.Subscribers)

	err = store.UpdateSubscribers(ctx, "e4", func(subs []models.Subscription) ([]models.Subscription, bool) {
		return subs, false
	})
	require.NoError(t, err)
	skipped, err := store.GetActivity(ctx, "e4")
	require.NoError(t, err)
	assert.Nil(t, skipped)
}
