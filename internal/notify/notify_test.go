package notify

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/anonto42/event-fanout/backend/internal/delivery"
	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/stretchr/testify/require"
)

type sentPush struct {
	notification delivery.Notification
	tokens       []string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentPush
	err  error
}

func (f *fakeSender) SendBulk(_ context.Context, n delivery.Notification, tokens []string) ([]delivery.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentPush{notification: n, tokens: append([]string(nil), tokens...)})
	if f.err != nil {
		return nil, f.err
	}
	outcomes := make([]delivery.Outcome, len(tokens))
	for i, t := range tokens {
		outcomes[i] = delivery.Outcome{Token: t, Success: true}
	}
	return outcomes, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testMessages = Messages{BaseURL: "https://events.example.com/"}

// seedPreferences stores prefs and builds the aggregate index from them the
// way the tag index maintainer would.
func seedPreferences(t *testing.T, store *repositories.MemoryStore, prefs ...models.NotificationPreference) {
	t.Helper()
	idx := models.NewAggregateIndex()
	for _, p := range prefs {
		store.PutPreference(p)
		ApplyPreferenceChange(idx, p.UserID, nil, &p)
	}
	store.PutAggregate(idx)
}

func subscribersOf(t *testing.T, store *repositories.MemoryStore, eventID string) []models.Subscription {
	t.Helper()
	activity, err := store.GetActivity(context.Background(), eventID)
	require.NoError(t, err)
	if activity == nil {
		return nil
	}
	return activity.Subscribers
}
