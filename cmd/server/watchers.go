package main

import (
	"context"
	"log/slog"

	"cloud.google.com/go/firestore"
	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/notify"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/anonto42/event-fanout/backend/internal/trigger"
)

type runner interface {
	Run(ctx context.Context) error
}

// newWatchers listens to the three document sets the pipeline reacts to.
func newWatchers(client *firestore.Client, tagIndex *notify.TagIndexMaintainer, lifecycle *notify.EventLifecycleNotifier, activity *notify.ActivityNotifier, logger *slog.Logger) []runner {
	preferenceKey := func(ref *firestore.DocumentRef) (string, bool) {
		return ref.ID, ref.ID != models.AggregateIndexID
	}

	return []runner{
		trigger.NewWatcher[models.NotificationPreference](
			"preferences",
			client.Collection(repositories.NotificationsCollection).Query,
			preferenceKey,
			tagIndex.Handle,
			logger,
		),
		trigger.NewWatcher[models.EventRecord](
			"events",
			client.Collection(repositories.EventsCollection).Query,
			trigger.DocumentID,
			lifecycle.Handle,
			logger,
		),
		trigger.NewWatcher[models.ActivityRecord](
			"activity",
			client.CollectionGroup(repositories.ActivityCollection).Query,
			trigger.ParentDocumentID(repositories.ActivityDocID),
			activity.Handle,
			logger,
		),
	}
}
