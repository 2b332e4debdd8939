package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/anonto42/event-fanout/backend/internal/trigger"
	"golang.org/x/sync/errgroup"
)

// propagateConcurrency bounds parallel subscriber-list transactions.
const propagateConcurrency = 8

// TagIndexMaintainer keeps the aggregate index in step with preference
// documents and pushes preference changes into per-event subscriber lists.
type TagIndexMaintainer struct {
	aggregate repositories.AggregateRepository
	events    repositories.EventRepository
	activity  repositories.ActivityRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewTagIndexMaintainer creates a TagIndexMaintainer
func NewTagIndexMaintainer(aggregate repositories.AggregateRepository, events repositories.EventRepository, activity repositories.ActivityRepository, logger *slog.Logger) *TagIndexMaintainer {
	return &TagIndexMaintainer{
		aggregate: aggregate,
		events:    events,
		activity:  activity,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle processes one write to notifications/{userID}.
func (m *TagIndexMaintainer) Handle(ctx context.Context, userID string, change trigger.Change[models.NotificationPreference]) error {
	if userID == models.AggregateIndexID {
		return nil
	}
	if userID == "" {
		return fmt.Errorf("preference change without user id: %w", ErrMalformedDocument)
	}

	err := m.aggregate.UpdateAggregate(ctx, func(idx *models.AggregateIndex, exists bool) (bool, error) {
		if change.Deleted() && !exists {
			return false, nil
		}
		ApplyPreferenceChange(idx, userID, change.Before, change.After)
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("update aggregate index for %s: %w", userID, err)
	}

	if change.Deleted() {
		m.logger.Info("removed user from aggregate index", "user_id", userID)
		return nil
	}

	if change.After.HasTokens() {
		return m.propagate(ctx, userID, change.After)
	}
	return m.unsubscribeEverywhere(ctx, userID)
}

// ApplyPreferenceChange updates idx for one preference write. Applying the
// same change twice leaves idx as applying it once.
//
// A user is indexed under a tag only while they have a device token, so a
// preference without tokens is treated as having no tags.
func ApplyPreferenceChange(idx *models.AggregateIndex, userID string, before, after *models.NotificationPreference) {
	idx.Normalize()

	if after == nil {
		if before != nil {
			for _, tag := range before.Tags {
				removeFromTag(idx, tag, userID)
			}
		}
		delete(idx.SubscriberToTokens, userID)
		return
	}

	wanted := stringSet(after.EffectiveTags())
	if before != nil {
		for _, tag := range before.Tags {
			if _, keep := wanted[tag]; !keep {
				removeFromTag(idx, tag, userID)
			}
		}
	}
	for _, tag := range after.EffectiveTags() {
		addToTag(idx, tag, userID)
	}

	if after.HasTokens() {
		idx.SubscriberToTokens[userID] = append([]string(nil), after.DeviceTokens...)
	} else {
		delete(idx.SubscriberToTokens, userID)
	}
}

func removeFromTag(idx *models.AggregateIndex, tag, userID string) {
	ids, ok := idx.TagToSubscribers[tag]
	if !ok {
		return
	}
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != userID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		delete(idx.TagToSubscribers, tag)
		return
	}
	idx.TagToSubscribers[tag] = kept
}

func addToTag(idx *models.AggregateIndex, tag, userID string) {
	for _, id := range idx.TagToSubscribers[tag] {
		if id == userID {
			return
		}
	}
	idx.TagToSubscribers[tag] = append(idx.TagToSubscribers[tag], userID)
}

// propagate rewrites the user's entry in the subscriber list of every future
// event they signed up to or own. Ownership wins when both apply.
func (m *TagIndexMaintainer) propagate(ctx context.Context, userID string, pref *models.NotificationPreference) error {
	now := m.now()

	owned, err := m.events.ListEventsByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("list events owned by %s: %w", userID, err)
	}
	signups, err := m.activity.ListActivitiesBySignup(ctx, userID)
	if err != nil {
		return fmt.Errorf("list signups of %s: %w", userID, err)
	}

	ownedIDs := make(map[string]struct{}, len(owned))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(propagateConcurrency)

	for _, event := range owned {
		ownedIDs[event.ID] = struct{}{}
		if event.Date.Before(now) {
			continue
		}
		eventID := event.ID
		sub := pref.OwnerSubscription(userID)
		g.Go(func() error {
			return m.replaceSubscriber(gctx, eventID, sub)
		})
	}

	for _, activity := range signups {
		eventID := activity.EventID
		if _, ok := ownedIDs[eventID]; ok {
			continue
		}
		sub := pref.ParticipantSubscription(userID)
		g.Go(func() error {
			event, err := m.events.GetEvent(gctx, eventID)
			if err != nil {
				return err
			}
			if event == nil || event.Date.Before(now) {
				return nil
			}
			return m.replaceSubscriber(gctx, eventID, sub)
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("propagate preferences of %s: %w", userID, err)
	}
	m.logger.Info("propagated preferences", "user_id", userID, "owned", len(owned), "signups", len(signups))
	return nil
}

func (m *TagIndexMaintainer) replaceSubscriber(ctx context.Context, eventID string, sub models.Subscription) error {
	return m.activity.UpdateSubscribers(ctx, eventID, func(subs []models.Subscription) ([]models.Subscription, bool) {
		return models.ReplaceSubscriber(subs, sub), true
	})
}

// unsubscribeEverywhere removes the user from every subscriber list they are
// on, past events included, once they have no token left to deliver to.
func (m *TagIndexMaintainer) unsubscribeEverywhere(ctx context.Context, userID string) error {
	eventIDs := map[string]struct{}{}

	signups, err := m.activity.ListActivitiesBySignup(ctx, userID)
	if err != nil {
		return fmt.Errorf("list signups of %s: %w", userID, err)
	}
	for _, a := range signups {
		if models.HasSubscriber(a.Subscribers, userID) {
			eventIDs[a.EventID] = struct{}{}
		}
	}
	owned, err := m.events.ListEventsByOwner(ctx, userID)
	if err != nil {
		return fmt.Errorf("list events owned by %s: %w", userID, err)
	}
	for _, e := range owned {
		eventIDs[e.ID] = struct{}{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(propagateConcurrency)
	for eventID := range eventIDs {
		g.Go(func() error {
			return m.activity.UpdateSubscribers(gctx, eventID, func(subs []models.Subscription) ([]models.Subscription, bool) {
				if !models.HasSubscriber(subs, userID) {
					return subs, false
				}
				return models.RemoveSubscriber(subs, userID), true
			})
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", userID, err)
	}
	m.logger.Info("removed user from subscriber lists", "user_id", userID, "events", len(eventIDs))
	return nil
}

func stringSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
