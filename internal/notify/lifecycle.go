package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/anonto42/event-fanout/backend/internal/delivery"
	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/anonto42/event-fanout/backend/internal/trigger"
)

// TransitionKind classifies a write to an event document.
type TransitionKind int

const (
	TransitionNone TransitionKind = iota
	TransitionDeleted
	TransitionCreated
	TransitionOwnerChanged
	TransitionCancelled
	TransitionEdited
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionDeleted:
		return "deleted"
	case TransitionCreated:
		return "created"
	case TransitionOwnerChanged:
		return "owner_changed"
	case TransitionCancelled:
		return "cancelled"
	case TransitionEdited:
		return "edited"
	default:
		return "none"
	}
}

// Transition is the classified result of an event write. Changed lists the
// material fields that differ for TransitionEdited.
type Transition struct {
	Kind    TransitionKind
	Changed []string
}

// ClassifyEvent matches an event write against the notification-worthy
// transitions. The first match wins, in this order: deleted, created, owner
// changed, cancelled, materially edited.
func ClassifyEvent(before, after *models.EventRecord) Transition {
	switch {
	case after == nil:
		return Transition{Kind: TransitionDeleted}
	case before == nil:
		return Transition{Kind: TransitionCreated}
	case before.OwnerID != after.OwnerID:
		return Transition{Kind: TransitionOwnerChanged}
	case !before.IsCancelled && after.IsCancelled:
		return Transition{Kind: TransitionCancelled}
	}
	if changed := MaterialChanges(before, after); len(changed) > 0 {
		return Transition{Kind: TransitionEdited, Changed: changed}
	}
	return Transition{Kind: TransitionNone}
}

// MaterialChanges returns the names of the fields subscribers care about
// that differ between before and after. Tags compare as sets.
func MaterialChanges(before, after *models.EventRecord) []string {
	var changed []string
	if before.Title != after.Title {
		changed = append(changed, "title")
	}
	if !before.Date.Equal(after.Date) {
		changed = append(changed, "date")
	}
	if before.Location != after.Location {
		changed = append(changed, "location")
	}
	if before.Description != after.Description {
		changed = append(changed, "description")
	}
	if !sameSet(before.Tags, after.Tags) {
		changed = append(changed, "tags")
	}
	return changed
}

func sameSet(a, b []string) bool {
	as, bs := stringSet(a), stringSet(b)
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

// EventLifecycleNotifier reacts to event writes: it seeds subscriber lists
// for new owners and notifies tag subscribers, new owners, and existing
// subscribers.
type EventLifecycleNotifier struct {
	prefs     repositories.PreferenceRepository
	aggregate repositories.AggregateRepository
	activity  repositories.ActivityRepository
	sender    Sender
	messages  Messages
	logger    *slog.Logger
}

// NewEventLifecycleNotifier creates an EventLifecycleNotifier
func NewEventLifecycleNotifier(prefs repositories.PreferenceRepository, aggregate repositories.AggregateRepository, activity repositories.ActivityRepository, sender Sender, messages Messages, logger *slog.Logger) *EventLifecycleNotifier {
	return &EventLifecycleNotifier{
		prefs:     prefs,
		aggregate: aggregate,
		activity:  activity,
		sender:    sender,
		messages:  messages,
		logger:    logger,
	}
}

// Handle processes one write to events/{eventID}.
func (n *EventLifecycleNotifier) Handle(ctx context.Context, eventID string, change trigger.Change[models.EventRecord]) error {
	if eventID == "" {
		return fmt.Errorf("event change without event id: %w", ErrMalformedDocument)
	}
	t := ClassifyEvent(change.Before, change.After)
	logger := n.logger.With("event_id", eventID, "transition", t.Kind.String())

	var event *models.EventRecord
	if change.After != nil {
		e := *change.After
		e.ID = eventID
		event = &e
	}

	switch t.Kind {
	case TransitionDeleted:
		logger.Info("event deleted, skipping notifications")
		return nil

	case TransitionCreated:
		if event.OwnerID == "" {
			return fmt.Errorf("event %s has no owner: %w", eventID, ErrMalformedDocument)
		}
		if err := n.seedOwner(ctx, logger, eventID, event.OwnerID); err != nil {
			return err
		}
		return n.notifyTagSubscribers(ctx, logger, event)

	case TransitionOwnerChanged:
		if event.OwnerID == "" {
			return fmt.Errorf("event %s has no owner: %w", eventID, ErrMalformedDocument)
		}
		if err := n.notifyNewOwner(ctx, logger, event); err != nil {
			return err
		}
		return n.seedOwner(ctx, logger, eventID, event.OwnerID)

	case TransitionCancelled:
		return n.notifySubscribers(ctx, logger, eventID, n.messages.Cancelled(event))

	case TransitionEdited:
		logger.Info("event materially edited", "fields", t.Changed)
		return n.notifySubscribers(ctx, logger, eventID, n.messages.Updated(event))

	default:
		logger.Info("no notification-worthy changes")
		return nil
	}
}

// seedOwner replaces the owner's entry in the event's subscriber list using
// their current preferences. Owners without tokens are not subscribed.
func (n *EventLifecycleNotifier) seedOwner(ctx context.Context, logger *slog.Logger, eventID, ownerID string) error {
	pref, err := n.prefs.GetPreference(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("load preferences of owner %s: %w", ownerID, err)
	}
	if !pref.HasTokens() {
		logger.Info("owner has no notification tokens, not subscribing", "user_id", ownerID)
		return nil
	}

	sub := pref.OwnerSubscription(ownerID)
	err = n.activity.UpdateSubscribers(ctx, eventID, func(subs []models.Subscription) ([]models.Subscription, bool) {
		return models.ReplaceSubscriber(subs, sub), true
	})
	if err != nil {
		return fmt.Errorf("seed subscribers of %s: %w", eventID, err)
	}
	logger.Info("subscribed owner to event", "user_id", ownerID)
	return nil
}

func (n *EventLifecycleNotifier) notifyTagSubscribers(ctx context.Context, logger *slog.Logger, event *models.EventRecord) error {
	idx, err := n.aggregate.GetAggregate(ctx)
	if err != nil {
		return fmt.Errorf("load aggregate index: %w", err)
	}
	if idx == nil {
		logger.Info("no aggregate index yet, skipping new event notification")
		return nil
	}

	tokens, _ := ResolveTokens(idx, SubscribersForTags(idx, event.Tags))
	if len(tokens) == 0 {
		logger.Info("no tokens subscribed to event tags", "tags", event.Tags)
		return nil
	}
	send(ctx, n.sender, logger, n.messages.NewEvent(event), tokens)
	return nil
}

// notifyNewOwner reads the new owner's tokens straight from their
// preference document; there is only one recipient.
func (n *EventLifecycleNotifier) notifyNewOwner(ctx context.Context, logger *slog.Logger, event *models.EventRecord) error {
	pref, err := n.prefs.GetPreference(ctx, event.OwnerID)
	if err != nil {
		return fmt.Errorf("load preferences of owner %s: %w", event.OwnerID, err)
	}
	if !pref.HasTokens() {
		logger.Info("new owner has no notification tokens", "user_id", event.OwnerID)
		return nil
	}
	send(ctx, n.sender, logger, n.messages.NewOwner(event), pref.DeviceTokens)
	return nil
}

// notifySubscribers sends msg to everyone on the event's subscriber list, with
// tokens resolved through the aggregate index.
func (n *EventLifecycleNotifier) notifySubscribers(ctx context.Context, logger *slog.Logger, eventID string, msg delivery.Notification) error {
	activity, err := n.activity.GetActivity(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load activity of %s: %w", eventID, err)
	}
	if activity == nil || len(activity.Subscribers) == 0 {
		logger.Info("event has no notification subscribers")
		return nil
	}

	idx, err := n.aggregate.GetAggregate(ctx)
	if err != nil {
		return fmt.Errorf("load aggregate index: %w", err)
	}
	if idx == nil {
		logger.Info("no aggregate index yet, skipping subscriber notification")
		return nil
	}

	tokens, _ := ResolveTokens(idx, SubscriberIDs(activity.Subscribers))
	if len(tokens) == 0 {
		logger.Info("no valid tokens for event subscribers", "subscribers", len(activity.Subscribers))
		return nil
	}
	send(ctx, n.sender, logger, msg, tokens)
	return nil
}
