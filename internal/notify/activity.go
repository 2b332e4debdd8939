package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/anonto42/event-fanout/backend/internal/trigger"
)

// ActivityDiff is what an activity write added.
type ActivityDiff struct {
	// NewSignupKeys are the signup keys present after but not before, sorted.
	NewSignupKeys []string
	// NewComments is the appended suffix of the comment list.
	NewComments []models.CommentEntry
}

// DiffActivity compares two states of an activity record.
func DiffActivity(before, after *models.ActivityRecord) ActivityDiff {
	var diff ActivityDiff
	if after == nil {
		return diff
	}

	var beforeSignups map[string]models.SignupEntry
	var beforeComments int
	if before != nil {
		beforeSignups = before.Signups
		beforeComments = len(before.Comments)
	}

	for key := range after.Signups {
		if _, ok := beforeSignups[key]; !ok {
			diff.NewSignupKeys = append(diff.NewSignupKeys, key)
		}
	}
	sort.Strings(diff.NewSignupKeys)

	if len(after.Comments) > beforeComments {
		diff.NewComments = after.Comments[beforeComments:]
	}
	return diff
}

// ActivityNotifier tells an event's activity subscribers about new signups
// and comments, never notifying the user who caused them.
type ActivityNotifier struct {
	aggregate repositories.AggregateRepository
	events    repositories.EventRepository
	sender    Sender
	messages  Messages
	logger    *slog.Logger
}

// NewActivityNotifier creates an ActivityNotifier
func NewActivityNotifier(aggregate repositories.AggregateRepository, events repositories.EventRepository, sender Sender, messages Messages, logger *slog.Logger) *ActivityNotifier {
	return &ActivityNotifier{
		aggregate: aggregate,
		events:    events,
		sender:    sender,
		messages:  messages,
		logger:    logger,
	}
}

// Handle processes one write to events/{eventID}/activity/private. Signups
// and comments from the same write are notified separately.
func (n *ActivityNotifier) Handle(ctx context.Context, eventID string, change trigger.Change[models.ActivityRecord]) error {
	if eventID == "" {
		return fmt.Errorf("activity change without event id: %w", ErrMalformedDocument)
	}
	logger := n.logger.With("event_id", eventID)
	if change.Deleted() {
		logger.Info("activity record deleted")
		return nil
	}

	diff := DiffActivity(change.Before, change.After)
	var errs []error
	if len(diff.NewSignupKeys) > 0 {
		logger.Info("detected new signups", "count", len(diff.NewSignupKeys))
		errs = append(errs, n.notifySignups(ctx, logger, eventID, diff.NewSignupKeys, change.After))
	}
	if len(diff.NewComments) > 0 {
		logger.Info("detected new comments", "count", len(diff.NewComments))
		errs = append(errs, n.notifyComment(ctx, logger, eventID, diff.NewComments, change.After))
	}
	return errors.Join(errs...)
}

func (n *ActivityNotifier) notifySignups(ctx context.Context, logger *slog.Logger, eventID string, keys []string, after *models.ActivityRecord) error {
	names := make([]string, 0, len(keys))
	actors := make([]string, 0, len(keys))
	for _, key := range keys {
		entry := after.Signups[key]
		names = append(names, displayName(entry.DisplayName))
		// Signup keys are user ids for entries written without one.
		if entry.UserID != "" {
			actors = append(actors, entry.UserID)
		} else {
			actors = append(actors, key)
		}
	}

	event, tokens, err := n.audience(ctx, logger, eventID, after, actors)
	if err != nil || len(tokens) == 0 {
		return err
	}
	send(ctx, n.sender, logger, n.messages.Signups(event, names, len(after.Signups)), tokens)
	return nil
}

// notifyComment announces the latest of the new comments. Only its author is
// excluded from the audience.
func (n *ActivityNotifier) notifyComment(ctx context.Context, logger *slog.Logger, eventID string, comments []models.CommentEntry, after *models.ActivityRecord) error {
	latest := comments[len(comments)-1]

	event, tokens, err := n.audience(ctx, logger, eventID, after, []string{latest.UserID})
	if err != nil || len(tokens) == 0 {
		return err
	}
	send(ctx, n.sender, logger, n.messages.Comment(event, latest), tokens)
	return nil
}

// audience resolves the tokens of activity subscribers minus the actors.
// Expected empty states return no tokens and no error.
func (n *ActivityNotifier) audience(ctx context.Context, logger *slog.Logger, eventID string, after *models.ActivityRecord, actors []string) (*models.EventRecord, []string, error) {
	userIDs := ActivitySubscriberIDs(after.Subscribers)
	if len(userIDs) == 0 {
		logger.Info("no subscribers want activity notifications")
		return nil, nil, nil
	}

	event, err := n.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("load event %s: %w", eventID, err)
	}
	if event == nil {
		logger.Info("event not found, skipping activity notification")
		return nil, nil, nil
	}
	event.ID = eventID

	idx, err := n.aggregate.GetAggregate(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load aggregate index: %w", err)
	}
	if idx == nil {
		logger.Info("no aggregate index yet, skipping activity notification")
		return nil, nil, nil
	}

	tokens, owners := ResolveTokens(idx, userIDs)
	if len(tokens) == 0 {
		logger.Info("no valid tokens for activity notification")
		return nil, nil, nil
	}
	tokens = ExcludeActors(tokens, actors, owners.Owners)
	if len(tokens) == 0 {
		logger.Info("only the acting user would have been notified", "actors", actors)
		return nil, nil, nil
	}
	return event, tokens, nil
}
