// Package notify holds the reactive handlers that keep the tag index current
// and fan push notifications out on event and activity changes.
//
// Every handler is stateless and safe to replay: it diffs the before/after
// pair it is given and reads everything else from the document store.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anonto42/event-fanout/backend/internal/delivery"
)

// ErrMalformedDocument is returned for payloads missing required fields.
// The invocation fails and is redelivered by the trigger.
var ErrMalformedDocument = errors.New("malformed document")

// Sender delivers one notification to many device tokens.
type Sender interface {
	SendBulk(ctx context.Context, n delivery.Notification, tokens []string) ([]delivery.Outcome, error)
}

// send delivers n and absorbs transport failures; a dropped push is not
// recoverable and must not fail the handler.
func send(ctx context.Context, sender Sender, logger *slog.Logger, n delivery.Notification, tokens []string) {
	if _, err := sender.SendBulk(ctx, n, tokens); err != nil {
		logger.Warn("push delivery failed", "tag", n.Data["tag"], "event_id", n.Data["eventId"], "tokens", len(tokens), "error", err)
	}
}
