// Package delivery sends bulk push notifications and cleans up device tokens
// the push service reports as permanently invalid.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/google/uuid"
)

// Per-token error codes.
const (
	ErrorCodeNotRegistered = "not-registered"
	ErrorCodeInvalidToken  = "invalid-token"
	ErrorCodeOther         = "other"
)

// Notification is the push content shared by every recipient of a bulk send.
type Notification struct {
	Title string
	Body  string
	// Link is the absolute URL opened when a web client taps the push.
	Link string
	Data map[string]string
}

// Outcome is the delivery result for a single token.
type Outcome struct {
	Token     string
	Success   bool
	ErrorCode string
}

// Permanent reports whether the token will never accept a push again.
func (o Outcome) Permanent() bool {
	return !o.Success && (o.ErrorCode == ErrorCodeNotRegistered || o.ErrorCode == ErrorCodeInvalidToken)
}

// InvalidTokens returns the tokens of permanently failed outcomes.
func InvalidTokens(outcomes []Outcome) []string {
	var dead []string
	for _, o := range outcomes {
		if o.Permanent() {
			dead = append(dead, o.Token)
		}
	}
	return dead
}

// Transport sends one notification to many tokens and reports per-token
// outcomes in token order.
type Transport interface {
	SendMulticast(ctx context.Context, n Notification, tokens []string) ([]Outcome, error)
}

// Gateway wraps a Transport with outcome recording and dead-token cleanup.
type Gateway struct {
	transport  Transport
	prefs      repositories.PreferenceRepository
	aggregate  repositories.AggregateRepository
	deliveries repositories.DeliveryRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewGateway creates a Gateway. deliveries may be nil when no delivery log is
// configured.
func NewGateway(transport Transport, prefs repositories.PreferenceRepository, aggregate repositories.AggregateRepository, deliveries repositories.DeliveryRepository, logger *slog.Logger) *Gateway {
	return &Gateway{
		transport:  transport,
		prefs:      prefs,
		aggregate:  aggregate,
		deliveries: deliveries,
		logger:     logger,
		now:        time.Now,
	}
}

// SendBulk sends n to every distinct token and returns the per-token
// outcomes. Recording and cleanup run after the send; their failures are
// logged and never change the result.
func (g *Gateway) SendBulk(ctx context.Context, n Notification, tokens []string) ([]Outcome, error) {
	tokens = dedupe(tokens)
	if len(tokens) == 0 {
		return nil, nil
	}
	tag := n.Data["tag"]

	outcomes, err := g.transport.SendMulticast(ctx, n, tokens)
	if err != nil {
		return nil, fmt.Errorf("send %s push: %w", tag, err)
	}

	sent := 0
	for _, o := range outcomes {
		if o.Success {
			sent++
		}
	}
	g.logger.Info("push sent", "tag", tag, "event_id", n.Data["eventId"], "success", sent, "failure", len(outcomes)-sent)

	g.record(ctx, n, outcomes)
	g.cleanup(ctx, InvalidTokens(outcomes))
	return outcomes, nil
}

func (g *Gateway) record(ctx context.Context, n Notification, outcomes []Outcome) {
	if g.deliveries == nil {
		return
	}
	batchID := uuid.NewString()
	createdAt := g.now()
	records := make([]models.DeliveryRecord, 0, len(outcomes))
	for _, o := range outcomes {
		records = append(records, models.DeliveryRecord{
			BatchID:   batchID,
			Tag:       n.Data["tag"],
			EventID:   n.Data["eventId"],
			Token:     o.Token,
			Success:   o.Success,
			ErrorCode: o.ErrorCode,
			CreatedAt: createdAt,
		})
	}
	if err := g.deliveries.RecordDeliveries(ctx, records); err != nil {
		g.logger.Warn("record deliveries", "batch_id", batchID, "error", err)
	}
}

// cleanup strips dead tokens from every preference record and from the
// aggregate index. Both must change or the next preference write would put
// the token back into the index.
func (g *Gateway) cleanup(ctx context.Context, dead []string) {
	if len(dead) == 0 {
		return
	}

	changed, err := g.prefs.RemoveTokens(ctx, dead)
	if err != nil {
		g.logger.Warn("remove invalid tokens from preferences", "tokens", len(dead), "error", err)
	} else {
		g.logger.Info("removed invalid tokens", "tokens", len(dead), "preferences", changed)
	}

	err = g.aggregate.UpdateAggregate(ctx, func(idx *models.AggregateIndex, exists bool) (bool, error) {
		if !exists {
			return false, nil
		}
		return StripTokens(idx, dead), nil
	})
	if err != nil {
		g.logger.Warn("remove invalid tokens from aggregate index", "tokens", len(dead), "error", err)
	}
}

// StripTokens removes dead tokens from the index's token lists. A user left
// without tokens loses their entry and their tag memberships. It reports
// whether anything changed.
func StripTokens(idx *models.AggregateIndex, dead []string) bool {
	deadSet := make(map[string]struct{}, len(dead))
	for _, t := range dead {
		deadSet[t] = struct{}{}
	}

	changed := false
	for userID, tokens := range idx.SubscriberToTokens {
		kept := make([]string, 0, len(tokens))
		for _, t := range tokens {
			if _, ok := deadSet[t]; !ok {
				kept = append(kept, t)
			}
		}
		if len(kept) == len(tokens) {
			continue
		}
		changed = true
		if len(kept) == 0 {
			delete(idx.SubscriberToTokens, userID)
			idx.RemoveFromTags(userID)
		} else {
			idx.SubscriberToTokens[userID] = kept
		}
	}
	return changed
}

func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
