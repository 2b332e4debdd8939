package notify

import (
	"github.com/anonto42/event-fanout/backend/internal/models"
)

// TokenOwners maps a device token to the users it is registered for.
type TokenOwners map[string][]string

// Owners returns the users a token belongs to.
func (o TokenOwners) Owners(token string) []string {
	return o[token]
}

// ResolveTokens collects the distinct device tokens of userIDs from the
// aggregate index, in user order, along with the owner of each token.
func ResolveTokens(idx *models.AggregateIndex, userIDs []string) ([]string, TokenOwners) {
	owners := TokenOwners{}
	var tokens []string
	seenUser := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, ok := seenUser[userID]; ok {
			continue
		}
		seenUser[userID] = struct{}{}
		for _, token := range idx.TokensFor(userID) {
			if _, ok := owners[token]; !ok {
				tokens = append(tokens, token)
			}
			owners[token] = append(owners[token], userID)
		}
	}
	return tokens, owners
}

// ExcludeActors drops every token that belongs to one of the acting users so
// nobody is notified about their own action.
func ExcludeActors(tokens []string, actorUserIDs []string, ownersOf func(token string) []string) []string {
	if len(actorUserIDs) == 0 {
		return tokens
	}
	actors := make(map[string]struct{}, len(actorUserIDs))
	for _, id := range actorUserIDs {
		actors[id] = struct{}{}
	}

	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		excluded := false
		for _, owner := range ownersOf(token) {
			if _, ok := actors[owner]; ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, token)
		}
	}
	return out
}

// SubscribersForTags returns the union of users subscribed to any of tags.
func SubscribersForTags(idx *models.AggregateIndex, tags []string) []string {
	seen := map[string]struct{}{}
	var userIDs []string
	for _, tag := range tags {
		for _, userID := range idx.TagToSubscribers[tag] {
			if _, ok := seen[userID]; ok {
				continue
			}
			seen[userID] = struct{}{}
			userIDs = append(userIDs, userID)
		}
	}
	return userIDs
}

// SubscriberIDs returns the user ids of subs.
func SubscriberIDs(subs []models.Subscription) []string {
	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.UserID)
	}
	return ids
}

// ActivitySubscriberIDs returns the user ids of subs that want activity
// notifications.
func ActivitySubscriberIDs(subs []models.Subscription) []string {
	var ids []string
	for _, s := range subs {
		if s.WantsActivity {
			ids = append(ids, s.UserID)
		}
	}
	return ids
}
