package notify

import (
	"testing"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestResolveTokens(t *testing.T) {
	idx := &models.AggregateIndex{
		SubscriberToTokens: map[string][]string{
			"A": {"tok-A", "tok-shared"},
			"B": {"tok-B"},
			"C": {"tok-shared"},
		},
	}

	tokens, owners := ResolveTokens(idx, []string{"A", "B", "A", "C", "ghost"})
	assert.Equal(t, []string{"tok-A", "tok-shared", "tok-B"}, tokens)
	assert.Equal(t, []string{"A", "C"}, owners.Owners("tok-shared"))
	assert.Nil(t, owners.Owners("tok-unknown"))

	tokens, _ = ResolveTokens(nil, []string{"A"})
	assert.Empty(t, tokens)
}

func TestExcludeActors(t *testing.T) {
	owners := TokenOwners{
		"tok-A":      {"A"},
		"tok-B":      {"B"},
		"tok-shared": {"B", "C"},
	}
	tokens := []string{"tok-A", "tok-B", "tok-shared"}

	tests := []struct {
		name   string
		actors []string
		want   []string
	}{
		{name: "no actors", actors: nil, want: tokens},
		{name: "single actor", actors: []string{"A"}, want: []string{"tok-B", "tok-shared"}},
		{name: "shared token dropped for any owner", actors: []string{"C"}, want: []string{"tok-A", "tok-B"}},
		{name: "every recipient acted", actors: []string{"A", "B"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExcludeActors(tokens, tt.actors, owners.Owners))
		})
	}
}

func TestSubscribersForTags(t *testing.T) {
	idx := &models.AggregateIndex{TagToSubscribers: map[string][]string{
		"Social": {"A", "B"},
		"Race":   {"B", "C"},
	}}

	assert.Equal(t, []string{"A", "B", "C"}, SubscribersForTags(idx, []string{"Social", "Race", "Trail"}))
	assert.Empty(t, SubscribersForTags(idx, nil))
}

func TestSubscriberIDs(t *testing.T) {
	subs := []models.Subscription{
		{UserID: "A", WantsActivity: true},
		{UserID: "B", WantsEventUpdates: true},
		{UserID: "C", WantsActivity: true, WantsEventUpdates: true},
	}
	assert.Equal(t, []string{"A", "B", "C"}, SubscriberIDs(subs))
	assert.Equal(t, []string{"A", "C"}, ActivitySubscriberIDs(subs))
}
