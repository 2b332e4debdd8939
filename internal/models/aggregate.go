package models

// AggregateIndexID is the reserved id of the aggregate index document inside
// the notifications collection.
const AggregateIndexID = "_aggregated"

// AggregateIndex is the single global document mapping tags to subscriber ids
// and subscriber ids to their device tokens.
type AggregateIndex struct {
	TagToSubscribers   map[string][]string `json:"tagUserIds" firestore:"tagUserIds" bson:"tagUserIds"`
	SubscriberToTokens map[string][]string `json:"userTokens" firestore:"userTokens" bson:"userTokens"`
}

// NewAggregateIndex returns an empty index with initialized maps.
func NewAggregateIndex() *AggregateIndex {
	return &AggregateIndex{
		TagToSubscribers:   map[string][]string{},
		SubscriberToTokens: map[string][]string{},
	}
}

// Normalize makes sure both maps are non-nil, e.g. after decoding a document
// that was written without one of them.
func (a *AggregateIndex) Normalize() {
	if a.TagToSubscribers == nil {
		a.TagToSubscribers = map[string][]string{}
	}
	if a.SubscriberToTokens == nil {
		a.SubscriberToTokens = map[string][]string{}
	}
}

// Clone returns a deep copy.
func (a *AggregateIndex) Clone() *AggregateIndex {
	out := NewAggregateIndex()
	for tag, ids := range a.TagToSubscribers {
		out.TagToSubscribers[tag] = append([]string(nil), ids...)
	}
	for id, tokens := range a.SubscriberToTokens {
		out.SubscriberToTokens[id] = append([]string(nil), tokens...)
	}
	return out
}

// TokensFor returns the device tokens indexed for a user.
func (a *AggregateIndex) TokensFor(userID string) []string {
	if a == nil {
		return nil
	}
	return a.SubscriberToTokens[userID]
}

// RemoveFromTags drops userID from every tag list, deleting tags left without
// subscribers. It reports whether any list changed.
func (a *AggregateIndex) RemoveFromTags(userID string) bool {
	changed := false
	for tag, ids := range a.TagToSubscribers {
		kept := make([]string, 0, len(ids))
		for _, id := range ids {
			if id != userID {
				kept = append(kept, id)
			}
		}
		if len(kept) == len(ids) {
			continue
		}
		changed = true
		if len(kept) == 0 {
			delete(a.TagToSubscribers, tag)
		} else {
			a.TagToSubscribers[tag] = kept
		}
	}
	return changed
}
