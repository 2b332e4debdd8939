package models

import "time"

// ActivityRecord is the private activity document of an event, stored at
// events/{eventId}/activity/private.
type ActivityRecord struct {
	EventID     string                 `json:"-" firestore:"-" bson:"_id,omitempty"`
	SignupIDs   []string               `json:"signupIds" firestore:"signupIds" bson:"signupIds"`
	Signups     map[string]SignupEntry `json:"signups" firestore:"signups" bson:"signups"`
	Comments    []CommentEntry         `json:"comments" firestore:"comments" bson:"comments"`
	Subscribers []Subscription         `json:"notificationSubscribers" firestore:"notificationSubscribers" bson:"notificationSubscribers" validate:"dive"`
}

// SignupEntry is one signup keyed by signup key in ActivityRecord.Signups.
type SignupEntry struct {
	DisplayName string    `json:"name" firestore:"name" bson:"name"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UserID      string    `json:"userId" firestore:"userId" bson:"userId"`
}

// CommentEntry is one comment, appended in order.
type CommentEntry struct {
	DisplayName string    `json:"name" firestore:"name" bson:"name"`
	UserID      string    `json:"userId" firestore:"userId" bson:"userId"`
	Text        string    `json:"text" firestore:"text" bson:"text"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
}

// Subscription is a user's opt-in for one specific event.
type Subscription struct {
	UserID            string `json:"userId" firestore:"userId" bson:"userId" validate:"required"`
	WantsEventUpdates bool   `json:"eventUpdates" firestore:"eventUpdates" bson:"eventUpdates"`
	WantsActivity     bool   `json:"activity" firestore:"activity" bson:"activity"`
}

// NewActivityRecord returns an empty activity record for an event.
func NewActivityRecord(eventID string) *ActivityRecord {
	return &ActivityRecord{
		EventID:   eventID,
		SignupIDs: []string{},
		Signups:   map[string]SignupEntry{},
		Comments:  []CommentEntry{},
	}
}

// ReplaceSubscriber returns subs with any entry for sub.UserID replaced by sub.
// A new entry is appended when the user was not subscribed yet.
func ReplaceSubscriber(subs []Subscription, sub Subscription) []Subscription {
	out := RemoveSubscriber(subs, sub.UserID)
	return append(out, sub)
}

// RemoveSubscriber returns subs without any entry for userID.
func RemoveSubscriber(subs []Subscription, userID string) []Subscription {
	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if s.UserID != userID {
			out = append(out, s)
		}
	}
	return out
}

// HasSubscriber reports whether userID has an entry in subs.
func HasSubscriber(subs []Subscription, userID string) bool {
	for _, s := range subs {
		if s.UserID == userID {
			return true
		}
	}
	return false
}
