package models

// NotificationPreference is a user's push notification settings, stored at
// notifications/{userId}. The document id is the user id.
type NotificationPreference struct {
	UserID                       string   `json:"userId,omitempty" firestore:"-" bson:"_id,omitempty"`
	Tags                         []string `json:"tags" firestore:"tags" bson:"tags"`
	EventUpdatesEnabled          bool     `json:"eventUpdates" firestore:"eventUpdates" bson:"eventUpdates"`
	ActivityAsOwnerEnabled       bool     `json:"activityForLeader" firestore:"activityForLeader" bson:"activityForLeader"`
	ActivityAsParticipantEnabled bool     `json:"activityForSignups" firestore:"activityForSignups" bson:"activityForSignups"`
	DeviceTokens                 []string `json:"tokens" firestore:"tokens" bson:"tokens"`
}

// HasTokens reports whether the user has at least one deliverable device.
func (p *NotificationPreference) HasTokens() bool {
	return p != nil && len(p.DeviceTokens) > 0
}

// EffectiveTags returns the tags the user should be indexed under. A user
// without device tokens cannot receive anything and is indexed under none.
func (p *NotificationPreference) EffectiveTags() []string {
	if !p.HasTokens() {
		return nil
	}
	return p.Tags
}

// OwnerSubscription builds the per-event subscription for an event owner.
func (p *NotificationPreference) OwnerSubscription(userID string) Subscription {
	return Subscription{
		UserID:            userID,
		WantsEventUpdates: p.EventUpdatesEnabled,
		WantsActivity:     p.ActivityAsOwnerEnabled,
	}
}

// ParticipantSubscription builds the per-event subscription for a signup.
func (p *NotificationPreference) ParticipantSubscription(userID string) Subscription {
	return Subscription{
		UserID:            userID,
		WantsEventUpdates: p.EventUpdatesEnabled,
		WantsActivity:     p.ActivityAsParticipantEnabled,
	}
}
