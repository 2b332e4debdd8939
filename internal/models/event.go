package models

import "time"

// EventRecord is an event document at events/{eventId}.
type EventRecord struct {
	ID          string    `json:"id,omitempty" firestore:"-" bson:"_id,omitempty"`
	Title       string    `json:"title" firestore:"title" bson:"title" validate:"required"`
	Date        time.Time `json:"date" firestore:"date" bson:"date"`
	Duration    int       `json:"duration,omitempty" firestore:"duration,omitempty" bson:"duration,omitempty"` // minutes
	Location    string    `json:"location" firestore:"location" bson:"location"`
	Description string    `json:"description" firestore:"description" bson:"description"`
	Tags        []string  `json:"tags" firestore:"tags" bson:"tags"`
	OwnerID     string    `json:"createdBy" firestore:"createdBy" bson:"createdBy" validate:"required"`
	OwnerName   string    `json:"createdByName" firestore:"createdByName" bson:"createdByName"`
	IsCancelled bool      `json:"isCancelled" firestore:"isCancelled" bson:"isCancelled"`
}
