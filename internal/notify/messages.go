package notify

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/anonto42/event-fanout/backend/internal/delivery"
	"github.com/anonto42/event-fanout/backend/internal/models"
)

// Notification tags, sent in the data payload so clients can collapse pushes.
const (
	TagNewEvent        = "new-event"
	TagLeaderChange    = "leader-change"
	TagEventCancelled  = "event-cancelled"
	TagEventUpdated    = "event-updated"
	TagActivitySignup  = "activity-signup"
	TagActivityComment = "activity-comment"
)

// CommentExcerptLimit is the number of characters of a comment shown in a push.
const CommentExcerptLimit = 200

const ellipsis = "..."

// Messages builds push content. BaseURL is the web app origin.
type Messages struct {
	BaseURL string
}

func (m Messages) link(eventID string) string {
	return strings.TrimRight(m.BaseURL, "/") + "/events/" + eventID
}

func (m Messages) notification(eventID, tag, title, body string) delivery.Notification {
	link := m.link(eventID)
	return delivery.Notification{
		Title: title,
		Body:  body,
		Link:  link,
		Data: map[string]string{
			"eventId": eventID,
			"url":     link,
			"tag":     tag,
		},
	}
}

func (m Messages) NewEvent(event *models.EventRecord) delivery.Notification {
	return m.notification(event.ID, TagNewEvent, "New event posted",
		fmt.Sprintf("%s posted %s. Sign up now!", displayName(event.OwnerName), event.Title))
}

func (m Messages) NewOwner(event *models.EventRecord) delivery.Notification {
	return m.notification(event.ID, TagLeaderChange, "You're the leader",
		fmt.Sprintf("You have been made the leader of %s", event.Title))
}

func (m Messages) Cancelled(event *models.EventRecord) delivery.Notification {
	return m.notification(event.ID, TagEventCancelled, "Event cancelled",
		fmt.Sprintf("\"%s\" has been cancelled", event.Title))
}

func (m Messages) Updated(event *models.EventRecord) delivery.Notification {
	return m.notification(event.ID, TagEventUpdated, "Event updated",
		fmt.Sprintf("\"%s\" has been updated", event.Title))
}

// Signups names the new signups and the new total.
func (m Messages) Signups(event *models.EventRecord, names []string, total int) delivery.Notification {
	return m.notification(event.ID, TagActivitySignup, event.Title,
		fmt.Sprintf("%s signed up. %d in total.", strings.Join(names, ", "), total))
}

// Comment shows the author and an excerpt of one comment.
func (m Messages) Comment(event *models.EventRecord, comment models.CommentEntry) delivery.Notification {
	return m.notification(event.ID, TagActivityComment, displayName(comment.DisplayName),
		fmt.Sprintf("%s: %s", event.Title, Excerpt(comment.Text, CommentExcerptLimit)))
}

// Excerpt truncates text to limit characters, marking the cut with an ellipsis.
func Excerpt(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit]) + ellipsis
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Someone"
	}
	return name
}
