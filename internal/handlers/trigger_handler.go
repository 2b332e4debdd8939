package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/anonto42/event-fanout/backend/internal/models"
	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/anonto42/event-fanout/backend/internal/trigger"
	"github.com/labstack/echo/v4"
)

// PreferenceTrigger handles writes to notification preference documents
type PreferenceTrigger interface {
	Handle(ctx context.Context, userID string, change trigger.Change[models.NotificationPreference]) error
}

// EventTrigger handles writes to event documents
type EventTrigger interface {
	Handle(ctx context.Context, eventID string, change trigger.Change[models.EventRecord]) error
}

// ActivityTrigger handles writes to event activity documents
type ActivityTrigger interface {
	Handle(ctx context.Context, eventID string, change trigger.Change[models.ActivityRecord]) error
}

// TriggerHandler receives document write events pushed by the platform.
// A non-2xx response makes the platform redeliver the event.
type TriggerHandler struct {
	preferences PreferenceTrigger
	events      EventTrigger
	activity    ActivityTrigger
	mirror      repositories.Mirror
	logger      *slog.Logger
}

// NewTriggerHandler creates a new TriggerHandler. mirror may be nil; when set,
// each payload's after-state is written to it before the handler runs.
func NewTriggerHandler(prefs PreferenceTrigger, events EventTrigger, activity ActivityTrigger, mirror repositories.Mirror, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{
		preferences: prefs,
		events:      events,
		activity:    activity,
		mirror:      mirror,
		logger:      logger,
	}
}

// RegisterTriggerRoutes registers trigger routes
func (h *TriggerHandler) RegisterTriggerRoutes(g *echo.Group) {
	g.POST("/triggers/preferences/:user_id", h.PreferenceWritten)
	g.POST("/triggers/events/:event_id", h.EventWritten)
	g.POST("/triggers/events/:event_id/activity", h.ActivityWritten)
}

// PreferenceWritten handles a write to notifications/{user_id}
func (h *TriggerHandler) PreferenceWritten(c echo.Context) error {
	userID := c.Param("user_id")

	var change trigger.Change[models.NotificationPreference]
	if err := bindChange(c, &change); err != nil {
		return err
	}

	if h.mirror != nil && userID != models.AggregateIndexID {
		if change.After == nil {
			h.mirror.DeletePreference(userID)
		} else {
			pref := *change.After
			pref.UserID = userID
			h.mirror.PutPreference(pref)
		}
	}

	if err := h.preferences.Handle(c.Request().Context(), userID, change); err != nil {
		h.logger.Error("preference trigger failed", "user_id", userID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// EventWritten handles a write to events/{event_id}
func (h *TriggerHandler) EventWritten(c echo.Context) error {
	eventID := c.Param("event_id")

	var change trigger.Change[models.EventRecord]
	if err := bindChange(c, &change); err != nil {
		return err
	}

	if h.mirror != nil {
		if change.After == nil {
			h.mirror.DeleteEvent(eventID)
		} else {
			event := *change.After
			event.ID = eventID
			h.mirror.PutEvent(event)
		}
	}

	if err := h.events.Handle(c.Request().Context(), eventID, change); err != nil {
		h.logger.Error("event trigger failed", "event_id", eventID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// ActivityWritten handles a write to events/{event_id}/activity/private
func (h *TriggerHandler) ActivityWritten(c echo.Context) error {
	eventID := c.Param("event_id")

	var change trigger.Change[models.ActivityRecord]
	if err := bindChange(c, &change); err != nil {
		return err
	}

	if h.mirror != nil {
		if change.After == nil {
			h.mirror.DeleteActivity(eventID)
		} else {
			activity := *change.After
			activity.EventID = eventID
			h.mirror.PutActivity(activity)
		}
	}

	if err := h.activity.Handle(c.Request().Context(), eventID, change); err != nil {
		h.logger.Error("activity trigger failed", "event_id", eventID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// bindChange decodes and validates a {before, after} payload. Both states are
// validated when present.
func bindChange[T any](c echo.Context, change *trigger.Change[T]) error {
	if err := c.Bind(change); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid trigger payload")
	}
	if change.Before == nil && change.After == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Trigger payload needs before or after")
	}
	for _, state := range []*T{change.Before, change.After} {
		if state == nil {
			continue
		}
		if err := c.Validate(state); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return nil
}
