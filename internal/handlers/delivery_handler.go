package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/event-fanout/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// DeliveryHandler exposes the per-recipient delivery log
type DeliveryHandler struct {
	deliveryRepository repositories.DeliveryRepository
}

// NewDeliveryHandler creates a new DeliveryHandler
func NewDeliveryHandler(deliveryRepo repositories.DeliveryRepository) *DeliveryHandler {
	return &DeliveryHandler{deliveryRepository: deliveryRepo}
}

// RegisterDeliveryRoutes registers delivery log routes
func (h *DeliveryHandler) RegisterDeliveryRoutes(g *echo.Group) {
	g.GET("/deliveries/events/:event_id", h.GetEventDeliveries)
}

// GetEventDeliveries returns the most recent push outcomes for an event
func (h *DeliveryHandler) GetEventDeliveries(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	records, err := h.deliveryRepository.ListByEvent(c.Request().Context(), c.Param("event_id"), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"deliveries": records},
	})
}
