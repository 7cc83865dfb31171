package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/davrd/treelink/internal/analytics"
)

type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator}
}

func (h *AnalyticsHandler) GetTreeAnalytics(c echo.Context) error {
	ctx := c.Request().Context()
	treeID := c.Param("id")

	metrics, err := h.aggregator.ForTree(ctx, treeID)
	if err != nil {
		log.Error().Err(err).Str("tree_id", treeID).Msg("failed to aggregate analytics")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load analytics")
	}

	return c.JSON(http.StatusOK, metrics)
}
