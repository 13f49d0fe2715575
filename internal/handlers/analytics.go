package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/craftora/marketplace/internal/service/analytics"
)

type AnalyticsHandler struct {
	Analytics *analytics.Service
}

func (h *AnalyticsHandler) Dashboard(c echo.Context) error {
	d, err := h.Analytics.Dashboard(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *AnalyticsHandler) SalesChart(c echo.Context) error {
	period := c.QueryParam("period")
	if period == "" {
		period = "month"
	}
	points, err := h.Analytics.SalesChart(c.Request().Context(), period)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"period": period,
		"points": points,
	})
}

func (h *AnalyticsHandler) TopProducts(c echo.Context) error {
	limit := parseIntDefault(c.QueryParam("limit"), 10)
	top, err := h.Analytics.TopProducts(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, top)
}
