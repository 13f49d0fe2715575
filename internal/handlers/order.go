package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/craftora/marketplace/internal/events"
	"github.com/craftora/marketplace/internal/mail"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/service/order"
)

type OrderHandler struct {
	Orders   *order.Service
	Producer events.Publisher
	Mailer   *mail.Mailer
}

func (h *OrderHandler) Checkout(c echo.Context) error {
	var req order.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID := authmw.UserID(c)
	o, err := h.Orders.Checkout(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	h.Mailer.SendOrderConfirmation(ctx, o.Email, o.FirstName, o.OrderNumber, o.Total)
	events.Emit(ctx, h.Producer, events.TopicOrderEvents, o.OrderNumber, map[string]any{
		"type":         "order_placed",
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"user_id":      userID,
		"total":        o.Total,
	})
	return c.JSON(http.StatusCreated, o)
}

func (h *OrderHandler) ListMine(c echo.Context) error {
	orders, err := h.Orders.ListByUser(c.Request().Context(), authmw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListVendor(c echo.Context) error {
	orders, err := h.Orders.ListByVendor(c.Request().Context(), authmw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) ListAll(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)

	orders, total, err := h.Orders.ListAll(c.Request().Context(), page, size)
	if err != nil {
		return httpError(err)
	}
	_, limit := paginate(page, size)
	return c.JSON(http.StatusOK, echo.Map{
		"orders":     orders,
		"pagination": paginationMeta(page, limit, total),
	})
}

func (h *OrderHandler) Get(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.Orders.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if authmw.Role(c) != models.RoleAdmin && o.UserID != authmw.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}
	return c.JSON(http.StatusOK, o)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled"`
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	o, err := h.Orders.UpdateStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicOrderEvents, o.OrderNumber, map[string]any{
		"type":         "order_status_changed",
		"order_id":     o.ID,
		"order_number": o.OrderNumber,
		"status":       o.Status,
	})
	return c.JSON(http.StatusOK, o)
}

// Cancel lets a customer cancel their own order while it is still pending or
// processing.
func (h *OrderHandler) Cancel(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := h.Orders.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	if o.UserID != authmw.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}
	if o.Status != models.OrderStatusPending && o.Status != models.OrderStatusProcessing {
		return echo.NewHTTPError(http.StatusConflict, "order can no longer be cancelled")
	}

	updated, err := h.Orders.UpdateStatus(c.Request().Context(), id, models.OrderStatusCancelled)
	if err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicOrderEvents, updated.OrderNumber, map[string]any{
		"type":         "order_cancelled",
		"order_id":     updated.ID,
		"order_number": updated.OrderNumber,
	})
	return c.JSON(http.StatusOK, updated)
}

// Track is unauthenticated and requires both the order number and the email
// the order was placed with.
func (h *OrderHandler) Track(c echo.Context) error {
	number := strings.TrimSpace(c.QueryParam("order_number"))
	email := strings.TrimSpace(c.QueryParam("email"))
	if number == "" || email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_number and email are required")
	}

	o, err := h.Orders.Track(c.Request().Context(), number, email)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order_number": o.OrderNumber,
		"status":       o.Status,
		"total":        o.Total,
		"created_at":   o.CreatedAt,
		"items":        o.Items,
	})
}
