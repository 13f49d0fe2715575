package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/craftora/marketplace/internal/logging"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/payments"
	"github.com/craftora/marketplace/internal/service/order"
)

type PaymentHandler struct {
	Orders   *order.Service
	Provider payments.Provider
}

type paymentIntentRequest struct {
	OrderID uint `json:"order_id" validate:"required"`
}

// CreateIntent opens a payment for one of the caller's pending orders.
func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	var req paymentIntentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	o, err := h.Orders.Get(c.Request().Context(), req.OrderID)
	if err != nil {
		return httpError(err)
	}
	if o.UserID != authmw.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}
	if o.Status != models.OrderStatusPending {
		return echo.NewHTTPError(http.StatusConflict, "order is not awaiting payment")
	}

	intent, err := h.Provider.CreateIntent(c.Request().Context(), o.Total, "usd", o.OrderNumber)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, intent)
}

type paymentConfirmRequest struct {
	OrderID  uint   `json:"order_id"  validate:"required"`
	IntentID string `json:"intent_id" validate:"required"`
}

// Confirm settles the intent and moves the order to processing.
func (h *PaymentHandler) Confirm(c echo.Context) error {
	var req paymentConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	o, err := h.Orders.Get(c.Request().Context(), req.OrderID)
	if err != nil {
		return httpError(err)
	}
	if o.UserID != authmw.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your order")
	}
	if o.Status != models.OrderStatusPending {
		return echo.NewHTTPError(http.StatusConflict, "order is not awaiting payment")
	}

	status, err := h.Provider.Confirm(c.Request().Context(), req.IntentID)
	if err != nil {
		return httpError(err)
	}
	if status != "succeeded" {
		return echo.NewHTTPError(http.StatusPaymentRequired, "payment was not successful")
	}

	updated, err := h.Orders.UpdateStatus(c.Request().Context(), o.ID, models.OrderStatusProcessing)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"order":  updated,
		"status": status,
	})
}

type refundRequest struct {
	OrderID  uint    `json:"order_id"  validate:"required"`
	IntentID string  `json:"intent_id" validate:"required"`
	Amount   float64 `json:"amount"    validate:"gt=0"`
}

// Refund is admin-only and only applies to cancelled or delivered orders.
func (h *PaymentHandler) Refund(c echo.Context) error {
	var req refundRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	o, err := h.Orders.Get(c.Request().Context(), req.OrderID)
	if err != nil {
		return httpError(err)
	}
	if o.Status != models.OrderStatusCancelled && o.Status != models.OrderStatusDelivered {
		return echo.NewHTTPError(http.StatusConflict, "only cancelled or delivered orders can be refunded")
	}
	if req.Amount > o.Total {
		return echo.NewHTTPError(http.StatusBadRequest, "refund exceeds order total")
	}

	refund, err := h.Provider.Refund(c.Request().Context(), req.IntentID, req.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, refund)
}

// Webhook accepts provider callbacks. The mock provider has no signatures, so
// the payload is only logged.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read body")
	}
	logging.FromContext(c.Request().Context()).Info("payment webhook received",
		"bytes", len(body))
	return c.NoContent(http.StatusOK)
}
