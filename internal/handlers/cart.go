package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/craftora/marketplace/internal/events"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/service/cart"
	"github.com/craftora/marketplace/internal/util"
)

type CartHandler struct {
	Carts    *cart.Service
	Producer events.Publisher
}

func (h *CartHandler) Get(c echo.Context) error {
	userID := authmw.UserID(c)
	items, err := h.Carts.Items(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	subtotal := 0.0
	for _, it := range items {
		subtotal += it.UnitPrice * float64(it.Quantity)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":    items,
		"subtotal": util.Round2(subtotal),
	})
}

type cartAddRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
	Quantity  uint `json:"quantity"`
}

func (h *CartHandler) Add(c echo.Context) error {
	var req cartAddRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID := authmw.UserID(c)
	item, err := h.Carts.Add(c.Request().Context(), userID, req.ProductID, req.Quantity)
	if err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicCartEvents, fmt.Sprint(userID), map[string]any{
		"type":       "cart_item_added",
		"user_id":    userID,
		"product_id": req.ProductID,
		"quantity":   item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

type cartUpdateRequest struct {
	Quantity uint `json:"quantity"`
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	productID, ok := parseUintParam(c, "productID")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var req cartUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	userID := authmw.UserID(c)
	item, err := h.Carts.UpdateQuantity(c.Request().Context(), userID, productID, req.Quantity)
	if err != nil {
		return httpError(err)
	}
	if item == nil {
		return c.JSON(http.StatusOK, echo.Map{"message": "item removed"})
	}
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) Remove(c echo.Context) error {
	productID, ok := parseUintParam(c, "productID")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	userID := authmw.UserID(c)
	if err := h.Carts.Remove(c.Request().Context(), userID, productID); err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicCartEvents, fmt.Sprint(userID), map[string]any{
		"type":       "cart_item_removed",
		"user_id":    userID,
		"product_id": productID,
	})
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) Clear(c echo.Context) error {
	userID := authmw.UserID(c)
	if err := h.Carts.Clear(c.Request().Context(), userID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
