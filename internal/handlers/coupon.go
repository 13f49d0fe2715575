package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/service/coupon"
)

type CouponHandler struct {
	Coupons *coupon.Service
}

type couponCreateRequest struct {
	Code                  string    `json:"code"        validate:"required"`
	Name                  string    `json:"name"        validate:"required"`
	Description           string    `json:"description"`
	Type                  string    `json:"type"        validate:"required,oneof=percentage fixed_amount free_shipping"`
	Value                 float64   `json:"value"       validate:"gte=0"`
	MinimumOrderAmount    float64   `json:"minimum_order_amount"`
	MaximumDiscountAmount float64   `json:"maximum_discount_amount"`
	StartDate             time.Time `json:"start_date"  validate:"required"`
	EndDate               time.Time `json:"end_date"    validate:"required"`
	UsageLimit            uint      `json:"usage_limit"`
	UsageLimitPerUser     uint      `json:"usage_limit_per_user"`
	FirstTimeOnly         bool      `json:"first_time_only"`
	Active                *bool     `json:"active"`
}

func (h *CouponHandler) Create(c echo.Context) error {
	var req couponCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	created, err := h.Coupons.Create(c.Request().Context(), coupon.CreateInput{
		Code:                  req.Code,
		Name:                  req.Name,
		Description:           req.Description,
		Type:                  req.Type,
		Value:                 req.Value,
		MinimumOrderAmount:    req.MinimumOrderAmount,
		MaximumDiscountAmount: req.MaximumDiscountAmount,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		UsageLimit:            req.UsageLimit,
		UsageLimitPerUser:     req.UsageLimitPerUser,
		FirstTimeOnly:         req.FirstTimeOnly,
		Active:                active,
		CreatedBy:             authmw.UserID(c),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *CouponHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)

	coupons, total, err := h.Coupons.List(c.Request().Context(), page, size)
	if err != nil {
		return httpError(err)
	}
	_, limit := paginate(page, size)
	return c.JSON(http.StatusOK, echo.Map{
		"coupons":    coupons,
		"pagination": paginationMeta(page, limit, total),
	})
}

func (h *CouponHandler) ListActive(c echo.Context) error {
	coupons, err := h.Coupons.ListActive(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, coupons)
}

func (h *CouponHandler) Get(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	cp, err := h.Coupons.Get(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *CouponHandler) Update(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body map[string]any
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	// Only a fixed set of columns is updatable; usage counters are not.
	updates := map[string]any{}
	for _, field := range []string{
		"name", "description", "value", "minimum_order_amount",
		"maximum_discount_amount", "start_date", "end_date",
		"usage_limit", "usage_limit_per_user", "first_time_only", "active",
	} {
		if v, ok := body[field]; ok {
			updates[field] = v
		}
	}
	if len(updates) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "nothing to update")
	}

	cp, err := h.Coupons.Update(c.Request().Context(), id, updates)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, cp)
}

func (h *CouponHandler) Delete(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.Coupons.Delete(c.Request().Context(), id); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type couponValidateRequest struct {
	Code        string  `json:"code"         validate:"required"`
	OrderAmount float64 `json:"order_amount" validate:"gt=0"`
}

// Validate checks a code against the caller's cart amount without consuming
// any usage.
func (h *CouponHandler) Validate(c echo.Context) error {
	var req couponValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	res, err := h.Coupons.Validate(c.Request().Context(), strings.TrimSpace(req.Code), req.OrderAmount, authmw.UserID(c))
	if err != nil {
		return httpError(err)
	}
	if !res.Valid {
		return c.JSON(http.StatusOK, echo.Map{"valid": false, "reason": res.Reason})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"valid":    true,
		"discount": res.Discount,
		"coupon":   res.Coupon,
	})
}
