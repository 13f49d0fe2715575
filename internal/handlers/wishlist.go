package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
)

type WishlistHandler struct {
	DB *gorm.DB
}

func (h *WishlistHandler) List(c echo.Context) error {
	userID := authmw.UserID(c)

	var items []models.WishlistItem
	if err := h.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&items).Error; err != nil {
		return httpError(err)
	}
	if len(items) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"items": []models.Product{}})
	}

	ids := make([]uint, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	var products []models.Product
	if err := h.DB.Where("id IN ?", ids).Find(&products).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": products})
}

type wishlistRequest struct {
	ProductID uint `json:"product_id" validate:"required"`
}

// Toggle adds the product if absent, removes it if present.
func (h *WishlistHandler) Toggle(c echo.Context) error {
	var req wishlistRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID := authmw.UserID(c)

	var product models.Product
	if err := h.DB.First(&product, req.ProductID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var item models.WishlistItem
	err := h.DB.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&item).Error
	switch {
	case err == nil:
		if err := h.DB.Delete(&item).Error; err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, echo.Map{"in_wishlist": false})
	case errors.Is(err, gorm.ErrRecordNotFound):
		item = models.WishlistItem{UserID: userID, ProductID: req.ProductID}
		if err := h.DB.Create(&item).Error; err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, echo.Map{"in_wishlist": true})
	default:
		return httpError(err)
	}
}

func (h *WishlistHandler) Remove(c echo.Context) error {
	productID, ok := parseUintParam(c, "productID")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	res := h.DB.Where("user_id = ? AND product_id = ?", authmw.UserID(c), productID).
		Delete(&models.WishlistItem{})
	if res.Error != nil {
		return httpError(res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "item not in wishlist")
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *WishlistHandler) Contains(c echo.Context) error {
	productID, ok := parseUintParam(c, "productID")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	var count int64
	err := h.DB.Model(&models.WishlistItem{}).
		Where("user_id = ? AND product_id = ?", authmw.UserID(c), productID).
		Count(&count).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"in_wishlist": count > 0})
}
