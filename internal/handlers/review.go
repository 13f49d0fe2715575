package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/util"
)

type ReviewHandler struct {
	DB *gorm.DB
}

type reviewCreateRequest struct {
	ProductID uint   `json:"product_id" validate:"required"`
	Rating    uint   `json:"rating"     validate:"required,min=1,max=5"`
	Title     string `json:"title"      validate:"required"`
	Comment   string `json:"comment"    validate:"required"`
}

func (h *ReviewHandler) Create(c echo.Context) error {
	var req reviewCreateRequest
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

	var existing models.Review
	err := h.DB.Where("user_id = ? AND product_id = ?", userID, req.ProductID).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "you have already reviewed this product")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return httpError(err)
	}

	// Verified means the reviewer has a delivered order containing the product.
	var purchases int64
	err = h.DB.Model(&models.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.user_id = ? AND order_items.product_id = ? AND orders.status = ?",
			userID, req.ProductID, models.OrderStatusDelivered).
		Count(&purchases).Error
	if err != nil {
		return httpError(err)
	}

	review := models.Review{
		UserID:    userID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Title:     req.Title,
		Comment:   req.Comment,
		Verified:  purchases > 0,
		Active:    true,
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&review).Error; err != nil {
			return err
		}
		return refreshProductRating(tx, req.ProductID)
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, review)
}

// refreshProductRating recomputes the product's aggregate from its active
// reviews.
func refreshProductRating(tx *gorm.DB, productID uint) error {
	var agg struct {
		Count int64
		Avg   float64
	}
	err := tx.Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS avg").
		Where("product_id = ? AND active = ?", productID, true).
		Scan(&agg).Error
	if err != nil {
		return err
	}
	return tx.Model(&models.Product{}).Where("id = ?", productID).Updates(map[string]any{
		"average_rating": util.Round2(agg.Avg),
		"review_count":   agg.Count,
	}).Error
}

func (h *ReviewHandler) ListForProduct(c echo.Context) error {
	productID, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)
	offset, limit := paginate(page, size)

	base := h.DB.Model(&models.Review{}).Where("product_id = ? AND active = ?", productID, true)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return httpError(err)
	}

	var reviews []models.Review
	err := base.Session(&gorm.Session{}).
		Order("helpful_count DESC, created_at DESC").
		Offset(offset).Limit(limit).Find(&reviews).Error
	if err != nil {
		return httpError(err)
	}

	// Rating distribution for the review summary widget.
	var rows []struct {
		Rating uint
		Count  int64
	}
	err = base.Session(&gorm.Session{}).
		Select("rating, COUNT(*) AS count").Group("rating").Scan(&rows).Error
	if err != nil {
		return httpError(err)
	}
	distribution := map[uint]int64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	var sum int64
	for _, r := range rows {
		distribution[r.Rating] = r.Count
		sum += int64(r.Rating) * r.Count
	}
	average := 0.0
	if total > 0 {
		average = math.Round(float64(sum)/float64(total)*10) / 10
	}

	return c.JSON(http.StatusOK, echo.Map{
		"reviews":      reviews,
		"average":      average,
		"distribution": distribution,
		"pagination":   paginationMeta(page, limit, total),
	})
}

func (h *ReviewHandler) ListMine(c echo.Context) error {
	var reviews []models.Review
	err := h.DB.Where("user_id = ?", authmw.UserID(c)).
		Order("created_at DESC").Find(&reviews).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, reviews)
}

// ToggleHelpful records one helpful vote per user per review; voting again
// retracts it.
func (h *ReviewHandler) ToggleHelpful(c echo.Context) error {
	reviewID, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	userID := authmw.UserID(c)

	var review models.Review
	if err := h.DB.First(&review, reviewID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "review not found")
	}

	var voted bool
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		var vote models.ReviewVote
		err := tx.Where("review_id = ? AND user_id = ?", reviewID, userID).First(&vote).Error
		switch {
		case err == nil:
			if err := tx.Delete(&vote).Error; err != nil {
				return err
			}
			return tx.Model(&models.Review{}).Where("id = ? AND helpful_count > 0", reviewID).
				UpdateColumn("helpful_count", gorm.Expr("helpful_count - 1")).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			voted = true
			if err := tx.Create(&models.ReviewVote{ReviewID: reviewID, UserID: userID}).Error; err != nil {
				return err
			}
			return tx.Model(&models.Review{}).Where("id = ?", reviewID).
				UpdateColumn("helpful_count", gorm.Expr("helpful_count + 1")).Error
		default:
			return err
		}
	})
	if err != nil {
		return httpError(err)
	}

	if err := h.DB.First(&review, reviewID).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"voted":         voted,
		"helpful_count": review.HelpfulCount,
	})
}

func (h *ReviewHandler) Delete(c echo.Context) error {
	reviewID, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var review models.Review
	if err := h.DB.First(&review, reviewID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "review not found")
	}
	if authmw.Role(c) != models.RoleAdmin && review.UserID != authmw.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your review")
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&review).Error; err != nil {
			return err
		}
		return refreshProductRating(tx, review.ProductID)
	})
	if err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
