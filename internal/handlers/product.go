package handlers

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/events"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
)

type ProductHandler struct {
	DB        *gorm.DB
	Producer  events.Publisher
	UploadDir string
}

// List supports category, price range, search and sort filters alongside
// pagination.
func (h *ProductHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)
	offset, limit := paginate(page, size)

	q := h.DB.Model(&models.Product{})
	if cat := c.QueryParam("category"); cat != "" {
		q = q.Where("category = ?", cat)
	}
	if raw := c.QueryParam("min_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			q = q.Where("price >= ?", v)
		}
	}
	if raw := c.QueryParam("max_price"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			q = q.Where("price <= ?", v)
		}
	}
	if term := strings.TrimSpace(c.QueryParam("search")); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if vendorID := c.QueryParam("vendor_id"); vendorID != "" {
		q = q.Where("vendor_id = ?", vendorID)
	}
	if c.QueryParam("is_new") == "true" {
		q = q.Where("is_new = ?", true)
	}
	if c.QueryParam("is_featured") == "true" {
		q = q.Where("is_featured = ?", true)
	}
	if c.QueryParam("in_stock") == "true" {
		q = q.Where("stock > 0")
	}
	if raw := c.QueryParam("min_rating"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			q = q.Where("average_rating >= ?", v)
		}
	}

	switch c.QueryParam("sort") {
	case "price_asc":
		q = q.Order("price ASC")
	case "price_desc":
		q = q.Order("price DESC")
	case "rating":
		q = q.Order("average_rating DESC")
	case "newest":
		q = q.Order("created_at DESC")
	default:
		q = q.Order("id ASC")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return httpError(err)
	}
	var products []models.Product
	if err := q.Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"products":   products,
		"pagination": paginationMeta(page, limit, total),
	})
}

func (h *ProductHandler) Get(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Featured(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Where("is_featured = ?", true).
		Order("created_at DESC").Limit(12).Find(&products).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, products)
}

func (h *ProductHandler) NewArrivals(c echo.Context) error {
	var products []models.Product
	if err := h.DB.Where("is_new = ?", true).
		Order("created_at DESC").Limit(12).Find(&products).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, products)
}

// Recommendations returns up to 4 other products in the same category within
// 20 percent of the source product's price.
func (h *ProductHandler) Recommendations(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var recs []models.Product
	err := h.DB.Where("category = ? AND id != ?", product.Category, product.ID).
		Where("price BETWEEN ? AND ?", product.Price*0.8, product.Price*1.2).
		Order("average_rating DESC").Limit(4).Find(&recs).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, recs)
}

func (h *ProductHandler) Categories(c echo.Context) error {
	var categories []string
	err := h.DB.Model(&models.Product{}).
		Distinct("category").Order("category ASC").Pluck("category", &categories).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, categories)
}

type productRequest struct {
	Title         string  `json:"title"       validate:"required"`
	Subtitle      string  `json:"subtitle"`
	Description   string  `json:"description" validate:"required"`
	Price         float64 `json:"price"       validate:"required,gt=0"`
	OriginalPrice float64 `json:"original_price"`
	Category      string  `json:"category"    validate:"required"`
	Stock         uint    `json:"stock"`
	Image         string  `json:"image"`
	IsNew         bool    `json:"is_new"`
	IsFeatured    bool    `json:"is_featured"`
}

func (h *ProductHandler) Create(c echo.Context) error {
	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	product := models.Product{
		VendorID:      authmw.UserID(c),
		Title:         req.Title,
		Subtitle:      req.Subtitle,
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Category:      req.Category,
		Stock:         req.Stock,
		Image:         req.Image,
		IsNew:         req.IsNew,
		IsFeatured:    req.IsFeatured,
	}
	if err := h.DB.Create(&product).Error; err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicProductEvents, fmt.Sprint(product.ID), map[string]any{
		"type":       "product_created",
		"product_id": product.ID,
		"vendor_id":  product.VendorID,
	})
	return c.JSON(http.StatusCreated, product)
}

// loadOwned fetches a product and enforces that the caller owns it or is an
// admin.
func (h *ProductHandler) loadOwned(c echo.Context) (*models.Product, error) {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "product not found")
	}
	if authmw.Role(c) != models.RoleAdmin && product.VendorID != authmw.UserID(c) {
		return nil, echo.NewHTTPError(http.StatusForbidden, "not your product")
	}
	return &product, nil
}

func (h *ProductHandler) Update(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	product.Title = req.Title
	product.Subtitle = req.Subtitle
	product.Description = req.Description
	product.Price = req.Price
	product.OriginalPrice = req.OriginalPrice
	product.Category = req.Category
	product.Stock = req.Stock
	if req.Image != "" {
		product.Image = req.Image
	}
	product.IsNew = req.IsNew
	product.IsFeatured = req.IsFeatured

	if err := h.DB.Save(product).Error; err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicProductEvents, fmt.Sprint(product.ID), map[string]any{
		"type":       "product_updated",
		"product_id": product.ID,
	})
	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Delete(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	if err := h.DB.Delete(product).Error; err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicProductEvents, fmt.Sprint(product.ID), map[string]any{
		"type":       "product_deleted",
		"product_id": product.ID,
	})
	return c.NoContent(http.StatusNoContent)
}

func (h *ProductHandler) UploadImage(c echo.Context) error {
	product, err := h.loadOwned(c)
	if err != nil {
		return err
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported image type")
	}

	src, err := file.Open()
	if err != nil {
		return httpError(err)
	}
	defer src.Close()

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return httpError(err)
	}
	name := fmt.Sprintf("product-%d-%s%s", product.ID, uuid.NewString()[:8], ext)
	dstPath := filepath.Join(h.UploadDir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return httpError(err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return httpError(err)
	}

	product.Image = "/uploads/" + name
	if err := h.DB.Save(product).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"image": product.Image})
}
