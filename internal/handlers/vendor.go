package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/events"
	"github.com/craftora/marketplace/internal/mail"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
)

type VendorHandler struct {
	DB        *gorm.DB
	Producer  events.Publisher
	Mailer    *mail.Mailer
	UploadDir string
}

type vendorApplyRequest struct {
	ShopName      string `json:"shop_name"      validate:"required"`
	BusinessName  string `json:"business_name"  validate:"required"`
	BusinessType  string `json:"business_type"`
	ContactPerson string `json:"contact_person" validate:"required"`
	PhoneNumber   string `json:"phone_number"   validate:"required"`
	Email         string `json:"email"          validate:"required,email"`
	Street        string `json:"street"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	Country       string `json:"country"`
	Description   string `json:"description"`
}

func (h *VendorHandler) Apply(c echo.Context) error {
	var req vendorApplyRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID := authmw.UserID(c)

	var existing models.Vendor
	err := h.DB.Where("user_id = ?", userID).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "vendor application already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return httpError(err)
	}

	var byShop models.Vendor
	if err := h.DB.Where("shop_name = ?", req.ShopName).First(&byShop).Error; err == nil {
		return echo.NewHTTPError(http.StatusConflict, "shop name is already taken")
	}

	vendor := models.Vendor{
		UserID:        userID,
		ShopName:      req.ShopName,
		BusinessName:  req.BusinessName,
		BusinessType:  req.BusinessType,
		ContactPerson: req.ContactPerson,
		PhoneNumber:   req.PhoneNumber,
		Email:         strings.ToLower(req.Email),
		Street:        req.Street,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		Country:       req.Country,
		Description:   req.Description,
		Status:        models.VendorStatusPending,
	}
	if err := h.DB.Create(&vendor).Error; err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicVendorEvents, fmt.Sprint(vendor.ID), map[string]any{
		"type":      "vendor_applied",
		"vendor_id": vendor.ID,
		"user_id":   userID,
		"shop_name": vendor.ShopName,
	})
	return c.JSON(http.StatusCreated, vendor)
}

func (h *VendorHandler) MyApplication(c echo.Context) error {
	var vendor models.Vendor
	if err := h.DB.Where("user_id = ?", authmw.UserID(c)).First(&vendor).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no vendor application found")
	}
	return c.JSON(http.StatusOK, vendor)
}

type vendorUpdateRequest struct {
	BusinessName  string `json:"business_name"`
	BusinessType  string `json:"business_type"`
	ContactPerson string `json:"contact_person"`
	PhoneNumber   string `json:"phone_number"`
	Street        string `json:"street"`
	City          string `json:"city"`
	State         string `json:"state"`
	ZipCode       string `json:"zip_code"`
	Country       string `json:"country"`
	Description   string `json:"description"`
}

// UpdateMyApplication edits contact and address details. Shop name and
// status are immutable from here.
func (h *VendorHandler) UpdateMyApplication(c echo.Context) error {
	var vendor models.Vendor
	if err := h.DB.Where("user_id = ?", authmw.UserID(c)).First(&vendor).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no vendor application found")
	}

	var req vendorUpdateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	if req.BusinessName != "" {
		vendor.BusinessName = req.BusinessName
	}
	if req.BusinessType != "" {
		vendor.BusinessType = req.BusinessType
	}
	if req.ContactPerson != "" {
		vendor.ContactPerson = req.ContactPerson
	}
	if req.PhoneNumber != "" {
		vendor.PhoneNumber = req.PhoneNumber
	}
	if req.Street != "" {
		vendor.Street = req.Street
	}
	if req.City != "" {
		vendor.City = req.City
	}
	if req.State != "" {
		vendor.State = req.State
	}
	if req.ZipCode != "" {
		vendor.ZipCode = req.ZipCode
	}
	if req.Country != "" {
		vendor.Country = req.Country
	}
	if req.Description != "" {
		vendor.Description = req.Description
	}

	if err := h.DB.Save(&vendor).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, vendor)
}

func (h *VendorHandler) UploadDocuments(c echo.Context) error {
	var vendor models.Vendor
	if err := h.DB.Where("user_id = ?", authmw.UserID(c)).First(&vendor).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "no vendor application found")
	}

	file, err := c.FormFile("document")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "document file is required")
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".pdf", ".jpg", ".jpeg", ".png":
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported document type")
	}

	src, err := file.Open()
	if err != nil {
		return httpError(err)
	}
	defer src.Close()

	dir := filepath.Join(h.UploadDir, "vendor-docs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return httpError(err)
	}
	name := fmt.Sprintf("vendor-%d-%s%s", vendor.ID, uuid.NewString()[:8], ext)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return httpError(err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return httpError(err)
	}

	vendor.Documents = "/uploads/vendor-docs/" + name
	if err := h.DB.Save(&vendor).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"documents": vendor.Documents})
}

func (h *VendorHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)
	offset, limit := paginate(page, size)

	q := h.DB.Model(&models.Vendor{})
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return httpError(err)
	}
	var vendors []models.Vendor
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&vendors).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"vendors":    vendors,
		"pagination": paginationMeta(page, limit, total),
	})
}

func (h *VendorHandler) Get(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var vendor models.Vendor
	if err := h.DB.First(&vendor, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "vendor not found")
	}
	return c.JSON(http.StatusOK, vendor)
}

// Legal transitions of the application lifecycle. Approve and reject act on
// pending applications, suspend on approved vendors and unsuspend reverses a
// suspension.
var vendorTransitions = map[string]string{
	"approve":   models.VendorStatusPending,
	"reject":    models.VendorStatusPending,
	"suspend":   models.VendorStatusApproved,
	"unsuspend": models.VendorStatusSuspended,
}

type vendorDecisionRequest struct {
	Reason string `json:"reason"`
}

func (h *VendorHandler) Decide(action string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseUintParam(c, "id")
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		var req vendorDecisionRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		if action == "reject" && strings.TrimSpace(req.Reason) == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "rejection reason is required")
		}

		var vendor models.Vendor
		if err := h.DB.First(&vendor, id).Error; err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "vendor not found")
		}
		if vendor.Status != vendorTransitions[action] {
			return echo.NewHTTPError(http.StatusConflict,
				fmt.Sprintf("cannot %s a vendor in status %q", action, vendor.Status))
		}

		adminID := authmw.UserID(c)
		now := time.Now()

		err := h.DB.Transaction(func(tx *gorm.DB) error {
			switch action {
			case "approve":
				vendor.Status = models.VendorStatusApproved
				vendor.ApprovedBy = adminID
				vendor.ApprovedAt = &now
				vendor.RejectionReason = ""
				if err := tx.Model(&models.User{}).Where("id = ?", vendor.UserID).
					Updates(map[string]any{"role": models.RoleVendor, "approved": true}).Error; err != nil {
					return err
				}
			case "reject":
				vendor.Status = models.VendorStatusRejected
				vendor.RejectionReason = req.Reason
			case "suspend":
				vendor.Status = models.VendorStatusSuspended
				vendor.RejectionReason = req.Reason
				if err := tx.Model(&models.User{}).Where("id = ?", vendor.UserID).
					Update("approved", false).Error; err != nil {
					return err
				}
			case "unsuspend":
				vendor.Status = models.VendorStatusApproved
				vendor.RejectionReason = ""
				if err := tx.Model(&models.User{}).Where("id = ?", vendor.UserID).
					Update("approved", true).Error; err != nil {
					return err
				}
			}
			return tx.Save(&vendor).Error
		})
		if err != nil {
			return httpError(err)
		}

		ctx := c.Request().Context()
		h.Mailer.SendVendorDecision(ctx, vendor.Email, vendor.ContactPerson, vendor.ShopName, vendor.Status, vendor.RejectionReason)
		events.Emit(ctx, h.Producer, events.TopicVendorEvents, fmt.Sprint(vendor.ID), map[string]any{
			"type":      "vendor_" + vendor.Status,
			"vendor_id": vendor.ID,
			"user_id":   vendor.UserID,
		})
		return c.JSON(http.StatusOK, vendor)
	}
}
