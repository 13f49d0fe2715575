package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/mail"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
)

type ReportHandler struct {
	DB     *gorm.DB
	Mailer *mail.Mailer
}

type reportCreateRequest struct {
	Type              string `json:"type"        validate:"required,oneof=user vendor product order other"`
	Subject           string `json:"subject"     validate:"required"`
	Description       string `json:"description" validate:"required"`
	Priority          string `json:"priority"    validate:"omitempty,oneof=low medium high urgent"`
	ReportedUserID    uint   `json:"reported_user_id"`
	ReportedVendorID  uint   `json:"reported_vendor_id"`
	ReportedProductID uint   `json:"reported_product_id"`
	RelatedOrderID    uint   `json:"related_order_id"`
}

func (h *ReportHandler) Create(c echo.Context) error {
	var req reportCreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	priority := req.Priority
	if priority == "" {
		priority = "medium"
	}
	report := models.Report{
		ReportedBy:        authmw.UserID(c),
		Type:              req.Type,
		Subject:           req.Subject,
		Description:       req.Description,
		Priority:          priority,
		ReportedUserID:    req.ReportedUserID,
		ReportedVendorID:  req.ReportedVendorID,
		ReportedProductID: req.ReportedProductID,
		RelatedOrderID:    req.RelatedOrderID,
		Status:            models.ReportStatusPending,
	}
	if err := h.DB.Create(&report).Error; err != nil {
		return httpError(err)
	}

	h.notifyAdmins(c, &report)
	return c.JSON(http.StatusCreated, report)
}

// notifyAdmins emails every admin about a new report, best-effort.
func (h *ReportHandler) notifyAdmins(c echo.Context, report *models.Report) {
	var admins []models.User
	if err := h.DB.Where("role = ?", models.RoleAdmin).Find(&admins).Error; err != nil {
		return
	}
	subject := "New " + report.Priority + " priority report: " + report.Subject
	body := "A new " + report.Type + " report was filed.\n\nSubject: " + report.Subject +
		"\n\n" + report.Description + "\n"
	for _, a := range admins {
		h.Mailer.SendAsyncSafe(c.Request().Context(), a.Email, subject, body)
	}
}

func (h *ReportHandler) ListMine(c echo.Context) error {
	var reports []models.Report
	err := h.DB.Where("reported_by = ?", authmw.UserID(c)).
		Order("created_at DESC").Find(&reports).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, reports)
}

func (h *ReportHandler) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)
	offset, limit := paginate(page, size)

	q := h.DB.Model(&models.Report{})
	if status := c.QueryParam("status"); status != "" {
		q = q.Where("status = ?", status)
	}
	if typ := c.QueryParam("type"); typ != "" {
		q = q.Where("type = ?", typ)
	}
	if priority := c.QueryParam("priority"); priority != "" {
		q = q.Where("priority = ?", priority)
	}
	if assigned := c.QueryParam("assigned_to"); assigned != "" {
		q = q.Where("assigned_to = ?", assigned)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return httpError(err)
	}
	var reports []models.Report
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&reports).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"reports":    reports,
		"pagination": paginationMeta(page, limit, total),
	})
}

// Get returns a report with its comment thread. Non-admin callers only see
// their own reports and never internal comments.
func (h *ReportHandler) Get(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var report models.Report
	if err := h.DB.First(&report, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}

	isAdmin := authmw.Role(c) == models.RoleAdmin
	if !isAdmin && report.ReportedBy != authmw.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your report")
	}

	commentsQ := h.DB.Where("report_id = ?", id)
	if !isAdmin {
		commentsQ = commentsQ.Where("internal = ?", false)
	}
	var comments []models.ReportComment
	if err := commentsQ.Order("created_at ASC").Find(&comments).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"report":   report,
		"comments": comments,
	})
}

type reportCommentRequest struct {
	Message  string `json:"message" validate:"required"`
	Internal bool   `json:"internal"`
}

func (h *ReportHandler) Comment(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reportCommentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var report models.Report
	if err := h.DB.First(&report, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}

	isAdmin := authmw.Role(c) == models.RoleAdmin
	if !isAdmin && report.ReportedBy != authmw.UserID(c) {
		return echo.NewHTTPError(http.StatusForbidden, "not your report")
	}

	comment := models.ReportComment{
		ReportID: id,
		AuthorID: authmw.UserID(c),
		Message:  req.Message,
		Internal: isAdmin && req.Internal,
	}
	if err := h.DB.Create(&comment).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, comment)
}

type reportAssignRequest struct {
	AdminID uint `json:"admin_id" validate:"required"`
}

func (h *ReportHandler) Assign(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req reportAssignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var admin models.User
	if err := h.DB.Where("id = ? AND role = ?", req.AdminID, models.RoleAdmin).First(&admin).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "assignee must be an admin")
	}

	var report models.Report
	if err := h.DB.First(&report, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	report.AssignedTo = req.AdminID
	if report.Status == models.ReportStatusPending {
		report.Status = models.ReportStatusUnderReview
	}
	if err := h.DB.Save(&report).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}

type reportResolveRequest struct {
	Resolution string `json:"resolution" validate:"required"`
}

// Resolve closes a report with a resolution. The reporter gets an email with
// the outcome.
func (h *ReportHandler) Resolve(status string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseUintParam(c, "id")
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		var req reportResolveRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		if err := c.Validate(&req); err != nil {
			return err
		}

		var report models.Report
		if err := h.DB.First(&report, id).Error; err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		if report.Status == models.ReportStatusResolved || report.Status == models.ReportStatusRejected {
			return echo.NewHTTPError(http.StatusConflict, "report is already closed")
		}

		now := time.Now()
		report.Status = status
		report.Resolution = req.Resolution
		report.ResolvedBy = authmw.UserID(c)
		report.ResolvedAt = &now
		if err := h.DB.Save(&report).Error; err != nil {
			return httpError(err)
		}

		var reporter models.User
		if err := h.DB.First(&reporter, report.ReportedBy).Error; err == nil {
			subject := "Your report has been " + strings.ReplaceAll(status, "_", " ")
			body := "Hi " + reporter.Name + ",\n\nYour report \"" + report.Subject +
				"\" has been updated.\n\nOutcome: " + req.Resolution + "\n"
			h.Mailer.SendAsyncSafe(c.Request().Context(), reporter.Email, subject, body)
		}
		return c.JSON(http.StatusOK, report)
	}
}

// Escalate bumps priority to urgent and marks the report escalated.
func (h *ReportHandler) Escalate(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var report models.Report
	if err := h.DB.First(&report, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if report.Status == models.ReportStatusResolved || report.Status == models.ReportStatusRejected {
		return echo.NewHTTPError(http.StatusConflict, "report is already closed")
	}

	report.Status = models.ReportStatusEscalated
	report.Priority = "urgent"
	if err := h.DB.Save(&report).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, report)
}
