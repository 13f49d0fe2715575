package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/logging"
	"github.com/craftora/marketplace/internal/mail"
	"github.com/craftora/marketplace/internal/models"
)

type NewsletterHandler struct {
	DB     *gorm.DB
	Mailer *mail.Mailer
}

type subscribeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *NewsletterHandler) Subscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.Subscriber
	if err := h.DB.Where("email = ?", email).First(&existing).Error; err == nil {
		return echo.NewHTTPError(http.StatusConflict, "email is already subscribed")
	}

	sub := models.Subscriber{Email: email}
	if err := h.DB.Create(&sub).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "subscribed"})
}

func (h *NewsletterHandler) Unsubscribe(c echo.Context) error {
	var req subscribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	res := h.DB.Where("email = ?", strings.ToLower(req.Email)).Delete(&models.Subscriber{})
	if res.Error != nil {
		return httpError(res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "email is not subscribed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "unsubscribed"})
}

func (h *NewsletterHandler) ListSubscribers(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)
	offset, limit := paginate(page, size)

	var total int64
	if err := h.DB.Model(&models.Subscriber{}).Count(&total).Error; err != nil {
		return httpError(err)
	}
	var subs []models.Subscriber
	err := h.DB.Order("created_at DESC").Offset(offset).Limit(limit).Find(&subs).Error
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"subscribers": subs,
		"pagination":  paginationMeta(page, limit, total),
	})
}

type campaignRequest struct {
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"    validate:"required"`
}

// SendCampaign fans the message out to every subscriber in the background and
// replies immediately with the recipient count.
func (h *NewsletterHandler) SendCampaign(c echo.Context) error {
	var req campaignRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var subs []models.Subscriber
	if err := h.DB.Find(&subs).Error; err != nil {
		return httpError(err)
	}
	if len(subs) == 0 {
		return c.JSON(http.StatusOK, echo.Map{"recipients": 0})
	}

	// The request context dies with the response, so the fan-out gets its own.
	log := logging.FromContext(c.Request().Context())
	bg := logging.IntoContext(context.Background(), log)
	go func() {
		for _, s := range subs {
			if err := h.Mailer.Send(bg, s.Email, req.Subject, req.Body); err != nil {
				log.Warn("newsletter send failed", "email", s.Email, "error", err)
			}
		}
		log.Info("newsletter campaign sent", "subject", req.Subject, "recipients", len(subs))
	}()

	return c.JSON(http.StatusAccepted, echo.Map{"recipients": len(subs)})
}
