package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/assistant"
	"github.com/craftora/marketplace/internal/models"
)

type AssistantHandler struct {
	DB        *gorm.DB
	Assistant *assistant.Client
}

type assistantRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// Chat answers a shopper question grounded in a snapshot of the catalog.
func (h *AssistantHandler) Chat(c echo.Context) error {
	var req assistantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message cannot be empty")
	}

	var catalog []models.Product
	if err := h.DB.Where("stock > 0").Order("average_rating DESC").
		Limit(50).Find(&catalog).Error; err != nil {
		return httpError(err)
	}

	reply := h.Assistant.Chat(c.Request().Context(), message, catalog)
	return c.JSON(http.StatusOK, echo.Map{"reply": reply})
}
