package handlers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/events"
	"github.com/craftora/marketplace/internal/hash"
	"github.com/craftora/marketplace/internal/mail"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/service/token"
)

type AuthHandler struct {
	DB       *gorm.DB
	Tokens   *token.Service
	Producer events.Publisher
	Mailer   *mail.Mailer
}

type registerRequest struct {
	Name            string `json:"name"             validate:"required"`
	Email           string `json:"email"            validate:"required,email"`
	Password        string `json:"password"         validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
	Role            string `json:"role"             validate:"omitempty,oneof=user vendor"`
}

func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var existing models.User
	err := h.DB.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return echo.NewHTTPError(http.StatusConflict, "user with this email already exists")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return httpError(err)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return httpError(err)
	}

	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	user := models.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: pwHash,
		Role:         role,
		// Vendor accounts stay unapproved until an admin signs off.
		Approved: role != models.RoleVendor,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return httpError(err)
	}

	pair, err := h.Tokens.Issue(c.Request().Context(), user.ID, user.Role)
	if err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	h.Mailer.SendWelcome(ctx, user.Email, user.Name)
	events.Emit(ctx, h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":    "user_registered",
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
	})

	return c.JSON(http.StatusCreated, echo.Map{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.DB.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if !hash.CheckPassword(user.PasswordHash, req.Password) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if user.Blocked {
		return echo.NewHTTPError(http.StatusForbidden, "account is blocked")
	}
	if user.Role == models.RoleVendor && !user.Approved {
		return echo.NewHTTPError(http.StatusUnauthorized, "your vendor account is pending approval")
	}

	pair, err := h.Tokens.Issue(c.Request().Context(), user.ID, user.Role)
	if err != nil {
		return httpError(err)
	}

	events.Emit(c.Request().Context(), h.Producer, events.TopicUserEvents, fmt.Sprint(user.ID), map[string]any{
		"type":    "user_logged_in",
		"user_id": user.ID,
	})

	return c.JSON(http.StatusOK, echo.Map{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	pair, err := h.Tokens.Rotate(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "cannot refresh token")
	}
	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.RefreshToken != "" {
		if err := h.Tokens.Revoke(c.Request().Context(), req.RefreshToken); err != nil {
			return httpError(err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

func (h *AuthHandler) Profile(c echo.Context) error {
	var user models.User
	if err := h.DB.First(&user, authmw.UserID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	return c.JSON(http.StatusOK, user)
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, authmw.UserID(c)).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}
	user.Name = req.Name
	if err := h.DB.Save(&user).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}

type addressRequest struct {
	FirstName     string `json:"first_name"     validate:"required"`
	LastName      string `json:"last_name"      validate:"required"`
	StreetAddress string `json:"street_address" validate:"required"`
	City          string `json:"city"           validate:"required"`
	Province      string `json:"province"       validate:"required"`
	ZipCode       string `json:"zip_code"       validate:"required"`
	Phone         string `json:"phone"          validate:"required"`
	IsDefault     bool   `json:"is_default"`
}

func (h *AuthHandler) AddAddress(c echo.Context) error {
	var req addressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	userID := authmw.UserID(c)
	addr := models.Address{
		UserID:        userID,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		Province:      req.Province,
		ZipCode:       req.ZipCode,
		Phone:         req.Phone,
		IsDefault:     req.IsDefault,
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := tx.Model(&models.Address{}).
				Where("user_id = ?", userID).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&addr).Error
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, addr)
}

func (h *AuthHandler) ListAddresses(c echo.Context) error {
	var addrs []models.Address
	if err := h.DB.Where("user_id = ?", authmw.UserID(c)).Find(&addrs).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, addrs)
}

func (h *AuthHandler) DeleteAddress(c echo.Context) error {
	id, ok := parseUintParam(c, "id")
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	res := h.DB.Where("id = ? AND user_id = ?", id, authmw.UserID(c)).Delete(&models.Address{})
	if res.Error != nil {
		return httpError(res.Error)
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "address not found")
	}
	return c.NoContent(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// Response is identical whether or not the account exists.
	reply := echo.Map{"message": "if the email exists, a reset code has been sent"}

	var user models.User
	if err := h.DB.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		return c.JSON(http.StatusOK, reply)
	}

	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return httpError(err)
	}
	otp := fmt.Sprintf("%06d", n.Int64())
	expires := time.Now().Add(10 * time.Minute)
	user.OTP = otp
	user.OTPExpiresAt = &expires
	if err := h.DB.Save(&user).Error; err != nil {
		return httpError(err)
	}

	h.Mailer.SendOTP(c.Request().Context(), user.Email, user.Name, otp)
	return c.JSON(http.StatusOK, reply)
}

type resetPasswordRequest struct {
	Email           string `json:"email"            validate:"required,email"`
	OTP             string `json:"otp"              validate:"required,len=6"`
	Password        string `json:"password"         validate:"required,min=8"`
	ConfirmPassword string `json:"confirm_password" validate:"required"`
}

func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if req.Password != req.ConfirmPassword {
		return echo.NewHTTPError(http.StatusBadRequest, "passwords do not match")
	}

	var user models.User
	err := h.DB.Where("email = ? AND otp = ? AND otp_expires_at > ?",
		strings.ToLower(req.Email), req.OTP, time.Now()).First(&user).Error
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid or expired code")
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		return httpError(err)
	}
	updates := map[string]any{
		"password_hash":  pwHash,
		"otp":            "",
		"otp_expires_at": nil,
	}
	if err := h.DB.Model(&user).Updates(updates).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset successfully"})
}

// SetBlocked handles both admin block and unblock.
func (h *AuthHandler) SetBlocked(blocked bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := parseUintParam(c, "id")
		if !ok {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
		}
		res := h.DB.Model(&models.User{}).Where("id = ?", id).Update("blocked", blocked)
		if res.Error != nil {
			return httpError(res.Error)
		}
		if res.RowsAffected == 0 {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id, "blocked": blocked})
	}
}

func (h *AuthHandler) ListUsers(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("limit"), 10)
	offset, limit := paginate(page, size)

	var total int64
	if err := h.DB.Model(&models.User{}).Count(&total).Error; err != nil {
		return httpError(err)
	}
	var users []models.User
	if err := h.DB.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"users":      users,
		"pagination": paginationMeta(page, limit, total),
	})
}
