package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/service"
	"github.com/craftora/marketplace/internal/util"
)

// Reason codes returned when a coupon fails validation.
const (
	ReasonNotFound      = "not_found"
	ReasonExpired       = "expired"
	ReasonLimitReached  = "usage_limit_reached"
	ReasonUserLimit     = "user_limit_reached"
	ReasonMinimumOrder  = "minimum_order_not_met"
	ReasonNotFirstOrder = "not_first_order"
)

type Result struct {
	Valid    bool           `json:"valid"`
	Discount float64        `json:"discount"`
	Reason   string         `json:"reason,omitempty"`
	Coupon   *models.Coupon `json:"coupon,omitempty"`
}

type Service struct {
	DB *gorm.DB
	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

func New(db *gorm.DB) *Service {
	return &Service{DB: db, Now: time.Now}
}

// WithTx returns a copy of the service bound to the caller's transaction.
// Validation inside a transaction must not check a second connection out of
// the pool, and must read the state the transaction sees.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{DB: tx, Now: s.Now}
}

// Validate is side-effect free: it never touches usage counters. Apply is the
// explicit second step, invoked only after an order is successfully created.
func (s *Service) Validate(ctx context.Context, code string, orderAmount float64, userID uint) (*Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: code required", service.ErrValidation)
	}

	var c models.Coupon
	err := s.DB.WithContext(ctx).
		Where("code = ? AND active = ?", code, true).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Result{Valid: false, Reason: ReasonNotFound}, nil
		}
		return nil, err
	}

	now := s.Now()
	if now.Before(c.StartDate) || now.After(c.EndDate) {
		return &Result{Valid: false, Reason: ReasonExpired}, nil
	}

	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return &Result{Valid: false, Reason: ReasonLimitReached}, nil
	}

	if c.MinimumOrderAmount > 0 && orderAmount < c.MinimumOrderAmount {
		return &Result{Valid: false, Reason: ReasonMinimumOrder}, nil
	}

	if userID != 0 {
		var usage models.CouponUsage
		err := s.DB.WithContext(ctx).
			Where("coupon_id = ? AND user_id = ?", c.ID, userID).
			First(&usage).Error
		if err == nil && usage.Count >= c.UsageLimitPerUser {
			return &Result{Valid: false, Reason: ReasonUserLimit}, nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}

		if c.FirstTimeOnly {
			var orders int64
			if err := s.DB.WithContext(ctx).Model(&models.Order{}).
				Where("user_id = ? AND status <> ?", userID, models.OrderStatusCancelled).
				Count(&orders).Error; err != nil {
				return nil, err
			}
			if orders > 0 {
				return &Result{Valid: false, Reason: ReasonNotFirstOrder}, nil
			}
		}
	}

	return &Result{Valid: true, Discount: Discount(&c, orderAmount), Coupon: &c}, nil
}

// Discount computes the discount amount for an order subtotal, rounded to 2
// decimals. Free-shipping coupons discount nothing here; checkout zeroes the
// shipping line instead.
func Discount(c *models.Coupon, orderAmount float64) float64 {
	var discount float64
	switch c.Type {
	case models.CouponPercentage:
		discount = orderAmount * c.Value / 100
		if c.MaximumDiscountAmount > 0 && discount > c.MaximumDiscountAmount {
			discount = c.MaximumDiscountAmount
		}
	case models.CouponFixedAmount:
		discount = c.Value
		if discount > orderAmount {
			discount = orderAmount
		}
	case models.CouponFreeShipping:
		discount = 0
	}
	return util.Round2(discount)
}

// Apply increments the usage counters inside the caller's transaction. The
// global counter is a conditional UPDATE so the usage limit holds under
// concurrent checkouts.
func Apply(tx *gorm.DB, couponID, userID uint, now time.Time) error {
	res := tx.Model(&models.Coupon{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: coupon usage limit exceeded", service.ErrConflict)
	}

	var usage models.CouponUsage
	err := tx.Where("coupon_id = ? AND user_id = ?", couponID, userID).First(&usage).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		usage = models.CouponUsage{CouponID: couponID, UserID: userID, Count: 1, LastUsedAt: now}
		return tx.Create(&usage).Error
	case err != nil:
		return err
	default:
		return tx.Model(&usage).Updates(map[string]any{
			"count":        gorm.Expr("count + 1"),
			"last_used_at": now,
		}).Error
	}
}

type CreateInput struct {
	Code                  string
	Name                  string
	Description           string
	Type                  string
	Value                 float64
	MinimumOrderAmount    float64
	MaximumDiscountAmount float64
	StartDate             time.Time
	EndDate               time.Time
	UsageLimit            uint
	UsageLimitPerUser     uint
	FirstTimeOnly         bool
	Active                bool
	CreatedBy             uint
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	if code == "" {
		return nil, fmt.Errorf("%w: code required", service.ErrValidation)
	}
	switch in.Type {
	case models.CouponPercentage, models.CouponFixedAmount, models.CouponFreeShipping:
	default:
		return nil, fmt.Errorf("%w: unknown coupon type %q", service.ErrValidation, in.Type)
	}
	if in.Type == models.CouponPercentage && in.Value > 100 {
		return nil, fmt.Errorf("%w: percentage value cannot exceed 100", service.ErrValidation)
	}
	if in.Value < 0 {
		return nil, fmt.Errorf("%w: value must be >= 0", service.ErrValidation)
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, fmt.Errorf("%w: end date must be after start date", service.ErrValidation)
	}

	var existing models.Coupon
	err := s.DB.WithContext(ctx).Where("code = ?", code).First(&existing).Error
	if err == nil {
		return nil, fmt.Errorf("%w: coupon code already exists", service.ErrConflict)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	limitPerUser := in.UsageLimitPerUser
	if limitPerUser == 0 {
		limitPerUser = 1
	}

	c := models.Coupon{
		Code:                  code,
		Name:                  in.Name,
		Description:           in.Description,
		Type:                  in.Type,
		Value:                 in.Value,
		MinimumOrderAmount:    in.MinimumOrderAmount,
		MaximumDiscountAmount: in.MaximumDiscountAmount,
		StartDate:             in.StartDate,
		EndDate:               in.EndDate,
		UsageLimit:            in.UsageLimit,
		UsageLimitPerUser:     limitPerUser,
		FirstTimeOnly:         in.FirstTimeOnly,
		Active:                in.Active,
		CreatedBy:             in.CreatedBy,
	}
	if err := s.DB.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Coupon, error) {
	var c models.Coupon
	if err := s.DB.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: coupon %d", service.ErrNotFound, id)
		}
		return nil, err
	}
	return &c, nil
}

func (s *Service) List(ctx context.Context, page, size int) ([]models.Coupon, int64, error) {
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Coupon{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var coupons []models.Coupon
	err := s.DB.WithContext(ctx).
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&coupons).Error
	return coupons, total, err
}

// ListActive returns coupons currently usable: active, inside their window,
// with global headroom left.
func (s *Service) ListActive(ctx context.Context) ([]models.Coupon, error) {
	now := s.Now()
	var coupons []models.Coupon
	err := s.DB.WithContext(ctx).
		Where("active = ? AND start_date <= ? AND end_date >= ?", true, now, now).
		Where("usage_limit = 0 OR used_count < usage_limit").
		Find(&coupons).Error
	return coupons, err
}

// Update applies a whitelisted column map, re-checking the constraints Create
// enforces against the merged result.
func (s *Service) Update(ctx context.Context, id uint, updates map[string]any) (*models.Coupon, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkUpdates(c, updates); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(c).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func checkUpdates(c *models.Coupon, updates map[string]any) error {
	// 0 per-user uses would reject every holder; Create defaults this to 1.
	if v, ok := numField(updates, "usage_limit_per_user"); ok && v < 1 {
		return fmt.Errorf("%w: usage_limit_per_user must be at least 1", service.ErrValidation)
	}
	if v, ok := numField(updates, "value"); ok {
		if v < 0 {
			return fmt.Errorf("%w: value must be >= 0", service.ErrValidation)
		}
		if c.Type == models.CouponPercentage && v > 100 {
			return fmt.Errorf("%w: percentage value cannot exceed 100", service.ErrValidation)
		}
	}
	start, end := c.StartDate, c.EndDate
	if t, ok := timeField(updates, "start_date"); ok {
		start = t
	}
	if t, ok := timeField(updates, "end_date"); ok {
		end = t
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end date must be after start date", service.ErrValidation)
	}
	return nil
}

func numField(updates map[string]any, key string) (float64, bool) {
	switch n := updates[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case uint:
		return float64(n), true
	}
	return 0, false
}

func timeField(updates map[string]any, key string) (time.Time, bool) {
	switch t := updates[key].(type) {
	case time.Time:
		return t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func (s *Service) Delete(ctx context.Context, id uint) error {
	res := s.DB.WithContext(ctx).Delete(&models.Coupon{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: coupon %d", service.ErrNotFound, id)
	}
	return nil
}
