package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/service"
	"github.com/craftora/marketplace/internal/service/coupon"
	"github.com/craftora/marketplace/internal/util"
)

type Service struct {
	DB      *gorm.DB
	Coupons *coupon.Service
	Now     func() time.Time
}

func New(db *gorm.DB, coupons *coupon.Service) *Service {
	return &Service{DB: db, Coupons: coupons, Now: time.Now}
}

type ShippingAddress struct {
	FirstName     string `json:"first_name"     validate:"required"`
	LastName      string `json:"last_name"      validate:"required"`
	StreetAddress string `json:"street_address" validate:"required"`
	City          string `json:"city"           validate:"required"`
	Province      string `json:"province"       validate:"required"`
	ZipCode       string `json:"zip_code"       validate:"required"`
	Country       string `json:"country"        validate:"required"`
	Phone         string `json:"phone"          validate:"required"`
	Email         string `json:"email"          validate:"required,email"`
}

type CheckoutRequest struct {
	ShippingAddress ShippingAddress `json:"shipping_address" validate:"required"`
	PaymentMethod   string          `json:"payment_method"   validate:"required,oneof=bank cod"`
	CouponCode      string          `json:"coupon_code"`
	AdditionalInfo  string          `json:"additional_info"`
}

// Checkout snapshots the user's cart into an immutable order. Order creation,
// stock decrements, coupon application and cart clearing run in one
// transaction, so a failed stock decrement rolls everything back.
func (s *Service) Checkout(ctx context.Context, userID uint, req CheckoutRequest) (*models.Order, error) {
	now := s.Now()

	var created models.Order

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Order("created_at ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("%w: cart is empty", service.ErrValidation)
		}

		var (
			subtotal   float64
			orderItems []models.OrderItem
		)
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: product %d no longer exists", service.ErrValidation, it.ProductID)
				}
				return err
			}
			if p.Stock < it.Quantity {
				return fmt.Errorf("%w: insufficient stock for %s", service.ErrValidation, p.Title)
			}

			lineTotal := util.Round2(it.UnitPrice * float64(it.Quantity))
			orderItems = append(orderItems, models.OrderItem{
				ProductID: p.ID,
				Title:     p.Title,
				Price:     it.UnitPrice,
				Quantity:  it.Quantity,
				LineTotal: lineTotal,
			})
			subtotal += it.UnitPrice * float64(it.Quantity)
		}
		subtotal = util.Round2(subtotal)

		shipping := 0.0
		discount := 0.0
		couponCode := ""

		if req.CouponCode != "" {
			res, err := s.Coupons.WithTx(tx).Validate(ctx, req.CouponCode, subtotal, userID)
			if err != nil {
				return err
			}
			if !res.Valid {
				return fmt.Errorf("%w: coupon rejected: %s", service.ErrValidation, res.Reason)
			}
			discount = res.Discount
			couponCode = res.Coupon.Code
			if res.Coupon.Type == models.CouponFreeShipping {
				shipping = 0
			}
			if err := coupon.Apply(tx, res.Coupon.ID, userID, now); err != nil {
				return err
			}
		}

		total := util.Round2(subtotal + shipping - discount)

		created = models.Order{
			UserID:         userID,
			OrderNumber:    newOrderNumber(now),
			Status:         models.OrderStatusPending,
			PaymentMethod:  req.PaymentMethod,
			Subtotal:       subtotal,
			Shipping:       shipping,
			DiscountAmount: discount,
			CouponCode:     couponCode,
			Total:          total,
			AdditionalInfo: req.AdditionalInfo,
			FirstName:      req.ShippingAddress.FirstName,
			LastName:       req.ShippingAddress.LastName,
			StreetAddress:  req.ShippingAddress.StreetAddress,
			City:           req.ShippingAddress.City,
			Province:       req.ShippingAddress.Province,
			ZipCode:        req.ShippingAddress.ZipCode,
			Country:        req.ShippingAddress.Country,
			Phone:          req.ShippingAddress.Phone,
			Email:          strings.ToLower(req.ShippingAddress.Email),
			Items:          orderItems,
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}

		// Conditional decrement: a concurrent checkout that already took the
		// last unit makes RowsAffected 0 and the whole transaction rolls back.
		for _, oi := range created.Items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", oi.ProductID, oi.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", oi.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: insufficient stock for %s", service.ErrValidation, oi.Title)
			}
		}

		return tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
	})
	if txErr != nil {
		return nil, txErr
	}
	return &created, nil
}

// newOrderNumber is unique by the random uuid suffix; the order_number
// column additionally carries a unique index.
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := s.DB.WithContext(ctx).Preload("Items").First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order %d", service.ErrNotFound, id)
		}
		return nil, err
	}
	return &o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

func (s *Service) ListAll(ctx context.Context, page, size int) ([]models.Order, int64, error) {
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := s.DB.WithContext(ctx).Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Order("created_at DESC").Offset(offset).Limit(limit).
		Find(&orders).Error
	return orders, total, err
}

// ListByVendor returns orders that contain at least one of the vendor's
// products.
func (s *Service) ListByVendor(ctx context.Context, vendorUserID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("id IN (?)", s.DB.Model(&models.OrderItem{}).
			Select("order_items.order_id").
			Joins("JOIN products ON products.id = order_items.product_id").
			Where("products.vendor_id = ?", vendorUserID)).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, err
}

// transitions is the linear pending→processing→shipped→delivered machine;
// cancelled is reachable from every non-terminal state.
var transitions = map[string][]string{
	models.OrderStatusPending:    {models.OrderStatusProcessing, models.OrderStatusCancelled},
	models.OrderStatusProcessing: {models.OrderStatusShipped, models.OrderStatusCancelled},
	models.OrderStatusShipped:    {models.OrderStatusDelivered, models.OrderStatusCancelled},
	models.OrderStatusDelivered:  {},
	models.OrderStatusCancelled:  {},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s *Service) UpdateStatus(ctx context.Context, id uint, status string) (*models.Order, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, status) {
		return nil, fmt.Errorf("%w: cannot move order from %s to %s", service.ErrValidation, o.Status, status)
	}
	if err := s.DB.WithContext(ctx).Model(o).Update("status", status).Error; err != nil {
		return nil, err
	}
	o.Status = status
	return o, nil
}

// Track looks an order up by number and requires the shipping email to
// match; a mismatch reads as not-found so the endpoint leaks nothing.
func (s *Service) Track(ctx context.Context, orderNumber, email string) (*models.Order, error) {
	var o models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("order_number = ?", orderNumber).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: order", service.ErrNotFound)
		}
		return nil, err
	}
	if !strings.EqualFold(o.Email, email) {
		return nil, fmt.Errorf("%w: order", service.ErrNotFound)
	}
	return &o, nil
}
