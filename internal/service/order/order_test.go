package order

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/service"
	"github.com/craftora/marketplace/internal/service/coupon"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	db := openTestDB(t)
	coupons := coupon.New(db)
	coupons.Now = func() time.Time { return testNow }
	s := New(db, coupons)
	s.Now = func() time.Time { return testNow }
	return s
}

func seedProduct(t *testing.T, db *gorm.DB, title string, price float64, stock uint) models.Product {
	t.Helper()
	p := models.Product{
		VendorID: 1, Title: title, Description: "d", Price: price,
		Category: "misc", Stock: stock,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func addToCart(t *testing.T, db *gorm.DB, userID uint, p models.Product, qty uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.CartItem{
		UserID: userID, ProductID: p.ID, Quantity: qty, UnitPrice: p.Price,
	}).Error)
}

func testAddress() ShippingAddress {
	return ShippingAddress{
		FirstName: "Ada", LastName: "Lovelace", StreetAddress: "1 Main St",
		City: "London", Province: "LDN", ZipCode: "E1", Country: "UK",
		Phone: "0123", Email: "Ada@Example.com",
	}
}

func TestCheckoutSnapshotsCartIntoOrder(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p1 := seedProduct(t, s.DB, "Mug", 10.00, 5)
	p2 := seedProduct(t, s.DB, "Poster", 5.00, 10)
	addToCart(t, s.DB, userID, p1, 2)
	addToCart(t, s.DB, userID, p2, 3)

	o, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "cod",
	})
	require.NoError(t, err)

	require.Equal(t, 35.00, o.Subtotal)
	require.Equal(t, 35.00, o.Total)
	require.Equal(t, models.OrderStatusPending, o.Status)
	require.Len(t, o.Items, 2)
	require.Equal(t, "Mug", o.Items[0].Title)
	require.Equal(t, 20.00, o.Items[0].LineTotal)
	require.True(t, strings.HasPrefix(o.OrderNumber, "ORD-"))
	require.Equal(t, "ada@example.com", o.Email)

	// Cart is emptied and stock decremented.
	var cartCount int64
	require.NoError(t, s.DB.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error)
	require.Zero(t, cartCount)

	var reloaded models.Product
	require.NoError(t, s.DB.First(&reloaded, p1.ID).Error)
	require.Equal(t, uint(3), reloaded.Stock)
}

func TestCheckoutEmptyCart(t *testing.T) {
	s := newTestService(t)

	_, err := s.Checkout(context.Background(), 1, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "cod",
	})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestCheckoutInsufficientStockRollsBack(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p1 := seedProduct(t, s.DB, "Mug", 10.00, 5)
	p2 := seedProduct(t, s.DB, "Poster", 5.00, 1)
	addToCart(t, s.DB, userID, p1, 2)
	addToCart(t, s.DB, userID, p2, 3)

	_, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "cod",
	})
	require.ErrorIs(t, err, service.ErrValidation)

	// Nothing was committed.
	var orders int64
	require.NoError(t, s.DB.Model(&models.Order{}).Count(&orders).Error)
	require.Zero(t, orders)

	var reloaded models.Product
	require.NoError(t, s.DB.First(&reloaded, p1.ID).Error)
	require.Equal(t, uint(5), reloaded.Stock)

	var cartCount int64
	require.NoError(t, s.DB.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error)
	require.Equal(t, int64(2), cartCount)
}

func TestCheckoutAppliesCoupon(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p := seedProduct(t, s.DB, "Lamp", 100.00, 5)
	addToCart(t, s.DB, userID, p, 2)

	cp := models.Coupon{
		Code: "TEN", Name: "Ten percent", Type: models.CouponPercentage, Value: 10,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour),
		UsageLimitPerUser: 1, Active: true,
	}
	require.NoError(t, s.DB.Create(&cp).Error)

	o, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "bank",
		CouponCode:      "ten",
	})
	require.NoError(t, err)

	require.Equal(t, 200.00, o.Subtotal)
	require.Equal(t, 20.00, o.DiscountAmount)
	require.Equal(t, 180.00, o.Total)
	require.Equal(t, "TEN", o.CouponCode)

	var reloaded models.Coupon
	require.NoError(t, s.DB.First(&reloaded, cp.ID).Error)
	require.Equal(t, uint(1), reloaded.UsedCount)
}

// The pool is capped at one connection, so every coupon check during checkout
// has to run on the transaction's connection or the test blocks.
func TestCheckoutFirstOrderCouponChecksInsideTransaction(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p := seedProduct(t, s.DB, "Lamp", 100.00, 5)
	addToCart(t, s.DB, userID, p, 1)

	cp := models.Coupon{
		Code: "WELCOME", Name: "First order", Type: models.CouponFixedAmount, Value: 10,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour),
		UsageLimitPerUser: 2, FirstTimeOnly: true, Active: true,
	}
	require.NoError(t, s.DB.Create(&cp).Error)

	o, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "bank",
		CouponCode:      "WELCOME",
	})
	require.NoError(t, err)
	require.Equal(t, 90.00, o.Total)

	// The first order now exists, so the coupon no longer applies.
	addToCart(t, s.DB, userID, p, 1)
	_, err = s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "bank",
		CouponCode:      "WELCOME",
	})
	require.ErrorIs(t, err, service.ErrValidation)
	require.Contains(t, err.Error(), coupon.ReasonNotFirstOrder)
}

func TestCheckoutFreeShippingCoupon(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p := seedProduct(t, s.DB, "Lamp", 100.00, 5)
	addToCart(t, s.DB, userID, p, 2)

	cp := models.Coupon{
		Code: "SHIPFREE", Name: "Free shipping", Type: models.CouponFreeShipping, Value: 0,
		StartDate: testNow.Add(-time.Hour), EndDate: testNow.Add(time.Hour),
		UsageLimitPerUser: 1, Active: true,
	}
	require.NoError(t, s.DB.Create(&cp).Error)

	o, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "bank",
		CouponCode:      "SHIPFREE",
	})
	require.NoError(t, err)

	// Shipping is zeroed, nothing is discounted off the subtotal.
	require.Equal(t, 200.00, o.Subtotal)
	require.Zero(t, o.Shipping)
	require.Zero(t, o.DiscountAmount)
	require.Equal(t, 200.00, o.Total)
	require.Equal(t, "SHIPFREE", o.CouponCode)

	var reloaded models.Coupon
	require.NoError(t, s.DB.First(&reloaded, cp.ID).Error)
	require.Equal(t, uint(1), reloaded.UsedCount)
}

func TestCheckoutRejectsInvalidCoupon(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p := seedProduct(t, s.DB, "Lamp", 100.00, 5)
	addToCart(t, s.DB, userID, p, 1)

	_, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(),
		PaymentMethod:   "bank",
		CouponCode:      "MISSING",
	})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestOrderNumbersAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		n := newOrderNumber(testNow)
		require.False(t, seen[n])
		seen[n] = true
	}
}

func TestStatusTransitions(t *testing.T) {
	require.True(t, CanTransition(models.OrderStatusPending, models.OrderStatusProcessing))
	require.True(t, CanTransition(models.OrderStatusProcessing, models.OrderStatusShipped))
	require.True(t, CanTransition(models.OrderStatusShipped, models.OrderStatusDelivered))
	require.True(t, CanTransition(models.OrderStatusPending, models.OrderStatusCancelled))

	require.False(t, CanTransition(models.OrderStatusPending, models.OrderStatusShipped))
	require.False(t, CanTransition(models.OrderStatusDelivered, models.OrderStatusCancelled))
	require.False(t, CanTransition(models.OrderStatusCancelled, models.OrderStatusPending))
}

func TestUpdateStatusRejectsIllegalTransition(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p := seedProduct(t, s.DB, "Mug", 10.00, 5)
	addToCart(t, s.DB, userID, p, 1)
	o, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(), PaymentMethod: "cod",
	})
	require.NoError(t, err)

	_, err = s.UpdateStatus(context.Background(), o.ID, models.OrderStatusDelivered)
	require.ErrorIs(t, err, service.ErrValidation)

	updated, err := s.UpdateStatus(context.Background(), o.ID, models.OrderStatusProcessing)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusProcessing, updated.Status)
}

func TestListByVendorFiltersToOwnProducts(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	mine := models.Product{VendorID: 10, Title: "Chair", Description: "d", Price: 40.00, Category: "misc", Stock: 10}
	theirs := models.Product{VendorID: 20, Title: "Desk", Description: "d", Price: 90.00, Category: "misc", Stock: 10}
	require.NoError(t, s.DB.Create(&mine).Error)
	require.NoError(t, s.DB.Create(&theirs).Error)

	checkout := func(products ...models.Product) *models.Order {
		for _, p := range products {
			addToCart(t, s.DB, userID, p, 1)
		}
		o, err := s.Checkout(context.Background(), userID, CheckoutRequest{
			ShippingAddress: testAddress(), PaymentMethod: "cod",
		})
		require.NoError(t, err)
		return o
	}

	onlyMine := checkout(mine)
	onlyTheirs := checkout(theirs)
	mixed := checkout(mine, theirs)

	orders, err := s.ListByVendor(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	ids := map[uint]bool{}
	for _, o := range orders {
		ids[o.ID] = true
	}
	require.True(t, ids[onlyMine.ID])
	require.True(t, ids[mixed.ID])
	require.False(t, ids[onlyTheirs.ID])
}

func TestTrackMatchesEmailCaseInsensitively(t *testing.T) {
	s := newTestService(t)
	const userID = 1

	p := seedProduct(t, s.DB, "Mug", 10.00, 5)
	addToCart(t, s.DB, userID, p, 1)
	o, err := s.Checkout(context.Background(), userID, CheckoutRequest{
		ShippingAddress: testAddress(), PaymentMethod: "cod",
	})
	require.NoError(t, err)

	got, err := s.Track(context.Background(), o.OrderNumber, "ADA@example.com")
	require.NoError(t, err)
	require.Equal(t, o.ID, got.ID)

	_, err = s.Track(context.Background(), o.OrderNumber, "other@example.com")
	require.ErrorIs(t, err, service.ErrNotFound)
}
