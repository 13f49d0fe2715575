package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/cache"
	"github.com/craftora/marketplace/internal/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, gdb.AutoMigrate(models.All()...))

	s := New(gdb, cache.New(""))
	s.Now = func() time.Time { return testNow }
	return s
}

func seedOrder(t *testing.T, db *gorm.DB, status string, total float64, createdAt time.Time, items ...models.OrderItem) {
	t.Helper()
	o := models.Order{
		UserID: 1, OrderNumber: "ORD-TEST-" + uuid.NewString()[:8],
		Status: status, PaymentMethod: "cod", Subtotal: total, Total: total,
		FirstName: "a", LastName: "b", StreetAddress: "c", City: "d",
		Province: "e", ZipCode: "f", Country: "g", Phone: "h", Email: "a@x.com",
		Items: items,
	}
	require.NoError(t, db.Create(&o).Error)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", o.ID).
		UpdateColumn("created_at", createdAt).Error)
}

func TestDashboardRevenueAndGrowth(t *testing.T) {
	s := newTestService(t)

	thisMonth := time.Date(2025, 6, 5, 10, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2025, 5, 5, 10, 0, 0, 0, time.UTC)

	seedOrder(t, s.DB, models.OrderStatusDelivered, 100, thisMonth)
	seedOrder(t, s.DB, models.OrderStatusShipped, 50, thisMonth)
	seedOrder(t, s.DB, models.OrderStatusDelivered, 100, lastMonth)
	// Pending and cancelled orders never count as revenue.
	seedOrder(t, s.DB, models.OrderStatusPending, 999, thisMonth)
	seedOrder(t, s.DB, models.OrderStatusCancelled, 999, thisMonth)

	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)

	require.Equal(t, 250.0, d.Revenue.Total)
	require.Equal(t, 150.0, d.Revenue.Monthly)
	require.Equal(t, 50.0, d.Revenue.Growth)
	require.Equal(t, int64(5), d.Orders.Total)
}

func TestDashboardCountsProductsAndLowStock(t *testing.T) {
	s := newTestService(t)

	for _, stock := range []uint{0, 5, 10, 11, 100} {
		require.NoError(t, s.DB.Create(&models.Product{
			VendorID: 1, Title: "p", Description: "d", Price: 1, Category: "c", Stock: stock,
		}).Error)
	}

	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(5), d.Products.Total)
	require.Equal(t, int64(3), d.Products.LowStock)
}

func TestGrowthEdgeCases(t *testing.T) {
	require.Equal(t, 100.0, growth(10, 0))
	require.Equal(t, 0.0, growth(0, 0))
	require.Equal(t, -50.0, growth(50, 100))
	require.Equal(t, 25.0, growth(125, 100))
}

func TestSalesChartBucketsByDay(t *testing.T) {
	s := newTestService(t)

	day1 := time.Date(2025, 6, 12, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 6, 13, 9, 0, 0, 0, time.UTC)
	seedOrder(t, s.DB, models.OrderStatusDelivered, 30, day1)
	seedOrder(t, s.DB, models.OrderStatusDelivered, 20, day1)
	seedOrder(t, s.DB, models.OrderStatusShipped, 10, day2)

	points, err := s.SalesChart(context.Background(), "week")
	require.NoError(t, err)
	require.Len(t, points, 2)
	require.Equal(t, "2025-06-12", points[0].Name)
	require.Equal(t, 50.0, points[0].Sales)
	require.Equal(t, int64(2), points[0].Orders)
	require.Equal(t, 10.0, points[1].Sales)
}

func TestTopProductsExcludesCancelled(t *testing.T) {
	s := newTestService(t)

	when := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	seedOrder(t, s.DB, models.OrderStatusDelivered, 40, when,
		models.OrderItem{ProductID: 1, Title: "Mug", Price: 10, Quantity: 3, LineTotal: 30},
		models.OrderItem{ProductID: 2, Title: "Poster", Price: 5, Quantity: 2, LineTotal: 10},
	)
	seedOrder(t, s.DB, models.OrderStatusCancelled, 100, when,
		models.OrderItem{ProductID: 2, Title: "Poster", Price: 5, Quantity: 20, LineTotal: 100},
	)

	top, err := s.TopProducts(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "Mug", top[0].Title)
	require.Equal(t, int64(3), top[0].Sold)
	require.Equal(t, 30.0, top[0].Revenue)
	require.Equal(t, int64(2), top[1].Sold)
}
