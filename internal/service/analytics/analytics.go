package analytics

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/cache"
	"github.com/craftora/marketplace/internal/logging"
	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/util"
)

const lowStockThreshold = 10

type Service struct {
	DB    *gorm.DB
	Cache *cache.Cache
	Now   func() time.Time
}

func New(db *gorm.DB, c *cache.Cache) *Service {
	return &Service{DB: db, Cache: c, Now: time.Now}
}

type Block struct {
	Total   float64 `json:"total"`
	Monthly float64 `json:"monthly"`
	Growth  float64 `json:"growth"`
}

type CountBlock struct {
	Total   int64   `json:"total"`
	Monthly int64   `json:"monthly"`
	Growth  float64 `json:"growth"`
}

type Dashboard struct {
	Revenue   Block      `json:"revenue"`
	Orders    CountBlock `json:"orders"`
	Customers CountBlock `json:"customers"`
	Products  struct {
		Total    int64 `json:"total"`
		LowStock int64 `json:"low_stock"`
	} `json:"products"`
}

// revenueStatuses are the order states that count as realized revenue.
var revenueStatuses = []string{models.OrderStatusShipped, models.OrderStatusDelivered}

func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	const key = "analytics:dashboard"

	var cached Dashboard
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err != nil {
		logging.FromContext(ctx).Warn("analytics cache read failed", "error", err)
	} else if ok {
		return &cached, nil
	}

	now := s.Now()
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	startOfLastMonth := startOfMonth.AddDate(0, -1, 0)

	d := &Dashboard{}

	if err := s.sumRevenue(ctx, nil, nil, &d.Revenue.Total); err != nil {
		return nil, err
	}
	var lastMonthRevenue float64
	if err := s.sumRevenue(ctx, &startOfMonth, nil, &d.Revenue.Monthly); err != nil {
		return nil, err
	}
	if err := s.sumRevenue(ctx, &startOfLastMonth, &startOfMonth, &lastMonthRevenue); err != nil {
		return nil, err
	}
	d.Revenue.Growth = growth(d.Revenue.Monthly, lastMonthRevenue)

	var lastMonthOrders int64
	if err := s.countSince(ctx, &models.Order{}, nil, nil, &d.Orders.Total); err != nil {
		return nil, err
	}
	if err := s.countSince(ctx, &models.Order{}, &startOfMonth, nil, &d.Orders.Monthly); err != nil {
		return nil, err
	}
	if err := s.countSince(ctx, &models.Order{}, &startOfLastMonth, &startOfMonth, &lastMonthOrders); err != nil {
		return nil, err
	}
	d.Orders.Growth = growth(float64(d.Orders.Monthly), float64(lastMonthOrders))

	customerScope := func(q *gorm.DB) *gorm.DB { return q.Where("role = ?", models.RoleUser) }
	var lastMonthCustomers int64
	if err := s.countUsers(ctx, customerScope, nil, nil, &d.Customers.Total); err != nil {
		return nil, err
	}
	if err := s.countUsers(ctx, customerScope, &startOfMonth, nil, &d.Customers.Monthly); err != nil {
		return nil, err
	}
	if err := s.countUsers(ctx, customerScope, &startOfLastMonth, &startOfMonth, &lastMonthCustomers); err != nil {
		return nil, err
	}
	d.Customers.Growth = growth(float64(d.Customers.Monthly), float64(lastMonthCustomers))

	if err := s.DB.WithContext(ctx).Model(&models.Product{}).Count(&d.Products.Total).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.Product{}).
		Where("stock <= ?", lowStockThreshold).
		Count(&d.Products.LowStock).Error; err != nil {
		return nil, err
	}

	if err := s.Cache.SetJSON(ctx, key, d); err != nil {
		logging.FromContext(ctx).Warn("analytics cache write failed", "error", err)
	}
	return d, nil
}

func (s *Service) sumRevenue(ctx context.Context, from, to *time.Time, dest *float64) error {
	q := s.DB.WithContext(ctx).Model(&models.Order{}).
		Where("status IN ?", revenueStatuses)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}
	return q.Select("COALESCE(SUM(total), 0)").Scan(dest).Error
}

func (s *Service) countSince(ctx context.Context, model any, from, to *time.Time, dest *int64) error {
	q := s.DB.WithContext(ctx).Model(model)
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}
	return q.Count(dest).Error
}

func (s *Service) countUsers(ctx context.Context, scope func(*gorm.DB) *gorm.DB, from, to *time.Time, dest *int64) error {
	q := scope(s.DB.WithContext(ctx).Model(&models.User{}))
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("created_at < ?", *to)
	}
	return q.Count(dest).Error
}

func growth(current, previous float64) float64 {
	if previous == 0 {
		if current > 0 {
			return 100
		}
		return 0
	}
	return util.Round2((current - previous) / previous * 100)
}

type ChartPoint struct {
	Name   string  `json:"name"`
	Sales  float64 `json:"sales"`
	Orders int64   `json:"orders"`
}

// SalesChart buckets revenue orders by day (week period) or month. Bucketing
// happens in Go so the query stays portable across postgres and the sqlite
// test driver.
func (s *Service) SalesChart(ctx context.Context, period string) ([]ChartPoint, error) {
	key := "analytics:sales:" + period

	var cached []ChartPoint
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}

	now := s.Now()
	var start time.Time
	var bucket func(t time.Time) string
	switch period {
	case "week":
		start = now.AddDate(0, 0, -7)
		bucket = func(t time.Time) string { return t.Format("2006-01-02") }
	case "year":
		start = now.AddDate(-1, 0, 0)
		bucket = func(t time.Time) string { return t.Format("2006-01") }
	default: // month
		start = now.AddDate(0, -1, 0)
		bucket = func(t time.Time) string { return t.Format("2006-01-02") }
	}

	var orders []models.Order
	if err := s.DB.WithContext(ctx).
		Where("status IN ? AND created_at >= ?", revenueStatuses, start).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}

	index := map[string]int{}
	var points []ChartPoint
	for _, o := range orders {
		name := bucket(o.CreatedAt)
		i, ok := index[name]
		if !ok {
			i = len(points)
			index[name] = i
			points = append(points, ChartPoint{Name: name})
		}
		points[i].Sales = util.Round2(points[i].Sales + o.Total)
		points[i].Orders++
	}

	if err := s.Cache.SetJSON(ctx, key, points); err != nil {
		logging.FromContext(ctx).Warn("analytics cache write failed", "error", err)
	}
	return points, nil
}

type TopProduct struct {
	ProductID uint    `json:"product_id"`
	Title     string  `json:"title"`
	Sold      int64   `json:"sold"`
	Revenue   float64 `json:"revenue"`
}

func (s *Service) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var top []TopProduct
	err := s.DB.WithContext(ctx).Model(&models.OrderItem{}).
		Select("order_items.product_id AS product_id, order_items.title AS title, SUM(order_items.quantity) AS sold, SUM(order_items.line_total) AS revenue").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status <> ?", models.OrderStatusCancelled).
		Group("order_items.product_id, order_items.title").
		Order("sold DESC").
		Limit(limit).
		Scan(&top).Error
	return top, err
}
