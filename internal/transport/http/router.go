// Package transport wires handlers, middleware and routes onto an echo
// instance.
package transport

import (
	"net/http"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/craftora/marketplace/internal/assistant"
	"github.com/craftora/marketplace/internal/cache"
	"github.com/craftora/marketplace/internal/events"
	"github.com/craftora/marketplace/internal/handlers"
	"github.com/craftora/marketplace/internal/mail"
	authmw "github.com/craftora/marketplace/internal/middleware/auth"
	"github.com/craftora/marketplace/internal/models"
	"github.com/craftora/marketplace/internal/payments"
	"github.com/craftora/marketplace/internal/service/analytics"
	"github.com/craftora/marketplace/internal/service/cart"
	"github.com/craftora/marketplace/internal/service/coupon"
	"github.com/craftora/marketplace/internal/service/order"
	"github.com/craftora/marketplace/internal/service/token"
)

type Deps struct {
	DB        *gorm.DB
	Tokens    *token.Service
	Producer  events.Publisher
	Mailer    *mail.Mailer
	Cache     *cache.Cache
	ES        *elasticsearch.Client
	ESIndex   string
	Assistant *assistant.Client
	Payments  payments.Provider
	UploadDir string
}

// Register mounts every route under /api/v1 plus the health endpoints.
func Register(e *echo.Echo, d Deps) {
	coupons := coupon.New(d.DB)
	carts := cart.New(d.DB)
	orders := order.New(d.DB, coupons)
	stats := analytics.New(d.DB, d.Cache)

	auth := &handlers.AuthHandler{DB: d.DB, Tokens: d.Tokens, Producer: d.Producer, Mailer: d.Mailer}
	products := &handlers.ProductHandler{DB: d.DB, Producer: d.Producer, UploadDir: d.UploadDir}
	cartH := &handlers.CartHandler{Carts: carts, Producer: d.Producer}
	orderH := &handlers.OrderHandler{Orders: orders, Producer: d.Producer, Mailer: d.Mailer}
	couponH := &handlers.CouponHandler{Coupons: coupons}
	vendors := &handlers.VendorHandler{DB: d.DB, Producer: d.Producer, Mailer: d.Mailer, UploadDir: d.UploadDir}
	reviews := &handlers.ReviewHandler{DB: d.DB}
	reports := &handlers.ReportHandler{DB: d.DB, Mailer: d.Mailer}
	wishlist := &handlers.WishlistHandler{DB: d.DB}
	newsletter := &handlers.NewsletterHandler{DB: d.DB, Mailer: d.Mailer}
	paymentsH := &handlers.PaymentHandler{Orders: orders, Provider: d.Payments}
	analyticsH := &handlers.AnalyticsHandler{Analytics: stats}
	searchH := &handlers.SearchHandler{ES: d.ES, Index: d.ESIndex}
	assistantH := &handlers.AssistantHandler{DB: d.DB, Assistant: d.Assistant}

	mw := &authmw.Middleware{Tokens: d.Tokens}

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/readyz", func(c echo.Context) error {
		sqlDB, err := d.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request().Context())
		}
		if err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "degraded"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.Static("/uploads", d.UploadDir)

	api := e.Group("/api/v1")

	// Public routes.
	api.POST("/auth/register", auth.Register)
	api.POST("/auth/login", auth.Login)
	api.POST("/auth/refresh", auth.Refresh)
	api.POST("/auth/logout", auth.Logout)
	api.POST("/auth/forgot-password", auth.ForgotPassword)
	api.POST("/auth/reset-password", auth.ResetPassword)

	api.GET("/products", products.List)
	api.GET("/products/featured", products.Featured)
	api.GET("/products/new", products.NewArrivals)
	api.GET("/products/categories", products.Categories)
	api.GET("/products/:id", products.Get)
	api.GET("/products/:id/recommendations", products.Recommendations)
	api.GET("/products/:id/reviews", reviews.ListForProduct)

	api.GET("/search", searchH.Search)
	api.GET("/orders/track", orderH.Track)
	api.GET("/coupons/active", couponH.ListActive)
	api.POST("/newsletter/subscribe", newsletter.Subscribe)
	api.POST("/newsletter/unsubscribe", newsletter.Unsubscribe)
	api.POST("/payments/webhook", paymentsH.Webhook)
	api.POST("/assistant/chat", assistantH.Chat)

	// Authenticated routes.
	user := api.Group("", mw.RequireAuth)
	user.GET("/auth/profile", auth.Profile)
	user.PUT("/auth/profile", auth.UpdateProfile)
	user.GET("/auth/addresses", auth.ListAddresses)
	user.POST("/auth/addresses", auth.AddAddress)
	user.DELETE("/auth/addresses/:id", auth.DeleteAddress)

	user.GET("/cart", cartH.Get)
	user.POST("/cart", cartH.Add)
	user.PUT("/cart/:productID", cartH.UpdateItem)
	user.DELETE("/cart/:productID", cartH.Remove)
	user.DELETE("/cart", cartH.Clear)

	user.POST("/orders", orderH.Checkout)
	user.GET("/orders", orderH.ListMine)
	user.GET("/orders/:id", orderH.Get)
	user.POST("/orders/:id/cancel", orderH.Cancel)

	user.POST("/coupons/validate", couponH.Validate)

	user.POST("/reviews", reviews.Create)
	user.GET("/reviews/mine", reviews.ListMine)
	user.POST("/reviews/:id/helpful", reviews.ToggleHelpful)
	user.DELETE("/reviews/:id", reviews.Delete)

	user.GET("/wishlist", wishlist.List)
	user.POST("/wishlist", wishlist.Toggle)
	user.GET("/wishlist/:productID", wishlist.Contains)
	user.DELETE("/wishlist/:productID", wishlist.Remove)

	user.POST("/reports", reports.Create)
	user.GET("/reports/mine", reports.ListMine)
	user.GET("/reports/:id", reports.Get)
	user.POST("/reports/:id/comments", reports.Comment)

	user.POST("/vendors/apply", vendors.Apply)
	user.GET("/vendors/me", vendors.MyApplication)
	user.PUT("/vendors/me", vendors.UpdateMyApplication)
	user.POST("/vendors/me/documents", vendors.UploadDocuments)

	user.POST("/payments/intent", paymentsH.CreateIntent)
	user.POST("/payments/confirm", paymentsH.Confirm)

	// Vendor routes (vendor or admin).
	vendor := api.Group("", mw.RequireAuth, mw.RequireVendor)
	vendor.POST("/products", products.Create)
	vendor.PUT("/products/:id", products.Update)
	vendor.DELETE("/products/:id", products.Delete)
	vendor.POST("/products/:id/image", products.UploadImage)
	vendor.GET("/vendor/orders", orderH.ListVendor)

	// Admin routes.
	admin := api.Group("/admin", mw.RequireAuth, mw.RequireAdmin)
	admin.GET("/users", auth.ListUsers)
	admin.POST("/users/:id/block", auth.SetBlocked(true))
	admin.POST("/users/:id/unblock", auth.SetBlocked(false))

	admin.GET("/orders", orderH.ListAll)
	admin.PUT("/orders/:id/status", orderH.UpdateStatus)

	admin.POST("/coupons", couponH.Create)
	admin.GET("/coupons", couponH.List)
	admin.GET("/coupons/:id", couponH.Get)
	admin.PUT("/coupons/:id", couponH.Update)
	admin.DELETE("/coupons/:id", couponH.Delete)

	admin.GET("/vendors", vendors.List)
	admin.GET("/vendors/:id", vendors.Get)
	admin.POST("/vendors/:id/approve", vendors.Decide("approve"))
	admin.POST("/vendors/:id/reject", vendors.Decide("reject"))
	admin.POST("/vendors/:id/suspend", vendors.Decide("suspend"))
	admin.POST("/vendors/:id/unsuspend", vendors.Decide("unsuspend"))

	admin.GET("/reports", reports.List)
	admin.POST("/reports/:id/assign", reports.Assign)
	admin.POST("/reports/:id/resolve", reports.Resolve(models.ReportStatusResolved))
	admin.POST("/reports/:id/reject", reports.Resolve(models.ReportStatusRejected))
	admin.POST("/reports/:id/escalate", reports.Escalate)

	admin.POST("/payments/refund", paymentsH.Refund)

	admin.GET("/newsletter/subscribers", newsletter.ListSubscribers)
	admin.POST("/newsletter/send", newsletter.SendCampaign)

	admin.GET("/analytics/dashboard", analyticsH.Dashboard)
	admin.GET("/analytics/sales-chart", analyticsH.SalesChart)
	admin.GET("/analytics/top-products", analyticsH.TopProducts)
}
