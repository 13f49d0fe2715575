package models

import "time"

const (
	RoleUser   = "user"
	RoleVendor = "vendor"
	RoleAdmin  = "admin"
)

type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string     `gorm:"not null"                 json:"name"`
	Email        string     `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string     `gorm:"not null"                 json:"-"`
	Role         string     `gorm:"not null;default:user"    json:"role"`
	Blocked      bool       `gorm:"default:false"            json:"blocked"`
	Approved     bool       `gorm:"default:true"             json:"approved"`
	OTP          string     `gorm:"column:otp"               json:"-"`
	OTPExpiresAt *time.Time `gorm:"column:otp_expires_at"    json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"      json:"id"`
	Token     string    `gorm:"unique;not null" json:"token"`
	UserID    uint      `gorm:"index;not null"  json:"user_id"`
	Role      string    `gorm:"not null"        json:"role"`
	ExpiresAt int64     `gorm:"not null"        json:"expires_at"`
	Revoked   bool      `gorm:"default:false"   json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
}

type Address struct {
	ID            uint   `gorm:"primaryKey"     json:"id"`
	UserID        uint   `gorm:"index;not null" json:"user_id"`
	FirstName     string `gorm:"not null"       json:"first_name"`
	LastName      string `gorm:"not null"       json:"last_name"`
	StreetAddress string `gorm:"not null"       json:"street_address"`
	City          string `gorm:"not null"       json:"city"`
	Province      string `gorm:"not null"       json:"province"`
	ZipCode       string `gorm:"not null"       json:"zip_code"`
	Phone         string `gorm:"not null"       json:"phone"`
	IsDefault     bool   `gorm:"default:false"  json:"is_default"`
}

type Product struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	VendorID      uint      `gorm:"index;not null"           json:"vendor_id"`
	Title         string    `gorm:"not null"                 json:"title"`
	Subtitle      string    `json:"subtitle"`
	Description   string    `gorm:"not null"                 json:"description"`
	Price         float64   `gorm:"not null"                 json:"price"`
	OriginalPrice float64   `json:"original_price"`
	Category      string    `gorm:"index;not null"           json:"category"`
	Stock         uint      `gorm:"not null;default:0"       json:"stock"`
	Image         string    `json:"image"`
	IsNew         bool      `gorm:"default:false"            json:"is_new"`
	IsFeatured    bool      `gorm:"default:false"            json:"is_featured"`
	AverageRating float64   `gorm:"default:0"                json:"average_rating"`
	ReviewCount   uint      `gorm:"default:0"                json:"review_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// UnitPrice is snapshotted when the line is first added and is not
// re-validated against the live product until checkout.
type CartItem struct {
	ID        uint      `gorm:"primaryKey"                                  json:"id"`
	UserID    uint      `gorm:"index:idx_cart_user_product,unique;not null" json:"user_id"`
	ProductID uint      `gorm:"index:idx_cart_user_product,unique;not null" json:"product_id"`
	Quantity  uint      `gorm:"not null;check:quantity>0"                   json:"quantity"`
	UnitPrice float64   `gorm:"not null"                                    json:"unit_price"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	CouponPercentage   = "percentage"
	CouponFixedAmount  = "fixed_amount"
	CouponFreeShipping = "free_shipping"
)

type Coupon struct {
	ID                    uint      `gorm:"primaryKey"           json:"id"`
	Code                  string    `gorm:"uniqueIndex;not null" json:"code"`
	Name                  string    `gorm:"not null"             json:"name"`
	Description           string    `json:"description"`
	Type                  string    `gorm:"not null"             json:"type"`
	Value                 float64   `gorm:"not null"             json:"value"`
	MinimumOrderAmount    float64   `json:"minimum_order_amount"`
	MaximumDiscountAmount float64   `json:"maximum_discount_amount"`
	StartDate             time.Time `gorm:"not null"             json:"start_date"`
	EndDate               time.Time `gorm:"not null"             json:"end_date"`
	UsageLimit            uint      `gorm:"default:0"            json:"usage_limit"`
	UsedCount             uint      `gorm:"default:0"            json:"used_count"`
	UsageLimitPerUser     uint      `gorm:"default:1"            json:"usage_limit_per_user"`
	FirstTimeOnly         bool      `gorm:"default:false"        json:"first_time_only"`
	Active                bool      `gorm:"default:true"         json:"active"`
	CreatedBy             uint      `json:"created_by"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type CouponUsage struct {
	ID         uint      `gorm:"primaryKey"                                  json:"id"`
	CouponID   uint      `gorm:"index:idx_coupon_usage_user,unique;not null" json:"coupon_id"`
	UserID     uint      `gorm:"index:idx_coupon_usage_user,unique;not null" json:"user_id"`
	Count      uint      `gorm:"not null;default:0"                          json:"count"`
	LastUsedAt time.Time `json:"last_used_at"`
}

const (
	OrderStatusPending    = "pending"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

type Order struct {
	ID             uint        `gorm:"primaryKey"               json:"id"`
	UserID         uint        `gorm:"index;not null"           json:"user_id"`
	OrderNumber    string      `gorm:"uniqueIndex;not null"     json:"order_number"`
	Status         string      `gorm:"not null;default:pending" json:"status"`
	PaymentMethod  string      `gorm:"not null"                 json:"payment_method"`
	Subtotal       float64     `gorm:"not null"                 json:"subtotal"`
	Shipping       float64     `gorm:"default:0"                json:"shipping"`
	DiscountAmount float64     `gorm:"default:0"                json:"discount_amount"`
	CouponCode     string      `json:"coupon_code,omitempty"`
	Total          float64     `gorm:"not null"                 json:"total"`
	AdditionalInfo string      `json:"additional_info,omitempty"`
	FirstName      string      `gorm:"not null"                 json:"first_name"`
	LastName       string      `gorm:"not null"                 json:"last_name"`
	StreetAddress  string      `gorm:"not null"                 json:"street_address"`
	City           string      `gorm:"not null"                 json:"city"`
	Province       string      `gorm:"not null"                 json:"province"`
	ZipCode        string      `gorm:"not null"                 json:"zip_code"`
	Country        string      `gorm:"not null"                 json:"country"`
	Phone          string      `gorm:"not null"                 json:"phone"`
	Email          string      `gorm:"index;not null"           json:"email"`
	Items          []OrderItem `gorm:"foreignKey:OrderID"       json:"items"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Title and Price are copied from the product at checkout time so later
// catalog edits never change a placed order.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey"                json:"id"`
	OrderID   uint    `gorm:"index;not null"            json:"order_id"`
	ProductID uint    `gorm:"not null"                  json:"product_id"`
	Title     string  `gorm:"not null"                  json:"title"`
	Price     float64 `gorm:"not null"                  json:"price"`
	Quantity  uint    `gorm:"not null;check:quantity>0" json:"quantity"`
	LineTotal float64 `gorm:"not null"                  json:"line_total"`
}

type Review struct {
	ID           uint      `gorm:"primaryKey"                                    json:"id"`
	UserID       uint      `gorm:"index:idx_review_user_product,unique;not null" json:"user_id"`
	ProductID    uint      `gorm:"index:idx_review_user_product,unique;not null" json:"product_id"`
	Rating       uint      `gorm:"not null"                                      json:"rating"`
	Title        string    `gorm:"not null"                                      json:"title"`
	Comment      string    `gorm:"not null"                                      json:"comment"`
	Verified     bool      `gorm:"default:false"                                 json:"verified"`
	HelpfulCount uint      `gorm:"default:0"                                     json:"helpful_count"`
	Active       bool      `gorm:"default:true"                                  json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type ReviewVote struct {
	ID       uint `gorm:"primaryKey"                                 json:"id"`
	ReviewID uint `gorm:"index:idx_review_vote_user,unique;not null" json:"review_id"`
	UserID   uint `gorm:"index:idx_review_vote_user,unique;not null" json:"user_id"`
}

const (
	VendorStatusPending   = "pending"
	VendorStatusApproved  = "approved"
	VendorStatusRejected  = "rejected"
	VendorStatusSuspended = "suspended"
)

type Vendor struct {
	ID              uint       `gorm:"primaryKey"               json:"id"`
	UserID          uint       `gorm:"uniqueIndex;not null"     json:"user_id"`
	ShopName        string     `gorm:"uniqueIndex;not null"     json:"shop_name"`
	BusinessName    string     `gorm:"not null"                 json:"business_name"`
	BusinessType    string     `json:"business_type"`
	ContactPerson   string     `gorm:"not null"                 json:"contact_person"`
	PhoneNumber     string     `gorm:"not null"                 json:"phone_number"`
	Email           string     `gorm:"not null"                 json:"email"`
	Street          string     `json:"street"`
	City            string     `json:"city"`
	State           string     `json:"state"`
	ZipCode         string     `json:"zip_code"`
	Country         string     `json:"country"`
	Description     string     `json:"description"`
	Status          string     `gorm:"not null;default:pending" json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	Documents       string     `json:"documents,omitempty"`
	ApprovedBy      uint       `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const (
	ReportStatusPending     = "pending"
	ReportStatusUnderReview = "under_review"
	ReportStatusResolved    = "resolved"
	ReportStatusRejected    = "rejected"
	ReportStatusEscalated   = "escalated"
)

type Report struct {
	ID                uint       `gorm:"primaryKey"                     json:"id"`
	ReportedBy        uint       `gorm:"index;not null"                 json:"reported_by"`
	Type              string     `gorm:"not null"                       json:"type"`
	Subject           string     `gorm:"not null"                       json:"subject"`
	Description       string     `gorm:"not null"                       json:"description"`
	ReportedUserID    uint       `json:"reported_user_id,omitempty"`
	ReportedVendorID  uint       `json:"reported_vendor_id,omitempty"`
	ReportedProductID uint       `json:"reported_product_id,omitempty"`
	RelatedOrderID    uint       `json:"related_order_id,omitempty"`
	Status            string     `gorm:"index;not null;default:pending" json:"status"`
	Priority          string     `gorm:"not null;default:medium"        json:"priority"`
	AssignedTo        uint       `json:"assigned_to,omitempty"`
	AdminNotes        string     `json:"admin_notes,omitempty"`
	Resolution        string     `json:"resolution,omitempty"`
	ResolvedBy        uint       `json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type ReportComment struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	ReportID  uint      `gorm:"index;not null" json:"report_id"`
	AuthorID  uint      `gorm:"not null"       json:"author_id"`
	Message   string    `gorm:"not null"       json:"message"`
	Internal  bool      `gorm:"default:false"  json:"internal"`
	CreatedAt time.Time `json:"created_at"`
}

type WishlistItem struct {
	ID        uint      `gorm:"primaryKey"                                      json:"id"`
	UserID    uint      `gorm:"index:idx_wishlist_user_product,unique;not null" json:"user_id"`
	ProductID uint      `gorm:"index:idx_wishlist_user_product,unique;not null" json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Subscriber struct {
	ID        uint      `gorm:"primaryKey"           json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt time.Time `json:"subscribed_at"`
}

// All lists every model for AutoMigrate, in dependency order.
func All() []any {
	return []any{
		&User{}, &RefreshToken{}, &Address{},
		&Product{}, &CartItem{},
		&Coupon{}, &CouponUsage{},
		&Order{}, &OrderItem{},
		&Review{}, &ReviewVote{},
		&Vendor{},
		&Report{}, &ReportComment{},
		&WishlistItem{}, &Subscriber{},
	}
}
