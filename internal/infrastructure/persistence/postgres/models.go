package postgres

import "time"

// Row models mirror table shapes one to one.

type OrderModel struct {
	ID                string
	ParentID          string
	StudentID         string
	ClientOrderID     string
	Status            string
	PaymentStatus     string
	PaymentMethod     string
	TotalAmount       int64
	PaymentDueAt      *time.Time
	CheckoutSessionID *string
	GatewayPaymentID  *string
	PaymentGroupID    *string
	ScheduledFor      time.Time
	Notes             *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrderItemModel struct {
	OrderID      string
	ProductID    string
	Quantity     int
	PriceAtOrder int64
}

type TransactionModel struct {
	ID               string
	ParentID         string
	OrderID          *string
	Type             string
	Amount           int64
	Method           string
	Status           string
	GatewayPaymentID *string
	GatewayRefundID  *string
	Note             *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type WalletModel struct {
	UserID    string
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type TopupModel struct {
	ID                string
	ParentID          string
	Amount            int64
	Status            string
	CheckoutSessionID *string
	GatewayPaymentID  *string
	ExpiresAt         time.Time
	CompletedAt       *time.Time
	CreatedAt         time.Time
}

type ProductModel struct {
	ID            string
	Name          string
	Price         int64
	Available     bool
	StockQuantity int
}
