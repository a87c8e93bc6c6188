package application

import "time"

// GATEWAY DTOs (port-level, provider-agnostic)

// LineItem is one priced line of a checkout session. Amount is in centavos.
type LineItem struct {
	Name     string
	Amount   int64
	Currency string
	Quantity int
}

// CheckoutSessionRequest describes the hosted checkout to create. Metadata
// is echoed back in webhook events and is the primary way an event is
// resolved to a local record.
type CheckoutSessionRequest struct {
	LineItems          []LineItem
	PaymentMethodTypes []string
	ReferenceNumber    string
	Description        string
	Metadata           map[string]string
	SuccessURL         string
	CancelURL          string
}

// CheckoutSession is the gateway's view of a hosted checkout.
type CheckoutSession struct {
	ID          string
	CheckoutURL string
	Status      string
	Paid        bool
	PaymentID   string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// GatewayRefundRequest asks the gateway to return a captured payment.
type GatewayRefundRequest struct {
	PaymentID string
	Amount    int64
	Reason    string
}

// GatewayRefund is the gateway's record of an issued refund.
type GatewayRefund struct {
	ID        string
	PaymentID string
	Amount    int64
	Status    string
	CreatedAt time.Time
}
