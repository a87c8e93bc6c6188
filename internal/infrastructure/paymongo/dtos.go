package paymongo

import "time"

// Wire types for the PayMongo v1 API. Every resource travels inside a
// {"data": {...}} envelope with its fields under "attributes".

type apiRequest[T any] struct {
	Data apiRequestData[T] `json:"data"`
}

type apiRequestData[T any] struct {
	Attributes T `json:"attributes"`
}

type apiResponse[T any] struct {
	Data apiResource[T] `json:"data"`
}

type apiResource[T any] struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes T      `json:"attributes"`
}

type lineItem struct {
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Quantity int    `json:"quantity"`
}

type checkoutSessionCreateAttrs struct {
	LineItems          []lineItem        `json:"line_items"`
	PaymentMethodTypes []string          `json:"payment_method_types"`
	ReferenceNumber    string            `json:"reference_number,omitempty"`
	Description        string            `json:"description,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	SuccessURL         string            `json:"success_url,omitempty"`
	CancelURL          string            `json:"cancel_url,omitempty"`
	SendEmailReceipt   bool              `json:"send_email_receipt"`
}

type checkoutSessionAttrs struct {
	CheckoutURL     string                        `json:"checkout_url"`
	Status          string                        `json:"status"`
	ReferenceNumber string                        `json:"reference_number"`
	Metadata        map[string]string             `json:"metadata"`
	Payments        []apiResource[paymentAttrs]   `json:"payments"`
	LineItems       []lineItem                    `json:"line_items"`
	CreatedAt       int64                         `json:"created_at"`
}

type paymentAttrs struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type refundCreateAttrs struct {
	Amount    int64  `json:"amount"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

type refundAttrs struct {
	Amount    int64  `json:"amount"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	CreatedAt int64  `json:"created_at"`
}

func unixTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0)
}
