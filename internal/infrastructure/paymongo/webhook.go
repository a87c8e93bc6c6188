package paymongo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Webhook event types this service consumes.
const (
	EventCheckoutPaid    = "checkout_session.payment.paid"
	EventPaymentPaid     = "payment.paid"
	EventPaymentFailed   = "payment.failed"
	EventPaymentRefunded = "payment.refunded"
)

// SignatureTolerance bounds how old a webhook timestamp may be before the
// delivery is treated as a replay.
const SignatureTolerance = 5 * time.Minute

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// Event is the normalized view of a webhook delivery. Exactly one of the
// resource identifiers may be empty depending on the event type; resolution
// falls back through metadata, a session fetch, then a store lookup.
type Event struct {
	ID                string
	Type              string
	ResourceID        string
	ResourceType      string
	CheckoutSessionID string
	PaymentID         string
	Metadata          map[string]string
}

type webhookEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		} `json:"attributes"`
	} `json:"data"`
}

type webhookResource struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Attributes struct {
		Status    string                      `json:"status"`
		Metadata  map[string]string           `json:"metadata"`
		Payments  []apiResource[paymentAttrs] `json:"payments"`
		PaymentID string                      `json:"payment_id"`
	} `json:"attributes"`
}

// VerifySignature checks the timestamp-bound HMAC carried in the
// Paymongo-Signature header: "t=<unix>,te=<test-sig>,li=<live-sig>". The
// signed payload is "<t>.<body>" and the comparison is constant-time.
func VerifySignature(payload []byte, header, secret string, liveMode bool, now time.Time) error {
	var ts, testSig, liveSig string
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "te":
			testSig = v
		case "li":
			liveSig = v
		}
	}
	if ts == "" {
		return ErrInvalidSignature
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	if now.Sub(time.Unix(unix, 0)) > SignatureTolerance {
		return ErrStaleTimestamp
	}

	expected := liveSig
	if !liveMode {
		expected = testSig
	}
	if expected == "" {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(expected)) {
		return ErrInvalidSignature
	}
	return nil
}

// ParseEvent normalizes a webhook delivery body into an Event.
func ParseEvent(payload []byte) (*Event, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("error decoding webhook envelope: %w", err)
	}
	if envelope.Data.Attributes.Type == "" {
		return nil, errors.New("webhook envelope has no event type")
	}

	var resource webhookResource
	if len(envelope.Data.Attributes.Data) > 0 {
		if err := json.Unmarshal(envelope.Data.Attributes.Data, &resource); err != nil {
			return nil, fmt.Errorf("error decoding webhook resource: %w", err)
		}
	}

	event := &Event{
		ID:           envelope.Data.ID,
		Type:         envelope.Data.Attributes.Type,
		ResourceID:   resource.ID,
		ResourceType: resource.Type,
		Metadata:     resource.Attributes.Metadata,
	}

	switch resource.Type {
	case "checkout_session":
		event.CheckoutSessionID = resource.ID
		for _, p := range resource.Attributes.Payments {
			if p.Attributes.Status == "paid" {
				event.PaymentID = p.ID
				if event.Metadata == nil {
					event.Metadata = p.Attributes.Metadata
				}
				break
			}
		}
	case "payment":
		event.PaymentID = resource.ID
	}

	return event, nil
}
