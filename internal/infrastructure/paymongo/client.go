package paymongo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/config"
)

// Client talks to the PayMongo HTTP API. It holds no local state beyond the
// connection pool.
type Client struct {
	baseURL    string
	secretKey  string
	successURL string
	cancelURL  string
	httpClient *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
		httpClient: &http.Client{
			Timeout: cfg.ConnTimeout,
		},
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req application.CheckoutSessionRequest) (*application.CheckoutSession, error) {
	url := fmt.Sprintf("%s/v1/checkout_sessions", c.baseURL)

	attrs := checkoutSessionCreateAttrs{
		PaymentMethodTypes: req.PaymentMethodTypes,
		ReferenceNumber:    req.ReferenceNumber,
		Description:        req.Description,
		Metadata:           req.Metadata,
		SuccessURL:         req.SuccessURL,
		CancelURL:          req.CancelURL,
	}
	if attrs.SuccessURL == "" {
		attrs.SuccessURL = c.successURL
	}
	if attrs.CancelURL == "" {
		attrs.CancelURL = c.cancelURL
	}
	for _, li := range req.LineItems {
		attrs.LineItems = append(attrs.LineItems, lineItem{
			Name:     li.Name,
			Amount:   li.Amount,
			Currency: li.Currency,
			Quantity: li.Quantity,
		})
	}

	body := apiRequest[checkoutSessionCreateAttrs]{Data: apiRequestData[checkoutSessionCreateAttrs]{Attributes: attrs}}
	resp, err := sendRequest[apiRequest[checkoutSessionCreateAttrs], apiResponse[checkoutSessionAttrs]](c, ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	return toCheckoutSession(resp.Data), nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*application.CheckoutSession, error) {
	url := fmt.Sprintf("%s/v1/checkout_sessions/%s", c.baseURL, sessionID)
	resp, err := sendRequest[any, apiResponse[checkoutSessionAttrs]](c, ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return toCheckoutSession(resp.Data), nil
}

func (c *Client) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	url := fmt.Sprintf("%s/v1/checkout_sessions/%s/expire", c.baseURL, sessionID)
	_, err := sendRequest[any, apiResponse[checkoutSessionAttrs]](c, ctx, http.MethodPost, url, nil)
	return err
}

func (c *Client) CreateRefund(ctx context.Context, req application.GatewayRefundRequest) (*application.GatewayRefund, error) {
	url := fmt.Sprintf("%s/v1/refunds", c.baseURL)

	body := apiRequest[refundCreateAttrs]{Data: apiRequestData[refundCreateAttrs]{Attributes: refundCreateAttrs{
		Amount:    req.Amount,
		PaymentID: req.PaymentID,
		Reason:    req.Reason,
	}}}
	resp, err := sendRequest[apiRequest[refundCreateAttrs], apiResponse[refundAttrs]](c, ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	return &application.GatewayRefund{
		ID:        resp.Data.ID,
		PaymentID: resp.Data.Attributes.PaymentID,
		Amount:    resp.Data.Attributes.Amount,
		Status:    resp.Data.Attributes.Status,
		CreatedAt: unixTime(resp.Data.Attributes.CreatedAt),
	}, nil
}

func toCheckoutSession(res apiResource[checkoutSessionAttrs]) *application.CheckoutSession {
	session := &application.CheckoutSession{
		ID:          res.ID,
		CheckoutURL: res.Attributes.CheckoutURL,
		Status:      res.Attributes.Status,
		Metadata:    res.Attributes.Metadata,
		CreatedAt:   unixTime(res.Attributes.CreatedAt),
	}
	for _, p := range res.Attributes.Payments {
		if p.Attributes.Status == "paid" {
			session.Paid = true
			session.PaymentID = p.ID
			break
		}
	}
	return session
}

func sendRequest[Req any, Resp any](c *Client, ctx context.Context, method, url string, reqBody *Req) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(c.secretKey+":")))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		var errResp gatewayErrorResponse
		if err := json.Unmarshal(body, &errResp); err != nil {
			return nil, fmt.Errorf("gateway returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, errResp.toError(resp.StatusCode)
	}

	var apiResp Resp
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}

	return &apiResp, nil
}
