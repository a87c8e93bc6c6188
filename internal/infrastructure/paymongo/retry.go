package paymongo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/Cerjho/canteen-orders/internal/application"
	"github.com/Cerjho/canteen-orders/internal/config"
)

// RetryClient decorates a GatewayClient with bounded exponential backoff.
// Only transient failures are retried; application-level rejections pass
// straight through.
type RetryClient struct {
	inner      application.GatewayClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryClient(inner application.GatewayClient, cfg config.RetryConfig) application.GatewayClient {
	return &RetryClient{
		inner:      inner,
		baseDelay:  cfg.BaseDelay,
		maxRetries: cfg.MaxRetries,
	}
}

func (r *RetryClient) CreateCheckoutSession(ctx context.Context, req application.CheckoutSessionRequest) (*application.CheckoutSession, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.CheckoutSession, error) {
			return r.inner.CreateCheckoutSession(ctx, req)
		},
	)
}

func (r *RetryClient) GetCheckoutSession(ctx context.Context, sessionID string) (*application.CheckoutSession, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.CheckoutSession, error) {
			return r.inner.GetCheckoutSession(ctx, sessionID)
		},
	)
}

func (r *RetryClient) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	_, err := retry(
		r,
		ctx,
		func(ctx context.Context) (*struct{}, error) {
			return &struct{}{}, r.inner.ExpireCheckoutSession(ctx, sessionID)
		},
	)
	return err
}

func (r *RetryClient) CreateRefund(ctx context.Context, req application.GatewayRefundRequest) (*application.GatewayRefund, error) {
	return retry(
		r,
		ctx,
		func(ctx context.Context) (*application.GatewayRefund, error) {
			return r.inner.CreateRefund(ctx, req)
		},
	)
}

// Generic retry helper
func retry[T any](r *RetryClient, ctx context.Context, operation func(ctx context.Context) (*T, error)) (*T, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		resp, err := operation(ctx)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < r.maxRetries-1 {
			time.Sleep(r.backoff(attempt))
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

// isRetryable classifies errors: gateway 5xx/429 and transport failures are
// transient, everything the gateway actively rejected is permanent.
func isRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.IsRetryable()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(250)) * time.Millisecond

	return base + jitter
}
