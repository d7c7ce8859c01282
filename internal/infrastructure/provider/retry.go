package provider

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/domain"
)

// RetryClient wraps a provider client with exponential backoff for transient
// upstream failures. Only session creation and charge verification retry;
// event verification is driven by provider redelivery, not by us.
type RetryClient struct {
	inner      application.ProviderClient
	baseDelay  time.Duration
	maxRetries int
}

func NewRetryClient(inner application.ProviderClient, baseDelay time.Duration, maxRetries int) *RetryClient {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RetryClient{
		inner:      inner,
		baseDelay:  baseDelay,
		maxRetries: maxRetries,
	}
}

func (r *RetryClient) Provider() domain.Provider {
	return r.inner.Provider()
}

func (r *RetryClient) CreateSession(ctx context.Context, req application.CreateSessionRequest) (*application.CheckoutSession, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.CheckoutSession, error) {
		return r.inner.CreateSession(ctx, req)
	})
}

func (r *RetryClient) VerifyEvent(ctx context.Context, payload []byte, header http.Header) (*application.ProviderEvent, error) {
	return r.inner.VerifyEvent(ctx, payload, header)
}

func (r *RetryClient) VerifyCharge(ctx context.Context, providerRef string) (*application.ChargeStatus, error) {
	return retry(r, ctx, func(ctx context.Context) (*application.ChargeStatus, error) {
		return r.inner.VerifyCharge(ctx, providerRef)
	})
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
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff(attempt)):
			}
		}
	}

	return nil, fmt.Errorf("maximum retries exceeded: %w", lastErr)
}

func isRetryable(err error) bool {
	if provErr, ok := IsProviderError(err); ok {
		return provErr.IsRetryable()
	}
	if errors.Is(err, ErrSignatureMismatch) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	// Transport-level failures (connection reset, DNS) come through as plain
	// errors and are worth another attempt.
	return true
}

// Backoff calculation with exponential delay and jitter
func (r *RetryClient) backoff(attempt int) time.Duration {
	base := r.baseDelay * time.Duration(1<<attempt)

	jitter := time.Duration(rand.Intn(250)) * time.Millisecond

	return base + jitter
}
