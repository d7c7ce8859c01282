package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

const stripeSignatureTolerance = 5 * time.Minute

// StripeClient drives Stripe hosted checkout sessions.
type StripeClient struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	redirectBase  string
	httpClient    *http.Client
	now           func() time.Time
}

func NewStripeClient(cfg config.ProviderConfig, redirectBase string, timeout time.Duration) *StripeClient {
	return &StripeClient{
		baseURL:       cfg.BaseURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		redirectBase:  redirectBase,
		httpClient:    &http.Client{Timeout: timeout},
		now:           time.Now,
	}
}

func (c *StripeClient) Provider() domain.Provider {
	return domain.ProviderStripe
}

type stripeSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentStatus string `json:"payment_status"`
	AmountTotal   int64  `json:"amount_total"`
	Currency      string `json:"currency"`
	ClientRefID   string `json:"client_reference_id"`
}

func (c *StripeClient) CreateSession(ctx context.Context, req application.CreateSessionRequest) (*application.CheckoutSession, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", req.Reference)
	form.Set("success_url", c.redirectBase+"/checkout/success?purchase="+req.Reference)
	form.Set("cancel_url", c.redirectBase+"/checkout/cancel?purchase="+req.Reference)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(req.Currency))
	form.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(req.AmountCents, 10))
	form.Set("line_items[0][price_data][product_data][name]", req.Description)

	session, err := sendForm[stripeSession](ctx, c.httpClient, domain.ProviderStripe,
		c.baseURL+"/v1/checkout/sessions", form, c.authHeader())
	if err != nil {
		return nil, err
	}

	return &application.CheckoutSession{
		ProviderRef: session.ID,
		CheckoutURL: session.URL,
	}, nil
}

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeSession `json:"object"`
	} `json:"data"`
}

// VerifyEvent checks the Stripe-Signature header (HMAC-SHA256 over
// "<timestamp>.<payload>") before trusting the event body.
func (c *StripeClient) VerifyEvent(ctx context.Context, payload []byte, header http.Header) (*application.ProviderEvent, error) {
	sigHeader := header.Get("Stripe-Signature")
	if sigHeader == "" {
		return nil, ErrSignatureMismatch
	}

	timestamp, signature, err := parseStripeSignature(sigHeader)
	if err != nil {
		return nil, ErrSignatureMismatch
	}

	age := c.now().Sub(time.Unix(timestamp, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return nil, ErrSignatureMismatch
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	fmt.Fprintf(mac, "%d.%s", timestamp, payload)
	if !hmac.Equal(mac.Sum(nil), signature) {
		return nil, ErrSignatureMismatch
	}

	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode stripe event: %w", err)
	}

	kind := application.EventIgnored
	switch event.Type {
	case "checkout.session.completed":
		kind = application.EventPaymentSucceeded
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		kind = application.EventPaymentFailed
	}

	return &application.ProviderEvent{
		Provider:    domain.ProviderStripe,
		EventID:     event.ID,
		Kind:        kind,
		ProviderRef: event.Data.Object.ID,
		AmountCents: event.Data.Object.AmountTotal,
		Currency:    strings.ToUpper(event.Data.Object.Currency),
	}, nil
}

func (c *StripeClient) VerifyCharge(ctx context.Context, providerRef string) (*application.ChargeStatus, error) {
	session, err := sendJSON[struct{}, stripeSession](ctx, c.httpClient, domain.ProviderStripe,
		http.MethodGet, c.baseURL+"/v1/checkout/sessions/"+providerRef, nil, c.authHeader())
	if err != nil {
		return nil, err
	}

	return &application.ChargeStatus{
		ProviderRef: session.ID,
		Settled:     session.PaymentStatus == "paid",
		RawStatus:   session.PaymentStatus,
	}, nil
}

func (c *StripeClient) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.secretKey}
}

func parseStripeSignature(header string) (int64, []byte, error) {
	var timestamp int64
	var signature []byte

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(value)
			if err != nil {
				return 0, nil, fmt.Errorf("invalid signature encoding: %w", err)
			}
			signature = sig
		}
	}

	if timestamp == 0 || len(signature) == 0 {
		return 0, nil, fmt.Errorf("signature header missing t or v1")
	}
	return timestamp, signature, nil
}
