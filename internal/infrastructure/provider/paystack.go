package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

// PaystackClient drives Paystack transaction initialization. Paystack signs
// webhooks with HMAC-SHA512 of the raw body under the account secret key.
type PaystackClient struct {
	baseURL      string
	secretKey    string
	redirectBase string
	httpClient   *http.Client
}

func NewPaystackClient(cfg config.ProviderConfig, redirectBase string, timeout time.Duration) *PaystackClient {
	return &PaystackClient{
		baseURL:      cfg.BaseURL,
		secretKey:    cfg.SecretKey,
		redirectBase: redirectBase,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *PaystackClient) Provider() domain.Provider {
	return domain.ProviderPaystack
}

type paystackInitRequest struct {
	Reference   string `json:"reference"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
}

type paystackInitResponse struct {
	Status bool `json:"status"`
	Data   struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

func (c *PaystackClient) CreateSession(ctx context.Context, req application.CreateSessionRequest) (*application.CheckoutSession, error) {
	body := paystackInitRequest{
		Reference:   req.Reference,
		Amount:      req.AmountCents,
		Currency:    strings.ToUpper(req.Currency),
		Email:       req.ActorID + "@checkout.lumapix.invalid",
		CallbackURL: c.redirectBase + "/checkout/success?purchase=" + req.Reference,
	}

	resp, err := sendJSON[paystackInitRequest, paystackInitResponse](ctx, c.httpClient, domain.ProviderPaystack,
		http.MethodPost, c.baseURL+"/transaction/initialize", &body, c.authHeader())
	if err != nil {
		return nil, err
	}

	return &application.CheckoutSession{
		ProviderRef: resp.Data.Reference,
		CheckoutURL: resp.Data.AuthorizationURL,
	}, nil
}

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Amount    int64  `json:"amount"`
		Currency  string `json:"currency"`
		Status    string `json:"status"`
		// Refund notifications name the original charge here, not in reference.
		TransactionReference string `json:"transaction_reference"`
	} `json:"data"`
}

func (c *PaystackClient) VerifyEvent(ctx context.Context, payload []byte, header http.Header) (*application.ProviderEvent, error) {
	signature := header.Get("x-paystack-signature")
	if signature == "" {
		return nil, ErrSignatureMismatch
	}

	mac := hmac.New(sha512.New, []byte(c.secretKey))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
		return nil, ErrSignatureMismatch
	}

	var event paystackEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode paystack event: %w", err)
	}

	kind := application.EventIgnored
	switch event.Event {
	case "charge.success":
		kind = application.EventPaymentSucceeded
	case "charge.failed":
		kind = application.EventPaymentFailed
	case "refund.processed":
		kind = application.EventPaymentRefunded
	}

	// Paystack reuses the merchant reference as the event id only per charge;
	// combine with the event name so success and failure notifications for
	// one reference dedupe independently.
	eventID := fmt.Sprintf("%s:%d", event.Event, event.Data.ID)

	providerRef := event.Data.Reference
	if event.Data.TransactionReference != "" {
		providerRef = event.Data.TransactionReference
	}

	return &application.ProviderEvent{
		Provider:    domain.ProviderPaystack,
		EventID:     eventID,
		Kind:        kind,
		ProviderRef: providerRef,
		AmountCents: event.Data.Amount,
		Currency:    strings.ToUpper(event.Data.Currency),
	}, nil
}

type paystackVerifyResponse struct {
	Status bool `json:"status"`
	Data   struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (c *PaystackClient) VerifyCharge(ctx context.Context, providerRef string) (*application.ChargeStatus, error) {
	resp, err := sendJSON[struct{}, paystackVerifyResponse](ctx, c.httpClient, domain.ProviderPaystack,
		http.MethodGet, c.baseURL+"/transaction/verify/"+providerRef, nil, c.authHeader())
	if err != nil {
		return nil, err
	}

	return &application.ChargeStatus{
		ProviderRef: resp.Data.Reference,
		Settled:     resp.Data.Status == "success",
		RawStatus:   resp.Data.Status,
	}, nil
}

func (c *PaystackClient) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.secretKey}
}
