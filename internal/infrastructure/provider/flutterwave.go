package provider

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

// FlutterwaveClient drives Flutterwave standard payments. Flutterwave webhook
// authenticity rests on the verif-hash shared secret header.
type FlutterwaveClient struct {
	baseURL      string
	secretKey    string
	verifHash    string
	redirectBase string
	httpClient   *http.Client
}

func NewFlutterwaveClient(cfg config.ProviderConfig, redirectBase string, timeout time.Duration) *FlutterwaveClient {
	return &FlutterwaveClient{
		baseURL:      cfg.BaseURL,
		secretKey:    cfg.SecretKey,
		verifHash:    cfg.WebhookSecret,
		redirectBase: redirectBase,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *FlutterwaveClient) Provider() domain.Provider {
	return domain.ProviderFlutterwave
}

type flutterwavePaymentRequest struct {
	TxRef       string `json:"tx_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	RedirectURL string `json:"redirect_url"`
	Customer    struct {
		Email string `json:"email"`
	} `json:"customer"`
	Customizations struct {
		Title string `json:"title"`
	} `json:"customizations"`
}

type flutterwavePaymentResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (c *FlutterwaveClient) CreateSession(ctx context.Context, req application.CreateSessionRequest) (*application.CheckoutSession, error) {
	// Flutterwave takes major units; amounts stay integral in minor units
	// everywhere else, so format the division rather than computing floats.
	body := flutterwavePaymentRequest{
		TxRef:       req.Reference,
		Amount:      fmt.Sprintf("%d.%02d", req.AmountCents/100, req.AmountCents%100),
		Currency:    strings.ToUpper(req.Currency),
		RedirectURL: c.redirectBase + "/checkout/success?purchase=" + req.Reference,
	}
	body.Customer.Email = req.ActorID + "@checkout.lumapix.invalid"
	body.Customizations.Title = req.Description

	resp, err := sendJSON[flutterwavePaymentRequest, flutterwavePaymentResponse](ctx, c.httpClient, domain.ProviderFlutterwave,
		http.MethodPost, c.baseURL+"/v3/payments", &body, c.authHeader())
	if err != nil {
		return nil, err
	}

	return &application.CheckoutSession{
		ProviderRef: req.Reference,
		CheckoutURL: resp.Data.Link,
	}, nil
}

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID       int64  `json:"id"`
		TxRef    string `json:"tx_ref"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
	} `json:"data"`
}

func (c *FlutterwaveClient) VerifyEvent(ctx context.Context, payload []byte, header http.Header) (*application.ProviderEvent, error) {
	hash := header.Get("verif-hash")
	if hash == "" || subtle.ConstantTimeCompare([]byte(hash), []byte(c.verifHash)) != 1 {
		return nil, ErrSignatureMismatch
	}

	var event flutterwaveEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode flutterwave event: %w", err)
	}

	kind := application.EventIgnored
	switch event.Event {
	case "charge.completed":
		switch event.Data.Status {
		case "successful":
			kind = application.EventPaymentSucceeded
		case "failed":
			kind = application.EventPaymentFailed
		}
	case "refund.completed":
		kind = application.EventPaymentRefunded
	}

	return &application.ProviderEvent{
		Provider:    domain.ProviderFlutterwave,
		EventID:     fmt.Sprintf("%s:%d", event.Event, event.Data.ID),
		Kind:        kind,
		ProviderRef: event.Data.TxRef,
		AmountCents: event.Data.Amount * 100,
		Currency:    strings.ToUpper(event.Data.Currency),
	}, nil
}

type flutterwaveVerifyResponse struct {
	Status string `json:"status"`
	Data   struct {
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

func (c *FlutterwaveClient) VerifyCharge(ctx context.Context, providerRef string) (*application.ChargeStatus, error) {
	url := c.baseURL + "/v3/transactions/verify_by_reference?tx_ref=" + providerRef
	resp, err := sendJSON[struct{}, flutterwaveVerifyResponse](ctx, c.httpClient, domain.ProviderFlutterwave,
		http.MethodGet, url, nil, c.authHeader())
	if err != nil {
		return nil, err
	}

	return &application.ChargeStatus{
		ProviderRef: resp.Data.TxRef,
		Settled:     resp.Data.Status == "successful",
		RawStatus:   resp.Data.Status,
	}, nil
}

func (c *FlutterwaveClient) authHeader() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.secretKey}
}
