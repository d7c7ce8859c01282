package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

// PayPalClient drives PayPal checkout orders. Unlike the HMAC providers,
// PayPal webhook authenticity is established by calling back into its
// verify-webhook-signature API.
type PayPalClient struct {
	baseURL      string
	clientID     string
	secret       string
	webhookID    string
	redirectBase string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewPayPalClient(cfg config.ProviderConfig, redirectBase string, timeout time.Duration) *PayPalClient {
	return &PayPalClient{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		secret:       cfg.SecretKey,
		webhookID:    cfg.WebhookID,
		redirectBase: redirectBase,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

func (c *PayPalClient) Provider() domain.Provider {
	return domain.ProviderPayPal
}

type paypalOrderRequest struct {
	Intent        string `json:"intent"`
	PurchaseUnits []struct {
		ReferenceID string `json:"reference_id"`
		Amount      struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	} `json:"purchase_units"`
	ApplicationContext struct {
		ReturnURL string `json:"return_url"`
		CancelURL string `json:"cancel_url"`
	} `json:"application_context"`
}

type paypalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
}

func (c *PayPalClient) CreateSession(ctx context.Context, req application.CreateSessionRequest) (*application.CheckoutSession, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var body paypalOrderRequest
	body.Intent = "CAPTURE"
	body.PurchaseUnits = make([]struct {
		ReferenceID string `json:"reference_id"`
		Amount      struct {
			CurrencyCode string `json:"currency_code"`
			Value        string `json:"value"`
		} `json:"amount"`
	}, 1)
	body.PurchaseUnits[0].ReferenceID = req.Reference
	body.PurchaseUnits[0].Amount.CurrencyCode = strings.ToUpper(req.Currency)
	body.PurchaseUnits[0].Amount.Value = fmt.Sprintf("%d.%02d", req.AmountCents/100, req.AmountCents%100)
	body.ApplicationContext.ReturnURL = c.redirectBase + "/checkout/success?purchase=" + req.Reference
	body.ApplicationContext.CancelURL = c.redirectBase + "/checkout/cancel?purchase=" + req.Reference

	order, err := sendJSON[paypalOrderRequest, paypalOrder](ctx, c.httpClient, domain.ProviderPayPal,
		http.MethodPost, c.baseURL+"/v2/checkout/orders", &body,
		map[string]string{"Authorization": "Bearer " + token})
	if err != nil {
		return nil, err
	}

	var approveURL string
	for _, link := range order.Links {
		if link.Rel == "approve" {
			approveURL = link.Href
		}
	}
	if approveURL == "" {
		return nil, &Error{
			Provider:   domain.ProviderPayPal,
			Code:       "missing_approve_link",
			Message:    "order response carried no approve link",
			StatusCode: http.StatusBadGateway,
		}
	}

	return &application.CheckoutSession{
		ProviderRef: order.ID,
		CheckoutURL: approveURL,
	}, nil
}

type paypalEvent struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  json.RawMessage `json:"resource"`
}

type paypalEventResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
	Amount struct {
		CurrencyCode string `json:"currency_code"`
		Value        string `json:"value"`
	} `json:"amount"`
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

func (c *PayPalClient) VerifyEvent(ctx context.Context, payload []byte, header http.Header) (*application.ProviderEvent, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	verifyReq := paypalVerifyRequest{
		AuthAlgo:         header.Get("Paypal-Auth-Algo"),
		CertURL:          header.Get("Paypal-Cert-Url"),
		TransmissionID:   header.Get("Paypal-Transmission-Id"),
		TransmissionSig:  header.Get("Paypal-Transmission-Sig"),
		TransmissionTime: header.Get("Paypal-Transmission-Time"),
		WebhookID:        c.webhookID,
		WebhookEvent:     payload,
	}

	verify, err := sendJSON[paypalVerifyRequest, paypalVerifyResponse](ctx, c.httpClient, domain.ProviderPayPal,
		http.MethodPost, c.baseURL+"/v1/notifications/verify-webhook-signature", &verifyReq,
		map[string]string{"Authorization": "Bearer " + token})
	if err != nil {
		return nil, err
	}
	if verify.VerificationStatus != "SUCCESS" {
		return nil, ErrSignatureMismatch
	}

	var event paypalEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("decode paypal event: %w", err)
	}
	var resource paypalEventResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return nil, fmt.Errorf("decode paypal event resource: %w", err)
	}

	kind := application.EventIgnored
	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		kind = application.EventPaymentSucceeded
	case "PAYMENT.CAPTURE.DENIED":
		kind = application.EventPaymentFailed
	}

	// Captures reference the order they settle; order id is our stored ref.
	ref := resource.SupplementaryData.RelatedIDs.OrderID
	if ref == "" {
		ref = resource.ID
	}

	return &application.ProviderEvent{
		Provider:    domain.ProviderPayPal,
		EventID:     event.ID,
		Kind:        kind,
		ProviderRef: ref,
		AmountCents: parseMajorUnits(resource.Amount.Value),
		Currency:    strings.ToUpper(resource.Amount.CurrencyCode),
	}, nil
}

func (c *PayPalClient) VerifyCharge(ctx context.Context, providerRef string) (*application.ChargeStatus, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	order, err := sendJSON[struct{}, paypalOrder](ctx, c.httpClient, domain.ProviderPayPal,
		http.MethodGet, c.baseURL+"/v2/checkout/orders/"+providerRef, nil,
		map[string]string{"Authorization": "Bearer " + token})
	if err != nil {
		return nil, err
	}

	return &application.ChargeStatus{
		ProviderRef: order.ID,
		Settled:     order.Status == "COMPLETED",
		RawStatus:   order.Status,
	}, nil
}

type paypalTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (c *PayPalClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Provider:   domain.ProviderPayPal,
			Code:       "oauth_failed",
			Message:    "token request rejected",
			StatusCode: resp.StatusCode,
		}
	}

	var decoded paypalTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("error decoding json response: %w", err)
	}

	c.accessToken = decoded.AccessToken
	// Refresh a minute early so in-flight calls never carry a dying token.
	c.tokenExpiry = time.Now().Add(time.Duration(decoded.ExpiresIn-60) * time.Second)
	return c.accessToken, nil
}

func parseMajorUnits(value string) int64 {
	whole, frac, _ := strings.Cut(value, ".")
	var cents int64
	fmt.Sscanf(whole, "%d", &cents)
	cents *= 100
	if len(frac) > 0 {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		var f int64
		fmt.Sscanf(frac, "%d", &f)
		if len(frac) == 1 {
			f *= 10
		}
		cents += f
	}
	return cents
}
