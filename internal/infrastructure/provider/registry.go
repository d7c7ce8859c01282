package provider

import (
	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

// Registry holds one client per gateway variant. Lookup of an unregistered
// provider fails closed rather than substituting a default.
type Registry struct {
	clients map[domain.Provider]application.ProviderClient
}

func NewRegistry(cfg config.GatewaysConfig) *Registry {
	wrap := func(c application.ProviderClient) application.ProviderClient {
		return NewRetryClient(c, cfg.RetryBaseDelay, cfg.MaxRetries)
	}

	return &Registry{
		clients: map[domain.Provider]application.ProviderClient{
			domain.ProviderStripe:      wrap(NewStripeClient(cfg.Stripe, cfg.RedirectBaseURL, cfg.ConnTimeout)),
			domain.ProviderPayPal:      wrap(NewPayPalClient(cfg.PayPal, cfg.RedirectBaseURL, cfg.ConnTimeout)),
			domain.ProviderFlutterwave: wrap(NewFlutterwaveClient(cfg.Flutterwave, cfg.RedirectBaseURL, cfg.ConnTimeout)),
			domain.ProviderPaystack:    wrap(NewPaystackClient(cfg.Paystack, cfg.RedirectBaseURL, cfg.ConnTimeout)),
		},
	}
}

// NewRegistryWithClients wires explicit clients; tests use this to install
// fakes.
func NewRegistryWithClients(clients ...application.ProviderClient) *Registry {
	m := make(map[domain.Provider]application.ProviderClient, len(clients))
	for _, c := range clients {
		m[c.Provider()] = c
	}
	return &Registry{clients: m}
}

func (r *Registry) Get(p domain.Provider) (application.ProviderClient, error) {
	client, ok := r.clients[p]
	if !ok {
		return nil, &application.GatewaySelectionError{
			Code:       application.ErrCodeGatewayDisabled,
			FailClosed: true,
		}
	}
	return client, nil
}
