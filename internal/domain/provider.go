package domain

import "fmt"

// Provider identifies a payment gateway. The set is closed: every variant has
// exactly one client implementation registered at startup.
type Provider string

const (
	ProviderStripe      Provider = "stripe"
	ProviderPayPal      Provider = "paypal"
	ProviderFlutterwave Provider = "flutterwave"
	ProviderPaystack    Provider = "paystack"
)

// Providers lists every known gateway, in registration order.
func Providers() []Provider {
	return []Provider{ProviderStripe, ProviderPayPal, ProviderFlutterwave, ProviderPaystack}
}

func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderStripe, ProviderPayPal, ProviderFlutterwave, ProviderPaystack:
		return Provider(s), nil
	}
	return "", fmt.Errorf("unknown payment provider %q", s)
}

// ProductType distinguishes what is being bought, for gateway routing.
type ProductType string

const (
	ProductMedia   ProductType = "media"
	ProductCredits ProductType = "credits"
)

// GatewaySelection is the result of routing a checkout to a provider.
// It is derived per request and never persisted.
type GatewaySelection struct {
	Gateway     Provider
	CountryCode string
}
