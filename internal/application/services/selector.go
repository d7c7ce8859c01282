package services

import (
	"log/slog"
	"strings"

	"github.com/lumapix/payments-service/internal/application"
	"github.com/lumapix/payments-service/internal/config"
	"github.com/lumapix/payments-service/internal/domain"
)

// GatewaySelector routes a (country, currency, product) combination to a
// provider using the configured rule list. First enabled matching rule wins.
// No match fails closed; there is deliberately no default provider.
type GatewaySelector struct {
	rules  []config.GatewayRule
	logger *slog.Logger
}

func NewGatewaySelector(rules []config.GatewayRule, logger *slog.Logger) *GatewaySelector {
	return &GatewaySelector{rules: rules, logger: logger}
}

func (s *GatewaySelector) Select(countryCode, currencyCode string, product domain.ProductType) (domain.GatewaySelection, error) {
	countryCode = strings.ToUpper(countryCode)
	currencyCode = strings.ToUpper(currencyCode)

	for _, rule := range s.rules {
		if !rule.Enabled {
			continue
		}
		if !matches(rule.Countries, countryCode) {
			continue
		}
		if !matches(rule.Currencies, currencyCode) {
			continue
		}
		if !matches(rule.Products, string(product)) {
			continue
		}

		gateway, err := domain.ParseProvider(rule.Provider)
		if err != nil {
			s.logger.Error("gateway rule names unknown provider", "provider", rule.Provider)
			continue
		}

		return domain.GatewaySelection{Gateway: gateway, CountryCode: countryCode}, nil
	}

	s.logger.Warn("no gateway rule matched",
		"country", countryCode,
		"currency", currencyCode,
		"product", string(product),
	)

	return domain.GatewaySelection{}, &application.GatewaySelectionError{
		Code:       application.ErrCodeNoGatewayForRoute,
		FailClosed: true,
	}
}

// matches treats an empty rule set as a wildcard.
func matches(set []string, value string) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if strings.EqualFold(v, value) {
			return true
		}
	}
	return false
}
