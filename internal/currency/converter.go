package currency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnknownCurrency marks a currency code absent from the rate table. Callers
// branch on it to distinguish a bad client input from a rate-source failure.
var ErrUnknownCurrency = errors.New("unknown currency")

// RateTable maps currency codes to their rate against the base currency
// (1 unit of base = Rates[code] units of code).
type RateTable struct {
	Base  string
	Rates map[string]decimal.Decimal
}

// RateSource fetches a fresh rate table.
type RateSource interface {
	Fetch(ctx context.Context) (RateTable, error)
}

// cachedTable is an explicit cache value so staleness is a property of the
// data, not of hidden module state.
type cachedTable struct {
	table     RateTable
	fetchedAt time.Time
}

// Converter converts integer minor-unit amounts between currencies using a
// TTL-cached rate table. The clock is injectable so tests control expiry.
type Converter struct {
	source          RateSource
	ttl             time.Duration
	base            string
	countryDefaults map[string]string
	now             func() time.Time

	mu     sync.Mutex
	cached *cachedTable
}

type Option func(*Converter)

// WithClock replaces the converter's time source.
func WithClock(now func() time.Time) Option {
	return func(c *Converter) { c.now = now }
}

func NewConverter(source RateSource, base string, ttl time.Duration, countryDefaults map[string]string, opts ...Option) *Converter {
	defaults := make(map[string]string, len(countryDefaults))
	for country, code := range countryDefaults {
		defaults[strings.ToUpper(country)] = strings.ToUpper(code)
	}
	c := &Converter{
		source:          source,
		ttl:             ttl,
		base:            strings.ToUpper(base),
		countryDefaults: defaults,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Convert converts amountMinor from one currency to another. Identity
// conversions short-circuit without touching the rate table. Rounding is
// banker's rounding applied once, on the final result.
func (c *Converter) Convert(ctx context.Context, amountMinor int64, from, to string) (int64, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amountMinor, nil
	}

	table, err := c.getOrRefresh(ctx)
	if err != nil {
		return 0, err
	}

	fromRate, err := table.rate(from)
	if err != nil {
		return 0, err
	}
	toRate, err := table.rate(to)
	if err != nil {
		return 0, err
	}

	// amount * toRate / fromRate, carried at full precision until the single
	// terminal rounding step.
	converted := decimal.NewFromInt(amountMinor).
		Mul(toRate).
		DivRound(fromRate, 12).
		RoundBank(0)

	return converted.IntPart(), nil
}

// EffectiveCurrency resolves the currency a charge should be made in:
// explicit preference first, then the detected country's default, then the
// platform base.
func (c *Converter) EffectiveCurrency(preferred, detectedCountry string) string {
	if preferred != "" {
		return strings.ToUpper(preferred)
	}
	if code, ok := c.countryDefaults[strings.ToUpper(detectedCountry)]; ok {
		return code
	}
	return c.base
}

// Base returns the platform base currency.
func (c *Converter) Base() string {
	return c.base
}

func (c *Converter) getOrRefresh(ctx context.Context) (RateTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cached != nil && c.now().Sub(c.cached.fetchedAt) < c.ttl {
		return c.cached.table, nil
	}

	table, err := c.source.Fetch(ctx)
	if err != nil {
		// A stale table beats no table; checkout amounts remain approximate
		// rather than the whole flow failing on a rate-provider blip.
		if c.cached != nil {
			return c.cached.table, nil
		}
		return RateTable{}, fmt.Errorf("fetch exchange rates: %w", err)
	}

	c.cached = &cachedTable{table: table, fetchedAt: c.now()}
	return table, nil
}

func (t RateTable) rate(code string) (decimal.Decimal, error) {
	if code == t.Base {
		return decimal.NewFromInt(1), nil
	}
	r, ok := t.Rates[code]
	if !ok || r.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("no exchange rate for currency %s: %w", code, ErrUnknownCurrency)
	}
	return r, nil
}
