package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lumapix/payments-service/internal/currency"
	"github.com/shopspring/decimal"
)

// HTTPSource fetches exchange rates from a JSON rate API of the common
// {"base": "USD", "rates": {"NGN": "1520.50", ...}} shape.
type HTTPSource struct {
	url        string
	base       string
	httpClient *http.Client
}

func NewHTTPSource(url, base string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		url:  url,
		base: strings.ToUpper(base),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type ratesResponse struct {
	Base  string                 `json:"base"`
	Rates map[string]json.Number `json:"rates"`
}

func (s *HTTPSource) Fetch(ctx context.Context) (currency.RateTable, error) {
	url := fmt.Sprintf("%s?base=%s", s.url, s.base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return currency.RateTable{}, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return currency.RateTable{}, fmt.Errorf("rate provider returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded ratesResponse
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&decoded); err != nil {
		return currency.RateTable{}, fmt.Errorf("error decoding json response: %w", err)
	}

	table := currency.RateTable{
		Base:  strings.ToUpper(decoded.Base),
		Rates: make(map[string]decimal.Decimal, len(decoded.Rates)),
	}
	for code, num := range decoded.Rates {
		d, err := decimal.NewFromString(num.String())
		if err != nil {
			return currency.RateTable{}, fmt.Errorf("invalid rate for %s: %w", code, err)
		}
		table.Rates[strings.ToUpper(code)] = d
	}

	return table, nil
}
