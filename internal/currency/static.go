package currency

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// StaticSource serves a fixed rate table. It backs development and test
// environments, and deployments where rates come from configuration instead
// of a rate API.
type StaticSource struct {
	table RateTable
}

// NewStaticSource parses config-supplied rate strings (currency -> decimal
// rate against base).
func NewStaticSource(base string, rates map[string]string) (*StaticSource, error) {
	parsed := make(map[string]decimal.Decimal, len(rates))
	for code, raw := range rates {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("parse static rate for %s: %w", code, err)
		}
		parsed[strings.ToUpper(code)] = d
	}
	return &StaticSource{table: RateTable{Base: strings.ToUpper(base), Rates: parsed}}, nil
}

func (s *StaticSource) Fetch(ctx context.Context) (RateTable, error) {
	return s.table, nil
}
