package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	table   RateTable
	err     error
	fetches int
}

func (s *countingSource) Fetch(ctx context.Context) (RateTable, error) {
	s.fetches++
	if s.err != nil {
		return RateTable{}, s.err
	}
	return s.table, nil
}

func usdNgnSource() *countingSource {
	return &countingSource{table: RateTable{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"NGN": decimal.RequireFromString("1520.50"),
			"EUR": decimal.RequireFromString("0.92"),
		},
	}}
}

func TestConvert_IdentityShortCircuits(t *testing.T) {
	source := usdNgnSource()
	c := NewConverter(source, "USD", time.Minute, nil)

	got, err := c.Convert(context.Background(), 12345, "NGN", "ngn")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), got)
	assert.Zero(t, source.fetches, "identity conversion must not touch the rate table")
}

func TestConvert_CrossRate(t *testing.T) {
	c := NewConverter(usdNgnSource(), "USD", time.Minute, nil)

	got, err := c.Convert(context.Background(), 1000, "USD", "NGN")
	require.NoError(t, err)
	assert.Equal(t, int64(1520500), got)

	// Cross conversion through the base.
	got, err = c.Convert(context.Background(), 1520500, "NGN", "EUR")
	require.NoError(t, err)
	assert.Equal(t, int64(920), got)
}

func TestConvert_BankersRounding(t *testing.T) {
	source := &countingSource{table: RateTable{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"AAA": decimal.RequireFromString("0.5"),
		},
	}}
	c := NewConverter(source, "USD", time.Minute, nil)

	// 1 * 0.5 = 0.5 rounds to the even 0; 3 * 0.5 = 1.5 rounds to the even 2.
	got, err := c.Convert(context.Background(), 1, "USD", "AAA")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	got, err = c.Convert(context.Background(), 3, "USD", "AAA")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got)
}

func TestConvert_RoundTripWithinOneMinorUnit(t *testing.T) {
	c := NewConverter(usdNgnSource(), "USD", time.Minute, nil)
	ctx := context.Background()

	for _, amount := range []int64{1, 99, 12345, 1000000} {
		there, err := c.Convert(ctx, amount, "USD", "NGN")
		require.NoError(t, err)
		back, err := c.Convert(ctx, there, "NGN", "USD")
		require.NoError(t, err)
		assert.InDelta(t, amount, back, 1, "round trip of %d drifted", amount)
	}
}

func TestConvert_UnknownCurrency(t *testing.T) {
	c := NewConverter(usdNgnSource(), "USD", time.Minute, nil)

	_, err := c.Convert(context.Background(), 100, "USD", "XXX")
	assert.ErrorIs(t, err, ErrUnknownCurrency)

	_, err = c.Convert(context.Background(), 100, "XXX", "USD")
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestConverter_CacheRespectsTTL(t *testing.T) {
	source := usdNgnSource()
	now := time.Now()
	clock := func() time.Time { return now }
	c := NewConverter(source, "USD", time.Minute, nil, WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	_, err := c.Convert(ctx, 100, "USD", "NGN")
	require.NoError(t, err)
	_, err = c.Convert(ctx, 100, "USD", "NGN")
	require.NoError(t, err)
	assert.Equal(t, 1, source.fetches, "second conversion inside the TTL must hit the cache")

	now = now.Add(2 * time.Minute)
	_, err = c.Convert(ctx, 100, "USD", "NGN")
	require.NoError(t, err)
	assert.Equal(t, 2, source.fetches, "expired table must be refreshed")
}

func TestConverter_ServesStaleTableOnFetchError(t *testing.T) {
	source := usdNgnSource()
	now := time.Now()
	c := NewConverter(source, "USD", time.Minute, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := c.Convert(ctx, 100, "USD", "NGN")
	require.NoError(t, err)

	source.err = errors.New("rate provider down")
	now = now.Add(2 * time.Minute)

	got, err := c.Convert(ctx, 1000, "USD", "NGN")
	require.NoError(t, err, "stale table should be served when refresh fails")
	assert.Equal(t, int64(1520500), got)
}

func TestConverter_FirstFetchFailureSurfaces(t *testing.T) {
	source := &countingSource{err: errors.New("rate provider down")}
	c := NewConverter(source, "USD", time.Minute, nil)

	_, err := c.Convert(context.Background(), 100, "USD", "NGN")
	assert.Error(t, err)
}

func TestEffectiveCurrency(t *testing.T) {
	c := NewConverter(usdNgnSource(), "USD", time.Minute, map[string]string{
		"NG": "NGN",
		"DE": "EUR",
	})

	assert.Equal(t, "EUR", c.EffectiveCurrency("eur", "NG"), "explicit preference wins")
	assert.Equal(t, "NGN", c.EffectiveCurrency("", "NG"), "country default applies")
	assert.Equal(t, "USD", c.EffectiveCurrency("", "FR"), "unknown country falls back to base")
	assert.Equal(t, "USD", c.EffectiveCurrency("", ""), "no signal falls back to base")
}
