package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider string

func (n namedProvider) Name() string { return string(n) }
func (n namedProvider) CreateIntent(context.Context, decimal.Decimal, Currency, map[string]string) (*Intent, error) {
	return nil, nil
}
func (n namedProvider) Capture(context.Context, string) (*CaptureResult, error) { return nil, nil }

func TestMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"19.99":  1999,
		"20":     2000,
		"0.005":  1,
		"0.004":  0,
		"1234.5": 123450,
	}
	for in, want := range cases {
		assert.Equal(t, want, MinorUnits(decimal.RequireFromString(in)), in)
	}
	assert.Equal(t, "19.99", FromMinorUnits(1999).String())
}

func TestMajorUnits(t *testing.T) {
	assert.Equal(t, "19.99", MajorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, "20.00", MajorUnits(decimal.NewFromInt(20)))
	assert.Equal(t, "0.50", MajorUnits(decimal.RequireFromString("0.5")))
}

func TestValidateAmount(t *testing.T) {
	assert.ErrorIs(t, ValidateAmount(decimal.Zero), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(decimal.NewFromInt(-5)), ErrInvalidAmount)
	assert.ErrorIs(t, ValidateAmount(decimal.RequireFromString("0.001")), ErrInvalidAmount)
	assert.NoError(t, ValidateAmount(decimal.RequireFromString("0.01")))
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" cny ")
	require.NoError(t, err)
	assert.Equal(t, CNY, c)
	assert.Equal(t, "cny", c.Lower())

	_, err = ParseCurrency("XYZ")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(namedProvider(ProviderStripe), namedProvider(ProviderPayPal), nil)

	p, err := r.Get("PayPal")
	require.NoError(t, err)
	assert.Equal(t, ProviderPayPal, p.Name())

	_, err = r.Get("bitcoin")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCaptureResultCompleted(t *testing.T) {
	assert.True(t, (&CaptureResult{Status: CaptureStatusCompleted}).Completed())
	assert.False(t, (&CaptureResult{Status: "PENDING"}).Completed())
	var nilResult *CaptureResult
	assert.False(t, nilResult.Completed())
}

func TestProviderError(t *testing.T) {
	err := &ProviderError{Provider: ProviderPayPal, StatusCode: 422, Message: "UNPROCESSABLE_ENTITY"}

	assert.True(t, err.ClientFault())
	assert.Contains(t, err.Error(), "422")
	assert.False(t, (&ProviderError{StatusCode: 503}).ClientFault())
}
