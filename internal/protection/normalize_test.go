package protection

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"stopkeeper/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRoundCurrency(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "half rounds up", in: "19.995", want: "20"},
		{name: "below half rounds down", in: "19.994", want: "19.99"},
		{name: "already two places", in: "45.00", want: "45"},
		{name: "long tail", in: "90.000000001", want: "90"},
		{name: "relative stop product", in: "89.991", want: "89.99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RoundCurrency(dec(tt.in))
			assert.True(t, got.Equal(dec(tt.want)), "RoundCurrency(%s) = %s, want %s", tt.in, got, tt.want)
			assert.True(t, got.Exponent() >= -2, "result must not carry more than 2 decimal places")
		})
	}
}

func TestIsFractional(t *testing.T) {
	assert.True(t, IsFractional(dec("2.7")))
	assert.True(t, IsFractional(dec("0.4")))
	assert.False(t, IsFractional(dec("10")))
	assert.False(t, IsFractional(dec("3.000")))
	assert.False(t, IsFractional(decimal.Zero))
}

func TestTimeInForceFor(t *testing.T) {
	// Fractional => DAY is a broker requirement, not a preference.
	assert.Equal(t, domain.Day, TimeInForceFor(dec("3.5")))
	assert.Equal(t, domain.GTC, TimeInForceFor(dec("10")))
	assert.Equal(t, domain.GTC, TimeInForceFor(dec("1.0")))
}

func TestNormalizeTrailingQty(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{name: "integer passes through", in: "10", want: "10", wantOK: true},
		{name: "fractional floors", in: "2.7", want: "2", wantOK: true},
		{name: "just above one", in: "1.01", want: "1", wantOK: true},
		{name: "floors to zero rejected", in: "0.4", wantOK: false},
		{name: "zero rejected", in: "0", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeTrailingQty(dec(tt.in))
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, got.Equal(dec(tt.want)), "NormalizeTrailingQty(%s) = %s, want %s", tt.in, got, tt.want)
				assert.False(t, IsFractional(got))
			}
		})
	}
}
