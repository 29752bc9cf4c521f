package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		opts   []Option
		want   string
		wantOK bool
	}{
		{name: "us with symbol", input: "$1,234.56", want: "1234.56", wantOK: true},
		{name: "us plain", input: "59.52", want: "59.52", wantOK: true},
		{name: "integer", input: "1234", want: "1234", wantOK: true},
		{name: "european dot thousands", input: "1.234,56", want: "1234.56", wantOK: true},
		{name: "european space thousands", input: "1 234,56", want: "1234.56", wantOK: true},
		{name: "european with code", input: "1.234,56 EUR", want: "1234.56", wantOK: true},
		{name: "trailing code us", input: "59.52 CAD", want: "59.52", wantOK: true},
		{name: "lower case code", input: "usd 12.00", want: "12", wantOK: true},
		{name: "hint overrides detection", input: "1,234", opts: []Option{WithFormat(FormatEuropean)}, want: "1.234", wantOK: true},
		{name: "parentheses rejected by default", input: "($12.34)", wantOK: false},
		{name: "minus rejected by default", input: "-12.34", wantOK: false},
		{name: "parentheses allowed", input: "($12.34)", opts: []Option{AllowNegative()}, want: "-12.34", wantOK: true},
		{name: "minus allowed", input: "-$5.00", opts: []Option{AllowNegative()}, want: "-5", wantOK: true},
		{name: "over ceiling", input: "$1,000,000.01", wantOK: false},
		{name: "at ceiling", input: "1,000,000.00", want: "1000000", wantOK: true},
		{name: "empty", input: "", wantOK: false},
		{name: "symbol only", input: "$", wantOK: false},
		{name: "garbage", input: "12.3.4", wantOK: false},
		{name: "exponent", input: "1e5", wantOK: false},
		{name: "words", input: "total", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.input, tt.opts...)
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s want %s", got, tt.want)
		})
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"1,234.56", FormatUS},
		{"1.234,56", FormatEuropean},
		{"12,50", FormatEuropean},
		{"1 234", FormatEuropean},
		{"1 234.56", FormatUS},
		{"1234", FormatUS},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.input))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$1,234.56", FormatAmount(decimal.RequireFromString("1234.56"), "USD"))
	assert.Equal(t, "€0.50", FormatAmount(decimal.RequireFromString("0.5"), "eur"))
	assert.Equal(t, "-£12.00", FormatAmount(decimal.RequireFromString("-12"), "GBP"))
	assert.Equal(t, "CHF 1,000,000.00", FormatAmount(decimal.RequireFromString("1000000"), "CHF"))
	assert.Equal(t, "999.99", FormatAmount(decimal.RequireFromString("999.99"), ""))
}
