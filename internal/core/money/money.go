// Package money converts receipt amount strings into decimals.
//
// US ("1,234.56") and European ("1.234,56", "1 234,56") layouts are both
// understood. Parse never panics; anything it cannot read is reported as
// not ok.
package money

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Format is a separator convention hint.
type Format int

const (
	FormatAuto Format = iota
	FormatUS
	FormatEuropean
)

func (f Format) String() string {
	switch f {
	case FormatUS:
		return "US"
	case FormatEuropean:
		return "EUROPEAN"
	default:
		return "AUTO"
	}
}

// Ceiling is the largest magnitude accepted. Larger values are almost always
// several OCR numbers merged together.
var Ceiling = decimal.NewFromInt(1_000_000)

var (
	reCurrencyNoise = regexp.MustCompile(`(?i)[$£€¥]\s*|[A-Z]{3}\s*`)
	reEuroTail      = regexp.MustCompile(`,\d{2}$`)
)

type options struct {
	format        Format
	allowNegative bool
}

// Option tunes a single Parse call.
type Option func(*options)

// WithFormat forces the separator convention. FormatAuto keeps detection on.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// AllowNegative accepts "(12.34)" and "-12.34" as negative values.
func AllowNegative() Option {
	return func(o *options) { o.allowNegative = true }
}

// Parse reads an amount such as "$1,234.56", "1.234,56 EUR" or "(12.34)".
func Parse(s string, opts ...Option) (decimal.Decimal, bool) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cleaned := strings.TrimSpace(s)
	if cleaned == "" {
		return decimal.Zero, false
	}

	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		if !o.allowNegative {
			return decimal.Zero, false
		}
		negative = true
		cleaned = strings.TrimSpace(cleaned[1 : len(cleaned)-1])
	}
	if strings.HasPrefix(cleaned, "-") {
		if !o.allowNegative {
			return decimal.Zero, false
		}
		negative = true
		cleaned = strings.TrimSpace(cleaned[1:])
	}

	cleaned = strings.TrimSpace(reCurrencyNoise.ReplaceAllString(cleaned, ""))
	if cleaned == "" {
		return decimal.Zero, false
	}

	format := o.format
	if format == FormatAuto {
		format = Detect(cleaned)
	}

	var digits string
	if format == FormatEuropean {
		digits = strings.NewReplacer(".", "", " ", "", ",", ".").Replace(cleaned)
	} else {
		digits = strings.NewReplacer(",", "", " ", "").Replace(cleaned)
	}
	if !plainNumber(digits) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	if d.Abs().GreaterThan(Ceiling) {
		return decimal.Zero, false
	}
	return d, true
}

// Detect guesses the separator convention of an already de-symbolized amount.
func Detect(s string) Format {
	if reEuroTail.MatchString(s) {
		return FormatEuropean
	}
	if strings.Contains(s, " ") && !strings.Contains(s, ".") {
		return FormatEuropean
	}
	if dot, comma := strings.Index(s, "."), strings.LastIndex(s, ","); dot >= 0 && comma >= 0 && dot < comma {
		return FormatEuropean
	}
	return FormatUS
}

// plainNumber rejects exponents and stray characters that decimal would
// otherwise accept.
func plainNumber(s string) bool {
	if s == "" {
		return false
	}
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return s != "."
}

var symbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"AUD": "$",
	"NZD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// FormatAmount renders d with its currency symbol and US separators.
// An unknown code is used as its own prefix.
func FormatAmount(d decimal.Decimal, code string) string {
	code = strings.ToUpper(code)
	sym, ok := symbols[code]
	if !ok {
		sym = code
		if sym != "" {
			sym += " "
		}
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	fixed := d.StringFixed(2)
	intPart, frac := fixed[:len(fixed)-3], fixed[len(fixed)-2:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + sym + b.String() + "." + frac
}
