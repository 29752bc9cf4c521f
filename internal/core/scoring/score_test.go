package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
)

func TestBase(t *testing.T) {
	assert.InDelta(t, 1.0, Base(1), 1e-9)
	assert.InDelta(t, 0.7686, Base(2), 1e-3)
	assert.InDelta(t, 0.6772, Base(3), 1e-3)
	assert.InDelta(t, 0.6243, Base(4), 1e-3)
	assert.InDelta(t, 1.0, Base(0), 1e-9)
}

func amount(priority int, mods ...func(*candidate.Amount)) candidate.Amount {
	c := candidate.Amount{
		Base:                candidate.Base{PatternName: "p", Priority: priority},
		Value:               decimal.NewFromInt(10),
		ProximityToKeywords: candidate.NoProximity,
	}
	for _, m := range mods {
		m(&c)
	}
	return c
}

func TestScoreAmount(t *testing.T) {
	strong := func(c *candidate.Amount) { c.HasStrongPrefix = true }
	near := func(c *candidate.Amount) { c.ProximityToKeywords = 7 }
	sub := func(c *candidate.Amount) { c.InSubtotalContext = true }
	black := func(c *candidate.Amount) { c.InBlacklistContext = true }

	tests := []struct {
		name string
		c    candidate.Amount
		want float64
	}{
		{"priority one alone", amount(1), 1.0},
		{"priority four alone", amount(4), 0.6243},
		{"priority four strong and near", amount(4, strong, near), 1.0},
		{"priority four near", amount(4, near), 0.6243 + 0.2*0.93},
		{"subtotal context", amount(4, sub), 0.2243},
		{"blacklisted", amount(4, black), 0.1243},
		{"blacklisted and subtotal clamps", amount(4, black, sub), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreAmount(tt.c), 1e-3)
		})
	}
}

func vendor(pattern string, line int, value string, mods ...func(*candidate.Vendor)) candidate.Vendor {
	v := candidate.NewVendor(candidate.Base{PatternName: pattern, RawText: value}, value, candidate.VendorSource{LinePosition: line})
	for _, m := range mods {
		m(&v)
	}
	return v
}

func TestScoreVendor(t *testing.T) {
	header := func(v *candidate.Vendor) { v.FromEmailHeader = true }
	subject := func(v *candidate.Vendor) { v.FromSubject = true }

	tests := []struct {
		name string
		v    candidate.Vendor
		sig  VendorSignals
		want float64
	}{
		{"header merchant", vendor("from_header", 5, "Starbucks", header), VendorSignals{}, 0.9 + 0.1 - 0.06},
		{"subject on first line", vendor("subject_your", 0, "uber", subject), VendorSignals{}, 0.95},
		{"payable to", vendor("payable_to", 12, "Bright Smiles Dental"), VendorSignals{}, 0.85 + 0.1 - 0.2},
		{"company suffix gets no double bonus", vendor("company_suffix", 3, "Acme Widgets Inc"), VendorSignals{}, 0.7 + 0.1 - 0.02},
		{"body line with suffix", vendor("body_line", 1, "Acme Widgets Inc"), VendorSignals{}, 0.5 + 0.1 + 0.1 + 0.15},
		{"deep body line decays", vendor("body_line", 40, "lots of words here"), VendorSignals{}, 0.1},
		{"long name", vendor("body_line", 2, "one two three four five six"), VendorSignals{}, 0.5 + 0.1 - 0.1},
		{"forwarder in header", vendor("from_header", 0, "Alice Johnson", header), VendorSignals{IsForwarded: true}, 0.9 + 0.1 + 0.25 - 0.6},
		{"forwarder via sender name", vendor("context_sender_name", 0, "Alice Johnson"), VendorSignals{IsForwarded: true}, 0.5 + 0.1 + 0.25 - 0.6},
		{"same name not forwarded", vendor("from_header", 0, "Alice Johnson", header), VendorSignals{}, 1.0},
		{"business word is not a person", vendor("from_header", 0, "Clearview Optical", header), VendorSignals{IsForwarded: true}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreVendor(tt.v, tt.sig), 1e-9)
		})
	}
}

func TestLooksLikePersonName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Alice Johnson", true},
		{"Mary-Jane O'Neil", true},
		{"Jean Paul Sartre", true},
		{"Starbucks", false},
		{"Alice B Cooper Smith", false},
		{"Acme Inc", false},
		{"Lovable Labs2", false},
		{"alice johnson", false},
		{"Bartholomewsonian Jones", false},
		{"GeoGuessr Unlimited", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, LooksLikePersonName(tt.in))
		})
	}
}

func TestScoreDate(t *testing.T) {
	d := candidate.Date{Base: candidate.Base{Priority: 2}, LinePosition: 0, HasStrongPrefix: true}
	assert.InDelta(t, 1.0, ScoreDate(d), 1e-9)

	d = candidate.Date{Base: candidate.Base{Priority: 3}, LinePosition: 30, IsAmbiguous: true}
	assert.InDelta(t, 0.6772-0.2, ScoreDate(d), 1e-3)

	d.DetectedLocale = "CA"
	assert.InDelta(t, 0.6772, ScoreDate(d), 1e-3)

	d = candidate.Date{Base: candidate.Base{Priority: 2}, LinePosition: 10}
	assert.InDelta(t, 0.7686+0.1, ScoreDate(d), 1e-3)
}

func TestScoreCurrency(t *testing.T) {
	tests := []struct {
		name string
		c    candidate.Currency
		want float64
	}{
		{"explicit far", candidate.Currency{IsExplicit: true, ContextCount: 1, SymbolProximity: candidate.NoProximity}, 0.9},
		{"symbol far", candidate.Currency{ContextCount: 1, SymbolProximity: candidate.NoProximity}, 0.6},
		{"symbol repeated", candidate.Currency{ContextCount: 4, SymbolProximity: candidate.NoProximity}, 0.75},
		{"repetition capped", candidate.Currency{ContextCount: 50, SymbolProximity: candidate.NoProximity}, 0.9},
		{"symbol adjacent", candidate.Currency{ContextCount: 1, SymbolProximity: 0}, 0.7},
		{"explicit adjacent clamps", candidate.Currency{IsExplicit: true, ContextCount: 3, SymbolProximity: 1}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreCurrency(tt.c), 1e-9)
		})
	}
}

func TestScoresStayInRange(t *testing.T) {
	for p := 0; p < 10; p++ {
		for _, strong := range []bool{false, true} {
			for _, black := range []bool{false, true} {
				c := candidate.Amount{Base: candidate.Base{Priority: p}, HasStrongPrefix: strong, InBlacklistContext: black, InSubtotalContext: black, ProximityToKeywords: p}
				s := ScoreAmount(c)
				require.GreaterOrEqual(t, s, 0.0)
				require.LessOrEqual(t, s, 1.0)
			}
		}
	}
}
