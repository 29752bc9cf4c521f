package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
)

type fake struct {
	name     string
	priority int
	offset   int
	score    float64
}

func (f fake) Rank() int   { return f.priority }
func (f fake) Offset() int { return f.offset }

func fakeScore(f fake) float64 { return f.score }

func names(ss []Scored[fake]) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Candidate.name)
	}
	return out
}

func TestSelectPicksHighestScore(t *testing.T) {
	cands := []fake{
		{name: "low", priority: 1, score: 0.4},
		{name: "high", priority: 4, score: 0.9},
		{name: "mid", priority: 2, score: 0.6},
	}
	got, ok := Select(cands, fakeScore)
	require.True(t, ok)
	assert.Equal(t, "high", got.Candidate.name)
	assert.Equal(t, 0.9, got.Score)
}

func TestSelectTieBreaks(t *testing.T) {
	cands := []fake{
		{name: "late p1", priority: 1, offset: 50, score: 0.8},
		{name: "p2", priority: 2, offset: 0, score: 0.8},
		{name: "early p1", priority: 1, offset: 10, score: 0.8},
	}
	assert.Equal(t, []string{"early p1", "late p1", "p2"}, names(Top(cands, fakeScore, 5)))
}

func TestSelectIgnoresDeclarationOrder(t *testing.T) {
	a := fake{name: "a", priority: 2, offset: 3, score: 0.5}
	b := fake{name: "b", priority: 1, offset: 9, score: 0.5}
	got1, _ := Select([]fake{a, b}, fakeScore)
	got2, _ := Select([]fake{b, a}, fakeScore)
	assert.Equal(t, got1, got2)
	assert.Equal(t, "b", got1.Candidate.name)
}

func TestSelectAppliesFloor(t *testing.T) {
	_, ok := Select([]fake{{name: "weak", score: 0.29}}, fakeScore)
	assert.False(t, ok)

	_, ok = Select([]fake{{name: "edge", score: AcceptanceFloor}}, fakeScore)
	assert.True(t, ok)

	_, ok = Select[fake](nil, fakeScore)
	assert.False(t, ok)
}

func TestTopKeepsWeakCandidates(t *testing.T) {
	cands := []fake{
		{name: "a", score: 0.1},
		{name: "b", score: 0.2},
		{name: "c", score: 0.3},
		{name: "d", score: 0.05},
	}
	assert.Equal(t, []string{"c", "b", "a"}, names(Top(cands, fakeScore, DefaultTop)))
	assert.Len(t, Top(cands, fakeScore, -1), 4)
	assert.Empty(t, Top(cands, fakeScore, 0))
}

func TestTypedHelpers(t *testing.T) {
	strong := candidate.Amount{Base: candidate.Base{PatternName: "explicit_payment", Priority: 1}, HasStrongPrefix: true, ProximityToKeywords: candidate.NoProximity}
	stray := candidate.Amount{Base: candidate.Base{PatternName: "currency_symbol", Priority: 4, Span: candidate.Span{Start: 80}}, InBlacklistContext: true, ProximityToKeywords: candidate.NoProximity}

	best, ok := BestAmount([]candidate.Amount{stray, strong})
	require.True(t, ok)
	assert.Equal(t, "explicit_payment", best.Candidate.PatternName)
	assert.Len(t, TopAmounts([]candidate.Amount{stray, strong}, DefaultTop), 2)

	merchant := vendor("from_header", 8, "Starbucks", func(v *candidate.Vendor) { v.FromEmailHeader = true })
	forwarder := vendor("from_header", 0, "Alice Johnson", func(v *candidate.Vendor) { v.FromEmailHeader = true })
	bv, ok := BestVendor([]candidate.Vendor{forwarder, merchant}, VendorSignals{IsForwarded: true})
	require.True(t, ok)
	assert.Equal(t, "Starbucks", bv.Candidate.Value)
	assert.Len(t, TopVendors([]candidate.Vendor{forwarder, merchant}, VendorSignals{}, 1), 1)

	_, ok = BestDate(nil)
	assert.False(t, ok)
	assert.Empty(t, TopDates(nil, DefaultTop))

	cur := candidate.Currency{Value: "CAD", IsExplicit: true, ContextCount: 1, SymbolProximity: candidate.NoProximity}
	bc, ok := BestCurrency([]candidate.Currency{cur})
	require.True(t, ok)
	assert.Equal(t, "CAD", bc.Candidate.Value)
	assert.Len(t, TopCurrencies([]candidate.Currency{cur}, DefaultTop), 1)
}
