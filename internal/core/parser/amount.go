package parser

import (
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
	"github.com/joseph-ayodele/receipt-parser/internal/core/money"
	"github.com/joseph-ayodele/receipt-parser/internal/core/patterns"
	"github.com/joseph-ayodele/receipt-parser/internal/core/scoring"
)

var (
	// Amounts above this need a priority 1 or 2 pattern to be believed.
	largeAmount         = decimal.NewFromInt(10_000)
	largeAmountPriority = 2
)

func amountCandidates(text string) []candidate.Amount {
	var out []candidate.Amount
	for i := range patterns.Amount {
		spec := &patterns.Amount[i]
		for _, m := range spec.FindAll(text) {
			v, ok := money.Parse(m.Payload)
			if !ok || !v.IsPositive() {
				continue
			}
			if v.GreaterThan(largeAmount) && spec.Priority > largeAmountPriority {
				continue
			}
			b := candidate.Base{
				PatternName: spec.Name,
				Span:        candidate.Span{Start: m.Start, End: m.End},
				Priority:    spec.Priority,
				RawText:     m.Text,
			}
			out = append(out, candidate.NewAmount(b, v, spec.ImpliesStrong, text))
		}
	}
	return out
}

// extractAmount selects the total and returns its span for the currency
// step. The span is nil when no total was accepted.
func (p *Parser) extractAmount(d *document, res *Result, scores map[string]float64) *candidate.Span {
	cands := amountCandidates(d.text)
	best, ok := scoring.BestAmount(cands)

	var span *candidate.Span
	if ok {
		v := best.Candidate.Value
		res.Amount = &v
		res.Debug.PatternsMatched["amount"] = best.Candidate.PatternName
		res.Debug.ConfidencePerField["amount"] = round2(best.Score)
		scores["amount"] = best.Score
		s := best.Candidate.Span
		span = &s
		p.log().Debug("parser.amount.selected", "amount", v.String(), "pattern", best.Candidate.PatternName,
			"score", best.Score, "candidates", len(cands))
	}
	if (!ok || best.Score < p.reviewThreshold) && len(cands) > 0 {
		res.Debug.ReviewCandidates["amount"] = reviewList(
			scoring.TopAmounts(cands, len(cands)),
			func(c candidate.Amount) string { return c.Value.StringFixed(2) },
			func(c candidate.Amount) string { return c.PatternName },
		)
	}
	return span
}
