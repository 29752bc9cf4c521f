package parser

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/internal/core/money"
	"github.com/joseph-ayodele/receipt-parser/internal/core/patterns"
)

var (
	toleranceRate = decimal.RequireFromString("0.01")
	toleranceMin  = decimal.RequireFromString("0.02")
)

// findSubtotal returns the first match of the strongest subtotal pattern.
func findSubtotal(text string) (decimal.Decimal, bool) {
	var (
		best     decimal.Decimal
		priority int
		found    bool
	)
	for i := range patterns.Subtotal {
		spec := &patterns.Subtotal[i]
		if found && spec.Priority >= priority {
			continue
		}
		for _, m := range spec.FindAll(text) {
			if v, ok := money.Parse(m.Payload); ok && v.IsPositive() {
				best, priority, found = v, spec.Priority, true
				break
			}
		}
	}
	return best, found
}

// checkAmounts compares subtotal + tax against the total.
func checkAmounts(subtotal, tax, total decimal.Decimal) AmountValidation {
	calc := subtotal.Add(tax)
	diff := calc.Sub(total).Abs()
	tol := decimal.Max(total.Mul(toleranceRate), toleranceMin)
	return AmountValidation{
		IsConsistent:    diff.LessThanOrEqual(tol),
		Subtotal:        subtotal,
		Tax:             tax,
		CalculatedTotal: calc,
		Total:           total,
		Difference:      diff,
		Tolerance:       tol.Round(2),
	}
}

// crossValidate records the subtotal check when all three amounts exist and
// reports whether the result is still trustworthy.
func (p *Parser) crossValidate(d *document, res *Result) bool {
	if res.Amount == nil || res.Tax == nil {
		return true
	}
	sub, ok := findSubtotal(d.text)
	if !ok {
		return true
	}
	v := checkAmounts(sub, *res.Tax, *res.Amount)
	res.Debug.AmountValidation = &v
	if !v.IsConsistent {
		p.warn(res, WarnInconsistent)
		p.log().Debug("parser.validation.failed",
			"subtotal", sub.String(), "tax", res.Tax.String(), "total", res.Amount.String(), "difference", v.Difference.String())
	}
	return v.IsConsistent
}

// confidence weighs per-field scores, then takes 0.05 off per warning.
func confidence(scores map[string]float64, warnings int) float64 {
	c := 0.35*scores["amount"] +
		0.25*scores["vendor"] +
		0.25*scores["date"] +
		0.05*scores["currency"] +
		0.10*scores["tax"] -
		0.05*float64(warnings)
	return round2(math.Max(0, math.Min(1, c)))
}

func (p *Parser) needsReview(res *Result, scores map[string]float64, valid bool) bool {
	switch {
	case !valid:
		return true
	case res.Vendor == nil, res.Amount == nil:
		return true
	case res.Confidence < p.reviewThreshold:
		return true
	case scores["vendor"] < p.reviewThreshold, scores["amount"] < p.reviewThreshold:
		return true
	}
	return false
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
