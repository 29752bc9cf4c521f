package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
	"github.com/joseph-ayodele/receipt-parser/internal/core/money"
	"github.com/joseph-ayodele/receipt-parser/internal/core/patterns"
)

// taxFieldScore is the confidence given to tax whenever any was found.
const taxFieldScore = 0.9

var reTaxType = regexp.MustCompile(`(?i)\b(gst|hst|pst|qst|vat|sales tax|tax)\b`)

// taxLines returns the tax lines of text, each captured span once. A match
// whose payload sits under a total or subtotal label is not a tax line.
// Restatements ("Total tax") are used only when no primary line exists.
func taxLines(text string) []candidate.Tax {
	var primary, restated []candidate.Tax
	seen := map[candidate.Span]bool{}
	for i := range patterns.Tax {
		spec := &patterns.Tax[i]
		for _, m := range spec.FindAll(text) {
			span := candidate.Span{Start: m.GroupStart, End: m.GroupEnd}
			if seen[span] || patterns.CrossesTotalLine(text, m.Start, m.GroupEnd) {
				continue
			}
			v, ok := money.Parse(m.Payload)
			if !ok || !v.IsPositive() {
				continue
			}
			seen[span] = true
			b := candidate.Base{PatternName: spec.Name, Span: span, Priority: spec.Priority, RawText: m.Text}
			c := candidate.NewTax(b, v, taxType(m.Text))
			if patterns.IsTaxRestatement(text, m.Start) {
				restated = append(restated, c)
			} else {
				primary = append(primary, c)
			}
		}
	}
	if len(primary) > 0 {
		return primary
	}
	return restated
}

func taxType(s string) string {
	if m := reTaxType.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1])
	}
	return "TAX"
}

func (p *Parser) extractTax(d *document, res *Result, scores map[string]float64) {
	lines := taxLines(d.text)
	if len(lines) == 0 {
		return
	}
	total := decimal.Zero
	types := make([]string, 0, len(lines))
	for _, l := range lines {
		total = total.Add(l.Value)
		types = append(types, l.TaxType)
	}
	res.Tax = &total
	res.Debug.PatternsMatched["tax"] = fmt.Sprintf("%d_lines", len(lines))
	res.Debug.ConfidencePerField["tax"] = taxFieldScore
	scores["tax"] = taxFieldScore
	p.log().Debug("parser.tax.selected", "tax", total.String(), "lines", len(lines), "types", types)
}
