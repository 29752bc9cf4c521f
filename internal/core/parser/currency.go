package parser

import (
	"regexp"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
	"github.com/joseph-ayodele/receipt-parser/internal/core/scoring"
)

const currencyWindow = 100

var (
	reCurrencyCode   = regexp.MustCompile(`\b(CAD|USD|EUR|GBP|AUD|NZD|JPY|CHF)\b`)
	rePrefixedDollar = regexp.MustCompile(`\b(CA?|US|AU|NZ) ?\$`)
	reCurrencySymbol = regexp.MustCompile(`[€£¥]`)
	reTotalKeyword   = regexp.MustCompile(`(?i)total|amount|charged|paid`)
	reCanadianTax    = regexp.MustCompile(`(?i)\b(?:GST|PST|HST|QST|CANADA)\b`)
)

var dollarPrefixes = map[string]string{"C": "CAD", "CA": "CAD", "US": "USD", "AU": "AUD", "NZ": "NZD"}

var symbolCodes = map[string]string{"€": "EUR", "£": "GBP", "¥": "JPY"}

// currencyHit is one currency mention before it becomes a candidate.
type currencyHit struct {
	code     string
	explicit bool
	start    int
	end      int
	raw      string
}

// currencyHits finds codes, prefixed dollars and symbols in text[from:to].
// A bare "$" is not a hit.
func currencyHits(text string, from, to int) []currencyHit {
	from, to = max(0, from), min(len(text), to)
	if from >= to {
		return nil
	}
	window := text[from:to]
	var out []currencyHit
	for _, loc := range reCurrencyCode.FindAllStringSubmatchIndex(window, -1) {
		out = append(out, currencyHit{code: window[loc[2]:loc[3]], explicit: true, start: from + loc[0], end: from + loc[1], raw: window[loc[0]:loc[1]]})
	}
	for _, loc := range rePrefixedDollar.FindAllStringSubmatchIndex(window, -1) {
		out = append(out, currencyHit{code: dollarPrefixes[window[loc[2]:loc[3]]], start: from + loc[0], end: from + loc[1], raw: window[loc[0]:loc[1]]})
	}
	for _, loc := range reCurrencySymbol.FindAllStringIndex(window, -1) {
		sym := window[loc[0]:loc[1]]
		out = append(out, currencyHit{code: symbolCodes[sym], start: from + loc[0], end: from + loc[1], raw: sym})
	}
	return out
}

func (h currencyHit) candidate(text, pattern string, priority, proximity int) candidate.Currency {
	b := candidate.Base{
		PatternName: pattern,
		Span:        candidate.Span{Start: h.start, End: h.end},
		Priority:    priority,
		RawText:     h.raw,
	}
	return candidate.NewCurrency(b, h.code, h.explicit, proximity, text)
}

// spanDistance is 0 when [s,e) overlaps span and the gap otherwise.
func spanDistance(s, e int, span candidate.Span) int {
	switch {
	case e <= span.Start:
		return span.Start - e
	case s >= span.End:
		return s - span.End
	}
	return 0
}

func currencyCandidates(d *document, amountSpan *candidate.Span) []candidate.Currency {
	text := d.text
	var out []candidate.Currency

	// (a) Around the selected total.
	if amountSpan != nil {
		for _, h := range currencyHits(text, amountSpan.Start-currencyWindow, amountSpan.End+currencyWindow) {
			out = append(out, h.candidate(text, "amount_vicinity", 1, spanDistance(h.start, h.end, *amountSpan)))
		}
	}

	// (b) Codes following a total keyword.
	usdNearTotal := false
	for _, loc := range reTotalKeyword.FindAllStringIndex(text, -1) {
		for _, h := range currencyHits(text, loc[1], loc[0]+currencyWindow) {
			if !h.explicit {
				continue
			}
			if h.code == "USD" {
				usdNearTotal = true
			}
			out = append(out, h.candidate(text, "total_keyword", 2, h.start-loc[1]))
		}
	}

	// (c) Canadian sales taxes imply CAD unless USD is spelled out at a total.
	if loc := reCanadianTax.FindStringIndex(text); loc != nil && !usdNearTotal {
		h := currencyHit{code: "CAD", start: loc[0], end: loc[1]}
		out = append(out, h.candidate(text, "canadian_tax", 3, candidate.NoProximity))
	}

	// (d) and (e) Prefixed dollars and unambiguous symbols anywhere.
	for _, h := range currencyHits(text, 0, len(text)) {
		switch {
		case h.explicit:
		case len(h.raw) > 1 && h.raw[len(h.raw)-1] == '$':
			out = append(out, h.candidate(text, "prefixed_dollar", 3, candidate.NoProximity))
		default:
			out = append(out, h.candidate(text, "currency_symbol", 4, candidate.NoProximity))
		}
	}
	return out
}

func (p *Parser) extractCurrency(d *document, amountSpan *candidate.Span, res *Result, scores map[string]float64) {
	cands := currencyCandidates(d, amountSpan)
	best, ok := scoring.BestCurrency(cands)
	if ok {
		c := best.Candidate.Value
		res.Currency = &c
		res.Debug.PatternsMatched["currency"] = best.Candidate.PatternName
		res.Debug.ConfidencePerField["currency"] = round2(best.Score)
		scores["currency"] = best.Score
		p.log().Debug("parser.currency.selected", "currency", c, "pattern", best.Candidate.PatternName, "score", best.Score)
	}
	if (!ok || best.Score < p.reviewThreshold) && len(cands) > 0 {
		res.Debug.ReviewCandidates["currency"] = reviewList(
			scoring.TopCurrencies(cands, len(cands)),
			func(c candidate.Currency) string { return c.Value },
			func(c candidate.Currency) string { return c.PatternName },
		)
	}
}
