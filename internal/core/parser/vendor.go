package parser

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
	"github.com/joseph-ayodele/receipt-parser/internal/core/patterns"
	"github.com/joseph-ayodele/receipt-parser/internal/core/scoring"
)

const (
	headerScanLines  = 40
	suffixScanLines  = 30
	bodyScanLines    = 20
	maxVendorWords   = 6
	maxBodyLineBytes = 80
)

var (
	reVendorJunk      = regexp.MustCompile(`[^A-Za-z0-9\s&'-]`)
	reSenderNoise     = regexp.MustCompile(`(?i)\b(?:receipts?|notifications?|noreply|no-reply|billing|support)\b`)
	reLeadingGarbage  = regexp.MustCompile(`^[^\w\s]+`)
	reDateStart       = regexp.MustCompile(`^\d{1,2}[/-]\d{1,2}`)
	reDigitsOnly      = regexp.MustCompile(`^[\d\s.,:#-]+$`)
	reHasMoney        = regexp.MustCompile(`\d+[.,]\d{2}\b`)
	reDescriptorSplit = regexp.MustCompile(`[*\s]{2,}`)
	reProductSuffix   = regexp.MustCompile(`(?i)\s+(?:Unlimited|Subscription|Pro|Monthly|Annual|Premium)$`)

	titleCaser = cases.Title(language.English)
)

var skipLines = map[string]bool{
	"receipt": true, "invoice": true, "bill": true, "order": true, "thanks": true,
	"thank you": true, "trip": true, "ride": true, "booking": true,
	"your order": true, "your trip": true, "your receipt": true, "your booking": true,
}

var personalDomains = map[string]bool{
	"gmail": true, "googlemail": true, "outlook": true, "hotmail": true, "live": true,
	"yahoo": true, "icloud": true, "me": true, "aol": true, "proton": true, "protonmail": true,
}

var processors = map[string]bool{
	"paddle": true, "paddlecom": true, "paddlecom market ltd": true, "paddle com market ltd": true,
	"market ltd": true, "stripe": true, "square": true, "paypal": true,
}

var descriptorNoise = map[string]bool{"NET": true, "COM": true, "INC": true, "PADDLE": true}

// cleanVendor keeps letters, digits, spaces, "&", "'" and "-". Names that
// arrive all upper or all lower case are title-cased.
func cleanVendor(name string) string {
	name = reVendorJunk.ReplaceAllString(name, "")
	words := strings.Fields(name)
	if len(words) > maxVendorWords {
		words = words[:maxVendorWords]
	}
	name = strings.Join(words, " ")
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		name = titleCaser.String(name)
	}
	return name
}

func (p *Parser) extractVendor(d *document, res *Result, scores map[string]float64) {
	cands := p.vendorCandidates(d)
	sig := scoring.VendorSignals{IsForwarded: d.isForwarded()}
	res.Debug.VendorIsForwarded = sig.IsForwarded

	best, ok := scoring.BestVendor(cands, sig)
	if ok {
		v := best.Candidate.Value
		res.Vendor = &v
		res.Debug.PatternsMatched["vendor"] = best.Candidate.PatternName
		res.Debug.ConfidencePerField["vendor"] = round2(best.Score)
		scores["vendor"] = best.Score
		p.log().Debug("parser.vendor.selected", "vendor", v, "pattern", best.Candidate.PatternName,
			"score", best.Score, "forwarded", sig.IsForwarded)
	}
	if (!ok || best.Score < p.reviewThreshold) && len(cands) > 0 {
		res.Debug.ReviewCandidates["vendor"] = reviewList(
			scoring.TopVendors(cands, sig, len(cands)),
			func(c candidate.Vendor) string { return c.Value },
			func(c candidate.Vendor) string { return c.PatternName },
		)
	}
}

func (p *Parser) vendorCandidates(d *document) []candidate.Vendor {
	var out []candidate.Vendor
	add := func(b candidate.Base, raw string, src candidate.VendorSource) {
		name := cleanVendor(raw)
		if len(name) <= 2 {
			return
		}
		if src.NormalizedLine == "" {
			src.NormalizedLine = strings.TrimSpace(raw)
		}
		out = append(out, candidate.NewVendor(b, name, src))
	}

	// Caller hints.
	if name := senderName(d.ctx.SenderName); name != "" {
		add(candidate.Base{PatternName: "context_sender_name", Priority: 1, RawText: d.ctx.SenderName},
			name, candidate.VendorSource{FromEmailHeader: true, RawLine: d.ctx.SenderName})
	}
	if d.ctx.Subject != "" {
		for _, spec := range []*patterns.Spec{&patterns.SubjectFrom, &patterns.SubjectYour} {
			for _, m := range spec.FindAll(d.ctx.Subject) {
				add(candidate.Base{PatternName: "context_subject", Priority: spec.Priority, RawText: m.Text},
					m.Payload, candidate.VendorSource{FromSubject: true, RawLine: d.ctx.Subject})
			}
		}
	}

	// From: headers near the top.
	for _, m := range patterns.FromHeader.FindAll(d.text) {
		line, raw := d.lineAt(m.Start)
		if line >= headerScanLines {
			break
		}
		name := senderName(m.Payload)
		if name == "" {
			continue
		}
		add(baseOf(m), name, candidate.VendorSource{FromEmailHeader: true, LinePosition: line, RawLine: raw})
	}

	// Subject: lines.
	for _, sm := range patterns.SubjectLine.FindAll(d.text) {
		line, raw := d.lineAt(sm.Start)
		for _, spec := range []*patterns.Spec{&patterns.SubjectFrom, &patterns.SubjectYour} {
			for _, m := range spec.FindAll(sm.Payload) {
				b := baseOf(m)
				b.Span = candidate.Span{Start: sm.GroupStart + m.GroupStart, End: sm.GroupStart + m.GroupEnd}
				add(b, m.Payload, candidate.VendorSource{FromSubject: true, LinePosition: line, RawLine: raw})
			}
		}
	}

	// Declarations and shapes anywhere in the body.
	for _, spec := range []*patterns.Spec{&patterns.PayableTo, &patterns.BusinessKeyword, &patterns.CompanySuffix} {
		for _, m := range spec.FindAll(d.text) {
			line, raw := d.lineAt(m.Start)
			if spec == &patterns.CompanySuffix && line >= suffixScanLines {
				break
			}
			add(baseOf(m), m.Payload, candidate.VendorSource{LinePosition: line, RawLine: raw})
		}
	}

	// Plain body lines near the top.
	offset := 0
	for i, raw := range d.lines {
		if i >= bodyScanLines {
			break
		}
		start := offset
		offset += len(raw) + 1
		line := bodyLine(raw)
		if line == "" {
			continue
		}
		add(candidate.Base{PatternName: "body_line", Priority: 4, RawText: raw, Span: candidate.Span{Start: start, End: start + len(raw)}},
			line, candidate.VendorSource{LinePosition: i, RawLine: raw, NormalizedLine: line})
	}

	// Sender domain.
	if name := domainName(d.ctx.SenderDomain); name != "" {
		add(candidate.Base{PatternName: "sender_domain", Priority: 3, RawText: d.ctx.SenderDomain},
			name, candidate.VendorSource{})
	}

	return p.resolveProcessors(d, out)
}

func baseOf(m patterns.Match) candidate.Base {
	return candidate.Base{
		PatternName: m.Spec.Name,
		Span:        candidate.Span{Start: m.GroupStart, End: m.GroupEnd},
		Priority:    m.Spec.Priority,
		RawText:     m.Text,
	}
}

// senderName strips mailer words from a display name. An address is
// reduced to the organisation part of its domain.
func senderName(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"'`)
	if at := strings.LastIndexByte(s, '@'); at >= 0 {
		return domainName(s[at+1:])
	}
	s = strings.TrimSpace(reSenderNoise.ReplaceAllString(s, ""))
	s = strings.Trim(s, "-|,: ")
	return s
}

// domainName turns "receipts.uber.com" into "uber". Personal mail domains
// yield "".
func domainName(domain string) string {
	labels := strings.Split(strings.Trim(strings.ToLower(strings.TrimSpace(domain)), "."), ".")
	if len(labels) < 2 {
		return ""
	}
	i := len(labels) - 2
	if i > 0 && len(labels[len(labels)-1]) == 2 && (labels[i] == "co" || labels[i] == "com") {
		i--
	}
	name := labels[i]
	if personalDomains[name] {
		return ""
	}
	return name
}

// bodyLine returns the candidate text of a plain line, or "" when the line
// is mail furniture, money, a date, or a generic word.
func bodyLine(raw string) string {
	line := strings.TrimSpace(raw)
	for _, re := range patterns.EmailSkip {
		if re.MatchString(line) {
			return ""
		}
	}
	line = strings.TrimSpace(reLeadingGarbage.ReplaceAllString(line, ""))
	switch {
	case len(line) < 3, len(line) > maxBodyLineBytes:
		return ""
	case reDateStart.MatchString(line), reDigitsOnly.MatchString(line), reHasMoney.MatchString(line):
		return ""
	case skipLines[strings.ToLower(strings.Trim(line, "!.: "))]:
		return ""
	}
	return line
}

func isProcessor(v string) bool {
	l := strings.ToLower(v)
	return processors[l] || strings.HasPrefix(l, "paddle")
}

// resolveProcessors swaps payment processors for the merchant they charged
// on behalf of, and drops them when no merchant can be found.
func (p *Parser) resolveProcessors(d *document, cands []candidate.Vendor) []candidate.Vendor {
	out := cands[:0]
	for _, c := range cands {
		if !isProcessor(c.Value) {
			out = append(out, c)
			continue
		}
		merchant := d.realMerchant()
		if merchant == "" {
			p.log().Debug("parser.vendor.processor_dropped", "processor", c.Value)
			continue
		}
		b := c.Base
		b.PatternName = "payment_processor_merchant"
		out = append(out, candidate.NewVendor(b, merchant, candidate.VendorSource{
			FromEmailHeader: c.FromEmailHeader,
			FromSubject:     c.FromSubject,
			LinePosition:    c.LinePosition,
			RawLine:         c.RawLine,
			NormalizedLine:  merchant,
		}))
	}
	return out
}

// realMerchant reads the merchant from a card statement descriptor or a
// product line. The answer is cached on the document.
func (d *document) realMerchant() string {
	if d.merchant != nil {
		return *d.merchant
	}
	m := findMerchant(d.text)
	d.merchant = &m
	return m
}

func findMerchant(text string) string {
	if ms := patterns.StatementDescriptor.FindAll(text); len(ms) > 0 {
		parts := reDescriptorSplit.Split(strings.TrimSpace(ms[0].Payload), -1)
		for i := len(parts) - 1; i >= 0; i-- {
			part := strings.Trim(parts[i], "*. ")
			if len(part) > 2 && !descriptorNoise[strings.ToUpper(part)] {
				return titleCaser.String(strings.ToLower(part))
			}
		}
	}
	if ms := patterns.ProductLine.FindAll(text); len(ms) > 0 {
		name := strings.TrimSpace(reProductSuffix.ReplaceAllString(strings.TrimSpace(ms[0].Payload), ""))
		if len(name) > 2 {
			return name
		}
	}
	return ""
}
