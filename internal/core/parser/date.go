package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
	"github.com/joseph-ayodele/receipt-parser/internal/core/patterns"
	"github.com/joseph-ayodele/receipt-parser/internal/core/scoring"
)

// dateOrder says how to read the first two fields of a numeric date.
type dateOrder int

const (
	monthFirst dateOrder = iota
	dayFirst
)

func (o dateOrder) String() string {
	if o == dayFirst {
		return "DD/MM"
	}
	return "MM/DD"
}

func (o dateOrder) flip() dateOrder {
	if o == dayFirst {
		return monthFirst
	}
	return dayFirst
}

var (
	reNumericDate  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2}|\d{4})$`)
	reOrdinal      = regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)`)
	reDateComma    = regexp.MustCompile(`\s*,\s*|\s+`)
	reMonthDot     = regexp.MustCompile(`^([A-Za-z]{3,9})\.`)
	reEuropeanDocs = regexp.MustCompile(`£|\bVAT\b`)
)

const minYear, maxYear = 1970, 2100

// Regions that write numeric dates month first.
var monthFirstRegions = map[string]bool{"US": true, "CA": true, "PH": true, "FM": true, "MH": true, "PW": true}

var countryNames = map[string]string{
	"canada": "CA", "united states": "US", "usa": "US", "united kingdom": "GB", "uk": "GB",
	"australia": "AU", "new zealand": "NZ", "ireland": "IE", "france": "FR", "germany": "DE",
}

var textLayouts = []string{
	"January 2 2006", "Jan 2 2006",
	"2 January 2006", "2 Jan 2006",
	"January 2/2006", "Jan 2/2006",
	"2006-01-02",
}

// resolveOrder picks the numeric date order from, in turn, the user's
// locale, the billing country and tax wording in the document. hint is
// empty when nothing decided it.
func resolveOrder(d *document) (order dateOrder, locale, hint string) {
	if d.ctx.UserLocale != "" {
		if tag, err := language.Parse(d.ctx.UserLocale); err == nil {
			if r, conf := tag.Region(); conf >= language.High {
				return regionOrder(r.String()), r.String(), "user_locale:" + d.ctx.UserLocale
			}
		}
	}
	if region := billingRegion(d.ctx.BillingCountry); region != "" {
		return regionOrder(region), region, "billing_country:" + region
	}
	if reCanadianTax.MatchString(d.text) {
		return monthFirst, "CA", "document:canadian_tax"
	}
	if reEuropeanDocs.MatchString(d.text) {
		return dayFirst, "EU", "document:vat"
	}
	return monthFirst, "", ""
}

func billingRegion(country string) string {
	c := strings.TrimSpace(country)
	if c == "" {
		return ""
	}
	if code, ok := countryNames[strings.ToLower(c)]; ok {
		return code
	}
	if r, err := language.ParseRegion(c); err == nil {
		return r.String()
	}
	return ""
}

func regionOrder(region string) dateOrder {
	if monthFirstRegions[region] {
		return monthFirst
	}
	return dayFirst
}

// parseNumericDate reads "a/b/y" in the preferred order, falling back to the
// other one. ambiguous is true when both orders would be valid.
func parseNumericDate(s string, order dateOrder) (value string, ambiguous, ok bool) {
	m := reNumericDate.FindStringSubmatch(s)
	if m == nil {
		return "", false, false
	}
	a, _ := strconv.Atoi(m[1])
	b, _ := strconv.Atoi(m[2])
	y, _ := strconv.Atoi(m[3])
	if len(m[3]) == 2 {
		y += 2000
	}
	ambiguous = a != b && a <= 12 && b <= 12
	for _, o := range []dateOrder{order, order.flip()} {
		month, day := a, b
		if o == dayFirst {
			month, day = b, a
		}
		if v, ok := makeDate(y, month, day); ok {
			return v, ambiguous, true
		}
	}
	return "", ambiguous, false
}

func makeDate(y, m, d int) (string, bool) {
	if y < minYear || y > maxYear || m < 1 || m > 12 || d < 1 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return "", false
	}
	return t.Format(time.DateOnly), true
}

// parseTextDate handles month names, ordinals and ISO dates.
func parseTextDate(s string) (string, bool) {
	s = reOrdinal.ReplaceAllString(strings.TrimSpace(s), "$1")
	s = reMonthDot.ReplaceAllString(s, "$1")
	s = strings.Replace(s, "Sept ", "Sep ", 1)
	s = strings.TrimSpace(reDateComma.ReplaceAllString(s, " "))
	s = strings.ReplaceAll(s, " / ", "/")
	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			if t.Year() < minYear || t.Year() > maxYear {
				return "", false
			}
			return t.Format(time.DateOnly), true
		}
	}
	return "", false
}

func dateCandidates(d *document, order dateOrder, locale string) []candidate.Date {
	var out []candidate.Date
	for i := range patterns.Date {
		spec := &patterns.Date[i]
		for _, m := range spec.FindAll(d.text) {
			value, ambiguous, ok := parseNumericDate(m.Payload, order)
			if !ok && !reNumericDate.MatchString(m.Payload) {
				value, ok = parseTextDate(m.Payload)
			}
			if !ok {
				continue
			}
			b := candidate.Base{
				PatternName: spec.Name,
				Span:        candidate.Span{Start: m.GroupStart, End: m.GroupEnd},
				Priority:    spec.Priority,
				RawText:     m.Text,
			}
			line, _ := d.lineAt(m.GroupStart)
			detected := ""
			if ambiguous {
				detected = locale
			}
			out = append(out, candidate.NewDate(b, value, line, ambiguous, detected, d.text))
		}
	}
	return out
}

func (p *Parser) extractDate(d *document, res *Result, scores map[string]float64) {
	order, locale, hint := resolveOrder(d)
	if hint != "" {
		res.Debug.LocaleHint = fmt.Sprintf("%s (%s)", order, hint)
	}

	cands := dateCandidates(d, order, locale)
	best, ok := scoring.BestDate(cands)
	if ok {
		v := best.Candidate.Value
		res.Date = &v
		res.Debug.PatternsMatched["date"] = best.Candidate.PatternName
		res.Debug.ConfidencePerField["date"] = round2(best.Score)
		scores["date"] = best.Score
		p.log().Debug("parser.date.selected", "date", v, "pattern", best.Candidate.PatternName,
			"score", best.Score, "order", order.String())
	}
	if (!ok || best.Score < p.reviewThreshold) && len(cands) > 0 {
		res.Debug.ReviewCandidates["date"] = reviewList(
			scoring.TopDates(cands, len(cands)),
			func(c candidate.Date) string { return c.Value },
			func(c candidate.Date) string { return c.PatternName },
		)
	}
}
