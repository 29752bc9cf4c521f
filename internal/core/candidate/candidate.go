// Package candidate models provisional field extractions.
//
// A candidate records where a value came from and the context around it.
// Every contextual feature is computed once by its constructor from the full
// text; nothing in this package changes a candidate after that.
package candidate

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// NoProximity is the distance reported when no keyword was found.
const NoProximity = 999

// Span is a byte range in the normalized text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Base holds the attributes shared by every kind.
type Base struct {
	PatternName string `json:"pattern"`
	Span        Span   `json:"span"`
	Priority    int    `json:"priority"`
	RawText     string `json:"raw_text"`
}

func (b Base) Pattern() string { return b.PatternName }
func (b Base) Rank() int       { return b.Priority }
func (b Base) Offset() int     { return b.Span.Start }

// Amount is a possible transaction total.
type Amount struct {
	Base
	Value               decimal.Decimal
	HasStrongPrefix     bool
	ProximityToKeywords int
	InSubtotalContext   bool
	InBlacklistContext  bool
}

// Date is a possible transaction date.
type Date struct {
	Base
	Value           string // YYYY-MM-DD
	LinePosition    int
	HasStrongPrefix bool
	IsAmbiguous     bool
	DetectedLocale  string
}

// Vendor is a possible merchant name.
type Vendor struct {
	Base
	Value            string
	RawLine          string
	NormalizedLine   string
	FromEmailHeader  bool
	FromSubject      bool
	LinePosition     int
	HasCompanySuffix bool
	IsTitleCase      bool
	WordCount        int
}

// Currency is a possible ISO 4217 code.
type Currency struct {
	Base
	Value           string
	IsExplicit      bool
	ContextCount    int
	SymbolProximity int
}

// Tax is one tax line. Several are summed, deduplicated by span.
type Tax struct {
	Base
	Value   decimal.Decimal
	TaxType string
}

var strongKeywords = []string{"total", "amount due", "balance due", "grand total", "order total", "amount paid"}

var reBlacklist = regexp.MustCompile(`\b(?:liability|coverage|insurance|limit|point|pts|mile|reward|booking reference|confirmation|reference|breakdown)|\btax\s*%`)

const (
	strongPrefixWindow = 15
	proximityWindow    = 100
	subtotalWindow     = 30
	blacklistWindow    = 50
)

// NewAmount builds an amount candidate. impliesStrong is true when the
// pattern itself required a total keyword.
func NewAmount(b Base, value decimal.Decimal, impliesStrong bool, text string) Amount {
	start, end := clampSpan(b.Span, len(text))
	onSubtotal := onSubtotalLine(text, start, end)
	strong := !onSubtotal && (impliesStrong || hasStrongAmountPrefix(text, start))

	before := lowerASCII(text[max(0, start-subtotalWindow):start])
	around := lowerASCII(text[max(0, start-blacklistWindow):min(len(text), end+blacklistWindow)])

	return Amount{
		Base:                b,
		Value:               value,
		HasStrongPrefix:     strong,
		ProximityToKeywords: keywordProximity(text, start, end),
		InSubtotalContext:   (onSubtotal || reSubtotalLabel.MatchString(before)) && !strong,
		InBlacklistContext:  reBlacklist.MatchString(around),
	}
}

// reSubtotalLabel matches "subtotal", "sub total" and "sub-total" in
// lowercased text.
var reSubtotalLabel = regexp.MustCompile(`sub[ \t-]*total`)

// onSubtotalLine reports whether the label closest before end on its line
// is a subtotal label. "Subtotal $50.00 Total $55.00" on one line flags only
// the first amount.
func onSubtotalLine(text string, start, end int) bool {
	ls := strings.LastIndexByte(text[:start], '\n') + 1
	line := lowerASCII(text[ls:end])
	i := strings.LastIndex(line, "total")
	return i >= 0 && precededBySub(line, i)
}

// precededBySub reports whether "sub", optionally followed by blanks or a
// hyphen, ends right before pos.
func precededBySub(s string, pos int) bool {
	j := pos
	for j > 0 && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '-') {
		j--
	}
	return j >= 3 && strings.EqualFold(s[j-3:j], "sub")
}

// hasStrongAmountPrefix looks for a total keyword in the few bytes before
// start. The keyword must open its line and must not belong to "tax total"
// or "subtotal".
func hasStrongAmountPrefix(text string, start int) bool {
	ws := max(0, start-strongPrefixWindow)
	prefix := lowerASCII(text[ws:start])
	for _, kw := range strongKeywords {
		i := strings.LastIndex(prefix, kw)
		if i < 0 {
			continue
		}
		at := ws + i
		if !opensLine(text, at) {
			continue
		}
		if strings.Contains(prefix[:i], "tax") {
			continue
		}
		if precededBySub(text, at) {
			continue
		}
		return true
	}
	return false
}

// opensLine reports whether only blanks or table markup sit between the
// start of the line and pos.
func opensLine(text string, pos int) bool {
	for i := pos - 1; i >= 0; i-- {
		switch text[i] {
		case '\n':
			return true
		case ' ', '*', '|', '#', '>':
		default:
			return false
		}
	}
	return true
}

// keywordProximity is the distance from start to the nearest strong keyword
// in the surrounding window, ignoring "tax total" and "subtotal".
func keywordProximity(text string, start, end int) int {
	cs := max(0, start-proximityWindow)
	ctx := lowerASCII(text[cs:min(len(text), end+proximityWindow)])
	rel := start - cs
	best := NoProximity
	for _, kw := range strongKeywords {
		for from := 0; from < len(ctx); {
			i := strings.Index(ctx[from:], kw)
			if i < 0 {
				break
			}
			pos := from + i
			from = pos + len(kw)
			if strings.Contains(ctx[max(0, pos-10):pos], "tax") {
				continue
			}
			if precededBySub(ctx, pos) {
				continue
			}
			if d := abs(pos - rel); d < best {
				best = d
			}
		}
	}
	return best
}

// VendorSource describes where a vendor string was found.
type VendorSource struct {
	FromEmailHeader bool
	FromSubject     bool
	LinePosition    int
	RawLine         string
	NormalizedLine  string
}

var companySuffixes = []string{"inc", "llc", "ltd", "corp", "corporation", "company", "co", "gmbh", "limited", "sa", "ag"}

// NewVendor builds a vendor candidate from an already cleaned name. Casing
// is judged on the normalized line, before cleaning re-cased it.
func NewVendor(b Base, value string, src VendorSource) Vendor {
	words := strings.Fields(value)
	raw := src.RawLine
	if raw == "" {
		raw = b.RawText
	}
	norm := src.NormalizedLine
	if norm == "" {
		norm = value
	}
	return Vendor{
		Base:             b,
		Value:            value,
		RawLine:          raw,
		NormalizedLine:   norm,
		FromEmailHeader:  src.FromEmailHeader,
		FromSubject:      src.FromSubject,
		LinePosition:     src.LinePosition,
		HasCompanySuffix: hasCompanySuffix(words),
		IsTitleCase:      isTitleCase(norm, strings.Fields(norm)),
		WordCount:        len(words),
	}
}

func hasCompanySuffix(words []string) bool {
	if len(words) < 2 {
		return false
	}
	last := strings.ToLower(strings.TrimRight(words[len(words)-1], "."))
	for _, s := range companySuffixes {
		if last == s {
			return true
		}
	}
	return false
}

// isTitleCase accepts "Joe's Pizza" and "McDonald's" but not "UBER" or "uber".
func isTitleCase(value string, words []string) bool {
	if value == "" {
		return false
	}
	if strings.ToUpper(value) == value {
		return false
	}
	for _, w := range words {
		r := []rune(w)[0]
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return true
}

var dateStrongKeywords = []string{"date:", "issued:", "purchase date:", "transaction date:", "date paid", "date issued"}

// NewDate builds a date candidate. value must already be YYYY-MM-DD.
func NewDate(b Base, value string, line int, ambiguous bool, locale, text string) Date {
	start, _ := clampSpan(b.Span, len(text))
	prefix := lowerASCII(text[max(0, start-20):start])
	strong := false
	for _, kw := range dateStrongKeywords {
		if strings.Contains(prefix, kw) {
			strong = true
			break
		}
	}
	return Date{
		Base:            b,
		Value:           value,
		LinePosition:    line,
		HasStrongPrefix: strong,
		IsAmbiguous:     ambiguous,
		DetectedLocale:  locale,
	}
}

// NewCurrency builds a currency candidate. proximity is the distance to the
// amount or keyword that made it relevant, NoProximity when unknown.
func NewCurrency(b Base, code string, explicit bool, proximity int, text string) Currency {
	count := 1
	if b.RawText != "" {
		count = max(1, strings.Count(lowerASCII(text), lowerASCII(b.RawText)))
	}
	return Currency{
		Base:            b,
		Value:           strings.ToUpper(code),
		IsExplicit:      explicit,
		ContextCount:    count,
		SymbolProximity: proximity,
	}
}

// NewTax builds a tax line candidate.
func NewTax(b Base, value decimal.Decimal, taxType string) Tax {
	return Tax{Base: b, Value: value, TaxType: taxType}
}

// LineOf returns the zero-based line number holding offset.
func LineOf(text string, offset int) int {
	if offset > len(text) {
		offset = len(text)
	}
	return strings.Count(text[:max(0, offset)], "\n")
}

func clampSpan(s Span, n int) (int, int) {
	start := min(max(0, s.Start), n)
	end := min(max(start, s.End), n)
	return start, end
}

// lowerASCII lowercases A-Z only, so byte offsets stay valid.
func lowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
