// Package patterns holds the named, prioritized regular expressions that
// produce extraction candidates.
//
// A pattern only finds text. Whether a match is accepted is decided by the
// scoring package, so priority here is an input to scoring and nothing more.
// Every expression has exactly one capture group holding the payload. Field
// patterns are case-insensitive; a few vendor shapes rely on capitalization
// and are not.
package patterns

import (
	"regexp"
	"strings"
)

// Spec is one named pattern.
type Spec struct {
	Name     string
	Priority int
	Regex    *regexp.Regexp
	// ImpliesStrong marks patterns whose expression already requires a
	// total/paid keyword directly before the payload.
	ImpliesStrong bool
	Example       string
}

// Match is a single hit of a Spec against a text.
type Match struct {
	Spec *Spec
	// Start and End delimit the whole match.
	Start, End int
	// GroupStart and GroupEnd delimit the payload capture.
	GroupStart, GroupEnd int
	Payload              string
	Text                 string
}

// FindAll returns every non-overlapping match of s in text, in order.
// Matches whose capture group did not participate are skipped.
func (s *Spec) FindAll(text string) []Match {
	locs := s.Regex.FindAllStringSubmatchIndex(text, -1)
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		if len(loc) < 4 || loc[2] < 0 {
			continue
		}
		out = append(out, Match{
			Spec:       s,
			Start:      loc[0],
			End:        loc[1],
			GroupStart: loc[2],
			GroupEnd:   loc[3],
			Payload:    text[loc[2]:loc[3]],
			Text:       text[loc[0]:loc[1]],
		})
	}
	return out
}

func spec(name string, priority int, strong bool, expr, example string) Spec {
	return Spec{
		Name:          name,
		Priority:      priority,
		Regex:         regexp.MustCompile(`(?im)` + expr),
		ImpliesStrong: strong,
		Example:       example,
	}
}

// caseSensitive is for vendor shapes where capitalization is the signal.
func caseSensitive(name string, priority int, expr, example string) Spec {
	return Spec{
		Name:     name,
		Priority: priority,
		Regex:    regexp.MustCompile(`(?m)` + expr),
		Example:  example,
	}
}

// number is a US-style amount with mandatory cents.
const number = `\d{1,3}(?:,\d{3})*\.\d{2}`

const sym = `[$€£¥]`

// Amount patterns, strongest evidence first.
var Amount = []Spec{
	spec("explicit_payment", 1, true,
		`(?:amount\s+paid|total\s+paid|grand\s+total|final\s+total)[\s:]*`+sym+`?\s*(`+number+`)`,
		"Amount Paid: $59.52"),
	spec("markdown_bold_total", 1, true,
		`\*\*total[\s:]+\$?\s*(`+number+`)\*\*`,
		"**Total: $59.52**"),
	spec("order_summary_pipe", 1, true,
		`(?:order\s+summary|payment\s+summary)[\s\S]{0,200}?\btotal:\s*\|\s*[A-Z]{0,2}\$?\s*(`+number+`)`,
		"Order Summary ... Total: | C$93.79"),
	spec("total_pipe_cad", 1, true,
		`\btotal:\s*\|\s*C\$\s*(`+number+`)`,
		"Total: | C$93.79"),
	spec("total_cad_format", 1, true,
		`total\s+cad\s+\$\s*\$?\s*(`+number+`)`,
		"TOTAL CAD $ 153.84"),
	spec("table_pipe_currency", 2, true,
		`\b(?:total|grand\s+total)[\s:*]*\|\s*(\d{1,3}(?:,\d{3})*\.?\d{0,2})\s*(?:CAD|USD|EUR|GBP|AUD)`,
		"Total | 6.99 CAD"),
	spec("markdown_bold_pipe", 2, true,
		`\*\*(?:total|amount\s+due)\*\*[\s:]*\|\s*(\d{1,3}(?:,\d{3})*\.?\d{0,2})`,
		"**Total** | 59.52"),
	spec("total_strong_context", 2, true,
		`(?:^|\n|\|)\s*total[\s:]+`+sym+`?\s*(`+number+`)`,
		"Total: $59.52"),
	spec("generic_total", 3, true,
		`\b(?:total|amount|sum|paid)[\s:|]*`+sym+`?\s*(`+number+`)`,
		"Total $59.52"),
	spec("amount_currency_code", 4, false,
		`(`+number+`)\s+(?:CAD|USD|EUR|GBP|AUD|NZD|CHF)\b`,
		"59.52 CAD"),
	spec("currency_symbol", 4, false,
		sym+`\s*(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`,
		"$59.52"),
	spec("euro_spaced", 4, false,
		`€\s+(`+number+`)`,
		"€ 59.52"),
}

// Tax patterns. Summary restatements ("Tax total", "Tax breakdown") are not
// primary tax lines; see IsTaxRestatement.
var Tax = []Spec{
	spec("vat_with_percent", 1, false,
		`vat[\s:()%\d|]*`+sym+`?\s*(`+number+`)`,
		"VAT (23%): € 643.77"),
	spec("tax_generic", 1, false,
		`tax[\s:|]*`+sym+`?\s*(`+number+`)`,
		"Tax: $5.99"),
	spec("sales_tax_hst_gst", 1, false,
		`(?:sales tax|hst|gst|pst|qst)[\s:()%\d|]*`+sym+`?\s*(`+number+`)`,
		"HST: $1.09"),
	spec("tax_pipe_separator", 1, false,
		`(?:hst|gst|tax|vat)\s*\|\s*`+sym+`?\s*(`+number+`)`,
		"HST| $1.09"),
	spec("hst_gst_no_colon", 1, false,
		`(?:hst|gst)\s+`+sym+`\s*(`+number+`)`,
		"HST $1.09"),
	spec("country_prefix_tax", 1, false,
		`(?:gst|hst|pst)(?:/[A-Z]+)?\s*\([^)]+\):\s*\$?\s*(`+number+`)`,
		"CANADA GST/TPS (5%): $2.62"),
	spec("tax_pipe_urban", 1, false,
		`tax:\s*\|\s*[A-Z]{0,2}\$?\s*(`+number+`)`,
		"Tax: | C$10.79"),
	spec("sales_tax_multiline", 1, false,
		`sales\s+tax\s*\n\s*(?:[A-Z]{2,3})?\$?\s*(`+number+`)`,
		"Sales Tax\n$0.33"),
	spec("gst_percent_multiline", 1, false,
		`(?:gst|hst|pst)[\s:]*\d+%`+nextDollar+number+nextDollar+`(`+number+`)`,
		"GST : 5% ... CA $ 1.19 ... CA $ 1.19"),
}

// nextDollar reaches the next "$" amount at most two lines further down,
// never skipping over another dollar sign.
const nextDollar = `(?:[^\n$]*\n){0,2}[^\n$]*?(?:[A-Z]{2,3})?[ \t]*\$[ \t]*`

var reTotalLine = regexp.MustCompile(`(?i)^[\s*|#>]*(?:sub[ \t-]*total|total|grand\s+total|amount\s+(?:due|paid)|balance\s+due)\b`)

// CrossesTotalLine reports whether a match that started at from reaches a
// later line opening with a total or subtotal label before to. A tax
// payload found there belongs to that label, not to the tax line.
func CrossesTotalLine(text string, from, to int) bool {
	to = min(to, len(text))
	for from < to {
		i := strings.IndexByte(text[from:to], '\n')
		if i < 0 {
			return false
		}
		ls := from + i + 1
		le := len(text)
		if j := strings.IndexByte(text[ls:], '\n'); j >= 0 {
			le = ls + j
		}
		if ls < to && reTotalLine.MatchString(text[ls:le]) {
			return true
		}
		from = ls
	}
	return false
}

var reTaxRestatement = regexp.MustCompile(`(?i)\btax\s+total\b|\btotal\s+tax\b|\btax\s+breakdown\b`)

// IsTaxRestatement reports whether the line holding start restates a tax
// already listed elsewhere ("Total tax: $5.00").
func IsTaxRestatement(text string, start int) bool {
	ls := strings.LastIndexByte(text[:start], '\n') + 1
	le := len(text)
	if i := strings.IndexByte(text[start:], '\n'); i >= 0 {
		le = start + i
	}
	return reTaxRestatement.MatchString(text[ls:le])
}

// Subtotal patterns.
var Subtotal = []Spec{
	spec("subtotal", 1, false,
		`sub[ \t-]*total[\s:]*`+sym+`?\s*(`+number+`)`,
		"Subtotal: $50.00"),
	spec("trip_fare", 2, false,
		`\b(?:trip\s+fare|fare)[\s:|]*`+sym+`?\s*(`+number+`)`,
		"Trip Fare: $10.00"),
}

const monthWord = `[A-Za-z]{3,9}`

// Date patterns.
var Date = []Spec{
	spec("explicit_date_prefix", 1, false,
		`(?:date\s+paid|date\s+issued|date\s+of\s+issue|invoice\s+date|issued\s+on|paid\s+on)[\s:]*(`+
			monthWord+`\.?\s+\d{1,2},?\s+\d{4}|\d{1,2}(?:st|nd|rd|th)?\s+`+monthWord+`,?\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`,
		"Date paid: November 23, 2025"),
	spec("iso_date", 2, false,
		`\b(\d{4}-\d{2}-\d{2})\b`,
		"2024-01-15"),
	spec("month_name_date", 2, false,
		`\b(`+monthWord+`\.?\s+\d{1,2},?\s+\d{4})`,
		"Jan 15, 2024"),
	spec("ordinal_date", 2, false,
		`\b(\d{1,2}(?:st|nd|rd|th)\s+`+monthWord+`,?\s+\d{4})`,
		"23rd November 2025"),
	spec("month_slash_date", 3, false,
		`\b(`+monthWord+`\s+\d{1,2}/\d{4})`,
		"April 9/2025"),
	spec("numeric_date_ambiguous", 3, false,
		`\b(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})\b`,
		"01/15/2024"),
}

// Vendor patterns. Provenance for these is decided by the parser.
var (
	FromHeader = spec("from_header", 1, false,
		`^\s*from:\s*\**([^<*\n]+?)[*\s]*(?:<|$)`,
		"From: Uber <receipts@uber.com>")
	SubjectLine = spec("subject_line", 1, false,
		`^\s*subject:\s*(.+)$`,
		"Subject: Your Uber receipt")
	SubjectFrom = spec("subject_from", 2, false,
		`(?:receipt|invoice|order|purchase|payment)\s+(?:from|at|with)\s+([A-Za-z0-9][A-Za-z0-9&'.\- ]{1,60}?)\s*(?:[!.:#(]|$)`,
		"Your receipt from Starbucks")
	SubjectYour = spec("subject_your", 2, false,
		`\byour\s+([A-Za-z0-9][A-Za-z0-9&'.\- ]{0,40}?)\s+(?:receipt|order|invoice|purchase|trip|booking|subscription)\b`,
		"Your Uber receipt")
	PayableTo = spec("payable_to", 1, false,
		`payable\s+to:?\s*([A-Za-z0-9][A-Za-z0-9&'.\- ]{2,60}?)\s*(?:[.,\n]|$)`,
		"Make cheques payable to: Bright Smiles Dental")
	BusinessKeyword = caseSensitive("business_keyword", 2,
		`^\s*([A-Z][A-Za-z0-9&'.\- ]{0,40}?\b(?:Clinic|Eyeware|Eyewear|Eyecare|Optical|Optometry|Dental|Pharmacy|Restaurant|Cafe|Café|Bakery|Grill|Bistro|Hotel|Salon|Spa|Market|Store|Shop|Studio|Garage|Hardware))\b`,
		"Clearview Eyeware")
	CompanySuffix = caseSensitive("company_suffix", 2,
		`([A-Z][a-zA-Z&' ]{1,60} (?:Incorporated|Inc|LLC|Ltd|Limited|Corp|Corporation|Labs|GmbH))\b`,
		"Lovable Labs Inc")
	StatementDescriptor = spec("statement_descriptor", 2, false,
		`statement\s+as:\s*\n?\s*([A-Z][A-Z0-9 .*]+?)\s*(?:\n|$)`,
		"appear on your statement as: PADDLE.NET* GEOGUESSR")
	ProductLine = caseSensitive("product_line", 3,
		`(?:Product|Description|Item)\s*\n\s*([A-Z][a-zA-Z ]{2,30}?)(?:\s+(?:Unlimited|Subscription|Pro|Monthly|Annual|Premium)\b|\s*$)`,
		"Product\nGeoGuessr Unlimited")
)

// EmailSkip matches lines that are email or page furniture, never a vendor.
var EmailSkip = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*[-=]+\s*(?:begin\s+)?forwarded\s+message\s*[-=:]*`),
	regexp.MustCompile(`(?i)^\s*begin\s+forwarded\s+message`),
	regexp.MustCompile(`(?i)^\s*(?:from|to|date|subject|sent|cc|bcc|reply-to):`),
	regexp.MustCompile(`(?i)^\s*\[?https?://`),
	regexp.MustCompile(`(?i)^\s*mailto:`),
	regexp.MustCompile(`(?i)^\s*page\s+\d+`),
	regexp.MustCompile(`(?i)^\s*\d+\s+of\s+\d+`),
}

// ForwardMarkers identify a forwarded message body.
var ForwardMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*[-=]+\s*forwarded\s+message\s*[-=]*`),
	regexp.MustCompile(`(?im)^\s*begin\s+forwarded\s+message`),
	regexp.MustCompile(`(?im)^\s*subject:\s*(?:fwd?|fw)\s*:`),
	regexp.MustCompile(`(?im)^\s*-+\s*original\s+message\s*-+`),
}

// ForwardSubject matches a subject line that was forwarded.
var ForwardSubject = regexp.MustCompile(`(?i)^\s*(?:fwd?|fw)\s*:`)
