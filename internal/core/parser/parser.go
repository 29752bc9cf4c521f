// Package parser extracts vendor, total, currency, date and tax from receipt
// text.
//
// Parse is a single pass: normalize, generate candidates per field, score,
// select, cross-validate, then derive a confidence and a review flag. It
// never returns an error. Missing evidence is a nil field, and anything
// doubtful is reported through Debug and NeedsReview.
//
// A Parser holds no mutable state and is safe for concurrent use.
package parser

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/internal/core/scoring"
)

// Context carries optional hints from whoever produced the text.
type Context struct {
	SenderDomain   string `json:"sender_domain,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`
	Subject        string `json:"subject,omitempty"`
	UserLocale     string `json:"user_locale,omitempty"`
	UserCurrency   string `json:"user_currency,omitempty"`
	BillingCountry string `json:"billing_country,omitempty"`
}

// Result is the outcome of one Parse call.
type Result struct {
	Vendor      *string          `json:"vendor"`
	Amount      *decimal.Decimal `json:"amount"`
	Currency    *string          `json:"currency"`
	Date        *string          `json:"date"`
	Tax         *decimal.Decimal `json:"tax"`
	Confidence  float64          `json:"confidence"`
	NeedsReview bool             `json:"needs_review"`
	Debug       Debug            `json:"debug"`
}

// Debug explains how a Result was reached.
type Debug struct {
	PatternsMatched    map[string]string            `json:"patterns_matched"`
	ConfidencePerField map[string]float64           `json:"confidence_per_field"`
	Warnings           []string                     `json:"warnings"`
	AmountValidation   *AmountValidation            `json:"amount_validation,omitempty"`
	ReviewCandidates   map[string][]ReviewCandidate `json:"review_candidates"`
	VendorIsForwarded  bool                         `json:"vendor_is_forwarded"`
	LocaleHint         string                       `json:"locale_hint,omitempty"`
}

// AmountValidation is the subtotal + tax = total check.
type AmountValidation struct {
	IsConsistent    bool            `json:"is_consistent"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	CalculatedTotal decimal.Decimal `json:"calculated_total"`
	Total           decimal.Decimal `json:"total"`
	Difference      decimal.Decimal `json:"difference"`
	Tolerance       decimal.Decimal `json:"tolerance"`
}

// ReviewCandidate is one ranked alternative shown to a reviewer.
type ReviewCandidate struct {
	Value   string  `json:"value"`
	Score   float64 `json:"score"`
	Pattern string  `json:"pattern"`
}

const (
	WarnEmptyInput    = "empty input"
	WarnInternalError = "internal error"
	WarnInconsistent  = "amount inconsistency: subtotal + tax != total"
)

// Parser runs the extraction pipeline.
type Parser struct {
	logger          *slog.Logger
	reviewThreshold float64
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger for debug traces. A nil logger is ignored and
// slog.Default is used.
func WithLogger(l *slog.Logger) Option {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithReviewThreshold moves the confidence below which results need review
// and alternatives are reported.
func WithReviewThreshold(t float64) Option {
	return func(p *Parser) {
		if t > 0 && t <= 1 {
			p.reviewThreshold = t
		}
	}
}

// New returns a Parser with the default review threshold. A Parser holds no
// per-call state and is safe for concurrent use.
func New(opts ...Option) *Parser {
	p := &Parser{reviewThreshold: scoring.ReviewThreshold}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Parser) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}

var defaultParser = New()

// Parse runs the default Parser.
func Parse(text string, pctx *Context) Result {
	return defaultParser.Parse(text, pctx)
}

// Parse extracts fields from text. pctx may be nil.
func (p *Parser) Parse(text string, pctx *Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			p.log().Error("parser.panic", "panic", fmt.Sprint(r))
			res = emptyResult(WarnInternalError)
		}
	}()

	if pctx == nil {
		pctx = &Context{}
	}
	norm := Normalize(text)
	if norm == "" {
		return emptyResult(WarnEmptyInput)
	}

	d := newDocument(norm, pctx)
	res = Result{Debug: newDebug()}
	scores := map[string]float64{}

	p.extractVendor(d, &res, scores)
	amountSpan := p.extractAmount(d, &res, scores)
	p.extractCurrency(d, amountSpan, &res, scores)
	p.extractDate(d, &res, scores)
	p.extractTax(d, &res, scores)

	valid := p.crossValidate(d, &res)
	res.Confidence = confidence(scores, len(res.Debug.Warnings))
	res.NeedsReview = p.needsReview(&res, scores, valid)

	p.log().Debug("parser.done",
		"confidence", res.Confidence,
		"needs_review", res.NeedsReview,
		"warnings", len(res.Debug.Warnings))
	return res
}

func newDebug() Debug {
	return Debug{
		PatternsMatched:    map[string]string{},
		ConfidencePerField: map[string]float64{},
		Warnings:           []string{},
		ReviewCandidates:   map[string][]ReviewCandidate{},
	}
}

func emptyResult(warning string) Result {
	dbg := newDebug()
	dbg.Warnings = append(dbg.Warnings, warning)
	return Result{NeedsReview: true, Debug: dbg}
}

func (p *Parser) warn(res *Result, msg string) {
	res.Debug.Warnings = append(res.Debug.Warnings, msg)
	p.log().Debug("parser.warning", "warning", msg)
}

// reviewList converts ranked candidates into review entries, one per
// distinct value.
func reviewList[T scoring.Ranked](ranked []scoring.Scored[T], value func(T) string, pattern func(T) string) []ReviewCandidate {
	out := make([]ReviewCandidate, 0, scoring.DefaultTop)
	seen := map[string]bool{}
	for _, s := range ranked {
		v := value(s.Candidate)
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, ReviewCandidate{Value: v, Score: round2(s.Score), Pattern: pattern(s.Candidate)})
		if len(out) == scoring.DefaultTop {
			break
		}
	}
	return out
}
