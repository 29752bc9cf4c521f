package scoring

import (
	"cmp"
	"slices"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
)

// DefaultTop is how many alternatives are kept for review.
const DefaultTop = 3

// Ranked is anything the selector can order once scores tie.
type Ranked interface {
	Rank() int
	Offset() int
}

// Scored pairs a candidate with its score.
type Scored[T Ranked] struct {
	Candidate T
	Score     float64
}

// rank scores every candidate and sorts best first. Equal scores fall back
// to the lower priority number, then to the earlier position.
func rank[T Ranked](cands []T, score func(T) float64) []Scored[T] {
	out := make([]Scored[T], 0, len(cands))
	for _, c := range cands {
		out = append(out, Scored[T]{Candidate: c, Score: score(c)})
	}
	slices.SortStableFunc(out, func(a, b Scored[T]) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Candidate.Rank(), b.Candidate.Rank()); c != 0 {
			return c
		}
		return cmp.Compare(a.Candidate.Offset(), b.Candidate.Offset())
	})
	return out
}

// Select returns the best candidate scoring at least AcceptanceFloor.
func Select[T Ranked](cands []T, score func(T) float64) (Scored[T], bool) {
	ranked := rank(cands, score)
	if len(ranked) == 0 || ranked[0].Score < AcceptanceFloor {
		return Scored[T]{}, false
	}
	return ranked[0], true
}

// Top returns up to n candidates, best first, without applying the floor.
func Top[T Ranked](cands []T, score func(T) float64, n int) []Scored[T] {
	ranked := rank(cands, score)
	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// BestAmount picks the transaction total, if any clears the floor.
func BestAmount(cands []candidate.Amount) (Scored[candidate.Amount], bool) {
	return Select(cands, ScoreAmount)
}

// BestVendor picks the merchant name. sig carries the email signals the
// vendor score depends on.
func BestVendor(cands []candidate.Vendor, sig VendorSignals) (Scored[candidate.Vendor], bool) {
	return Select(cands, vendorScorer(sig))
}

// BestDate picks the transaction date.
func BestDate(cands []candidate.Date) (Scored[candidate.Date], bool) {
	return Select(cands, ScoreDate)
}

// BestCurrency picks the ISO 4217 code.
func BestCurrency(cands []candidate.Currency) (Scored[candidate.Currency], bool) {
	return Select(cands, ScoreCurrency)
}

// TopAmounts lists the n best totals for review, ignoring the floor.
func TopAmounts(cands []candidate.Amount, n int) []Scored[candidate.Amount] {
	return Top(cands, ScoreAmount, n)
}

// TopVendors lists the n best merchant names.
func TopVendors(cands []candidate.Vendor, sig VendorSignals, n int) []Scored[candidate.Vendor] {
	return Top(cands, vendorScorer(sig), n)
}

// TopDates lists the n best dates.
func TopDates(cands []candidate.Date, n int) []Scored[candidate.Date] {
	return Top(cands, ScoreDate, n)
}

// TopCurrencies lists the n best currency codes.
func TopCurrencies(cands []candidate.Currency, n int) []Scored[candidate.Currency] {
	return Top(cands, ScoreCurrency, n)
}

func vendorScorer(sig VendorSignals) func(candidate.Vendor) float64 {
	return func(c candidate.Vendor) float64 { return ScoreVendor(c, sig) }
}
