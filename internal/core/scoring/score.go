// Package scoring turns candidates into numbers and picks winners.
//
// Every scorer is a pure function of one candidate plus a few document-level
// signals. Scores are clamped to [0,1].
package scoring

import (
	"math"
	"strings"

	"github.com/joseph-ayodele/receipt-parser/internal/core/candidate"
)

const (
	// AcceptanceFloor is the lowest score a winner may have. Below it the
	// field is treated as absent.
	AcceptanceFloor = 0.3
	// ReviewThreshold separates confident winners from those that expose
	// alternatives and trigger review.
	ReviewThreshold = 0.7
)

// Base maps a pattern priority onto a starting score: 1 -> 1.0, 2 -> 0.77,
// 3 -> 0.68, 4 -> 0.62.
func Base(priority int) float64 {
	if priority < 1 {
		priority = 1
	}
	return 1 / (1 + math.Log10(float64(priority)))
}

// ScoreAmount rates a possible total.
func ScoreAmount(c candidate.Amount) float64 {
	s := Base(c.Priority)
	if c.HasStrongPrefix {
		s += 0.3
	}
	if d := c.ProximityToKeywords; d < 100 {
		s += 0.2 * (1 - float64(d)/100)
	}
	if c.InSubtotalContext {
		s -= 0.4
	}
	if c.InBlacklistContext {
		s -= 0.5
	}
	return clamp(s)
}

// VendorSignals are document-level facts that affect every vendor candidate.
type VendorSignals struct {
	IsForwarded bool
}

var vendorBase = map[string]float64{
	"payable_to":       0.85,
	"business_keyword": 0.75,
	"company_suffix":   0.7,
}

// ScoreVendor rates a possible merchant name.
func ScoreVendor(c candidate.Vendor, sig VendorSignals) float64 {
	var s float64
	switch {
	case c.FromEmailHeader:
		s = 0.9
	case c.FromSubject:
		s = 0.7
	default:
		s = 0.5
		if b, ok := vendorBase[c.PatternName]; ok {
			s = b
		}
	}

	if c.HasCompanySuffix && c.PatternName != "company_suffix" {
		s += 0.1
	}
	if c.IsTitleCase {
		s += 0.1
	}

	switch line := c.LinePosition; {
	case line == 0:
		s += 0.25
	case line == 1:
		s += 0.15
	case line == 2:
		s += 0.10
	default:
		s -= math.Min(0.4, float64(line-2)*0.02)
	}

	if c.WordCount > 5 {
		s -= 0.1
	}

	fromHeader := c.FromEmailHeader || c.PatternName == "context_sender_name"
	if sig.IsForwarded && fromHeader && LooksLikePersonName(c.Value) {
		s -= 0.6
	}
	return clamp(s)
}

var businessWords = map[string]bool{
	"inc": true, "llc": true, "ltd": true, "limited": true, "corp": true, "corporation": true,
	"co": true, "company": true, "group": true, "partners": true, "associates": true,
	"clinic": true, "medical": true, "pharmacy": true, "store": true, "shop": true, "cafe": true,
	"eyeware": true, "eyecare": true, "optical": true, "optometry": true, "dental": true,
	"restaurant": true, "bar": true, "grill": true, "hotel": true, "spa": true, "salon": true,
	"unlimited": true, "premium": true, "pro": true, "plus": true, "express": true,
	"online": true, "digital": true, "games": true, "software": true, "services": true,
	"solutions": true,
}

// LooksLikePersonName reports whether s has the "First Last" shape of a
// private sender: two or three short capitalized words, letters only, none
// of them a business word.
func LooksLikePersonName(s string) bool {
	words := strings.Fields(s)
	if len(words) < 2 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		if len(w) > 15 || businessWords[strings.ToLower(w)] {
			return false
		}
		if w[0] < 'A' || w[0] > 'Z' {
			return false
		}
		for _, r := range w[1:] {
			if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '-' || r == '\'') {
				return false
			}
		}
	}
	return true
}

// ScoreDate rates a possible transaction date.
func ScoreDate(c candidate.Date) float64 {
	s := Base(c.Priority)
	if c.HasStrongPrefix {
		s += 0.3
	}
	if c.LinePosition <= 20 {
		s += 0.2 * (1 - float64(c.LinePosition)/20)
	}
	if c.IsAmbiguous && c.DetectedLocale == "" {
		s -= 0.2
	}
	return clamp(s)
}

// ScoreCurrency rates a possible currency code.
func ScoreCurrency(c candidate.Currency) float64 {
	s := 0.6
	if c.IsExplicit {
		s = 0.9
	}
	if c.ContextCount > 1 {
		s += math.Min(0.3, float64(c.ContextCount-1)*0.05)
	}
	if p := c.SymbolProximity; p < 10 {
		s += 0.1 * (1 - float64(p)/10)
	}
	return clamp(s)
}

func clamp(s float64) float64 {
	return math.Max(0, math.Min(1, s))
}
