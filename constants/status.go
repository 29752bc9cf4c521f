package constants

// ReviewStatus is the lifecycle of a stored receipt's manual review.
type ReviewStatus string

// Stable values (store these exact strings in DB).
const (
	ReviewNotRequired ReviewStatus = "not_required"
	ReviewPending     ReviewStatus = "pending"
	ReviewReviewed    ReviewStatus = "reviewed"
)

// ReviewStatusFor is the initial status of a freshly parsed receipt.
func ReviewStatusFor(needsReview bool) ReviewStatus {
	if needsReview {
		return ReviewPending
	}
	return ReviewNotRequired
}

// CurrencySource records where a stored currency came from.
type CurrencySource string

const (
	CurrencyExtracted      CurrencySource = "extracted"
	CurrencyUserPreference CurrencySource = "user_preference"
	CurrencyBillingCountry CurrencySource = "billing_country"
	CurrencyManual         CurrencySource = "manual"
)

// CurrencyDefaulted is the provenance for a configured fallback code.
func CurrencyDefaulted(code string) CurrencySource {
	return CurrencySource("defaulted_to_" + code)
}
