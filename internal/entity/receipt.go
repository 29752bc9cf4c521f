package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/constants"
)

// Receipt represents a stored parse result for data transfer between layers.
type Receipt struct {
	ID             uuid.UUID                  `json:"id"`
	FileID         *uuid.UUID                 `json:"file_id,omitempty"`
	Vendor         *string                    `json:"vendor"`
	Amount         *decimal.Decimal           `json:"amount"`
	Currency       *string                    `json:"currency"`
	CurrencySource constants.CurrencySource   `json:"currency_source,omitempty"`
	Date           *string                    `json:"date"`
	Tax            *decimal.Decimal           `json:"tax"`
	Confidence     float64                    `json:"confidence"`
	NeedsReview    bool                       `json:"needs_review"`
	ReviewStatus   constants.ReviewStatus     `json:"review_status"`
	ReviewReason   *string                    `json:"review_reason,omitempty"`
	Warnings       []string                   `json:"warnings"`
	Debug          json.RawMessage            `json:"debug,omitempty"`
	Corrections    map[string]FieldCorrection `json:"user_corrections,omitempty"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

// VendorOrEmpty is the vendor for display.
func (r *Receipt) VendorOrEmpty() string {
	if r.Vendor == nil {
		return ""
	}
	return *r.Vendor
}

// FieldCorrection is one reviewer edit kept for auditing and retraining.
type FieldCorrection struct {
	Original    *string   `json:"original"`
	CorrectedTo *string   `json:"corrected_to"`
	CorrectedBy string    `json:"corrected_by,omitempty"`
	CorrectedAt time.Time `json:"corrected_at"`
}
