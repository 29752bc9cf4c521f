package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
)

const (
	defaultListLimit = 50
	// MaxListLimit caps a single List page.
	MaxListLimit = 500
)

// FileMeta links a parse result to its source file, if any.
type FileMeta struct {
	FileID *uuid.UUID
	// ExtractionWarnings come from turning the file into text. They are
	// stored with the receipt after the parse warnings.
	ExtractionWarnings []string
}

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	NeedsReview  *bool
	ReviewStatus constants.ReviewStatus
	Limit        int
	Offset       int
}

// Correction is a reviewer's edit. Nil fields are left as they are.
type Correction struct {
	Vendor      *string
	Amount      *decimal.Decimal
	Currency    *string
	Date        *string
	Tax         *decimal.Decimal
	CorrectedBy string
}

type ReceiptRepository interface {
	Save(ctx context.Context, res parser.Result, meta FileMeta, pctx *parser.Context) (*entity.Receipt, error)
	Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	// GetByFileID returns the newest receipt parsed from a file.
	GetByFileID(ctx context.Context, fileID uuid.UUID) (*entity.Receipt, error)
	List(ctx context.Context, filter ListFilter) ([]*entity.Receipt, error)
	Resolve(ctx context.Context, id uuid.UUID, c Correction) (*entity.Receipt, error)
}

type receiptRepository struct {
	db              *DB
	defaultCurrency string
	logger          *slog.Logger
}

// NewReceiptRepository stores results. defaultCurrency is the last resort
// when neither the document nor the caller's context names a currency.
func NewReceiptRepository(db *DB, defaultCurrency string, logger *slog.Logger) ReceiptRepository {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}
	return &receiptRepository{db: db, defaultCurrency: defaultCurrency, logger: logger}
}

// ResolveCurrency picks the stored currency and records where it came
// from: the document, the user's preference, the billing country, or the
// configured fallback.
func ResolveCurrency(res *parser.Result, pctx *parser.Context, fallback string) (string, constants.CurrencySource) {
	if res.Currency != nil {
		return *res.Currency, constants.CurrencyExtracted
	}
	if pctx != nil {
		if c := strings.ToUpper(strings.TrimSpace(pctx.UserCurrency)); common.CurrencyCode("user_currency", c) == nil {
			return c, constants.CurrencyUserPreference
		}
		if c, ok := constants.CurrencyForCountry(pctx.BillingCountry); ok {
			return c, constants.CurrencyBillingCountry
		}
	}
	return fallback, constants.CurrencyDefaulted(fallback)
}

// ReviewReason explains why a result needs a human, or "" when it does not.
func ReviewReason(res *parser.Result, source constants.CurrencySource) string {
	if !res.NeedsReview {
		return ""
	}
	var reasons []string
	if res.Vendor == nil {
		reasons = append(reasons, "missing vendor")
	}
	if res.Amount == nil {
		reasons = append(reasons, "missing amount")
	}
	if res.Date == nil {
		reasons = append(reasons, "missing date")
	}
	if strings.HasPrefix(string(source), "defaulted_to_") {
		reasons = append(reasons, "defaulted currency")
	}
	if v := res.Debug.AmountValidation; v != nil && !v.IsConsistent {
		reasons = append(reasons, "amount inconsistency")
	}
	switch {
	case res.Confidence < 0.5:
		reasons = append(reasons, fmt.Sprintf("low confidence (%.2f)", res.Confidence))
	case res.Confidence < 0.7:
		reasons = append(reasons, fmt.Sprintf("medium confidence (%.2f)", res.Confidence))
	}
	if len(reasons) == 0 {
		return "low confidence extraction"
	}
	return strings.Join(reasons, "; ")
}

// storedDebug is parse_debug as persisted.
type storedDebug struct {
	parser.Debug
	CurrencySource constants.CurrencySource `json:"currency_source"`
}

func (r *receiptRepository) Save(ctx context.Context, res parser.Result, meta FileMeta, pctx *parser.Context) (*entity.Receipt, error) {
	currency, source := ResolveCurrency(&res, pctx, r.defaultCurrency)
	warnings := append([]string(nil), res.Debug.Warnings...)
	warnings = append(warnings, meta.ExtractionWarnings...)
	if res.Currency == nil && strings.HasPrefix(string(source), "defaulted_to_") {
		warnings = append(warnings, fmt.Sprintf("Currency defaulted to %s (no strong evidence found)", currency))
		r.logger.Debug("currency defaulted", "currency", currency, "source", source)
	}
	res.Debug.Warnings = warnings

	debugJSON, err := json.Marshal(storedDebug{Debug: res.Debug, CurrencySource: source})
	if err != nil {
		return nil, fmt.Errorf("marshal debug: %w", err)
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return nil, fmt.Errorf("marshal warnings: %w", err)
	}

	now := time.Now().UTC()
	rec := &entity.Receipt{
		ID:             uuid.New(),
		FileID:         meta.FileID,
		Vendor:         res.Vendor,
		Amount:         res.Amount,
		Currency:       &currency,
		CurrencySource: source,
		Date:           res.Date,
		Tax:            res.Tax,
		Confidence:     res.Confidence,
		NeedsReview:    res.NeedsReview,
		ReviewStatus:   constants.ReviewStatusFor(res.NeedsReview),
		Warnings:       warnings,
		Debug:          debugJSON,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if reason := ReviewReason(&res, source); reason != "" {
		rec.ReviewReason = &reason
	}

	query, args := entsql.Dialect(r.db.dialect).
		Insert(tableReceipts).
		Columns(receiptColumns...).
		Values(
			rec.ID, rec.Vendor, rec.Amount, rec.Currency, string(rec.CurrencySource), rec.Date, rec.Tax,
			rec.Confidence, rec.NeedsReview, string(rec.ReviewStatus), rec.ReviewReason,
			string(warningsJSON), string(debugJSON), nil, rec.CreatedAt, rec.UpdatedAt, rec.FileID,
		).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to save receipt", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	r.logger.Info("receipt saved",
		"receipt_id", rec.ID, "vendor", rec.VendorOrEmpty(), "currency", currency,
		"currency_source", source, "confidence", rec.Confidence, "needs_review", rec.NeedsReview)
	return rec, nil
}

func (r *receiptRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	b := entsql.Dialect(r.db.dialect)
	query, args := b.Select(receiptColumns...).From(b.Table(tableReceipts)).Where(entsql.EQ("id", id)).Query()
	rec, err := scanReceipt(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get receipt", "receipt_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return rec, nil
}

func (r *receiptRepository) GetByFileID(ctx context.Context, fileID uuid.UUID) (*entity.Receipt, error) {
	b := entsql.Dialect(r.db.dialect)
	query, args := b.Select(receiptColumns...).From(b.Table(tableReceipts)).
		Where(entsql.EQ("file_id", fileID)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1).
		Query()
	rec, err := scanReceipt(r.db.SQL.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt for file %s: %w", fileID, common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to get receipt by file", "file_id", fileID, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return rec, nil
}

func (r *receiptRepository) List(ctx context.Context, filter ListFilter) ([]*entity.Receipt, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, MaxListLimit)

	b := entsql.Dialect(r.db.dialect)
	sel := b.Select(receiptColumns...).From(b.Table(tableReceipts))
	var preds []*entsql.Predicate
	if filter.NeedsReview != nil {
		preds = append(preds, entsql.EQ("needs_review", *filter.NeedsReview))
	}
	if filter.ReviewStatus != "" {
		preds = append(preds, entsql.EQ("review_status", string(filter.ReviewStatus)))
	}
	if len(preds) > 0 {
		sel = sel.Where(entsql.And(preds...))
	}
	sel = sel.OrderBy(entsql.Desc("created_at"), entsql.Asc("id")).Limit(limit)
	if filter.Offset > 0 {
		sel = sel.Offset(filter.Offset)
	}
	query, args := sel.Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list receipts", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Receipt
	for rows.Next() {
		rec, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

// Resolve applies a reviewer's corrections, keeps the before and after of
// each field, and marks the receipt reviewed.
func (r *receiptRepository) Resolve(ctx context.Context, id uuid.UUID, c Correction) (*entity.Receipt, error) {
	v := common.NewValidator().
		Optional("vendor", c.Vendor, common.Required, common.MaxLength(200)).
		Optional("currency", c.Currency, common.CurrencyCode).
		Optional("date", c.Date, common.ISODate).
		Optional("amount", c.Amount, common.NonNegative).
		Optional("tax", c.Tax, common.NonNegative)
	if err := v.Err(); err != nil {
		return nil, err
	}

	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	corrections := cur.Corrections
	if corrections == nil {
		corrections = map[string]entity.FieldCorrection{}
	}
	record := func(field string, before, after *string) {
		corrections[field] = entity.FieldCorrection{Original: before, CorrectedTo: after, CorrectedBy: c.CorrectedBy, CorrectedAt: now}
	}

	upd := entsql.Dialect(r.db.dialect).Update(tableReceipts)
	if c.Vendor != nil {
		vendor := strings.TrimSpace(*c.Vendor)
		record("vendor", cur.Vendor, &vendor)
		upd.Set("vendor", vendor)
	}
	if c.Amount != nil {
		record("amount", decimalString(cur.Amount), decimalString(c.Amount))
		upd.Set("amount", *c.Amount)
	}
	if c.Currency != nil {
		record("currency", cur.Currency, c.Currency)
		upd.Set("currency", *c.Currency).Set("currency_source", string(constants.CurrencyManual))
	}
	if c.Date != nil {
		record("date", cur.Date, c.Date)
		upd.Set("date", *c.Date)
	}
	if c.Tax != nil {
		record("tax", decimalString(cur.Tax), decimalString(c.Tax))
		upd.Set("tax", *c.Tax)
	}
	correctionsJSON, err := json.Marshal(corrections)
	if err != nil {
		return nil, fmt.Errorf("marshal corrections: %w", err)
	}

	query, args := upd.
		Set("needs_review", false).
		Set("review_status", string(constants.ReviewReviewed)).
		SetNull("review_reason").
		Set("user_corrections", string(correctionsJSON)).
		Set("updated_at", now).
		Where(entsql.EQ("id", id)).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to resolve receipt", "receipt_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	r.logger.Info("receipt reviewed", "receipt_id", id, "fields", len(corrections), "by", c.CorrectedBy)
	return r.Get(ctx, id)
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var (
		rec                                      entity.Receipt
		vendor, currency, source, date, reason   sql.NullString
		amount, tax                              decimal.NullDecimal
		status                                   string
		warningsJSON, debugJSON, correctionsJSON []byte
		fileID                                   uuid.NullUUID
	)
	err := row.Scan(
		&rec.ID, &vendor, &amount, &currency, &source, &date, &tax,
		&rec.Confidence, &rec.NeedsReview, &status, &reason,
		&warningsJSON, &debugJSON, &correctionsJSON, &rec.CreatedAt, &rec.UpdatedAt, &fileID,
	)
	if err != nil {
		return nil, err
	}
	rec.Vendor = nullString(vendor)
	rec.Currency = nullString(currency)
	rec.Date = nullString(date)
	rec.ReviewReason = nullString(reason)
	rec.CurrencySource = constants.CurrencySource(source.String)
	rec.ReviewStatus = constants.ReviewStatus(status)
	if amount.Valid {
		rec.Amount = &amount.Decimal
	}
	if tax.Valid {
		rec.Tax = &tax.Decimal
	}
	if fileID.Valid {
		rec.FileID = &fileID.UUID
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &rec.Warnings); err != nil {
			return nil, fmt.Errorf("decode warnings: %w", err)
		}
	}
	if len(debugJSON) > 0 {
		rec.Debug = json.RawMessage(debugJSON)
	}
	if len(correctionsJSON) > 0 {
		if err := json.Unmarshal(correctionsJSON, &rec.Corrections); err != nil {
			return nil, fmt.Errorf("decode corrections: %w", err)
		}
	}
	return &rec, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
