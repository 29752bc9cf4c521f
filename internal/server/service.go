package server

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/core"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/core/schema"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/export"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

const maxTextBytes = 1 << 20

type ParseRequest struct {
	Text    string          `json:"text"`
	Context *parser.Context `json:"context,omitempty"`
	Save    bool            `json:"save,omitempty"`
}

type ParseResponse struct {
	Result  parser.Result   `json:"result"`
	Receipt *entity.Receipt `json:"receipt,omitempty"`
}

type ParseFileRequest struct {
	Filename string          `json:"filename"`
	MimeType string          `json:"mime_type,omitempty"`
	Content  []byte          `json:"content"` // base64 in the JSON form
	Context  *parser.Context `json:"context,omitempty"`
	Force    bool            `json:"force,omitempty"`
}

type Extraction struct {
	Method     string           `json:"method"`
	SourceType constants.Format `json:"source_type"`
	Pages      int              `json:"pages"`
	Confidence float64          `json:"confidence"`
	Warnings   []string         `json:"warnings,omitempty"`
}

type ParseFileResponse struct {
	Receipt      *entity.Receipt `json:"receipt"`
	Result       *parser.Result  `json:"result,omitempty"`
	Extraction   *Extraction     `json:"extraction,omitempty"`
	FileID       uuid.UUID       `json:"file_id"`
	Deduplicated bool            `json:"deduplicated"`
}

type GetReceiptRequest struct {
	ID string `json:"id"`
}

type ListReceiptsRequest struct {
	NeedsReview  *bool  `json:"needs_review,omitempty"`
	ReviewStatus string `json:"review_status,omitempty"`
	Limit        int    `json:"limit,omitempty"`
	Offset       int    `json:"offset,omitempty"`
}

type ListReceiptsResponse struct {
	Receipts []*entity.Receipt `json:"receipts"`
}

type ResolveReviewRequest struct {
	ID          string           `json:"id"`
	Vendor      *string          `json:"vendor,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Currency    *string          `json:"currency,omitempty"`
	Date        *string          `json:"date,omitempty"`
	Tax         *decimal.Decimal `json:"tax,omitempty"`
	CorrectedBy string           `json:"corrected_by,omitempty"`
}

type ExportReceiptsRequest struct {
	NeedsReview *bool  `json:"needs_review,omitempty"`
	From        string `json:"from_date,omitempty"`
	To          string `json:"to_date,omitempty"`
}

type ExportReceiptsResponse struct {
	Filename string `json:"filename"`
	Content  []byte `json:"content"`
}

// Service implements ParserServer on top of the processor and repositories.
type Service struct {
	proc     *core.Processor
	receipts repository.ReceiptRepository
	exporter *export.Service
	logger   *slog.Logger
}

var _ ParserServer = (*Service)(nil)

func NewService(proc *core.Processor, receipts repository.ReceiptRepository, exporter *export.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{proc: proc, receipts: receipts, exporter: exporter, logger: logger}
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return common.LoggerFromContext(ctx, s.logger)
}

func (s *Service) Parse(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ParseRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	if len(req.Text) > maxTextBytes {
		return nil, common.InvalidArgumentErrorf("text exceeds %d bytes", maxTextBytes)
	}

	var resp ParseResponse
	if req.Save {
		res, rec, err := s.proc.ParseAndSave(ctx, req.Text, req.Context)
		if err != nil {
			return nil, err
		}
		resp.Result, resp.Receipt = res, rec
	} else {
		resp.Result = s.proc.ParseText(req.Text, req.Context)
	}
	if err := schema.ValidateResult(resp.Result); err != nil {
		s.log(ctx).Error("parse result failed schema validation", "error", err)
		return nil, common.InternalError("parse result failed schema validation")
	}
	s.log(ctx).Info("text parsed", "bytes", len(req.Text), "confidence", resp.Result.Confidence,
		"needs_review", resp.Result.NeedsReview, "saved", resp.Receipt != nil)
	return toStruct(resp)
}

func (s *Service) ParseFile(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ParseFileRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" && req.MimeType == "" {
		return nil, common.InvalidArgumentError("filename or mime_type is required")
	}
	if len(req.Content) == 0 {
		return nil, common.InvalidArgumentError("content is required")
	}

	out, err := s.proc.ProcessBytes(ctx, req.Content, req.MimeType, req.Filename,
		core.ProcessOptions{Hints: req.Context, Force: req.Force})
	if err != nil {
		return nil, err
	}
	resp := ParseFileResponse{Receipt: out.Receipt, FileID: out.File.ID, Deduplicated: out.Deduplicated}
	if !out.Deduplicated {
		resp.Result = &out.Result
		resp.Extraction = &Extraction{
			Method:     out.Extraction.Method,
			SourceType: out.Extraction.SourceType,
			Pages:      out.Extraction.Pages,
			Confidence: out.Extraction.Confidence,
			Warnings:   out.Extraction.Warnings,
		}
	}
	return toStruct(resp)
}

func (s *Service) GetReceipt(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req GetReceiptRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	rec, err := s.receipts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return toStruct(rec)
}

func (s *Service) ListReceipts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListReceiptsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	status := constants.ReviewStatus(strings.TrimSpace(req.ReviewStatus))
	switch status {
	case "", constants.ReviewNotRequired, constants.ReviewPending, constants.ReviewReviewed:
	default:
		return nil, common.InvalidArgumentErrorf("review_status %q is not one of not_required, pending, reviewed", status)
	}
	if req.Limit < 0 || req.Offset < 0 {
		return nil, common.InvalidArgumentError("limit and offset must be non-negative")
	}

	recs, err := s.receipts.List(ctx, repository.ListFilter{
		NeedsReview:  req.NeedsReview,
		ReviewStatus: status,
		Limit:        req.Limit,
		Offset:       req.Offset,
	})
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*entity.Receipt{}
	}
	s.log(ctx).Info("receipts listed", "count", len(recs))
	return toStruct(ListReceiptsResponse{Receipts: recs})
}

func (s *Service) ResolveReview(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ResolveReviewRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	rec, err := s.receipts.Resolve(ctx, id, repository.Correction{
		Vendor:      req.Vendor,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Date:        req.Date,
		Tax:         req.Tax,
		CorrectedBy: req.CorrectedBy,
	})
	if err != nil {
		return nil, err
	}
	return toStruct(rec)
}

func (s *Service) ExportReceipts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ExportReceiptsRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, err
	}
	v := common.NewValidator().
		Field("from_date", req.From, optionalISODate).
		Field("to_date", req.To, optionalISODate)
	if err := v.Err(); err != nil {
		return nil, err
	}
	data, err := s.exporter.ExportReceiptsXLSX(ctx, export.Filter{NeedsReview: req.NeedsReview, From: req.From, To: req.To})
	if err != nil {
		return nil, err
	}
	name := "receipts-" + time.Now().UTC().Format("20060102-150405") + ".xlsx"
	return toStruct(ExportReceiptsResponse{Filename: name, Content: data})
}

func optionalISODate(field string, value any) *common.ValidationError {
	if s, _ := value.(string); s == "" {
		return nil
	}
	return common.ISODate(field, value)
}

func parseID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, common.InvalidArgumentError("id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, common.InvalidArgumentError("id must be a UUID")
	}
	return id, nil
}
