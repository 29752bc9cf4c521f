package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/receipt-parser/internal/core/money"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

const sheet = "Receipts"

// Filter selects the receipts to export. From and To are inclusive
// YYYY-MM-DD bounds on the receipt date; receipts without a date are kept
// only when neither bound is set.
type Filter struct {
	NeedsReview *bool
	From, To    string
}

// Service produces XLSX bytes from stored receipts.
type Service struct {
	receiptsRepo repository.ReceiptRepository
	filesRepo    repository.ReceiptFileRepository
	logger       *slog.Logger
}

func NewService(repo repository.ReceiptRepository, filesRepo repository.ReceiptFileRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{receiptsRepo: repo, filesRepo: filesRepo, logger: logger}
}

var headers = []string{
	"Date",
	"Vendor",
	"Amount",
	"Currency",
	"Display",
	"Tax",
	"Currency Source",
	"Confidence",
	"Needs Review",
	"Review Status",
	"Review Reason",
	"Warnings",
	"File Path",
	"Receipt ID",
}

// ExportReceiptsXLSX returns a workbook with one row per matching receipt,
// newest first.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, filter Filter) ([]byte, error) {
	start := time.Now()
	recs, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, bold)
	}
	review, err := f.NewStyle(&excelize.Style{Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFF2CC"}}})
	if err != nil {
		review = 0
	}

	paths := map[uuid.UUID]string{}
	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		currency := deref(r.Currency)
		write(1, deref(r.Date))
		write(2, deref(r.Vendor))
		if r.Amount != nil {
			write(3, r.Amount.InexactFloat64())
			write(5, money.FormatAmount(*r.Amount, currency))
		}
		write(4, currency)
		if r.Tax != nil {
			write(6, r.Tax.InexactFloat64())
		}
		write(7, string(r.CurrencySource))
		write(8, r.Confidence)
		write(9, r.NeedsReview)
		write(10, string(r.ReviewStatus))
		write(11, deref(r.ReviewReason))
		write(12, strings.Join(r.Warnings, "; "))
		write(13, s.filePath(ctx, r, paths))
		write(14, r.ID.String())

		if r.NeedsReview && review != 0 {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(len(headers), row)
			_ = f.SetCellStyle(sheet, first, last, review)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // vendor
	_ = f.SetColWidth(sheet, "C", "F", 14)
	_ = f.SetColWidth(sheet, "G", "J", 16)
	_ = f.SetColWidth(sheet, "K", "L", 48)
	_ = f.SetColWidth(sheet, "M", "M", 60) // path
	_ = f.SetColWidth(sheet, "N", "N", 38)
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"from", filter.From, "to", filter.To,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// collect pages through the repository and applies the date window.
func (s *Service) collect(ctx context.Context, filter Filter) ([]*entity.Receipt, error) {
	var out []*entity.Receipt
	for offset := 0; ; offset += repository.MaxListLimit {
		page, err := s.receiptsRepo.List(ctx, repository.ListFilter{
			NeedsReview: filter.NeedsReview,
			Limit:       repository.MaxListLimit,
			Offset:      offset,
		})
		if err != nil {
			return nil, fmt.Errorf("query receipts: %w", err)
		}
		for _, r := range page {
			if inWindow(r.Date, filter.From, filter.To) {
				out = append(out, r)
			}
		}
		if len(page) < repository.MaxListLimit {
			return out, nil
		}
	}
}

// ISO dates compare correctly as strings.
func inWindow(date *string, from, to string) bool {
	if from == "" && to == "" {
		return true
	}
	if date == nil {
		return false
	}
	if from != "" && *date < from {
		return false
	}
	return to == "" || *date <= to
}

func (s *Service) filePath(ctx context.Context, r *entity.Receipt, cache map[uuid.UUID]string) string {
	if r.FileID == nil || s.filesRepo == nil {
		return ""
	}
	if p, ok := cache[*r.FileID]; ok {
		return p
	}
	p := ""
	if row, err := s.filesRepo.GetByID(ctx, *r.FileID); err == nil {
		p = row.SourcePath
	} else {
		s.logger.Warn("export: file lookup failed", "file_id", *r.FileID, "error", err)
	}
	cache[*r.FileID] = p
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
