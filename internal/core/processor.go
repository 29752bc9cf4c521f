package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

// TextExtractor turns file content into text. *ocr.Extractor satisfies it.
type TextExtractor interface {
	ExtractBytes(ctx context.Context, data []byte, mimeType, filename string) (ocr.ExtractionResult, error)
}

// Recorder observes finished parses. The metrics package implements it.
type Recorder interface {
	ObserveParse(source string, res parser.Result, elapsed time.Duration)
	ObserveFailure(stage string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveParse(string, parser.Result, time.Duration) {}
func (nopRecorder) ObserveFailure(string)                             {}

// ProcessOptions tune a single ProcessFile/ProcessBytes call.
type ProcessOptions struct {
	// Hints are merged under whatever the extractor found (e.g. email headers).
	Hints *parser.Context
	// Force reprocesses content that already has a receipt.
	Force bool
}

// Outcome is what processing a file produced. Result is the parser's output
// as is: its confidence and Debug.Warnings cover parsing only. Extraction
// warnings stay in Extraction.Warnings and are stored on the Receipt next to
// the parse warnings without lowering its confidence.
type Outcome struct {
	File         *entity.ReceiptFile
	Receipt      *entity.Receipt
	Extraction   ocr.ExtractionResult
	Result       parser.Result
	Deduplicated bool
}

// Processor coordinates text extraction, parsing and persistence for one file.
type Processor struct {
	logger    *slog.Logger
	extractor TextExtractor
	parser    *parser.Parser
	files     repository.ReceiptFileRepository
	receipts  repository.ReceiptRepository
	recorder  Recorder
}

type ProcessorOption func(*Processor)

func WithRecorder(r Recorder) ProcessorOption {
	return func(p *Processor) {
		if r != nil {
			p.recorder = r
		}
	}
}

func WithParser(ps *parser.Parser) ProcessorOption {
	return func(p *Processor) {
		if ps != nil {
			p.parser = ps
		}
	}
}

func NewProcessor(
	logger *slog.Logger,
	extractor TextExtractor,
	files repository.ReceiptFileRepository,
	receipts repository.ReceiptRepository,
	opts ...ProcessorOption,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:    logger,
		extractor: extractor,
		parser:    parser.New(parser.WithLogger(logger)),
		files:     files,
		receipts:  receipts,
		recorder:  nopRecorder{},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// ProcessFile reads path, records the file by content hash, extracts its
// text, parses it and stores the receipt. Content already parsed is not
// parsed again unless opts.Force is set.
func (p *Processor) ProcessFile(ctx context.Context, path string, opts ProcessOptions) (*Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	ext := filepath.Ext(abs)
	if !constants.IsAllowedExt(ext) {
		p.logger.Warn("unsupported file extension", "path", abs, "ext", ext)
		return nil, fmt.Errorf("%w: extension %q", common.ErrUnsupported, ext)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return p.process(ctx, abs, data, constants.MIMEForExt(ext), opts)
}

// ProcessBytes is ProcessFile for uploaded content. name is recorded as the
// source path.
func (p *Processor) ProcessBytes(ctx context.Context, data []byte, mimeType, name string, opts ProcessOptions) (*Outcome, error) {
	if mimeType == "" {
		mimeType = constants.MIMEForExt(filepath.Ext(name))
	}
	if constants.FormatForMIME(mimeType) == "" {
		return nil, fmt.Errorf("%w: mime type %q", common.ErrUnsupported, mimeType)
	}
	return p.process(ctx, name, data, mimeType, opts)
}

func (p *Processor) process(ctx context.Context, source string, data []byte, mimeType string, opts ProcessOptions) (*Outcome, error) {
	start := time.Now()
	sum := sha256.Sum256(data)
	hashHex := hex.EncodeToString(sum[:])
	logger := common.LoggerFromContext(ctx, p.logger).With("source", source, "hash", hashHex[:12])

	file, existed, err := p.files.UpsertByHash(ctx, repository.NewFile{
		SourcePath:  source,
		ContentHash: sum[:],
		MimeType:    mimeType,
		Size:        int64(len(data)),
	})
	if err != nil {
		p.recorder.ObserveFailure("store_file")
		return nil, fmt.Errorf("record file: %w", err)
	}
	out := &Outcome{File: file}

	if existed && !opts.Force {
		rec, err := p.receipts.GetByFileID(ctx, file.ID)
		switch {
		case err == nil:
			logger.Info("file already processed, skipping", "file_id", file.ID, "receipt_id", rec.ID)
			out.Receipt, out.Deduplicated = rec, true
			return out, nil
		case !errors.Is(err, common.ErrNotFound):
			return nil, err
		}
		logger.Debug("known file has no receipt yet", "file_id", file.ID)
	}

	ctx = ocr.WithContentHash(ctx, hashHex)
	ext, err := p.extractor.ExtractBytes(ctx, data, mimeType, filepath.Base(source))
	if err != nil {
		p.recorder.ObserveFailure("extract")
		logger.Error("processor.extract.failed", "file_id", file.ID, "error", err)
		return nil, fmt.Errorf("extract text: %w", err)
	}
	out.Extraction = ext
	logger.Debug("processor extract success",
		"file_id", file.ID,
		"method", ext.Method,
		"pages", ext.Pages,
		"confidence", ext.Confidence,
	)

	pctx := MergeHints(opts.Hints, ext.Hints)
	res := p.parser.Parse(ext.Text, pctx)
	if ext.SourceType == constants.IMAGE && ext.Confidence > 0 && ext.Confidence < ocr.ImageConfidenceThreshold {
		logger.Warn("image ocr confidence low; needs review", "file_id", file.ID, "conf", ext.Confidence)
		res.NeedsReview = true
	}
	out.Result = res

	rec, err := p.receipts.Save(ctx, res, repository.FileMeta{FileID: &file.ID, ExtractionWarnings: ext.Warnings}, pctx)
	if err != nil {
		p.recorder.ObserveFailure("save")
		logger.Error("processor.save.failed", "file_id", file.ID, "error", err)
		return nil, fmt.Errorf("save receipt: %w", err)
	}
	out.Receipt = rec
	p.recorder.ObserveParse(string(ext.SourceType), res, time.Since(start))

	logger.Info("processed receipt",
		"file_id", file.ID, "receipt_id", rec.ID,
		"vendor", rec.VendorOrEmpty(), "confidence", rec.Confidence,
		"needs_review", rec.NeedsReview, "currency_source", rec.CurrencySource,
	)
	return out, nil
}

// ParseText parses text without touching storage.
func (p *Processor) ParseText(text string, hints *parser.Context) parser.Result {
	start := time.Now()
	res := p.parser.Parse(text, hints)
	p.recorder.ObserveParse("inline", res, time.Since(start))
	return res
}

// ParseAndSave parses text and stores the receipt with no source file.
func (p *Processor) ParseAndSave(ctx context.Context, text string, hints *parser.Context) (parser.Result, *entity.Receipt, error) {
	res := p.ParseText(text, hints)
	rec, err := p.receipts.Save(ctx, res, repository.FileMeta{}, hints)
	if err != nil {
		p.recorder.ObserveFailure("save")
		return res, nil, fmt.Errorf("save receipt: %w", err)
	}
	return res, rec, nil
}

// MergeHints overlays base on found: explicit caller hints win field by
// field, and found fills the gaps. Nil when both are nil.
func MergeHints(base, found *parser.Context) *parser.Context {
	if base == nil && found == nil {
		return nil
	}
	var out parser.Context
	if found != nil {
		out = *found
	}
	if base == nil {
		return &out
	}
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&out.SenderDomain, base.SenderDomain)
	pick(&out.SenderName, base.SenderName)
	pick(&out.Subject, base.Subject)
	pick(&out.UserLocale, base.UserLocale)
	pick(&out.UserCurrency, base.UserCurrency)
	pick(&out.BillingCountry, base.BillingCountry)
	return &out
}
