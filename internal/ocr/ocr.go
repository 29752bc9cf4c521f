// Package ocr turns receipt files into plain text for the parser: PDFs via
// poppler, images via tesseract, and email or HTML bodies in process.
package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir         string
	HeicConverter       string
	EnableTSVConfidence bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	// MinPDFTextBytes is the text layer size below which a PDF is treated as
	// scanned and rasterized for OCR. Default 40.
	MinPDFTextBytes int

	// Timeout bounds one file; CommandTimeout bounds each tool invocation.
	Timeout          time.Duration
	CommandTimeout   time.Duration
	ArtifactCacheDir string
}

// ExtractionResult is the text of one file plus how it was obtained.
type ExtractionResult struct {
	Text       string
	Pages      int
	SourceType constants.Format
	Method     string // "pdf-text" | "pdf-ocr" | "image-ocr" | "text" | "html" | "email"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64

	// Hints lifted from email headers, when the input was a message.
	Hints *parser.Context
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinPDFTextBytes <= 0 {
		cfg.MinPDFTextBytes = 40
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger, timeout: cfg.CommandTimeout}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract reads the file at path and picks a strategy from its extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	mime := constants.MIMEForExt(filepath.Ext(path))
	if mime == "" {
		e.logger.Error("unsupported extension", "path", path)
		return ExtractionResult{}, fmt.Errorf("%w: %q", common.ErrUnsupported, filepath.Ext(path))
	}
	return e.extract(ctx, path, nil, mime)
}

// ExtractBytes extracts text from in-memory content. filename is only used
// for its extension when mimeType is empty, and for temp file naming.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, mimeType, filename string) (ExtractionResult, error) {
	if mimeType == "" {
		mimeType = constants.MIMEForExt(filepath.Ext(filename))
	}
	return e.extract(ctx, "", data, mimeType)
}

// extract dispatches on format. Exactly one of path and data is used; tools
// that need a file get a temp copy of data.
func (e *Extractor) extract(ctx context.Context, path string, data []byte, mime string) (ExtractionResult, error) {
	start := time.Now()
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	format := constants.FormatForMIME(mime)
	e.logger.Debug("starting text extraction", "path", path, "mime", mime, "format", format, "bytes", len(data))

	var (
		res ExtractionResult
		err error
	)
	switch format {
	case constants.TEXT, constants.HTML:
		if data == nil {
			if data, err = os.ReadFile(path); err != nil {
				return ExtractionResult{}, fmt.Errorf("read %s: %w", path, err)
			}
		}
		res, err = e.extractInline(data, mime, format)
	case constants.PDF, constants.IMAGE:
		if path == "" {
			var cleanup func()
			path, cleanup, err = spill(data, mime)
			if err != nil {
				return ExtractionResult{}, err
			}
			defer cleanup()
		}
		if format == constants.PDF {
			res, err = e.extractPDF(ctx, path)
		} else {
			res, err = e.extractImageFile(ctx, path)
		}
	default:
		e.logger.Error("unsupported mime type", "mime", mime)
		return ExtractionResult{}, fmt.Errorf("%w: %q", common.ErrUnsupported, mime)
	}
	res.Duration = time.Since(start)
	if err != nil {
		return res, fmt.Errorf("%w: %v", common.ErrExtractionTool, err)
	}
	e.logger.Debug("text extraction done", "method", res.Method, "pages", res.Pages,
		"confidence", res.Confidence, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func (e *Extractor) extractInline(data []byte, mime string, format constants.Format) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: format, Pages: 1}
	switch {
	case strings.HasPrefix(strings.ToLower(mime), "message/rfc822"):
		msg, err := readEmail(data)
		if err != nil {
			return res, err
		}
		res.Text, res.Hints, res.Method = msg.text, msg.hints, "email"
	case format == constants.HTML:
		text, err := HTMLToText(data)
		if err != nil {
			return res, err
		}
		res.Text, res.Method = text, "html"
	default:
		res.Text, res.Method = string(data), "text"
	}
	res.Confidence = heuristicConfidence(res.Text)
	return res, nil
}

// spill writes data to a temp file so external tools can read it.
func spill(data []byte, mime string) (string, func(), error) {
	ext := ".bin"
	switch {
	case mime == "application/pdf":
		ext = ".pdf"
	case strings.HasPrefix(mime, "image/"):
		ext = "." + strings.TrimPrefix(mime, "image/")
	}
	f, err := os.CreateTemp("", "rp-in-*"+ext)
	if err != nil {
		return "", nil, err
	}
	cleanup := func() { _ = os.Remove(f.Name()) }
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return f.Name(), cleanup, nil
}
