package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/core"
	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/ocr"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
	"github.com/joseph-ayodele/receipt-parser/internal/repository/repotest"
)

const email = "From: Uber Receipts <noreply@uber.com>\r\n" +
	"Subject: Your Thursday trip with Uber\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Thanks for riding\r\n" +
	"Date: 03/01/2024\r\n" +
	"Total: CA$23.40\r\n"

type recorder struct {
	mu       sync.Mutex
	parses   []string
	failures []string
}

func (r *recorder) ObserveParse(source string, _ parser.Result, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parses = append(r.parses, source)
}

func (r *recorder) ObserveFailure(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, stage)
}

type fakeExtractor struct {
	res   ocr.ExtractionResult
	err   error
	calls int
}

func (f *fakeExtractor) ExtractBytes(context.Context, []byte, string, string) (ocr.ExtractionResult, error) {
	f.calls++
	return f.res, f.err
}

func newProcessor(t *testing.T, ex core.TextExtractor, rec core.Recorder) (*core.Processor, repository.ReceiptRepository) {
	t.Helper()
	db := repotest.New(t)
	receipts := repository.NewReceiptRepository(db, "USD", nil)
	p := core.NewProcessor(nil, ex, repository.NewReceiptFileRepository(db, nil), receipts, core.WithRecorder(rec))
	return p, receipts
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestProcessFileEmail(t *testing.T) {
	rec := &recorder{}
	p, receipts := newProcessor(t, ocr.NewExtractor(ocr.Config{}, nil), rec)
	path := writeFile(t, "uber.eml", email)

	out, err := p.ProcessFile(context.Background(), path, core.ProcessOptions{})
	require.NoError(t, err)
	require.NotNil(t, out.Receipt)
	assert.False(t, out.Deduplicated)
	assert.Equal(t, "email", out.Extraction.Method)
	assert.Equal(t, "Uber", out.Receipt.VendorOrEmpty())
	assert.Equal(t, "23.4", out.Receipt.Amount.String())
	assert.Equal(t, "CAD", *out.Receipt.Currency)
	assert.Equal(t, constants.CurrencyExtracted, out.Receipt.CurrencySource)
	assert.Equal(t, "message/rfc822", out.File.MimeType)
	assert.Equal(t, []string{"TEXT"}, rec.parses)

	stored, err := receipts.Get(context.Background(), out.Receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, out.File.ID, *stored.FileID)
}

func TestProcessFileDeduplicates(t *testing.T) {
	ex := &fakeExtractor{res: ocr.ExtractionResult{Text: "Acme Corp\nTotal: $10.00", SourceType: constants.TEXT, Method: "text"}}
	p, _ := newProcessor(t, ex, nil)
	path := writeFile(t, "a.txt", "same bytes")

	first, err := p.ProcessFile(context.Background(), path, core.ProcessOptions{})
	require.NoError(t, err)
	second, err := p.ProcessFile(context.Background(), writeFile(t, "copy.txt", "same bytes"), core.ProcessOptions{})
	require.NoError(t, err)
	assert.True(t, second.Deduplicated)
	assert.Equal(t, first.Receipt.ID, second.Receipt.ID)
	assert.Equal(t, 1, ex.calls)

	forced, err := p.ProcessFile(context.Background(), path, core.ProcessOptions{Force: true})
	require.NoError(t, err)
	assert.False(t, forced.Deduplicated)
	assert.NotEqual(t, first.Receipt.ID, forced.Receipt.ID)
	assert.Equal(t, 2, ex.calls)
}

func TestProcessFileRetriesAfterFailedExtraction(t *testing.T) {
	rec := &recorder{}
	ex := &fakeExtractor{err: errors.New("tesseract missing")}
	p, _ := newProcessor(t, ex, rec)
	path := writeFile(t, "r.png", "png bytes")

	_, err := p.ProcessFile(context.Background(), path, core.ProcessOptions{})
	require.Error(t, err)
	assert.Equal(t, []string{"extract"}, rec.failures)

	ex.err = nil
	ex.res = ocr.ExtractionResult{Text: "Acme Corp\nTotal: $10.00", SourceType: constants.IMAGE, Confidence: 0.4, Warnings: []string{"low ocr confidence 0.40"}}
	out, err := p.ProcessFile(context.Background(), path, core.ProcessOptions{})
	require.NoError(t, err)
	assert.False(t, out.Deduplicated)
	assert.True(t, out.Receipt.NeedsReview)
	assert.Contains(t, out.Receipt.Warnings, "low ocr confidence 0.40")
}

func TestExtractionWarningsLeaveConfidenceAlone(t *testing.T) {
	text := "Acme Corp\nDate: 01/15/2024\nTotal: $10.00"
	ex := &fakeExtractor{res: ocr.ExtractionResult{
		Text:       text,
		SourceType: constants.TEXT,
		Warnings:   []string{"html body stripped", "attachment skipped"},
	}}
	p, _ := newProcessor(t, ex, nil)

	out, err := p.ProcessFile(context.Background(), writeFile(t, "r.txt", "x"), core.ProcessOptions{})
	require.NoError(t, err)

	want := parser.Parse(text, nil)
	assert.Equal(t, want.Confidence, out.Result.Confidence)
	assert.Equal(t, want.Debug.Warnings, out.Result.Debug.Warnings)
	assert.Equal(t, want.Confidence, out.Receipt.Confidence)
	assert.Equal(t, []string{"html body stripped", "attachment skipped"}, out.Extraction.Warnings)
	assert.Subset(t, out.Receipt.Warnings, []string{"html body stripped", "attachment skipped"})
}

func TestProcessFileRejectsUnknownExtension(t *testing.T) {
	p, _ := newProcessor(t, &fakeExtractor{}, nil)
	_, err := p.ProcessFile(context.Background(), writeFile(t, "notes.docx", "x"), core.ProcessOptions{})
	assert.ErrorIs(t, err, common.ErrUnsupported)

	_, err = p.ProcessBytes(context.Background(), []byte("x"), "application/zip", "a.zip", core.ProcessOptions{})
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestProcessBytesUsesHints(t *testing.T) {
	ex := &fakeExtractor{res: ocr.ExtractionResult{Text: "Corner Store\nTotal: 12.00", SourceType: constants.TEXT}}
	p, _ := newProcessor(t, ex, nil)
	out, err := p.ProcessBytes(context.Background(), []byte("x"), "text/plain", "upload.txt",
		core.ProcessOptions{Hints: &parser.Context{UserCurrency: "EUR"}})
	require.NoError(t, err)
	assert.Equal(t, "EUR", *out.Receipt.Currency)
	assert.Equal(t, constants.CurrencyUserPreference, out.Receipt.CurrencySource)
	assert.Equal(t, "upload.txt", out.File.SourcePath)
}

func TestParseAndSave(t *testing.T) {
	rec := &recorder{}
	p, receipts := newProcessor(t, &fakeExtractor{}, rec)
	res, saved, err := p.ParseAndSave(context.Background(), "Total: | 6.99 CAD", nil)
	require.NoError(t, err)
	assert.Equal(t, "CAD", *res.Currency)
	assert.Nil(t, saved.FileID)
	_, err = receipts.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"inline"}, rec.parses)
}

func TestMergeHints(t *testing.T) {
	assert.Nil(t, core.MergeHints(nil, nil))

	found := &parser.Context{SenderName: "Uber", SenderDomain: "uber.com", Subject: "Your trip"}
	got := core.MergeHints(&parser.Context{SenderName: "Override", BillingCountry: "CA"}, found)
	want := &parser.Context{SenderName: "Override", SenderDomain: "uber.com", Subject: "Your trip", BillingCountry: "CA"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeHints mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Uber", found.SenderName)

	assert.Equal(t, found, core.MergeHints(nil, found))
}
