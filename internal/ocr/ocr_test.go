package ocr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	fn    func(name string, args []string) ([]byte, []byte, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	return f.fn(name, args)
}

func (f *fakeRunner) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

const receiptText = "Starbucks\nDate: 01/15/2024\nTotal: $16.95"

func TestExtractBytesPlainText(t *testing.T) {
	e := NewExtractor(Config{}, nil, WithRunner(&fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		t.Fatal("no external tool expected")
		return nil, nil, nil
	}}))
	res, err := e.ExtractBytes(context.Background(), []byte(receiptText), "", "receipt.txt")
	require.NoError(t, err)
	assert.Equal(t, receiptText, res.Text)
	assert.Equal(t, "text", res.Method)
	assert.Equal(t, constants.TEXT, res.SourceType)
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
}

func TestExtractBytesHTML(t *testing.T) {
	page := `<html><head><style>p{}</style><title>x</title></head><body>
<h1>Uber</h1>
<table><tr><td>Total</td><td><b>CA$</b>23.40</td></tr></table>
<p>Thanks for   riding,<br>Alex</p>
<script>var x = 1;</script>
</body></html>`
	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractBytes(context.Background(), []byte(page), "text/html; charset=utf-8", "")
	require.NoError(t, err)
	assert.Equal(t, "html", res.Method)
	assert.Equal(t, "Uber\nTotal  CA$23.40\nThanks for riding,\nAlex", res.Text)
}

func TestExtractBytesEmail(t *testing.T) {
	msg := strings.Join([]string{
		`From: "Lovable" <billing@lovable.dev>`,
		`Subject: =?UTF-8?Q?Your_receipt_from_Lovable?=`,
		`MIME-Version: 1.0`,
		`Content-Type: multipart/alternative; boundary="b1"`,
		``,
		`--b1`,
		`Content-Type: text/plain; charset=utf-8`,
		`Content-Transfer-Encoding: quoted-printable`,
		``,
		`Lovable Labs Inc=0AAmount paid: $25.00`,
		`--b1`,
		`Content-Type: text/html`,
		``,
		`<p>ignored</p>`,
		`--b1--`,
		``,
	}, "\r\n")
	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractBytes(context.Background(), []byte(msg), "message/rfc822", "")
	require.NoError(t, err)
	assert.Equal(t, "email", res.Method)
	assert.Equal(t, "Lovable Labs Inc\nAmount paid: $25.00", strings.TrimSpace(res.Text))
	require.NotNil(t, res.Hints)
	assert.Equal(t, "Lovable", res.Hints.SenderName)
	assert.Equal(t, "lovable.dev", res.Hints.SenderDomain)
	assert.Equal(t, "Your receipt from Lovable", res.Hints.Subject)
}

func TestExtractBytesHTMLOnlyEmail(t *testing.T) {
	msg := "From: receipts@uber.com\r\nSubject: Your trip\r\nContent-Type: text/html\r\nContent-Transfer-Encoding: base64\r\n\r\n" +
		"PHA+VG90YWw6ICQ1LjAw\r\nPC9wPg==\r\n"
	e := NewExtractor(Config{}, nil)
	res, err := e.ExtractBytes(context.Background(), []byte(msg), "message/rfc822", "")
	require.NoError(t, err)
	assert.Equal(t, "Total: $5.00", res.Text)
	assert.Equal(t, "uber.com", res.Hints.SenderDomain)
}

func TestExtractPDFTextLayer(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		require.Equal(t, "pdftotext", name)
		require.Equal(t, "-", args[len(args)-1])
		return []byte("Page one of the invoice text here\fTotal: $12.00 and more words\f"), nil, nil
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))
	res, err := e.ExtractBytes(context.Background(), []byte("%PDF-1.4"), "application/pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "pdf-text", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.NotContains(t, res.Text, "\f")
	assert.Equal(t, []string{"pdftotext"}, r.called())
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "pdftotext":
			return []byte("  \f"), nil, nil
		case "pdftoppm":
			prefix := args[len(args)-1]
			for _, n := range []string{"-1.png", "-2.png"} {
				if err := os.WriteFile(prefix+n, []byte("png"), 0o600); err != nil {
					return nil, nil, err
				}
			}
			return nil, nil, nil
		case "tesseract":
			return []byte("SCANNED " + filepath.Base(args[0])), nil, nil
		}
		return nil, nil, errors.New("unexpected " + name)
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))
	res, err := e.ExtractBytes(context.Background(), []byte("%PDF-1.4"), "application/pdf", "")
	require.NoError(t, err)
	assert.Equal(t, "pdf-ocr", res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "SCANNED page-1.png\n\nSCANNED page-2.png", res.Text)
}

func TestExtractImageWithTSVConfidence(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t90\tTotal\n" +
		"5\t1\t1\t1\t1\t2\t0\t0\t10\t10\t70\t$5.00\n" +
		"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n"
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		if args[len(args)-1] == "tsv" {
			return []byte(tsv), nil, nil
		}
		return []byte("Total:   $5.00\n\n\n"), nil, nil
	}}
	e := NewExtractor(Config{EnableTSVConfidence: true}, nil, WithRunner(r))
	res, err := e.ExtractBytes(context.Background(), []byte("img"), "image/png", "")
	require.NoError(t, err)
	assert.Equal(t, "image-ocr", res.Method)
	assert.Equal(t, "Total: $5.00", res.Text)
	// 0.7*0.8 + 0.3*(0.2+0.15+0.15)
	assert.InDelta(t, 0.71, res.Confidence, 1e-9)
}

func TestExtractImageToolFailure(t *testing.T) {
	r := &fakeRunner{fn: func(string, []string) ([]byte, []byte, error) {
		return nil, []byte("tesseract: not found"), errors.New("exit status 127")
	}}
	e := NewExtractor(Config{}, nil, WithRunner(r))
	res, err := e.ExtractBytes(context.Background(), []byte("img"), "image/jpeg", "")
	require.ErrorIs(t, err, common.ErrExtractionTool)
	assert.Equal(t, []string{"tesseract: not found"}, res.Warnings)
}

func TestExtractHEICUsesCache(t *testing.T) {
	cache := t.TempDir()
	r := &fakeRunner{fn: func(name string, args []string) ([]byte, []byte, error) {
		switch name {
		case "magick":
			return nil, nil, os.WriteFile(args[1], []byte("png"), 0o600)
		case "tesseract":
			return []byte("Blue Bottle Coffee"), nil, nil
		}
		return nil, nil, errors.New("unexpected " + name)
	}}
	e := NewExtractor(Config{HeicConverter: "magick", ArtifactCacheDir: cache}, nil, WithRunner(r))
	ctx := WithContentHash(context.Background(), "abc123")

	for range 2 {
		res, err := e.ExtractBytes(ctx, []byte("heic"), "image/heic", "")
		require.NoError(t, err)
		assert.Equal(t, "Blue Bottle Coffee", res.Text)
	}
	assert.FileExists(t, filepath.Join(cache, "abc123.png"))
	assert.Equal(t, []string{"magick", "tesseract", "tesseract"}, r.called())
}

func TestExtractUnsupported(t *testing.T) {
	e := NewExtractor(Config{}, nil)
	_, err := e.ExtractBytes(context.Background(), []byte("PK"), "application/zip", "")
	assert.ErrorIs(t, err, common.ErrUnsupported)
	_, err = e.Extract(context.Background(), "/tmp/archive.zip")
	assert.ErrorIs(t, err, common.ErrUnsupported)
}

func TestExtractFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.txt")
	require.NoError(t, os.WriteFile(path, []byte(receiptText), 0o600))
	res, err := NewExtractor(Config{}, nil).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, receiptText, res.Text)
}

func TestHeuristicConfidence(t *testing.T) {
	assert.InDelta(t, 0.2, heuristicConfidence("hello"), 1e-9)
	assert.InDelta(t, 0.7, heuristicConfidence(receiptText), 1e-9)
	long := receiptText + strings.Repeat(" filler", 20)
	assert.InDelta(t, 0.8, heuristicConfidence(long), 1e-9)
}

func TestExecRunnerCommandTimeout(t *testing.T) {
	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	r := execRunner{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), timeout: 50 * time.Millisecond}

	start := time.Now()
	_, _, err := r.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), `"sleep" timed out`)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecRunnerMissingTool(t *testing.T) {
	r := execRunner{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	_, _, err := r.Run(context.Background(), "receipt-ocr-tool-that-does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, exec.ErrNotFound)
	assert.Contains(t, err.Error(), "is not installed")
}

func TestNewExtractorPassesCommandTimeout(t *testing.T) {
	e := NewExtractor(Config{CommandTimeout: 3 * time.Second}, nil)
	r, ok := e.runner.(execRunner)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, r.timeout)
}
