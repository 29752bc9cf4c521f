package parser

import (
	"strings"

	"github.com/joseph-ayodele/receipt-parser/internal/core/patterns"
)

// document is the per-call view of the normalized text. Lazily computed
// facts are cached here and die with the call.
type document struct {
	text  string
	lines []string
	ctx   *Context

	forwarded *bool
	merchant  *string
}

func newDocument(text string, ctx *Context) *document {
	return &document{
		text:  text,
		lines: strings.Split(text, "\n"),
		ctx:   ctx,
	}
}

// isForwarded reports whether the text or the subject hint looks like a
// forwarded message.
func (d *document) isForwarded() bool {
	if d.forwarded != nil {
		return *d.forwarded
	}
	fwd := patterns.ForwardSubject.MatchString(d.ctx.Subject)
	for _, re := range patterns.ForwardMarkers {
		if fwd {
			break
		}
		fwd = re.MatchString(d.text)
	}
	d.forwarded = &fwd
	return fwd
}

// lineAt returns the zero-based line holding offset and that line's text.
func (d *document) lineAt(offset int) (int, string) {
	n := strings.Count(d.text[:min(max(0, offset), len(d.text))], "\n")
	if n >= len(d.lines) {
		return n, ""
	}
	return n, d.lines[n]
}
