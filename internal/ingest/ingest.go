package ingest

import (
	"context"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipt-parser/internal/core"
)

// Processor is the per-file work a directory run performs.
type Processor interface {
	ProcessFile(ctx context.Context, path string, opts core.ProcessOptions) (*core.Outcome, error)
}

// FileResult is the per-file outcome of a directory run.
type FileResult struct {
	Path         string    `json:"path"`
	FileID       uuid.UUID `json:"file_id"`
	ReceiptID    uuid.UUID `json:"receipt_id"`
	Deduplicated bool      `json:"deduplicated"`
	NeedsReview  bool      `json:"needs_review"`
	Err          string    `json:"error,omitempty"`
}

// DirStats summarizes a directory run.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	NeedsReview  uint32 `json:"needs_review"`
	Failed       uint32 `json:"failed"`
}

// Options tune ProcessDirectory.
type Options struct {
	SkipHidden  bool
	Exts        []string // any case, with or without the dot; empty means constants.AllowedExtensions
	Concurrency int      // default 4
	Force       bool
}
