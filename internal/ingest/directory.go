package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/receipt-parser/internal/core"
)

// ProcessDirectory walks root and processes every matching file with up to
// opts.Concurrency files in flight. A failing file is recorded in its
// FileResult and does not stop the run; only a walk error or ctx
// cancellation does. Results are in walk order.
func ProcessDirectory(ctx context.Context, proc Processor, root string, opts Options, logger *slog.Logger) ([]FileResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 4
	}
	match := extFilter(opts.Exts)

	var (
		mu      sync.Mutex
		results []FileResult
		stats   DirStats
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if cerr := gctx.Err(); cerr != nil {
			return cerr
		}
		mu.Lock()
		stats.Scanned++
		if err != nil {
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			mu.Unlock()
			return nil
		}
		mu.Unlock()

		if opts.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !match(path) {
			return nil
		}

		mu.Lock()
		stats.Matched++
		idx := len(results)
		results = append(results, FileResult{Path: path})
		mu.Unlock()

		g.Go(func() error {
			out, err := proc.ProcessFile(gctx, path, core.ProcessOptions{Force: opts.Force})
			mu.Lock()
			defer mu.Unlock()
			r := &results[idx]
			if err != nil {
				logger.Warn("file failed", "path", path, "error", err)
				r.Err = err.Error()
				stats.Failed++
				return nil
			}
			r.FileID, r.ReceiptID = out.File.ID, out.Receipt.ID
			r.Deduplicated, r.NeedsReview = out.Deduplicated, out.Receipt.NeedsReview
			stats.Succeeded++
			if out.Deduplicated {
				stats.Deduplicated++
			}
			if out.Receipt.NeedsReview {
				stats.NeedsReview++
			}
			return nil
		})
		return nil
	})
	waitErr := g.Wait()

	logger.Info("directory processed", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated, "needs_review", stats.NeedsReview, "failed", stats.Failed)

	if walkErr != nil {
		return results, stats, fmt.Errorf("walk: %w", walkErr)
	}
	return results, stats, waitErr
}
