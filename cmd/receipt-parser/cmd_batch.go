package main

import (
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-parser/internal/export"
	"github.com/joseph-ayodele/receipt-parser/internal/ingest"
)

var batchFlags struct {
	exts          []string
	concurrency   int
	includeHidden bool
	force         bool
	out           string
}

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract, parse and store every receipt under a directory",
	Long: `Batch walks the directory tree, skips files already stored (by content
hash) unless --force is given, and prints per-file results and totals.
With --out the stored receipts are also exported to an XLSX workbook.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	f := batchCmd.Flags()
	f.StringSliceVar(&batchFlags.exts, "ext", nil, "only process these extensions, e.g. --ext .pdf,.eml")
	f.IntVar(&batchFlags.concurrency, "concurrency", runtime.NumCPU(), "files processed in parallel")
	f.BoolVar(&batchFlags.includeHidden, "include-hidden", false, "descend into hidden files and directories")
	f.BoolVar(&batchFlags.force, "force", false, "re-parse files that were already stored")
	f.StringVar(&batchFlags.out, "out", "", "write an XLSX export of all receipts to this path")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, stats, err := ingest.ProcessDirectory(ctx, a.proc, args[0], ingest.Options{
		SkipHidden:  !batchFlags.includeHidden,
		Exts:        batchFlags.exts,
		Concurrency: batchFlags.concurrency,
		Force:       batchFlags.force,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("batch.done",
		"root", args[0],
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"needs_review", stats.NeedsReview,
		"failed", stats.Failed,
	)

	if batchFlags.out != "" {
		data, err := export.NewService(a.receipts, a.files, logger).ExportReceiptsXLSX(ctx, export.Filter{})
		if err != nil {
			return err
		}
		if err := os.WriteFile(batchFlags.out, data, 0o644); err != nil {
			return err
		}
		logger.Info("batch.export.ok", "out", batchFlags.out, "bytes", len(data))
	}

	return printJSON(cmd.OutOrStdout(), struct {
		Stats   ingest.DirStats     `json:"stats"`
		Results []ingest.FileResult `json:"results"`
	}{stats, results})
}
