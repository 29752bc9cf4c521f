package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/export"
)

var exportFlags struct {
	out         string
	from, to    string
	needsReview bool
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored receipts to an XLSX workbook",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		v := common.NewValidator().
			Field("out", exportFlags.out, common.Required).
			Optional("from", changedString(cmd, "from", exportFlags.from), common.ISODate).
			Optional("to", changedString(cmd, "to", exportFlags.to), common.ISODate)
		if err := v.Err(); err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		filter := export.Filter{From: exportFlags.from, To: exportFlags.to}
		if cmd.Flags().Changed("needs-review") {
			filter.NeedsReview = &exportFlags.needsReview
		}
		data, err := export.NewService(a.receipts, a.files, logger).ExportReceiptsXLSX(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportFlags.out, data, 0o644); err != nil {
			return err
		}
		logger.Info("export.written", "out", exportFlags.out, "bytes", len(data))
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVarP(&exportFlags.out, "out", "o", "receipts.xlsx", "output path")
	f.StringVar(&exportFlags.from, "from", "", "earliest receipt date, YYYY-MM-DD")
	f.StringVar(&exportFlags.to, "to", "", "latest receipt date, YYYY-MM-DD")
	f.BoolVar(&exportFlags.needsReview, "needs-review", false, "only receipts with (true) or without (false) the review flag")
}
