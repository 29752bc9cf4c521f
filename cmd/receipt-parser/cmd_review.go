package main

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-parser/constants"
	"github.com/joseph-ayodele/receipt-parser/internal/common"
	"github.com/joseph-ayodele/receipt-parser/internal/repository"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the manual review queue",
}

var reviewListFlags struct {
	status string
	all    bool
	limit  int
	offset int
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List receipts waiting for review, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		filter := repository.ListFilter{
			ReviewStatus: constants.ReviewStatus(reviewListFlags.status),
			Limit:        reviewListFlags.limit,
			Offset:       reviewListFlags.offset,
		}
		if !reviewListFlags.all && filter.ReviewStatus == "" {
			pending := true
			filter.NeedsReview = &pending
		}
		recs, err := a.receipts.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), recs)
	},
}

var resolveFlags struct {
	vendor, amount, currency, date, tax string
	by                                  string
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve <receipt-id>",
	Short: "Apply corrections to a receipt and mark it reviewed",
	Long: `Resolve records the reviewer's corrections next to the original values
and clears the review flag. Fields without a flag are left unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: runResolve,
}

func init() {
	lf := reviewListCmd.Flags()
	lf.StringVar(&reviewListFlags.status, "status", "", "filter by review status: not_required, pending or reviewed")
	lf.BoolVar(&reviewListFlags.all, "all", false, "list every receipt, not only flagged ones")
	lf.IntVar(&reviewListFlags.limit, "limit", 50, "page size")
	lf.IntVar(&reviewListFlags.offset, "offset", 0, "rows to skip")

	rf := reviewResolveCmd.Flags()
	rf.StringVar(&resolveFlags.vendor, "vendor", "", "corrected vendor")
	rf.StringVar(&resolveFlags.amount, "amount", "", "corrected total, e.g. 12.50")
	rf.StringVar(&resolveFlags.currency, "currency", "", "corrected ISO 4217 currency")
	rf.StringVar(&resolveFlags.date, "date", "", "corrected date, YYYY-MM-DD")
	rf.StringVar(&resolveFlags.tax, "tax", "", "corrected tax total")
	rf.StringVar(&resolveFlags.by, "by", "", "reviewer name stored with the corrections")

	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewResolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return common.InvalidArgumentError("receipt id must be a UUID")
	}
	c := repository.Correction{
		Vendor:      changedString(cmd, "vendor", resolveFlags.vendor),
		Currency:    changedString(cmd, "currency", strings.ToUpper(resolveFlags.currency)),
		Date:        changedString(cmd, "date", resolveFlags.date),
		CorrectedBy: resolveFlags.by,
	}
	if c.Amount, err = decimalFlag(cmd, "amount", resolveFlags.amount); err != nil {
		return err
	}
	if c.Tax, err = decimalFlag(cmd, "tax", resolveFlags.tax); err != nil {
		return err
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	rec, err := a.receipts.Resolve(cmd.Context(), id, c)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), rec)
}

func decimalFlag(cmd *cobra.Command, name, v string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(name) {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(v))
	if err != nil {
		return nil, common.InvalidArgumentErrorf("--%s %q is not a decimal", name, v)
	}
	return &d, nil
}
