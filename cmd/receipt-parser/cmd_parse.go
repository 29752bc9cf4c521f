package main

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/receipt-parser/internal/core/parser"
	"github.com/joseph-ayodele/receipt-parser/internal/core/schema"
	"github.com/joseph-ayodele/receipt-parser/internal/entity"
)

var parseFlags struct {
	hints hintFlags
	save  bool
}

var parseCmd = &cobra.Command{
	Use:   "parse [text-file]",
	Short: "Parse receipt text from a file or stdin and print the result as JSON",
	Long: `Parse reads plain receipt text (OCR output or an email body) and prints
the extracted fields, confidence, review flag and debug details.

With --save the result is stored, and the stored receipt carries the
currency provenance (extracted, user_preference, billing_country or
defaulted_to_<code>).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	parseFlags.hints.bind(parseCmd.Flags())
	parseCmd.Flags().BoolVar(&parseFlags.save, "save", false, "store the result in the database")
}

func runParse(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	text, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	hints := parseFlags.hints.context()

	if !parseFlags.save {
		res := newParser().Parse(string(text), hints)
		if err := schema.ValidateResult(res); err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()
	res, rec, err := a.proc.ParseAndSave(cmd.Context(), string(text), hints)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), struct {
		Result  parser.Result   `json:"result"`
		Receipt *entity.Receipt `json:"receipt"`
	}{res, rec})
}
