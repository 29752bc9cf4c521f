package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var extractJSON bool

var extractTextCmd = &cobra.Command{
	Use:   "extract-text <file>",
	Short: "Print the text extracted from a PDF, image, email or HTML receipt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newExtractor().Extract(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if extractJSON {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"text":        res.Text,
				"method":      res.Method,
				"source_type": res.SourceType,
				"pages":       res.Pages,
				"confidence":  res.Confidence,
				"duration_ms": res.Duration.Milliseconds(),
				"warnings":    res.Warnings,
				"hints":       res.Hints,
			})
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
		return err
	},
}

func init() {
	extractTextCmd.Flags().BoolVar(&extractJSON, "json", false, "print extraction metadata as JSON")
}
