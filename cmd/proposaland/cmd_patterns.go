package main

import (
	"github.com/spf13/cobra"
)

func newPatternsCmd(a *app) *cobra.Command {
	var format string
	var showRegex bool

	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "List the reference pattern library",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validFormat(format); err != nil {
				return err
			}
			lib := a.engine.Extractor().Library()
			if format == formatJSON {
				type row struct {
					Family      string  `json:"family"`
					Description string  `json:"description"`
					Regex       string  `json:"regex"`
					Confidence  float64 `json:"base_confidence"`
				}
				rows := []row{}
				for _, p := range lib.All() {
					rows = append(rows, row{string(p.Family()), p.Description(), p.Expr(), p.BaseConfidence()})
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			renderPatterns(cmd.OutOrStdout(), lib, showRegex, format)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", formatTable, "Output format: table, markdown or json")
	cmd.Flags().BoolVar(&showRegex, "regex", false, "Include the regular expressions")
	return cmd
}
