package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/david/proposaland/internal/ingest"
	"github.com/david/proposaland/internal/refs"
	"github.com/spf13/cobra"
)

func newRefsCmd(a *app) *cobra.Command {
	var flags struct {
		file    string
		context string
		min     float64
		format  string
		summary bool
	}

	cmd := &cobra.Command{
		Use:   "refs [text...]",
		Short: "Extract reference numbers from text, an HTML notice or a PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validFormat(flags.format); err != nil {
				return err
			}
			text := ingest.HTMLToText(strings.Join(args, " "))
			if flags.file != "" {
				doc, err := readDocumentText(flags.file)
				if err != nil {
					return err
				}
				text = strings.TrimSpace(text + " " + doc)
			}
			if text == "" {
				return errors.New("give the text as arguments or with --file")
			}

			minConf := a.cfg.ReferencePatterns.MinConfidence
			if cmd.Flags().Changed("min") {
				minConf = flags.min
			}
			if minConf < 0 || minConf > 1 {
				return fmt.Errorf("--min must be within [0, 1], got %v", minConf)
			}

			cands := a.engine.Extractor().ExtractAbove(text, flags.context, minConf)
			out := cmd.OutOrStdout()
			switch {
			case flags.format == formatJSON:
				if cands == nil {
					cands = []refs.Candidate{}
				}
				return writeJSON(out, cands)
			case flags.summary:
				fmt.Fprintln(out, refs.FormatSummary(cands))
			case len(cands) == 0:
				fmt.Fprintln(out, refs.FormatSummary(nil))
			default:
				renderCandidates(out, cands, flags.format)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.file, "file", "", "Read the notice from a text, HTML or PDF file")
	f.StringVar(&flags.context, "context", "", "Organization name or hint used for family detection")
	f.Float64Var(&flags.min, "min", refs.DefaultMinConfidence, "Minimum confidence (default from config)")
	f.StringVar(&flags.format, "format", formatTable, "Output format: table, markdown or json")
	f.BoolVar(&flags.summary, "summary", false, "Print the three best candidates as plain lines")
	return cmd
}
