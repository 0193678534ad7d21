package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/david/proposaland/internal/db"
	"github.com/david/proposaland/internal/models"
	"github.com/david/proposaland/internal/scoring"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newClassifyCmd(a *app) *cobra.Command {
	var flags struct {
		file        string
		format      string
		top         int
		all         bool
		persist     bool
		showDropped bool
	}

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Score, filter and rank listings from a JSON or YAML file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validFormat(flags.format); err != nil {
				return err
			}
			raws, err := readListings(flags.file, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(raws) == 0 {
				return errors.New("no listings in input")
			}

			batch := a.engine.EvaluateBatch(raws)

			top := a.cfg.Output.TopOpportunities
			if cmd.Flags().Changed("top") {
				top = flags.top
			}
			summary := scoring.Summarize(batch, top)

			if flags.persist {
				if err := persist(cmd.Context(), a, batch.Ranked); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if flags.format == formatJSON {
				return writeJSON(out, map[string]any{
					"ranked":   nonNil(batch.Ranked),
					"outcomes": batch.Outcomes,
					"summary":  summary,
				})
			}

			shown := summary.Top
			if flags.all {
				shown = batch.Ranked
			}
			renderOpportunities(out, shown, flags.format)
			fmt.Fprintln(out)
			renderSummary(out, summary, flags.format)
			if flags.showDropped && summary.Dropped > 0 {
				fmt.Fprintln(out)
				renderDropped(out, raws, batch.Dropped(), flags.format)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.file, "file", "f", "", "Listings file (JSON or YAML), - for stdin (required)")
	f.StringVar(&flags.format, "format", formatTable, "Output format: table, markdown or json")
	f.IntVar(&flags.top, "top", 0, "How many top opportunities to show (default from config, negative for all)")
	f.BoolVar(&flags.all, "all", false, "Show every kept opportunity")
	f.BoolVar(&flags.persist, "persist", false, "Store the ranked results in DATABASE_URL")
	f.BoolVar(&flags.showDropped, "show-dropped", false, "List dropped listings with their reason")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func persist(ctx context.Context, a *app, opps []models.ScoredOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	pool, err := db.Connect(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.ApplyMigrations(ctx, pool, a.logger); err != nil {
		return err
	}
	if err := db.NewStore(pool).SaveScored(ctx, opps); err != nil {
		return fmt.Errorf("persist results: %w", err)
	}
	a.logger.Info("results persisted", zap.Int("records", len(opps)))
	return nil
}

func nonNil(opps []models.ScoredOpportunity) []models.ScoredOpportunity {
	if opps == nil {
		return []models.ScoredOpportunity{}
	}
	return opps
}
