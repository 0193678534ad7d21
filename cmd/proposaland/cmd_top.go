package main

import (
	"fmt"

	"github.com/david/proposaland/internal/db"
	"github.com/david/proposaland/internal/models"
	"github.com/spf13/cobra"
)

func newTopCmd(a *app) *cobra.Command {
	var flags struct {
		limit    int
		priority []string
		minScore float64
		query    string
		format   string
	}

	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the best stored opportunities",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validFormat(flags.format); err != nil {
				return err
			}
			var tiers []models.Priority
			for _, raw := range flags.priority {
				p, ok := models.ParsePriority(raw)
				if !ok {
					return fmt.Errorf("unknown priority %q", raw)
				}
				tiers = append(tiers, p)
			}
			limit := a.cfg.Output.TopOpportunities
			if cmd.Flags().Changed("limit") {
				limit = flags.limit
			}

			ctx := cmd.Context()
			pool, err := db.Connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			res, err := db.NewStore(pool).ListScored(ctx, db.ListParams{
				Query:    flags.query,
				Priority: tiers,
				MinScore: flags.minScore,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flags.format == formatJSON {
				return writeJSON(out, res)
			}
			renderOpportunities(out, res.Opportunities, flags.format)
			fmt.Fprintf(out, "%d of %d stored opportunities\n", len(res.Opportunities), res.Total)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.limit, "limit", 5, "How many to show (default from config)")
	f.StringSliceVar(&flags.priority, "priority", nil, "Only these tiers, e.g. critical,high")
	f.Float64Var(&flags.minScore, "min-score", 0, "Minimum relevance score")
	f.StringVarP(&flags.query, "query", "q", "", "Full-text filter on title and description")
	f.StringVar(&flags.format, "format", formatTable, "Output format: table, markdown or json")
	return cmd
}
