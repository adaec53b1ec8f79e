package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litscout/internal/enrich"
	"github.com/pdiddy/litscout/pkg/types"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill in missing abstracts for stored papers",
	Long: `Enrich visits the landing page of every stored paper whose abstract is
missing or too short and tries, in order: JSON-LD metadata, meta tags,
inline JSON, known abstract containers, and finally the configured LLM.
Improved abstracts are written back to the store.`,
	Args: cobra.NoArgs,
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().Int("concurrency", 0, "papers enriched in parallel (default enrich.concurrency)")
	enrichCmd.Flags().Int("limit", 0, "enrich at most this many papers (0 for all)")

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	stored, err := a.store.Papers(ctx)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	var pending []types.Paper
	for i := range stored {
		if enrich.NeedsEnrichment(&stored[i]) {
			pending = append(pending, stored[i])
		}
		if limit > 0 && len(pending) >= limit {
			break
		}
	}
	if len(pending) == 0 {
		fmt.Fprintln(os.Stdout, "No papers need enrichment.")
		return nil
	}
	fmt.Fprintf(os.Stderr, "Enriching %d of %d stored papers\n", len(pending), len(stored))

	concurrency, _ := cmd.Flags().GetInt("concurrency")
	stats, runErr := a.enrichPipeline().EnrichAll(ctx, pending, concurrency)

	if err := a.store.SavePapers(context.WithoutCancel(ctx), pending); err != nil {
		return err
	}
	printEnrichStats(os.Stdout, stats)
	return runErr
}

func printEnrichStats(w io.Writer, s enrich.Stats) {
	fmt.Fprintf(w, "Enrichment summary: %d enriched, %d not found, %d skipped (attempted: %d)\n",
		s.Enriched, s.NotFound, s.Skipped, s.Attempted)
}
