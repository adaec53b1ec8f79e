package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/litscout/internal/query"
	"github.com/pdiddy/litscout/internal/search"
	"github.com/pdiddy/litscout/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <topic>",
	Short: "Search academic providers for papers on a topic",
	Long: `Search turns a free-text topic into up to five query strategies and runs
them against the primary provider (Semantic Scholar or OpenAlex) until the
scan depth is met, then tops the result up once from the secondary provider
(Google Scholar or arXiv). Results are deduplicated by title and saved to
the store.

With --enrich, papers lacking a usable abstract are enriched from their
landing pages before they are printed and saved. --save-run keeps the run
in a YAML file that --load-run prints again without querying anything.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if path, _ := cmd.Flags().GetString("load-run"); path != "" {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.MinimumNArgs(1)(cmd, args)
	},
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Int("depth", types.DefaultScanDepth, "target number of papers (max 500)")
	searchCmd.Flags().Int("min-year", 0, "earliest publication year")
	searchCmd.Flags().Int("max-year", 0, "latest publication year")
	searchCmd.Flags().String("format", "table", "output format: table, json, yaml or csl")
	searchCmd.Flags().Bool("no-secondary", false, "skip the secondary provider top-up")
	searchCmd.Flags().Bool("no-save", false, "do not save papers to the store")
	searchCmd.Flags().Bool("enrich", false, "enrich missing abstracts before output")
	searchCmd.Flags().String("save-run", "", "also write the run to this YAML file")
	searchCmd.Flags().String("load-run", "", "print a saved run instead of searching")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if !validFormat(format) {
		return fmt.Errorf("unknown format %q: use table, json, yaml or csl", format)
	}
	if path, _ := cmd.Flags().GetString("load-run"); path != "" {
		rf, err := search.ReadRunFile(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Loaded run from %s (%s)\n", path, rf.Timestamp.Format("2006-01-02 15:04"))
		return writeOutput(rf.Output, format, os.Stdout)
	}
	topic := strings.TrimSpace(strings.Join(args, " "))
	if topic == "" {
		return fmt.Errorf("provide a research topic")
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	depth, _ := cmd.Flags().GetInt("depth")
	minYear, _ := cmd.Flags().GetInt("min-year")
	maxYear, _ := cmd.Flags().GetInt("max-year")
	filters := types.SearchFilters{MinYear: minYear, MaxYear: maxYear, ScanDepth: depth}

	agg := &search.Aggregator{
		Strategies: query.NewGenerator(a.llm, a.logger),
		Primary:    a.primary(),
		Config:     a.cfg.Search,
		Clock:      a.state.Clock(),
		Logger:     a.logger,
		Progress:   os.Stderr,
	}
	if skip, _ := cmd.Flags().GetBool("no-secondary"); !skip {
		agg.Secondary = a.secondary()
	}

	out, err := agg.Aggregate(ctx, topic, filters)
	if err != nil && !errors.Is(err, ctx.Err()) {
		return err
	}
	if err != nil {
		a.logger.Warn("search interrupted, keeping partial results", zap.Int("papers", len(out.Papers)))
	}

	if doEnrich, _ := cmd.Flags().GetBool("enrich"); doEnrich && err == nil {
		stats, enrichErr := a.enrichPipeline().EnrichAll(ctx, out.Papers, a.cfg.Enrich.Concurrency)
		printEnrichStats(os.Stderr, stats)
		if enrichErr != nil {
			a.logger.Warn("enrichment interrupted", zap.Error(enrichErr))
		}
	}

	if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave && len(out.Papers) > 0 {
		// Partial results are saved even after an interrupt.
		if saveErr := a.store.SavePapers(context.WithoutCancel(ctx), out.Papers); saveErr != nil {
			return saveErr
		}
		fmt.Fprintf(os.Stderr, "Saved %d papers to %s\n", len(out.Papers), a.store.Path())
	}

	if path, _ := cmd.Flags().GetString("save-run"); path != "" {
		if werr := search.WriteRunFile(path, filters.Normalize(), out, a.state.Clock().Now()); werr != nil {
			return werr
		}
		fmt.Fprintf(os.Stderr, "Saved run to %s\n", path)
	}

	if werr := writeOutput(out, format, os.Stdout); werr != nil {
		return werr
	}
	return err
}

func validFormat(format string) bool {
	switch format {
	case "table", "json", "yaml", "csl":
		return true
	}
	return false
}

func writeOutput(out search.Output, format string, w io.Writer) error {
	switch format {
	case "json":
		return search.FormatJSON(out, w)
	case "yaml":
		return search.FormatYAML(out, w)
	case "csl":
		return search.FormatCSL(out, w)
	default:
		search.FormatTable(out, w)
		return nil
	}
}
