package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litscout/internal/acquire"
	"github.com/pdiddy/litscout/pkg/types"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [identifiers...]",
	Short: "Retrieve primary documents for papers",
	Long: `Resolve follows a paper's open-access, landing page and DOI links to its
PDF, falling back to the landing page's HTML. Identifiers may be arXiv IDs,
DOIs or URLs; without identifiers every stored paper is resolved.

Each paper gets a bounded number of requests. URLs that refuse access or
serve corrupt PDFs are added to the block-list and never fetched again.
Documents are saved to the store and written to --dir.`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("dir", "documents", "directory for downloaded documents (empty to skip writing files)")
	resolveCmd.Flags().Int("max-requests", 0, "request budget per paper (default resolve.max_requests)")
	resolveCmd.Flags().Bool("require-pdf", false, "reject HTML pages except on resolve.allowed_html_hosts")
	resolveCmd.Flags().Int("limit", 0, "resolve at most this many stored papers (0 for all)")

	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	papers, err := papersToResolve(cmd, a, args)
	if err != nil {
		return err
	}
	if len(papers) == 0 {
		fmt.Fprintln(os.Stdout, "No papers to resolve.")
		return nil
	}

	maxRequests, _ := cmd.Flags().GetInt("max-requests")
	requirePDF, _ := cmd.Flags().GetBool("require-pdf")
	dir, _ := cmd.Flags().GetString("dir")
	opts := acquire.Options{MaxRequests: maxRequests, RequirePDF: requirePDF}

	result, err := a.resolver(ctx).ResolveBatch(ctx, papers, opts, dir, os.Stdout)
	if err != nil {
		return err
	}
	if result.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed resolution", result.Failed)
	}
	return nil
}

func papersToResolve(cmd *cobra.Command, a *app, args []string) ([]types.Paper, error) {
	if len(args) > 0 {
		papers := make([]types.Paper, 0, len(args))
		for _, id := range args {
			p, err := acquire.PaperFromIdentifier(id)
			if err != nil {
				return nil, err
			}
			papers = append(papers, p)
		}
		return papers, nil
	}

	stored, err := a.store.Papers(cmd.Context())
	if err != nil {
		return nil, err
	}
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(stored) > limit {
		stored = stored[:limit]
	}
	return stored, nil
}
