package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Inspect and edit the persistent URL block-list",
	Long: `The resolver blocks URLs that refuse access (401, 403, 429, 504), serve
bot-check pages, or return corrupt PDFs. Blocked URLs are never fetched
again until they are removed here.`,
}

var blocklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocked URLs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		blocked, err := a.store.BlockedURLs(cmd.Context())
		if err != nil {
			return err
		}
		if len(blocked) == 0 {
			fmt.Fprintln(os.Stdout, "Block-list is empty.")
			return nil
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "BLOCKED AT\tREASON\tURL")
		for _, b := range blocked {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", b.BlockedAt.Format("2006-01-02 15:04"), b.Reason, b.URL)
		}
		return tw.Flush()
	},
}

var blocklistAddCmd = &cobra.Command{
	Use:   "add <url> [reason]",
	Short: "Block a URL",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		reason := "manual"
		if len(args) == 2 && strings.TrimSpace(args[1]) != "" {
			reason = args[1]
		}
		if err := a.store.BlockURL(cmd.Context(), args[0], reason); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "blocked: %s (%s)\n", args[0], reason)
		return nil
	},
}

var blocklistRemoveCmd = &cobra.Command{
	Use:   "remove <url>",
	Short: "Unblock a URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		removed, err := a.store.Unblock(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%s is not blocked", args[0])
		}
		fmt.Fprintf(os.Stdout, "unblocked: %s\n", args[0])
		return nil
	},
}

var blocklistClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every blocked URL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.store.ClearBlocklist(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Removed %d blocked URLs.\n", n)
		return nil
	},
}

func init() {
	blocklistCmd.AddCommand(blocklistListCmd, blocklistAddCmd, blocklistRemoveCmd, blocklistClearCmd)
	rootCmd.AddCommand(blocklistCmd)
}
