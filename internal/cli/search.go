package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"draftline/internal/client"
)

func newSearchCmd(opts *options) *cobra.Command {
	var search client.SearchOptions
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search drafts and suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, total, err := opts.client().Search(cmd.Context(), args[0], search)
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}
			if opts.jsonOutput {
				return opts.printJSON(cmd, map[string]any{"results": hits, "total": total})
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for i, hit := range hits {
				title := hit.Title
				if title == "" {
					title = hit.ID
				}
				fmt.Fprintf(out, "  [%d] %s %s (%s)\n", i+1, hit.Type, title, hit.Status)
				if hit.Type == "suggestion" {
					fmt.Fprintf(out, "      draft %s, suggestion %s\n", hit.DraftID, hit.ID)
				}
				if hit.Snippet != "" {
					fmt.Fprintf(out, "      %s\n", hit.Snippet)
				}
			}
			if total > len(hits) {
				fmt.Fprintf(out, "Showing %d of %d.\n", len(hits), total)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&search.Type, "type", "", "only draft or suggestion results")
	cmd.Flags().StringVar(&search.DraftID, "draft", "", "only results for this draft")
	cmd.Flags().StringVar(&search.Status, "status", "", "only results with this status")
	cmd.Flags().IntVarP(&search.Limit, "limit", "n", 20, "maximum number of results")
	return cmd
}
