package cli

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"draftline/internal/layout"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			drafts, err := opts.client().ListDrafts(cmd.Context())
			if err != nil {
				return fmt.Errorf("list drafts: %w", err)
			}
			if opts.jsonOutput {
				return opts.printJSON(cmd, drafts)
			}
			if len(drafts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No drafts.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tVERSION\tTITLE")
			for _, d := range drafts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.ID, d.Status, shortVersion(d.CurrentVersionID), d.Title)
			}
			return w.Flush()
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show DRAFT",
		Short: "Show a draft's status and field values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := opts.openDraft(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer controller.Clear()

			state := controller.Snapshot()
			if opts.jsonOutput {
				return opts.printJSON(cmd, map[string]any{
					"id":               state.DraftID,
					"title":            state.Title,
					"status":           state.Status,
					"currentVersionId": state.CurrentVersionID,
					"fields":           state.Fields,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", state.Title, state.DraftID)
			fmt.Fprintf(out, "status:  %s\n", state.Status)
			fmt.Fprintf(out, "version: %s\n", state.CurrentVersionID)
			keys := make([]string, 0, len(state.Fields))
			for key := range state.Fields {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, key := range keys {
				value := state.Fields[key]
				text := value.Text()
				if value.IsNull() {
					text = "-"
				}
				fmt.Fprintf(w, "  %s\t%s\n", key, text)
			}
			return w.Flush()
		},
	}
}

func newRenderCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "render DRAFT",
		Short: "Print the paginated document with field values overlaid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := opts.openDraft(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer controller.Clear()

			state := controller.Snapshot()
			out := cmd.OutOrStdout()
			if !state.HasLayout {
				fmt.Fprintln(out, "(no layout; fallback HTML follows)")
				fmt.Fprintln(out, state.FallbackHTML)
				return nil
			}
			for i, page := range state.Pages {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "--- page %d ---\n", page.PageNo)
				for _, block := range page.Blocks {
					value, ok := state.Fields[block.Key]
					hasOverlay := ok && !value.Empty()
					overlay := ""
					if hasOverlay {
						overlay = value.Text()
					}
					fmt.Fprintln(out, layout.Render(block, overlay, hasOverlay).PlainText())
				}
			}
			return nil
		},
	}
}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate DRAFT",
		Short: "Check field values against the layout and schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := opts.openDraft(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer controller.Clear()

			report := controller.Validate()
			if opts.jsonOutput {
				if err := opts.printJSON(cmd, report); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				for _, key := range report.Orphans {
					fmt.Fprintf(out, "orphan field: %s\n", key)
				}
				for _, problem := range report.Problems {
					fmt.Fprintf(out, "invalid: %s\n", problem.Error())
				}
				if report.OK() {
					fmt.Fprintln(out, "OK")
				}
			}
			if !report.OK() {
				return errors.New("draft has field problems")
			}
			return nil
		},
	}
}
