package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"draftline/internal/draft"
)

func newSetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set DRAFT KEY=VALUE...",
		Short: "Set field values and save them as one new version",
		Long: `Sets one or more fields and saves them in a single request.
VALUE "null" clears a field; numeric values are stored as numbers.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates := make(map[string]draft.Value, len(args)-1)
			order := make([]string, 0, len(args)-1)
			for _, arg := range args[1:] {
				key, raw, ok := strings.Cut(arg, "=")
				key = strings.TrimSpace(key)
				if !ok || key == "" {
					return fmt.Errorf("expected KEY=VALUE, got %q", arg)
				}
				if _, seen := updates[key]; !seen {
					order = append(order, key)
				}
				updates[key] = draft.ParseValue(raw)
			}

			controller, err := opts.openDraft(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer controller.Clear()

			for _, key := range order {
				if err := controller.SetField(key, updates[key]); err != nil {
					return err
				}
			}
			saved, err := controller.SaveFields(cmd.Context())
			if err != nil {
				return fmt.Errorf("save: %w", err)
			}
			state := controller.Snapshot()
			if opts.jsonOutput {
				return opts.printJSON(cmd, map[string]any{"saved": saved, "currentVersionId": state.CurrentVersionID})
			}
			if !saved {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to save.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %d field(s) as version %s\n", len(order), shortVersion(state.CurrentVersionID))
			return nil
		},
	}
}

// newShiftCmd builds undo and redo. The server owns the version stacks, so
// these act on the API directly rather than on a freshly loaded controller
// whose local stacks are empty.
func newShiftCmd(opts *options, op string) *cobra.Command {
	short := "Roll the draft back one version"
	if op == "redo" {
		short = "Re-apply the last undone version"
	}
	return &cobra.Command{
		Use:   op + " DRAFT",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := opts.client()
			var (
				result draft.VersionShift
				err    error
			)
			if op == "undo" {
				result, err = api.Undo(cmd.Context(), args[0])
			} else {
				result, err = api.Redo(cmd.Context(), args[0])
			}
			if err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}
			if opts.jsonOutput {
				return opts.printJSON(cmd, result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now at version %s\n", shortVersion(result.CurrentVersionID))
			return nil
		},
	}
}
