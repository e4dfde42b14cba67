package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"draftline/internal/draft"
)

func newSuggestCmd(opts *options) *cobra.Command {
	var (
		evidence string
		size     string
	)
	cmd := &cobra.Command{
		Use:   "suggest DRAFT TARGET [INSTRUCTION]",
		Short: "Ask for a suggested value for one field",
		Long: `Requests an AI suggestion for TARGET. The suggestion stays pending
until it is inserted or rejected.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			responseSize := draft.ResponseSize(strings.ToLower(strings.TrimSpace(size)))
			switch responseSize {
			case "", draft.ResponseShort, draft.ResponseMedium, draft.ResponseLong:
			default:
				return fmt.Errorf("--size must be short, medium or long")
			}

			controller, err := opts.openDraft(cmd.Context(), args[0], responseSize)
			if err != nil {
				return err
			}
			defer controller.Clear()

			for _, id := range strings.Split(evidence, ",") {
				if id = strings.TrimSpace(id); id != "" {
					controller.ToggleEvidence(id)
				}
			}
			instruction := ""
			if len(args) == 3 {
				instruction = args[2]
			}
			suggestion, err := controller.RequestSuggestion(cmd.Context(), args[1], instruction)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return opts.printJSON(cmd, suggestion)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Suggestion %s for %s:\n", suggestion.SuggestionID, suggestion.TargetBlock)
			fmt.Fprintf(out, "  %s\n", suggestion.Content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&evidence, "evidence", "e", "", "comma-separated evidence file ids to send as context")
	cmd.Flags().StringVar(&size, "size", "", "response size: short, medium or long")
	return cmd
}

func newInsertCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "insert DRAFT SUGGESTION",
		Short: "Insert a pending suggestion as a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := opts.openDraft(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer controller.Clear()

			if err := controller.InsertSuggestion(cmd.Context(), args[1]); err != nil {
				return err
			}
			state := controller.Snapshot()
			if opts.jsonOutput {
				return opts.printJSON(cmd, map[string]any{"suggestionId": args[1], "currentVersionId": state.CurrentVersionID})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inserted %s; now at version %s\n", args[1], shortVersion(state.CurrentVersionID))
			return nil
		},
	}
}

func newRejectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reject DRAFT SUGGESTION",
		Short: "Reject a pending suggestion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := opts.openDraft(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer controller.Clear()

			if err := controller.RejectSuggestion(cmd.Context(), args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s\n", args[1])
			return nil
		},
	}
}
