package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newExportCmd(opts *options) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export DRAFT",
		Short: "Export a draft as HTML or PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			data, contentType, err := opts.client().Export(cmd.Context(), args[0], format)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			path := output
			if path == "" {
				path = args[0] + "." + format
			}
			if path == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %d bytes)\n", path, contentType, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "html", "export format: html or pdf")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path, - for stdout (default: DRAFT.FORMAT)")
	return cmd
}

func newFinalizeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "finalize DRAFT",
		Short: "Mark a draft finalized; it becomes read-only",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Finalize(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("finalize: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Finalized %s\n", args[0])
			return nil
		},
	}
}
