package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newEvidenceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "evidence DRAFT",
		Short: "List evidence files uploaded to a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := opts.client().ListEvidence(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list evidence: %w", err)
			}
			if opts.jsonOutput {
				return opts.printJSON(cmd, files)
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No evidence files.")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSIZE\tTYPE\tNAME")
			for _, file := range files {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", file.ID, file.Size, file.ContentType, file.Name)
			}
			return w.Flush()
		},
	}
}

func newUploadCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "upload DRAFT FILE",
		Short: "Upload a supporting file for suggestions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			controller, err := opts.openDraft(cmd.Context(), args[0], "")
			if err != nil {
				return err
			}
			defer controller.Clear()

			file, err := controller.UploadEvidence(cmd.Context(), filepath.Base(args[1]), f, info.Size())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return opts.printJSON(cmd, file)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s as %s (%d bytes)\n", file.Name, file.ID, file.Size)
			return nil
		},
	}
}
