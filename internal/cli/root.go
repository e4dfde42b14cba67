// Package cli implements the draftctl commands. Every command is one short
// editing session against the draft API: load, act, flush, exit.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"draftline/internal/client"
	"draftline/internal/config"
	"draftline/internal/draft"
	"draftline/internal/editor"
)

type options struct {
	apiURL     string
	jsonOutput bool
	verbose    bool
}

// NewRootCmd builds the command tree. Each call returns a fresh tree with its
// own flag state.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "draftctl",
		Short:         "Edit, version and export drafts",
		Long:          "draftctl drives the draft editing engine against a draftline API server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", "", "API base URL (default: $DRAFT_API_URL or http://localhost:8787)")
	root.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "output JSON")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine warnings to stderr")

	root.AddCommand(
		newListCmd(opts),
		newShowCmd(opts),
		newRenderCmd(opts),
		newValidateCmd(opts),
		newSetCmd(opts),
		newShiftCmd(opts, "undo"),
		newShiftCmd(opts, "redo"),
		newSuggestCmd(opts),
		newInsertCmd(opts),
		newRejectCmd(opts),
		newEvidenceCmd(opts),
		newUploadCmd(opts),
		newExportCmd(opts),
		newFinalizeCmd(opts),
		newSearchCmd(opts),
	)
	return root
}

// Execute runs draftctl and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (o *options) config() config.Config {
	cfg := config.Load()
	if strings.TrimSpace(o.apiURL) != "" {
		cfg.APIURL = o.apiURL
	}
	return cfg
}

func (o *options) client() *client.Client {
	return client.New(o.config().APIURL, nil)
}

// openDraft loads draftID into a fresh controller. Callers must close the
// returned controller so staged edits are flushed.
func (o *options) openDraft(ctx context.Context, draftID string, size draft.ResponseSize) (*editor.Controller, error) {
	cfg := o.config()
	logger := log.New(io.Discard, "", 0)
	if o.verbose {
		logger = log.New(os.Stderr, "draftctl: ", log.LstdFlags)
	}
	controller := editor.New(client.New(cfg.APIURL, nil), editor.Options{
		SaveDelay:    cfg.SaveDelay,
		ResponseSize: size,
		Logger:       logger,
	})
	if err := controller.Load(ctx, draftID); err != nil {
		controller.Clear()
		return nil, fmt.Errorf("load draft %s: %w", draftID, err)
	}
	return controller, nil
}

func (o *options) printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func shortVersion(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
