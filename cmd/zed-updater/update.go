package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	zedupdate "github.com/zedloc/zed-updater"
)

func newUpdateCmd(opts *globalOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download and install the latest version",
		Long: `Check for a newer release and install it: the editor is closed, the executable
is backed up and replaced, then started again when auto_start_after_update is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			store.EnsureDirectories()
			updater, err := opts.newUpdater(store)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			var progress zedupdate.ProgressFunc
			if !quiet {
				bar := newProgressBar(cmd.ErrOrStderr())
				defer func() { _ = bar.Exit() }()
				progress = func(percent float64, message string) {
					bar.Describe(message)
					_ = bar.Set(int(percent))
				}
			}

			result := updater.CheckAndUpdate(ctx, progress)
			if result.Success {
				fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			}
			return resultError(ctx, result)
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not display the progress bar")
	return cmd
}

func newProgressBar(w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}
