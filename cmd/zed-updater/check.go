package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer version is available",
		Long:  `Compare the installed version with the latest release, without downloading anything.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			updater, err := opts.newUpdater(store)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Installed version: %s\n", updater.GetCurrentVersion(ctx))

			latest, found := updater.CheckForUpdates(ctx)
			if !found {
				fmt.Fprintln(out, "No update available")
				return nil
			}
			fmt.Fprintf(out, "Latest version: %s\n", latest.Version)
			if !latest.PublishedAt.IsZero() {
				fmt.Fprintf(out, "Published: %s\n", latest.PublishedAt.Format("2006-01-02"))
			}
			fmt.Fprintf(out, "Download: %s\n", latest.DownloadURL)
			if latest.Notes != "" {
				fmt.Fprintf(out, "Release notes:\n%s\n", latest.Notes)
			}
			return nil
		},
	}
}

func newCurrentVersionCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "current-version",
		Short: "Print the version of the installed editor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			updater, err := opts.newUpdater(store)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), updater.GetCurrentVersion(cmd.Context()))
			return nil
		},
	}
}

func newCleanupCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Remove old files left in the download directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			updater, err := opts.newUpdater(store)
			if err != nil {
				return err
			}
			removed, err := updater.CleanupTempFiles()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d file(s) removed\n", removed)
			return nil
		},
	}
}
