package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	zedupdate "github.com/zedloc/zed-updater"
	shared "github.com/zedloc/zed-updater/cmd"
	"github.com/zedloc/zed-updater/process"
	"github.com/zedloc/zed-updater/settings"
)

const exitInterrupted = 130

// exitError carries the process exit code up to main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logFile    string
	repo       string
	source     string
	verbose    bool

	logOutput io.Closer
}

func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "zed-updater",
		Short: "Keep the Zed editor up to date",
		Long: `zed-updater finds the latest Zed build published on a release registry,
downloads it and replaces the installed executable, keeping a backup of the previous one.

Run "zed-updater schedule" to keep checking in the background.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: opts.setupLogging,
		PersistentPostRun: func(*cobra.Command, []string) {
			opts.closeLog()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", settings.DefaultFileName, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logFile, "log-file", "", "Append the logs to this file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Display debugging information")
	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", "", "Repository to take the releases from, as owner/name or a URL (overrides github_repo)")
	rootCmd.PersistentFlags().StringVar(&opts.source, "source", "", "Release source: github, gitea, gitlab, http or auto (overrides release_source)")

	_ = rootCmd.RegisterFlagCompletionFunc("source", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"auto", zedupdate.SourceGitHub, zedupdate.SourceGitea, zedupdate.SourceGitLab, zedupdate.SourceHTTP}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newCheckCmd(opts))
	rootCmd.AddCommand(newUpdateCmd(opts))
	rootCmd.AddCommand(newCurrentVersionCmd(opts))
	rootCmd.AddCommand(newScheduleCmd(opts))
	rootCmd.AddCommand(newCleanupCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

func (o *globalOptions) setupLogging(cmd *cobra.Command, _ []string) error {
	if o.logFile != "" {
		file, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("cannot open log file: %w", err)
		}
		o.logOutput = file
		zedupdate.SetLogger(log.New(file, "", log.LstdFlags))
		return nil
	}
	if o.verbose {
		zedupdate.SetLogger(log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
		return nil
	}
	zedupdate.SetLogger(nil)
	return nil
}

func (o *globalOptions) closeLog() {
	if o.logOutput != nil {
		zedupdate.SetLogger(nil)
		_ = o.logOutput.Close()
		o.logOutput = nil
	}
}

// openStore loads the configuration. A file that cannot be parsed only prints a warning:
// the store falls back to the defaults.
func (o *globalOptions) openStore(cmd *cobra.Command) (*settings.Store, error) {
	store, err := settings.Open(o.configPath)
	if err != nil {
		if store == nil || !errors.Is(err, settings.ErrConfiguration) {
			return nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", err)
	}
	return store, nil
}

// newUpdater builds the updater from the configuration and the --repo and --source flags.
// The flags never change the configuration file.
func (o *globalOptions) newUpdater(store *settings.Store) (*zedupdate.Updater, error) {
	config := zedupdate.Config{
		Settings: store,
		Process:  process.New(),
	}
	if o.repo != "" || o.source != "" {
		current, err := shared.OverrideRepository(store.Snapshot(), o.repo, o.source)
		if err != nil {
			return nil, err
		}
		client, err := zedupdate.NewHTTPClient(current, time.Duration(current.RequestTimeout)*time.Second)
		if err != nil {
			return nil, err
		}
		config.Source, err = zedupdate.SourceFromSettings(current, client)
		if err != nil {
			return nil, err
		}
		config.Repository = zedupdate.ParseSlug(current.Repository)
	}
	return zedupdate.NewUpdater(config)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// resultError turns a failed result into the command error, with the interrupted exit code
// when the failure comes from a signal.
func resultError(ctx context.Context, result *zedupdate.UpdateResult) error {
	if result.Success {
		return nil
	}
	err := errors.New(result.String())
	if ctx.Err() != nil {
		return &exitError{code: exitInterrupted, err: err}
	}
	return &exitError{code: 1, err: err}
}
