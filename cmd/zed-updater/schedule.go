package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	zedupdate "github.com/zedloc/zed-updater"
	"github.com/zedloc/zed-updater/schedule"
)

func newScheduleCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Keep checking for updates in the foreground",
		Long: `Run the scheduler until interrupted (Ctrl+C or SIGTERM). Checks follow check_cron,
check_time and check_days, or check_interval_hours, from the configuration file.`,
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

			out := cmd.OutOrStdout()
			scheduler := schedule.New(updater, store)
			scheduler.AddObserver(func(updateAvailable bool, result *zedupdate.UpdateResult) {
				if updateAvailable {
					fmt.Fprintf(out, "%s installed version %s\n", time.Now().Format(time.DateTime), result.InstalledVersion)
					return
				}
				fmt.Fprintf(out, "%s %s\n", time.Now().Format(time.DateTime), result)
			})
			if !scheduler.Start() {
				return errors.New("automatic checks are disabled (auto_check_enabled)")
			}
			fmt.Fprintf(out, "Next check at %s\n", scheduler.GetStatus().NextRun.Format(time.DateTime))

			<-ctx.Done()
			scheduler.Stop()
			if removed, err := updater.CleanupTempFiles(); err == nil && removed > 0 {
				fmt.Fprintf(out, "%d old download(s) removed\n", removed)
			}
			return nil
		},
	}
}
