package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/sync"
	"github.com/EpykLab/gryt-ci/pkg/color"
)

var syncPushVersion string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local store with the remote authority",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload local records that are not yet synced",
	Long: `Push every dirty generation and evolution to the remote authority,
or just one generation with --version. Conflicting records are marked
and skipped; the rest of the batch continues.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		version := syncPushVersion
		if version != "" {
			version = normalizeVersionArg(version)
		}

		var report *sync.Report
		err := e.withStoreLock("sync push", func() error {
			var innerErr error
			report, innerErr = e.syncEngine().Push(context.Background(), version)
			return innerErr
		})
		if err != nil {
			fmtErr("sync push: %v", err)
			os.Exit(1)
		}
		printSyncReport(report)
		if !report.Clean() {
			os.Exit(1)
		}
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Fetch remote records into the local store",
	Long: `Pull the remote authority's records. Records already known by remote
identity are overwritten locally; a local record holding the same
version without that identity is flagged as a conflict and left
untouched. Local-only records are never deleted.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		var report *sync.Report
		err := e.withStoreLock("sync pull", func() error {
			var innerErr error
			report, innerErr = e.syncEngine().Pull(context.Background())
			return innerErr
		})
		if err != nil {
			fmtErr("sync pull: %v", err)
			os.Exit(1)
		}
		printSyncReport(report)
		if !report.Clean() {
			os.Exit(1)
		}
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Compare local records against the remote authority",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		report, err := e.syncEngine().Status(context.Background())
		if err != nil {
			fmtErr("sync status: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(report)
			return
		}
		if len(report.Items) == 0 {
			fmt.Println("Nothing to sync.")
			return
		}
		for _, item := range report.Items {
			state := string(item.State)
			switch item.State {
			case sync.StateSynced:
				state = color.Success(state)
			case sync.StateConflict, sync.StateFailed:
				state = color.Error(state)
			case sync.StatePending, sync.StateLocalOnly:
				state = color.Warning(state)
			}
			fmt.Printf("%-10s  %-24s %s\n", item.Kind, item.Key, state)
		}
	},
}

func printSyncReport(report *sync.Report) {
	if jsonOutput {
		outputJSON(report)
		return
	}
	for _, item := range report.Items {
		outcome := string(item.Outcome)
		switch item.Outcome {
		case sync.OutcomeCreated, sync.OutcomeUpdated:
			outcome = color.Success(outcome)
		case sync.OutcomeConflict, sync.OutcomeErrored:
			outcome = color.Error(outcome)
		}
		line := fmt.Sprintf("%-10s  %-24s %s", item.Kind, item.Key, outcome)
		if item.Detail != "" {
			line += "  " + color.Dim(item.Detail)
		}
		fmt.Println(line)
	}
	fmt.Printf("%d created, %d updated, %d conflicts, %d errors\n",
		report.Created, report.Updated, report.Conflicts, report.Errors)
}

func init() {
	syncPushCmd.Flags().StringVar(&syncPushVersion, "version", "", "push only this generation and its evolutions")

	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncPullCmd)
	syncCmd.AddCommand(syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
