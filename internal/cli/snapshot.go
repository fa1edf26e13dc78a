package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/snapshot"
	"github.com/EpykLab/gryt-ci/pkg/color"
	"github.com/EpykLab/gryt-ci/pkg/model"
	"github.com/EpykLab/gryt-ci/pkg/nameutil"
	"github.com/EpykLab/gryt-ci/pkg/template"
	"github.com/EpykLab/gryt-ci/pkg/webhook"
)

var snapshotKeep int

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Manage whole-store snapshots",
}

var snapshotCreateCmd = &cobra.Command{
	Use:   "create [label]",
	Short: "Snapshot the whole record store",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		label := ""
		if len(args) > 0 {
			// Placeholders like {date} expand before validation.
			label = template.ExpandLabel(args[0])
			if err := nameutil.ValidateLabel(label); err != nil {
				fmtErr("invalid label: %v", err)
				os.Exit(1)
			}
		}

		var info *model.SnapshotInfo
		err := e.withStoreLock("snapshot create", func() error {
			var innerErr error
			info, innerErr = e.snapshots.Create(label)
			return innerErr
		})
		if err != nil {
			fmtErr("create snapshot: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(info)
		} else {
			fmt.Printf("Created snapshot %s\n", color.SnapshotID(info.SnapshotID.ShortID()))
		}
	},
}

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		infos, err := e.snapshots.List()
		if err != nil {
			fmtErr("list snapshots: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(infos)
			return
		}
		if len(infos) == 0 {
			fmt.Println("No snapshots.")
			return
		}
		for _, info := range infos {
			label := info.Label
			if label == "" {
				label = color.Dim("(no label)")
			}
			fmt.Printf("%s  %s  %8d bytes  %s\n",
				color.SnapshotID(info.SnapshotID.ShortID()),
				info.CreatedAt.Format("2006-01-02 15:04"), info.SizeBytes, label)
		}
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		info, err := e.snapshots.Resolve(args[0])
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		if err := e.snapshots.Delete(info.SnapshotID); err != nil {
			fmtErr("delete snapshot: %v", err)
			os.Exit(1)
		}

		if !jsonOutput {
			fmt.Printf("Deleted snapshot %s\n", info.SnapshotID.ShortID())
		}
	},
}

var snapshotDiffCmd = &cobra.Command{
	Use:   "diff <snapshot>",
	Short: "Compare the live store against a snapshot",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		report, err := e.snapshots.Diff(args[0])
		if err != nil {
			fmtErr("diff snapshot: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(report)
			return
		}
		fmt.Printf("Snapshot %s: %d generations, %d evolutions (live: %d, %d)\n",
			color.SnapshotID(report.Snapshot.SnapshotID.ShortID()),
			report.Generations.Snapshot, report.Evolutions.Snapshot,
			report.Generations.Live, report.Evolutions.Live)
		if report.Clean() {
			fmt.Println("No differences.")
			return
		}
		for _, entry := range report.Entries {
			fmt.Printf("  %-10s %-20s %s\n", entry.Kind, entry.Key, diffStateLabel(entry.State))
		}
	},
}

func diffStateLabel(state snapshot.DiffState) string {
	switch state {
	case snapshot.DiffOnlyLive:
		return color.Warning("only in live store")
	case snapshot.DiffOnlySnapshot:
		return color.Warning("only in snapshot")
	case snapshot.DiffChanged:
		return color.Warning("changed")
	}
	return string(state)
}

var snapshotCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old snapshots beyond the retention limit",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		keep := snapshotKeep
		if keep == 0 {
			keep = e.cfg.Snapshots.KeepMax
		}

		removed, err := e.snapshots.CleanupOld(keep)
		if err != nil {
			fmtErr("cleanup snapshots: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"removed": removed, "kept": keep})
		} else {
			fmt.Printf("Removed %d snapshots (keeping %d)\n", removed, keep)
		}
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <snapshot>",
	Short: "Roll the whole store back to a snapshot",
	Long: `Replace the entire record store with the contents of a snapshot,
addressed by ID prefix or label. The live state is snapshotted first,
so the rollback itself can be undone. The audit log is never rolled
back; the rollback stays on record.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		var result *snapshot.RestoreResult
		err := e.withStoreLock("rollback", func() error {
			var innerErr error
			result, innerErr = e.snapshots.Restore(args[0])
			return innerErr
		})
		if err != nil {
			fmtErr("rollback: %v", err)
			os.Exit(1)
		}
		e.notify(func(c *webhook.Client) error {
			return c.SendStoreRolledBack(
				result.Restored.SnapshotID.ShortID(),
				result.Backup.SnapshotID.ShortID(), e.actor)
		})

		if jsonOutput {
			outputJSON(result)
			return
		}
		fmt.Printf("%s store to snapshot %s (backup: %s)\n",
			color.Success("Rolled back"),
			color.SnapshotID(result.Restored.SnapshotID.ShortID()),
			color.SnapshotID(result.Backup.SnapshotID.ShortID()))
	},
}

func init() {
	snapshotCleanupCmd.Flags().IntVar(&snapshotKeep, "keep", 0, "snapshots to keep (default: config snapshots.keep_max)")

	snapshotCmd.AddCommand(snapshotCreateCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotDeleteCmd)
	snapshotCmd.AddCommand(snapshotDiffCmd)
	snapshotCmd.AddCommand(snapshotCleanupCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(rollbackCmd)
}
