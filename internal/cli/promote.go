package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/pkg/color"
	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/model"
	"github.com/EpykLab/gryt-ci/pkg/webhook"
)

var promoteDryRun bool

var promoteCmd = &cobra.Command{
	Use:   "promote <version>",
	Short: "Promote a generation after all gates pass",
	Long: `Evaluate every promotion gate against the generation and, if all
pass, promote it. A snapshot of the store is taken first, and the
promoted version is tagged in git when the store lives in a work tree.
--dry-run evaluates the gates without changing anything.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()
		engine := e.gateEngine()
		version := normalizeVersionArg(args[0])

		if promoteDryRun {
			report, err := engine.Evaluate(version)
			if err != nil {
				fmtErr("evaluate gates: %v", err)
				os.Exit(1)
			}
			printReport(report)
			if !report.Passed {
				os.Exit(1)
			}
			return
		}

		var (
			g      *model.Generation
			report *model.GateReport
		)
		err := e.withStoreLock("promote", func() error {
			var innerErr error
			g, report, innerErr = engine.Promote(version)
			return innerErr
		})
		if report != nil {
			printReport(report)
		}
		if err != nil {
			fmtErr("promote: %v", err)
			os.Exit(1)
		}

		e.notify(func(c *webhook.Client) error {
			return c.SendGenerationPromoted(g.Version, e.actor, g.Hotfix)
		})

		// Promotion is a completion-grade event: hybrid mode syncs too.
		due := e.cfg.ExecutionMode == config.ModeCloud || e.cfg.ExecutionMode == config.ModeHybrid
		maybeAutoPush(e, contract.SyncDecision{Due: due, Version: g.Version})

		if keep := e.cfg.Snapshots.KeepMax; keep > 0 {
			if _, err := e.snapshots.CleanupOld(keep); err != nil {
				fmtErr("warning: snapshot cleanup: %v", err)
			}
		}

		if jsonOutput {
			outputJSON(map[string]any{"generation": g, "gate_report": report})
		} else {
			fmt.Printf("%s %s\n", color.Success("Promoted"), color.Highlight(g.Version))
		}
	},
}

func printReport(report *model.GateReport) {
	if jsonOutput {
		return
	}
	for _, res := range report.Results {
		mark := color.Success("PASS")
		if !res.Passed {
			mark = color.Error("FAIL")
		}
		fmt.Printf("  %s  %-22s %s\n", mark, res.Gate, res.Message)
	}
}

func init() {
	promoteCmd.Flags().BoolVar(&promoteDryRun, "dry-run", false, "evaluate gates without promoting")
	rootCmd.AddCommand(promoteCmd)
}
