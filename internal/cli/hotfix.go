package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/pkg/color"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

var (
	hotfixTitle       string
	hotfixDescription string
)

var hotfixCmd = &cobra.Command{
	Use:   "hotfix",
	Short: "Manage emergency fixes on promoted releases",
}

var hotfixNewCmd = &cobra.Command{
	Use:   "new <base-version>",
	Short: "Create a hotfix generation for a promoted release",
	Long: `Create a draft generation on the next free patch version of the given
promoted release, carrying a single fix change. Hotfix generations are
promoted under the relaxed hotfix gate: at least one passing evolution
and nothing still running.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		var (
			g   *model.Generation
			dec contract.SyncDecision
		)
		err := e.withStoreLock("hotfix new", func() error {
			var innerErr error
			g, dec, innerErr = e.hotfix.Create(args[0], hotfixTitle, hotfixDescription)
			return innerErr
		})
		if err != nil {
			fmtErr("create hotfix: %v", err)
			os.Exit(1)
		}
		maybeAutoPush(e, dec)

		if jsonOutput {
			outputJSON(g)
		} else {
			fmt.Printf("Created hotfix %s for %s\n", color.Highlight(g.Version), args[0])
		}
	},
}

var hotfixListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hotfix generations, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		hotfixes, err := e.hotfix.List()
		if err != nil {
			fmtErr("list hotfixes: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(hotfixes)
			return
		}
		if len(hotfixes) == 0 {
			fmt.Println("No hotfixes.")
			return
		}
		for _, g := range hotfixes {
			title := ""
			if len(g.Changes) > 0 {
				title = g.Changes[0].Title
			}
			fmt.Printf("%s  %-9s  %s\n", color.Highlight(g.Version), g.Status, title)
		}
	},
}

var hotfixStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize hotfix activity per release line",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		stats, err := e.hotfix.ComputeStats()
		if err != nil {
			fmtErr("hotfix stats: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(stats)
			return
		}
		fmt.Printf("Hotfixes: %d total, %d promoted, %d drafts\n", stats.Total, stats.Promoted, stats.Drafts)
		for line, count := range stats.ByLine {
			fmt.Printf("  %s: %d\n", line, count)
		}
	},
}

func init() {
	hotfixNewCmd.Flags().StringVarP(&hotfixTitle, "title", "t", "", "what the fix addresses")
	hotfixNewCmd.Flags().StringVarP(&hotfixDescription, "description", "d", "", "hotfix description")
	hotfixNewCmd.MarkFlagRequired("title")

	hotfixCmd.AddCommand(hotfixNewCmd)
	hotfixCmd.AddCommand(hotfixListCmd)
	hotfixCmd.AddCommand(hotfixStatsCmd)
	rootCmd.AddCommand(hotfixCmd)
}
