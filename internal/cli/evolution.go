package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/pkg/color"
	"github.com/EpykLab/gryt-ci/pkg/model"
	"github.com/EpykLab/gryt-ci/pkg/webhook"
)

var (
	evoChangeIDs []string
	evoOwner     string
	evoStatus    string
	evoDetails   []string
)

var evolutionCmd = &cobra.Command{
	Use:   "evolution",
	Short: "Manage evolutions (tagged proof attempts)",
}

var evolutionStartCmd = &cobra.Command{
	Use:   "start <version>",
	Short: "Start an evolution against a generation's changes",
	Long: `Allocate the next RC tag for the generation and record a running
evolution claiming the given changes. Report the outcome later with
'gryt evolution complete'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		owner := evoOwner
		if owner == "" {
			owner = e.actor
		}

		var (
			ev  *model.Evolution
			dec contract.SyncDecision
			err error
		)
		err = e.withStoreLock("evolution start", func() error {
			ev, dec, err = e.contract.RecordEvolution(args[0], evoChangeIDs, owner)
			return err
		})
		if err != nil {
			fmtErr("start evolution: %v", err)
			os.Exit(1)
		}
		maybeAutoPush(e, dec)

		if jsonOutput {
			outputJSON(ev)
		} else {
			fmt.Printf("Started evolution %s (changes: %s)\n", color.Tag(ev.Tag), strings.Join(ev.ChangeIDs, ", "))
		}
	},
}

var evolutionCompleteCmd = &cobra.Command{
	Use:   "complete <tag>",
	Short: "Record an evolution's terminal outcome",
	Long: `Record the outcome of a proof attempt. A pass marks every change the
evolution references as proven; a later failure never reverts proof, but
an unresolved failure still blocks promotion.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		status := model.EvolutionStatus(evoStatus)
		details, err := parseDetailFlags(evoDetails)
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		var (
			ev  *model.Evolution
			dec contract.SyncDecision
		)
		err = e.withStoreLock("evolution complete", func() error {
			ev, dec, err = e.contract.CompleteEvolution(args[0], status, details)
			return err
		})
		if err != nil {
			fmtErr("complete evolution: %v", err)
			os.Exit(1)
		}
		e.notify(func(c *webhook.Client) error {
			return c.SendEvolutionCompleted(ev.Version, ev.Tag, string(ev.Status), e.actor)
		})
		maybeAutoPush(e, dec)

		if jsonOutput {
			outputJSON(ev)
			return
		}
		if ev.Status == model.EvolutionPass {
			fmt.Printf("Evolution %s %s\n", color.Tag(ev.Tag), color.Success("passed"))
		} else {
			fmt.Printf("Evolution %s %s\n", color.Tag(ev.Tag), color.Error("failed"))
		}
	},
}

var evolutionListCmd = &cobra.Command{
	Use:   "list <version>",
	Short: "List a generation's evolutions in tag order",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		evolutions, err := e.store.ListEvolutions(normalizeVersionArg(args[0]))
		if err != nil {
			fmtErr("list evolutions: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(evolutions)
			return
		}
		if len(evolutions) == 0 {
			fmt.Println("No evolutions.")
			return
		}
		for _, ev := range evolutions {
			completed := ""
			if ev.CompletedAt != nil {
				completed = ev.CompletedAt.Format("2006-01-02 15:04")
			}
			fmt.Printf("%s  %-7s  %-20s %s\n",
				color.Tag(ev.Tag), ev.Status, strings.Join(ev.ChangeIDs, ","), color.Dim(completed))
		}
	},
}

var evolutionDeleteCmd = &cobra.Command{
	Use:   "delete <tag>",
	Short: "Delete an evolution record (its tag stays burned)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		var dec contract.SyncDecision
		err := e.withStoreLock("evolution delete", func() error {
			var innerErr error
			dec, innerErr = e.contract.DeleteEvolution(args[0])
			return innerErr
		})
		if err != nil {
			fmtErr("delete evolution: %v", err)
			os.Exit(1)
		}
		maybeAutoPush(e, dec)

		if !jsonOutput {
			fmt.Printf("Deleted evolution %s\n", args[0])
		}
	},
}

// parseDetailFlags parses repeated "key=value" detail pairs.
func parseDetailFlags(flags []string) (map[string]any, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	details := make(map[string]any, len(flags))
	for _, raw := range flags {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --detail %q, want key=value", raw)
		}
		details[key] = value
	}
	return details, nil
}

func init() {
	evolutionStartCmd.Flags().StringArrayVar(&evoChangeIDs, "change", nil, "change id this evolution proves (repeatable)")
	evolutionStartCmd.Flags().StringVar(&evoOwner, "owner", "", "evolution owner (defaults to the current actor)")

	evolutionCompleteCmd.Flags().StringVar(&evoStatus, "status", "", "terminal status: pass or fail")
	evolutionCompleteCmd.Flags().StringArrayVar(&evoDetails, "detail", nil, `outcome detail as "key=value" (repeatable)`)
	evolutionCompleteCmd.MarkFlagRequired("status")

	evolutionCmd.AddCommand(evolutionStartCmd)
	evolutionCmd.AddCommand(evolutionCompleteCmd)
	evolutionCmd.AddCommand(evolutionListCmd)
	evolutionCmd.AddCommand(evolutionDeleteCmd)
	rootCmd.AddCommand(evolutionCmd)
}
