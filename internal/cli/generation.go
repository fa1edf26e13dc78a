package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/contract"
	"github.com/EpykLab/gryt-ci/pkg/color"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

var (
	genDescription string
	genChanges     []string
)

var generationCmd = &cobra.Command{
	Use:   "generation",
	Short: "Manage generations (release contracts)",
}

var generationNewCmd = &cobra.Command{
	Use:   "new <version>",
	Short: "Create a draft generation",
	Long: `Create a draft generation for a version. Declare changes inline with
--change "id:type:title" (type is add, fix, refine, or remove), or load
them later from a contract file with 'gryt generation load'.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		changes, err := parseChangeFlags(genChanges)
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}

		var (
			g   *model.Generation
			dec contract.SyncDecision
		)
		err = e.withStoreLock("generation new", func() error {
			g, dec, err = e.contract.CreateGeneration(args[0], genDescription, changes)
			return err
		})
		if err != nil {
			fmtErr("create generation: %v", err)
			os.Exit(1)
		}
		maybeAutoPush(e, dec)

		if jsonOutput {
			outputJSON(g)
		} else {
			fmt.Printf("Created generation %s with %d changes\n", color.Highlight(g.Version), len(g.Changes))
		}
	},
}

var generationLoadCmd = &cobra.Command{
	Use:   "load <contract-file>",
	Short: "Create or update a generation from a contract file",
	Long: `Apply a YAML contract file. An unknown version becomes a new draft
generation; an existing draft gets its whole change set replaced by the
file's contents. Proof state never carries over a replacement.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		var (
			g   *model.Generation
			dec contract.SyncDecision
			err error
		)
		err = e.withStoreLock("generation load", func() error {
			g, dec, err = e.contract.LoadContractFile(args[0])
			return err
		})
		if err != nil {
			fmtErr("load contract: %v", err)
			os.Exit(1)
		}
		maybeAutoPush(e, dec)

		if jsonOutput {
			outputJSON(g)
		} else {
			fmt.Printf("Applied contract for %s (%d changes)\n", color.Highlight(g.Version), len(g.Changes))
		}
	},
}

var generationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List generations, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		generations, err := e.store.ListGenerations()
		if err != nil {
			fmtErr("list generations: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(generations)
			return
		}
		if len(generations) == 0 {
			fmt.Println("No generations.")
			return
		}
		for _, g := range generations {
			marker := ""
			if g.Hotfix {
				marker = " " + color.Warning("[hotfix]")
			}
			proven := 0
			for _, c := range g.Changes {
				if c.Status == model.ChangeProven {
					proven++
				}
			}
			fmt.Printf("%s  %-9s  %d/%d proven  %s%s\n",
				color.Highlight(g.Version), g.Status, proven, len(g.Changes),
				color.Dim(g.CreatedAt.Format("2006-01-02 15:04")), marker)
		}
	},
}

var generationShowCmd = &cobra.Command{
	Use:   "show <version>",
	Short: "Show a generation's contract and its evolutions",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		g, err := e.store.GetGeneration(normalizeVersionArg(args[0]))
		if err != nil {
			fmtErr("show generation: %v", err)
			os.Exit(1)
		}
		evolutions, err := e.store.ListEvolutions(g.Version)
		if err != nil {
			fmtErr("list evolutions: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"generation": g, "evolutions": evolutions})
			return
		}

		fmt.Printf("%s  %s", color.Header(g.Version), g.Status)
		if g.Hotfix {
			fmt.Printf("  %s", color.Warning("[hotfix]"))
		}
		fmt.Println()
		if g.Description != "" {
			fmt.Printf("  %s\n", g.Description)
		}
		fmt.Printf("  created %s by %s  (sync: %s)\n",
			g.CreatedAt.Format("2006-01-02 15:04"), g.CreatedBy, g.Sync.Status)
		if g.PromotedAt != nil {
			fmt.Printf("  promoted %s by %s\n", g.PromotedAt.Format("2006-01-02 15:04"), g.PromotedBy)
		}

		fmt.Println("\nChanges:")
		for _, c := range g.Changes {
			status := color.Dim(string(c.Status))
			if c.Status == model.ChangeProven {
				status = color.Success(string(c.Status))
			}
			fmt.Printf("  %-20s %-7s %-9s %s\n", c.ID, c.Type, status, c.Title)
		}

		if len(evolutions) > 0 {
			fmt.Println("\nEvolutions:")
			for _, ev := range evolutions {
				status := string(ev.Status)
				switch ev.Status {
				case model.EvolutionPass:
					status = color.Success(status)
				case model.EvolutionFail:
					status = color.Error(status)
				}
				fmt.Printf("  %s  %-7s  changes: %s\n", color.Tag(ev.Tag), status, strings.Join(ev.ChangeIDs, ", "))
			}
		}
	},
}

// parseChangeFlags parses repeated "id:type:title" declarations.
func parseChangeFlags(flags []string) ([]model.Change, error) {
	changes := make([]model.Change, 0, len(flags))
	for _, raw := range flags {
		parts := strings.SplitN(raw, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid --change %q, want id:type:title", raw)
		}
		changes = append(changes, model.Change{
			ID:    parts[0],
			Type:  model.ChangeType(parts[1]),
			Title: parts[2],
		})
	}
	return changes, nil
}

func init() {
	generationNewCmd.Flags().StringVarP(&genDescription, "description", "d", "", "generation description")
	generationNewCmd.Flags().StringArrayVar(&genChanges, "change", nil, `declared change as "id:type:title" (repeatable)`)

	generationCmd.AddCommand(generationNewCmd)
	generationCmd.AddCommand(generationLoadCmd)
	generationCmd.AddCommand(generationListCmd)
	generationCmd.AddCommand(generationShowCmd)
	rootCmd.AddCommand(generationCmd)
}
