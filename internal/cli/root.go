// Package cli implements the gryt command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/pkg/color"
)

var (
	jsonOutput bool
	noColor    bool

	rootCmd = &cobra.Command{
		Use:   "gryt",
		Short: "gryt - release contracts with proof",
		Long: `gryt governs releases through declarative contracts. A generation
declares the changes a version will ship; evolutions record tagged proof
attempts against those changes; promotion is gated on the full contract
being proven. Every state transition lands in a hash-chained audit log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			color.Init(noColor)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// outputJSON prints v as JSON if --json flag is set, otherwise does nothing.
func outputJSON(v any) error {
	if !jsonOutput {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func fmtErr(format string, args ...any) {
	prefix := "gryt: "
	if color.Enabled() {
		prefix = color.Error("gryt:") + " "
	}
	fmt.Fprintf(os.Stderr, prefix+format+"\n", args...)
}
