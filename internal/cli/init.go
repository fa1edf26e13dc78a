package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/store"
	"github.com/EpykLab/gryt-ci/pkg/config"
)

var initMode string

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a gryt store",
	Long: `Initialize a gryt store in the given directory (default: current
directory). Creates the .gryt layout and a default config file.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) > 0 {
			root = args[0]
		}

		st, err := store.Init(root)
		if err != nil {
			fmtErr("init store: %v", err)
			os.Exit(1)
		}

		cfg := config.Default()
		if initMode != "" {
			switch config.ExecutionMode(initMode) {
			case config.ModeLocal, config.ModeCloud, config.ModeHybrid:
				cfg.ExecutionMode = config.ExecutionMode(initMode)
			default:
				fmtErr("invalid mode %q (local, cloud, hybrid)", initMode)
				os.Exit(1)
			}
		}
		if err := config.Save(st.Root(), cfg); err != nil {
			fmtErr("write config: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"root": st.Root(), "mode": cfg.ExecutionMode})
		} else {
			fmt.Printf("Initialized gryt store in %s (mode: %s)\n", st.GrytDir(), cfg.ExecutionMode)
		}
	},
}

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", "", "execution mode: local, cloud, or hybrid")
	rootCmd.AddCommand(initCmd)
}
