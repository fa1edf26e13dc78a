package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/pkg/config"
	"github.com/EpykLab/gryt-ci/pkg/webhook"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect store configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		if jsonOutput {
			// Never echo credentials.
			redacted := *e.cfg
			redacted.Remote.Password = ""
			redacted.Remote.APIKeySecret = ""
			redacted.Webhooks.Hooks = append([]webhook.HookConfig(nil), e.cfg.Webhooks.Hooks...)
			for i := range redacted.Webhooks.Hooks {
				redacted.Webhooks.Hooks[i].Secret = ""
			}
			outputJSON(redacted)
			return
		}

		fmt.Printf("Execution mode: %s\n", e.cfg.ExecutionMode)
		if e.cfg.Remote.URL != "" {
			fmt.Printf("Remote: %s (credentials: %v)\n", e.cfg.Remote.URL, e.cfg.Remote.HasCredentials())
		} else {
			fmt.Println("Remote: not configured")
		}
		fmt.Printf("Gates: min_evolutions=%d\n", e.cfg.Gates.MinEvolutions)
		fmt.Printf("Snapshots: keep_max=%d\n", e.cfg.Snapshots.KeepMax)
	},
}

var configModeCmd = &cobra.Command{
	Use:   "set-mode <local|cloud|hybrid>",
	Short: "Change the execution mode",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		mode := config.ExecutionMode(args[0])
		switch mode {
		case config.ModeLocal, config.ModeCloud, config.ModeHybrid:
		default:
			fmtErr("invalid mode %q (local, cloud, hybrid)", args[0])
			os.Exit(1)
		}

		e.cfg.ExecutionMode = mode
		if err := config.Save(e.store.Root(), e.cfg); err != nil {
			fmtErr("save config: %v", err)
			os.Exit(1)
		}

		if !jsonOutput {
			fmt.Printf("Execution mode set to %s\n", mode)
		}
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configModeCmd)
	rootCmd.AddCommand(configCmd)
}
