package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EpykLab/gryt-ci/internal/audit"
	"github.com/EpykLab/gryt-ci/pkg/color"
	"github.com/EpykLab/gryt-ci/pkg/model"
)

var (
	auditEventType string
	auditSubject   string
	auditActor     string
	auditLimit     int
	auditFormat    string
	auditOutPath   string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the append-only audit log",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, oldest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		records, err := auditReader(e).List(audit.Filter{
			EventType: model.AuditEventType(auditEventType),
			SubjectID: auditSubject,
			Actor:     auditActor,
			Limit:     auditLimit,
		})
		if err != nil {
			fmtErr("list audit records: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(records)
			return
		}
		for _, rec := range records {
			fmt.Printf("%s  %-28s  %-20s %s\n",
				color.Dim(rec.Timestamp.Format("2006-01-02 15:04:05")),
				rec.EventType, rec.SubjectID, rec.Actor)
		}
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit log's hash chain",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		count, err := auditReader(e).VerifyChain()
		if err != nil {
			fmtErr("audit chain verification failed: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(map[string]any{"verified_records": count})
		} else {
			fmt.Printf("%s %d records verified\n", color.Success("OK"), count)
		}
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit records as JSON, CSV, or an HTML report",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		records, err := auditReader(e).List(audit.Filter{})
		if err != nil {
			fmtErr("read audit log: %v", err)
			os.Exit(1)
		}

		out := os.Stdout
		if auditOutPath != "" {
			f, err := os.Create(auditOutPath)
			if err != nil {
				fmtErr("create export file: %v", err)
				os.Exit(1)
			}
			defer f.Close()
			out = f
		}

		if err := audit.ExportRecords(out, records, audit.ExportFormat(auditFormat)); err != nil {
			fmtErr("export: %v", err)
			os.Exit(1)
		}
	},
}

var auditStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize audit activity",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		e := requireEnv()

		stats, err := auditReader(e).ComputeStats()
		if err != nil {
			fmtErr("audit stats: %v", err)
			os.Exit(1)
		}

		if jsonOutput {
			outputJSON(stats)
			return
		}
		fmt.Printf("Records: %d\n", stats.TotalRecords)
		fmt.Printf("Generations: %d created, %d promoted\n", stats.GenerationsCreated, stats.GenerationsPromoted)
		fmt.Printf("Evolutions: %d started, %d passed, %d failed (%.0f%% pass rate)\n",
			stats.EvolutionsStarted, stats.EvolutionsPassed, stats.EvolutionsFailed, stats.PassRate*100)
	},
}

func auditReader(e *env) *audit.Reader {
	return audit.NewReader(e.store.AuditLogPath())
}

func init() {
	auditListCmd.Flags().StringVar(&auditEventType, "type", "", "filter by event type")
	auditListCmd.Flags().StringVar(&auditSubject, "subject", "", "filter by subject id")
	auditListCmd.Flags().StringVar(&auditActor, "actor", "", "filter by actor")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 0, "return only the newest N matching records")

	auditExportCmd.Flags().StringVar(&auditFormat, "format", "json", "export format: json, csv, or html")
	auditExportCmd.Flags().StringVarP(&auditOutPath, "output", "o", "", "write to file instead of stdout")

	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditStatsCmd)
	rootCmd.AddCommand(auditCmd)
}
