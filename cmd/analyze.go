package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/naka-gawa/ashe-stats/internal/domain"
	"github.com/naka-gawa/ashe-stats/internal/usecase"
	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <logFilePath>",
	Short: "Computes Specimin statistics from an ASHE dryrun log",
	Long: `Reads an ASHE log file and writes attempted, successful and failed Specimin
minimization and compilation statistics per repository to
specimin_statistics.txt in the same directory as the log.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		logger := newLogger(cmd)

		aggregator := usecase.NewAggregator(cmd.OutOrStdout(), logger)
		runs, summary, err := aggregator.Analyze(args[0])
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if !asJSON {
			return nil
		}
		if runs == nil {
			runs = []domain.RepositoryRun{}
		}
		jsonData, err := json.MarshalIndent(struct {
			Repositories []domain.RepositoryRun `json:"repositories"`
			Summary      domain.Summary         `json:"summary"`
		}{runs, summary}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().Bool("json", false, "Also print the statistics as JSON to standard output")
}
