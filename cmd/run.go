package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/naka-gawa/ashe-stats/internal/config"
	"github.com/naka-gawa/ashe-stats/internal/gateway"
	"github.com/naka-gawa/ashe-stats/internal/usecase"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <asheClonePath> <csvPath> <repoClonePath> <propsFilePath>",
	Short: "Runs ASHE in dryrun mode and analyzes its log",
	Long: `Clones or updates ASHE at asheClonePath, builds it, runs its repository
automation over the repositories listed in csvPath (cloned into
repoClonePath) with the config.properties at propsFilePath, and then runs the
statistics and exception-ranking steps on the resulting log.

Every step is attempted even if an earlier one failed. The command exits
non-zero if any step failed.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		ctx := cmd.Context()
		logger := newLogger(cmd)
		out := cmd.OutOrStdout()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		// Inject dependencies and run the main business logic.
		runner := gateway.NewExecRunner(cfg.CommandTimeout, logger)
		resolver, err := newResolver(cfg, logger)
		if err != nil {
			return err
		}
		syncer := usecase.NewRepositorySync(newGit(cfg, runner, out, logger), resolver, out, logger)
		driver := usecase.NewDriver(runner, usecase.DriverConfig{
			BuildCommand:      cfg.BuildCommand,
			AutomationCommand: cfg.AutomationCommand,
			AutomationTask:    cfg.AutomationTask,
			Model:             cfg.Model,
		}, out, logger)
		reporter := usecase.NewStatusReporter(cfg.StatusInterval, out)

		statisticsCommand, err := resolveStatisticsCommand(cfg)
		if err != nil {
			return err
		}
		orchestrator := usecase.NewOrchestrator(syncer, driver, reporter, runner, usecase.OrchestratorConfig{
			AsheURL:              cfg.AsheURL,
			LogFile:              cfg.LogFile,
			StatisticsCommand:    statisticsCommand,
			ExceptionRankCommand: cfg.ExceptionRankCommand,
			ScriptsDir:           cfg.ScriptsDir,
		}, out, logger)

		results, err := orchestrator.Run(ctx, usecase.RunParams{
			AsheClonePath: args[0],
			CSVPath:       args[1],
			RepoClonePath: args[2],
			PropsFilePath: args[3],
		})
		for _, r := range results {
			status := "ok"
			if r.Failed() {
				status = "FAILED"
			}
			logger.Printf("step %-15s %-6s %s", r.Name, status, r.Duration)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func newGit(cfg *config.Config, runner gateway.Runner, out io.Writer, logger *log.Logger) gateway.Git {
	if cfg.GitBackend == config.GitBackendGoGit {
		return gateway.NewGoGit(out, logger)
	}
	return gateway.NewExecGit(runner, out)
}

// newResolver returns nil unless upstream resolution is enabled.
func newResolver(cfg *config.Config, logger *log.Logger) (gateway.UpstreamResolver, error) {
	if !cfg.GitHub.ResolveUpstream {
		return nil, nil
	}
	token := cfg.GitHub.Token()
	if token == "" {
		return nil, fmt.Errorf("github.resolve_upstream is set but %s is empty", cfg.GitHub.TokenEnv)
	}
	resolver, err := gateway.NewGitHubGateway(token, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub gateway: %w", err)
	}
	return resolver, nil
}

// resolveStatisticsCommand defaults to this binary's analyze subcommand.
func resolveStatisticsCommand(cfg *config.Config) ([]string, error) {
	if len(cfg.StatisticsCommand) > 0 {
		return cfg.StatisticsCommand, nil
	}
	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate own executable: %w", err)
	}
	return []string{self, "analyze"}, nil
}
