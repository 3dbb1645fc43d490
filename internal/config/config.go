// Package config loads the orchestrator settings. Callers either use
// Default() or place a YAML file on disk and call Load().
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Git backend names accepted in GitBackend.
const (
	GitBackendExec  = "exec"
	GitBackendGoGit = "go-git"
)

const (
	defaultAsheURL        = "https://github.com/jonathan-m-phillips/ASHE_Automated-Software-Hardening-for-Entrypoints"
	defaultLogFile        = "logs/app.log"
	defaultStatusInterval = 5 * time.Minute
	defaultAutomationTask = "runRepositoryAutomation"
	defaultModel          = "dryrun"
)

// Config holds all orchestrator settings.
type Config struct {
	// AsheURL is the repository cloned or updated before each run.
	AsheURL string `yaml:"ashe_url"`

	// GitBackend selects how clone and pull are performed: "exec" shells out
	// to git, "go-git" runs in-process (default "exec").
	GitBackend string `yaml:"git_backend"`

	// LogFile is the ASHE log path relative to the ASHE clone (default "logs/app.log").
	LogFile string `yaml:"log_file"`

	// StatusInterval is the period between runtime status lines (default 5m).
	StatusInterval time.Duration `yaml:"status_interval"`

	// CommandTimeout bounds every external command. Zero means no timeout.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// BuildCommand builds ASHE inside its clone (default ["./gradlew", "build"]).
	BuildCommand []string `yaml:"build_command"`

	// AutomationCommand is the Gradle wrapper used for the automation task
	// (default ["./gradlew"]).
	AutomationCommand []string `yaml:"automation_command"`

	// AutomationTask is the Gradle task name (default "runRepositoryAutomation").
	AutomationTask string `yaml:"automation_task"`

	// Model is passed as -Pllm (default "dryrun").
	Model string `yaml:"model"`

	// StatisticsCommand runs the statistics aggregator with the log path
	// appended. If empty, the running binary's analyze subcommand is used.
	StatisticsCommand []string `yaml:"statistics_command"`

	// ExceptionRankCommand runs the exception-ranking collaborator with the
	// log path appended (default ["python3", "specimin_exception_rank.py"]).
	ExceptionRankCommand []string `yaml:"exception_rank_command"`

	// ScriptsDir is the working directory for ExceptionRankCommand.
	// If empty, the process working directory is used.
	ScriptsDir string `yaml:"scripts_dir"`

	GitHub GitHub `yaml:"github"`
}

// GitHub configures upstream resolution of the ASHE repository.
type GitHub struct {
	// ResolveUpstream looks up clone URL, default branch and head commit
	// before syncing. Requires a token.
	ResolveUpstream bool `yaml:"resolve_upstream"`

	// TokenEnv names the environment variable holding the token (default "GITHUB_TOKEN").
	TokenEnv string `yaml:"token_env"`
}

// Token returns the GitHub token from the configured environment variable.
func (g GitHub) Token() string {
	return os.Getenv(g.TokenEnv)
}

// Default returns a Config with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads a YAML file and applies defaults for unset fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.AsheURL == "" {
		c.AsheURL = defaultAsheURL
	}
	if c.GitBackend == "" {
		c.GitBackend = GitBackendExec
	}
	if c.LogFile == "" {
		c.LogFile = defaultLogFile
	}
	if c.StatusInterval == 0 {
		c.StatusInterval = defaultStatusInterval
	}
	if len(c.BuildCommand) == 0 {
		c.BuildCommand = []string{"./gradlew", "build"}
	}
	if len(c.AutomationCommand) == 0 {
		c.AutomationCommand = []string{"./gradlew"}
	}
	if c.AutomationTask == "" {
		c.AutomationTask = defaultAutomationTask
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if len(c.ExceptionRankCommand) == 0 {
		c.ExceptionRankCommand = []string{"python3", "specimin_exception_rank.py"}
	}
	if c.GitHub.TokenEnv == "" {
		c.GitHub.TokenEnv = "GITHUB_TOKEN"
	}
}

// Validate checks values that have no sensible default.
func (c *Config) Validate() error {
	switch c.GitBackend {
	case GitBackendExec, GitBackendGoGit:
	default:
		return fmt.Errorf("unknown git_backend %q (want %q or %q)", c.GitBackend, GitBackendExec, GitBackendGoGit)
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("status_interval must be positive, got %s", c.StatusInterval)
	}
	if c.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must not be negative, got %s", c.CommandTimeout)
	}
	return nil
}
