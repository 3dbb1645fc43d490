package usecase

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/naka-gawa/ashe-stats/internal/domain"
	"github.com/naka-gawa/ashe-stats/internal/gateway"
)

// Step names reported by the driver and orchestrator.
const (
	StepSync          = "sync"
	StepBuild         = "build"
	StepAutomation    = "automation"
	StepStatistics    = "statistics"
	StepExceptionRank = "exception-rank"
)

// AutomationParams are the paths handed to the ASHE automation task.
type AutomationParams struct {
	CSVPath       string
	CloneDir      string
	PropsFilePath string
}

// DriverConfig holds the commands the driver runs inside the ASHE clone.
type DriverConfig struct {
	BuildCommand      []string
	AutomationCommand []string
	AutomationTask    string
	Model             string
}

// Driver builds ASHE and runs its repository automation.
type Driver struct {
	runner gateway.Runner
	cfg    DriverConfig
	out    io.Writer
	logger *log.Logger
}

// NewDriver creates a new Driver. Captured command output is printed to out.
func NewDriver(runner gateway.Runner, cfg DriverConfig, out io.Writer, logger *log.Logger) *Driver {
	return &Driver{runner: runner, cfg: cfg, out: out, logger: logger}
}

// BuildAndRun runs the build step and then the automation step in workDir.
// The automation step is attempted even when the build fails; each step
// reports its own result.
func (d *Driver) BuildAndRun(ctx context.Context, p AutomationParams, workDir string) []domain.StepResult {
	fmt.Fprintln(d.out, "Building ASHE...")
	build := runStep(ctx, d.runner, StepBuild, commandFrom(d.cfg.BuildCommand, nil, workDir), d.out, d.logger)

	fmt.Fprintln(d.out, "Running ASHE...")
	automation := runStep(ctx, d.runner, StepAutomation, d.automationCommand(p, workDir), d.out, d.logger)

	return []domain.StepResult{build, automation}
}

func (d *Driver) automationCommand(p AutomationParams, workDir string) gateway.Command {
	args := []string{
		d.cfg.AutomationTask,
		"-PrepositoriesCsvPath=" + p.CSVPath,
		"-PcloneDirectory=" + p.CloneDir,
		"-Pllm=" + d.cfg.Model,
		"-PpropsFilePath=" + p.PropsFilePath,
	}
	return commandFrom(d.cfg.AutomationCommand, args, workDir)
}

// commandFrom turns a configured argv plus extra args into a Command.
func commandFrom(argv, extra []string, dir string) gateway.Command {
	if len(argv) == 0 {
		return gateway.Command{Args: extra, Dir: dir}
	}
	args := append(append([]string{}, argv[1:]...), extra...)
	return gateway.Command{Name: argv[0], Args: args, Dir: dir}
}

// runStep executes one command, prints its stdout and error, and records the outcome.
func runStep(ctx context.Context, runner gateway.Runner, name string, c gateway.Command, out io.Writer, logger *log.Logger) domain.StepResult {
	start := time.Now()
	var (
		stdout string
		err    error
	)
	if c.Name == "" {
		err = fmt.Errorf("no command configured for step %s", name)
	} else {
		stdout, err = runner.Run(ctx, c)
	}
	if stdout != "" {
		fmt.Fprintln(out, stdout)
	}
	if err != nil {
		fmt.Fprintf(out, "Error executing command: %v\n", err)
	}
	result := domain.StepResult{Name: name, Err: err, Duration: time.Since(start)}
	logger.Printf("Usecase: step %s finished in %s (err=%v)", name, result.Duration.Round(time.Millisecond), err)
	return result
}
