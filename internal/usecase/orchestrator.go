package usecase

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/naka-gawa/ashe-stats/internal/domain"
	"github.com/naka-gawa/ashe-stats/internal/gateway"
	"golang.org/x/sync/errgroup"
)

// Syncer keeps the ASHE clone current.
type Syncer interface {
	Ensure(ctx context.Context, repoURL, localPath string) error
}

// Builder builds ASHE and runs its automation.
type Builder interface {
	BuildAndRun(ctx context.Context, p AutomationParams, workDir string) []domain.StepResult
}

// Reporter prints progress until its context is cancelled.
type Reporter interface {
	Run(ctx context.Context)
}

// OrchestratorConfig holds the explicit locations the orchestrator needs.
type OrchestratorConfig struct {
	AsheURL string
	// LogFile is relative to the ASHE clone.
	LogFile string
	// StatisticsCommand and ExceptionRankCommand get the log path appended.
	StatisticsCommand    []string
	ExceptionRankCommand []string
	ScriptsDir           string
}

// RunParams are the positional arguments of the run command.
type RunParams struct {
	AsheClonePath string
	CSVPath       string
	RepoClonePath string
	PropsFilePath string
}

// Orchestrator sequences sync, build and automation, and the reporting steps.
type Orchestrator struct {
	syncer   Syncer
	builder  Builder
	reporter Reporter
	runner   gateway.Runner
	cfg      OrchestratorConfig
	out      io.Writer
	logger   *log.Logger
}

// NewOrchestrator creates a new Orchestrator instance.
func NewOrchestrator(syncer Syncer, builder Builder, reporter Reporter, runner gateway.Runner, cfg OrchestratorConfig, out io.Writer, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		syncer:   syncer,
		builder:  builder,
		reporter: reporter,
		runner:   runner,
		cfg:      cfg,
		out:      out,
		logger:   logger,
	}
}

// Run executes every step even when earlier ones fail, so the reporting
// steps always get a chance to run. It returns all step results and a
// non-nil error if any step failed.
func (o *Orchestrator) Run(ctx context.Context, p RunParams) ([]domain.StepResult, error) {
	o.logger.Println("Usecase: Starting ASHE run...")
	var results []domain.StepResult

	start := time.Now()
	err := o.syncer.Ensure(ctx, o.cfg.AsheURL, p.AsheClonePath)
	if err != nil {
		fmt.Fprintf(o.out, "Error executing command: %v\n", err)
	}
	results = append(results, domain.StepResult{Name: StepSync, Err: err, Duration: time.Since(start)})

	results = append(results, o.buildWithStatus(ctx, p)...)

	logPath := filepath.Join(p.AsheClonePath, o.cfg.LogFile)
	o.logger.Printf("Usecase: log path %s", logPath)

	fmt.Fprintln(o.out, "Running statistics script...")
	results = append(results, runStep(ctx, o.runner, StepStatistics,
		commandFrom(o.cfg.StatisticsCommand, []string{logPath}, ""), o.out, o.logger))

	fmt.Fprintln(o.out, "Running exception rank script...")
	results = append(results, runStep(ctx, o.runner, StepExceptionRank,
		commandFrom(o.cfg.ExceptionRankCommand, []string{logPath}, o.cfg.ScriptsDir), o.out, o.logger))

	o.logger.Println("Usecase: ASHE run complete.")
	return results, Failures(results)
}

// buildWithStatus runs the builder with the status reporter alongside it and
// stops the reporter as soon as the builder returns.
func (o *Orchestrator) buildWithStatus(ctx context.Context, p RunParams) []domain.StepResult {
	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()

	var results []domain.StepResult
	var eg errgroup.Group
	eg.Go(func() error {
		o.reporter.Run(reporterCtx)
		return nil
	})
	eg.Go(func() error {
		defer stopReporter()
		results = o.builder.BuildAndRun(ctx, AutomationParams{
			CSVPath:       p.CSVPath,
			CloneDir:      p.RepoClonePath,
			PropsFilePath: p.PropsFilePath,
		}, p.AsheClonePath)
		return nil
	})
	_ = eg.Wait() // neither goroutine returns an error
	return results
}

// StepError lists the steps that failed.
type StepError struct {
	Failed []domain.StepResult
}

func (e *StepError) Error() string {
	names := make([]string, len(e.Failed))
	for i, r := range e.Failed {
		names[i] = r.Name
	}
	return fmt.Sprintf("%d step(s) failed: %s", len(e.Failed), strings.Join(names, ", "))
}

// Unwrap exposes the individual step errors to errors.Is and errors.As.
func (e *StepError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, r := range e.Failed {
		errs[i] = r.Err
	}
	return errs
}

// Failures returns a *StepError for the failed results, or nil if none failed.
func Failures(results []domain.StepResult) error {
	var failed []domain.StepResult
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &StepError{Failed: failed}
}
