// Package usecase contains the business logic of the application.
package usecase

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/montanaflynn/stats"
	"github.com/naka-gawa/ashe-stats/internal/domain"
)

// StatisticsFileName is written next to the analyzed log.
const StatisticsFileName = "specimin_statistics.txt"

// Log markers emitted by the ASHE repository automation engine.
const (
	markerProcessing    = "Processing repository at:"
	markerCompleted     = "Completed processing repository at:"
	markerMinimizing    = "Minimizing source file..."
	markerBuildSuccess  = "BUILD SUCCESSFUL"
	markerBuildFailed   = "BUILD FAILED"
	markerCompiling     = "Compiling Java files"
	markerCompiledOK    = "Minimized files compiled successfully."
	markerCompileFailed = "Minimized files failed to compile."
)

var repoBranchPattern = regexp.MustCompile(`Processing repository at: (.+?) for branch: (.+)`)

// FileAccessError is returned when a file cannot be read, written or inspected.
type FileAccessError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// Aggregator is the use case for computing Specimin statistics from an ASHE log.
type Aggregator struct {
	out    io.Writer
	logger *log.Logger
}

// NewAggregator creates a new Aggregator instance. User-facing messages go to out.
func NewAggregator(out io.Writer, logger *log.Logger) *Aggregator {
	return &Aggregator{
		out:    out,
		logger: logger,
	}
}

// Analyze reads logPath and overwrites specimin_statistics.txt in the same
// directory. It returns every flushed repository run and their summary.
func (a *Aggregator) Analyze(logPath string) ([]domain.RepositoryRun, domain.Summary, error) {
	outputPath := filepath.Join(filepath.Dir(logPath), StatisticsFileName)
	a.logger.Printf("Usecase: Analyzing %s into %s", logPath, outputPath)

	in, err := os.Open(logPath)
	if err != nil {
		return nil, domain.Summary{}, &FileAccessError{Op: "open log", Path: logPath, Err: err}
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, domain.Summary{}, &FileAccessError{Op: "create", Path: outputPath, Err: err}
	}

	w := bufio.NewWriter(out)
	runs, err := a.Aggregate(in, w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		var fileErr *FileAccessError
		switch {
		case !errors.As(err, &fileErr):
			err = &FileAccessError{Op: "write", Path: outputPath, Err: err}
		case fileErr.Op == "read":
			fileErr.Path = logPath
		default:
			fileErr.Path = outputPath
		}
		return runs, domain.Summary{}, err
	}

	fmt.Fprintln(a.out, "Write successful")
	summary := Summarize(runs)
	a.logger.Printf("Usecase: %d repositories, mean full success %.2f%%, median %.2f%%",
		summary.Repositories, summary.MeanFullSuccessPercent, summary.MedianFullSuccessPercent)
	return runs, summary, nil
}

// Aggregate scans the log line by line and writes one report block to w each
// time a repository section is flushed. A "Processing repository at:" marker
// flushes the previous repository, if any, before switching to the new one. A
// "Completed processing repository at:" marker flushes too, but keeps the
// repository current, so lines before the next "Processing" marker are
// flushed under it again. Markers seen before the first repository count
// toward it. Counters still pending at EOF are dropped.
func (a *Aggregator) Aggregate(r io.Reader, w io.Writer) ([]domain.RepositoryRun, error) {
	var (
		runs    []domain.RepositoryRun
		current domain.RepositoryRun
		pending bool
	)
	flush := func() error {
		runs = append(runs, current)
		if err := writeReport(w, current); err != nil {
			return &FileAccessError{Op: "write", Err: err}
		}
		current.Counters.Reset()
		pending = false
		return nil
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.Contains(line, markerProcessing) {
			if current.RepoPath != "" {
				if err := flush(); err != nil {
					return runs, err
				}
			}
			current.RepoPath, current.Branch = extractRepoAndBranch(line)
			pending = true
		}

		updateCounters(line, &current.Counters)
		if current.Counters != (domain.Counters{}) {
			pending = true
		}

		if strings.Contains(line, markerCompleted) {
			if err := flush(); err != nil {
				return runs, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return runs, &FileAccessError{Op: "read", Err: err}
	}
	if pending {
		a.logger.Printf("Usecase: dropping unterminated section for %s (branch %s)", current.RepoPath, current.Branch)
	}
	return runs, nil
}

// updateCounters checks every marker independently; one line may match several.
func updateCounters(line string, c *domain.Counters) {
	if strings.Contains(line, markerMinimizing) {
		c.MinimizationAttempts++
	}
	if strings.Contains(line, markerBuildSuccess) {
		c.SuccessfulMinimization++
	}
	if strings.Contains(line, markerBuildFailed) {
		c.FailedMinimization++
	}
	if strings.Contains(line, markerCompiling) {
		c.CompilationAttempts++
	}
	if strings.Contains(line, markerCompiledOK) {
		c.SuccessfulCompilation++
		c.FullSuccess++
	}
	if strings.Contains(line, markerCompileFailed) {
		c.FailedCompilation++
	}
}

// extractRepoAndBranch returns empty strings when the line does not match.
func extractRepoAndBranch(line string) (repoPath, branch string) {
	m := repoBranchPattern.FindStringSubmatch(line)
	if m == nil {
		return "", ""
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}

const reportTemplate = `
Running Specimin on repository: %s for branch: %s
Attempted minimization - %d:
Successfully minimized %d (%.2f%%) target methods.
Failed to minimize %d (%.2f%%) target methods.

Attempted compilation - %d:
Successful: %d (%.2f%%)
Failed: %d (%.2f%%)

Fully successful from minimization to compilation: %d (%.2f%%)

`

func writeReport(w io.Writer, run domain.RepositoryRun) error {
	c := run.Counters
	_, err := fmt.Fprintf(w, reportTemplate,
		run.RepoPath, run.Branch,
		c.MinimizationAttempts,
		c.SuccessfulMinimization, c.MinimizationSuccessPercent(),
		c.FailedMinimization, c.MinimizationFailurePercent(),
		c.CompilationAttempts,
		c.SuccessfulCompilation, c.CompilationSuccessPercent(),
		c.FailedCompilation, c.CompilationFailurePercent(),
		c.FullSuccess, c.FullSuccessPercent(),
	)
	return err
}

// Summarize totals the runs and computes mean and median full-success percentages.
func Summarize(runs []domain.RepositoryRun) domain.Summary {
	summary := domain.Summary{Repositories: len(runs)}
	data := make(stats.Float64Data, 0, len(runs))
	for _, run := range runs {
		c := run.Counters
		t := &summary.Totals
		t.MinimizationAttempts += c.MinimizationAttempts
		t.SuccessfulMinimization += c.SuccessfulMinimization
		t.FailedMinimization += c.FailedMinimization
		t.CompilationAttempts += c.CompilationAttempts
		t.SuccessfulCompilation += c.SuccessfulCompilation
		t.FailedCompilation += c.FailedCompilation
		t.FullSuccess += c.FullSuccess
		data = append(data, c.FullSuccessPercent())
	}
	if len(data) == 0 {
		return summary
	}
	// Both only fail on empty input, which is excluded above.
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	summary.MeanFullSuccessPercent, _ = stats.Round(mean, 2)
	summary.MedianFullSuccessPercent, _ = stats.Round(median, 2)
	return summary
}
