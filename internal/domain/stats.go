// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// Counters holds the raw marker counts for one repository section of an ASHE log.
// Each counter is incremented independently per matching line, so the
// success/failure counts are not guaranteed to sum to the attempts.
type Counters struct {
	MinimizationAttempts   int `json:"minimization_attempts"`
	SuccessfulMinimization int `json:"successful_minimization"`
	FailedMinimization     int `json:"failed_minimization"`
	CompilationAttempts    int `json:"compilation_attempts"`
	SuccessfulCompilation  int `json:"successful_compilation"`
	FailedCompilation      int `json:"failed_compilation"`
	FullSuccess            int `json:"full_success"`
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	*c = Counters{}
}

// MinimizationSuccessPercent is successful minimizations over attempts.
func (c Counters) MinimizationSuccessPercent() float64 {
	return percent(c.SuccessfulMinimization, c.MinimizationAttempts)
}

// MinimizationFailurePercent is failed minimizations over attempts.
func (c Counters) MinimizationFailurePercent() float64 {
	return percent(c.FailedMinimization, c.MinimizationAttempts)
}

// CompilationSuccessPercent is successful compilations over compilation attempts.
func (c Counters) CompilationSuccessPercent() float64 {
	return percent(c.SuccessfulCompilation, c.CompilationAttempts)
}

// CompilationFailurePercent is failed compilations over compilation attempts.
func (c Counters) CompilationFailurePercent() float64 {
	return percent(c.FailedCompilation, c.CompilationAttempts)
}

// FullSuccessPercent is measured against minimization attempts, not compilation attempts.
func (c Counters) FullSuccessPercent() float64 {
	return percent(c.FullSuccess, c.MinimizationAttempts)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// RepositoryRun is one repository section of the log, identified by path and branch.
// It is the core domain entity of this application.
type RepositoryRun struct {
	RepoPath string   `json:"repo_path"`
	Branch   string   `json:"branch"`
	Counters Counters `json:"counters"`
}

// Summary aggregates every flushed RepositoryRun of a single log.
type Summary struct {
	Repositories           int      `json:"repositories"`
	Totals                 Counters `json:"totals"`
	MeanFullSuccessPercent float64  `json:"mean_full_success_percent"`
	// Median is less sensitive to repositories with a handful of targets.
	MedianFullSuccessPercent float64 `json:"median_full_success_percent"`
}

// Upstream describes a remote repository as reported by its hosting service.
type Upstream struct {
	Owner         string
	Name          string
	CloneURL      string
	DefaultBranch string
	HeadOID       string
}

// StepResult records the outcome of one orchestration step.
type StepResult struct {
	Name     string
	Err      error
	Duration time.Duration
}

// Failed reports whether the step returned an error.
func (s StepResult) Failed() bool {
	return s.Err != nil
}
