package usecase

import (
	"bytes"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/naka-gawa/ashe-stats/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lines(l ...string) string {
	return strings.Join(l, "\n") + "\n"
}

func repeat(line string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = line
	}
	return out
}

func concat(parts ...[]string) []string {
	var out []string
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func newTestAggregator() *Aggregator {
	return NewAggregator(io.Discard, log.New(io.Discard, "", 0))
}

const r1Block = `
Running Specimin on repository: /r1 for branch: main
Attempted minimization - 3:
Successfully minimized 2 (66.67%) target methods.
Failed to minimize 1 (33.33%) target methods.

Attempted compilation - 2:
Successful: 2 (100.00%)
Failed: 0 (0.00%)

Fully successful from minimization to compilation: 2 (66.67%)

`

// r1Section returns a fresh copy of the /r1 section followed by extra lines.
func r1Section(extra ...string) []string {
	return concat(
		[]string{"2024-04-13 10:00:00 INFO Processing repository at: /r1 for branch: main"},
		repeat("Minimizing source file...", 3),
		repeat("BUILD SUCCESSFUL", 2),
		[]string{"BUILD FAILED"},
		repeat("Compiling Java files", 2),
		repeat("Minimized files compiled successfully.", 2),
		extra,
	)
}

func TestAggregator_Aggregate(t *testing.T) {
	testCases := []struct {
		name           string
		log            string
		expectedRuns   []domain.RepositoryRun
		expectedReport string
	}{
		{
			name:         "no repository markers - nothing is flushed",
			log:          lines("Minimizing source file...", "BUILD SUCCESSFUL", "Compiling Java files"),
			expectedRuns: nil,
		},
		{
			name: "single completed repository",
			log:  lines(r1Section("Completed processing repository at: /r1")...),
			expectedRuns: []domain.RepositoryRun{{
				RepoPath: "/r1",
				Branch:   "main",
				Counters: domain.Counters{
					MinimizationAttempts:   3,
					SuccessfulMinimization: 2,
					FailedMinimization:     1,
					CompilationAttempts:    2,
					SuccessfulCompilation:  2,
					FullSuccess:            2,
				},
			}},
			expectedReport: r1Block,
		},
		{
			name: "zero attempts report zero percentages",
			log:  lines("Processing repository at: /empty for branch: dev", "Completed processing repository at: /empty"),
			expectedRuns: []domain.RepositoryRun{
				{RepoPath: "/empty", Branch: "dev"},
			},
			expectedReport: `
Running Specimin on repository: /empty for branch: dev
Attempted minimization - 0:
Successfully minimized 0 (0.00%) target methods.
Failed to minimize 0 (0.00%) target methods.

Attempted compilation - 0:
Successful: 0 (0.00%)
Failed: 0 (0.00%)

Fully successful from minimization to compilation: 0 (0.00%)

`,
		},
		{
			name: "second Processing marker flushes the first section",
			log: lines(concat(
				[]string{"Processing repository at: /a for branch: main"},
				repeat("Minimizing source file...", 4),
				[]string{"BUILD FAILED"},
				[]string{"Processing repository at: /b for branch: feature/x"},
				[]string{"Minimizing source file...", "BUILD SUCCESSFUL", "Compiling Java files", "Minimized files failed to compile."},
				[]string{"Completed processing repository at: /b"},
			)...),
			expectedRuns: []domain.RepositoryRun{
				{RepoPath: "/a", Branch: "main", Counters: domain.Counters{MinimizationAttempts: 4, FailedMinimization: 1}},
				{RepoPath: "/b", Branch: "feature/x", Counters: domain.Counters{
					MinimizationAttempts:   1,
					SuccessfulMinimization: 1,
					CompilationAttempts:    1,
					FailedCompilation:      1,
				}},
			},
		},
		{
			name: "unterminated trailing section is dropped",
			log: lines(r1Section(
				"Completed processing repository at: /r1",
				"Processing repository at: /r2 for branch: main",
				"Minimizing source file...",
				"BUILD SUCCESSFUL",
			)...),
			expectedRuns: []domain.RepositoryRun{
				{
					RepoPath: "/r1",
					Branch:   "main",
					Counters: domain.Counters{
						MinimizationAttempts:   3,
						SuccessfulMinimization: 2,
						FailedMinimization:     1,
						CompilationAttempts:    2,
						SuccessfulCompilation:  2,
						FullSuccess:            2,
					},
				},
				// The /r2 marker flushes /r1 once more before switching.
				{RepoPath: "/r1", Branch: "main"},
			},
		},
		{
			name: "lines after Completed are flushed again under the same repository",
			log: lines(
				"Processing repository at: /a for branch: main",
				"Completed processing repository at: /a",
				"BUILD FAILED",
				"Processing repository at: /b for branch: main",
				"Completed processing repository at: /b",
			),
			expectedRuns: []domain.RepositoryRun{
				{RepoPath: "/a", Branch: "main"},
				{RepoPath: "/a", Branch: "main", Counters: domain.Counters{FailedMinimization: 1}},
				{RepoPath: "/b", Branch: "main"},
			},
		},
		{
			name: "markers before the first repository count toward it",
			log: lines(
				"Minimizing source file...",
				"BUILD SUCCESSFUL",
				"Processing repository at: /r1 for branch: main",
				"Minimizing source file...",
				"Completed processing repository at: /r1",
				"Minimizing source file...",
				"Processing repository at: /r2 for branch: main",
				"Completed processing repository at: /r2",
			),
			expectedRuns: []domain.RepositoryRun{
				{RepoPath: "/r1", Branch: "main", Counters: domain.Counters{MinimizationAttempts: 2, SuccessfulMinimization: 1}},
				{RepoPath: "/r1", Branch: "main", Counters: domain.Counters{MinimizationAttempts: 1}},
				{RepoPath: "/r2", Branch: "main"},
			},
		},
		{
			name: "Completed without a repository flushes an empty block",
			log:  lines("BUILD FAILED", "Completed processing repository at: /x"),
			expectedRuns: []domain.RepositoryRun{
				{Counters: domain.Counters{FailedMinimization: 1}},
			},
		},
		{
			name: "one line matching several markers bumps each counter",
			log: lines(
				"Processing repository at: /a for branch: main",
				"Compiling Java files ... BUILD SUCCESSFUL",
				"Completed processing repository at: /a",
			),
			expectedRuns: []domain.RepositoryRun{
				{RepoPath: "/a", Branch: "main", Counters: domain.Counters{SuccessfulMinimization: 1, CompilationAttempts: 1}},
			},
		},
		{
			name: "unparseable Processing line yields empty path and branch",
			log: lines(
				"Processing repository at: /nobranch",
				"Minimizing source file...",
				"Completed processing repository at: /nobranch",
			),
			expectedRuns: []domain.RepositoryRun{
				{Counters: domain.Counters{MinimizationAttempts: 1}},
			},
		},
		{
			name: "windows line endings are trimmed",
			log:  "Processing repository at: /a for branch: main\r\nMinimizing source file...\r\nCompleted processing repository at: /a\r\n",
			expectedRuns: []domain.RepositoryRun{
				{RepoPath: "/a", Branch: "main", Counters: domain.Counters{MinimizationAttempts: 1}},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			runs, err := newTestAggregator().Aggregate(strings.NewReader(tc.log), &out)

			require.NoError(t, err)
			assert.Equal(t, tc.expectedRuns, runs)
			if tc.expectedReport != "" {
				assert.Equal(t, tc.expectedReport, out.String())
			}
			assert.Equal(t, len(tc.expectedRuns), strings.Count(out.String(), "Running Specimin on repository:"))
		})
	}
}

func TestAggregator_AggregateKeepsEncounterOrder(t *testing.T) {
	logText := lines(
		"Processing repository at: /first for branch: main",
		"Processing repository at: /second for branch: main",
		"Completed processing repository at: /second",
	)
	var out bytes.Buffer
	_, err := newTestAggregator().Aggregate(strings.NewReader(logText), &out)
	require.NoError(t, err)

	report := out.String()
	first := strings.Index(report, "/first")
	second := strings.Index(report, "/second")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestAggregator_AggregateWriteError(t *testing.T) {
	logText := lines("Processing repository at: /a for branch: main", "Completed processing repository at: /a")
	_, err := newTestAggregator().Aggregate(strings.NewReader(logText), failingWriter{})

	var fileErr *FileAccessError
	require.True(t, errors.As(err, &fileErr))
	assert.Equal(t, "write", fileErr.Op)
	assert.ErrorContains(t, err, "disk full")
}

func TestExtractRepoAndBranch(t *testing.T) {
	testCases := []struct {
		line           string
		expectedPath   string
		expectedBranch string
	}{
		{line: "Processing repository at: /a/b for branch: feature/x", expectedPath: "/a/b", expectedBranch: "feature/x"},
		{line: "INFO  Processing repository at:   /a/b   for branch:  main  ", expectedPath: "/a/b", expectedBranch: "main"},
		{line: "Processing repository at: /a for branch: x for branch: y", expectedPath: "/a", expectedBranch: "x for branch: y"},
		{line: "Processing repository at: /a", expectedPath: "", expectedBranch: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.line, func(t *testing.T) {
			path, branch := extractRepoAndBranch(tc.line)
			assert.Equal(t, tc.expectedPath, path)
			assert.Equal(t, tc.expectedBranch, branch)
		})
	}
}

func TestAggregator_Analyze(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(logPath, []byte(lines(r1Section("Completed processing repository at: /r1")...)), 0o644))

	// A stale report must be overwritten, not appended to.
	outputPath := filepath.Join(dir, StatisticsFileName)
	require.NoError(t, os.WriteFile(outputPath, []byte("stale\n"), 0o644))

	var console bytes.Buffer
	aggregator := NewAggregator(&console, log.New(io.Discard, "", 0))
	runs, summary, err := aggregator.Analyze(logPath)

	require.NoError(t, err)
	assert.Len(t, runs, 1)
	assert.Equal(t, "Write successful\n", console.String())
	assert.Equal(t, 1, summary.Repositories)
	assert.Equal(t, 66.67, summary.MeanFullSuccessPercent)

	report, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, r1Block, string(report))
}

func TestAggregator_AnalyzeMissingLog(t *testing.T) {
	dir := t.TempDir()
	_, _, err := newTestAggregator().Analyze(filepath.Join(dir, "missing.log"))

	var fileErr *FileAccessError
	require.True(t, errors.As(err, &fileErr))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, filepath.Join(dir, StatisticsFileName))
}

func TestSummarize(t *testing.T) {
	testCases := []struct {
		name     string
		runs     []domain.RepositoryRun
		expected domain.Summary
	}{
		{
			name:     "empty case - no runs",
			runs:     nil,
			expected: domain.Summary{},
		},
		{
			name: "mean and median of full-success percentages",
			runs: []domain.RepositoryRun{
				{RepoPath: "/a", Counters: domain.Counters{MinimizationAttempts: 4, FullSuccess: 1, SuccessfulCompilation: 1}},
				{RepoPath: "/b", Counters: domain.Counters{MinimizationAttempts: 2, FullSuccess: 2, SuccessfulCompilation: 2}},
				{RepoPath: "/c", Counters: domain.Counters{}},
			},
			expected: domain.Summary{
				Repositories: 3,
				Totals: domain.Counters{
					MinimizationAttempts:  6,
					SuccessfulCompilation: 3,
					FullSuccess:           3,
				},
				MeanFullSuccessPercent:   41.67,
				MedianFullSuccessPercent: 25,
			},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Summarize(tc.runs))
		})
	}
}
