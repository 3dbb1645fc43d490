package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"time"
)

// Command is an external program invocation. Args are passed as-is, no shell is involved.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the process working directory.
	Dir string
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// CommandError is returned when an external command exits non-zero or cannot be started.
type CommandError struct {
	Command  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("command %q failed: %v", e.Command, e.Err)
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes external commands and returns their captured stdout.
type Runner interface {
	Run(ctx context.Context, c Command) (string, error)
}

// ExecRunner is the os/exec implementation of Runner.
type ExecRunner struct {
	// Timeout bounds each command when positive.
	Timeout time.Duration
	logger  *log.Logger
}

// NewExecRunner creates a Runner backed by os/exec.
func NewExecRunner(timeout time.Duration, logger *log.Logger) *ExecRunner {
	return &ExecRunner{Timeout: timeout, logger: logger}
}

// Run blocks until the command exits. A non-zero exit yields a *CommandError
// carrying the captured stderr; stdout captured so far is still returned.
func (r *ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	r.logger.Printf("Runner: exec %s (dir=%q)", c, c.Dir)
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	// Grandchildren holding the pipes open must not block Wait after a kill.
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.Printf("Runner: %s finished in %s (err=%v)", c.Name, time.Since(start).Round(time.Millisecond), err)
	if err != nil {
		cmdErr := &CommandError{
			Command:  c.String(),
			ExitCode: -1,
			Stderr:   stderr.String(),
			Err:      err,
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			cmdErr.ExitCode = exitErr.ExitCode()
		}
		return stdout.String(), cmdErr
	}
	return stdout.String(), nil
}
