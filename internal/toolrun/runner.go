// Package toolrun runs the external bioinformatics tools that mutpeak
// delegates variant calling and consequence prediction to.
package toolrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxStderr caps how much of a tool's stderr is kept for error messages.
const maxStderr = 8 << 10

// Command describes a single tool invocation.
type Command struct {
	Name   string    // executable name or path
	Args   []string  // arguments, not including Name
	Stdin  io.Reader // optional
	Stdout io.Writer // optional; discarded when nil
	Dir    string    // optional working directory
}

// String renders the command line for logs and errors.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ToolError reports a tool that exited unsuccessfully.
type ToolError struct {
	Tool     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Tool)
	if e.ExitCode >= 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if e.Err != nil && e.ExitCode < 0 {
		msg += ": " + e.Err.Error()
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands as child processes.
type ExecRunner struct {
	logger *zap.Logger
}

// NewExecRunner creates a runner that logs through l (nil for no logging).
func NewExecRunner(l *zap.Logger) *ExecRunner {
	if l == nil {
		l = zap.NewNop()
	}
	return &ExecRunner{logger: l}
}

// Run starts the command and waits for it. Stderr is captured and attached
// to the returned *ToolError on failure.
func (r *ExecRunner) Run(ctx context.Context, c Command) error {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout

	var stderr limitedBuffer
	stderr.limit = maxStderr
	cmd.Stderr = &stderr

	r.logger.Debug("running tool", zap.String("cmd", c.String()))
	start := time.Now()

	err := cmd.Run()
	elapsed := time.Since(start)
	if err == nil {
		r.logger.Debug("tool finished",
			zap.String("tool", c.Name),
			zap.Duration("elapsed", elapsed))
		return nil
	}

	te := &ToolError{
		Tool:     c.Name,
		Args:     c.Args,
		ExitCode: -1,
		Stderr:   stderr.String(),
		Err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		te.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		te.Err = ctxErr
	}
	r.logger.Warn("tool failed",
		zap.String("cmd", c.String()),
		zap.Int("exit_code", te.ExitCode),
		zap.Duration("elapsed", elapsed),
		zap.Error(err))
	return te
}

// LookPath resolves a tool binary, returning an error that names the tool
// and the config key used to override its location.
func LookPath(name, configKey string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found (set %s to its path): %w", name, configKey, err)
	}
	return path, nil
}

// limitedBuffer keeps the first limit bytes written to it and discards the rest.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) error

// Run calls f(ctx, cmd).
func (f RunnerFunc) Run(ctx context.Context, cmd Command) error {
	return f(ctx, cmd)
}
