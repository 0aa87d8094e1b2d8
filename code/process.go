package code

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/logging"
)

// Interpreter describes how to run a script of one language.
type Interpreter struct {
	// Command and leading arguments; the script path is appended.
	Command []string
	// Extension of the script file, including the dot.
	Extension string
}

// DefaultInterpreters maps language names onto commands found on most hosts.
func DefaultInterpreters() map[string]Interpreter {
	return map[string]Interpreter{
		"python": {Command: []string{"python3"}, Extension: ".py"},
		"sh":     {Command: []string{"sh"}, Extension: ".sh"},
		"bash":   {Command: []string{"bash"}, Extension: ".sh"},
		"node":   {Command: []string{"node"}, Extension: ".js"},
	}
}

// ProcessOptions configures a ProcessExecutor.
type ProcessOptions struct {
	Interpreters map[string]Interpreter
	// DefaultLanguage is used when Execute receives an empty language.
	DefaultLanguage string
	// Timeout kills the process after the given duration.
	Timeout time.Duration
	// MaxOutputBytes caps stdout and stderr individually.
	MaxOutputBytes int
	// Env replaces the process environment when non-nil.
	Env    []string
	Logger logging.Logger
}

// ProcessExecutor runs every snippet as a subprocess inside a fresh
// temporary directory that is removed afterwards. It is not a security
// boundary; run it inside a container for untrusted code.
type ProcessExecutor struct {
	opts   ProcessOptions
	logger logging.Logger
}

var _ Executor = (*ProcessExecutor)(nil)

// NewProcessExecutor creates a ProcessExecutor.
func NewProcessExecutor(optFns ...func(o *ProcessOptions)) *ProcessExecutor {
	opts := ProcessOptions{
		Interpreters:    DefaultInterpreters(),
		DefaultLanguage: "python",
		Timeout:         30 * time.Second,
		MaxOutputBytes:  64 * 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ProcessExecutor{opts: opts, logger: logging.OrNoOp(opts.Logger)}
}

// Languages implements Executor.
func (p *ProcessExecutor) Languages() []string {
	names := make([]string, 0, len(p.opts.Interpreters))
	for name := range p.opts.Interpreters {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Execute implements Executor.
func (p *ProcessExecutor) Execute(ctx context.Context, language, source string) (Result, error) {
	const op = "code.execute"

	if language == "" {
		language = p.opts.DefaultLanguage
	}
	language = strings.ToLower(strings.TrimSpace(language))

	interp, ok := p.opts.Interpreters[language]
	if !ok || len(interp.Command) == 0 {
		return Result{}, fmt.Errorf("unsupported language %q (supported: %s)", language, strings.Join(p.Languages(), ", "))
	}

	dir, err := os.MkdirTemp("", "code_sandbox_")
	if err != nil {
		return Result{}, fmt.Errorf("create sandbox dir: %w", err)
	}
	defer os.RemoveAll(dir)

	script := filepath.Join(dir, "script"+interp.Extension)
	if err := os.WriteFile(script, []byte(source), 0o600); err != nil {
		return Result{}, fmt.Errorf("write script: %w", err)
	}

	runCtx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	args := append(slices.Clone(interp.Command[1:]), script)
	cmd := exec.CommandContext(runCtx, interp.Command[0], args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	if p.opts.Env != nil {
		cmd.Env = p.opts.Env
	}

	stdout := &cappedBuffer{max: p.opts.MaxOutputBytes}
	stderr := &cappedBuffer{max: p.opts.MaxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	dur := time.Since(start)

	res := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		Truncated: stdout.truncated || stderr.truncated,
	}

	switch {
	case runErr == nil:
		res.Success = true
	case ctx.Err() != nil:
		return res, core.Cancelled(op, ctx.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		res.ExitStatus = -1
		res.Stderr = strings.TrimSpace(res.Stderr + fmt.Sprintf("\nExecution timed out after %s", p.opts.Timeout))
	default:
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return res, fmt.Errorf("run %s: %w", interp.Command[0], runErr)
		}
		res.ExitStatus = exitErr.ExitCode()
	}

	p.logger.Debug("code.execute.done", "language", language, "exit_status", res.ExitStatus, "timed_out", res.TimedOut, "duration_ms", dur.Milliseconds())

	return res, nil
}

// cappedBuffer keeps the first max bytes written and discards the rest.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       strings.Builder
	max       int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.max <= 0 {
		c.buf.Write(p)
		return len(p), nil
	}
	if room := c.max - c.buf.Len(); room < len(p) {
		if room > 0 {
			c.buf.Write(p[:room])
		}
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}
