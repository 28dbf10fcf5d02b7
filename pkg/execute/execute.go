// pkg/execute/execute.go

// Package execute runs external commands with structured logging and
// tracing. Shell execution is not supported; callers pass argv.
package execute

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/telemetry"
	cerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options describes one command invocation.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Stdin   io.Reader
	// Timeout bounds the command; zero means five minutes.
	Timeout time.Duration

	Logger *zap.Logger
}

// Result holds the captured streams of a finished command.
type Result struct {
	Stdout string
	Stderr string
}

// Runner is implemented by anything that can execute Options. The pipeline
// depends on Runner so tests can substitute scripted output.
type Runner interface {
	Run(ctx context.Context, opts Options) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, opts Options) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, opts Options) (Result, error) {
	return f(ctx, opts)
}

// OSRunner executes commands with os/exec.
type OSRunner struct{}

// Run implements Runner.
func (OSRunner) Run(ctx context.Context, opts Options) (Result, error) {
	return Run(ctx, opts)
}

// Run executes a command with structured logging and proper error handling.
// Stdout and stderr are captured separately; on failure the error carries a
// summary of stderr.
func Run(ctx context.Context, opts Options) (Result, error) {
	cmdStr := buildCommandString(opts.Command, opts.Args...)

	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	runCtx, span := telemetry.Start(runCtx, "execute.Run",
		attribute.String("command", opts.Command),
		attribute.String("args", telemetry.TruncateArgs(opts.Args)),
		attribute.String("dir", opts.Dir),
	)
	defer span.End()

	logger.Debug("Starting execution", zap.String("command", cmdStr), zap.String("dir", opts.Dir))

	cmd := exec.CommandContext(runCtx, opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		logger.Debug("Execution succeeded", zap.String("command", cmdStr))
		return res, nil
	}

	summary := eos_err.ExtractSummary(res.Stderr+"\n"+res.Stdout, 2)
	span.RecordError(err)
	logger.Debug("Execution failed",
		zap.String("command", cmdStr),
		zap.String("summary", summary),
		zap.Error(err))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, cerr.Wrapf(ctxErr, "%s interrupted", cmdStr)
	}
	if runCtx.Err() != nil {
		return res, cerr.Wrapf(runCtx.Err(), "%s timed out after %s", cmdStr, defaultTimeout(opts.Timeout))
	}
	return res, cerr.WithDetail(
		cerr.Wrapf(err, "%s failed: %s", cmdStr, summary),
		strings.TrimSpace(res.Stderr),
	)
}

func defaultTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return 5 * time.Minute
}

func buildCommandString(command string, args ...string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}
