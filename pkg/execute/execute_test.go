package execute

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available: %v", name, err)
	}
}

func TestRunCapturesStdout(t *testing.T) {
	requireBinary(t, "sh")

	res, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "printf out; printf err >&2"},
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "out", res.Stdout)
	assert.Equal(t, "err", res.Stderr)
}

func TestRunFailureSummarizesStderr(t *testing.T) {
	requireBinary(t, "sh")

	_, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "echo 'fatal: not a git repository' >&2; exit 128"},
		Logger:  zaptest.NewLogger(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal: not a git repository")
}

func TestRunTimeout(t *testing.T) {
	requireBinary(t, "sleep")

	start := time.Now()
	_, err := Run(context.Background(), Options{
		Command: "sleep",
		Args:    []string{"5"},
		Timeout: 50 * time.Millisecond,
		Logger:  zaptest.NewLogger(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out after 50ms")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunHonoursCancellation(t *testing.T) {
	requireBinary(t, "sleep")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Options{Command: "sleep", Args: []string{"5"}, Logger: zaptest.NewLogger(t)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interrupted")
}

func TestRunStdin(t *testing.T) {
	requireBinary(t, "cat")

	res, err := Run(context.Background(), Options{
		Command: "cat",
		Stdin:   strings.NewReader("hello"),
		Logger:  zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Stdout)
}

func TestRunnerFunc(t *testing.T) {
	var got Options
	r := RunnerFunc(func(ctx context.Context, opts Options) (Result, error) {
		got = opts
		return Result{Stdout: "x"}, nil
	})
	res, err := r.Run(context.Background(), Options{Command: "git", Args: []string{"status"}})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Stdout)
	assert.Equal(t, "git", got.Command)
}

func TestBuildCommandString(t *testing.T) {
	assert.Equal(t, "git", buildCommandString("git"))
	assert.Equal(t, "git add -- a b", buildCommandString("git", "add", "--", "a", "b"))
}
