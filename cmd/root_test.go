package cmd

import (
	"bytes"
	"os"
	"testing"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/config"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the developer's config, .env and credentials out of the
// command under test.
func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvAPIKey, "")
	t.Setenv(config.EnvEndpoint, "")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})
	err := RootCmd.Execute()
	return out.String(), err
}

func TestRulesCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, " 1  DTS      **/*.dts")
	assert.Contains(t, out, "CONFIG")
	assert.Contains(t, out, "OTHER")
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "autocommit dev")
}

func TestConfigCommandRedactsKey(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvAPIKey, "sk-very-secret")
	t.Setenv(config.EnvEndpoint, "https://example.openai.azure.com/chat")

	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-very-secret")
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "endpoint: https://example.openai.azure.com/chat")
	assert.Contains(t, out, "fallback: manual")
}

func TestRootRequiresCredentialsBeforeTouchingRepository(t *testing.T) {
	isolate(t)
	_, err := execute(t, "/definitely/not/a/repository")
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryConfiguration))
	assert.Contains(t, err.Error(), config.EnvAPIKey)
	assert.Equal(t, 2, eos_err.GetExitCode(err))
}

func TestRootRequiresPath(t *testing.T) {
	isolate(t)
	_, err := execute(t)
	require.Error(t, err)
}

func TestRepositoryNamedLikeSubcommand(t *testing.T) {
	isolate(t)
	require.NoError(t, os.Mkdir("config", 0o755))

	// the bare word runs the subcommand
	out, err := execute(t, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "fallback: manual")

	// a path reaches the root command, which stops at the missing key
	_, err = execute(t, "./config")
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryConfiguration))

	t.Cleanup(func() { _ = RootCmd.Flags().Set("help", "false") })
	help, err := execute(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, help, "./config")
}
