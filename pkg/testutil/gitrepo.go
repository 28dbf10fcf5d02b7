package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// RequireGit skips the test when no git binary is available.
func RequireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

// InitRepo creates an empty repository with a local identity and no
// signing, isolated from the developer's global git config.
func InitRepo(t *testing.T) string {
	t.Helper()
	RequireGit(t)

	dir := t.TempDir()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("GIT_CONFIG_NOSYSTEM", "1")

	Git(t, dir, "init", "--quiet")
	Git(t, dir, "config", "user.name", "Test User")
	Git(t, dir, "config", "user.email", "test@example.com")
	Git(t, dir, "config", "commit.gpgsign", "false")
	Git(t, dir, "config", "core.hooksPath", filepath.Join(dir, ".no-hooks"))
	return dir
}

// InitRepoWithCommit is InitRepo plus one commit containing files.
func InitRepoWithCommit(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := InitRepo(t)
	if len(files) == 0 {
		files = map[string]string{"README": "seed\n"}
	}
	for name, content := range files {
		WriteFile(t, dir, name, content)
	}
	Git(t, dir, "add", "--all")
	Git(t, dir, "commit", "--quiet", "-m", "initial")
	return dir
}

// Git runs git in dir and fails the test on error.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content to dir/name, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// CommittedFiles lists the paths touched by the given commit.
func CommittedFiles(t *testing.T, dir, rev string) []string {
	t.Helper()
	out := Git(t, dir, "show", "--name-only", "--pretty=format:", rev)
	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files
}

// CommitCount returns the number of commits reachable from HEAD, or 0 for
// an unborn branch.
func CommitCount(t *testing.T, dir string) int {
	t.Helper()
	cmd := exec.Command("git", "rev-list", "--count", "HEAD")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(out)))
	if err != nil {
		t.Fatalf("rev-list count: %v", err)
	}
	return n
}

// identityEnv lists the variables git consults for an identity before
// its config.
var identityEnv = []string{
	"GIT_AUTHOR_NAME", "GIT_AUTHOR_EMAIL",
	"GIT_COMMITTER_NAME", "GIT_COMMITTER_EMAIL",
	"EMAIL",
}

// ClearIdentity removes every identity source from dir: the repository
// config, the identity environment variables and hostname auto-detection.
func ClearIdentity(t *testing.T, dir string) {
	t.Helper()
	Git(t, dir, "config", "--unset", "user.name")
	Git(t, dir, "config", "--unset", "user.email")
	Git(t, dir, "config", "user.useConfigOnly", "true")
	for _, key := range identityEnv {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

// SetEnvIdentity supplies author and committer through the environment.
func SetEnvIdentity(t *testing.T, name, email string) {
	t.Helper()
	t.Setenv("GIT_AUTHOR_NAME", name)
	t.Setenv("GIT_AUTHOR_EMAIL", email)
	t.Setenv("GIT_COMMITTER_NAME", name)
	t.Setenv("GIT_COMMITTER_EMAIL", email)
}
