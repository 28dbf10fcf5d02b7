package autocommit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/categorize"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/config"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/llm"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// These tests create git repositories and set HOME through testutil, so
// none of them run in parallel.

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			APIKey:          "test-key",
			Endpoint:        "https://llm.invalid/chat/completions",
			AuthScheme:      config.AuthSchemeAPIKey,
			Temperature:     0.7,
			MaxTokens:       800,
			Timeout:         5 * time.Second,
			BreakerFailures: 3,
			BreakerCooldown: time.Second,
		},
		Generation: config.GenerationConfig{
			Retries:     0,
			Fallback:    config.FallbackManual,
			MaxDiffSize: "24KB",
		},
		Values: config.ValuesConfig{
			CPUs:     []string{"imx8mm", "imx8mp", "imx93"},
			Machines: []string{"ROM-5721", "ROM-5722", "ROM-2820"},
			Types:    []string{"dts", "drivers", "config", "kconfig", "script", "patch"},
		},
		History: config.HistoryConfig{Depth: 50},
	}
}

// categoryCompleter answers with the reply registered for the category
// hint found in the prompt.
type categoryCompleter struct {
	replies map[categorize.Category]string
	err     error
	calls   []categorize.Category
}

func (c *categoryCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	prompt := messages[len(messages)-1].Content
	for _, cat := range categorize.Categories() {
		if strings.Contains(prompt, "**"+cat.Hint()+"**") {
			c.calls = append(c.calls, cat)
			if c.err != nil {
				return "", c.err
			}
			return c.replies[cat], nil
		}
	}
	return "", eos_err.NewGenerationError("no category hint in prompt", nil)
}

// dtsAndScriptRepo has a new device tree file and a modified build script.
func dtsAndScriptRepo(t *testing.T) string {
	t.Helper()
	dir := testutil.InitRepoWithCommit(t, map[string]string{"build.sh": "echo one\n"})
	testutil.WriteFile(t, dir, "arch/arm64/boot/dts/a.dts", "/dts-v1/;\n")
	testutil.WriteFile(t, dir, "build.sh", "echo one\necho two\n")
	return dir
}

func defaultReplies() map[categorize.Category]string {
	return map[categorize.Category]string{
		categorize.DTS: `{"cpu":"imx8mp","machine":"unknown","type":"dts","title":"add board dts","details":["add a.dts"]}`,
		categorize.SCRIPT: "```json\n" +
			`{"cpu":"imx8mp","machine":"ROM-5722","type":"script","title":"echo a second line","details":["- print two"]}` +
			"\n```",
	}
}

func logMessages(t *testing.T, dir string) string {
	t.Helper()
	return testutil.Git(t, dir, "log", "--format=%B%x00")
}

func TestRunDeclineDTSAcceptScript(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	completer := &categoryCompleter{replies: defaultReplies()}
	resolver := &interaction.ScriptedResolver{Answers: map[string]string{"machine": "2"}}
	confirmer := &interaction.ScriptedConfirmer{Decisions: []string{"n", "y"}, Answers: []string{"n"}}
	var out bytes.Buffer

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: completer,
		Resolver:  resolver,
		Confirmer: confirmer,
		Out:       &out,
	})
	require.NoError(t, err)

	assert.Equal(t, []categorize.Category{categorize.DTS, categorize.SCRIPT}, completer.calls)
	assert.Equal(t, []string{"machine"}, resolver.Asked)

	require.Len(t, confirmer.Proposals, 2)
	assert.Equal(t, "[imx8mp][ROM-5722][dts] add board dts\n\nadd a.dts", confirmer.Proposals[0].Message)
	assert.Equal(t, []string{"arch/arm64/boot/dts/a.dts"}, confirmer.Proposals[0].Files)
	assert.Equal(t, "[imx8mp][ROM-5722][script] echo a second line\n\nprint two", confirmer.Proposals[1].Message)

	assert.Equal(t, 2, testutil.CommitCount(t, dir))
	assert.Equal(t, []string{"build.sh"}, testutil.CommittedFiles(t, dir, "HEAD"))
	assert.Equal(t, "[imx8mp][ROM-5722][script] echo a second line", testutil.Git(t, dir, "log", "-1", "--format=%s"))

	// the declined file stays staged
	assert.Equal(t, "A  arch/arm64/boot/dts/a.dts", testutil.Git(t, dir, "status", "--porcelain"))

	assert.Equal(t, 1, summary.Commits())
	assert.Equal(t, OutcomeDeclined, summary.Results[0].Outcome)
	assert.Equal(t, OutcomeCommitted, summary.Results[1].Outcome)
	assert.Len(t, summary.Results[1].Hash, 7)
	assert.False(t, summary.Pushed)
	assert.Len(t, confirmer.Questions, 1, "push is offered exactly once")
	assert.Contains(t, out.String(), "Summary:")
}

func TestRunNoChanges(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, nil)
	completer := &categoryCompleter{}
	confirmer := &interaction.ScriptedConfirmer{}
	var out bytes.Buffer

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: completer,
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: confirmer,
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, eos_err.GetExitCode(err))
	assert.Equal(t, "No changes to commit\n", out.String())
	assert.Empty(t, completer.calls)
	assert.Empty(t, confirmer.Questions)
	assert.Equal(t, 0, summary.Commits())
	assert.Equal(t, 1, testutil.CommitCount(t, dir))
}

func TestRunMissingAPIKeyTouchesNothing(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, nil)
	testutil.WriteFile(t, dir, "new.txt", "x\n")
	cfg := testConfig()
	cfg.LLM.APIKey = ""

	_, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    cfg,
		Completer: &categoryCompleter{},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: &interaction.ScriptedConfirmer{},
	})
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryConfiguration))
	assert.Contains(t, err.Error(), config.EnvAPIKey)
	assert.Equal(t, 2, eos_err.GetExitCode(err))
	assert.Equal(t, "?? new.txt", testutil.Git(t, dir, "status", "--porcelain"))
}

func TestRunPushesOnceAfterAllCategories(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	remote := t.TempDir()
	testutil.Git(t, remote, "init", "--quiet", "--bare")
	testutil.Git(t, dir, "remote", "add", "origin", remote)

	cfg := testConfig()
	cfg.Push.Remote = "origin"
	cfg.Push.Branch = testutil.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD")

	confirmer := &interaction.ScriptedConfirmer{Decisions: []string{"y", "y"}, Answers: []string{"y"}}
	var out bytes.Buffer
	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    cfg,
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{Answers: map[string]string{"machine": "ROM-5721"}},
		Confirmer: confirmer,
		Out:       &out,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Commits())
	assert.True(t, summary.Pushed)
	require.Len(t, confirmer.Questions, 1)
	assert.Contains(t, confirmer.Questions[0], "Push 2 commit(s) to origin/"+cfg.Push.Branch)
	assert.Equal(t, testutil.Git(t, dir, "rev-parse", "HEAD"), testutil.Git(t, remote, "rev-parse", cfg.Push.Branch))

	assert.Equal(t, 3, testutil.CommitCount(t, dir))
	assert.Equal(t, []string{"arch/arm64/boot/dts/a.dts"}, testutil.CommittedFiles(t, dir, "HEAD~1"))
	assert.Equal(t, []string{"build.sh"}, testutil.CommittedFiles(t, dir, "HEAD"))
	assert.NotContains(t, strings.ToLower(logMessages(t, dir)), "unknown")
	assert.Empty(t, testutil.Git(t, dir, "status", "--porcelain"))
}

func TestRunManualFallback(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, map[string]string{"build.sh": "echo one\n"})
	testutil.WriteFile(t, dir, "build.sh", "echo two\n")

	completer := &categoryCompleter{err: eos_err.NewGenerationError("language model request failed", nil)}
	resolver := &interaction.ScriptedResolver{Answers: map[string]string{"cpu": "1", "machine": "2", "type": "script"}}
	confirmer := &interaction.ScriptedConfirmer{
		Decisions: []string{"y"},
		Answers:   []string{"switch to echo two", "print two, drop one", "n"},
	}
	var out bytes.Buffer

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: completer,
		Resolver:  resolver,
		Confirmer: confirmer,
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Commits())
	assert.Equal(t, []string{"cpu", "machine", "type"}, resolver.Asked)
	assert.Contains(t, out.String(), "No message could be generated for SCRIPT")
	assert.Contains(t, confirmer.Proposals[0].Note, "entered manually")
	assert.Equal(t,
		"[imx8mm][ROM-5722][script] switch to echo two\n\nprint two\ndrop one",
		testutil.Git(t, dir, "log", "-1", "--format=%B"))
}

func TestRunManualFallbackEmptyTitleSkips(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, map[string]string{"build.sh": "echo one\n"})
	testutil.WriteFile(t, dir, "build.sh", "echo two\n")

	confirmer := &interaction.ScriptedConfirmer{Answers: []string{""}}
	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{err: eos_err.NewGenerationError("down", nil)},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: confirmer,
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeSkipped, summary.Results[0].Outcome)
	assert.Equal(t, "no title entered", summary.Results[0].Reason)
	assert.Empty(t, confirmer.Proposals)
	assert.Equal(t, 1, testutil.CommitCount(t, dir))
}

func TestRunAbortPolicyStopsRun(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	cfg := testConfig()
	cfg.Generation.Fallback = config.FallbackAbort
	completer := &categoryCompleter{err: eos_err.NewGenerationError("language model request failed", nil)}
	confirmer := &interaction.ScriptedConfirmer{}

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    cfg,
		Completer: completer,
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: confirmer,
		Out:       &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryGeneration))
	assert.Equal(t, []categorize.Category{categorize.DTS}, completer.calls)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	assert.Empty(t, confirmer.Questions)
	assert.Equal(t, 1, testutil.CommitCount(t, dir))
}

func TestRunDryRunCommitsNothing(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	cfg := testConfig()
	cfg.DryRun = true
	confirmer := &interaction.ScriptedConfirmer{}
	var out bytes.Buffer

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    cfg,
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{Answers: map[string]string{"machine": "ROM-2820"}},
		Confirmer: confirmer,
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count(OutcomeProposed))
	assert.Empty(t, confirmer.Proposals)
	assert.Empty(t, confirmer.Questions)
	assert.Contains(t, out.String(), "[imx8mp][ROM-2820][dts] add board dts")
	assert.Contains(t, out.String(), "[imx8mp][ROM-5722][script] echo a second line")
	assert.Equal(t, 1, testutil.CommitCount(t, dir))
}

func TestRunSkipsIncompleteModelResponse(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	replies := defaultReplies()
	replies[categorize.DTS] = `{"cpu":"imx8mp","machine":"ROM-5722","type":"dts","title":"unknown","details":[]}`
	confirmer := &interaction.ScriptedConfirmer{Decisions: []string{"y"}, Answers: []string{"n"}}

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{replies: replies},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: confirmer,
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, summary.Results[0].Outcome)
	assert.Equal(t, "model response has no title", summary.Results[0].Reason)
	assert.Equal(t, OutcomeCommitted, summary.Results[1].Outcome)
	require.Len(t, confirmer.Proposals, 1)
	assert.Equal(t, "SCRIPT", confirmer.Proposals[0].Category)
}

func TestRunRejectsEditedPlaceholder(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, map[string]string{"build.sh": "echo one\n"})
	testutil.WriteFile(t, dir, "build.sh", "echo two\n")
	confirmer := &interaction.ScriptedConfirmer{Decisions: []string{"e:[imx8mp][unknown][script] edited"}}

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: confirmer,
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, summary.Results[0].Outcome)
	assert.Equal(t, 1, testutil.CommitCount(t, dir))
	require.Len(t, confirmer.Questions, 1)
	assert.Contains(t, confirmer.Questions[0], "No commits were made in this run")
}

func TestRunInputClosedSkipsCategory(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	// no machine answer: the DTS category cannot be resolved
	confirmer := &interaction.ScriptedConfirmer{Decisions: []string{"y"}}

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: confirmer,
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, "input closed", summary.Results[0].Reason)
	assert.Equal(t, OutcomeCommitted, summary.Results[1].Outcome)
	// the push question hits closed input and counts as no
	assert.False(t, summary.Pushed)
	assert.Len(t, confirmer.Questions, 1)
}

func TestRunCommitFailureContinues(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell hook")
	}
	dir := dtsAndScriptRepo(t)
	hooks := filepath.Join(dir, ".no-hooks")
	require.NoError(t, os.MkdirAll(hooks, 0o755))
	hook := "#!/bin/sh\ngit diff --cached --name-only | grep -q '\\.dts$' && exit 1\nexit 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(hooks, "pre-commit"), []byte(hook), 0o755))
	testutil.WriteFile(t, dir, ".git/info/exclude", ".no-hooks/\n")

	var out bytes.Buffer
	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{Answers: map[string]string{"machine": "1"}},
		Confirmer: &interaction.ScriptedConfirmer{Decisions: []string{"y", "y"}, Answers: []string{"n"}},
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, summary.Results[0].Outcome)
	assert.True(t, eos_err.IsCategory(summary.Results[0].Err, eos_err.CategoryRepository))
	assert.Equal(t, OutcomeCommitted, summary.Results[1].Outcome)
	assert.Contains(t, out.String(), "Commit of DTS failed")
	assert.Equal(t, []string{"build.sh"}, testutil.CommittedFiles(t, dir, "HEAD"))
}

func TestRunAgainstHTTPEndpoint(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, map[string]string{"drivers/net/fec.c": "int x;\n"})
	testutil.WriteFile(t, dir, "drivers/net/fec.c", "int x = 1;\n")

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "test-key", r.Header.Get("api-key"))
		content := `{"cpu":"imx93","machine":"ROM-2820","type":"drivers","title":"initialise x","details":["set x to 1"]}`
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.LLM.Endpoint = srv.URL
	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    cfg,
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: &interaction.ScriptedConfirmer{Decisions: []string{"y"}, Answers: []string{""}},
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, 1, summary.Commits())
	assert.Equal(t, "[imx93][ROM-2820][drivers] initialise x", testutil.Git(t, dir, "log", "-1", "--format=%s"))
}

func TestOutcomeAndPushTarget(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "declined", OutcomeDeclined.String())
	assert.Equal(t, "proposed", OutcomeProposed.String())
	assert.Equal(t, "the upstream branch", pushTarget("", "", ""))
	assert.Equal(t, "the upstream of main", pushTarget("", "release", "main"))
	assert.Equal(t, "origin", pushTarget("origin", "", ""))
	assert.Equal(t, "origin/main", pushTarget("origin", "", "main"))
	assert.Equal(t, "origin/release", pushTarget("origin", "release", "main"))

	assert.Equal(t, "Push 2 commit(s) to origin/main?", pushQuestion(2, "origin/main"))
	assert.Equal(t, "No commits were made in this run. Push to origin/main anyway?", pushQuestion(0, "origin/main"))
}

// divergedRemote adds a bare origin holding a commit the local repository
// lacks, so pushing the local branch is rejected as non-fast-forward.
func divergedRemote(t *testing.T, dir string) (remote, branch string) {
	t.Helper()
	remote = t.TempDir()
	testutil.Git(t, remote, "init", "--quiet", "--bare")
	testutil.Git(t, dir, "remote", "add", "origin", remote)
	branch = testutil.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD")
	testutil.Git(t, dir, "push", "--quiet", "origin", branch)

	other := filepath.Join(t.TempDir(), "other")
	testutil.Git(t, t.TempDir(), "clone", "--quiet", "--branch", branch, remote, other)
	testutil.WriteFile(t, other, "REMOTE", "pushed from elsewhere\n")
	testutil.Git(t, other, "add", "REMOTE")
	testutil.Git(t, other, "-c", "user.name=Other", "-c", "user.email=other@example.com",
		"commit", "--quiet", "-m", "remote change")
	testutil.Git(t, other, "push", "--quiet", "origin", branch)
	return remote, branch
}

func TestRunPushRejectedKeepsCommits(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	remote, branch := divergedRemote(t, dir)
	remoteHead := testutil.Git(t, remote, "rev-parse", branch)

	cfg := testConfig()
	cfg.Push.Remote = "origin"
	cfg.Push.Branch = branch
	confirmer := &interaction.ScriptedConfirmer{Decisions: []string{"y", "y"}, Answers: []string{"y"}}
	var out bytes.Buffer

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    cfg,
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{Answers: map[string]string{"machine": "ROM-5721"}},
		Confirmer: confirmer,
		Out:       &out,
	})
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryRepository))
	assert.Equal(t, 1, eos_err.GetExitCode(err))
	assert.Contains(t, err.Error(), "git push failed")

	assert.Equal(t, 2, summary.Commits())
	assert.False(t, summary.Pushed)
	require.Len(t, confirmer.Questions, 1)
	assert.NotContains(t, out.String(), "Pushed to")

	// both category commits stand locally and the remote is untouched
	assert.Equal(t, 3, testutil.CommitCount(t, dir))
	assert.Equal(t, []string{"build.sh"}, testutil.CommittedFiles(t, dir, "HEAD"))
	assert.Equal(t, remoteHead, testutil.Git(t, remote, "rev-parse", branch))
}

func TestRunAllDeclinedStillOffersPush(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	remote := t.TempDir()
	testutil.Git(t, remote, "init", "--quiet", "--bare")
	testutil.Git(t, dir, "remote", "add", "origin", remote)
	testutil.Git(t, dir, "config", "push.default", "current")

	cfg := testConfig()
	cfg.Push.Remote = "origin"
	branch := testutil.Git(t, dir, "rev-parse", "--abbrev-ref", "HEAD")

	// push.branch is empty: the question names the checked-out branch
	confirmer := &interaction.ScriptedConfirmer{Decisions: []string{"n", "n"}, Answers: []string{"y"}}
	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    cfg,
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{Answers: map[string]string{"machine": "ROM-5721"}},
		Confirmer: confirmer,
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Commits())
	assert.Equal(t, 2, summary.Count(OutcomeDeclined))
	require.Len(t, confirmer.Questions, 1)
	assert.Equal(t, "No commits were made in this run. Push to origin/"+branch+" anyway?", confirmer.Questions[0])

	// the earlier, unpushed commit reaches the remote
	assert.True(t, summary.Pushed)
	assert.Equal(t, testutil.Git(t, dir, "rev-parse", "HEAD"), testutil.Git(t, remote, "rev-parse", branch))
	assert.Equal(t, 1, testutil.CommitCount(t, dir))
}

func TestRunCleanTreeNeedsNoIdentity(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, nil)
	testutil.ClearIdentity(t, dir)
	var out bytes.Buffer

	_, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: &interaction.ScriptedConfirmer{},
		Out:       &out,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, eos_err.GetExitCode(err))
	assert.Equal(t, "No changes to commit\n", out.String())
}

func TestRunMissingIdentityTouchesNothing(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, nil)
	testutil.WriteFile(t, dir, "new.txt", "x\n")
	testutil.ClearIdentity(t, dir)
	completer := &categoryCompleter{}

	_, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: completer,
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: &interaction.ScriptedConfirmer{},
		Out:       &bytes.Buffer{},
	})
	require.Error(t, err)
	assert.True(t, eos_err.IsCategory(err, eos_err.CategoryRepository))
	assert.Contains(t, err.Error(), "git identity not configured")
	assert.Empty(t, completer.calls)
	assert.Equal(t, "?? new.txt", testutil.Git(t, dir, "status", "--porcelain"))
}

func TestRunIdentityFromEnvironment(t *testing.T) {
	dir := testutil.InitRepoWithCommit(t, map[string]string{"build.sh": "echo one\n"})
	testutil.WriteFile(t, dir, "build.sh", "echo two\n")
	testutil.ClearIdentity(t, dir)
	testutil.SetEnvIdentity(t, "Env User", "env@example.com")

	summary, err := Run(testutil.NewTestContext(t), Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{replies: defaultReplies()},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: &interaction.ScriptedConfirmer{Decisions: []string{"y"}, Answers: []string{"n"}},
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Commits())
	assert.Equal(t, "Env User <env@example.com>", testutil.Git(t, dir, "log", "-1", "--format=%an <%ae>"))
}

func TestRunCategoryLogsCarryCategory(t *testing.T) {
	dir := dtsAndScriptRepo(t)
	rc := testutil.NewTestContext(t)
	core, logs := observer.New(zap.DebugLevel)
	t.Cleanup(otelzap.ReplaceGlobals(otelzap.New(zap.New(core))))

	replies := defaultReplies()
	replies[categorize.DTS] = `{"cpu":"imx8mp","machine":"ROM-5722","type":"dts","title":"unknown","details":["x"]}`
	_, err := Run(rc, Options{
		Path:      dir,
		Config:    testConfig(),
		Completer: &categoryCompleter{replies: replies},
		Resolver:  &interaction.ScriptedResolver{},
		Confirmer: &interaction.ScriptedConfirmer{Decisions: []string{"n"}, Answers: []string{"n"}},
		Out:       &bytes.Buffer{},
	})
	require.NoError(t, err)

	skipped := logs.FilterMessage("Model response has no title; skipping category").All()
	require.Len(t, skipped, 1)
	assert.Equal(t, "DTS", skipped[0].ContextMap()["category"])
}
