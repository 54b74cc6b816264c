package provider

import (
	"context"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/executor"
)

func ctx() context.Context { return context.Background() }

func testLogger() hclog.Logger {
	return hclog.NewNullLogger()
}

func clearCIEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GITHUB_ACTIONS", "GITHUB_RUN_ID", "GITHUB_REPOSITORY", "GITHUB_TOKEN",
		"GITLAB_CI", "CI_PROJECT_ID", "CI_JOB_TOKEN",
		"BUILDKITE", "BUILDKITE_BUILD_ID", "BUILDKITE_AGENT_ACCESS_TOKEN",
	} {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func(k string, had bool, old string) func() {
			return func() {
				if had {
					os.Setenv(k, old)
				}
			}
		}(k, had, old))
	}
}

func TestDetectReturnsFalseWithNoMarkerEnv(t *testing.T) {
	clearCIEnv(t)
	_, ok := Detect(testLogger())
	assert.False(t, ok)
}

func TestDetectGitHub(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_REPOSITORY", "cuenv/cuenv")
	p, ok := Detect(testLogger())
	require.True(t, ok)
	rl, ok := p.(*RateLimited)
	require.True(t, ok)
	assert.Equal(t, "github-actions", rl.Name())
}

func TestDetectGitLab(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("GITLAB_CI", "true")
	t.Setenv("CI_PROJECT_ID", "42")
	p, ok := Detect(testLogger())
	require.True(t, ok)
	assert.Equal(t, "gitlab-ci", p.Name())
}

func TestDetectBuildkite(t *testing.T) {
	clearCIEnv(t)
	t.Setenv("BUILDKITE", "true")
	p, ok := Detect(testLogger())
	require.True(t, ok)
	assert.Equal(t, "buildkite", p.Name())
}

func TestSplitOwnerRepo(t *testing.T) {
	owner, repo := splitOwnerRepo("cuenv/cuenv")
	assert.Equal(t, "cuenv", owner)
	assert.Equal(t, "cuenv", repo)
}

func TestMarkdownSummary(t *testing.T) {
	report := &executor.Report{
		Pipeline: "build",
		Status:   executor.PipelineSuccess,
		Tasks: []executor.TaskResult{
			{Name: "web#build", Status: executor.StatusSuccess, DurationMS: 1234},
			{Name: "api#test", Status: executor.StatusCached, DurationMS: 5},
		},
	}
	out := MarkdownSummary(report)
	assert.Contains(t, out, "web#build")
	assert.Contains(t, out, "1234ms")
	assert.Contains(t, out, string(executor.PipelineSuccess))
}

func TestRateLimitedCoalescesUpdates(t *testing.T) {
	fake := &countingProvider{}
	rl := &RateLimited{inner: fake, interval: time.Hour, lastSent: make(map[string]time.Time)}

	handle := CheckHandle{ID: "check-1"}
	require.NoError(t, rl.UpdateCheck(ctx(), handle, "first"))
	require.NoError(t, rl.UpdateCheck(ctx(), handle, "second"))
	assert.Equal(t, 1, fake.updates)

	require.NoError(t, rl.CompleteCheck(ctx(), handle, &executor.Report{Status: executor.PipelineSuccess}))
	require.NoError(t, rl.UpdateCheck(ctx(), handle, "third"))
	assert.Equal(t, 1, fake.updates, "CompleteCheck does not reset the throttle for new updates")
}

func TestGitChangedFilesFallsBackToLsFiles(t *testing.T) {
	dir := t.TempDir()
	run(t, dir, "git", "init")
	run(t, dir, "git", "config", "user.email", "test@example.com")
	run(t, dir, "git", "config", "user.name", "test")
	require.NoError(t, os.WriteFile(dir+"/a.txt", []byte("a"), 0o644))
	run(t, dir, "git", "add", "a.txt")
	run(t, dir, "git", "commit", "-m", "initial")

	oldwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(oldwd)

	files, err := GitChangedFiles(testLogger(), "", "")
	require.NoError(t, err)
	assert.Contains(t, files, "a.txt")
}

func run(t *testing.T, dir string, name string, args ...string) {
	t.Helper()
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

type countingProvider struct {
	updates int
}

func (c *countingProvider) Name() string { return "fake" }
func (c *countingProvider) Context(context.Context) (Context, error) { return Context{}, nil }
func (c *countingProvider) ChangedFiles(context.Context) ([]string, error) { return nil, nil }
func (c *countingProvider) CreateCheck(context.Context, string) (CheckHandle, error) {
	return CheckHandle{}, nil
}
func (c *countingProvider) UpdateCheck(context.Context, CheckHandle, string) error {
	c.updates++
	return nil
}
func (c *countingProvider) CompleteCheck(context.Context, CheckHandle, *executor.Report) error { return nil }
func (c *countingProvider) UploadReport(context.Context, *executor.Report) (string, error) { return "", nil }
