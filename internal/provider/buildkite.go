package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/cuenv/cuenv/internal/executor"
)

var buildkiteMarkerEnv = []string{"BUILDKITE"}

func detectBuildkite(logger hclog.Logger) (Provider, bool) {
	if !envAny(buildkiteMarkerEnv...) {
		return nil, false
	}
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &Buildkite{
		logger: logger,
		client: client,
		token:  os.Getenv("BUILDKITE_AGENT_ACCESS_TOKEN"),
	}, true
}

// Buildkite adapts cuenv to Buildkite pipelines. Buildkite has no check-run
// or changed-files API of its own, so check updates use build annotations
// via the Agent API and changed-files always falls through to git diff.
type Buildkite struct {
	logger hclog.Logger
	client *retryablehttp.Client
	token  string
}

func (b *Buildkite) Name() string { return "buildkite" }

func (b *Buildkite) Context(context.Context) (Context, error) {
	prNumber, _ := strconv.Atoi(os.Getenv("BUILDKITE_PULL_REQUEST"))
	return Context{
		Event:             "build",
		Branch:            os.Getenv("BUILDKITE_BRANCH"),
		BaseSHA:           os.Getenv("BUILDKITE_PULL_REQUEST_BASE_BRANCH"),
		HeadSHA:           os.Getenv("BUILDKITE_COMMIT"),
		PullRequestNumber: prNumber,
		IsForkPR:          os.Getenv("BUILDKITE_PULL_REQUEST_REPO") != "" && os.Getenv("BUILDKITE_PULL_REQUEST_REPO") != os.Getenv("BUILDKITE_REPO"),
	}, nil
}

func (b *Buildkite) ChangedFiles(ctx context.Context) ([]string, error) {
	base := os.Getenv("BUILDKITE_PULL_REQUEST_BASE_BRANCH")
	if base == "" {
		return GitChangedFiles(b.logger, "", os.Getenv("BUILDKITE_COMMIT"))
	}
	return GitChangedFiles(b.logger, "origin/"+base, os.Getenv("BUILDKITE_COMMIT"))
}

func (b *Buildkite) CreateCheck(ctx context.Context, name string) (CheckHandle, error) {
	if err := b.annotate(ctx, name, "info", fmt.Sprintf("**%s**: running", name)); err != nil {
		return CheckHandle{}, err
	}
	return CheckHandle{ID: name}, nil
}

func (b *Buildkite) UpdateCheck(ctx context.Context, handle CheckHandle, summary string) error {
	return b.annotate(ctx, handle.ID, "info", summary)
}

func (b *Buildkite) CompleteCheck(ctx context.Context, handle CheckHandle, report *executor.Report) error {
	style := "success"
	if report.Status != executor.PipelineSuccess {
		style = "error"
	}
	return b.annotate(ctx, handle.ID, style, MarkdownSummary(report))
}

func (b *Buildkite) UploadReport(context.Context, *executor.Report) (string, error) {
	return "", nil
}

// annotate posts a build annotation through the Buildkite Agent API, the
// mechanism `buildkite-agent annotate` itself shells out to.
func (b *Buildkite) annotate(ctx context.Context, annotationContext, style, body string) error {
	buildID := os.Getenv("BUILDKITE_BUILD_ID")
	url := fmt.Sprintf("https://agent.buildkite.com/v3/builds/%s/annotations", buildID)
	payload := map[string]string{
		"context":   annotationContext,
		"style":     style,
		"body_html": body,
		"append":    "false",
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+b.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("buildkite agent API: status %d", resp.StatusCode)
	}
	return nil
}
