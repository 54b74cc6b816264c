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

var gitlabMarkerEnv = []string{"GITLAB_CI"}

func detectGitLab(logger hclog.Logger) (Provider, bool) {
	if !envAny(gitlabMarkerEnv...) {
		return nil, false
	}
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &GitLab{
		logger:    logger,
		client:    client,
		baseURL:   gitlabAPIBase(),
		projectID: os.Getenv("CI_PROJECT_ID"),
		token:     os.Getenv("CI_JOB_TOKEN"),
	}, true
}

func gitlabAPIBase() string {
	if server := os.Getenv("CI_SERVER_URL"); server != "" {
		return server + "/api/v4"
	}
	return "https://gitlab.com/api/v4"
}

// GitLab adapts cuenv to GitLab CI, using commit statuses as the nearest
// analog to GitHub's check runs and the Merge Request Changes API for
// changed-files on merge-request pipelines.
type GitLab struct {
	logger    hclog.Logger
	client    *retryablehttp.Client
	baseURL   string
	projectID string
	token     string
}

func (g *GitLab) Name() string { return "gitlab-ci" }

func (g *GitLab) Context(context.Context) (Context, error) {
	mrIID, _ := strconv.Atoi(os.Getenv("CI_MERGE_REQUEST_IID"))
	return Context{
		Event:             os.Getenv("CI_PIPELINE_SOURCE"),
		Branch:            os.Getenv("CI_COMMIT_REF_NAME"),
		BaseSHA:           os.Getenv("CI_MERGE_REQUEST_DIFF_BASE_SHA"),
		HeadSHA:           os.Getenv("CI_COMMIT_SHA"),
		PullRequestNumber: mrIID,
		IsForkPR:          os.Getenv("CI_MERGE_REQUEST_SOURCE_PROJECT_ID") != "" && os.Getenv("CI_MERGE_REQUEST_SOURCE_PROJECT_ID") != os.Getenv("CI_PROJECT_ID"),
	}, nil
}

func (g *GitLab) ChangedFiles(ctx context.Context) ([]string, error) {
	if iid := os.Getenv("CI_MERGE_REQUEST_IID"); iid != "" {
		files, err := g.changedFilesFromAPI(ctx, iid)
		if err == nil {
			return files, nil
		}
		g.logger.Warn("gitlab: merge request changes API failed, falling back to git diff", "error", err)
	}
	return GitChangedFiles(g.logger, os.Getenv("CI_MERGE_REQUEST_DIFF_BASE_SHA"), os.Getenv("CI_COMMIT_SHA"))
}

func (g *GitLab) changedFilesFromAPI(ctx context.Context, mrIID string) ([]string, error) {
	url := fmt.Sprintf("%s/projects/%s/merge_requests/%s/changes", g.baseURL, g.projectID, mrIID)
	var payload struct {
		Changes []struct {
			NewPath string `json:"new_path"`
		} `json:"changes"`
	}
	if err := g.doJSON(ctx, http.MethodGet, url, nil, &payload); err != nil {
		return nil, err
	}
	files := make([]string, 0, len(payload.Changes))
	for _, c := range payload.Changes {
		files = append(files, c.NewPath)
	}
	return files, nil
}

func (g *GitLab) CreateCheck(ctx context.Context, name string) (CheckHandle, error) {
	if err := g.postStatus(ctx, "running", name, ""); err != nil {
		return CheckHandle{}, err
	}
	return CheckHandle{ID: name}, nil
}

func (g *GitLab) UpdateCheck(ctx context.Context, handle CheckHandle, summary string) error {
	return g.postStatus(ctx, "running", handle.ID, summary)
}

func (g *GitLab) CompleteCheck(ctx context.Context, handle CheckHandle, report *executor.Report) error {
	state := "success"
	if report.Status != executor.PipelineSuccess {
		state = "failed"
	}
	return g.postStatus(ctx, state, handle.ID, MarkdownSummary(report))
}

func (g *GitLab) postStatus(ctx context.Context, state, name, description string) error {
	url := fmt.Sprintf("%s/projects/%s/statuses/%s", g.baseURL, g.projectID, os.Getenv("CI_COMMIT_SHA"))
	body := map[string]string{
		"state":       state,
		"name":        name,
		"description": description,
	}
	return g.doJSON(ctx, http.MethodPost, url, body, nil)
}

func (g *GitLab) UploadReport(context.Context, *executor.Report) (string, error) {
	return "", nil
}

func (g *GitLab) doJSON(ctx context.Context, method, url string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("PRIVATE-TOKEN", g.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("gitlab API %s %s: status %d", method, url, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
