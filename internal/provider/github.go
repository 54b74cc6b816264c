package provider

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/google/go-github/v29/github"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/oauth2"

	"github.com/cuenv/cuenv/internal/executor"
)

// githubMarkerEnv are the env vars GitHub Actions guarantees are set, used
// for self-detection before anything else about the provider is assumed.
var githubMarkerEnv = []string{"GITHUB_ACTIONS", "GITHUB_RUN_ID"}

func detectGitHub(logger hclog.Logger) (Provider, bool) {
	if !envAny(githubMarkerEnv...) {
		return nil, false
	}
	owner, repo := splitOwnerRepo(os.Getenv("GITHUB_REPOSITORY"))
	return &GitHub{
		owner:  owner,
		repo:   repo,
		logger: logger,
		client: newGitHubClient(os.Getenv("GITHUB_TOKEN")),
	}, true
}

func splitOwnerRepo(full string) (string, string) {
	for i := 0; i < len(full); i++ {
		if full[i] == '/' {
			return full[:i], full[i+1:]
		}
	}
	return full, ""
}

func newGitHubClient(token string) *github.Client {
	if token == "" {
		return github.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(context.Background(), ts))
}

// GitHub adapts cuenv to GitHub Actions via the Checks API.
type GitHub struct {
	owner  string
	repo   string
	logger hclog.Logger
	client *github.Client
}

func (g *GitHub) Name() string { return "github-actions" }

func (g *GitHub) Context(context.Context) (Context, error) {
	prNumber, _ := strconv.Atoi(os.Getenv("GITHUB_PR_NUMBER"))
	return Context{
		Event:             os.Getenv("GITHUB_EVENT_NAME"),
		Branch:            os.Getenv("GITHUB_REF_NAME"),
		BaseSHA:           os.Getenv("GITHUB_BASE_SHA"),
		HeadSHA:           os.Getenv("GITHUB_SHA"),
		PullRequestNumber: prNumber,
		IsForkPR:          os.Getenv("GITHUB_EVENT_NAME") == "pull_request" && os.Getenv("GITHUB_HEAD_REPOSITORY") != os.Getenv("GITHUB_REPOSITORY"),
	}, nil
}

func (g *GitHub) ChangedFiles(ctx context.Context) ([]string, error) {
	if pr := os.Getenv("GITHUB_PR_NUMBER"); pr != "" {
		number, err := strconv.Atoi(pr)
		if err == nil {
			files, err := g.changedFilesFromAPI(ctx, number)
			if err == nil {
				return files, nil
			}
			g.logger.Warn("github: pull request files API failed, falling back to git diff", "error", err)
		}
	}
	return GitChangedFiles(g.logger, os.Getenv("GITHUB_BASE_SHA"), os.Getenv("GITHUB_SHA"))
}

func (g *GitHub) changedFilesFromAPI(ctx context.Context, prNumber int) ([]string, error) {
	var files []string
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := g.client.PullRequests.ListFiles(ctx, g.owner, g.repo, prNumber, opts)
		if err != nil {
			return nil, err
		}
		for _, f := range page {
			files = append(files, f.GetFilename())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

func (g *GitHub) CreateCheck(ctx context.Context, name string) (CheckHandle, error) {
	status := "in_progress"
	run, _, err := g.client.Checks.CreateCheckRun(ctx, g.owner, g.repo, github.CreateCheckRunOptions{
		Name:    name,
		HeadSHA: os.Getenv("GITHUB_SHA"),
		Status:  &status,
	})
	if err != nil {
		return CheckHandle{}, err
	}
	return CheckHandle{ID: strconv.FormatInt(run.GetID(), 10)}, nil
}

func (g *GitHub) UpdateCheck(ctx context.Context, handle CheckHandle, summary string) error {
	id, err := strconv.ParseInt(handle.ID, 10, 64)
	if err != nil {
		return err
	}
	status := "in_progress"
	_, _, err = g.client.Checks.UpdateCheckRun(ctx, g.owner, g.repo, id, github.UpdateCheckRunOptions{
		Status: &status,
		Output: &github.CheckRunOutput{
			Title:   github.String("cuenv pipeline"),
			Summary: github.String(summary),
		},
	})
	return err
}

func (g *GitHub) CompleteCheck(ctx context.Context, handle CheckHandle, report *executor.Report) error {
	id, err := strconv.ParseInt(handle.ID, 10, 64)
	if err != nil {
		return err
	}
	status := "completed"
	conclusion := conclusionFrom(report.Status)
	summary := MarkdownSummary(report)
	_, _, err = g.client.Checks.UpdateCheckRun(ctx, g.owner, g.repo, id, github.UpdateCheckRunOptions{
		Status:     &status,
		Conclusion: &conclusion,
		Output: &github.CheckRunOutput{
			Title:   github.String(fmt.Sprintf("cuenv: %s", report.Status)),
			Summary: github.String(summary),
		},
	})
	return err
}

func (g *GitHub) UploadReport(context.Context, *executor.Report) (string, error) {
	return "", nil
}
