// Package provider implements the CI provider adapter: self-detection
// from environment variables, changed-file discovery with a fallback
// chain, and check-run lifecycle management against the host CI's API.
package provider

import (
	"context"

	"github.com/cuenv/cuenv/internal/executor"
)

// Context carries the invocation metadata a provider reads from its CI
// environment: what triggered the run and which commits/branches bound it.
type Context struct {
	Event             string
	Branch            string
	BaseSHA           string
	HeadSHA           string
	PullRequestNumber int
	IsForkPR          bool
}

// CheckHandle identifies one in-progress check run for UpdateCheck and
// CompleteCheck to address later.
type CheckHandle struct {
	ID string
}

// Provider adapts cuenv to one CI vendor's check-run and changed-files
// APIs.
type Provider interface {
	Name() string
	Context(ctx context.Context) (Context, error)
	ChangedFiles(ctx context.Context) ([]string, error)
	CreateCheck(ctx context.Context, name string) (CheckHandle, error)
	UpdateCheck(ctx context.Context, handle CheckHandle, summary string) error
	CompleteCheck(ctx context.Context, handle CheckHandle, report *executor.Report) error
	// UploadReport returns the report's browsable URL, or "" if the
	// provider has nowhere to host one.
	UploadReport(ctx context.Context, report *executor.Report) (string, error)
}

// conclusionFrom maps a pipeline status to the vocabulary most check-run
// APIs expect (success/failure/neutral).
func conclusionFrom(status executor.PipelineStatus) string {
	switch status {
	case executor.PipelineSuccess:
		return "success"
	case executor.PipelineFailed:
		return "failure"
	case executor.PipelinePartial:
		return "neutral"
	default:
		return "neutral"
	}
}
