package provider

import (
	"fmt"
	"strings"

	"github.com/cuenv/cuenv/internal/executor"
)

// MarkdownSummary renders a pipeline report as the markdown table posted
// alongside a completed check run.
func MarkdownSummary(report *executor.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "### %s — %s\n\n", report.Pipeline, report.Status)
	fmt.Fprintf(&b, "| Task | Status | Duration |\n|---|---|---|\n")
	for _, t := range report.Tasks {
		fmt.Fprintf(&b, "| %s | %s | %dms |\n", t.Name, t.Status, t.DurationMS)
	}
	return b.String()
}
