package emit

import (
	"fmt"
	"sort"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/cuenv/cuenv/internal/ir"
)

// GitHubActions renders an IR document into a GitHub Actions workflow.
type GitHubActions struct{}

var _ Emitter = GitHubActions{}

func (GitHubActions) FormatName() string    { return "github-actions" }
func (GitHubActions) FileExtension() string { return ".yml" }
func (GitHubActions) Description() string {
	return "renders the compiled pipeline as a GitHub Actions workflow"
}

func (GitHubActions) Validate(doc *ir.IR) error {
	return ValidateCommon(doc)
}

type ghWorkflow struct {
	Name string         `yaml:"name"`
	On   map[string]any `yaml:"on"`
	Jobs map[string]ghJob `yaml:"jobs"`
}

type ghConcurrency struct {
	Group            string `yaml:"group"`
	CancelInProgress bool   `yaml:"cancel-in-progress"`
}

type ghStep struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	Run  string            `yaml:"run,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
	Env  map[string]string `yaml:"env,omitempty"`
}

type ghJob struct {
	Name        string            `yaml:"name,omitempty"`
	RunsOn      any               `yaml:"runs-on"`
	Needs       []string          `yaml:"needs,omitempty"`
	Environment string            `yaml:"environment,omitempty"`
	Concurrency *ghConcurrency    `yaml:"concurrency,omitempty"`
	Env         map[string]string `yaml:"env,omitempty"`
	Steps       []ghStep          `yaml:"steps,omitempty"`
}

func (GitHubActions) Emit(doc *ir.IR) (string, error) {
	jobs := make(map[string]ghJob, len(doc.Tasks))

	for _, t := range doc.Tasks {
		key := ghJobKey(t.ID)

		needs := make([]string, 0, len(t.DependsOn))
		for _, d := range t.DependsOn {
			needs = append(needs, ghJobKey(d))
		}
		sort.Strings(needs)

		if t.ManualApproval {
			approvalKey := key + "-approval"
			jobs[approvalKey] = ghJob{
				Name:        fmt.Sprintf("Approve %s", t.ID),
				RunsOn:      "ubuntu-latest",
				Needs:       needs,
				Environment: approvalKey,
				Steps: []ghStep{
					{Name: "Await manual approval", Run: "echo approved"},
				},
			}
			needs = []string{approvalKey}
		}

		cmd, err := BuildCommand(t, doc)
		if err != nil {
			return "", err
		}

		env := make(map[string]string, len(t.Env)+len(t.Secrets))
		for k, v := range t.Env {
			env[k] = RewriteSecretRef(v, func(name string) string {
				return fmt.Sprintf("${{ secrets.%s }}", name)
			})
		}
		for name, s := range t.Secrets {
			source := s.Source
			if source == "" {
				source = name
			}
			env[name] = fmt.Sprintf("${{ secrets.%s }}", source)
		}

		steps := []ghStep{{Name: t.ID, Run: cmd}}
		for _, out := range t.Outputs {
			if out.Type != ir.OutputTypeOrchestrator {
				continue
			}
			steps = append(steps, ghStep{
				Name: fmt.Sprintf("Upload %s", out.Path),
				Uses: "actions/upload-artifact@v4",
				With: map[string]string{
					"name": SanitizeKey(out.Path),
					"path": out.Path,
				},
			})
		}

		job := ghJob{
			RunsOn: runsOnFrom(t.Resources),
			Needs:  needs,
			Env:    env,
			Steps:  steps,
		}
		if t.ConcurrencyGroup != "" {
			job.Concurrency = &ghConcurrency{Group: t.ConcurrencyGroup, CancelInProgress: false}
		}

		jobs[key] = job
	}

	wf := ghWorkflow{
		Name: doc.Pipeline.Name,
		On:   map[string]any{"workflow_dispatch": map[string]any{}, "push": map[string]any{}},
		Jobs: jobs,
	}

	out, err := yaml.Marshal(wf)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func runsOnFrom(r *ir.Resources) any {
	if r == nil || len(r.Tags) == 0 {
		return "ubuntu-latest"
	}
	return r.Tags
}

// ghJobKey sanitizes id into a key legal as a GitHub Actions job id: letters,
// digits, dashes, underscores, and it must not start with a digit.
func ghJobKey(id string) string {
	k := SanitizeKey(id)
	if k == "" {
		return "job"
	}
	if r := []rune(k)[0]; unicode.IsDigit(r) {
		return "job-" + k
	}
	return k
}
