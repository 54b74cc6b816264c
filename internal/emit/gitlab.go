package emit

import (
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cuenv/cuenv/internal/ir"
)

// GitLabCI renders an IR document into a GitLab CI pipeline file.
type GitLabCI struct{}

var _ Emitter = GitLabCI{}

func (GitLabCI) FormatName() string    { return "gitlab-ci" }
func (GitLabCI) FileExtension() string { return ".yml" }
func (GitLabCI) Description() string {
	return "renders the compiled pipeline as a GitLab CI pipeline"
}

func (GitLabCI) Validate(doc *ir.IR) error {
	return ValidateCommon(doc)
}

type glJob struct {
	Stage         string            `yaml:"stage"`
	Needs         []string          `yaml:"needs,omitempty"`
	Script        []string          `yaml:"script"`
	Variables     map[string]string `yaml:"variables,omitempty"`
	Tags          []string          `yaml:"tags,omitempty"`
	ResourceGroup string            `yaml:"resource_group,omitempty"`
	When          string            `yaml:"when,omitempty"`
	Artifacts     *glArtifacts      `yaml:"artifacts,omitempty"`
}

type glArtifacts struct {
	Paths []string `yaml:"paths,omitempty"`
}

func (GitLabCI) Emit(doc *ir.IR) (string, error) {
	pipelineDoc := map[string]any{"stages": []string{"pipeline"}}

	for _, t := range doc.Tasks {
		key := SanitizeKey(t.ID)

		needs := make([]string, 0, len(t.DependsOn))
		for _, d := range t.DependsOn {
			needs = append(needs, SanitizeKey(d))
		}
		sort.Strings(needs)

		if t.ManualApproval {
			approvalKey := key + "-approval"
			pipelineDoc[approvalKey] = glJob{
				Stage:  "pipeline",
				Needs:  needs,
				Script: []string{"echo approved"},
				When:   "manual",
			}
			needs = []string{approvalKey}
		}

		cmd, err := BuildCommand(t, doc)
		if err != nil {
			return "", err
		}

		vars := make(map[string]string, len(t.Env)+len(t.Secrets))
		for k, v := range t.Env {
			vars[k] = RewriteSecretRef(v, func(name string) string { return "$" + name })
		}
		for name, s := range t.Secrets {
			source := s.Source
			if source == "" {
				source = name
			}
			vars[name] = "$" + source
		}

		var paths []string
		for _, out := range t.Outputs {
			if out.Type == ir.OutputTypeOrchestrator {
				paths = append(paths, out.Path)
			}
		}

		job := glJob{
			Stage:     "pipeline",
			Needs:     needs,
			Script:    []string{cmd},
			Variables: vars,
			Tags:      tagsFrom(t.Resources),
		}
		if t.ConcurrencyGroup != "" {
			job.ResourceGroup = t.ConcurrencyGroup
		}
		if len(paths) > 0 {
			job.Artifacts = &glArtifacts{Paths: paths}
		}

		pipelineDoc[key] = job
	}

	out, err := yaml.Marshal(pipelineDoc)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func tagsFrom(r *ir.Resources) []string {
	if r == nil {
		return nil
	}
	return r.Tags
}
