package emit

import (
	"encoding/json"

	"github.com/cuenv/cuenv/internal/ir"
)

// Terraform renders an IR document as Terraform JSON configuration
// (a ".tf.json" file): one input variable per distinct secret source the
// pipeline needs provisioned, and a local describing each task's resource
// and concurrency requirements so infrastructure modules can size runners
// to match.
type Terraform struct{}

var _ Emitter = Terraform{}

func (Terraform) FormatName() string    { return "terraform" }
func (Terraform) FileExtension() string { return ".tf.json" }
func (Terraform) Description() string {
	return "renders the compiled pipeline's resource and secret requirements as Terraform inputs"
}

func (Terraform) Validate(doc *ir.IR) error {
	return ValidateCommon(doc)
}

type tfVariable struct {
	Type      string `json:"type"`
	Sensitive bool   `json:"sensitive"`
}

type tfTaskLocal struct {
	DependsOn        []string `json:"depends_on,omitempty"`
	ConcurrencyGroup string   `json:"concurrency_group,omitempty"`
	ResourceTags     []string `json:"resource_tags,omitempty"`
	Runtime          string   `json:"runtime,omitempty"`
	Deployment       bool     `json:"deployment,omitempty"`
}

func (Terraform) Emit(doc *ir.IR) (string, error) {
	variables := make(map[string]tfVariable)
	tasks := make(map[string]tfTaskLocal, len(doc.Tasks))

	for _, t := range doc.Tasks {
		key := SanitizeKey(t.ID)

		depends := make([]string, 0, len(t.DependsOn))
		for _, d := range t.DependsOn {
			depends = append(depends, SanitizeKey(d))
		}

		var tags []string
		if t.Resources != nil {
			tags = t.Resources.Tags
		}

		tasks[key] = tfTaskLocal{
			DependsOn:        depends,
			ConcurrencyGroup: t.ConcurrencyGroup,
			ResourceTags:     tags,
			Runtime:          t.Runtime,
			Deployment:       t.Deployment,
		}

		for _, s := range t.Secrets {
			source := s.Source
			if source == "" {
				continue
			}
			variables[source] = tfVariable{Type: "string", Sensitive: true}
		}
	}

	rendered := map[string]any{
		"locals": map[string]any{
			"cuenv_tasks": tasks,
		},
	}
	if len(variables) > 0 {
		rendered["variable"] = variables
	}

	out, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out) + "\n", nil
}
