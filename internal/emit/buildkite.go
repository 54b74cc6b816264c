package emit

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/cuenv/cuenv/internal/ir"
)

// Buildkite renders an IR document into a Buildkite pipeline file.
type Buildkite struct{}

var _ Emitter = Buildkite{}

func (Buildkite) FormatName() string    { return "buildkite" }
func (Buildkite) FileExtension() string { return ".yml" }
func (Buildkite) Description() string {
	return "renders the compiled pipeline as a Buildkite pipeline"
}

func (Buildkite) Validate(doc *ir.IR) error {
	return ValidateCommon(doc)
}

type bkStep struct {
	Label             string            `yaml:"label,omitempty"`
	Key               string            `yaml:"key,omitempty"`
	Command           string            `yaml:"command,omitempty"`
	DependsOn         []string          `yaml:"depends_on,omitempty"`
	Env               map[string]string `yaml:"env,omitempty"`
	AgentTags         map[string]string `yaml:"agents,omitempty"`
	ConcurrencyGroup  string            `yaml:"concurrency_group,omitempty"`
	Concurrency       int               `yaml:"concurrency,omitempty"`
	ArtifactPaths     []string          `yaml:"artifact_paths,omitempty"`
	Block             string            `yaml:"block,omitempty"`
}

type bkPipeline struct {
	Steps []bkStep `yaml:"steps"`
}

func (Buildkite) Emit(doc *ir.IR) (string, error) {
	var steps []bkStep

	for _, t := range doc.Tasks {
		key := SanitizeKey(t.ID)

		depends := make([]string, 0, len(t.DependsOn))
		for _, d := range t.DependsOn {
			depends = append(depends, SanitizeKey(d))
		}
		sort.Strings(depends)

		if t.ManualApproval {
			approvalKey := key + "-approval"
			steps = append(steps, bkStep{
				Key:       approvalKey,
				Block:     fmt.Sprintf("Approve %s", t.ID),
				DependsOn: depends,
			})
			depends = []string{approvalKey}
		}

		cmd, err := BuildCommand(t, doc)
		if err != nil {
			return "", err
		}

		env := make(map[string]string, len(t.Env)+len(t.Secrets))
		for k, v := range t.Env {
			env[k] = RewriteSecretRef(v, func(name string) string { return "$" + name })
		}
		for name, s := range t.Secrets {
			source := s.Source
			if source == "" {
				source = name
			}
			env[name] = "$" + source
		}

		var artifacts []string
		for _, out := range t.Outputs {
			if out.Type == ir.OutputTypeOrchestrator {
				artifacts = append(artifacts, out.Path)
			}
		}

		step := bkStep{
			Label:         t.ID,
			Key:           key,
			Command:       cmd,
			DependsOn:     depends,
			Env:           env,
			AgentTags:     agentTagsFrom(t.Resources),
			ArtifactPaths: artifacts,
		}
		if t.ConcurrencyGroup != "" {
			step.ConcurrencyGroup = t.ConcurrencyGroup
			step.Concurrency = 1
		}

		steps = append(steps, step)
	}

	out, err := yaml.Marshal(bkPipeline{Steps: steps})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// agentTagsFrom maps resource tags, each in "key=value" form, onto
// Buildkite's agents selector map; a bare tag with no "=" is treated as a
// boolean queue/tag name keyed to "true".
func agentTagsFrom(r *ir.Resources) map[string]string {
	if r == nil || len(r.Tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Tags))
	for _, tag := range r.Tags {
		k, v, ok := splitTag(tag)
		if !ok {
			out[tag] = "true"
			continue
		}
		out[k] = v
	}
	return out
}

func splitTag(tag string) (string, string, bool) {
	for i := 0; i < len(tag); i++ {
		if tag[i] == '=' {
			return tag[:i], tag[i+1:], true
		}
	}
	return "", "", false
}
