package compiler

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/cuenv/cuenv/internal/contributor"
	"github.com/cuenv/cuenv/internal/graph"
	"github.com/cuenv/cuenv/internal/ir"
	"github.com/cuenv/cuenv/internal/manifest"
	"github.com/cuenv/cuenv/internal/secret"
)

// Options configures one Compile invocation.
type Options struct {
	PipelineName string
	ChangedFiles []string
	Event        string // e.g. "release"; drives the allAffected shortcut
	Salt         []byte
	PrevSalt     []byte
	ForkPR       bool
}

// Compiler turns an evaluated manifest into a frozen IR document.
type Compiler struct {
	Secrets *secret.Registry
}

// New builds a Compiler bound to a secret registry, used only to check
// SupportsDeterministicFingerprint for cache_key secrets (no resolution
// happens at compile time).
func New(secrets *secret.Registry) *Compiler {
	return &Compiler{Secrets: secrets}
}

var validTaskID = regexp.MustCompile(`^\S+$`)

// Compile runs pipeline selection through final validation in sequence and
// returns a validated IR, or the first configuration/runtime/secret error
// encountered.
func (c *Compiler) Compile(m *manifest.Manifest, opts Options) (*ir.IR, error) {
	pipelineName := opts.PipelineName
	if pipelineName == "" {
		pipelineName = "default"
	}
	pipelineDef, ok := m.Pipelines[pipelineName]
	if !ok {
		return nil, &ConfigurationError{Reason: "pipeline " + pipelineName + " not found"}
	}

	state, err := c.runContributors(m, pipelineDef)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	tasks, err := c.buildTasks(m, state)
	if err != nil {
		return nil, err
	}

	tasks = c.expandMatrices(tasks)

	if err := c.expandDependencyGroups(m, tasks); err != nil {
		return nil, err
	}

	allAffected := opts.Event == "release" || len(opts.ChangedFiles) == 0
	affected, err := computeAffected(tasks, opts.ChangedFiles, allAffected)
	if err != nil {
		return nil, &ConfigurationError{Reason: err.Error()}
	}

	if err := c.attachSecretFingerprints(tasks, opts); err != nil {
		return nil, err
	}

	for i := range tasks {
		tasks[i].NormalizeCachePolicy()
		if opts.ForkPR && tasks[i].CachePolicy != ir.CachePolicyDisabled {
			tasks[i].CachePolicy = ir.CachePolicyReadonly
		}
	}

	runtimes, err := c.buildRuntimes(m)
	if err != nil {
		return nil, err
	}

	doc := ir.New(ir.Pipeline{
		Name:                pipelineName,
		Environment:         m.Environment,
		RequiresOnePassword: m.RequiresOnePassword,
		ProjectName:         m.ProjectName,
		PipelineTasks:       filterAffected(pipelineTaskNames(tasks, pipelineDef), affected),
	})
	doc.Tasks = tasks
	doc.Runtimes = runtimes

	if err := c.validate(doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// FilterAffected recomputes the affected set for a built IR, for callers
// that want the set separately from a full Compile call (e.g. to report it
// in a pipeline summary).
func FilterAffected(doc *ir.IR, changedFiles []string, allAffected bool) (map[string]bool, error) {
	return computeAffected(doc.Tasks, changedFiles, allAffected)
}

func (c *Compiler) runContributors(m *manifest.Manifest, pipelineDef manifest.Pipeline) (*contributor.ProjectState, error) {
	kinds := make(map[string]struct{})
	state := contributor.NewProjectState(kinds)

	for _, name := range pipelineDef.Tasks {
		t, ok := m.Tasks[name]
		if !ok {
			continue
		}
		state.Tasks[name] = &contributor.UserTask{Name: name, Command: t.Command, DependsOn: t.DependsOn}
	}

	engine := contributor.NewEngine(m.Contributors)
	if _, err := engine.Run(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (c *Compiler) buildTasks(m *manifest.Manifest, state *contributor.ProjectState) ([]ir.Task, error) {
	names := make([]string, 0, len(state.Tasks))
	for n := range state.Tasks {
		names = append(names, n)
	}
	sort.Strings(names)

	tasks := make([]ir.Task, 0, len(names))
	for _, name := range names {
		ut := state.Tasks[name]
		if mt, ok := m.Tasks[name]; ok {
			t, err := taskFromManifest(mt, ut.DependsOn, m)
			if err != nil {
				return nil, err
			}
			tasks = append(tasks, t)
			continue
		}
		// Contributor-injected task: no manifest entry exists, so build a
		// minimal task directly from the engine's UserTask.
		tasks = append(tasks, ir.Task{
			ID:          name,
			Command:     ut.Command,
			DependsOn:   ut.DependsOn,
			CachePolicy: ir.CachePolicyNormal,
		})
	}
	return tasks, nil
}

func taskFromManifest(mt manifest.Task, dependsOn []string, m *manifest.Manifest) (ir.Task, error) {
	secrets := make(map[string]ir.Secret, len(mt.Secrets))
	for field, s := range mt.Secrets {
		extra := s.Extra
		if s.ResolverID == "infisical" {
			var err error
			extra, err = resolvedInfisicalExtra(s, m)
			if err != nil {
				return ir.Task{}, &ConfigurationError{Reason: fmt.Sprintf("task %q secret %q: %s", mt.Name, field, err)}
			}
		}
		secrets[field] = ir.Secret{
			ResolverID: s.ResolverID,
			Source:     s.Source,
			CacheKey:   s.CacheKey,
			Extra:      extra,
		}
	}

	return ir.Task{
		ID:               mt.Name,
		Runtime:          mt.Runtime,
		Command:          mt.Command,
		Shell:            mt.Shell,
		Env:              mt.Env,
		Secrets:          secrets,
		Resources:        mt.Resources,
		ConcurrencyGroup: mt.ConcurrencyGroup,
		Inputs:           mt.Inputs,
		Outputs:          mt.Outputs,
		DependsOn:        dependsOn,
		CachePolicy:      mt.CachePolicy,
		Deployment:       mt.Deployment,
		ManualApproval:   mt.ManualApproval,
		Matrix:           mt.Matrix,
		Phase:            mt.Phase,
		ProviderHints:    mt.ProviderHints,
		TimeoutSeconds:   mt.TimeoutSeconds,
		Retry:            mt.Retry,
	}, nil
}

// resolvedInfisicalExtra preprocesses an infisical-sourced secret's "path"
// entry via secret.ResolveInfisicalPath, using the field's DefinedAtDir and
// the manifest's inheritPath/replacement config, before the secret is
// written into the IR.
func resolvedInfisicalExtra(s manifest.Secret, m *manifest.Manifest) (map[string]any, error) {
	rawPath, _ := s.Extra["path"].(string)
	resolved, err := secret.ResolveInfisicalPath(s.DefinedAtDir, rawPath, m.InfisicalInheritPath, m.InfisicalReplacements)
	if err != nil {
		return nil, err
	}

	extra := make(map[string]any, len(s.Extra))
	for k, v := range s.Extra {
		extra[k] = v
	}
	extra["path"] = resolved
	return extra, nil
}

func (c *Compiler) expandMatrices(tasks []ir.Task) []ir.Task {
	var out []ir.Task
	for _, t := range tasks {
		if t.Matrix == nil {
			out = append(out, t)
			continue
		}
		expansions, aggregation := expandMatrixTask(t)
		out = append(out, expansions...)
		out = append(out, aggregation)
	}
	return out
}

// expandDependencyGroups resolves group-prefix entries in depends_on to
// explicit leaf task ids, mutating tasks in place.
func (c *Compiler) expandDependencyGroups(m *manifest.Manifest, tasks []ir.Task) error {
	g := graph.New()
	taskIdx := make(map[string]int, len(tasks))
	for i, t := range tasks {
		g.AddTask(taskNodeRef{t})
		taskIdx[t.ID] = i
	}
	for prefix, children := range m.Groups {
		g.RegisterGroup(prefix, children)
	}
	if err := g.AddDependencyEdges(); err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}
	for i, t := range tasks {
		tasks[i].DependsOn = g.DependsOn(t.ID)
	}
	return nil
}

type taskNodeRef struct{ t ir.Task }

func (n taskNodeRef) Name() string        { return n.t.ID }
func (n taskNodeRef) DependsOn() []string { return n.t.DependsOn }

func (c *Compiler) attachSecretFingerprints(tasks []ir.Task, opts Options) error {
	for i := range tasks {
		for field, s := range tasks[i].Secrets {
			if !s.CacheKey {
				continue
			}
			if c.Secrets != nil {
				resolver, err := c.Secrets.Get(s.ResolverID)
				if err != nil || !resolver.SupportsDeterministicFingerprint() {
					return &SecretConfigError{TaskID: tasks[i].ID, Field: field}
				}
			}
			s.Fingerprint = secret.Fingerprint(opts.Salt, s.ResolverID, s.Source)
			tasks[i].Secrets[field] = s
		}
	}
	return nil
}

func (c *Compiler) buildRuntimes(m *manifest.Manifest) ([]ir.Runtime, error) {
	names := make([]string, 0, len(m.Runtimes))
	for n := range m.Runtimes {
		names = append(names, n)
	}
	sort.Strings(names)

	runtimes := make([]ir.Runtime, 0, len(names))
	for _, name := range names {
		r := m.Runtimes[name]
		if r.Purity == ir.PurityStrict && r.UnlockedNonce != "" {
			return nil, &RuntimeDigestError{RuntimeID: r.ID}
		}
		digest := ir.ComputeDigest(r.Flake, r.Output, r.System, r.LockedHashes, r.UnlockedNonce)
		runtimes = append(runtimes, ir.Runtime{
			ID:     r.ID,
			Flake:  r.Flake,
			Output: r.Output,
			System: r.System,
			Purity: r.Purity,
			Digest: digest,
		})
	}
	return runtimes, nil
}

func (c *Compiler) validate(doc *ir.IR) error {
	for _, t := range doc.Tasks {
		if !validTaskID.MatchString(t.ID) {
			return &ConfigurationError{Reason: "task id " + t.ID + " contains whitespace"}
		}
	}
	if err := doc.Validate(); err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}
	g := graph.New()
	for _, t := range doc.Tasks {
		g.AddTask(taskNodeRef{t})
	}
	if err := g.AddDependencyEdges(); err != nil {
		return &ConfigurationError{Reason: err.Error()}
	}
	if g.HasCycles() {
		return &ConfigurationError{Reason: "dependency cycle detected"}
	}
	return nil
}

func pipelineTaskNames(tasks []ir.Task, pipelineDef manifest.Pipeline) []string {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	out := make([]string, 0, len(pipelineDef.Tasks))
	for _, name := range pipelineDef.Tasks {
		if known[name] {
			out = append(out, name)
		}
	}
	return out
}
