// Package manifest defines the typed shape the compiler consumes: the
// output of CUE evaluation, treated as an opaque
// `eval(moduleRoot, package) → typed manifest` function. Nothing in this
// package parses CUE; it only names the struct shape a manifest must have
// once evaluated, mirroring the IR's own task/runtime fields closely
// enough that compilation is mostly validation, expansion, and
// normalization rather than translation.
package manifest

import (
	"encoding/json"

	"github.com/cuenv/cuenv/internal/contributor"
	"github.com/cuenv/cuenv/internal/ir"
)

// Secret is a manifest-level secret declaration, richer than ir.Secret
// because it retains DefinedAtDir for Infisical's path-inheritance rule
// which the compiled IR no longer needs once the path has
// been resolved.
type Secret struct {
	ResolverID   string
	Source       string
	CacheKey     bool
	Extra        map[string]any
	DefinedAtDir string
}

// Task is one manifest-level task declaration.
type Task struct {
	Name             string
	Runtime          string
	Command          []string
	Shell            bool
	Env              map[string]string
	Secrets          map[string]Secret
	Resources        *ir.Resources
	ConcurrencyGroup string
	Inputs           []string
	Outputs          []ir.Output
	DependsOn        []string
	CachePolicy      ir.CachePolicy
	Deployment       bool
	ManualApproval   bool
	Matrix           *ir.Matrix
	Phase            *ir.PhaseAttachment
	TimeoutSeconds   int
	Retry            *ir.RetryPolicy
	ProviderHints    json.RawMessage
}

// Runtime is a manifest-level runtime declaration, prior to digest
// computation.
type Runtime struct {
	ID            string
	Flake         string
	Output        string
	System        string
	Purity        ir.Purity
	LockedHashes  []string
	UnlockedNonce string
}

// Pipeline names the set of top-level tasks one named pipeline runs.
type Pipeline struct {
	Name     string
	Tasks    []string
	FailFast bool
}

// Manifest is the full evaluated project: every task and runtime
// declaration, pipeline definitions, contributors, and dependency groups
// (e.g. a "lint" group expanding to several leaf tasks), plus
// project-level metadata mirrored into the compiled IR's Pipeline block.
type Manifest struct {
	ProjectName         string
	Environment         string
	RequiresOnePassword bool

	Tasks        map[string]Task
	Runtimes     map[string]Runtime
	Pipelines    map[string]Pipeline
	Contributors []*contributor.Contributor
	Groups       map[string][]string

	InfisicalInheritPath   bool
	InfisicalReplacements  map[string]string
}
