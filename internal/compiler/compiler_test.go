package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/ir"
	"github.com/cuenv/cuenv/internal/manifest"
	"github.com/cuenv/cuenv/internal/secret"
)

func simpleManifest() *manifest.Manifest {
	return &manifest.Manifest{
		ProjectName: "demo",
		Tasks: map[string]manifest.Task{
			"build": {Name: "build", Command: []string{"go", "build", "./..."}, CachePolicy: ir.CachePolicyNormal},
			"test":  {Name: "test", Command: []string{"go", "test", "./..."}, DependsOn: []string{"build"}, CachePolicy: ir.CachePolicyNormal},
		},
		Pipelines: map[string]manifest.Pipeline{
			"default": {Name: "default", Tasks: []string{"build", "test"}},
		},
	}
}

func newTestCompiler() *Compiler {
	registry := secret.NewRegistry()
	registry.Register(secret.EnvResolver{})
	return New(registry)
}

func TestCompileProducesValidIR(t *testing.T) {
	doc, err := newTestCompiler().Compile(simpleManifest(), Options{})
	require.NoError(t, err)
	require.NoError(t, doc.Validate())
	assert.Equal(t, ir.Version, doc.Version)
	assert.Len(t, doc.Tasks, 2)
}

func TestCompileUnknownPipelineIsConfigurationError(t *testing.T) {
	_, err := newTestCompiler().Compile(simpleManifest(), Options{PipelineName: "missing"})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestCompileDeploymentForcesCacheDisabled(t *testing.T) {
	m := simpleManifest()
	m.Tasks["deploy"] = manifest.Task{Name: "deploy", Command: []string{"echo", "deploy"}, Deployment: true}
	m.Pipelines["default"] = manifest.Pipeline{Name: "default", Tasks: []string{"build", "test", "deploy"}}

	doc, err := newTestCompiler().Compile(m, Options{})
	require.NoError(t, err)

	deploy, ok := doc.TaskByID("deploy")
	require.True(t, ok)
	assert.Equal(t, ir.CachePolicyDisabled, deploy.CachePolicy)
}

func TestCompileForkPRForcesReadonly(t *testing.T) {
	doc, err := newTestCompiler().Compile(simpleManifest(), Options{ForkPR: true})
	require.NoError(t, err)
	for _, task := range doc.Tasks {
		assert.Equal(t, ir.CachePolicyReadonly, task.CachePolicy)
	}
}

func TestCompileExpandsMatrix(t *testing.T) {
	m := simpleManifest()
	m.Tasks["build"] = manifest.Task{
		Name:    "build",
		Command: []string{"go", "build"},
		Matrix: &ir.Matrix{
			Dimensions: map[string][]string{"os": {"linux", "darwin"}},
		},
	}

	doc, err := newTestCompiler().Compile(m, Options{})
	require.NoError(t, err)

	var ids []string
	for _, task := range doc.Tasks {
		ids = append(ids, task.ID)
	}
	assert.Contains(t, ids, "build[os=darwin]")
	assert.Contains(t, ids, "build[os=linux]")
	assert.Contains(t, ids, "build")

	agg, ok := doc.TaskByID("build")
	require.True(t, ok)
	assert.Contains(t, agg.DependsOn, "build[os=darwin]")
	assert.Contains(t, agg.DependsOn, "build[os=linux]")
}

func TestCompileAttachesSecretFingerprint(t *testing.T) {
	m := simpleManifest()
	m.Tasks["build"] = manifest.Task{
		Name:    "build",
		Command: []string{"go", "build"},
		Secrets: map[string]manifest.Secret{
			"API_KEY": {ResolverID: "env", Source: "MY_VAR", CacheKey: true},
		},
	}

	doc, err := newTestCompiler().Compile(m, Options{Salt: []byte("salt")})
	require.NoError(t, err)

	build, ok := doc.TaskByID("build")
	require.True(t, ok)
	assert.NotEmpty(t, build.Secrets["API_KEY"].Fingerprint)
}

func TestCompileRuntimeStrictPurityWithUnlockedInputsErrors(t *testing.T) {
	m := simpleManifest()
	m.Runtimes = map[string]manifest.Runtime{
		"default": {ID: "default", Flake: ".", Output: "ci", System: "x86_64-linux", Purity: ir.PurityStrict, UnlockedNonce: "nonce"},
	}

	_, err := newTestCompiler().Compile(m, Options{})
	var digestErr *RuntimeDigestError
	require.ErrorAs(t, err, &digestErr)
}

func TestFilterAffectedClosesTransitively(t *testing.T) {
	m := simpleManifest()
	build := m.Tasks["build"]
	build.Inputs = []string{"**/*.go"}
	m.Tasks["build"] = build

	doc, err := newTestCompiler().Compile(m, Options{})
	require.NoError(t, err)

	affected, err := FilterAffected(doc, []string{"main.go"}, false)
	require.NoError(t, err)
	assert.True(t, affected["build"])
	assert.True(t, affected["test"], "test depends on build, so it must close over the affected set")
}

func TestCompileFiltersPipelineTasksToAffectedSet(t *testing.T) {
	m := simpleManifest()
	build := m.Tasks["build"]
	build.Inputs = []string{"**/*.go"}
	m.Tasks["build"] = build
	m.Tasks["lint"] = manifest.Task{Name: "lint", Command: []string{"golangci-lint", "run"}, Inputs: []string{"**/*.md"}}
	m.Pipelines["default"] = manifest.Pipeline{Name: "default", Tasks: []string{"build", "test", "lint"}}

	doc, err := newTestCompiler().Compile(m, Options{ChangedFiles: []string{"main.go"}})
	require.NoError(t, err)

	assert.Contains(t, doc.Pipeline.PipelineTasks, "build")
	assert.Contains(t, doc.Pipeline.PipelineTasks, "test")
	assert.NotContains(t, doc.Pipeline.PipelineTasks, "lint")
	assert.Len(t, doc.Tasks, 3, "unaffected tasks stay in the compiled IR, only the pipeline's own task list is filtered")
}

func TestCompileReleaseEventSkipsAffectedFiltering(t *testing.T) {
	m := simpleManifest()
	build := m.Tasks["build"]
	build.Inputs = []string{"**/*.go"}
	m.Tasks["build"] = build

	doc, err := newTestCompiler().Compile(m, Options{ChangedFiles: []string{"unrelated.txt"}, Event: "release"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"build", "test"}, doc.Pipeline.PipelineTasks)
}

func TestCompileResolvesInfisicalSecretPath(t *testing.T) {
	m := simpleManifest()
	m.InfisicalInheritPath = true
	m.InfisicalReplacements = map[string]string{".": "-"}
	m.Tasks["build"] = manifest.Task{
		Name:    "build",
		Command: []string{"go", "build"},
		Secrets: map[string]manifest.Secret{
			"API_KEY": {
				ResolverID:   "infisical",
				Source:       "API_KEY",
				DefinedAtDir: "apps/web.app",
				Extra:        map[string]any{"path": "secrets", "environment": "prod", "projectId": "proj"},
			},
		},
	}

	doc, err := newTestCompiler().Compile(m, Options{})
	require.NoError(t, err)

	build, ok := doc.TaskByID("build")
	require.True(t, ok)
	assert.Equal(t, "/apps/web-app/secrets", build.Secrets["API_KEY"].Extra["path"])
}

func TestCompileRejectsNonInheritableRelativeInfisicalPath(t *testing.T) {
	m := simpleManifest()
	m.Tasks["build"] = manifest.Task{
		Name:    "build",
		Command: []string{"go", "build"},
		Secrets: map[string]manifest.Secret{
			"API_KEY": {
				ResolverID:   "infisical",
				Source:       "API_KEY",
				DefinedAtDir: "apps/web",
				Extra:        map[string]any{"path": "secrets"},
			},
		},
	}

	_, err := newTestCompiler().Compile(m, Options{})
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestCompileWithNoChangedFilesRunsEverything(t *testing.T) {
	m := simpleManifest()
	build := m.Tasks["build"]
	build.Inputs = []string{"**/*.go"}
	m.Tasks["build"] = build

	doc, err := newTestCompiler().Compile(m, Options{})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"build", "test"}, doc.Pipeline.PipelineTasks)
}
