package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuenv/cuenv/internal/ir"
)

func sampleDoc() *ir.IR {
	doc := ir.New(ir.Pipeline{Name: "default", PipelineTasks: []string{"build.test", "deploy"}})
	doc.Runtimes = []ir.Runtime{
		{ID: "default", Flake: ".", Output: "ci", System: "x86_64-linux", Purity: ir.PurityWarning, Digest: "abc123"},
	}
	doc.Tasks = []ir.Task{
		{
			ID:          "build.test",
			Runtime:     "default",
			Command:     []string{"go", "test", "./..."},
			CachePolicy: ir.CachePolicyNormal,
			Env:         map[string]string{"MODE": "ci", "API_KEY": "${API_KEY}"},
			Secrets: map[string]ir.Secret{
				"TOKEN": {ResolverID: "env", Source: "GH_TOKEN"},
			},
			Resources:        &ir.Resources{Tags: []string{"linux"}},
			ConcurrencyGroup: "build-lane",
			Outputs:          []ir.Output{{Path: "dist/report.json", Type: ir.OutputTypeOrchestrator}},
		},
		{
			ID:             "deploy",
			Command:        []string{"./deploy.sh"},
			CachePolicy:    ir.CachePolicyDisabled,
			Deployment:     true,
			ManualApproval: true,
			DependsOn:      []string{"build.test"},
		},
	}
	return doc
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "build-test", SanitizeKey("build.test"))
	assert.Equal(t, "a-b", SanitizeKey("a b"))
	assert.Equal(t, "ab", SanitizeKey("a!b@"))
}

func TestRewriteSecretRef(t *testing.T) {
	render := func(name string) string { return "X(" + name + ")" }
	assert.Equal(t, "X(FOO)", RewriteSecretRef("${FOO}", render))
	assert.Equal(t, "literal", RewriteSecretRef("literal", render))
	assert.Equal(t, "prefix${FOO}", RewriteSecretRef("prefix${FOO}", render))
}

func TestBuildCommandWrapsRuntimeBootstrap(t *testing.T) {
	doc := sampleDoc()
	cmd, err := BuildCommand(doc.Tasks[0], doc)
	require.NoError(t, err)
	assert.Contains(t, cmd, "nix develop .#ci --command")
	assert.Contains(t, cmd, "go test ./...")
}

func TestBuildCommandRendersNoOpForAggregationTask(t *testing.T) {
	cmd, err := BuildCommand(ir.Task{ID: "build", DependsOn: []string{"build[os=linux]", "build[os=darwin]"}}, sampleDoc())
	require.NoError(t, err)
	assert.Equal(t, "true", cmd)
}

func TestBuildCommandUnknownRuntimeErrors(t *testing.T) {
	doc := sampleDoc()
	task := doc.Tasks[0]
	task.Runtime = "missing"
	_, err := BuildCommand(task, doc)
	assert.Error(t, err)
}

func TestDefaultRegistryHasAllFormats(t *testing.T) {
	r := DefaultRegistry()
	names := r.Names()
	assert.Contains(t, names, "github-actions")
	assert.Contains(t, names, "gitlab-ci")
	assert.Contains(t, names, "buildkite")
	assert.Contains(t, names, "terraform")
}

func TestGitHubActionsEmit(t *testing.T) {
	doc := sampleDoc()
	out, err := EmitValidated(GitHubActions{}, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "build-test:")
	assert.Contains(t, out, "deploy-approval:")
	assert.Contains(t, out, "needs:")
	assert.Contains(t, out, "${{ secrets.GH_TOKEN }}")
	assert.Contains(t, out, "actions/upload-artifact@v4")
	assert.Contains(t, out, "concurrency:")
}

func TestGitLabCIEmit(t *testing.T) {
	doc := sampleDoc()
	out, err := EmitValidated(GitLabCI{}, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "build-test:")
	assert.Contains(t, out, "deploy-approval:")
	assert.Contains(t, out, "resource_group: build-lane")
	assert.Contains(t, out, "when: manual")
}

func TestBuildkiteEmit(t *testing.T) {
	doc := sampleDoc()
	out, err := EmitValidated(Buildkite{}, doc)
	require.NoError(t, err)
	assert.Contains(t, out, "concurrency_group: build-lane")
	assert.Contains(t, out, "concurrency: 1")
	assert.Contains(t, out, "block: Approve deploy")
}

func TestTerraformEmit(t *testing.T) {
	doc := sampleDoc()
	out, err := EmitValidated(Terraform{}, doc)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, `"GH_TOKEN"`))
	assert.True(t, strings.Contains(out, `"build-test"`))
	assert.True(t, strings.Contains(out, `"concurrency_group": "build-lane"`))
}

func TestValidateCommonCatchesSanitizedCollision(t *testing.T) {
	doc := sampleDoc()
	doc.Tasks = append(doc.Tasks, ir.Task{ID: "build test", Command: []string{"echo", "hi"}})
	err := ValidateCommon(doc)
	var collision *ErrSanitizedKeyCollision
	require.Error(t, err)
	require.ErrorAs(t, err, &collision)
}
