package contributor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/cuenv/cuenv/internal/util"
)

func TestInjectionIsNamespacedAndSkipsExisting(t *testing.T) {
	state := NewProjectState(util.NewStringSet("npm"))
	state.Tasks["existing"] = &UserTask{Name: "existing", Command: []string{"npm", "run", "build"}}

	c := &Contributor{
		ID: "lint-setup",
		Tasks: []InjectedTask{
			{Name: "install", Command: []string{"npm", "ci"}},
			{Name: "lint", Command: []string{"npm", "run", "lint"}, DependsOn: []string{"install"}},
		},
	}

	eng := NewEngine([]*Contributor{c})
	passes, err := eng.Run(state)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, passes, 1)

	installID := "cuenv:contributor:lint-setup:install"
	lintID := "cuenv:contributor:lint-setup:lint"

	require.Contains(t, state.Tasks, installID)
	require.Contains(t, state.Tasks, lintID)
	assert.Equal(t, []string{installID}, state.Tasks[lintID].DependsOn)

	// Running again must not duplicate or error: it's skipped since the name exists.
	passes2, err := eng.Run(state)
	require.NoError(t, err)
	assert.Equal(t, 1, passes2)
}

func TestActivationPredicatesAreANDed(t *testing.T) {
	state := NewProjectState(util.NewStringSet("cargo"))
	state.Tasks["t"] = &UserTask{Name: "t", Command: []string{"npm", "test"}}

	c := &Contributor{
		ID: "npm-only",
		When: &When{
			WorkspaceMember: []string{"npm"},
			Command:         []string{"npm"},
		},
		Tasks: []InjectedTask{{Name: "x"}},
	}

	eng := NewEngine([]*Contributor{c})
	_, err := eng.Run(state)
	require.NoError(t, err)
	assert.NotContains(t, state.Tasks, "cuenv:contributor:npm-only:x")
}

func TestAutoAssociation(t *testing.T) {
	state := NewProjectState(util.NewStringSet("npm"))
	state.Tasks["build"] = &UserTask{Name: "build", Command: []string{"npm", "run", "build"}}
	state.Tasks["docs"] = &UserTask{Name: "docs", Command: []string{"mkdocs", "build"}}

	c := &Contributor{
		ID: "npm-deps",
		AutoAssociate: &AutoAssociate{
			Command:          []string{"npm"},
			InjectDependency: "install",
		},
	}

	eng := NewEngine([]*Contributor{c})
	_, err := eng.Run(state)
	require.NoError(t, err)

	assert.Contains(t, state.Tasks["build"].DependsOn, "install")
	assert.NotContains(t, state.Tasks["docs"].DependsOn, "install")
}

func TestConvergenceCap(t *testing.T) {
	state := NewProjectState(util.NewStringSet())
	// A contributor whose injected task depends on a name it never injects
	// itself but that is unique per-pass is impossible to construct without
	// randomness (banned); instead verify that a contributor which settles
	// after its first pass stays within the cap.
	c := &Contributor{
		ID:    "static",
		Tasks: []InjectedTask{{Name: "only"}},
	}
	eng := NewEngine([]*Contributor{c})
	passes, err := eng.Run(state)
	require.NoError(t, err)
	assert.LessOrEqual(t, passes, MaxIterations)
	assert.Contains(t, state.Tasks, "cuenv:contributor:static:only")
}
