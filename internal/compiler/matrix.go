package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuenv/cuenv/internal/ir"
)

// expandMatrix computes the cartesian product of m.Dimensions, minus
// m.Exclude, plus m.Include. Each combination is returned as a
// sorted-key map so callers derive a deterministic synthetic id.
func expandMatrix(m *ir.Matrix) []map[string]string {
	dims := make([]string, 0, len(m.Dimensions))
	for d := range m.Dimensions {
		dims = append(dims, d)
	}
	sort.Strings(dims)

	combos := []map[string]string{{}}
	for _, dim := range dims {
		values := m.Dimensions[dim]
		var next []map[string]string
		for _, combo := range combos {
			for _, v := range values {
				extended := make(map[string]string, len(combo)+1)
				for k, existing := range combo {
					extended[k] = existing
				}
				extended[dim] = v
				next = append(next, extended)
			}
		}
		combos = next
	}

	combos = excludeCombos(combos, m.Exclude)
	for _, inc := range m.Include {
		combos = append(combos, inc)
	}
	return combos
}

func excludeCombos(combos []map[string]string, exclude []map[string]string) []map[string]string {
	if len(exclude) == 0 {
		return combos
	}
	var kept []map[string]string
	for _, c := range combos {
		excluded := false
		for _, ex := range exclude {
			if comboMatches(c, ex) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, c)
		}
	}
	return kept
}

func comboMatches(combo, filter map[string]string) bool {
	for k, v := range filter {
		if combo[k] != v {
			return false
		}
	}
	return true
}

// SyntheticID builds the "{base_id}[{dim=value,...}]" id for a matrix
// expansion, with dimensions alphabetized for determinism.
func SyntheticID(baseID string, combo map[string]string) string {
	keys := make([]string, 0, len(combo))
	for k := range combo {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, combo[k]))
	}
	return fmt.Sprintf("%s[%s]", baseID, strings.Join(pairs, ","))
}

// expandMatrixTask turns one matrix-bearing task into its N expansion
// tasks plus a rewritten aggregation task that depends on all of them.
func expandMatrixTask(base ir.Task) (expansions []ir.Task, aggregation ir.Task) {
	combos := expandMatrix(base.Matrix)
	aggregation = base
	aggregation.Matrix = nil
	aggregation.Command = nil
	aggregation.DependsOn = append([]string(nil), base.DependsOn...)

	for _, combo := range combos {
		id := SyntheticID(base.ID, combo)
		expanded := base
		expanded.ID = id
		expanded.Matrix = nil
		expanded.Env = mergeEnv(base.Env, combo)
		expansions = append(expansions, expanded)
		aggregation.DependsOn = append(aggregation.DependsOn, id)
	}
	return expansions, aggregation
}

func mergeEnv(base map[string]string, combo map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(combo))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range combo {
		merged[strings.ToUpper(k)] = v
	}
	return merged
}
