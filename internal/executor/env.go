package executor

import (
	"sort"
	"strings"
)

// composeEnv layers process env, then manifest env, then resolved secrets,
// each later layer overriding the earlier one on key collision.
func composeEnv(processEnv []string, manifestEnv map[string]string, secrets map[string]string) map[string]string {
	combined := make(map[string]string, len(processEnv)+len(manifestEnv)+len(secrets))
	for _, kv := range processEnv {
		if k, v, ok := strings.Cut(kv, "="); ok {
			combined[k] = v
		}
	}
	for k, v := range manifestEnv {
		combined[k] = v
	}
	for k, v := range secrets {
		combined[k] = v
	}
	return combined
}

// envSlice renders a composed env map into sorted "KEY=VALUE" pairs, the
// shape exec.Cmd.Env expects; sorting keeps child-process env
// deterministic for any hashing/logging that inspects it.
func envSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+env[k])
	}
	return out
}
