package emit

import (
	"regexp"
	"strings"
)

var nonAlnumDashUnderscore = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeKey translates a task id into a provider-native key: dots become
// dashes, whitespace becomes dashes, and anything left that isn't
// alphanumeric/dash/underscore is dropped, e.g. "build.test" -> "build-test".
func SanitizeKey(id string) string {
	s := strings.ReplaceAll(id, ".", "-")
	s = strings.Join(strings.Fields(s), "-")
	return nonAlnumDashUnderscore.ReplaceAllString(s, "")
}

var secretRefPattern = regexp.MustCompile(`^\$\{([A-Z][A-Z0-9_]*)\}$`)

// RewriteSecretRef rewrites a whole-value "${FOO}" reference into a
// provider's native secret syntax via render, but only when the variable
// name matches [A-Z][A-Z0-9_]* and the reference is the entire value. Any
// other value passes through unchanged.
func RewriteSecretRef(value string, render func(name string) string) string {
	m := secretRefPattern.FindStringSubmatch(value)
	if m == nil {
		return value
	}
	return render(m[1])
}
