package secret

import (
	"sort"
	"strings"
	"sync"
)

const redactedPlaceholder = "***"

// redactionRegistry is a global, append-only set of resolved plaintexts.
// Every value handed back by Batch.Resolve is registered here so
// that Mask can scrub it from any later output (logs, captured stdout/
// stderr, cached blobs) regardless of which code path produced that
// output. It never forgets a value for the life of the process: the
// redaction set only grows rather than expiring entries on a timer.
var redactionRegistry = struct {
	mu     sync.RWMutex
	values map[string]struct{}
}{values: make(map[string]struct{})}

// Redact registers value as sensitive. Empty values are ignored since
// masking them would corrupt unrelated output.
func Redact(value string) {
	if value == "" {
		return
	}
	redactionRegistry.mu.Lock()
	redactionRegistry.values[value] = struct{}{}
	redactionRegistry.mu.Unlock()
}

// Mask replaces every registered secret plaintext found in s with a fixed
// placeholder. Longer values are matched first so that one secret which
// happens to be a substring of another is not left partially unredacted.
func Mask(s string) string {
	redactionRegistry.mu.RLock()
	values := make([]string, 0, len(redactionRegistry.values))
	for v := range redactionRegistry.values {
		values = append(values, v)
	}
	redactionRegistry.mu.RUnlock()

	if len(values) == 0 {
		return s
	}

	sort.Slice(values, func(i, j int) bool { return len(values[i]) > len(values[j]) })
	for _, v := range values {
		s = strings.ReplaceAll(s, v, redactedPlaceholder)
	}
	return s
}

// ResetRedactionsForTest clears the registry. Exposed for tests that need
// isolation between cases; production code never calls this.
func ResetRedactionsForTest() {
	redactionRegistry.mu.Lock()
	redactionRegistry.values = make(map[string]struct{})
	redactionRegistry.mu.Unlock()
}
