package emit

import (
	"fmt"

	"github.com/cuenv/cuenv/internal/ir"
)

// ErrSanitizedKeyCollision reports two distinct task ids that sanitize to
// the same provider-native key, which would make the emitted pipeline
// ambiguous.
type ErrSanitizedKeyCollision struct {
	Key   string
	First string
	Second string
}

func (e *ErrSanitizedKeyCollision) Error() string {
	return fmt.Sprintf("tasks %q and %q both sanitize to key %q", e.First, e.Second, e.Key)
}

// ValidateCommon runs the checks every emitter needs before emit: the IR's
// own invariants, plus no two tasks colliding after key sanitization.
func ValidateCommon(doc *ir.IR) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	seen := make(map[string]string, len(doc.Tasks))
	for _, t := range doc.Tasks {
		key := SanitizeKey(t.ID)
		if prior, ok := seen[key]; ok && prior != t.ID {
			return &ErrSanitizedKeyCollision{Key: key, First: prior, Second: t.ID}
		}
		seen[key] = t.ID
	}
	return nil
}
