// Package compiler implements the manifest-to-IR pipeline:
// pipeline selection, contributor pass wiring, affected-task computation,
// matrix expansion, dependency expansion, secret fingerprint attachment,
// cache-policy normalization, runtime digest assignment, and validation.
//
// Affected-file matching generalizes package-scope filtering to cuenv's
// glob-per-task-input model.
package compiler

import "fmt"

// ConfigurationError covers missing pipelines, unresolved dependencies,
// cycles, and invalid task ids.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.Reason }

// RuntimeDigestError reports a runtime with purity=strict but unlocked
// inputs.
type RuntimeDigestError struct {
	RuntimeID string
}

func (e *RuntimeDigestError) Error() string {
	return fmt.Sprintf("runtime %q requires strict purity but has unlocked inputs", e.RuntimeID)
}

// SecretConfigError reports cache_key:true requested on a secret whose
// resolver doesn't support deterministic fingerprinting.
type SecretConfigError struct {
	TaskID string
	Field  string
}

func (e *SecretConfigError) Error() string {
	return fmt.Sprintf("task %q secret %q: cache_key requires a resolver supporting deterministic fingerprinting", e.TaskID, e.Field)
}
