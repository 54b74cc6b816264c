// Package secret implements the pluggable secret resolver registry: resolver interface, built-in resolvers (env, exec, onepassword,
// infisical), batch parallel resolution, fingerprinting for cache-key
// secrets, and the global redaction registry.
//
// The registry pattern (string-keyed map of behavior objects, registered at
// process init, shared by reference) fits because both resolvers and
// emitters are user-extensible and the set is open.
package secret

import "context"

// Spec is an opaque reference to a secret, e.g. "op://vault/item/field",
// "${CMD:...}", or a plain path, interpreted by the resolver named by
// ResolverID.
type Spec struct {
	ResolverID string
	Source     string
	// Extra carries resolver-specific structured fields (e.g. Infisical's
	// Environment/ProjectID/InheritPath) decoded from the manifest.
	Extra map[string]any
}

// Resolver resolves one secret field to its plaintext value.
type Resolver interface {
	// ID is the registry key (e.g. "env", "exec", "onepassword", "infisical").
	ID() string
	// Resolve returns the plaintext for the given field/spec.
	Resolve(ctx context.Context, fieldName string, spec Spec) (string, error)
	// SupportsDeterministicFingerprint reports whether cache_key:true is
	// legal for secrets resolved through this resolver.
	SupportsDeterministicFingerprint() bool
}
