// Package cache implements the content-addressed cache layer:
// fingerprint derivation, CAS storage, policy enforcement, and metrics.
// Blobs are packed per cuenv's IR task fingerprint and stored as a plain
// zstd-compressed blob per CAS entry (github.com/DataDog/zstd).
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/cuenv/cuenv/internal/ir"
)

// FingerprintInputs bundles the canonicalized inputs to the fingerprint
// hash. Callers are responsible for producing already-resolved
// values (e.g. actual file hashes, not globs) before calling Compute.
type FingerprintInputs struct {
	TaskID            string
	Command           []string
	Env               map[string]string
	InputFileHashes   map[string]string // path -> hash
	RuntimeDigest     string            // empty if task has no runtime
	CacheKeySecretFPs []string          // pre-sorted or not; Compute sorts them
}

// Compute derives the fingerprint:
//
//	SHA-256(
//	  task.id || "\n" ||
//	  join(" ", task.command) || "\n" ||
//	  sorted_env_pairs || "\n" ||
//	  sorted(input_file_hash_pairs) || "\n" ||
//	  runtime.digest? || "\n" ||
//	  sorted(cache_key_secret_fingerprints)
//	)
func Compute(in FingerprintInputs) string {
	h := sha256.New()

	fmt.Fprintf(h, "%s\n", in.TaskID)
	fmt.Fprintf(h, "%s\n", strings.Join(in.Command, " "))

	envKeys := make([]string, 0, len(in.Env))
	for k := range in.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		fmt.Fprintf(h, "%s=%s\n", k, in.Env[k])
	}
	fmt.Fprint(h, "\n")

	fileKeys := make([]string, 0, len(in.InputFileHashes))
	for k := range in.InputFileHashes {
		fileKeys = append(fileKeys, k)
	}
	sort.Strings(fileKeys)
	for _, k := range fileKeys {
		fmt.Fprintf(h, "%s=%s\n", k, in.InputFileHashes[k])
	}
	fmt.Fprint(h, "\n")

	fmt.Fprintf(h, "%s\n", in.RuntimeDigest)

	secretFPs := append([]string(nil), in.CacheKeySecretFPs...)
	sort.Strings(secretFPs)
	for _, fp := range secretFPs {
		fmt.Fprintf(h, "%s\n", fp)
	}

	return hex.EncodeToString(h.Sum(nil))
}

// FromTask builds FingerprintInputs' static parts (everything but resolved
// input file hashes, which the caller gathers separately) from a compiled
// IR task and its runtime, if any.
func FromTask(t ir.Task, runtime *ir.Runtime) FingerprintInputs {
	in := FingerprintInputs{
		TaskID:  t.ID,
		Command: t.Command,
		Env:     t.Env,
	}
	if runtime != nil {
		in.RuntimeDigest = runtime.Digest
	}
	for _, s := range t.Secrets {
		if s.CacheKey && s.Fingerprint != "" {
			in.CacheKeySecretFPs = append(in.CacheKeySecretFPs, s.Fingerprint)
		}
	}
	return in
}
