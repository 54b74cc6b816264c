package secret

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// EnvResolver reads a plaintext value from a process environment variable.
type EnvResolver struct{}

// ID implements Resolver.
func (EnvResolver) ID() string { return "env" }

// Resolve implements Resolver: spec.Source names the environment variable.
func (EnvResolver) Resolve(_ context.Context, fieldName string, spec Spec) (string, error) {
	v, ok := os.LookupEnv(spec.Source)
	if !ok {
		return "", fmt.Errorf("secret %q: environment variable %q is not set", fieldName, spec.Source)
	}
	return v, nil
}

// SupportsDeterministicFingerprint implements Resolver: the env var name
// itself is stable input for a fingerprint, so cache_key is safe.
func (EnvResolver) SupportsDeterministicFingerprint() bool { return true }

// ExecResolver runs a command and uses its trimmed stdout as the secret.
type ExecResolver struct {
	// Shell, if set, runs Source through "/bin/sh -c" instead of splitting
	// it as argv. Defaults to splitting on whitespace.
	Shell bool
}

// ID implements Resolver.
func (ExecResolver) ID() string { return "exec" }

// Resolve implements Resolver.
func (r ExecResolver) Resolve(ctx context.Context, fieldName string, spec Spec) (string, error) {
	var cmd *exec.Cmd
	if r.Shell {
		cmd = exec.CommandContext(ctx, "/bin/sh", "-c", spec.Source)
	} else {
		fields := strings.Fields(spec.Source)
		if len(fields) == 0 {
			return "", fmt.Errorf("secret %q: empty exec command", fieldName)
		}
		cmd = exec.CommandContext(ctx, fields[0], fields[1:]...)
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("secret %q: exec resolver command failed: %w", fieldName, err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// SupportsDeterministicFingerprint implements Resolver: the command is
// stable input, but its *output* isn't guaranteed deterministic, so
// fingerprinting only covers the command text, never the plaintext itself
// -- that's true of every resolver here, since the fingerprint hashes
// resolver_id + source, never the resolved value.
func (ExecResolver) SupportsDeterministicFingerprint() bool { return true }

// OnePasswordResolver proxies to the 1Password CLI ("op read"). It's an
// optional resolver: the cuenv command does not register it, only
// EnvResolver and ExecResolver.
type OnePasswordResolver struct {
	// BinaryPath overrides the "op" binary location; empty means look up
	// "op" on PATH.
	BinaryPath string
}

// ID implements Resolver.
func (OnePasswordResolver) ID() string { return "onepassword" }

// Resolve implements Resolver. Source is an "op://vault/item/field" reference.
func (r OnePasswordResolver) Resolve(ctx context.Context, fieldName string, spec Spec) (string, error) {
	bin := r.BinaryPath
	if bin == "" {
		bin = "op"
	}
	cmd := exec.CommandContext(ctx, bin, "read", spec.Source)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("secret %q: 1password read failed: %w", fieldName, err)
	}
	return strings.TrimRight(stdout.String(), "\n"), nil
}

// SupportsDeterministicFingerprint implements Resolver.
func (OnePasswordResolver) SupportsDeterministicFingerprint() bool { return true }
