package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Purity controls how strictly a runtime's dependency closure must be
// pinned before it is trusted for cache purposes.
type Purity string

const (
	PurityStrict   Purity = "strict"
	PurityWarning  Purity = "warning"
	PurityOverride Purity = "override"
)

// Runtime is a materializable execution environment (a Nix flake output, in
// the reference deployment, but the IR keeps it generic).
type Runtime struct {
	ID     string `json:"id"`
	Flake  string `json:"flake"`
	Output string `json:"output"`
	System string `json:"system"`
	Purity Purity `json:"purity"`
	Digest string `json:"digest"`
}

// ComputeDigest derives the runtime's content-addressed digest from its
// locked dependency hashes. When any input is unlocked and purity is not
// strict, a synthetic nonce is mixed in so the digest never collides with a
// previously-locked digest for the same flake reference -- this
// intentionally poisons cache hits for unpinned runtimes.
func ComputeDigest(flake, output, system string, lockedHashes []string, unlockedNonce string) string {
	sorted := append([]string(nil), lockedHashes...)
	sort.Strings(sorted)

	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n%s\n", flake, output, system)
	for _, lh := range sorted {
		fmt.Fprintf(h, "%s\n", lh)
	}
	if unlockedNonce != "" {
		fmt.Fprintf(h, "nonce:%s\n", unlockedNonce)
	}
	return hex.EncodeToString(h.Sum(nil))
}
