package provider

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// detector builds a Provider from the current environment, returning ok
// == false when its vendor's marker env vars aren't present.
type detector func(logger hclog.Logger) (Provider, bool)

var detectors = []detector{
	detectGitHub,
	detectGitLab,
	detectBuildkite,
}

// Detect runs every registered detector in order and returns the first
// vendor whose marker environment variables are present, mirroring the
// env-var self-detection idiom CI tooling commonly uses (any-of/all-of
// checks over a handful of vendor-specific variables).
func Detect(logger hclog.Logger) (Provider, bool) {
	for _, d := range detectors {
		if p, ok := d(logger); ok {
			return NewRateLimited(p), true
		}
	}
	return nil, false
}

func envAny(names ...string) bool {
	for _, n := range names {
		if os.Getenv(n) != "" {
			return true
		}
	}
	return false
}
