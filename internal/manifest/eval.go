package manifest

import "fmt"

// Evaluator is the opaque eval(moduleRoot, package) -> Manifest function
// every caller of this package depends on. CUE evaluation itself is out of
// scope here; whatever produces a Manifest (a real CUE evaluator, a JSON
// fixture loader in tests) satisfies this one-method interface.
type Evaluator interface {
	Eval(moduleRoot, pkg string) (*Manifest, error)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(moduleRoot, pkg string) (*Manifest, error)

func (f EvaluatorFunc) Eval(moduleRoot, pkg string) (*Manifest, error) {
	return f(moduleRoot, pkg)
}

// ErrNoEvaluator is returned by NoEvaluator, the default wired into
// cmd/cuenv until a real CUE evaluator is plugged in.
var ErrNoEvaluator = fmt.Errorf("manifest: no CUE evaluator configured")

// NoEvaluator always fails; CUE evaluation is an explicit non-goal of this
// module, so the binary needs an evaluator supplied by its caller (or a
// future cuelang.org/go-backed implementation) before it can turn .cue
// packages into a Manifest.
var NoEvaluator Evaluator = EvaluatorFunc(func(string, string) (*Manifest, error) {
	return nil, ErrNoEvaluator
})
