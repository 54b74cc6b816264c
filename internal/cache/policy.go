package cache

import "github.com/cuenv/cuenv/internal/ir"

// Decision tells the caller (the executor) whether to attempt a cache read
// and whether a fresh execution's result should be written back.
type Decision struct {
	ShouldRead  bool
	ShouldWrite bool
	MustRun     bool // writeonly always executes even on a hit
}

// DecideFor returns the read/write decision for a policy.
func DecideFor(policy ir.CachePolicy) Decision {
	switch policy {
	case ir.CachePolicyNormal:
		return Decision{ShouldRead: true, ShouldWrite: true}
	case ir.CachePolicyReadonly:
		return Decision{ShouldRead: true, ShouldWrite: false}
	case ir.CachePolicyWriteonly:
		return Decision{ShouldRead: false, ShouldWrite: true, MustRun: true}
	case ir.CachePolicyDisabled:
		return Decision{ShouldRead: false, ShouldWrite: false}
	default:
		return Decision{ShouldRead: true, ShouldWrite: true}
	}
}
