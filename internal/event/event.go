// Package event implements the correlated structured event bus:
// a single producer per correlation id, many consumers, fire-and-forget
// delivery, plus Prometheus and JSON export of per-category counters.
//
// Exists to decouple "something happened" from "something durable was done
// with it"; counters reuse the cache package's prometheus.CounterVec
// pattern for event counts instead of cache hits.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Category is the top-level tagged-union discriminant for an Event.
type Category string

const (
	CategoryTask        Category = "task"
	CategoryCi          Category = "ci"
	CategoryCommand     Category = "command"
	CategoryInteractive Category = "interactive"
	CategorySystem      Category = "system"
	CategoryOutput      Category = "output"
)

// Event is one fire-and-forget occurrence on the bus, tagged by Category
// with Variant distinguishing the specific kind within that category (e.g.
// "started", "cached", "completed" for CategoryTask) and Fields carrying
// variant-specific structured data.
type Event struct {
	CorrelationID string         `json:"correlation_id"`
	Source        string         `json:"source"`
	Timestamp     time.Time      `json:"timestamp"`
	Category      Category       `json:"category"`
	Variant       string         `json:"variant"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// NewCorrelationID mints a globally unique id for one invocation, via
// github.com/google/uuid. The id is a random (version 4) UUID, so ids are
// not ordered by creation time.
func NewCorrelationID() string {
	return uuid.NewString()
}
