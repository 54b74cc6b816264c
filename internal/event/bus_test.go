package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribersInOrder(t *testing.T) {
	bus := New(NewMetrics(nil))
	var received []string
	bus.Subscribe(func(e Event) { received = append(received, e.Variant) })

	corr := NewCorrelationID()
	bus.Publish(Event{CorrelationID: corr, Category: CategoryTask, Variant: "started", Timestamp: time.Now()})
	bus.Publish(Event{CorrelationID: corr, Category: CategoryTask, Variant: "completed", Timestamp: time.Now()})

	require.Equal(t, []string{"started", "completed"}, received)
}

func TestMetricsCountsByVariant(t *testing.T) {
	bus := New(NewMetrics(nil))
	bus.Publish(Event{Category: CategoryTask, Variant: "started"})
	bus.Publish(Event{Category: CategoryTask, Variant: "started"})
	bus.Publish(Event{Category: CategoryTask, Variant: "completed"})

	snap := bus.metrics.Snapshot()
	assert.Equal(t, int64(2), snap[CategoryTask]["started"])
	assert.Equal(t, int64(1), snap[CategoryTask]["completed"])
}

func TestCorrelationIDsAreUnique(t *testing.T) {
	a := NewCorrelationID()
	b := NewCorrelationID()
	assert.NotEqual(t, a, b)
}
