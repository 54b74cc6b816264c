package process

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Manager tracks every in-flight Child started through Run. Cancellation is
// per call: each Run ends its own child when its ctx is done.
type Manager struct {
	mu        sync.Mutex
	children  map[*Child]struct{}
	logger    hclog.Logger
	killGrace time.Duration
}

// NewManager builds a Manager. killGrace is the SIGTERM-to-SIGKILL window
// applied to every child spawned through it.
func NewManager(logger hclog.Logger, killGrace time.Duration) *Manager {
	return &Manager{
		children:  make(map[*Child]struct{}),
		logger:    logger,
		killGrace: killGrace,
	}
}

// Run spawns argv and blocks until it completes, fails, or ctx is done.
func (m *Manager) Run(ctx context.Context, argv []string, dir string, env []string) (Result, error) {
	child, err := Spawn(argv, dir, env, m.logger)
	if err != nil {
		return Result{}, err
	}

	m.mu.Lock()
	m.children[child] = struct{}{}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.children, child)
		m.mu.Unlock()
	}()

	return child.Run(ctx, m.killGrace)
}

// ActiveCount reports how many children are currently running.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.children)
}
