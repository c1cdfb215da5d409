// Package registry hands out reusable agent instances by capability name,
// bounding how many of each may be active at once.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/spendlens/spendlens-engine/internal/agent"
	"github.com/spendlens/spendlens-engine/internal/metrics"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

// Factory builds a fresh agent instance for a capability.
type Factory func() agent.Agent

// Pool is the agent registry shared by all concurrent investigations. Its
// per-capability slot counters are the only cross-investigation shared state
// in the engine; everything else is owned by a single investigation.
type Pool struct {
	logger         *slog.Logger
	maxPerCap      int64
	acquireTimeout time.Duration

	mu        sync.Mutex
	factories map[string]Factory
	caps      map[string]*capabilityPool
}

type capabilityPool struct {
	slots *semaphore.Weighted

	mu      sync.Mutex
	idle    []agent.Agent
	created int
}

// NewPool builds an empty registry.
func NewPool(maxPerCapability int, acquireTimeout time.Duration, logger *slog.Logger) *Pool {
	if maxPerCapability <= 0 {
		maxPerCapability = 4
	}
	if acquireTimeout <= 0 {
		acquireTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		logger:         logger,
		maxPerCap:      int64(maxPerCapability),
		acquireTimeout: acquireTimeout,
		factories:      make(map[string]Factory),
		caps:           make(map[string]*capabilityPool),
	}
}

// Register binds a capability name to a factory. Instances are not created
// here; they are built lazily on first acquire to bound startup cost.
func (p *Pool) Register(capability string, factory Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[capability] = factory
}

// Capabilities lists registered capability names in stable order.
func (p *Pool) Capabilities() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.factories))
	for name := range p.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Acquire returns an initialized agent for the capability plus a release
// function the caller must invoke when done. When all slots are busy the
// wait is bounded; on timeout the pool reports ErrAgentUnavailable instead
// of blocking indefinitely.
func (p *Pool) Acquire(ctx context.Context, capability string) (agent.Agent, func(), error) {
	cp, factory, err := p.capabilityPool(capability)
	if err != nil {
		return nil, nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()
	if err := cp.slots.Acquire(waitCtx, 1); err != nil {
		metrics.PoolExhausted(capability)
		p.logger.Warn("agent pool exhausted",
			slog.String("capability", capability),
			slog.Duration("waited", p.acquireTimeout))
		return nil, nil, fmt.Errorf("acquire %s: %w", capability, utils.ErrAgentUnavailable)
	}

	inst := cp.takeIdle()
	if inst == nil {
		inst = factory()
		cp.mu.Lock()
		cp.created++
		created := cp.created
		cp.mu.Unlock()
		p.logger.Debug("agent instance created",
			slog.String("capability", capability),
			slog.Int("instances", created))
	}

	release := func() {
		cp.putIdle(inst)
		cp.slots.Release(1)
	}
	return inst, release, nil
}

// Shutdown stops all idle instances. Instances a caller still holds are the
// caller's to shut down via their release path.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	pools := make([]*capabilityPool, 0, len(p.caps))
	for _, cp := range p.caps {
		pools = append(pools, cp)
	}
	p.mu.Unlock()

	for _, cp := range pools {
		cp.mu.Lock()
		idle := cp.idle
		cp.idle = nil
		cp.mu.Unlock()
		for _, inst := range idle {
			inst.Shutdown()
		}
	}
}

func (p *Pool) capabilityPool(capability string) (*capabilityPool, Factory, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	factory, ok := p.factories[capability]
	if !ok {
		return nil, nil, fmt.Errorf("capability %q not registered: %w", capability, utils.ErrAgentUnavailable)
	}
	cp, ok := p.caps[capability]
	if !ok {
		cp = &capabilityPool{slots: semaphore.NewWeighted(p.maxPerCap)}
		p.caps[capability] = cp
	}
	return cp, factory, nil
}

func (cp *capabilityPool) takeIdle() agent.Agent {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	if len(cp.idle) == 0 {
		return nil
	}
	inst := cp.idle[len(cp.idle)-1]
	cp.idle = cp.idle[:len(cp.idle)-1]
	return inst
}

func (cp *capabilityPool) putIdle(inst agent.Agent) {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	cp.idle = append(cp.idle, inst)
}
