// Package agent defines the uniform lifecycle and message-passing contract
// implemented by every detector and orchestration worker.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

// State tracks an agent instance's lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
)

// Agent is the contract every specialist implements. Process must never panic
// through to the caller and must never return an error: failures are folded
// into the AgentResult.
type Agent interface {
	Capability() string
	Process(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) models.AgentResult
	Shutdown()
}

// Handler is the body of a simple agent.
type Handler func(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) models.AgentResult

// Base supplies state tracking and panic containment around a Handler. A Base
// instance is reusable across investigations but handles one message at a
// time; the pool enforces that.
type Base struct {
	capability string
	handler    Handler

	mu    sync.Mutex
	state State
}

// New builds a Base agent for a capability.
func New(capability string, handler Handler) *Base {
	return &Base{capability: capability, handler: handler, state: StateIdle}
}

// Capability returns the capability id this agent serves.
func (b *Base) Capability() string { return b.capability }

// State returns the agent's current lifecycle state.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// Process runs the handler with panic recovery. The lifecycle always ends
// back at IDLE so the instance can be reused.
func (b *Base) Process(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) (result models.AgentResult) {
	b.setState(StateProcessing)
	defer b.setState(StateIdle)

	defer func() {
		if r := recover(); r != nil {
			b.setState(StateError)
			result = ErrorResult(b.capability, fmt.Errorf("panic: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return ErrorResult(b.capability, err)
	}

	result = b.handler(ctx, msg, actx)
	if result.Status == "" {
		result.Status = models.ResultCompleted
	}
	if result.Status == models.ResultError {
		b.setState(StateError)
	} else {
		b.setState(StateCompleted)
	}
	return result
}

// Shutdown releases agent resources. Base holds none.
func (b *Base) Shutdown() {}

// ErrorResult folds an error into the uniform result shape.
func ErrorResult(capability string, err error) models.AgentResult {
	return models.AgentResult{
		Status: models.ResultError,
		Err:    &utils.AgentExecutionError{Capability: capability, Err: err},
	}
}
