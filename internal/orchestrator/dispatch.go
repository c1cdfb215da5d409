package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/spendlens/spendlens-engine/internal/metrics"
	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

// stepOutcome is the dispatcher's record of a single executed plan step.
type stepOutcome struct {
	step     models.PlanStep
	result   models.AgentResult
	duration time.Duration
}

func (o *stepOutcome) succeeded() bool {
	return o.result.Status == models.ResultCompleted
}

// executePlan runs the plan as dependency waves: every step whose
// dependencies have completed runs concurrently with the rest of its wave,
// bounded by the engine's global concurrency cap. Step failures and
// timeouts are absorbed into their outcomes so the remaining waves keep
// going; only steps whose dependencies failed are skipped.
func (e *Engine) executePlan(ctx context.Context, inv *models.Investigation, plan *models.InvestigationPlan, actx *models.AgentContext) map[string]*stepOutcome {
	outcomes := make(map[string]*stepOutcome, len(plan.Steps))
	pending := make([]models.PlanStep, len(plan.Steps))
	copy(pending, plan.Steps)

	for len(pending) > 0 {
		ready, blocked := splitReady(pending, outcomes)
		if len(ready) == 0 {
			// Remaining steps can never run: a dependency failed.
			for _, step := range blocked {
				outcomes[step.ID] = &stepOutcome{
					step:   step,
					result: models.AgentResult{Status: models.ResultSkipped, Err: utils.ErrAgentUnavailable},
				}
				metrics.ObserveStep(step.Capability, string(models.ResultSkipped), 0)
			}
			break
		}

		var g errgroup.Group
		results := make([]*stepOutcome, len(ready))
		for i, step := range ready {
			i, step := i, step
			g.Go(func() error {
				results[i] = e.executeStep(ctx, inv, step, outcomes, actx)
				return nil
			})
		}
		g.Wait()
		for _, outcome := range results {
			outcomes[outcome.step.ID] = outcome
		}
		pending = blocked
	}
	return outcomes
}

// splitReady partitions pending steps into those whose dependencies have all
// succeeded and those still waiting or permanently blocked.
func splitReady(pending []models.PlanStep, outcomes map[string]*stepOutcome) (ready, rest []models.PlanStep) {
	for _, step := range pending {
		ok := true
		for _, dep := range step.DependsOn {
			out, done := outcomes[dep]
			if !done || !out.succeeded() {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step)
		} else {
			rest = append(rest, step)
		}
	}
	return ready, rest
}

// executeStep acquires an agent for the step's capability, feeds it the
// records produced by its dependencies, and enforces the per-step timeout.
// A step that outlives its timeout is abandoned: its result is discarded
// and the instance is returned to the pool once it finishes.
func (e *Engine) executeStep(ctx context.Context, inv *models.Investigation, step models.PlanStep, outcomes map[string]*stepOutcome, actx *models.AgentContext) *stepOutcome {
	started := time.Now()
	outcome := &stepOutcome{step: step}

	if err := e.slots.Acquire(ctx, 1); err != nil {
		outcome.result = models.AgentResult{Status: models.ResultSkipped, Err: err}
		metrics.ObserveStep(step.Capability, string(models.ResultSkipped), time.Since(started))
		return outcome
	}
	defer e.slots.Release(1)

	inst, release, err := e.registry.Acquire(ctx, step.Capability)
	if err != nil {
		outcome.result = models.AgentResult{
			Status: models.ResultError,
			Err:    &utils.AgentExecutionError{Capability: step.Capability, Err: err},
		}
		outcome.duration = time.Since(started)
		metrics.ObserveStep(step.Capability, string(models.ResultError), outcome.duration)
		return outcome
	}

	msg := models.AgentMessage{
		ID:            uuid.NewString(),
		Sender:        "orchestrator",
		Recipient:     step.Capability,
		Action:        step.Action,
		CorrelationID: inv.TraceID,
		Records:       dependencyRecords(step, outcomes),
		Query:         step.Query,
		Detection:     step.Detection,
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout)
	defer cancel()

	resCh := make(chan models.AgentResult, 1)
	go func() {
		resCh <- inst.Process(stepCtx, msg, actx)
	}()

	select {
	case res := <-resCh:
		release()
		outcome.result = res
	case <-stepCtx.Done():
		// The agent may still be crunching; hand the instance back only
		// when it is done so the pool never reissues a busy agent.
		go func() {
			<-resCh
			release()
		}()
		outcome.result = models.AgentResult{
			Status: models.ResultTimeout,
			Err:    &utils.AgentExecutionError{Capability: step.Capability, Err: stepCtx.Err()},
		}
	}
	outcome.duration = time.Since(started)
	metrics.ObserveStep(step.Capability, string(outcome.result.Status), outcome.duration)

	e.logger.Debug("step finished",
		"investigation_id", inv.ID,
		"step", step.ID,
		"status", outcome.result.Status,
		"duration_ms", outcome.duration.Milliseconds(),
	)
	return outcome
}

// dependencyRecords collects the records emitted by a step's completed
// dependencies, in dependency order.
func dependencyRecords(step models.PlanStep, outcomes map[string]*stepOutcome) []models.Record {
	var records []models.Record
	for _, dep := range step.DependsOn {
		if out, ok := outcomes[dep]; ok && out.succeeded() {
			records = append(records, out.result.Records...)
		}
	}
	return records
}
