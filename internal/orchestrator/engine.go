package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/spendlens/spendlens-engine/internal/config"
	"github.com/spendlens/spendlens-engine/internal/intent"
	"github.com/spendlens/spendlens-engine/internal/metrics"
	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/notify"
	"github.com/spendlens/spendlens-engine/internal/registry"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

// Repository persists terminal investigations and serves status lookups for
// runs no longer held in memory.
type Repository interface {
	SaveInvestigation(ctx context.Context, inv models.Investigation) error
	LoadInvestigation(ctx context.Context, id string) (models.Investigation, error)
}

// Options configures the engine.
type Options struct {
	Config    config.OrchestratorConfig
	Detection models.DetectionConfig
	Registry  *registry.Pool
	Router    *intent.Router
	Store     Repository
	Sink      notify.Sink
	Profiles  *ProfileEngine
	Logger    *slog.Logger
}

// Engine drives investigations through their lifecycle: it classifies the
// query, plans a DAG of agent invocations, dispatches them through the
// registry, aggregates findings, and reflects on weak results before
// finalizing. One goroutine owns each investigation end to end.
type Engine struct {
	cfg       config.OrchestratorConfig
	detection models.DetectionConfig
	registry  *registry.Pool
	router    *intent.Router
	store     Repository
	sink      notify.Sink
	profiles  *ProfileEngine
	logger    *slog.Logger

	slots     *semaphore.Weighted
	latencies *utils.LatencyTracker

	mu     sync.RWMutex
	active map[string]*run
	wg     sync.WaitGroup
	closed bool
}

// run is the in-memory state of one in-flight investigation.
type run struct {
	mu     sync.Mutex
	inv    models.Investigation
	cancel context.CancelFunc
}

func (r *run) snapshot() models.Investigation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inv.Clone()
}

// NewEngine wires an engine from its dependencies. Registry and Router are
// required; Store and Sink may be nil for in-memory operation.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("orchestrator: registry is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("orchestrator: intent router is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	capacity := opts.Config.GlobalConcurrencyCap
	if capacity <= 0 {
		capacity = 1
	}
	return &Engine{
		cfg:       opts.Config,
		detection: opts.Detection,
		registry:  opts.Registry,
		router:    opts.Router,
		store:     opts.Store,
		sink:      opts.Sink,
		profiles:  opts.Profiles,
		logger:    opts.Logger,
		slots:     semaphore.NewWeighted(int64(capacity)),
		latencies: utils.NewLatencyTracker(512),
		active:    make(map[string]*run),
	}, nil
}

// SubmitInvestigation validates and classifies the query, registers a new
// investigation in RECEIVED state, and starts its lifecycle goroutine. The
// returned id is immediately queryable via GetInvestigationStatus.
func (e *Engine) SubmitInvestigation(ctx context.Context, query string, metadata map[string]string) (string, error) {
	classification, err := e.router.Classify(query)
	if err != nil {
		return "", err
	}

	inv := models.Investigation{
		ID:        uuid.NewString(),
		Query:     query,
		Intent:    classification.Intent,
		Status:    models.StatusReceived,
		StartedAt: time.Now().UTC(),
		TraceID:   uuid.NewString(),
		Metadata:  metadata,
	}

	runCtx, cancel := context.WithTimeout(context.Background(), e.cfg.OverallTimeout)
	r := &run{inv: inv, cancel: cancel}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		cancel()
		return "", fmt.Errorf("orchestrator: engine is shut down")
	}
	e.active[inv.ID] = r
	e.wg.Add(1)
	e.mu.Unlock()

	metrics.InvestigationStarted()
	e.logger.Info("investigation submitted",
		"investigation_id", inv.ID,
		"intent", classification.Intent,
		"intent_confidence", classification.Confidence,
		"trace_id", inv.TraceID,
	)

	go e.execute(runCtx, r, classification)
	return inv.ID, nil
}

// GetInvestigationStatus returns a snapshot of the investigation, serving
// in-flight runs from memory and finished ones from the store.
func (e *Engine) GetInvestigationStatus(ctx context.Context, id string) (models.Investigation, error) {
	e.mu.RLock()
	r, ok := e.active[id]
	e.mu.RUnlock()
	if ok {
		return r.snapshot(), nil
	}
	if e.store == nil {
		return models.Investigation{}, utils.ErrNotFound
	}
	return e.store.LoadInvestigation(ctx, id)
}

// CancelInvestigation requests cancellation of an in-flight investigation.
// It returns false when the id is unknown or already terminal.
func (e *Engine) CancelInvestigation(id string) bool {
	e.mu.RLock()
	r, ok := e.active[id]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	r.cancel()
	return true
}

// Shutdown cancels all in-flight investigations and waits for their
// lifecycle goroutines to finish persisting.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	for _, r := range e.active {
		r.cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
}

// execute owns the full lifecycle of one investigation.
func (e *Engine) execute(ctx context.Context, r *run, classification models.Classification) {
	defer e.wg.Done()
	defer r.cancel()

	defer func() {
		if rec := recover(); rec != nil {
			fault := &utils.OrchestrationFault{TraceID: r.inv.TraceID, Err: fmt.Errorf("panic: %v", rec)}
			e.logger.Error("investigation panicked", "investigation_id", r.inv.ID, "error", fault)
			e.finalize(r, models.StatusFailed, aggregate{}, fault)
		}
	}()

	e.transition(r, models.StatusPlanning)
	plan := buildPlan(classification, e.detection, e.cfg.StepTimeout, e.profiles)
	r.mu.Lock()
	r.inv.Plan = plan
	r.mu.Unlock()

	if ctx.Err() != nil {
		e.finalize(r, models.StatusCancelled, aggregate{}, nil)
		return
	}

	actx := models.NewAgentContext(r.inv.ID, r.inv.TraceID)

	e.transition(r, models.StatusDispatching)
	outcomes := e.executePlan(ctx, &r.inv, plan, actx)

	e.transition(r, models.StatusAggregating)
	agg := aggregateOutcomes(outcomes)
	attempts := 1

	// Reflection happens inside REFLECTING: the status never moves
	// backward even when steps are re-dispatched.
	e.transition(r, models.StatusReflecting)
	reflected := false
	for agg.confidence < e.cfg.AcceptanceThreshold &&
		attempts-1 < e.cfg.MaxReflectionPasses &&
		ctx.Err() == nil &&
		!agg.fetchFailed {

		pass := attempts
		attempts++
		reflected = true
		metrics.ReflectionPass()
		e.logger.Info("reflection pass",
			"investigation_id", r.inv.ID,
			"pass", pass,
			"confidence", agg.confidence,
			"threshold", e.cfg.AcceptanceThreshold,
		)

		plan = revisePlan(plan, pass)
		r.mu.Lock()
		r.inv.Plan = plan
		r.mu.Unlock()

		outcomes = e.executePlan(ctx, &r.inv, plan, actx)
		next := aggregateOutcomes(outcomes)
		if next.confidence >= agg.confidence {
			agg = next
		}
	}

	r.mu.Lock()
	r.inv.Attempts = attempts
	r.inv.ReflectionApplied = reflected
	r.mu.Unlock()

	switch {
	case ctx.Err() == context.Canceled:
		// Cancelled mid-flight: discard whatever the steps produced.
		e.finalize(r, models.StatusCancelled, aggregate{}, nil)
	case agg.failedSteps > 0 || agg.confidence < e.cfg.MinViableConfidence:
		e.finalize(r, models.StatusPartial, agg, nil)
	default:
		e.finalize(r, models.StatusCompleted, agg, nil)
	}
}

// transition advances the lifecycle status, enforcing the forward-only
// state machine.
func (e *Engine) transition(r *run, to models.InvestigationStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !models.CanTransition(r.inv.Status, to) {
		panic(fmt.Sprintf("illegal status transition %s -> %s", r.inv.Status, to))
	}
	r.inv.Status = to
}

// finalize stamps the terminal state, persists it, publishes the terminal
// event, and drops the run from the active set.
func (e *Engine) finalize(r *run, status models.InvestigationStatus, agg aggregate, fault error) {
	now := time.Now().UTC()

	r.mu.Lock()
	if r.inv.Status.Terminal() {
		r.mu.Unlock()
		return
	}
	r.inv.Status = status
	r.inv.Results = agg.anomalies
	r.inv.Confidence = agg.confidence
	r.inv.TotalRecordsAnalyzed = agg.recordsAnalyzed
	if fault != nil {
		r.inv.Error = fault.Error()
	}
	r.inv.Finish(now)
	final := r.inv.Clone()
	r.mu.Unlock()

	for _, a := range final.Results {
		metrics.ObserveAnomaly(a.Type, string(a.Severity))
	}
	metrics.ObserveInvestigation(final.ProcessingTime, string(status))
	metrics.InvestigationDone()
	e.latencies.Observe(final.ProcessingTime)

	if e.store != nil {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.store.SaveInvestigation(saveCtx, final); err != nil {
			e.logger.Error("failed to persist investigation", "investigation_id", final.ID, "error", err)
		}
		cancel()
	}
	if e.sink != nil {
		event := notify.Event{
			InvestigationID: final.ID,
			Status:          final.Status,
			Anomalies:       final.Results,
			Confidence:      final.Confidence,
			CompletedAt:     now,
		}
		pubCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.sink.Publish(pubCtx, event); err != nil {
			e.logger.Warn("failed to publish terminal event", "investigation_id", final.ID, "error", err)
		}
		cancel()
	}

	e.mu.Lock()
	delete(e.active, final.ID)
	e.mu.Unlock()

	e.logger.Info("investigation finished",
		"investigation_id", final.ID,
		"status", final.Status,
		"confidence", final.Confidence,
		"anomalies", len(final.Results),
		"attempts", final.Attempts,
		"duration_ms", final.ProcessingTime.Milliseconds(),
		"p95_ms", e.latencies.Percentile(95).Milliseconds(),
	)
}
