package agent

import (
	"context"
	"log/slog"

	"github.com/spendlens/spendlens-engine/internal/models"
)

// Scorer grades a candidate result in [0,1].
type Scorer func(result models.AgentResult) float64

// Mutator derives a relaxed message for the next attempt. It must be pure:
// the input message is not modified.
type Mutator func(msg models.AgentMessage, attempt int) models.AgentMessage

// Reflective wraps an agent with a quality-gated, bounded retry loop: when a
// candidate result scores below the threshold the strategy is mutated and the
// body re-run, up to maxAttempts. The best-scoring candidate wins.
type Reflective struct {
	inner       Agent
	scorer      Scorer
	mutator     Mutator
	threshold   float64
	maxAttempts int
	logger      *slog.Logger
}

// NewReflective builds the reflective wrapper. maxAttempts below 1 is
// clamped to 1, which disables reflection.
func NewReflective(inner Agent, scorer Scorer, mutator Mutator, threshold float64, maxAttempts int, logger *slog.Logger) *Reflective {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reflective{
		inner:       inner,
		scorer:      scorer,
		mutator:     mutator,
		threshold:   threshold,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Capability returns the wrapped agent's capability id.
func (r *Reflective) Capability() string { return r.inner.Capability() }

// Shutdown shuts down the wrapped agent.
func (r *Reflective) Shutdown() { r.inner.Shutdown() }

// Process runs the bounded self-improvement loop and returns the best
// candidate, tagged with reflection metadata when more than one attempt ran.
func (r *Reflective) Process(ctx context.Context, msg models.AgentMessage, actx *models.AgentContext) models.AgentResult {
	var (
		best      models.AgentResult
		bestScore = -1.0
	)

	attempt := 0
	current := msg
	for attempt < r.maxAttempts {
		attempt++

		candidate := r.inner.Process(ctx, current, actx)
		score := r.scorer(candidate)
		if score > bestScore {
			best = candidate
			bestScore = score
		}

		if score >= r.threshold || ctx.Err() != nil {
			break
		}
		if attempt == r.maxAttempts {
			break
		}

		r.logger.Debug("reflection retry",
			slog.String("capability", r.Capability()),
			slog.Int("attempt", attempt),
			slog.Float64("score", score),
			slog.Float64("threshold", r.threshold))
		current = r.mutator(current, attempt)
	}

	meta := best.Meta()
	meta["attempts"] = attempt
	if attempt > 1 {
		meta["reflection_applied"] = true
		meta["best_score"] = bestScore
	}
	return best
}

// ConfidenceScorer grades a result by its own reported confidence; errored
// results score zero.
func ConfidenceScorer(result models.AgentResult) float64 {
	if result.Status != models.ResultCompleted {
		return 0
	}
	return result.Confidence
}

// WidenDetection is the default strategy mutation: each retry relaxes the
// detection thresholds one notch.
func WidenDetection(msg models.AgentMessage, attempt int) models.AgentMessage {
	out := msg
	out.Detection = msg.Detection.Widen()
	return out
}
