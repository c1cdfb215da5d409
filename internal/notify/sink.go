// Package notify delivers terminal investigation events to downstream
// consumers without ever blocking the orchestrator.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spendlens/spendlens-engine/internal/models"
)

// Event is the terminal notification emitted once per investigation.
type Event struct {
	InvestigationID string                 `json:"investigation_id"`
	Status          models.InvestigationStatus `json:"status"`
	Anomalies       []models.AnomalyResult `json:"anomalies,omitempty"`
	Confidence      float64                `json:"confidence"`
	CompletedAt     time.Time              `json:"completed_at"`
}

// Sink consumes terminal events. Implementations must tolerate concurrent
// calls.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// LogSink writes events to the structured log.
type LogSink struct {
	Logger *slog.Logger
}

// Publish logs the event at info level.
func (s LogSink) Publish(_ context.Context, event Event) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("investigation finalized",
		slog.String("investigation_id", event.InvestigationID),
		slog.String("status", string(event.Status)),
		slog.Int("anomalies", len(event.Anomalies)),
		slog.Float64("confidence", event.Confidence))
	return nil
}

// WebhookSink POSTs events as JSON to a configured URL.
type WebhookSink struct {
	URL        string
	HTTPClient *http.Client
}

// Publish delivers the event; non-2xx responses are errors.
func (s WebhookSink) Publish(ctx context.Context, event Event) error {
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook post: status %d", resp.StatusCode)
	}
	return nil
}

// AsyncSink decouples publishing from delivery: Publish enqueues and returns
// immediately; a background worker drains the queue to the wrapped sinks.
// When the buffer is full the event is dropped with a warning rather than
// blocking the caller.
type AsyncSink struct {
	logger *slog.Logger
	sinks  []Sink
	queue  chan Event
	done   chan struct{}
}

// NewAsyncSink starts the delivery worker.
func NewAsyncSink(buffer int, logger *slog.Logger, sinks ...Sink) *AsyncSink {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSink{
		logger: logger,
		sinks:  sinks,
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Publish enqueues the event without blocking.
func (s *AsyncSink) Publish(_ context.Context, event Event) error {
	select {
	case s.queue <- event:
	default:
		s.logger.Warn("notification buffer full, dropping event",
			slog.String("investigation_id", event.InvestigationID))
	}
	return nil
}

// Close stops the worker after draining queued events.
func (s *AsyncSink) Close() {
	close(s.queue)
	<-s.done
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for event := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		for _, sink := range s.sinks {
			if err := sink.Publish(ctx, event); err != nil {
				s.logger.Warn("notification delivery failed",
					slog.String("investigation_id", event.InvestigationID),
					slog.Any("error", err))
			}
		}
		cancel()
	}
}
