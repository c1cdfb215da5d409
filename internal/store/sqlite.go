// Package store persists investigations in SQLite. The engine only requires
// at-least-once durability at completion, so every write is a full upsert of
// the investigation row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spendlens/spendlens-engine/internal/models"
	"github.com/spendlens/spendlens-engine/internal/utils"
)

const schema = `
CREATE TABLE IF NOT EXISTS investigations (
	id              TEXT PRIMARY KEY,
	query           TEXT NOT NULL,
	intent          TEXT NOT NULL,
	status          TEXT NOT NULL,
	confidence      REAL NOT NULL DEFAULT 0,
	started_at      TEXT NOT NULL,
	completed_at    TEXT,
	total_records   INTEGER NOT NULL DEFAULT 0,
	processing_ns   INTEGER NOT NULL DEFAULT 0,
	reflection      INTEGER NOT NULL DEFAULT 0,
	attempts        INTEGER NOT NULL DEFAULT 0,
	trace_id        TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	plan_json       TEXT,
	results_json    TEXT,
	metadata_json   TEXT
);
CREATE INDEX IF NOT EXISTS idx_investigations_status ON investigations(status);
`

// Store is a SQLite-backed investigation repository.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the investigation database at path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent investigations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveInvestigation upserts the full investigation row.
func (s *Store) SaveInvestigation(ctx context.Context, inv models.Investigation) error {
	planJSON, err := marshalNullable(inv.Plan)
	if err != nil {
		return fmt.Errorf("encode plan: %w", err)
	}
	resultsJSON, err := marshalNullable(inv.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	metadataJSON, err := marshalNullable(inv.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	var completedAt any
	if inv.CompletedAt != nil {
		completedAt = inv.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = s.db.ExecContext(ctx, `
INSERT INTO investigations (
	id, query, intent, status, confidence, started_at, completed_at,
	total_records, processing_ns, reflection, attempts, trace_id, error,
	plan_json, results_json, metadata_json
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status = excluded.status,
	confidence = excluded.confidence,
	completed_at = excluded.completed_at,
	total_records = excluded.total_records,
	processing_ns = excluded.processing_ns,
	reflection = excluded.reflection,
	attempts = excluded.attempts,
	error = excluded.error,
	plan_json = excluded.plan_json,
	results_json = excluded.results_json,
	metadata_json = excluded.metadata_json`,
		inv.ID, inv.Query, string(inv.Intent), string(inv.Status), inv.Confidence,
		inv.StartedAt.UTC().Format(time.RFC3339Nano), completedAt,
		inv.TotalRecordsAnalyzed, int64(inv.ProcessingTime), boolToInt(inv.ReflectionApplied),
		inv.Attempts, inv.TraceID, inv.Error, planJSON, resultsJSON, metadataJSON,
	)
	if err != nil {
		return utils.NewAppError("store.save", "persist investigation", err)
	}
	return nil
}

// LoadInvestigation reads one investigation by id, returning ErrNotFound for
// unknown ids.
func (s *Store) LoadInvestigation(ctx context.Context, id string) (models.Investigation, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, query, intent, status, confidence, started_at, completed_at,
	total_records, processing_ns, reflection, attempts, trace_id, error,
	plan_json, results_json, metadata_json
FROM investigations WHERE id = ?`, id)

	inv, err := scanInvestigation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Investigation{}, utils.ErrNotFound
		}
		return models.Investigation{}, utils.NewAppError("store.load", "read investigation", err)
	}
	return inv, nil
}

// ListCompleted returns up to limit terminal investigations, most recent
// first. The pattern summarizer feeds on this.
func (s *Store) ListCompleted(ctx context.Context, limit int) ([]models.Investigation, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, query, intent, status, confidence, started_at, completed_at,
	total_records, processing_ns, reflection, attempts, trace_id, error,
	plan_json, results_json, metadata_json
FROM investigations
WHERE status IN (?, ?)
ORDER BY completed_at DESC
LIMIT ?`, string(models.StatusCompleted), string(models.StatusPartial), limit)
	if err != nil {
		return nil, utils.NewAppError("store.list", "query investigations", err)
	}
	defer rows.Close()

	var out []models.Investigation
	for rows.Next() {
		inv, err := scanInvestigation(rows)
		if err != nil {
			return nil, utils.NewAppError("store.list", "scan investigation", err)
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvestigation(row rowScanner) (models.Investigation, error) {
	var (
		inv          models.Investigation
		intent       string
		status       string
		startedAt    string
		completedAt  sql.NullString
		processingNS int64
		reflection   int
		planJSON     sql.NullString
		resultsJSON  sql.NullString
		metadataJSON sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.Query, &intent, &status, &inv.Confidence,
		&startedAt, &completedAt, &inv.TotalRecordsAnalyzed, &processingNS,
		&reflection, &inv.Attempts, &inv.TraceID, &inv.Error,
		&planJSON, &resultsJSON, &metadataJSON)
	if err != nil {
		return models.Investigation{}, err
	}

	inv.Intent = models.Intent(intent)
	inv.Status = models.InvestigationStatus(status)
	inv.ProcessingTime = time.Duration(processingNS)
	inv.ReflectionApplied = reflection != 0

	if inv.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return models.Investigation{}, fmt.Errorf("parse started_at: %w", err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, completedAt.String)
		if err != nil {
			return models.Investigation{}, fmt.Errorf("parse completed_at: %w", err)
		}
		inv.CompletedAt = &t
	}
	if planJSON.Valid {
		var plan models.InvestigationPlan
		if err := json.Unmarshal([]byte(planJSON.String), &plan); err != nil {
			return models.Investigation{}, fmt.Errorf("decode plan: %w", err)
		}
		inv.Plan = &plan
	}
	if resultsJSON.Valid {
		if err := json.Unmarshal([]byte(resultsJSON.String), &inv.Results); err != nil {
			return models.Investigation{}, fmt.Errorf("decode results: %w", err)
		}
	}
	if metadataJSON.Valid {
		if err := json.Unmarshal([]byte(metadataJSON.String), &inv.Metadata); err != nil {
			return models.Investigation{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return inv, nil
}

func marshalNullable(v any) (any, error) {
	switch value := v.(type) {
	case *models.InvestigationPlan:
		if value == nil {
			return nil, nil
		}
	case []models.AnomalyResult:
		if value == nil {
			return nil, nil
		}
	case map[string]string:
		if value == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
