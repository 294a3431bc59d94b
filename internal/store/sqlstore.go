package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// signalTracer is the OTel tracer for SQL-level spans. It uses the global
// provider, which is a no-op until the telemetry package is initialized.
var signalTracer = otel.Tracer("github.com/flare-signals/signal-engine/store")

// SQLStore implements Store over any database/sql driver that speaks the
// signals table contract (spec.md §6). Transient errors are retried with
// bounded exponential backoff; structural errors are not.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore wraps an already-opened *sql.DB. Callers own its lifecycle.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func retryBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	return b
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded)
}

func (s *SQLStore) withRetry(ctx context.Context, op func() error) error {
	return backoff.Retry(func() error {
		err := op()
		if err != nil && isTransient(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(retryBackoff(), ctx))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ActiveSignalIDs implements Store: exactly one SELECT per scheduler tick.
func (s *SQLStore) ActiveSignalIDs(ctx context.Context) ([]string, error) {
	ctx, span := signalTracer.Start(ctx, "signals.select_active",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.operation", "select")),
	)

	var ids []string
	err := s.withRetry(ctx, func() error {
		ids = nil
		rows, err := s.db.QueryContext(ctx, `SELECT id FROM signals WHERE is_active = TRUE`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})

	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("store: selecting active signal ids: %w", err)
	}
	return ids, nil
}

type signalRow struct {
	ID              string
	IsActive        bool
	Definition      string
	Chains          string
	WindowDuration  string
	WebhookURL      string
	CooldownMinutes int64
	LastTriggeredAt sql.NullTime
	LastEvaluatedAt sql.NullTime
}

// LoadSignal implements Store: exactly one SELECT per job.
func (s *SQLStore) LoadSignal(ctx context.Context, id string) (*signaldsl.SignalDefinition, error) {
	ctx, span := signalTracer.Start(ctx, "signals.select_one",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.operation", "select"), attribute.String("signal.id", id)),
	)

	var row signalRow
	err := s.withRetry(ctx, func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT id, is_active, definition, chains, window_duration, webhook_url,
			       cooldown_minutes, last_triggered_at, last_evaluated_at
			FROM signals WHERE id = ?`, id,
		).Scan(&row.ID, &row.IsActive, &row.Definition, &row.Chains, &row.WindowDuration,
			&row.WebhookURL, &row.CooldownMinutes, &row.LastTriggeredAt, &row.LastEvaluatedAt)
	})

	if errors.Is(err, sql.ErrNoRows) {
		endSpan(span, nil)
		return nil, nil
	}
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("store: loading signal %s: %w", id, err)
	}

	def, err := rowToDefinition(&row)
	if err != nil {
		return nil, fmt.Errorf("store: decoding signal %s: %w", id, err)
	}
	return def, nil
}

func rowToDefinition(row *signalRow) (*signaldsl.SignalDefinition, error) {
	var def signaldsl.SignalDefinition
	if err := json.Unmarshal([]byte(row.Definition), &def); err != nil {
		return nil, fmt.Errorf("unmarshaling definition: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Chains), &def.Chains); err != nil {
		return nil, fmt.Errorf("unmarshaling chains: %w", err)
	}

	def.ID = row.ID
	def.IsActive = row.IsActive
	def.WindowDuration = row.WindowDuration
	def.WebhookURL = row.WebhookURL
	def.CooldownMinutes = row.CooldownMinutes
	if row.LastTriggeredAt.Valid {
		t := row.LastTriggeredAt.Time
		def.LastTriggeredAt = &t
	}
	if row.LastEvaluatedAt.Valid {
		t := row.LastEvaluatedAt.Time
		def.LastEvaluatedAt = &t
	}
	return &def, nil
}

// MarkEvaluated implements Store's not-triggered/cooldown-skip update path.
func (s *SQLStore) MarkEvaluated(ctx context.Context, id string, evaluatedAt time.Time) error {
	ctx, span := signalTracer.Start(ctx, "signals.update_evaluated",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.operation", "update"), attribute.String("signal.id", id)),
	)
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `UPDATE signals SET last_evaluated_at = ? WHERE id = ?`, evaluatedAt, id)
		return err
	})
	endSpan(span, err)
	if err != nil {
		return fmt.Errorf("store: marking signal %s evaluated: %w", id, err)
	}
	return nil
}

// MarkTriggered implements Store's trigger-commit path: both timestamp
// columns update together, before the notifier is invoked.
func (s *SQLStore) MarkTriggered(ctx context.Context, id string, triggeredAt time.Time) error {
	ctx, span := signalTracer.Start(ctx, "signals.update_triggered",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("db.operation", "update"), attribute.String("signal.id", id)),
	)
	err := s.withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE signals SET last_triggered_at = ?, last_evaluated_at = ? WHERE id = ?`,
			triggeredAt, triggeredAt, id)
		return err
	})
	endSpan(span, err)
	if err != nil {
		return fmt.Errorf("store: marking signal %s triggered: %w", id, err)
	}
	return nil
}
