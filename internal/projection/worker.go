package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"vaultcore/internal/core"
	"vaultcore/internal/event"
	"vaultcore/internal/observability"
)

// Worker maintains queryable read models from committed transitions: the
// NAV/fee time series and per-holder flow history. The projection channel is
// non-blocking with drop; if projections fall behind, Rebuild restores them
// from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan core.Output
	lastSeq   int64
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan core.Output) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		log:       observability.NewLogger("projection"),
	}
}

// Run starts the projection worker loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case out, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			if err := w.processOutput(ctx, out); err != nil {
				// Projections are eventually consistent and rebuildable,
				// so a failed update is logged and skipped.
				w.log.Warn().Err(err).Int64("sequence", out.Envelope.Sequence).Msg("projection update failed")
			}

			w.lastSeq = out.Envelope.Sequence
		}
	}
}

func (w *Worker) processOutput(ctx context.Context, out core.Output) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	switch out.Envelope.EventType {
	case event.EventTypeValuationUpdated:
		p, ok := out.Payload.(event.ValuationUpdated)
		if !ok {
			return fmt.Errorf("unexpected payload type for %s", out.Envelope.EventType)
		}
		if err := w.insertValuation(ctx, tx, out.Envelope, p); err != nil {
			return fmt.Errorf("valuation history: %w", err)
		}

	case event.EventTypeRequestProcessed:
		p, ok := out.Payload.(event.RequestProcessed)
		if !ok {
			return fmt.Errorf("unexpected payload type for %s", out.Envelope.EventType)
		}
		if err := w.insertFlow(ctx, tx, out.Envelope, p); err != nil {
			return fmt.Errorf("holder flows: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, out.Envelope.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (w *Worker) insertValuation(ctx context.Context, tx *sql.Tx, env *event.Envelope, p event.ValuationUpdated) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.valuation_history
			(sequence, gross_aum, adjusted_aum, nav_per_share, management_fee, performance_fee, total_supply, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sequence) DO NOTHING
	`, env.Sequence,
		p.GrossAum.String(), p.AdjustedAum.String(), p.NavPerShare.String(),
		p.ManagementFee.String(), p.PerformanceFee.String(), p.TotalSupply.String(),
		env.Timestamp)
	return err
}

func (w *Worker) insertFlow(ctx context.Context, tx *sql.Tx, env *event.Envelope, p event.RequestProcessed) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.holder_flows
			(sequence, queue, item_index, holder, amount, output, fee, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (sequence) DO NOTHING
	`, env.Sequence,
		p.Queue, int64(p.Index), p.Holder.String(),
		p.Amount.String(), p.Output.String(), p.Fee.String(),
		env.Timestamp)
	return err
}

// Rebuild truncates the projection tables and repopulates them from the
// event log. Payloads are stored as JSONB, so the rebuild is pure SQL.
func Rebuild(ctx context.Context, db *sql.DB) error {
	truncate := []string{
		`TRUNCATE projections.valuation_history`,
		`TRUNCATE projections.holder_flows`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}
	for _, stmt := range truncate {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.valuation_history
			(sequence, gross_aum, adjusted_aum, nav_per_share, management_fee, performance_fee, total_supply, timestamp)
		SELECT
			sequence,
			(payload->>'gross_aum')::NUMERIC,
			(payload->>'adjusted_aum')::NUMERIC,
			(payload->>'nav_per_share')::NUMERIC,
			(payload->>'management_fee')::NUMERIC,
			(payload->>'performance_fee')::NUMERIC,
			(payload->>'total_supply')::NUMERIC,
			timestamp
		FROM event_log.vault_events
		WHERE event_type = 'ValuationUpdated'
		ON CONFLICT (sequence) DO NOTHING
	`); err != nil {
		return fmt.Errorf("rebuild valuation history: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.holder_flows
			(sequence, queue, item_index, holder, amount, output, fee, timestamp)
		SELECT
			sequence,
			payload->>'queue',
			(payload->>'index')::BIGINT,
			payload->>'holder',
			(payload->>'amount')::NUMERIC,
			(payload->>'output')::NUMERIC,
			(payload->>'fee')::NUMERIC,
			timestamp
		FROM event_log.vault_events
		WHERE event_type = 'RequestProcessed'
		ON CONFLICT (sequence) DO NOTHING
	`); err != nil {
		return fmt.Errorf("rebuild holder flows: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		SELECT 'main', COALESCE(MAX(sequence), -1), NOW() FROM event_log.vault_events
		ON CONFLICT (worker_id) DO UPDATE
			SET last_sequence = EXCLUDED.last_sequence, updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("rebuild watermark: %w", err)
	}

	return nil
}
