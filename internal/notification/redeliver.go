package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultMaxAttempts is the number of sends after which a record is left
// in the fallback store for manual inspection.
const DefaultMaxAttempts = 5

// RedeliverConfig configures a Redeliverer.
type RedeliverConfig struct {
	Dispatcher  *Dispatcher
	Store       FallbackStore
	BatchSize   int
	MaxAttempts int
	Logger      zerolog.Logger
}

// Redeliverer re-sends failed messages from a FallbackStore.
type Redeliverer struct {
	dispatcher  *Dispatcher
	store       FallbackStore
	batchSize   int
	maxAttempts int
	logger      zerolog.Logger
}

// RedeliverResult summarizes one redelivery pass.
type RedeliverResult struct {
	Delivered int
	Failed    int
	Skipped   int
}

// NewRedeliverer creates a redeliverer.
func NewRedeliverer(cfg RedeliverConfig) *Redeliverer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Redeliverer{
		dispatcher:  cfg.Dispatcher,
		store:       cfg.Store,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		logger:      cfg.Logger,
	}
}

// Run makes one pass over the store. Delivered records are deleted;
// failed ones get their attempt counter bumped.
func (r *Redeliverer) Run(ctx context.Context) (RedeliverResult, error) {
	var result RedeliverResult

	// Exhausted records stay in the store for inspection but are filtered
	// out here, so they never fill the batch.
	pending, err := r.store.List(ctx, r.batchSize, r.maxAttempts)
	if err != nil {
		return result, fmt.Errorf("list fallback records: %w", err)
	}

	for _, f := range pending {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		ch, ok := r.dispatcher.channel(f.Channel)
		if !ok {
			r.logger.Warn().Str("fallback_id", f.ID).Str("channel", string(f.Channel)).Msg("no channel for record")
			result.Skipped++
			continue
		}

		if err := ch.Send(ctx, f.Message()); err != nil {
			result.Failed++
			if uerr := r.store.RecordAttempt(ctx, f.ID, err.Error()); uerr != nil {
				r.logger.Error().Err(uerr).Str("fallback_id", f.ID).Msg("failed to update fallback record")
			}
			continue
		}

		result.Delivered++
		r.dispatcher.recordSent(ctx, f.SubjectID, f.Tier, f.Channel)
		if err := r.store.Delete(ctx, f.ID); err != nil && !errors.Is(err, ErrFallbackNotFound) {
			r.logger.Error().Err(err).Str("fallback_id", f.ID).Msg("failed to delete redelivered record")
		}
	}

	r.logger.Info().
		Int("delivered", result.Delivered).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("fallback redelivery pass complete")
	return result, nil
}
