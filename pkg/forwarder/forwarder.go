package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-alertfeed/pkg/dedup"
	"github.com/illmade-knight/go-alertfeed/pkg/notifier"
	"github.com/illmade-knight/go-alertfeed/pkg/sink"
	"github.com/illmade-knight/go-alertfeed/pkg/types"
	"github.com/illmade-knight/go-alertfeed/pkg/watermark"
	"github.com/rs/zerolog"
)

// ====================================================================================
// The Forwarder drives one pipeline run end to end: load watermark, fetch
// candidates, compute the new-record batch, append it to the stream sink,
// notify the ops channel, persist the advanced watermark. Failure handling is
// per stage: a fetch failure aborts, a watermark read fails open to zero, a
// sink or persist failure degrades and the run completes anyway. Run never
// panics and never returns an error; the RunReport and notifications carry
// the outcome.
//
// Runs are not re-entrant per pipeline identity. The trigger serializes them.
// ====================================================================================

// FeedFetcher is the upstream feed contract the Forwarder depends on.
type FeedFetcher interface {
	Fetch(ctx context.Context, window time.Time) ([]types.AlertRecord, error)
}

// Config holds the per-pipeline settings for a Forwarder.
type Config struct {
	// PipelineID names this pipeline in notifications and logs.
	PipelineID string

	// ExactlyOnce, when set, holds the watermark back if the sink append
	// failed, so the next run re-detects and re-forwards the same batch.
	// Off by default: the watermark records "seen", not "delivered", and a
	// poisoned sink must not wedge the pipeline on one batch forever.
	ExactlyOnce bool

	// ScanAllCandidates disables the engine's early break on the first
	// already-seen record, for feeds without a newest-first guarantee.
	ScanAllCandidates bool
}

// LoadForwarderConfigFromEnv loads forwarder configuration from environment variables.
func LoadForwarderConfigFromEnv() *Config {
	cfg := &Config{
		PipelineID:        os.Getenv("PIPELINE_ID"),
		ExactlyOnce:       os.Getenv("FORWARD_EXACTLY_ONCE") == "true",
		ScanAllCandidates: os.Getenv("FEED_SCAN_ALL_CANDIDATES") == "true",
	}
	if cfg.PipelineID == "" {
		cfg.PipelineID = "disaster-alert-relay"
	}
	return cfg
}

// Forwarder orchestrates pipeline runs over injected collaborators.
type Forwarder struct {
	store    watermark.Store
	feed     FeedFetcher
	sink     sink.StreamSink
	notifier notifier.Notifier
	config   Config

	// now is injectable so tests control the processing window.
	now func() time.Time

	logger zerolog.Logger
}

// New creates a Forwarder. All four collaborators are required.
func New(
	store watermark.Store,
	feed FeedFetcher,
	streamSink sink.StreamSink,
	nfy notifier.Notifier,
	cfg Config,
	logger zerolog.Logger,
) (*Forwarder, error) {
	if store == nil {
		return nil, errors.New("watermark store cannot be nil")
	}
	if feed == nil {
		return nil, errors.New("feed fetcher cannot be nil")
	}
	if streamSink == nil {
		return nil, errors.New("stream sink cannot be nil")
	}
	if nfy == nil {
		return nil, errors.New("notifier cannot be nil")
	}
	if cfg.PipelineID == "" {
		cfg.PipelineID = "disaster-alert-relay"
	}
	return &Forwarder{
		store:    store,
		feed:     feed,
		sink:     streamSink,
		notifier: nfy,
		config:   cfg,
		now:      time.Now,
		logger:   logger.With().Str("component", "Forwarder").Str("pipeline_id", cfg.PipelineID).Logger(),
	}, nil
}

// Run executes one complete pipeline run and always returns a report.
func (f *Forwarder) Run(ctx context.Context) RunReport {
	report := RunReport{
		RunID:   uuid.New().String(),
		Started: f.now(),
	}
	logger := f.logger.With().Str("run_id", report.RunID).Logger()
	logger.Info().Msg("Pipeline run started.")

	record := func(stage Stage, err error) {
		report.Stages = append(report.Stages, StageResult{Stage: stage, Err: err})
	}
	finish := func() RunReport {
		report.Finished = f.now()
		logger.Info().
			Bool("aborted", report.Aborted).
			Int("forwarded", report.Forwarded).
			Int64("watermark", report.NewWatermark).
			Msg("Pipeline run finished.")
		return report
	}

	// Stage 1: load the watermark. A read failure fails open to zero so the
	// relay re-delivers rather than silently skips.
	current, found, err := f.store.Load(ctx)
	record(StageLoadWatermark, err)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load watermark, starting from zero.")
		f.notifier.Notify(ctx, fmt.Sprintf("ERROR: watermark load failed, re-scanning from zero: %v (%s)", err, f.config.PipelineID))
		current = 0
	} else if !found {
		logger.Info().Msg("No watermark stored yet, first run starts from zero.")
	}
	report.PreviousWatermark = current
	report.NewWatermark = current

	// Stage 2: fetch candidates. Any failure here is fatal to the run:
	// forwarding from a partial or corrupt fetch risks losing records.
	candidates, err := f.feed.Fetch(ctx, f.now())
	record(StageFetch, err)
	if err != nil {
		logger.Error().Err(err).Msg("Feed fetch failed, terminating run.")
		f.notifier.Notify(ctx, fmt.Sprintf("ERROR: alert feed fetch failed: %v (%s)", err, f.config.PipelineID))
		report.Aborted = true
		return finish()
	}

	// Stage 3: compute the new-record batch.
	plan := dedup.Compute(candidates, current, dedup.Options{ScanAll: f.config.ScanAllCandidates}, logger)
	record(StageCompute, nil)
	report.Skipped = plan.Skipped

	if len(plan.Batch) == 0 {
		logger.Info().Int("candidate_count", len(candidates)).Msg("No new alerts this run.")
		f.notifier.Notify(ctx, formatNoNewAlertsText(f.config.PipelineID))
		record(StageNotify, nil)
		return finish()
	}
	logger.Info().
		Int("new_count", len(plan.Batch)).
		Int64("proposed_watermark", plan.ProposedWatermark).
		Msg("New alerts detected.")

	// Stage 4: forward the batch downstream. Records go out exactly as the
	// feed delivered them, newest first. A failed append is reported but
	// does not stop notification or (outside exactly-once mode) the
	// watermark update.
	batch := make([]json.RawMessage, 0, len(plan.Batch))
	for _, rec := range plan.Batch {
		batch = append(batch, rec.Raw)
	}
	appendErr := f.sink.Append(ctx, batch)
	record(StageForward, appendErr)
	if appendErr != nil {
		logger.Error().Err(appendErr).Msg("Stream sink append failed.")
		f.notifier.Notify(ctx, fmt.Sprintf("ERROR: stream sink append failed: %v (%s)", appendErr, f.config.PipelineID))
	} else {
		report.Forwarded = len(plan.Batch)
	}

	// Stage 5: one notification per new alert, newest first.
	for _, rec := range plan.Batch {
		f.notifier.Notify(ctx, formatAlertText(rec))
	}
	record(StageNotify, nil)

	// Stage 6: persist the advanced watermark.
	if f.config.ExactlyOnce && appendErr != nil {
		logger.Warn().Int64("held_watermark", current).Msg("Exactly-once mode: holding watermark so the batch is re-delivered next run.")
		record(StagePersistWatermark, ErrWatermarkHeld)
		return finish()
	}
	if err := f.store.Save(ctx, plan.ProposedWatermark); err != nil {
		logger.Error().Err(err).Msg("Failed to persist watermark; the batch will be re-delivered next run.")
		f.notifier.Notify(ctx, fmt.Sprintf("ERROR: watermark persist failed: %v (%s)", err, f.config.PipelineID))
		record(StagePersistWatermark, err)
		return finish()
	}
	record(StagePersistWatermark, nil)
	report.NewWatermark = plan.ProposedWatermark

	return finish()
}
