package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-alertfeed/pkg/feedclient"
	"github.com/illmade-knight/go-alertfeed/pkg/forwarder"
	"github.com/illmade-knight/go-alertfeed/pkg/notifier"
	"github.com/illmade-knight/go-alertfeed/pkg/sink"
	"github.com/illmade-knight/go-alertfeed/pkg/watermark"
)

// defaultSchedule matches the relay's historical trigger: one run every five
// minutes, plus one immediately at process start.
const defaultSchedule = "@every 5m"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "alertrelay").Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		logger.Fatal().Err(err).Msg("Service failed to start.")
	}
}

func run(ctx context.Context, logger zerolog.Logger) error {
	feedCfg, err := feedclient.LoadFeedClientConfigFromEnv()
	if err != nil {
		return fmt.Errorf("feed client config: %w", err)
	}
	sinkCfg, err := sink.LoadPubsubSinkConfigFromEnv()
	if err != nil {
		return fmt.Errorf("sink config: %w", err)
	}
	webhookCfg := notifier.LoadWebhookConfigFromEnv()
	fwdCfg := forwarder.LoadForwarderConfigFromEnv()

	feed, err := feedclient.NewClient(feedCfg, logger)
	if err != nil {
		return fmt.Errorf("feed client: %w", err)
	}

	store, closeStore, err := buildWatermarkStore(ctx, logger)
	if err != nil {
		return fmt.Errorf("watermark store: %w", err)
	}
	defer closeStore()

	pubsubClient, err := pubsub.NewClient(ctx, sinkCfg.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub client: %w", err)
	}
	defer pubsubClient.Close()

	streamSink, err := sink.NewPubsubSink(pubsubClient, sinkCfg, logger)
	if err != nil {
		return fmt.Errorf("pubsub sink: %w", err)
	}
	defer streamSink.Stop()

	nfy := notifier.NewWebhookNotifier(webhookCfg, logger)

	fwd, err := forwarder.New(store, feed, streamSink, nfy, *fwdCfg, logger)
	if err != nil {
		return fmt.Errorf("forwarder: %w", err)
	}

	schedule := os.Getenv("RUN_SCHEDULE")
	if schedule == "" {
		schedule = defaultSchedule
	}

	// SkipIfStillRunning keeps runs serialized per pipeline identity; the
	// forwarder itself assumes no overlapping runs.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = c.AddFunc(schedule, func() {
		report := fwd.Run(ctx)
		logRunReport(logger, report)
	})
	if err != nil {
		return fmt.Errorf("invalid RUN_SCHEDULE %q: %w", schedule, err)
	}

	logger.Info().Str("schedule", schedule).Msg("Starting alert relay.")

	// First run fires immediately, then the cron takes over.
	report := fwd.Run(ctx)
	logRunReport(logger, report)

	c.Start()
	<-ctx.Done()

	logger.Info().Msg("Shutdown signal received, stopping trigger...")
	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("Timed out waiting for in-flight run to finish.")
	}
	return nil
}

// buildWatermarkStore selects the store backend from WATERMARK_BACKEND:
// "gcs" (default), "firestore" or "redis".
func buildWatermarkStore(ctx context.Context, logger zerolog.Logger) (watermark.Store, func(), error) {
	backend := os.Getenv("WATERMARK_BACKEND")
	if backend == "" {
		backend = "gcs"
	}

	switch backend {
	case "gcs":
		cfg, err := watermark.LoadGCSStoreConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client: %w", err)
		}
		store, err := watermark.NewGCSStore(watermark.NewGCSClientAdapter(gcsClient), *cfg, logger)
		if err != nil {
			gcsClient.Close()
			return nil, nil, err
		}
		return store, func() { gcsClient.Close() }, nil

	case "firestore":
		cfg, err := watermark.LoadFirestoreStoreConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		fsClient, err := firestore.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		store, err := watermark.NewFirestoreStore(fsClient, cfg, logger)
		if err != nil {
			fsClient.Close()
			return nil, nil, err
		}
		return store, func() { fsClient.Close() }, nil

	case "redis":
		cfg, err := watermark.LoadRedisStoreConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		store, err := watermark.NewRedisStore(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		return nil, nil, errors.New("WATERMARK_BACKEND must be one of gcs, firestore, redis")
	}
}

func logRunReport(logger zerolog.Logger, report forwarder.RunReport) {
	event := logger.Info()
	if report.Aborted {
		event = logger.Warn()
	}
	event.
		Str("run_id", report.RunID).
		Bool("aborted", report.Aborted).
		Int("forwarded", report.Forwarded).
		Int("skipped", report.Skipped).
		Int64("watermark", report.NewWatermark).
		Dur("duration", report.Finished.Sub(report.Started)).
		Msg("Run complete.")
}
