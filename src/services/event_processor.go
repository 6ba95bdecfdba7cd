package services

import (
	"context"
	"fmt"
	"time"

	"github.com/khabaroff/webhook-inbox/src/logging"
	"github.com/khabaroff/webhook-inbox/src/models"
	"github.com/khabaroff/webhook-inbox/src/repositories"
	"github.com/rs/zerolog"
)

// Processor defaults
const (
	DefaultBatchSize = 100
	DefaultLease     = 60 * time.Second
	DefaultTimeout   = 30 * time.Second
)

// ProcessorConfig tunes a processing run
type ProcessorConfig struct {
	// BatchSize caps how many pending events one run claims
	BatchSize int
	// Lease is how long claimed events stay hidden from other runs
	Lease time.Duration
	// Timeout bounds the worker for a single event
	Timeout time.Duration
}

func (c ProcessorConfig) withDefaults() ProcessorConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Lease <= 0 {
		c.Lease = DefaultLease
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// ProcessStats summarises one ProcessPending run
type ProcessStats struct {
	Claimed   int
	Processed int
	Failed    int
	Skipped   int
}

// EventProcessor moves pending events to processed or failed
type EventProcessor struct {
	repo    repositories.EventRepository
	worker  Worker
	tracker EventTracker
	cfg     ProcessorConfig
	logger  zerolog.Logger
}

// NewEventProcessor creates a processor; a nil worker means NoopWorker
func NewEventProcessor(repo repositories.EventRepository, worker Worker, cfg ProcessorConfig) *EventProcessor {
	if worker == nil {
		worker = NewNoopWorker()
	}
	return &EventProcessor{
		repo:   repo,
		worker: worker,
		cfg:    cfg.withDefaults(),
		logger: logging.NewLogger("processor"),
	}
}

// SetTracker sets an observer for processing outcomes
func (p *EventProcessor) SetTracker(tracker EventTracker) {
	p.tracker = tracker
}

// ProcessPending claims a batch of pending events and handles each one once.
// A failing event never stops the rest of the batch; the returned error is
// only set when the batch could not be claimed.
func (p *EventProcessor) ProcessPending(ctx context.Context) (ProcessStats, error) {
	var stats ProcessStats

	events, err := p.repo.ClaimPending(ctx, p.cfg.BatchSize, p.cfg.Lease)
	if err != nil {
		return stats, fmt.Errorf("failed to claim pending events: %w", err)
	}
	stats.Claimed = len(events)

	for i := range events {
		if ctx.Err() != nil {
			// leases on the rest expire and a later run picks them up
			stats.Skipped += len(events) - i
			break
		}

		switch p.processEvent(ctx, events[i]) {
		case outcomeProcessed:
			stats.Processed++
		case outcomeFailed:
			stats.Failed++
		default:
			stats.Skipped++
		}
	}

	if stats.Claimed > 0 {
		p.logger.Info().
			Int("claimed", stats.Claimed).
			Int("processed", stats.Processed).
			Int("failed", stats.Failed).
			Int("skipped", stats.Skipped).
			Msg("processing run finished")
	}

	return stats, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeProcessed
	outcomeFailed
)

func (p *EventProcessor) processEvent(ctx context.Context, event models.WebhookEvent) outcome {
	key := event.Key()
	logger := logging.WithEvent(p.logger, event.Provider, event.ID)

	if err := p.repo.IncrementAttempts(ctx, key); err != nil {
		logger.Error().Err(err).Msg("failed to record attempt, leaving event pending")
		return outcomeSkipped
	}

	err := p.runWorker(ctx, event)
	if err == nil {
		err = p.repo.MarkProcessed(ctx, key)
		if err == nil {
			logger.Info().Str("event_type", event.EventType).Msg("event processed")
			p.track(event, nil)
			return outcomeProcessed
		}
	}

	if ctx.Err() != nil {
		// shutdown: the lease expires and a later run retries the event
		logger.Warn().Err(err).Msg("run cancelled, leaving event pending")
		return outcomeSkipped
	}

	logger.Error().Err(err).Msg("event failed")
	if markErr := p.repo.MarkFailed(ctx, key, err.Error()); markErr != nil {
		logger.Error().Err(markErr).Msg("failed to record event failure")
	}
	p.track(event, err)
	return outcomeFailed
}

func (p *EventProcessor) track(event models.WebhookEvent, err error) {
	if p.tracker != nil {
		p.tracker.TrackProcessed(event, err)
	}
}

func (p *EventProcessor) runWorker(ctx context.Context, event models.WebhookEvent) (err error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()

	return p.worker.Process(ctx, event)
}
