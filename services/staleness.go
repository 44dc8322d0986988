package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/models"
)

// SubscriberCounter reports how many subscribers are bound to an intent;
// implemented by fanout.Hub.
type SubscriberCounter interface {
	SubscriberCount(intentID string) int
}

// StalePoller is the liveness backstop for long-lived subscriptions: when an
// intent has seen no transition for a while, connected subscribers still get
// a fresh snapshot of the current state so the channel never goes silent.
// It never applies transitions, it only re-emits.
type StalePoller struct {
	database  db.Database
	pusher    Pusher
	counter   SubscriberCounter
	metrics   *MetricsService
	logger    zerolog.Logger
	threshold time.Duration
	batchSize int

	cron *cron.Cron
}

// NewStalePoller creates the poller. spec is a cron expression such as
// "@every 60s".
func NewStalePoller(
	database db.Database,
	pusher Pusher,
	counter SubscriberCounter,
	metrics *MetricsService,
	spec string,
	threshold time.Duration,
	batchSize int,
	logger zerolog.Logger,
) (*StalePoller, error) {
	p := &StalePoller{
		database:  database,
		pusher:    pusher,
		counter:   counter,
		metrics:   metrics,
		logger:    logger.With().Str(logging.FieldModule, "stale_poller").Logger(),
		threshold: threshold,
		batchSize: batchSize,
		cron:      cron.New(),
	}

	if _, err := p.cron.AddFunc(spec, func() {
		p.sweepSafely(context.Background())
	}); err != nil {
		return nil, errors.Wrapf(err, "invalid stale sweep spec %q", spec)
	}

	return p, nil
}

// Start begins the scheduled sweeps.
func (p *StalePoller) Start() {
	p.logger.Info().
		Dur("threshold", p.threshold).
		Int("batch_size", p.batchSize).
		Msg("starting stale intent poller")
	p.cron.Start()
}

// Stop halts scheduling and waits for a running sweep to finish.
func (p *StalePoller) Stop() {
	ctx := p.cron.Stop()
	<-ctx.Done()
	p.logger.Info().Msg("stale intent poller stopped")
}

func (p *StalePoller) sweepSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("recovered from panic in stale sweep")
		}
	}()

	if err := p.SweepOnce(ctx); err != nil {
		p.logger.Error().Err(err).Msg("stale sweep failed")
	}
}

// SweepOnce selects non-terminal intents that have not moved within the
// staleness threshold and re-pushes their current snapshot to any bound
// subscribers. Intents without subscribers are skipped.
func (p *StalePoller) SweepOnce(ctx context.Context) error {
	dbCtx, cancel := context.WithTimeout(ctx, DefaultDBTimeout)
	stale, err := p.database.ListStaleIntents(dbCtx, time.Now().Add(-p.threshold), p.batchSize)
	cancel()
	if err != nil {
		return errors.Wrap(err, "failed to list stale intents")
	}

	pushed := 0
	for _, intent := range stale {
		if p.counter.SubscriberCount(intent.ID) == 0 {
			continue
		}

		p.pusher.Push(intent.ID, models.NewStatusSnapshot(intent,
			models.WithMessage(intent.Status.HumanMessage()+" (checking status)"),
		))
		pushed++
	}

	if pushed > 0 {
		p.logger.Info().
			Int("stale", len(stale)).
			Int("pushed", pushed).
			Msg("re-emitted status for stale intents")
	}

	if p.metrics != nil {
		p.metrics.RecordStaleSweep(len(stale), pushed)
	}

	return nil
}
