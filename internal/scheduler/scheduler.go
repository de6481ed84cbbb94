// SPDX-License-Identifier: BSL-1.1

// Package scheduler runs the periodic background loops described by
// spec §4.7: reservation expiry, waitlist offer expiry, revoked-token
// retention, and resource auto-reset. Each loop is independent, runs
// on its own ticker, and a failed tick is simply retried on the next
// one rather than backed off — a stuck loop still makes forward
// progress instead of falling further behind.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotforge/pkg/eventbus"
	"github.com/slotforge/slotforge/internal/config"
)

// ReservationExpirer runs the §4.2 expire sweep.
type ReservationExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

// WaitlistOfferExpirer runs the §4.4 offer expiry sweep.
type WaitlistOfferExpirer interface {
	ExpireOffers(ctx context.Context, now time.Time) (int, error)
}

// TokenPruner deletes refresh tokens past their retention window.
type TokenPruner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ResourceAutoResetter transitions due resources back to available.
type ResourceAutoResetter interface {
	ApplyAutoReset(ctx context.Context, now time.Time) (int, error)
}

// EventPublisher is satisfied by the event bus; used to raise an alert
// event when a loop fails repeatedly, without halting the scheduler.
type EventPublisher interface {
	Publish(topic string, data interface{})
}

// Scheduler owns the four named background loops. Nothing here is
// started until Run is called, and every loop exits cleanly when its
// context is cancelled.
type Scheduler struct {
	reservations ReservationExpirer
	waitlist     WaitlistOfferExpirer
	tokens       TokenPruner
	resources    ResourceAutoResetter
	events       EventPublisher
	cfg          config.BackgroundConfig
	logger       *slog.Logger
}

// New creates a scheduler. Any of the four dependencies may be nil to
// skip that loop entirely (useful in tests exercising a single loop).
func New(
	reservations ReservationExpirer,
	waitlist WaitlistOfferExpirer,
	tokens TokenPruner,
	resources ResourceAutoResetter,
	events EventPublisher,
	cfg config.BackgroundConfig,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		reservations: reservations,
		waitlist:     waitlist,
		tokens:       tokens,
		resources:    resources,
		events:       events,
		cfg:          cfg,
		logger:       logger,
	}
}

// Run launches every configured loop and blocks until ctx is
// cancelled. Intended to be run in its own goroutine from main.
func (s *Scheduler) Run(ctx context.Context) {
	if s.reservations != nil {
		go s.loop(ctx, "reservation_expire", s.cfg.ReservationExpirySweep, func(ctx context.Context, now time.Time) (int, error) {
			return s.reservations.ExpireDue(ctx, now)
		})
	}
	if s.waitlist != nil {
		go s.loop(ctx, "waitlist_offer_expire", s.cfg.WaitlistOfferExpirySweep, func(ctx context.Context, now time.Time) (int, error) {
			return s.waitlist.ExpireOffers(ctx, now)
		})
	}
	if s.tokens != nil {
		go s.loop(ctx, "revoked_token_sweep", s.cfg.RevokedTokenSweep, func(ctx context.Context, now time.Time) (int, error) {
			n, err := s.tokens.DeleteOlderThan(ctx, now.Add(-s.cfg.RevokedTokenRetention))
			return int(n), err
		})
	}
	if s.resources != nil {
		go s.loop(ctx, "resource_auto_reset", s.cfg.ResourceAutoResetSweep, func(ctx context.Context, now time.Time) (int, error) {
			return s.resources.ApplyAutoReset(ctx, now)
		})
	}
	<-ctx.Done()
}

// loop ticks forever at interval, running task once per tick and
// logging start/end and the mutation count. Consecutive failures are
// counted and the third in a row raises one background.alert event;
// the counter resets on the next success.
func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, task func(context.Context, time.Time) (int, error)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			n, err := task(ctx, start)
			if err != nil {
				consecutiveFailures++
				s.logger.Error("background loop tick failed", "loop", name, "error", err, "consecutive_failures", consecutiveFailures)
				if consecutiveFailures == 3 && s.events != nil {
					s.events.Publish(eventbus.TopicBackgroundAlert, map[string]interface{}{
						"loop":                 name,
						"consecutive_failures": consecutiveFailures,
						"error":                err.Error(),
					})
				}
				continue
			}
			consecutiveFailures = 0
			s.logger.Info("background loop tick completed", "loop", name, "mutated", n, "duration_ms", time.Since(start).Milliseconds())
		}
	}
}
