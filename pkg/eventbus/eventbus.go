// SPDX-License-Identifier: BSL-1.1

// Package eventbus implements the in-process pub/sub described by
// spec §4.5: typed topics, best-effort bounded delivery per subscriber,
// and an optional NATS mirror for multi-replica fan-out.
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// Event is the wire shape delivered to every subscriber and mirrored
// onto NATS: {type, timestamp, data}.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Subscription is a bounded, best-effort delivery channel. On buffer
// overflow, the oldest undelivered event is dropped and Overflowed
// increments; publishers never block on a slow subscriber.
type Subscription struct {
	ID         string
	topics     map[string]struct{}
	ch         chan Event
	overflowed atomic.Int64
	mu         sync.Mutex
	closed     bool
}

// Events returns the channel to range over for delivered events.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Overflowed reports how many events this subscriber has dropped.
func (s *Subscription) Overflowed() int64 { return s.overflowed.Load() }

func (s *Subscription) matches(topic string) bool {
	if _, ok := s.topics["*"]; ok {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

func (s *Subscription) deliver(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- e:
	default:
		// Drop the oldest and retry once, per the bounded-buffer
		// overflow policy in spec §4.5.
		select {
		case <-s.ch:
			s.overflowed.Add(1)
		default:
		}
		select {
		case s.ch <- e:
		default:
			s.overflowed.Add(1)
		}
	}
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Bus is the in-process publisher/subscriber registry. Publish never
// blocks on a slow subscriber; subscriber registration uses a short
// mutex per spec §5.
type Bus struct {
	mu          sync.RWMutex
	subs        map[string]*Subscription
	bufferSize  int
	nats        *nats.Conn
	natsSubject string
	logger      *slog.Logger
	seq         atomic.Uint64
}

// Config configures the bus.
type Config struct {
	BufferSize  int
	NATSURL     string
	NATSSubject string
}

// New builds a bus. When cfg.NATSURL is set, publishes are mirrored
// onto NATS (best-effort; a connection failure degrades to
// purely-in-process operation, the same optional-dependency shape used
// for Redis elsewhere in this module).
func New(cfg Config, logger *slog.Logger) *Bus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.NATSSubject == "" {
		cfg.NATSSubject = "reservation.events"
	}

	b := &Bus{
		subs:        make(map[string]*Subscription),
		bufferSize:  cfg.BufferSize,
		natsSubject: cfg.NATSSubject,
		logger:      logger,
	}

	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.MaxReconnects(5))
		if err != nil {
			logger.Warn("failed to connect to NATS, running bus in-process only", "error", err)
		} else {
			b.nats = nc
			logger.Info("event bus mirroring to NATS", "subject", cfg.NATSSubject)
		}
	}

	return b
}

// Subscribe registers a new subscriber for the given topics. "*"
// subscribes to every topic.
func (b *Bus) Subscribe(id string, topics ...string) *Subscription {
	set := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		set[t] = struct{}{}
	}

	sub := &Subscription{
		ID:     id,
		topics: set,
		ch:     make(chan Event, b.bufferSize),
	}

	b.mu.Lock()
	if existing, ok := b.subs[id]; ok {
		existing.close()
	}
	b.subs[id] = sub
	b.mu.Unlock()

	return sub
}

// Unsubscribe removes and closes a subscriber's channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish fans an event out to every matching subscriber without
// blocking on any of them, and mirrors it to NATS when configured.
func (b *Bus) Publish(topic string, data interface{}) {
	event := Event{Type: topic, Timestamp: time.Now(), Data: data}

	b.mu.RLock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matches(topic) {
			subs = append(subs, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		sub.deliver(event)
	}

	if b.nats != nil {
		go b.mirror(event)
	}
}

func (b *Bus) mirror(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event for NATS mirror", "error", err, "type", event.Type)
		return
	}
	if err := b.nats.Publish(b.natsSubject, payload); err != nil {
		b.logger.Warn("failed to mirror event to NATS", "error", err, "type", event.Type)
	}
}

// Close shuts down every subscriber channel and the NATS connection.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[string]*Subscription)
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	if b.nats != nil {
		b.nats.Close()
	}
}

// Context-scoped publish helper, kept for call sites that carry a
// context but have no use for cancellation here — Publish itself never
// blocks long enough to need one.
func (b *Bus) PublishCtx(_ context.Context, topic string, data interface{}) {
	b.Publish(topic, data)
}
