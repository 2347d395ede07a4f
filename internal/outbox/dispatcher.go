// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package outbox delivers category events recorded inside service
// transactions to downstream consumers. Events are written to the same
// database as the mutation that produced them, so a crash between commit
// and delivery loses nothing: the poller picks the event up on the next
// sweep.
package outbox

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/otax-go/internal/model"
	"github.com/olegiv/otax-go/internal/store"
)

// Sink consumes dispatched category events. Handle must be idempotent: an
// event is retried whole if any sink fails.
type Sink interface {
	Name() string
	Handle(ctx context.Context, event model.CategoryEvent) error
}

// Config holds dispatcher configuration.
type Config struct {
	Workers      int           // number of concurrent delivery workers
	PollInterval time.Duration // how often to sweep for pending events
	BatchSize    int           // events fetched per sweep
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:      3,
		PollInterval: 2 * time.Second,
		BatchSize:    100,
	}
}

// Dispatcher polls the category event outbox and fans events out to sinks.
type Dispatcher struct {
	db      *sql.DB
	queries *store.Queries
	logger  *slog.Logger
	sinks   []Sink
	cfg     Config
	queue   chan model.CategoryEvent
	poke    chan struct{}
	wg      sync.WaitGroup
	done    chan struct{}
	mu      sync.RWMutex
	running bool

	// inflight keeps an event from being queued twice when a sweep runs
	// while a worker still holds it.
	inflightMu sync.Mutex
	inflight   map[int64]struct{}
}

// NewDispatcher creates a new outbox dispatcher.
func NewDispatcher(db *sql.DB, logger *slog.Logger, cfg Config, sinks ...Sink) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		db:       db,
		queries:  store.New(db),
		logger:   logger,
		sinks:    sinks,
		cfg:      cfg,
		queue:    make(chan model.CategoryEvent, cfg.BatchSize),
		poke:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		inflight: make(map[int64]struct{}),
	}
}

// Start starts the poller and the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting outbox dispatcher", "workers", d.cfg.Workers, "poll_interval", d.cfg.PollInterval)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	d.wg.Add(1)
	go d.pollLoop(ctx)
}

// Stop stops the dispatcher and waits for workers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping outbox dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("outbox dispatcher stopped")
}

// Poke asks the poller to sweep immediately instead of waiting out the
// interval. Safe to call from any goroutine; a no-op when not running.
func (d *Dispatcher) Poke() {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()
	if !running {
		return
	}
	select {
	case d.poke <- struct{}{}:
	default:
	}
}

// pollLoop sweeps the outbox for pending events and queues them.
func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	// Pick up anything left over from a previous run right away.
	d.sweep(ctx)

	for {
		select {
		case <-d.done:
			return
		case <-ctx.Done():
			return
		case <-d.poke:
			d.sweep(ctx)
		case <-ticker.C:
			d.sweep(ctx)
		}
	}
}

func (d *Dispatcher) sweep(ctx context.Context) {
	events, err := d.queries.ListPendingEvents(ctx, int64(d.cfg.BatchSize))
	if err != nil {
		d.logger.Error("failed to list pending events", "error", err)
		return
	}

	for _, ev := range events {
		if !d.markInflight(ev.ID) {
			continue
		}
		select {
		case d.queue <- ev:
		case <-d.done:
			d.clearInflight(ev.ID)
			return
		case <-ctx.Done():
			d.clearInflight(ev.ID)
			return
		}
	}
}

// worker delivers queued events to every sink, then marks them dispatched.
func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("outbox worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			d.logger.Debug("outbox worker stopping", "worker_id", id)
			return
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.deliver(ctx, ev)
			d.clearInflight(ev.ID)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, ev model.CategoryEvent) {
	for _, sink := range d.sinks {
		if err := sink.Handle(ctx, ev); err != nil {
			// Leave the event pending; the next sweep retries it.
			d.logger.Error("sink failed, event will be retried",
				"error", err,
				"sink", sink.Name(),
				"event_id", ev.ID,
				"event_type", ev.EventType)
			return
		}
	}

	if err := d.queries.MarkEventDispatched(ctx, ev.ID, time.Now()); err != nil {
		d.logger.Error("failed to mark event dispatched", "error", err, "event_id", ev.ID)
		return
	}

	d.logger.Debug("event dispatched",
		"event_id", ev.ID,
		"event_type", ev.EventType,
		"category_id", ev.CategoryID)
}

func (d *Dispatcher) markInflight(id int64) bool {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	if _, ok := d.inflight[id]; ok {
		return false
	}
	d.inflight[id] = struct{}{}
	return true
}

func (d *Dispatcher) clearInflight(id int64) {
	d.inflightMu.Lock()
	defer d.inflightMu.Unlock()
	delete(d.inflight, id)
}
