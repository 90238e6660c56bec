package sbar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jpalmerr/sbar/dashboard"
	"github.com/jpalmerr/sbar/internal/bar"
	"github.com/jpalmerr/sbar/internal/metrics"
	"github.com/jpalmerr/sbar/internal/producer"
	"github.com/jpalmerr/sbar/internal/scheduler"
	"github.com/jpalmerr/sbar/internal/server"
	"github.com/jpalmerr/sbar/internal/store"
	"github.com/jpalmerr/sbar/internal/trigger"
	"github.com/jpalmerr/sbar/internal/watch"
)

const (
	defaultSeparator  = " | "
	defaultTickPeriod = scheduler.DefaultPeriod

	// shutdownGrace bounds how long Run waits for an in-flight update once
	// the bar is stopping. A producer that ignores cancellation must not
	// keep the process alive.
	shutdownGrace = 2 * time.Second
)

// Bar is the main orchestrator of a status bar.
//
// Bar owns the bar state, recomputes items on every tick, on external
// triggers and on file changes, and publishes the composed text to its
// [Sink]. It is created using [New] with functional options and started
// with [Bar.Run].
//
// The typical lifecycle is:
//
//	b, err := sbar.New(
//	    sbar.WithItems(battery, clock),
//	    sbar.WithSink(sbar.WriterSink(os.Stdout)),
//	)
//	if err != nil {
//	    slog.Error("failed to create bar", "error", err)
//	    os.Exit(1)
//	}
//
//	b.Run(context.Background()) // blocks until SIGINT or SIGTERM
//
// The caller may also stop the bar by cancelling the context.
type Bar struct {
	items      []Item
	tickPeriod time.Duration
	httpAddr   string
	title      string
	signals    bool
	triggerIDs []int
	watch      [][]string
	logger     *slog.Logger

	sched    *scheduler.Scheduler
	store    *store.MemoryStore
	registry *prometheus.Registry
	http     *producer.HTTPClient

	running atomic.Bool
}

// New creates a new [Bar] with the given options.
//
// At least one item must be configured via [WithItem] or [WithItems], and a
// display must be set with [WithSink]. Other options have sensible
// defaults:
//   - Separator: " | ", inserted automatically
//   - Tick period: 1 second
//   - Signal handling: enabled
//   - HTTP server: disabled
//
// Items whose kind has no producer are accepted; they never show a value
// and a warning is logged.
//
// Returns an error if no items or no sink are configured, or if any option
// is invalid.
func New(opts ...Option) (*Bar, error) {
	cfg := &barConfig{
		separator:     defaultSeparator,
		autoSeparator: true,
		markup:        MarkupStatus2D,
		tickPeriod:    defaultTickPeriod,
		signals:       true,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.items) == 0 {
		return nil, errors.New("at least one item is required")
	}
	if cfg.sink == nil {
		return nil, errors.New("a sink is required")
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	system := producer.DefaultSystem()
	system.Logger = logger
	producers := producer.NewRegistry()
	system.Install(producers)
	for kind, fn := range cfg.producers {
		producers.Set(kind, producer.Func(fn))
	}

	state := &bar.State{
		Items:         make([]bar.Record, len(cfg.items)),
		Separator:     cfg.separator,
		AutoSeparator: cfg.autoSeparator,
		Prefix:        cfg.prefix,
		Suffix:        cfg.suffix,
		ColorMode:     cfg.colorMode,
		Markup:        cfg.markup,
	}
	for i, it := range cfg.items {
		if _, ok := producers.Lookup(it.kind); !ok {
			logger.Warn("unknown item kind, item will stay empty",
				"item", i,
				"kind", it.kind,
				"known", producers.Kinds(),
			)
		}
		state.Items[i] = itemToRecord(it)
	}

	registry := cfg.registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	if err := registerRuntimeCollectors(registry); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	snapshots := store.NewMemoryStore()

	sched := scheduler.New(state, producers, cfg.sink, logger)
	sched.SetMetrics(recorder)

	// store update first (callbacks fire after data is visible to the API)
	sched.OnPublish(func(s scheduler.Snapshot) {
		snapshots.Update(schedulerSnapshotToStore(s))
	})
	if len(cfg.callbacks) > 0 {
		callbacks := cfg.callbacks
		sched.OnPublish(func(s scheduler.Snapshot) {
			public := schedulerSnapshotToPublic(s)
			for _, cb := range callbacks {
				invokeCallbackSafe(cb, public, logger)
			}
		})
	}

	return &Bar{
		items:      cfg.items,
		tickPeriod: cfg.tickPeriod,
		httpAddr:   cfg.httpAddr,
		title:      cfg.title,
		signals:    cfg.signals,
		triggerIDs: state.TriggerIDs(),
		watch:      state.WatchPaths(),
		logger:     logger,
		sched:      sched,
		store:      snapshots,
		registry:   registry,
		http:       system.HTTP,
	}, nil
}

// Run starts the bar and blocks until it stops.
//
// Run performs the initial pass at once, then ticks at the configured
// period. While it runs:
//
//   - Item trigger signals recompute their items (unless disabled with
//     [WithSignalHandling])
//   - SIGINT and SIGTERM stop the bar, SIGHUP is logged and ignored
//   - Watched files recompute their items when they change
//   - The HTTP server serves the status page, if configured
//
// The bar stops when ctx is cancelled or a terminate signal arrives. An
// update still running at that point is abandoned after a short grace
// period and its result is never published.
//
// Returns nil on shutdown. Returns an error if the HTTP server cannot be
// started or the bar is already running.
func (b *Bar) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return errors.New("bar is already running")
	}
	defer b.running.Store(false)

	b.logger.Info("sbar starting",
		"item_count", len(b.items),
		"tick", b.tickPeriod.String(),
		"trigger_count", len(b.triggerIDs),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer b.http.Close()

	if b.httpAddr != "" {
		httpServer := server.NewServer(b.store, b.httpAddr, dashboard.Assets, b.title, b.logger)
		// a pass queued by a request must not publish once the bar stops
		httpServer.SetTrigger(func(_ context.Context, id int) bool {
			return b.sched.Trigger(ctx, id)
		})
		httpServer.SetMetricsHandler(metrics.Handler(b.registry))
		if err := httpServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		b.logger.Info("status page available", "url", "http://"+httpServer.Addr())
	}

	var wg sync.WaitGroup

	if b.signals {
		channel := trigger.New(b.triggerIDs, func(ctx context.Context, id int) {
			b.sched.Trigger(ctx, id)
		}, cancel, b.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			channel.Run(ctx)
		}()
	}

	watcher := watch.New(b.watch, func(ctx context.Context, indices []int) {
		b.sched.Refresh(ctx, indices)
	}, b.logger)
	if !watcher.Empty() {
		if err := watcher.Start(ctx); err != nil {
			b.logger.Warn("file watches disabled", "error", err)
		}
	}

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		b.sched.Run(ctx, b.tickPeriod)
	}()

	<-ctx.Done()
	wg.Wait()

	grace := time.NewTimer(shutdownGrace)
	defer grace.Stop()
	select {
	case <-schedDone:
	case <-grace.C:
		b.logger.Warn("update still running at shutdown, abandoning it", "grace", shutdownGrace.String())
	}

	b.logger.Info("sbar stopped")
	return nil
}

// Trigger recomputes every item bound to id and publishes if any matched.
// It is the programmatic equivalent of sending the item's signal.
//
// Returns an error if id can never be bound to an item (lifecycle signals,
// uncatchable signals or ids out of range).
func (b *Bar) Trigger(ctx context.Context, id int) (bool, error) {
	if err := trigger.Validate(id); err != nil {
		return false, err
	}
	return b.sched.Trigger(ctx, id), nil
}

// Tick runs one periodic pass outside the timer. It reports whether the
// pass published.
func (b *Bar) Tick(ctx context.Context) bool {
	return b.sched.Tick(ctx)
}

// Latest returns the most recent publish, or false if nothing has been
// published yet.
func (b *Bar) Latest() (Snapshot, bool) {
	s, ok := b.store.Latest()
	if !ok {
		return Snapshot{}, false
	}
	return storeSnapshotToPublic(s), true
}

// Items returns a copy of the configured items.
func (b *Bar) Items() []Item {
	cp := make([]Item, len(b.items))
	copy(cp, b.items)
	return cp
}

// TickPeriod returns the configured duration of one tick.
func (b *Bar) TickPeriod() time.Duration {
	return b.tickPeriod
}

// itemToRecord converts an Item to the bar state's record format.
func itemToRecord(it Item) bar.Record {
	return bar.Record{
		Kind:      it.kind,
		Params:    copyStrings(it.params),
		Interval:  it.interval,
		TriggerID: it.trigger,
		Prefix:    it.prefix,
		Suffix:    it.suffix,
		FG:        it.fg,
		BG:        it.bg,
		Watch:     copyStrings(it.watch),
		Timeout:   it.timeout,
	}
}

// storeSnapshotToPublic converts a store snapshot back to the public type.
func storeSnapshotToPublic(s store.Snapshot) Snapshot {
	items := make([]ItemSnapshot, len(s.Items))
	for i, it := range s.Items {
		items[i] = ItemSnapshot{Kind: it.Kind}
		if it.Text != nil {
			items[i].Text = *it.Text
			items[i].Present = true
		}
	}

	var err error
	if s.Error != nil {
		err = errors.New(*s.Error)
	}

	return Snapshot{
		Text:        s.Text,
		Items:       items,
		Tick:        s.Tick,
		Reason:      s.Reason,
		TriggerID:   s.TriggerID,
		PublishedAt: s.PublishedAt,
		Error:       err,
	}
}

// registerRuntimeCollectors adds the Go runtime and process collectors.
// Collectors already present in a shared registry are kept.
func registerRuntimeCollectors(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// invokeCallbackSafe calls a publish callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(Snapshot), snap Snapshot, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("publish callback panicked",
				"panic", r,
				"tick", snap.Tick,
			)
		}
	}()
	cb(snap)
}
