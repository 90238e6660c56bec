package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/jpalmerr/sbar/internal/bar"
	"github.com/jpalmerr/sbar/internal/metrics"
	"github.com/jpalmerr/sbar/internal/producer"
)

// DefaultPeriod is the tick period used when Run is given a non-positive one.
const DefaultPeriod = time.Second

// failureLogEvery bounds how often a failing record logs at warn level.
const failureLogEvery = 30 * time.Second

// ErrUnknownKind is recorded when a record's kind has no producer.
var ErrUnknownKind = errors.New("unknown item kind")

// Reason says what caused a pass.
type Reason string

const (
	ReasonInitial Reason = "initial"
	ReasonTick    Reason = "tick"
	ReasonTrigger Reason = "trigger"
	ReasonWatch   Reason = "watch"
)

// Sink receives the composed bar text.
type Sink interface {
	Publish(ctx context.Context, text string) error
}

// ItemText is the rendered state of one record at publish time.
type ItemText struct {
	Kind    string
	Text    string
	Present bool
}

// Snapshot describes one publish.
type Snapshot struct {
	// Text is the composed string handed to the sink.
	Text string

	// Items holds every record in list order, including absent ones.
	Items []ItemText

	// Tick is the tick counter value the pass ran at.
	Tick uint64

	Reason Reason

	// TriggerID is set for trigger passes.
	TriggerID int

	PublishedAt time.Time

	// Err is the sink error, if the publish failed.
	Err error
}

// Scheduler serializes all updates of a bar state. It is safe for
// concurrent use.
type Scheduler struct {
	mu       sync.Mutex
	state    *bar.State
	registry *producer.Registry
	sink     Sink
	logger   *slog.Logger
	metrics  *metrics.Recorder
	hooks    []func(Snapshot)

	// one limiter per record for failure diagnostics
	limiters []*rate.Limiter
}

// New creates a Scheduler that owns state from now on. Callers must not
// touch state afterwards except through the Scheduler.
func New(state *bar.State, registry *producer.Registry, sink Sink, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	limiters := make([]*rate.Limiter, len(state.Items))
	for i := range limiters {
		limiters[i] = rate.NewLimiter(rate.Every(failureLogEvery), 1)
	}

	return &Scheduler{
		state:    state,
		registry: registry,
		sink:     sink,
		logger:   logger,
		limiters: limiters,
	}
}

// SetMetrics attaches a metrics recorder. A nil recorder disables metrics.
func (s *Scheduler) SetMetrics(r *metrics.Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = r
}

// OnPublish registers fn to be called after every publish. Hooks run while
// the state lock is held and must not call back into the Scheduler.
func (s *Scheduler) OnPublish(fn func(Snapshot)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Tick runs one periodic pass and advances the tick counter. It reports
// whether the pass published.
func (s *Scheduler) Tick(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	tick := s.state.Tick
	reason := ReasonTick
	if tick == 0 {
		reason = ReasonInitial
	}

	published := s.pass(ctx, reason, 0, func(_ int, r *bar.Record) bool {
		return tick == 0 || (r.Interval != 0 && tick%r.Interval == 0)
	})

	s.state.Tick++
	s.metrics.SetTick(s.state.Tick)
	return published
}

// Trigger recomputes every record bound to id and publishes if any
// matched. Non-positive ids never match.
func (s *Scheduler) Trigger(ctx context.Context, id int) bool {
	if id <= 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pass(ctx, ReasonTrigger, id, func(_ int, r *bar.Record) bool {
		return r.TriggerID == id
	})
}

// Refresh recomputes the records at the given indices and publishes if any
// were valid. Out of range indices are ignored.
func (s *Scheduler) Refresh(ctx context.Context, indices []int) bool {
	want := make(map[int]struct{}, len(indices))
	for _, i := range indices {
		want[i] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pass(ctx, ReasonWatch, 0, func(i int, _ *bar.Record) bool {
		_, ok := want[i]
		return ok
	})
}

// Run performs the initial pass immediately, then ticks every period until
// ctx is done.
func (s *Scheduler) Run(ctx context.Context, period time.Duration) {
	if period <= 0 {
		period = DefaultPeriod
	}

	s.Tick(ctx)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// pass recomputes the selected records in list order and publishes if at
// least one was recomputed. Must be called with s.mu held.
func (s *Scheduler) pass(ctx context.Context, reason Reason, triggerID int, selected func(int, *bar.Record) bool) bool {
	start := time.Now()
	recomputed := 0

	for i := range s.state.Items {
		if !selected(i, &s.state.Items[i]) {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		s.recompute(ctx, i)
		recomputed++
	}

	if recomputed == 0 {
		return false
	}
	if ctx.Err() != nil {
		s.logger.Debug("pass cancelled, not publishing", "reason", reason, "tick", s.state.Tick)
		return false
	}

	s.publish(ctx, reason, triggerID, start)
	return true
}

// recompute runs the producer of record i and stores the decorated result.
// Any failure leaves the record without a value.
func (s *Scheduler) recompute(ctx context.Context, i int) {
	r := &s.state.Items[i]

	fn, ok := s.registry.Lookup(r.Kind)
	if !ok {
		r.Clear()
		s.metrics.IncRecompute(r.Kind, "error")
		s.logFailure(i, r, ErrUnknownKind)
		return
	}

	pctx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	text, err := s.safeProduce(pctx, fn, r.Params)
	if err != nil {
		r.Clear()
		s.metrics.IncRecompute(r.Kind, "error")
		s.logFailure(i, r, err)
		return
	}

	r.SetText(s.state.Decorate(r, text))
	s.metrics.IncRecompute(r.Kind, "ok")
}

// safeProduce calls fn with panic recovery. A panic is logged with its
// stack under a correlation id and reported as an error carrying that id.
func (s *Scheduler) safeProduce(ctx context.Context, fn producer.Func, params []string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("producer panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			text = ""
			err = fmt.Errorf("producer panic (correlation_id: %s)", correlationID)
		}
	}()
	return fn(ctx, params)
}

// logFailure reports a producer failure, at warn level at most once per
// failureLogEvery for each record and at debug level otherwise.
func (s *Scheduler) logFailure(i int, r *bar.Record, err error) {
	level := slog.LevelDebug
	if s.limiters[i].Allow() {
		level = slog.LevelWarn
	}
	s.logger.Log(context.Background(), level, "item has no value",
		"item", i,
		"kind", r.Kind,
		"tick", s.state.Tick,
		"error", err,
	)
}

// publish composes the bar, hands it to the sink and notifies hooks. Sink
// errors are logged and never abort the pass.
func (s *Scheduler) publish(ctx context.Context, reason Reason, triggerID int, start time.Time) {
	text := bar.Compose(s.state)

	err := s.sink.Publish(ctx, text)
	if err != nil {
		s.logger.Error("publish failed", "reason", reason, "tick", s.state.Tick, "error", err)
		s.metrics.IncPublishError()
	}
	s.metrics.ObservePass(string(reason), time.Since(start))

	if len(s.hooks) == 0 {
		return
	}

	snap := Snapshot{
		Text:        text,
		Items:       make([]ItemText, len(s.state.Items)),
		Tick:        s.state.Tick,
		Reason:      reason,
		TriggerID:   triggerID,
		PublishedAt: time.Now(),
		Err:         err,
	}
	for i := range s.state.Items {
		t, ok := s.state.Items[i].Text()
		snap.Items[i] = ItemText{Kind: s.state.Items[i].Kind, Text: t, Present: ok}
	}

	for _, hook := range s.hooks {
		s.safeHook(hook, snap)
	}
}

func (s *Scheduler) safeHook(hook func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("publish hook panic", "panic", fmt.Sprintf("%v", r))
		}
	}()
	hook(snap)
}
