package sbar

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink remembers every published text.
type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (s *recordingSink) Publish(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordingSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *recordingSink) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

// constant returns a producer that always yields text.
func constant(text string) Producer {
	return func(context.Context, []string) (string, error) {
		return text, nil
	}
}

// freeAddr returns a loopback address that was free a moment ago.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestTick_SkipsAbsentItems(t *testing.T) {
	sink := &recordingSink{}
	b, err := New(
		WithItems(MustItem("x"), MustItem("broken"), MustItem("z")),
		WithProducer("x", constant("X")),
		WithProducer("broken", func(context.Context, []string) (string, error) {
			return "", errors.New("no battery")
		}),
		WithProducer("z", constant("Z")),
		WithSeparator("|"),
		WithSink(sink),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if !b.Tick(context.Background()) {
		t.Fatal("Tick() = false on the initial pass")
	}
	if got := sink.last(); got != "X|Z" {
		t.Errorf("published %q, want %q", got, "X|Z")
	}

	snap, ok := b.Latest()
	if !ok {
		t.Fatal("Latest() reported no snapshot")
	}
	if snap.Reason != "initial" || snap.Tick != 0 {
		t.Errorf("snapshot reason/tick = %q/%d", snap.Reason, snap.Tick)
	}
	if len(snap.Items) != 3 || snap.Items[1].Present || !snap.Items[2].Present {
		t.Errorf("snapshot items = %+v", snap.Items)
	}
}

func TestTick_DecorationAndColors(t *testing.T) {
	sink := &recordingSink{}
	b, err := New(
		WithItems(
			MustItem("a", WithColors("#ff0000", "")),
			MustItem("b", WithPrefix("<"), WithSuffix(">")),
		),
		WithProducer("a", constant("A")),
		WithProducer("b", constant("B")),
		WithDecoration(" ", " "),
		WithAutoSeparator(false),
		WithColorMode(MarkupStatus2D),
		WithSink(sink),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	b.Tick(context.Background())

	want := "^c#ff0000^ A ^d^<B>"
	if got := sink.last(); got != want {
		t.Errorf("published %q, want %q", got, want)
	}
}

func TestTrigger_RecomputesBoundItems(t *testing.T) {
	sink := &recordingSink{}
	var calls atomic.Int32

	b, err := New(
		WithItems(
			MustItem("volume", WithTrigger(44)),
			MustItem("static"),
		),
		WithProducer("volume", func(context.Context, []string) (string, error) {
			n := calls.Add(1)
			return strings.Repeat("|", int(n)), nil
		}),
		WithProducer("static", constant("S")),
		WithSink(sink),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	b.Tick(ctx)

	matched, err := b.Trigger(ctx, 44)
	if err != nil {
		t.Fatalf("Trigger(44) error = %v", err)
	}
	if !matched {
		t.Error("Trigger(44) matched = false")
	}
	if got := sink.last(); got != "|| | S" {
		t.Errorf("published %q, want %q", got, "|| | S")
	}

	matched, err = b.Trigger(ctx, 45)
	if err != nil || matched {
		t.Errorf("Trigger(45) = %v, %v, want false, nil", matched, err)
	}
	if len(sink.all()) != 2 {
		t.Errorf("publish count = %d, want 2", len(sink.all()))
	}

	for _, id := range []int{1, 2, 15, 9, 99} {
		if _, err := b.Trigger(ctx, id); err == nil {
			t.Errorf("Trigger(%d) expected error", id)
		}
	}
}

func TestWithPublishCallback_ReceivesSnapshot(t *testing.T) {
	var (
		mu   sync.Mutex
		got  []Snapshot
		hits atomic.Int32
	)

	b, err := New(
		WithItem(MustItem("a", WithTrigger(40))),
		WithProducer("a", constant("A")),
		WithSink(&recordingSink{}),
		WithLogger(testLogger()),
		WithPublishCallback(func(Snapshot) {
			panic("callback bug")
		}),
		WithPublishCallback(func(s Snapshot) {
			hits.Add(1)
			mu.Lock()
			got = append(got, s)
			mu.Unlock()
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	b.Tick(ctx)
	if _, err := b.Trigger(ctx, 40); err != nil {
		t.Fatalf("Trigger() error = %v", err)
	}

	if hits.Load() != 2 {
		t.Fatalf("callback invoked %d times, want 2", hits.Load())
	}

	mu.Lock()
	defer mu.Unlock()
	if got[0].Reason != "initial" || got[0].Text != "A" {
		t.Errorf("first snapshot = %+v", got[0])
	}
	if got[1].Reason != "trigger" || got[1].TriggerID != 40 {
		t.Errorf("second snapshot = %+v", got[1])
	}
	if got[1].PublishedAt.IsZero() {
		t.Error("PublishedAt not set")
	}
}

func TestRun_BlocksUntilContextCancelled(t *testing.T) {
	sink := &recordingSink{}
	b, err := New(
		WithItem(MustItem("a", WithInterval(1))),
		WithProducer("a", constant("A")),
		WithTickPeriod(20*time.Millisecond),
		WithSink(sink),
		WithSignalHandling(false),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	time.Sleep(100 * time.Millisecond)

	// verify Run is still blocking
	select {
	case err := <-done:
		t.Fatalf("Run() returned early with error: %v", err)
	default:
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after context cancellation")
	}

	if n := len(sink.all()); n < 2 {
		t.Errorf("publish count = %d, want at least 2", n)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	sink := &recordingSink{}
	b, err := New(
		WithItem(MustItem("a")),
		WithProducer("a", constant("A")),
		WithSink(sink),
		WithSignalHandling(false),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := b.Run(ctx); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if n := len(sink.all()); n != 0 {
		t.Errorf("publish count = %d, want 0", n)
	}
}

func TestRun_AlreadyRunning(t *testing.T) {
	b, err := New(
		WithItem(MustItem("a")),
		WithProducer("a", constant("A")),
		WithSink(&recordingSink{}),
		WithSignalHandling(false),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if !waitFor(t, time.Second, func() bool { _, ok := b.Latest(); return ok }) {
		t.Fatal("initial pass did not publish")
	}
	if err := b.Run(ctx); err == nil {
		t.Error("second Run() expected error")
	}
}

func TestRun_HungProducerDoesNotBlockShutdown(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	entered := make(chan struct{})

	sink := &recordingSink{}
	b, err := New(
		WithItem(MustItem("stuck")),
		WithProducer("stuck", func(context.Context, []string) (string, error) {
			close(entered)
			<-release // ignores cancellation
			return "late", nil
		}),
		WithSink(sink),
		WithSignalHandling(false),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	<-entered
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(shutdownGrace + 2*time.Second):
		t.Fatal("Run() hung on a stuck producer")
	}
	if n := len(sink.all()); n != 0 {
		t.Errorf("publish count = %d, want 0", n)
	}
}

func TestRun_HTTPTriggerDoesNotPublishAfterStop(t *testing.T) {
	addr := freeAddr(t)
	release := make(chan struct{})
	entered := make(chan struct{}, 2)

	sink := &recordingSink{}
	b, err := New(
		WithItem(MustItem("stuck", WithTrigger(46))),
		WithProducer("stuck", func(context.Context, []string) (string, error) {
			entered <- struct{}{}
			<-release // ignores cancellation
			return "late", nil
		}),
		WithSink(sink),
		WithHTTPAddr(addr),
		WithSignalHandling(false),
		WithTickPeriod(time.Hour),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Run(ctx)
	}()

	// the initial pass holds the bar while the request queues behind it
	<-entered
	posted := make(chan struct{})
	go func() {
		defer close(posted)
		client := &http.Client{Timeout: shutdownGrace + 3*time.Second}
		resp, err := client.Post("http://"+addr+"/api/trigger/46", "", nil)
		if err == nil {
			_ = resp.Body.Close()
		}
	}()
	time.Sleep(200 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(shutdownGrace + 2*time.Second):
		t.Fatal("Run() hung on a stuck producer")
	}

	// let the stuck pass and the queued trigger pass finish
	close(release)
	select {
	case <-posted:
	case <-time.After(shutdownGrace + 5*time.Second):
		t.Fatal("trigger request never finished")
	}
	time.Sleep(100 * time.Millisecond)

	if got := sink.all(); len(got) != 0 {
		t.Errorf("published %q after Run returned, want nothing", got)
	}
}

func TestRun_WatchedFileRecomputes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status")
	if err := os.WriteFile(path, []byte("first\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	sink := &recordingSink{}
	b, err := New(
		WithItem(MustItem("file", WithParams(path), WithWatch(path))),
		WithSink(sink),
		WithSignalHandling(false),
		WithTickPeriod(time.Hour),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if !waitFor(t, 2*time.Second, func() bool { return sink.last() == "first" }) {
		t.Fatalf("initial publish = %q, want first", sink.last())
	}

	// give the watcher time to install before writing
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(path, []byte("second\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return sink.last() == "second" }) {
		t.Errorf("published %q after write, want second", sink.last())
	}

	snap, _ := b.Latest()
	if snap.Reason != "watch" {
		t.Errorf("snapshot reason = %q, want watch", snap.Reason)
	}
}

func TestRun_HTTPServer(t *testing.T) {
	addr := freeAddr(t)

	b, err := New(
		WithItems(
			MustItem("a"),
			MustItem("b", WithTrigger(44)),
		),
		WithProducer("a", constant("A")),
		WithProducer("b", constant("B")),
		WithSink(&recordingSink{}),
		WithHTTPAddr(addr),
		WithTitle("test bar"),
		WithSignalHandling(false),
		WithTickPeriod(time.Hour),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := b.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	base := "http://" + addr
	if !waitFor(t, 2*time.Second, func() bool {
		resp, err := http.Get(base + "/api/status")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()
		return resp.StatusCode == http.StatusOK
	}) {
		t.Fatal("status endpoint never became ready")
	}

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status error = %v", err)
	}
	var status struct {
		Text  string `json:"text"`
		Items []struct {
			Kind string  `json:"kind"`
			Text *string `json:"text"`
		} `json:"items"`
	}
	err = json.NewDecoder(resp.Body).Decode(&status)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Text != "A | B" || len(status.Items) != 2 {
		t.Errorf("status = %+v", status)
	}

	resp, err = http.Post(base+"/api/trigger/44", "", nil)
	if err != nil {
		t.Fatalf("POST /api/trigger/44 error = %v", err)
	}
	var trig struct {
		Matched bool `json:"matched"`
	}
	err = json.NewDecoder(resp.Body).Decode(&trig)
	_ = resp.Body.Close()
	if err != nil {
		t.Fatalf("decode trigger: %v", err)
	}
	if !trig.Matched {
		t.Error("trigger 44 not matched")
	}
	if snap, _ := b.Latest(); snap.Reason != "trigger" {
		t.Errorf("latest reason = %q, want trigger", snap.Reason)
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), `sbar_scheduler_passes_total{reason="trigger"} 1`) {
		t.Errorf("metrics missing trigger pass:\n%s", body)
	}

	resp, err = http.Get(base + "/")
	if err != nil {
		t.Fatalf("GET / error = %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "test bar") {
		t.Error("status page does not contain the configured title")
	}
}

func TestRun_HTTPAddrInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer func() { _ = ln.Close() }()

	b, err := New(
		WithItem(MustItem("a")),
		WithProducer("a", constant("A")),
		WithSink(&recordingSink{}),
		WithHTTPAddr(ln.Addr().String()),
		WithSignalHandling(false),
		WithLogger(testLogger()),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := b.Run(context.Background()); err == nil {
		t.Error("Run() expected error for an address in use")
	}
}
