package sbar

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// discardSink accepts every publish.
type discardSink struct{}

func (discardSink) Publish(context.Context, string) error { return nil }

func TestNew_Defaults(t *testing.T) {
	b, err := New(WithItem(MustItem("time")), WithSink(discardSink{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if b.TickPeriod() != time.Second {
		t.Errorf("TickPeriod() = %v, want 1s", b.TickPeriod())
	}
	if len(b.Items()) != 1 {
		t.Errorf("len(Items()) = %d, want 1", len(b.Items()))
	}
	if _, ok := b.Latest(); ok {
		t.Error("Latest() reported a snapshot before any publish")
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"no items", []Option{WithSink(discardSink{})}},
		{"no sink", []Option{WithItem(MustItem("time"))}},
		{"nil sink", []Option{WithItem(MustItem("time")), WithSink(nil)}},
		{"nil logger", []Option{WithItem(MustItem("time")), WithSink(discardSink{}), WithLogger(nil)}},
		{"zero tick", []Option{WithItem(MustItem("time")), WithSink(discardSink{}), WithTickPeriod(0)}},
		{"bad markup", []Option{WithItem(MustItem("time")), WithSink(discardSink{}), WithColorMode("pango")}},
		{"bad http addr", []Option{WithItem(MustItem("time")), WithSink(discardSink{}), WithHTTPAddr("7777")}},
		{"empty producer kind", []Option{WithItem(MustItem("time")), WithSink(discardSink{}), WithProducer("", nil)}},
		{"nil producer", []Option{WithItem(MustItem("time")), WithSink(discardSink{}), WithProducer("x", nil)}},
		{"nil registry", []Option{WithItem(MustItem("time")), WithSink(discardSink{}), WithRegistry(nil)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts...); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestNew_UnknownKindWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := New(
		WithItem(MustItem("nonexistent")),
		WithProducer("weather", func(context.Context, []string) (string, error) { return "sun", nil }),
		WithSink(discardSink{}),
		WithLogger(logger),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logs := buf.String()
	if !strings.Contains(logs, "kind=nonexistent") {
		t.Errorf("expected unknown kind warning, got: %s", logs)
	}
	// the warning lists what is available, custom kinds included
	for _, kind := range []string{"known=", "memory", "weather"} {
		if !strings.Contains(logs, kind) {
			t.Errorf("warning missing %q: %s", kind, logs)
		}
	}
}

func TestWithPublishCallback_NilIgnored(t *testing.T) {
	if _, err := New(WithItem(MustItem("time")), WithSink(discardSink{}), WithPublishCallback(nil)); err != nil {
		t.Fatalf("New() error = %v", err)
	}
}

func TestWithRegistry_Shared(t *testing.T) {
	reg := prometheus.NewRegistry()

	for i := 0; i < 2; i++ {
		_, err := New(
			WithItem(MustItem("time")),
			WithSink(discardSink{}),
			WithRegistry(reg),
		)
		if err != nil {
			t.Fatalf("New() #%d error = %v", i, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	if len(families) == 0 {
		t.Error("registry has no metric families")
	}
}
