// Package sink implements the display surfaces a composed bar is published
// to.
//
// A sink is acquired once at startup and owned for the lifetime of the
// process. Publish replaces whatever the display currently shows.
package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Kinds of sink accepted by [Open].
const (
	KindX11    = "x11"
	KindStdout = "stdout"
	KindFile   = "file"
)

// Sink receives the full composed bar text on every publish.
type Sink interface {
	Publish(ctx context.Context, text string) error
	Close() error
}

// Open acquires the sink of the given kind. output is the X display name for
// x11 (empty means $DISPLAY) and the path for file.
func Open(kind, output string) (Sink, error) {
	switch kind {
	case KindX11, "":
		return NewX11(output)
	case KindStdout:
		return NewStdout(), nil
	case KindFile:
		return OpenFile(output)
	default:
		return nil, fmt.Errorf("unknown sink %q (want %s, %s or %s)", kind, KindX11, KindStdout, KindFile)
	}
}

// Writer publishes one line per update to an io.Writer. On a terminal it
// rewrites the current line in place instead.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	tty    bool
	closer io.Closer
}

// NewWriter returns a Writer on w. tty selects in-place line rewriting.
func NewWriter(w io.Writer, tty bool) *Writer {
	return &Writer{w: w, tty: tty}
}

// NewStdout returns a Writer on standard output.
func NewStdout() *Writer {
	return NewWriter(os.Stdout, IsTerminal(os.Stdout.Fd()))
}

// IsTerminal reports whether fd is a terminal.
func IsTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// OpenFile returns a Writer appending to path, which may be a regular file
// or a FIFO read by an external bar. Opening a FIFO blocks until a reader
// is present.
func OpenFile(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("file sink: output path is required")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	w := NewWriter(f, false)
	w.closer = f
	return w, nil
}

// Publish writes text as a single line.
func (w *Writer) Publish(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// the bar is one line, whatever the producers returned
	text = strings.ReplaceAll(text, "\n", " ")

	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.tty {
		_, err = io.WriteString(w.w, "\r\x1b[K"+text)
	} else {
		_, err = io.WriteString(w.w, text+"\n")
	}
	if err != nil {
		return fmt.Errorf("write bar: %w", err)
	}
	return nil
}

// Close releases the underlying file, if the Writer owns one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tty {
		// leave the cursor on a fresh line
		_, _ = io.WriteString(w.w, "\n")
	}
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}
