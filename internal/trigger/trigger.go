// Package trigger turns OS signals into scheduler triggers and lifecycle
// actions.
//
// Trigger ids are POSIX signal numbers. SIGHUP is the reload signal and is
// accepted but ignored. SIGINT and SIGTERM terminate. Every other id is
// forwarded to the scheduler.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// MaxID is the highest signal number accepted as a trigger id.
const MaxID = 64

// first real-time signal available to applications under glibc
const rtMin = 34

const (
	Reload      = int(unix.SIGHUP)
	Interrupt   = int(unix.SIGINT)
	Terminate   = int(unix.SIGTERM)
	killSignal  = int(unix.SIGKILL)
	stopSignal  = int(unix.SIGSTOP)
	childSignal = int(unix.SIGCHLD)
	urgSignal   = int(unix.SIGURG)
)

// Action is what the channel does with a received id.
type Action int

const (
	ActionForward Action = iota
	ActionReload
	ActionTerminate
)

func (a Action) String() string {
	switch a {
	case ActionReload:
		return "reload"
	case ActionTerminate:
		return "terminate"
	default:
		return "forward"
	}
}

// Classify maps an id to its action.
func Classify(id int) Action {
	switch id {
	case Reload:
		return ActionReload
	case Interrupt, Terminate:
		return ActionTerminate
	default:
		return ActionForward
	}
}

// IsReserved reports whether id is a lifecycle signal and therefore cannot
// be used as an item trigger.
func IsReserved(id int) bool {
	return Classify(id) != ActionForward
}

// Validate checks that id can be bound to an item. Zero means no trigger
// and is valid.
func Validate(id int) error {
	switch {
	case id == 0:
		return nil
	case id < 0 || id > MaxID:
		return fmt.Errorf("signal %d out of range 0..%d", id, MaxID)
	case IsReserved(id):
		return fmt.Errorf("signal %d (%s) is reserved for %s", id, Name(id), Classify(id))
	case id == killSignal || id == stopSignal:
		return fmt.Errorf("signal %d (%s) cannot be caught", id, Name(id))
	case id == childSignal || id == urgSignal:
		// SIGCHLD follows every exec producer, SIGURG is runtime preemption
		return fmt.Errorf("signal %d (%s) is raised by sbar itself", id, Name(id))
	}
	return nil
}

// Name returns a human readable signal name for logs.
func Name(id int) string {
	if name := unix.SignalName(syscall.Signal(id)); name != "" {
		return name
	}
	if id >= rtMin && id <= MaxID {
		return fmt.Sprintf("SIGRTMIN+%d", id-rtMin)
	}
	return fmt.Sprintf("signal %d", id)
}

// ForwardFunc receives trigger ids that are not lifecycle signals.
type ForwardFunc func(ctx context.Context, id int)

// Channel listens for signals and dispatches them.
type Channel struct {
	ids       []int
	forward   ForwardFunc
	terminate func()
	logger    *slog.Logger
}

// New creates a Channel for the given trigger ids. forward is called in its
// own goroutine for every forwarded id so that reception never blocks
// behind an update pass. terminate is called for SIGINT and SIGTERM.
func New(ids []int, forward ForwardFunc, terminate func(), logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		ids:       ids,
		forward:   forward,
		terminate: terminate,
		logger:    logger,
	}
}

// Signals returns the lifecycle signals followed by every distinct
// forwardable trigger id.
func (c *Channel) Signals() []os.Signal {
	sigs := []os.Signal{unix.SIGHUP, unix.SIGINT, unix.SIGTERM}
	seen := map[int]struct{}{Reload: {}, Interrupt: {}, Terminate: {}}

	for _, id := range c.ids {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sigs = append(sigs, syscall.Signal(id))
	}
	return sigs
}

// Dispatch handles one received id.
func (c *Channel) Dispatch(ctx context.Context, id int) {
	switch Classify(id) {
	case ActionReload:
		c.logger.Info("reload requested, ignoring", "signal", Name(id))
	case ActionTerminate:
		c.logger.Info("terminating", "signal", Name(id))
		if c.terminate != nil {
			c.terminate()
		}
	default:
		c.logger.Debug("trigger received", "signal", Name(id))
		if c.forward != nil {
			go c.forward(ctx, id)
		}
	}
}

// Run subscribes to the channel's signals and dispatches them until ctx is
// done.
func (c *Channel) Run(ctx context.Context) {
	ch := make(chan os.Signal, 16)
	signal.Notify(ch, c.Signals()...)
	defer signal.Stop(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-ch:
			s, ok := sig.(syscall.Signal)
			if !ok {
				continue
			}
			c.Dispatch(ctx, int(s))
		}
	}
}
