package sink

import (
	"context"
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// X11 publishes the bar as the WM_NAME of the root window, which is where
// dwm and similar window managers read their status text from.
type X11 struct {
	mu   sync.Mutex
	conn *xgb.Conn
	root xproto.Window
	typ  xproto.Atom
}

// NewX11 connects to display (empty means $DISPLAY) and resolves the root
// window of the default screen.
func NewX11(display string) (*X11, error) {
	var (
		conn *xgb.Conn
		err  error
	)
	if display == "" {
		conn, err = xgb.NewConn()
	} else {
		conn, err = xgb.NewConnDisplay(display)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to X display: %w", err)
	}

	screen := xproto.Setup(conn).DefaultScreen(conn)

	const utf8Name = "UTF8_STRING"
	typ := textType(xproto.InternAtom(conn, true, uint16(len(utf8Name)), utf8Name).Reply())

	return &X11{conn: conn, root: screen.Root, typ: typ}, nil
}

// textType picks the property type for the window name. UTF8_STRING keeps
// icons and non-latin text intact; STRING is the fallback.
func textType(reply *xproto.InternAtomReply, err error) xproto.Atom {
	var typ xproto.Atom = xproto.AtomString
	if err == nil && reply != nil && reply.Atom != xproto.AtomNone {
		typ = reply.Atom
	}
	return typ
}

// Publish replaces the root window name with text.
func (x *X11) Publish(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.conn == nil {
		return fmt.Errorf("x11 sink closed")
	}

	data := []byte(text)
	err := xproto.ChangePropertyChecked(x.conn, xproto.PropModeReplace, x.root,
		xproto.AtomWmName, x.typ, 8, uint32(len(data)), data).Check()
	if err != nil {
		return fmt.Errorf("set root window name: %w", err)
	}
	return nil
}

// Close disconnects from the display.
func (x *X11) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.conn != nil {
		x.conn.Close()
		x.conn = nil
	}
	return nil
}
