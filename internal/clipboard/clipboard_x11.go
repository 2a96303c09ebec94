//go:build (linux || freebsd || openbsd || netbsd || dragonfly) && !cgo

package clipboard

import (
	"fmt"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

// x11Backend owns the CLIPBOARD selection through a hidden window and serves
// conversion requests from its own event loop. Used when cgo is unavailable.
type x11Backend struct {
	conn   *xgb.Conn
	window xproto.Window
	atoms  atoms

	mu    sync.RWMutex
	owned format
	data  []byte
}

type atoms struct {
	clipboard xproto.Atom
	targets   xproto.Atom
	utf8      xproto.Atom
	textPlain xproto.Atom
	png       xproto.Atom
	property  xproto.Atom
}

func open() (backend, error) {
	if !hasDisplay() {
		return nil, ErrNoDisplay
	}
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, err
	}
	screen := xproto.Setup(conn).DefaultScreen(conn)
	window, err := xproto.NewWindowId(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	const mask = xproto.EventMaskPropertyChange | xproto.EventMaskStructureNotify
	if err := xproto.CreateWindowChecked(conn, screen.RootDepth, window, screen.Root, 0, 0, 1, 1, 0,
		xproto.WindowClassInputOutput, screen.RootVisual, xproto.CwEventMask, []uint32{mask}).Check(); err != nil {
		conn.Close()
		return nil, err
	}
	a, err := internAtoms(conn)
	if err != nil {
		xproto.DestroyWindow(conn, window)
		conn.Close()
		return nil, err
	}
	b := &x11Backend{conn: conn, window: window, atoms: a}
	go b.serve()
	return b, nil
}

func internAtoms(conn *xgb.Conn) (atoms, error) {
	names := []string{"CLIPBOARD", "TARGETS", "UTF8_STRING", "text/plain;charset=utf-8", "image/png", "MASKSTUDIO_CLIPBOARD"}
	ids := make([]xproto.Atom, len(names))
	for i, name := range names {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			return atoms{}, fmt.Errorf("intern %s: %w", name, err)
		}
		ids[i] = reply.Atom
	}
	return atoms{clipboard: ids[0], targets: ids[1], utf8: ids[2], textPlain: ids[3], png: ids[4], property: ids[5]}, nil
}

func (b *x11Backend) write(f format, data []byte) error {
	b.mu.Lock()
	b.owned = f
	b.data = append([]byte(nil), data...)
	b.mu.Unlock()
	return xproto.SetSelectionOwnerChecked(b.conn, b.window, b.atoms.clipboard, xproto.TimeCurrentTime).Check()
}

func (b *x11Backend) read(f format) ([]byte, error) {
	target := b.atoms.png
	if f == formatText {
		target = b.atoms.utf8
	}
	data, err := b.convert(target)
	if err != nil && f == formatText {
		return b.convert(xproto.AtomString)
	}
	return data, err
}

func (b *x11Backend) serve() {
	for {
		ev, err := b.conn.WaitForEvent()
		if err != nil {
			return
		}
		switch e := ev.(type) {
		case xproto.SelectionRequestEvent:
			b.reply(e)
		case xproto.SelectionClearEvent:
			b.mu.Lock()
			b.data = nil
			b.mu.Unlock()
		}
	}
}

func (b *x11Backend) reply(e xproto.SelectionRequestEvent) {
	property := e.Property
	if property == xproto.AtomNone {
		property = e.Target
	}

	b.mu.RLock()
	owned, data := b.owned, b.data
	b.mu.RUnlock()

	text := owned == formatText && len(data) > 0
	img := owned == formatPNG && len(data) > 0

	switch {
	case e.Target == b.atoms.targets:
		list := []xproto.Atom{b.atoms.targets}
		if text {
			list = append(list, b.atoms.utf8, xproto.AtomString, b.atoms.textPlain)
		}
		if img {
			list = append(list, b.atoms.png)
		}
		buf := make([]byte, len(list)*4)
		for i, a := range list {
			xgb.Put32(buf[i*4:], uint32(a))
		}
		xproto.ChangeProperty(b.conn, xproto.PropModeReplace, e.Requestor, property, xproto.AtomAtom, 32, uint32(len(list)), buf)
	case text && (e.Target == b.atoms.utf8 || e.Target == xproto.AtomString || e.Target == b.atoms.textPlain):
		xproto.ChangeProperty(b.conn, xproto.PropModeReplace, e.Requestor, property, b.atoms.utf8, 8, uint32(len(data)), data)
	case img && e.Target == b.atoms.png:
		xproto.ChangeProperty(b.conn, xproto.PropModeReplace, e.Requestor, property, b.atoms.png, 8, uint32(len(data)), data)
	default:
		property = xproto.AtomNone
	}

	ev := xproto.SelectionNotifyEvent{
		Time:      e.Time,
		Requestor: e.Requestor,
		Selection: e.Selection,
		Target:    e.Target,
		Property:  property,
	}
	_ = xproto.SendEvent(b.conn, false, e.Requestor, 0, string(ev.Bytes()))
}

// convert asks the current owner for target using a short-lived connection
// so the serving loop never sees the reply.
func (b *x11Backend) convert(target xproto.Atom) ([]byte, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	screen := xproto.Setup(conn).DefaultScreen(conn)
	window, err := xproto.NewWindowId(conn)
	if err != nil {
		return nil, err
	}
	if err := xproto.CreateWindowChecked(conn, 0, window, screen.Root, 0, 0, 1, 1, 0,
		xproto.WindowClassInputOnly, 0, xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange}).Check(); err != nil {
		return nil, err
	}
	defer xproto.DestroyWindow(conn, window)

	if err := xproto.ConvertSelectionChecked(conn, window, b.atoms.clipboard, target, b.atoms.property, xproto.TimeCurrentTime).Check(); err != nil {
		return nil, err
	}
	for {
		ev, err := conn.WaitForEvent()
		if err != nil {
			return nil, err
		}
		e, ok := ev.(xproto.SelectionNotifyEvent)
		if !ok {
			continue
		}
		if e.Property == xproto.AtomNone {
			return nil, ErrEmpty
		}
		reply, err := xproto.GetProperty(conn, true, window, b.atoms.property, xproto.GetPropertyTypeAny, 0, (1<<31)-1).Reply()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), reply.Value...), nil
	}
}
