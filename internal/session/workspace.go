package session

import (
	"sync"
)

// Workspace holds the session of the image currently open for editing.
// Opening another image closes the previous session so its late responses
// are discarded.
type Workspace struct {
	mu   sync.Mutex
	svc  MaskService
	opts []Option
	cur  *Session
}

// NewWorkspace creates a workspace whose sessions use svc and opts.
func NewWorkspace(svc MaskService, opts ...Option) *Workspace {
	return &Workspace{svc: svc, opts: opts}
}

// Open closes the current session, if any, and starts one for img.
func (w *Workspace) Open(img Image, extra ...Option) *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur != nil {
		w.cur.Close()
	}
	opts := append(append([]Option(nil), w.opts...), extra...)
	w.cur = New(img, w.svc, opts...)
	return w.cur
}

// Current returns the open session, or nil.
func (w *Workspace) Current() *Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// Close ends the current session.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cur != nil {
		w.cur.Close()
		w.cur = nil
	}
}
