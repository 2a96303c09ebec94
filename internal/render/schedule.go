package render

import (
	"time"

	"github.com/bep/debounce"
)

// DefaultDebounce is the delay applied to colour and opacity changes.
const DefaultDebounce = 100 * time.Millisecond

// Scheduler coalesces redraw requests: any number of Invalidate calls made
// before the consumer reads C produce a single pending redraw.
type Scheduler struct {
	ch chan struct{}
}

// NewScheduler returns a scheduler with no redraw pending.
func NewScheduler() *Scheduler {
	return &Scheduler{ch: make(chan struct{}, 1)}
}

// Invalidate marks the canvas dirty. It never blocks.
func (s *Scheduler) Invalidate() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C delivers one value per pending redraw.
func (s *Scheduler) C() <-chan struct{} {
	return s.ch
}

// Pending drains a pending redraw without blocking and reports whether one
// was queued.
func (s *Scheduler) Pending() bool {
	select {
	case <-s.ch:
		return true
	default:
		return false
	}
}

// StyleDebouncer delays style updates until input has been quiet for the
// debounce interval, then applies only the latest value.
type StyleDebouncer struct {
	debounced func(func())
}

// NewStyleDebouncer returns a debouncer using d, or DefaultDebounce when d is
// not positive.
func NewStyleDebouncer(d time.Duration) *StyleDebouncer {
	if d <= 0 {
		d = DefaultDebounce
	}
	return &StyleDebouncer{debounced: debounce.New(d)}
}

// Set schedules apply(st) after the quiet period. Earlier pending calls are
// superseded.
func (d *StyleDebouncer) Set(st Style, apply func(Style)) {
	d.debounced(func() { apply(st) })
}
