package client

import (
	"sync"
	"time"
)

// Typist turns a stream of keystrokes into typing announcements: the
// first keystroke of a burst fires start, and stop fires once no
// keystroke has arrived for the idle gap. Sending or switching
// conversations cancels the burst immediately.
type Typist struct {
	idle  time.Duration
	start func()
	stop  func()

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

// NewTypist creates a Typist with the given idle gap.
func NewTypist(idle time.Duration, start, stop func()) *Typist {
	if idle <= 0 {
		idle = 2 * time.Second
	}
	return &Typist{idle: idle, start: start, stop: stop}
}

// Input records one keystroke.
func (t *Typist) Input() {
	t.mu.Lock()
	wasActive := t.active
	t.active = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.idle, t.expire)
	t.mu.Unlock()

	if !wasActive {
		t.start()
	}
}

func (t *Typist) expire() {
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	t.timer = nil
	t.mu.Unlock()

	if wasActive {
		t.stop()
	}
}

// Cancel ends the burst now, firing stop if one was active. Safe to
// call when idle.
func (t *Typist) Cancel() {
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()

	if wasActive {
		t.stop()
	}
}

// Active reports whether a typing burst is in progress.
func (t *Typist) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}
