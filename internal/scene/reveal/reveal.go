// Package reveal discloses a finished script one character per tick.
package reveal

import (
	"sync"
	"time"
)

// DefaultTick is the typewriter speed of the stage.
const DefaultTick = 10 * time.Millisecond

// Engine reveals at most one text at a time. Starting a new text cancels the
// previous reveal; a cancelled run never touches the engine again.
type Engine struct {
	tick   time.Duration
	onStep func(revealed int)

	mu       sync.Mutex
	text     []rune
	revealed int
	epoch    uint64
	stop     chan struct{}
}

// New creates an engine. onStep, if set, is called after every revealed
// character without any engine lock held.
func New(tick time.Duration, onStep func(revealed int)) *Engine {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Engine{tick: tick, onStep: onStep}
}

// Start supersedes any running reveal and begins disclosing text from the
// empty prefix.
func (e *Engine) Start(text string) {
	e.mu.Lock()
	e.stopLocked()
	e.epoch++
	e.text = []rune(text)
	e.revealed = 0
	if len(e.text) == 0 {
		e.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	e.stop = stop
	epoch := e.epoch
	e.mu.Unlock()

	go e.run(epoch, stop)
}

// Cancel freezes the current reveal where it is.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.epoch++
}

// Reset cancels the reveal and forgets the text.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
	e.epoch++
	e.text = nil
	e.revealed = 0
}

// Prefix returns the disclosed prefix together with the revealed and total
// lengths, both counted in runes.
func (e *Engine) Prefix() (prefix string, revealed, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.text[:e.revealed]), e.revealed, len(e.text)
}

// Revealed returns how many runes are on screen.
func (e *Engine) Revealed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revealed
}

// Cursor reports whether a trailing cursor should be drawn.
func (e *Engine) Cursor() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revealed < len(e.text)
}

func (e *Engine) stopLocked() {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

func (e *Engine) run(epoch uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		e.mu.Lock()
		if e.epoch != epoch || e.revealed >= len(e.text) {
			e.mu.Unlock()
			return
		}
		e.revealed++
		n := e.revealed
		finished := n == len(e.text)
		if finished {
			e.stop = nil
		}
		e.mu.Unlock()

		if e.onStep != nil {
			e.onStep(n)
		}
		if finished {
			return
		}
	}
}
