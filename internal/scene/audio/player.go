package audio

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/faiface/beep"
	"github.com/sirupsen/logrus"
)

// Output is the device the player writes to. Play must not call back into
// the player synchronously; Clear drops whatever is queued.
type Output interface {
	Play(s beep.Streamer, format beep.Format) error
	Clear()
}

// Handle is the ownership token of one playing clip.
type Handle struct {
	id        uint64
	done      chan struct{}
	once      sync.Once
	completed atomic.Bool
}

func newHandle(id uint64) *Handle {
	return &Handle{id: id, done: make(chan struct{})}
}

// ID identifies the handle within its player.
func (h *Handle) ID() uint64 { return h.id }

// Done is closed exactly once, when the clip ends naturally or is stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Completed reports whether the clip ran to its natural end.
func (h *Handle) Completed() bool { return h.completed.Load() }

func (h *Handle) finish(natural bool) {
	h.once.Do(func() {
		h.completed.Store(natural)
		close(h.done)
	})
}

// Player owns the single audio channel. At most one handle is live.
type Player struct {
	out Output

	mu      sync.Mutex
	current *Handle
	nextID  uint64
}

func NewPlayer(out Output) *Player {
	return &Player{out: out}
}

// Play stops whatever is playing and starts clip.
func (p *Player) Play(clip *Clip) (*Handle, error) {
	if clip == nil || clip.Buffer == nil || clip.Len() == 0 {
		return nil, ErrNoSamples
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	p.nextID++
	h := newHandle(p.nextID)

	// The completion callback runs on the output's mixing goroutine, so it
	// only touches the handle.
	stream := beep.Seq(
		clip.Buffer.Streamer(0, clip.Len()),
		beep.Callback(func() { h.finish(true) }),
	)
	if err := p.out.Play(stream, clip.Format); err != nil {
		h.finish(false)
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}
	p.current = h

	logrus.WithFields(logrus.Fields{
		"handle":   h.id,
		"duration": clip.Duration().String(),
	}).Debug("Playback started")

	return h, nil
}

// Stop ends playback of h. Stopping a finished, foreign or nil handle is a
// no-op.
func (p *Player) Stop(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != h {
		return
	}
	p.stopLocked()
}

// StopAll ends whatever is playing.
func (p *Player) StopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Current returns the live handle, or nil once it has finished.
func (p *Player) Current() *Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	select {
	case <-p.current.done:
		p.current = nil
	default:
	}
	return p.current
}

func (p *Player) stopLocked() {
	h := p.current
	if h == nil {
		return
	}
	p.current = nil

	select {
	case <-h.done:
		return
	default:
	}
	h.finish(false)
	p.out.Clear()
	logrus.WithField("handle", h.id).Debug("Playback stopped")
}
