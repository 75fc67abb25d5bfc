package studio

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
	"directorscut/internal/scene/reveal"
	"directorscut/internal/scene/tts"
	"directorscut/internal/scene/writer"
)

var (
	// ErrClosed is returned by waits on a closed controller.
	ErrClosed = errors.New("studio closed")
	// ErrRenderLocked is the answer to every render request.
	ErrRenderLocked = errors.New("video rendering is coming in v2.0")
)

// Controller is the entry point for presentation layers. All methods are
// safe for concurrent use.
type Controller struct {
	st     *state
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	reveal *reveal.Engine
	gen    *GenerationManager
	narr   *NarrationManager

	subMu   sync.Mutex
	subs    map[int]chan scene.Snapshot
	nextSub int
	closed  bool
}

// New wires a controller around its services. The controller starts Idle.
func New(w writer.Writer, synth tts.Synthesizer, player *audio.Player, creds Credentials, opts Options) *Controller {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		st:     &state{},
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[int]chan scene.Snapshot),
	}
	c.st.changed = c.broadcast
	c.reveal = reveal.New(opts.RevealInterval, func(int) { c.broadcast() })
	c.gen = &GenerationManager{
		st:       c.st,
		writer:   w,
		creds:    creds,
		opts:     opts,
		base:     ctx,
		onScript: c.reveal.Start,
	}
	c.narr = &NarrationManager{
		st:     c.st,
		synth:  synth,
		creds:  creds,
		player: player,
		opts:   opts,
		base:   ctx,
	}
	return c
}

// SubmitPrompt starts generating a scene for prompt. A blank prompt is
// rejected and changes nothing. Any narration in progress is stopped and the
// previous generation is superseded.
func (c *Controller) SubmitPrompt(prompt string) bool {
	if strings.TrimSpace(prompt) == "" {
		return false
	}

	c.st.mu.Lock()
	if c.ctx.Err() != nil {
		c.st.mu.Unlock()
		return false
	}
	c.narr.stopLocked()
	c.reveal.Reset()
	c.gen.submitLocked(prompt)
	c.st.mu.Unlock()

	c.st.notify()
	return true
}

// ToggleNarration starts narrating the current script, or stops narration
// that is requesting or playing. With no script it does nothing.
func (c *Controller) ToggleNarration() {
	c.st.mu.Lock()
	if c.ctx.Err() != nil {
		c.st.mu.Unlock()
		return
	}
	c.narr.toggleLocked()
	c.st.mu.Unlock()

	c.st.notify()
}

// RenderVideo is a locked feature.
func (c *Controller) RenderVideo() error {
	return ErrRenderLocked
}

// Snapshot returns a consistent view of the session.
func (c *Controller) Snapshot() scene.Snapshot {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()

	s := c.st.session
	snap := scene.Snapshot{
		Prompt:    s.Prompt,
		ViewState: s.ViewState,
		Mode:      s.Mode,
		Narration: s.Narration,
	}
	if s.Generation != nil {
		snap.GenerationID = s.Generation.ID
	}
	if s.ViewState == scene.ViewLoading {
		snap.LoadingMessage = c.opts.LoadingMessages[s.LoadingMessageIndex%len(c.opts.LoadingMessages)]
	}
	if s.ViewState == scene.ViewScriptReady {
		snap.RevealedText, snap.RevealedLength, snap.ScriptLength = c.reveal.Prefix()
		snap.ShowCursor = snap.RevealedLength < snap.ScriptLength
	}
	if s.Notice != nil {
		notice := *s.Notice
		snap.Notice = &notice
	}
	return snap
}

// Script returns the full current script, or "" if none is ready.
func (c *Controller) Script() string {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	return c.st.session.Script
}

// Generation returns a copy of the latest generation request.
func (c *Controller) Generation() *scene.GenerationRequest {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	if c.st.session.Generation == nil {
		return nil
	}
	req := *c.st.session.Generation
	return &req
}

// TakeNotice returns the pending notice and clears it.
func (c *Controller) TakeNotice() *scene.Notice {
	c.st.mu.Lock()
	defer c.st.mu.Unlock()
	n := c.st.session.Notice
	c.st.session.Notice = nil
	return n
}

// Subscribe returns a channel that always holds the most recent snapshot
// after a change. Slow readers skip intermediate states. The channel is
// closed by the returned cancel func or by Close.
func (c *Controller) Subscribe() (<-chan scene.Snapshot, func()) {
	ch := make(chan scene.Snapshot, 1)

	c.subMu.Lock()
	if c.closed {
		c.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		defer c.subMu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

// WaitFor blocks until cond holds for a snapshot, ctx ends or the
// controller closes.
func (c *Controller) WaitFor(ctx context.Context, cond func(scene.Snapshot) bool) (scene.Snapshot, error) {
	ch, cancel := c.Subscribe()
	defer cancel()

	snap := c.Snapshot()
	if cond(snap) {
		return snap, nil
	}
	for {
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case s, ok := <-ch:
			if !ok {
				return snap, ErrClosed
			}
			snap = s
			if cond(snap) {
				return snap, nil
			}
		}
	}
}

// Close stops narration, abandons outstanding requests, freezes the reveal
// and closes all subscriptions. Later calls are no-ops.
func (c *Controller) Close() {
	c.st.mu.Lock()
	if c.ctx.Err() != nil {
		c.st.mu.Unlock()
		return
	}
	c.cancel()
	c.narr.stopLocked()
	if c.narr.player != nil {
		c.narr.player.StopAll()
	}
	c.gen.retireLocked()
	c.reveal.Cancel()
	c.st.mu.Unlock()

	c.subMu.Lock()
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.subMu.Unlock()

	logrus.Debug("Studio closed")
}

func (c *Controller) broadcast() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if len(c.subs) == 0 {
		return
	}

	snap := c.Snapshot()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
