package studio

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/audio"
	"directorscut/internal/scene/tts"
)

// NarrationManager owns the narration slot and the single playback handle.
type NarrationManager struct {
	st     *state
	synth  tts.Synthesizer
	creds  Credentials
	player *audio.Player
	opts   Options
	base   context.Context

	epoch  uint64
	cancel context.CancelFunc
	handle *audio.Handle
}

// toggleLocked stops narration if any is in progress, otherwise starts
// narrating the current script. Without a script it does nothing.
func (n *NarrationManager) toggleLocked() {
	s := &n.st.session
	switch s.Narration {
	case scene.NarrationPlaying, scene.NarrationRequesting:
		n.stopLocked()
		return
	}
	if s.Script == "" {
		return
	}

	n.epoch++
	epoch := n.epoch
	ctx, cancel := context.WithTimeout(n.base, n.opts.NarrationTimeout)
	n.cancel = cancel

	req := &scene.NarrationRequest{
		ID:             uuid.NewString(),
		ScriptSnapshot: s.Script,
		Status:         scene.StatusPending,
	}
	s.NarrationRequest = req
	s.Narration = scene.NarrationRequesting

	logrus.WithFields(logrus.Fields{
		"narration_id": req.ID,
		"epoch":        epoch,
		"engine":       n.synth.Name(),
	}).Info("Narration requested")

	go n.run(ctx, epoch, req)
}

// stopLocked silences playback, abandons any pending synthesis and returns
// the slot to Idle. Safe to call in any state.
func (n *NarrationManager) stopLocked() {
	n.epoch++
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}
	if n.handle != nil {
		n.player.Stop(n.handle)
		n.handle = nil
	}

	s := &n.st.session
	if req := s.NarrationRequest; req != nil && req.Status == scene.StatusPending {
		s.NarrationRequest = nil
	}
	if s.Narration != scene.NarrationIdle {
		logrus.Debug("Narration stopped")
	}
	s.Narration = scene.NarrationIdle
}

func (n *NarrationManager) run(ctx context.Context, epoch uint64, req *scene.NarrationRequest) {
	clip, raw, err := n.synthesize(ctx, req.ScriptSnapshot)

	n.st.mu.Lock()
	if epoch != n.epoch {
		n.st.mu.Unlock()
		logrus.WithField("narration_id", req.ID).Debug("Discarding superseded narration")
		return
	}
	if n.cancel != nil {
		n.cancel()
		n.cancel = nil
	}

	var h *audio.Handle
	if err == nil {
		h, err = n.player.Play(clip)
		if err != nil {
			err = scene.NewError(scene.ErrPlaybackFailure, "play", err)
		}
	}
	if err != nil {
		n.failLocked(req, err)
		n.st.mu.Unlock()
		n.st.notify()
		return
	}

	req.Status = scene.StatusSucceeded
	req.AudioSamples = raw
	n.handle = h
	n.st.session.Narration = scene.NarrationPlaying
	n.st.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"narration_id": req.ID,
		"duration":     clip.Duration().String(),
	}).Info("Narration playing")
	n.st.notify()

	<-h.Done()
	n.finished(h)
}

// synthesize fetches and decodes speech for script.
func (n *NarrationManager) synthesize(ctx context.Context, script string) (*audio.Clip, []byte, error) {
	speech, err := n.synth.Synthesize(ctx, tts.Request{
		APIKey: n.creds.APIKey(),
		Text:   script,
		Voice:  n.opts.Voice,
	})
	if err != nil {
		return nil, nil, err
	}
	if speech == nil || speech.AudioPayload == "" {
		return nil, nil, scene.NewError(scene.ErrEmptyAudio, n.synth.Name(), fmt.Errorf("no audio payload"))
	}

	raw, err := base64.StdEncoding.DecodeString(speech.AudioPayload)
	if err != nil {
		return nil, nil, scene.NewError(scene.ErrDecodeFailure, "base64", err)
	}

	clip, err := audio.Decode(raw, speech.Encoding)
	if err != nil {
		if errors.Is(err, audio.ErrEmptyPayload) || errors.Is(err, audio.ErrNoSamples) {
			return nil, nil, scene.NewError(scene.ErrEmptyAudio, "decode", err)
		}
		return nil, nil, scene.NewError(scene.ErrDecodeFailure, "decode", err)
	}
	return clip, raw, nil
}

func (n *NarrationManager) failLocked(req *scene.NarrationRequest, err error) {
	kind := scene.KindOf(err)
	req.Status = scene.StatusFailed
	req.ErrorKind = kind
	n.st.session.Narration = scene.NarrationIdle

	logrus.WithFields(logrus.Fields{
		"narration_id": req.ID,
		"kind":         kind.String(),
	}).WithError(err).Error("Narration failed")

	n.st.raiseLocked(kind, narrationNotice(kind))
}

// finished returns to Idle after natural completion. A handle that was
// stopped or replaced in the meantime is ignored.
func (n *NarrationManager) finished(h *audio.Handle) {
	n.st.mu.Lock()
	if n.handle != h {
		n.st.mu.Unlock()
		return
	}
	n.handle = nil
	n.st.session.Narration = scene.NarrationIdle
	n.st.mu.Unlock()

	logrus.Debug("Narration finished")
	n.st.notify()
}
