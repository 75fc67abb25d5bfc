package studio

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"directorscut/internal/domain/scene"
	"directorscut/internal/scene/writer"
)

// GenerationManager owns the generation slot. At most one request is
// outstanding; submitting again supersedes it.
type GenerationManager struct {
	st     *state
	writer writer.Writer
	creds  Credentials
	opts   Options
	base   context.Context

	// onScript receives a resolved script with the session lock held.
	onScript func(text string)

	epoch        uint64
	cancel       context.CancelFunc
	stopRotation chan struct{}
}

type outcome struct {
	script string
	result string
	mode   scene.Mode
	status scene.RequestStatus
	kind   scene.ErrorKind
}

// submitLocked enters Loading for prompt and launches the request. The
// caller holds the session lock and has already validated the prompt.
func (g *GenerationManager) submitLocked(prompt string) {
	g.cancelLocked()
	g.epoch++
	epoch := g.epoch

	ctx, cancel := context.WithTimeout(g.base, g.opts.GenerationTimeout)
	g.cancel = cancel
	stop := make(chan struct{})
	g.stopRotation = stop

	req := &scene.GenerationRequest{
		ID:             uuid.NewString(),
		PromptSnapshot: prompt,
		Status:         scene.StatusPending,
	}

	s := &g.st.session
	s.Prompt = prompt
	s.Script = ""
	s.Mode = scene.ModeNone
	s.ViewState = scene.ViewLoading
	s.LoadingMessageIndex = 0
	s.Generation = req

	logrus.WithFields(logrus.Fields{
		"generation_id": req.ID,
		"epoch":         epoch,
		"backend":       g.writer.Name(),
	}).Info("Scene generation started")

	go g.rotate(epoch, stop)
	go g.run(ctx, epoch, req.ID, prompt)
}

// cancelLocked stops the outstanding request and its loading rotation.
func (g *GenerationManager) cancelLocked() {
	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	if g.stopRotation != nil {
		close(g.stopRotation)
		g.stopRotation = nil
	}
}

// retireLocked invalidates any in-flight result.
func (g *GenerationManager) retireLocked() {
	g.cancelLocked()
	g.epoch++
}

func (g *GenerationManager) rotate(epoch uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(g.opts.LoadingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		g.st.mu.Lock()
		s := &g.st.session
		if g.epoch != epoch || s.ViewState != scene.ViewLoading {
			g.st.mu.Unlock()
			return
		}
		s.LoadingMessageIndex = (s.LoadingMessageIndex + 1) % len(g.opts.LoadingMessages)
		g.st.mu.Unlock()
		g.st.notify()
	}
}

func (g *GenerationManager) run(ctx context.Context, epoch uint64, id, prompt string) {
	out := g.generate(ctx, id, prompt)
	g.resolve(epoch, id, out)
}

func (g *GenerationManager) generate(ctx context.Context, id, prompt string) outcome {
	key := g.creds.APIKey()
	if key == "" {
		if g.opts.SimulatedDelay > 0 {
			timer := time.NewTimer(g.opts.SimulatedDelay)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
			timer.Stop()
		}
		return outcome{
			script: SimulatedScene(prompt),
			mode:   scene.ModeSimulated,
			status: scene.StatusSucceeded,
		}
	}

	req := writer.NewRequest(key, prompt)
	req.Temperature = g.opts.Temperature
	res, err := g.writer.Generate(ctx, req)
	if err == nil && (res == nil || strings.TrimSpace(res.Text) == "") {
		err = scene.NewError(scene.ErrEmptyResult, g.writer.Name(), fmt.Errorf("no text returned"))
	}
	if err != nil {
		kind := scene.KindOf(err)
		logrus.WithFields(logrus.Fields{
			"generation_id": id,
			"kind":          kind.String(),
		}).WithError(err).Warn("Scene generation failed, using fallback scene")
		return outcome{
			script: ErrorScene(kind),
			mode:   scene.ModeFallback,
			status: scene.StatusFailed,
			kind:   kind,
		}
	}

	return outcome{
		script: res.Text,
		result: res.Text,
		mode:   scene.ModeLive,
		status: scene.StatusSucceeded,
	}
}

// resolve applies out if the request is still current.
func (g *GenerationManager) resolve(epoch uint64, id string, out outcome) {
	g.st.mu.Lock()
	if epoch != g.epoch {
		g.st.mu.Unlock()
		logrus.WithField("generation_id", id).Debug("Discarding superseded scene")
		return
	}
	g.cancelLocked()

	s := &g.st.session
	if req := s.Generation; req != nil {
		req.Status = out.status
		req.ResultText = out.result
		req.ErrorKind = out.kind
	}
	s.Script = out.script
	s.Mode = out.mode
	s.ViewState = scene.ViewScriptReady
	if g.onScript != nil {
		g.onScript(out.script)
	}
	g.st.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"generation_id": id,
		"mode":          string(out.mode),
		"length":        len([]rune(out.script)),
	}).Info("Scene ready")

	g.st.notify()
}
